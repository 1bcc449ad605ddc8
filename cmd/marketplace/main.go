// cmd/marketplace/main.go
package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"nftmarket/internal/auth"
	"nftmarket/internal/clients"
	"nftmarket/internal/config"
	"nftmarket/internal/ledger"
	"nftmarket/internal/marketplace"
	"nftmarket/internal/notify"
	"nftmarket/internal/telemetry"
	"nftmarket/pkg/eventstore"
)

func main() {
	config.Init()
	cfg := config.Get()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdown, err := telemetry.Setup(ctx, cfg.ServiceName+"-marketplace", cfg.Telemetry.Endpoint)
	if err != nil {
		zap.L().With(zap.Error(err)).Fatal("Failed to set up tracing")
	}
	defer shutdown(context.Background())

	issuer := auth.NewIssuer(cfg.JWTSecret)
	nft, err := clients.DiscoverRegistry(ctx, cfg.Registry.URL, issuer)
	if err != nil {
		zap.L().With(zap.String("url", cfg.Registry.URL), zap.Error(err)).Fatal("Failed to reach registry")
	}

	events := notify.NewManager()
	defer events.Close()

	funds := ledger.NewService()
	svc := marketplace.NewService(marketplace.Config{
		FeeAccount: cfg.Marketplace.DeployerAddress(),
		FeePercent: cfg.Marketplace.FeePercent,
	}, marketplace.NewDirectory(nft), funds, events)

	var journal *marketplace.Journal
	if cfg.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			zap.L().With(zap.Error(err)).Fatal("Failed to connect to database")
		}
		defer db.Close()

		store := eventstore.NewEventStore(db)
		if err := store.Migrate(ctx); err != nil {
			zap.L().With(zap.Error(err)).Fatal("Failed to migrate event store")
		}
		journal = marketplace.NewJournal(store, svc.Address())
		journal.Subscribe(events)
	} else {
		zap.L().Warn("DATABASE_URL not set, item history disabled")
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID, middleware.Recoverer, issuer.Middleware)
	marketplace.NewHandler(svc, journal).Routes(router)
	ledger.NewHandler(funds, cfg.Faucet).Routes(router)

	port := cfg.Port
	if port == "" {
		port = "8082"
	}
	server := &http.Server{Addr: ":" + port, Handler: router, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	zap.L().With(
		zap.String("port", port),
		zap.String("address", svc.Address().Hex()),
		zap.String("feeAccount", svc.FeeAccount().Hex()),
		zap.Uint64("feePercent", svc.FeePercent()),
		zap.String("registry", nft.Address().Hex()),
		zap.Bool("faucet", cfg.Faucet),
	).Info("Starting Marketplace Service")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		zap.L().With(zap.Error(err)).Fatal("Marketplace Service stopped")
	}
}
