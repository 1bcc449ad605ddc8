// cmd/registry/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"nftmarket/internal/account"
	"nftmarket/internal/auth"
	"nftmarket/internal/config"
	"nftmarket/internal/notify"
	"nftmarket/internal/registry"
	"nftmarket/internal/telemetry"
)

func main() {
	config.Init()
	cfg := config.Get()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdown, err := telemetry.Setup(ctx, cfg.ServiceName+"-registry", cfg.Telemetry.Endpoint)
	if err != nil {
		zap.L().With(zap.Error(err)).Fatal("Failed to set up tracing")
	}
	defer shutdown(context.Background())

	deployer := cfg.Marketplace.DeployerAddress()
	rcfg := registry.Config{
		Address: account.ContractAddress(deployer, 0),
		Name:    cfg.Registry.Name,
		Symbol:  cfg.Registry.Symbol,
	}
	if perMinute := cfg.Registry.MintRatePerMinute; perMinute > 0 {
		rcfg.MintRate = rate.Limit(float64(perMinute) / 60)
		rcfg.MintBurst = perMinute
	}

	events := notify.NewManager()
	defer events.Close()
	events.AddListener("", func(ctx context.Context, e notify.Event) {
		zap.L().With(zap.String("type", string(e.Type)), zap.Any("data", e.Data)).Debug("Registry event")
	})

	svc := registry.NewService(rcfg, events)
	issuer := auth.NewIssuer(cfg.JWTSecret)

	router := chi.NewRouter()
	router.Use(middleware.RequestID, middleware.Recoverer, issuer.Middleware)
	registry.NewHandler(svc).Routes(router)

	port := cfg.Port
	if port == "" {
		port = "8081"
	}
	server := &http.Server{Addr: ":" + port, Handler: router, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	col := svc.Collection(ctx)
	zap.L().With(
		zap.String("port", port),
		zap.String("address", col.Address.Hex()),
		zap.String("name", col.Name),
		zap.String("symbol", col.Symbol),
	).Info("Starting Registry Service")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		zap.L().With(zap.Error(err)).Fatal("Registry Service stopped")
	}
}
