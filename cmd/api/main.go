// cmd/api/main.go
package main

import (
	"net/http"
	"net/http/httputil"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"nftmarket/internal/config"
)

func main() {
	config.Init()
	cfg := config.Get()

	registryURL, err := url.Parse(cfg.Registry.URL)
	if err != nil {
		zap.L().With(zap.Error(err)).Fatal("Invalid REGISTRY_URL")
	}
	marketplaceURL, err := url.Parse(cfg.Marketplace.URL)
	if err != nil {
		zap.L().With(zap.Error(err)).Fatal("Invalid MARKETPLACE_URL")
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer)
	router.Mount("/api/v1/registry", http.StripPrefix("/api/v1/registry", httputil.NewSingleHostReverseProxy(registryURL)))
	router.Mount("/api/v1/marketplace", http.StripPrefix("/api/v1/marketplace", httputil.NewSingleHostReverseProxy(marketplaceURL)))

	port := cfg.Port
	if port == "" {
		port = "8080"
	}
	zap.L().With(zap.String("port", port)).Info("API Gateway listening")
	if err := http.ListenAndServe(":"+port, router); err != nil {
		zap.L().With(zap.Error(err)).Fatal("API Gateway stopped")
	}
}
