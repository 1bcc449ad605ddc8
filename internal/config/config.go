package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"nftmarket/internal/account"
	"nftmarket/internal/log"
)

type Config struct {
	Env         string
	ServiceName string
	Debug       bool
	LogPath     string
	Port        string

	DatabaseURL string
	JWTSecret   string
	Faucet      bool

	Marketplace MarketplaceConfig
	Registry    RegistryConfig
	Telemetry   TelemetryConfig
}

type MarketplaceConfig struct {
	URL        string
	FeePercent uint64
	// Deployer owns the marketplace and receives its fees.
	Deployer string
}

// DeployerAddress parses Deployer as an address, or derives one from it as
// a seed. An empty value yields the development deployer.
func (c MarketplaceConfig) DeployerAddress() account.Address {
	if c.Deployer == "" {
		return account.FromSeed("deployer")
	}
	if addr, err := account.ParseAddress(c.Deployer); err == nil {
		return addr
	}
	return account.FromSeed(c.Deployer)
}

type RegistryConfig struct {
	URL               string
	Name              string
	Symbol            string
	MintRatePerMinute int
}

type TelemetryConfig struct {
	Endpoint string
}

// Init loads .env when present and installs the global logger.
func Init() {
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, fs.ErrNotExist) {
		zap.L().With(zap.Error(err)).Fatal("Unable to init config")
	}

	cfg := Get()
	log.NewLogger(cfg.LogPath, cfg.Debug)
}

func Get() *Config {
	return &Config{
		Env:         getString("ENV", "dev"),
		ServiceName: getString("SERVICE_NAME", "nftmarket"),
		Debug:       getBool("DEBUG", false),
		LogPath:     getString("LOG_PATH", ""),
		Port:        getString("PORT", ""),
		DatabaseURL: getString("DATABASE_URL", ""),
		JWTSecret:   getString("JWT_SECRET", "dev_secret_change_in_prod"),
		Faucet:      getBool("FAUCET", false),
		Marketplace: MarketplaceConfig{
			URL:        getString("MARKETPLACE_URL", "http://localhost:8082"),
			FeePercent: getUint64("FEE_PERCENT", 1),
			Deployer:   getString("DEPLOYER", ""),
		},
		Registry: RegistryConfig{
			URL:               getString("REGISTRY_URL", "http://localhost:8081"),
			Name:              getString("COLLECTION_NAME", ""),
			Symbol:            getString("COLLECTION_SYMBOL", ""),
			MintRatePerMinute: getInt("MINT_RATE_PER_MINUTE", 0),
		},
		Telemetry: TelemetryConfig{
			Endpoint: getString("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		},
	}
}

func getString(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	val, err := strconv.Atoi(strings.TrimSpace(getString(key, "")))
	if err != nil {
		return defaultValue
	}
	return val
}

func getUint64(key string, defaultValue uint64) uint64 {
	val, err := strconv.ParseUint(strings.TrimSpace(getString(key, "")), 10, 64)
	if err != nil {
		return defaultValue
	}
	return val
}

func getBool(key string, defaultValue bool) bool {
	if val, err := strconv.ParseBool(getString(key, "")); err == nil {
		return val
	}
	return defaultValue
}
