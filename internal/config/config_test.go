package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"

	"nftmarket/internal/account"
)

func TestGetDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "FEE_PERCENT", "DEBUG", "MINT_RATE_PER_MINUTE"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}

	cfg := Get()
	assert.Empty(t, cfg.Port)
	assert.Equal(t, uint64(1), cfg.Marketplace.FeePercent)
	assert.False(t, cfg.Debug)
	assert.Zero(t, cfg.Registry.MintRatePerMinute)
}

func TestGetFromEnvironment(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("FEE_PERCENT", "5")
	t.Setenv("DEBUG", "true")
	t.Setenv("MINT_RATE_PER_MINUTE", "30")
	t.Setenv("REGISTRY_URL", "http://registry:8081")

	cfg := Get()
	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, uint64(5), cfg.Marketplace.FeePercent)
	assert.True(t, cfg.Debug)
	assert.Equal(t, 30, cfg.Registry.MintRatePerMinute)
	assert.Equal(t, "http://registry:8081", cfg.Registry.URL)
}

func TestMalformedValuesFallBack(t *testing.T) {
	t.Setenv("FEE_PERCENT", "-3")
	t.Setenv("DEBUG", "maybe")

	cfg := Get()
	assert.Equal(t, uint64(1), cfg.Marketplace.FeePercent)
	assert.False(t, cfg.Debug)
}

func TestDeployerAddress(t *testing.T) {
	addr := account.FromSeed("someone")

	assert.Equal(t, account.FromSeed("deployer"), MarketplaceConfig{}.DeployerAddress())
	assert.Equal(t, addr, MarketplaceConfig{Deployer: addr.Hex()}.DeployerAddress())
	assert.Equal(t, addr, MarketplaceConfig{Deployer: "someone"}.DeployerAddress())
}
