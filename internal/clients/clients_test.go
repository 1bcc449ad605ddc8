package clients

import (
	"context"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nftmarket/internal/account"
	"nftmarket/internal/auth"
	"nftmarket/internal/ledger"
	"nftmarket/internal/marketplace"
	"nftmarket/internal/registry"
	"nftmarket/internal/units"
)

var (
	deployer = account.FromSeed("deployer")
	seller   = account.FromSeed("addr1")
	buyer    = account.FromSeed("addr2")
	other    = account.FromSeed("addr3")
)

type stack struct {
	registry *RegistryClient
	market   *MarketplaceClient
	info     *marketplace.Info
}

// newStack runs a registry service and a marketplace service that reaches
// the registry over HTTP, the way the binaries are deployed.
func newStack(t *testing.T) *stack {
	t.Helper()
	ctx := context.Background()
	issuer := auth.NewIssuer("test-secret")

	nft := registry.NewService(registry.Config{Address: account.ContractAddress(deployer, 0)}, nil)
	regRouter := chi.NewRouter()
	regRouter.Use(issuer.Middleware)
	registry.NewHandler(nft).Routes(regRouter)
	regServer := httptest.NewServer(regRouter)
	t.Cleanup(regServer.Close)

	remote, err := DiscoverRegistry(ctx, regServer.URL, issuer)
	require.NoError(t, err)
	require.Equal(t, nft.Address(), remote.Address())

	funds := ledger.NewService()
	market := marketplace.NewService(marketplace.Config{FeeAccount: deployer, FeePercent: 1},
		marketplace.NewDirectory(remote), funds, nil)

	mktRouter := chi.NewRouter()
	mktRouter.Use(issuer.Middleware)
	marketplace.NewHandler(market, nil).Routes(mktRouter)
	ledger.NewHandler(funds, true).Routes(mktRouter)
	mktServer := httptest.NewServer(mktRouter)
	t.Cleanup(mktServer.Close)

	s := &stack{
		registry: remote,
		market:   NewMarketplaceClient(mktServer.URL, issuer),
	}
	s.info, err = s.market.Info(ctx)
	require.NoError(t, err)
	return s
}

func TestEndToEndSale(t *testing.T) {
	ctx := context.Background()
	s := newStack(t)

	for _, a := range []account.Address{seller, buyer, other} {
		_, err := s.market.Deposit(ctx, a, units.MustToWei("10000"))
		require.NoError(t, err)
	}

	tokenID, err := s.registry.Mint(ctx, seller, "Sample URI")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), tokenID)

	// listing before approval surfaces the registry error
	_, err = s.market.MakeItem(ctx, seller, s.registry.Address(), tokenID, units.MustToWei("2"))
	assert.ErrorIs(t, err, registry.ErrNotOwnerNorApproved)

	require.NoError(t, s.registry.SetApprovalForAll(ctx, seller, s.info.Address, true))
	approved, err := s.registry.IsApprovedForAll(ctx, seller, s.info.Address)
	require.NoError(t, err)
	assert.True(t, approved)

	_, err = s.market.MakeItem(ctx, seller, s.registry.Address(), tokenID, big.NewInt(0))
	assert.ErrorIs(t, err, marketplace.ErrInvalidPrice)

	itemID, err := s.market.MakeItem(ctx, seller, s.registry.Address(), tokenID, units.MustToWei("2"))
	require.NoError(t, err)
	assert.Equal(t, uint64(1), itemID)

	owner, err := s.registry.OwnerOf(ctx, tokenID)
	require.NoError(t, err)
	assert.Equal(t, s.info.Address, owner)

	total, err := s.market.GetTotalPrice(ctx, itemID)
	require.NoError(t, err)
	assert.Equal(t, units.MustToWei("2.02").String(), total.String())

	err = s.market.PurchaseItem(ctx, buyer, itemID, units.MustToWei("2"))
	assert.ErrorIs(t, err, marketplace.ErrInsufficientPayment)
	err = s.market.PurchaseItem(ctx, buyer, 2, total)
	assert.ErrorIs(t, err, marketplace.ErrItemNotFound)

	require.NoError(t, s.market.PurchaseItem(ctx, buyer, itemID, total))
	err = s.market.PurchaseItem(ctx, other, itemID, total)
	assert.ErrorIs(t, err, marketplace.ErrAlreadySold)

	owner, err = s.registry.OwnerOf(ctx, tokenID)
	require.NoError(t, err)
	assert.Equal(t, buyer, owner)

	sellerBal, err := s.market.Balance(ctx, seller)
	require.NoError(t, err)
	assert.Equal(t, "10002", sellerBal.Ether)
	feeBal, err := s.market.Balance(ctx, deployer)
	require.NoError(t, err)
	assert.Equal(t, "0.02", feeBal.Ether)
	buyerBal, err := s.market.Balance(ctx, buyer)
	require.NoError(t, err)
	assert.Equal(t, "9997.98", buyerBal.Ether)

	item, err := s.market.GetItem(ctx, itemID)
	require.NoError(t, err)
	assert.True(t, item.Sold)

	items, err := s.market.ListItems(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, seller, items[0].Seller)
}

func TestUnknownErrorsKeepStatus(t *testing.T) {
	ctx := context.Background()
	s := newStack(t)

	_, err := s.market.History(ctx, 1)
	assert.True(t, IsStatus(err, http.StatusNotImplemented))

	_, err = s.registry.Token(ctx, 42)
	assert.ErrorIs(t, err, registry.ErrNonexistentToken)

	_, err = s.market.Deposit(ctx, seller, big.NewInt(-1))
	assert.ErrorIs(t, err, ledger.ErrInvalidAmount)
}

func TestSoldItemsAreCached(t *testing.T) {
	ctx := context.Background()
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Write([]byte(`{"item_id":1,"price":5,"sold":true}`))
	}))
	t.Cleanup(server.Close)

	c := NewMarketplaceClient(server.URL, nil)
	for i := 0; i < 3; i++ {
		item, err := c.GetItem(ctx, 1)
		require.NoError(t, err)
		assert.True(t, item.Sold)
		assert.Equal(t, "5", item.Price.String())
	}
	assert.Equal(t, 1, calls)
}

func TestWritesGiveUpAfterTimeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	t.Cleanup(func() {
		close(release)
		server.Close()
	})

	c := NewRegistryClient(server.URL, deployer, auth.NewIssuer("test-secret"))
	c.SetTimeout(50 * time.Millisecond)

	start := time.Now()
	err := c.TransferFrom(context.Background(), seller, seller, buyer, 1)
	require.Error(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)
}
