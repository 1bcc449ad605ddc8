package marketplace

import (
	"context"
	"errors"
	"math/big"
	"sync"

	"github.com/stretchr/testify/require"

	"nftmarket/internal/account"
	"nftmarket/internal/ledger"
	"nftmarket/internal/notify"
	"nftmarket/internal/registry"
	"nftmarket/internal/units"
)

const uri = "Sample URI"

var (
	deployer = account.FromSeed("deployer")
	addr1    = account.FromSeed("addr1")
	addr2    = account.FromSeed("addr2")
	addr3    = account.FromSeed("addr3")

	errBoom = errors.New("boom")
)

type capture struct {
	mu     sync.Mutex
	events []notify.Event
}

func (c *capture) Notify(_ context.Context, eventType notify.Type, data interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, notify.Event{Type: eventType, Data: data})
}

func (c *capture) ofType(eventType notify.Type) []notify.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []notify.Event
	for _, e := range c.events {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

type fixture struct {
	ledger   ledger.Service
	nft      registry.Service
	market   Service
	events   *capture
	registry AssetRegistry
	funds    Funds
}

type option func(*fixture)

func withRegistry(wrap func(AssetRegistry) AssetRegistry) option {
	return func(f *fixture) { f.registry = wrap(f.registry) }
}

func withFunds(wrap func(Funds) Funds) option {
	return func(f *fixture) { f.funds = wrap(f.funds) }
}

// newFixture deploys a registry and a marketplace and funds addr1..addr3
// with 10000 ether each.
func newFixture(t require.TestingT, feePercent uint64, opts ...option) *fixture {
	ctx := context.Background()
	f := &fixture{
		ledger: ledger.NewService(),
		nft:    registry.NewService(registry.Config{Address: account.ContractAddress(deployer, 0)}, nil),
		events: &capture{},
	}
	f.registry = f.nft
	f.funds = f.ledger
	for _, opt := range opts {
		opt(f)
	}

	f.market = NewService(Config{FeeAccount: deployer, FeePercent: feePercent}, NewDirectory(f.registry), f.funds, f.events)

	for _, a := range []account.Address{addr1, addr2, addr3} {
		require.NoError(t, f.ledger.Deposit(ctx, a, units.MustToWei("10000")))
	}
	return f
}

// list mints a token to seller, approves the marketplace and lists it.
func (f *fixture) list(t require.TestingT, seller account.Address, price *big.Int) uint64 {
	ctx := context.Background()
	tokenID, err := f.nft.Mint(ctx, seller, uri)
	require.NoError(t, err)
	require.NoError(t, f.nft.SetApprovalForAll(ctx, seller, f.market.Address(), true))

	itemID, err := f.market.MakeItem(ctx, seller, f.nft.Address(), tokenID, price)
	require.NoError(t, err)
	return itemID
}

func (f *fixture) balance(a account.Address) string {
	return f.ledger.BalanceOf(context.Background(), a).String()
}

type failingRegistry struct {
	AssetRegistry
	failTo account.Address
}

func (r failingRegistry) TransferFrom(ctx context.Context, caller, from, to account.Address, tokenID uint64) error {
	if to == r.failTo {
		return errBoom
	}
	return r.AssetRegistry.TransferFrom(ctx, caller, from, to, tokenID)
}

// lostReplyRegistry applies transfers to replyTo and then reports failure,
// like a remote registry whose response never arrived.
type lostReplyRegistry struct {
	AssetRegistry
	replyTo account.Address
}

func (r lostReplyRegistry) TransferFrom(ctx context.Context, caller, from, to account.Address, tokenID uint64) error {
	if err := r.AssetRegistry.TransferFrom(ctx, caller, from, to, tokenID); err != nil {
		return err
	}
	if to == r.replyTo {
		return errBoom
	}
	return nil
}

type failingFunds struct {
	Funds
	mu     sync.Mutex
	calls  int
	failOn int
}

func (f *failingFunds) Transfer(ctx context.Context, from, to account.Address, amount *big.Int) error {
	f.mu.Lock()
	f.calls++
	fail := f.calls == f.failOn
	f.mu.Unlock()
	if fail {
		return errBoom
	}
	return f.Funds.Transfer(ctx, from, to, amount)
}
