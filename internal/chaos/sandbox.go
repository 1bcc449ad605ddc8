// internal/chaos/sandbox.go
package chaos

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"nftmarket/internal/account"
	"nftmarket/internal/ledger"
	"nftmarket/internal/marketplace"
	"nftmarket/internal/notify"
	"nftmarket/internal/registry"
	"nftmarket/internal/units"
)

// Sandbox is an in-process deployment of the marketplace with fault
// injection points between the engine and its registry and funds.
type Sandbox struct {
	Ledger   ledger.Service
	Registry registry.Service
	Market   marketplace.Service
	Funds    *FlakyFunds
	Assets   *FlakyRegistry

	Deployer account.Address
	Seller   account.Address
	Buyers   []account.Address

	mu     sync.Mutex
	bought map[uint64]int
}

// NewSandbox deploys a registry and marketplace, funds every buyer with 10
// ether and lists items tokens at 1 ether each.
func NewSandbox(ctx context.Context, buyers, items int) (*Sandbox, error) {
	sb := &Sandbox{
		Ledger:   ledger.NewService(),
		Deployer: account.FromSeed("chaos-deployer"),
		Seller:   account.FromSeed("chaos-seller"),
		bought:   make(map[uint64]int),
	}
	sb.Registry = registry.NewService(registry.Config{Address: account.ContractAddress(sb.Deployer, 0)}, nil)
	sb.Funds = NewFlakyFunds(sb.Ledger)
	sb.Assets = NewFlakyRegistry(sb.Registry)
	sb.Market = marketplace.NewService(
		marketplace.Config{FeeAccount: sb.Deployer, FeePercent: 1},
		marketplace.NewDirectory(sb.Assets), sb.Funds, sb,
	)

	for i := 0; i < buyers; i++ {
		buyer := account.FromSeed(fmt.Sprintf("chaos-buyer-%d", i))
		if err := sb.Ledger.Deposit(ctx, buyer, units.MustToWei("10")); err != nil {
			return nil, err
		}
		sb.Buyers = append(sb.Buyers, buyer)
	}

	if err := sb.Registry.SetApprovalForAll(ctx, sb.Seller, sb.Market.Address(), true); err != nil {
		return nil, err
	}
	for i := 0; i < items; i++ {
		tokenID, err := sb.Registry.Mint(ctx, sb.Seller, fmt.Sprintf("chaos://%d", i))
		if err != nil {
			return nil, err
		}
		if _, err := sb.Market.MakeItem(ctx, sb.Seller, sb.Registry.Address(), tokenID, units.MustToWei("1")); err != nil {
			return nil, err
		}
	}
	return sb, nil
}

// Notify counts bought events per item.
func (sb *Sandbox) Notify(_ context.Context, eventType notify.Type, data interface{}) {
	if e, ok := data.(marketplace.BoughtEvent); ok && eventType == marketplace.TypeBought {
		sb.mu.Lock()
		sb.bought[e.ItemID]++
		sb.mu.Unlock()
	}
}

func (sb *Sandbox) accounts() []account.Address {
	return append([]account.Address{sb.Deployer, sb.Seller, sb.Market.Address()}, sb.Buyers...)
}

// ValueConserved is 1 when the balances of every participant add up to the
// total supply, 0 otherwise.
func (sb *Sandbox) ValueConserved(ctx context.Context) (float64, error) {
	sum := new(big.Int)
	for _, a := range sb.accounts() {
		sum.Add(sum, sb.Ledger.BalanceOf(ctx, a))
	}
	if sum.Cmp(sb.Ledger.TotalSupply(ctx)) == 0 {
		return 1, nil
	}
	return 0, nil
}

// CustodyInconsistencies counts listed tokens whose owner disagrees with the
// sold flag, plus one if the marketplace retained any escrowed value.
func (sb *Sandbox) CustodyInconsistencies(ctx context.Context) (float64, error) {
	market := sb.Market.Address()
	bad := 0
	for _, item := range sb.Market.ListItems(ctx) {
		owner, err := sb.Registry.OwnerOf(ctx, item.TokenID)
		if err != nil {
			return 0, err
		}
		if item.Sold == (owner == market) {
			bad++
		}
	}
	if sb.Ledger.BalanceOf(ctx, market).Sign() != 0 {
		bad++
	}
	return float64(bad), nil
}

// DoubleSales counts items that were reported bought more than once or whose
// sold flag disagrees with the bought events.
func (sb *Sandbox) DoubleSales(ctx context.Context) (float64, error) {
	sb.mu.Lock()
	defer sb.mu.Unlock()

	bad := 0
	for _, item := range sb.Market.ListItems(ctx) {
		n := sb.bought[item.ItemID]
		if n > 1 || (n == 1) != item.Sold {
			bad++
		}
	}
	return float64(bad), nil
}

// PurchaseWave has every buyer attempt every unsold item at its total price.
// It returns how many purchases succeeded.
func (sb *Sandbox) PurchaseWave(ctx context.Context) int {
	sold := 0
	for _, buyer := range sb.Buyers {
		for _, item := range sb.Market.ListItems(ctx) {
			if item.Sold {
				continue
			}
			total := sb.Market.GetTotalPrice(ctx, item.ItemID)
			if err := sb.Market.PurchaseItem(ctx, buyer, item.ItemID, total); err == nil {
				sold++
			}
		}
	}
	return sold
}
