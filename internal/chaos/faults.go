// internal/chaos/faults.go
package chaos

import (
	"context"
	"errors"
	"math/big"
	"sync"

	"nftmarket/internal/account"
	"nftmarket/internal/marketplace"
)

var ErrInjected = errors.New("chaos: injected fault")

// FlakyFunds fails transfers to selected accounts while armed.
type FlakyFunds struct {
	marketplace.Funds

	mu     sync.RWMutex
	failTo map[account.Address]bool
}

func NewFlakyFunds(inner marketplace.Funds) *FlakyFunds {
	return &FlakyFunds{Funds: inner, failTo: make(map[account.Address]bool)}
}

func (f *FlakyFunds) FailTransfersTo(addr account.Address) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failTo[addr] = true
}

func (f *FlakyFunds) Heal() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failTo = make(map[account.Address]bool)
}

func (f *FlakyFunds) Transfer(ctx context.Context, from, to account.Address, amount *big.Int) error {
	f.mu.RLock()
	fail := f.failTo[to]
	f.mu.RUnlock()
	if fail {
		return ErrInjected
	}
	return f.Funds.Transfer(ctx, from, to, amount)
}

// FlakyRegistry fails every custody transfer while armed.
type FlakyRegistry struct {
	marketplace.AssetRegistry

	mu   sync.RWMutex
	down bool
}

func NewFlakyRegistry(inner marketplace.AssetRegistry) *FlakyRegistry {
	return &FlakyRegistry{AssetRegistry: inner}
}

func (r *FlakyRegistry) SetDown(down bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.down = down
}

func (r *FlakyRegistry) TransferFrom(ctx context.Context, caller, from, to account.Address, tokenID uint64) error {
	r.mu.RLock()
	down := r.down
	r.mu.RUnlock()
	if down {
		return ErrInjected
	}
	return r.AssetRegistry.TransferFrom(ctx, caller, from, to, tokenID)
}
