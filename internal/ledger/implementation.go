// internal/ledger/implementation.go
package ledger

import (
	"context"
	"math/big"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"nftmarket/internal/account"
)

// service implements the Service interface in memory.
type service struct {
	mu       sync.RWMutex
	balances map[account.Address]*big.Int
	supply   *big.Int
	tracer   trace.Tracer
}

// NewService creates an empty ledger.
func NewService() Service {
	return &service{
		balances: make(map[account.Address]*big.Int),
		supply:   new(big.Int),
		tracer:   otel.Tracer("nftmarket/ledger"),
	}
}

func (s *service) BalanceOf(ctx context.Context, addr account.Address) *big.Int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if bal, ok := s.balances[addr]; ok {
		return new(big.Int).Set(bal)
	}
	return new(big.Int)
}

func (s *service) TotalSupply(ctx context.Context) *big.Int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return new(big.Int).Set(s.supply)
}

// Deposit credits newly issued value to addr.
func (s *service) Deposit(ctx context.Context, addr account.Address, amount *big.Int) error {
	_, span := s.tracer.Start(ctx, "ledger.deposit",
		trace.WithAttributes(
			attribute.String("account", addr.Hex()),
			attribute.String("amount", amount.String()),
		),
	)
	defer span.End()

	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.credit(addr, amount)
	s.supply.Add(s.supply, amount)
	return nil
}

// Transfer moves amount from one address to another. A zero amount succeeds
// without touching either balance.
func (s *service) Transfer(ctx context.Context, from, to account.Address, amount *big.Int) error {
	_, span := s.tracer.Start(ctx, "ledger.transfer",
		trace.WithAttributes(
			attribute.String("from", from.Hex()),
			attribute.String("to", to.Hex()),
			attribute.String("amount", amount.String()),
		),
	)
	defer span.End()

	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	if amount.Sign() == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	bal, ok := s.balances[from]
	if !ok || bal.Cmp(amount) < 0 {
		span.SetAttributes(attribute.Bool("insufficient", true))
		return ErrInsufficientFunds
	}

	bal.Sub(bal, amount)
	s.credit(to, amount)
	return nil
}

func (s *service) credit(addr account.Address, amount *big.Int) {
	bal, ok := s.balances[addr]
	if !ok {
		bal = new(big.Int)
		s.balances[addr] = bal
	}
	bal.Add(bal, amount)
}
