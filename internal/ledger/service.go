// internal/ledger/service.go
package ledger

import (
	"context"
	"math/big"

	"nftmarket/internal/account"
)

// Service defines the native value ledger.
type Service interface {
	BalanceOf(ctx context.Context, addr account.Address) *big.Int
	Deposit(ctx context.Context, addr account.Address, amount *big.Int) error
	Transfer(ctx context.Context, from, to account.Address, amount *big.Int) error
	TotalSupply(ctx context.Context) *big.Int
}
