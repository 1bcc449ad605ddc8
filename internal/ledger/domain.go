// internal/ledger/domain.go
package ledger

import (
	"errors"
	"math/big"

	"nftmarket/internal/account"
)

var (
	ErrInsufficientFunds = errors.New("insufficient funds for transfer")
	ErrInvalidAmount     = errors.New("amount must be a non-negative integer")
)

// Balance is the native value held by an address, in wei.
type Balance struct {
	Address account.Address `json:"address"`
	Wei     *big.Int        `json:"wei"`
	Ether   string          `json:"ether"`
}
