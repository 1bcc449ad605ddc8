// internal/marketplace/service.go
package marketplace

import (
	"context"
	"math/big"

	"nftmarket/internal/account"
)

// Service defines the escrow marketplace.
type Service interface {
	Address() account.Address
	FeeAccount() account.Address
	FeePercent() uint64
	Info(ctx context.Context) Info

	MakeItem(ctx context.Context, seller, nft account.Address, tokenID uint64, price *big.Int) (uint64, error)
	PurchaseItem(ctx context.Context, buyer account.Address, itemID uint64, payment *big.Int) error
	GetTotalPrice(ctx context.Context, itemID uint64) *big.Int

	ItemCount(ctx context.Context) uint64
	Items(ctx context.Context, itemID uint64) Item
	GetItem(ctx context.Context, itemID uint64) (*Item, error)
	ListItems(ctx context.Context) []Item
}

// AssetRegistry is the part of a token registry the marketplace depends on.
type AssetRegistry interface {
	Address() account.Address
	OwnerOf(ctx context.Context, tokenID uint64) (account.Address, error)
	TransferFrom(ctx context.Context, caller, from, to account.Address, tokenID uint64) error
}

// Registries resolves a registry address to a usable registry.
type Registries interface {
	Lookup(ctx context.Context, nft account.Address) (AssetRegistry, error)
}

// Funds moves native value between accounts.
type Funds interface {
	Transfer(ctx context.Context, from, to account.Address, amount *big.Int) error
}
