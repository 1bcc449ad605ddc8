// internal/registry/service.go
package registry

import (
	"context"

	"nftmarket/internal/account"
)

// Service defines an ERC-721 style asset registry.
type Service interface {
	Address() account.Address
	Collection(ctx context.Context) Collection

	Mint(ctx context.Context, caller account.Address, uri string) (uint64, error)
	TokenCount(ctx context.Context) uint64
	Token(ctx context.Context, tokenID uint64) (*Token, error)
	OwnerOf(ctx context.Context, tokenID uint64) (account.Address, error)
	BalanceOf(ctx context.Context, owner account.Address) (uint64, error)
	TokenURI(ctx context.Context, tokenID uint64) (string, error)

	Approve(ctx context.Context, caller, to account.Address, tokenID uint64) error
	GetApproved(ctx context.Context, tokenID uint64) (account.Address, error)
	SetApprovalForAll(ctx context.Context, caller, operator account.Address, approved bool) error
	IsApprovedForAll(ctx context.Context, owner, operator account.Address) (bool, error)

	TransferFrom(ctx context.Context, caller, from, to account.Address, tokenID uint64) error
}
