// internal/marketplace/domain.go
package marketplace

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/gosimple/slug"

	"nftmarket/internal/account"
	"nftmarket/internal/notify"
)

var (
	ErrInvalidPrice        = errors.New("price cant be 0")
	ErrItemNotFound        = errors.New("item doesnt exist")
	ErrInsufficientPayment = errors.New("not enough ether to cover the marketplace fee and item price")
	ErrAlreadySold         = errors.New("item already sold")
	ErrUnknownRegistry     = errors.New("unknown asset registry")
)

const (
	TypeOffered notify.Type = "offered"
	TypeBought  notify.Type = "bought"
)

// Item is a listing held in escrow by the marketplace.
type Item struct {
	ItemID  uint64          `json:"item_id"`
	NFT     account.Address `json:"nft"`
	TokenID uint64          `json:"token_id"`
	Seller  account.Address `json:"seller"`
	Price   *big.Int        `json:"price"`
	Sold    bool            `json:"sold"`
}

// Slug is a stable, URL-safe handle for the listing.
func (i Item) Slug() string {
	return slug.Make(fmt.Sprintf("item %d %s token %d", i.ItemID, i.NFT.Hex(), i.TokenID))
}

func (i Item) clone() Item {
	if i.Price != nil {
		i.Price = new(big.Int).Set(i.Price)
	}
	return i
}

// OfferedEvent is published once an item is listed and in escrow.
type OfferedEvent struct {
	ItemID  uint64          `json:"item_id"`
	NFT     account.Address `json:"nft"`
	TokenID uint64          `json:"token_id"`
	Price   *big.Int        `json:"price"`
	Seller  account.Address `json:"seller"`
}

// BoughtEvent is published once a purchase has settled.
type BoughtEvent struct {
	ItemID  uint64          `json:"item_id"`
	NFT     account.Address `json:"nft"`
	TokenID uint64          `json:"token_id"`
	Price   *big.Int        `json:"price"`
	Seller  account.Address `json:"seller"`
	Buyer   account.Address `json:"buyer"`
}

// Info describes a marketplace deployment.
type Info struct {
	Address    account.Address `json:"address"`
	FeeAccount account.Address `json:"fee_account"`
	FeePercent uint64          `json:"fee_percent"`
	ItemCount  uint64          `json:"item_count"`
}
