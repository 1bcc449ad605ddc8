// internal/clients/marketplace_client.go
package clients

import (
	"context"
	"fmt"
	"math/big"
	"net/http"
	"strconv"
	"time"

	"github.com/patrickmn/go-cache"

	"nftmarket/internal/account"
	"nftmarket/internal/auth"
	"nftmarket/internal/ledger"
	"nftmarket/internal/marketplace"
	"nftmarket/pkg/eventstore"
)

// MarketplaceClient talks to a marketplace service and the ledger it hosts.
// Sold items never change again, so they are cached.
type MarketplaceClient struct {
	client
	sold *cache.Cache
}

func NewMarketplaceClient(baseURL string, issuer *auth.Issuer) *MarketplaceClient {
	return &MarketplaceClient{
		client: newClient(baseURL, issuer),
		sold:   cache.New(30*time.Minute, 10*time.Minute),
	}
}

func (c *MarketplaceClient) Info(ctx context.Context) (*marketplace.Info, error) {
	var info marketplace.Info
	if err := c.get(ctx, "/marketplace", &info); err != nil {
		return nil, err
	}
	return &info, nil
}

func (c *MarketplaceClient) ListItems(ctx context.Context) ([]marketplace.Item, error) {
	var items []marketplace.Item
	if err := c.get(ctx, "/items", &items); err != nil {
		return nil, err
	}
	for _, item := range items {
		if item.Sold {
			c.sold.SetDefault(strconv.FormatUint(item.ItemID, 10), item)
		}
	}
	return items, nil
}

func (c *MarketplaceClient) GetItem(ctx context.Context, itemID uint64) (*marketplace.Item, error) {
	key := strconv.FormatUint(itemID, 10)
	if cached, ok := c.sold.Get(key); ok {
		item := cached.(marketplace.Item)
		item.Price = new(big.Int).Set(item.Price)
		return &item, nil
	}

	var item marketplace.Item
	if err := c.get(ctx, fmt.Sprintf("/items/%d", itemID), &item); err != nil {
		return nil, err
	}
	if item.Sold {
		c.sold.SetDefault(key, item)
	}
	return &item, nil
}

func (c *MarketplaceClient) GetTotalPrice(ctx context.Context, itemID uint64) (*big.Int, error) {
	var total marketplace.TotalPrice
	if err := c.get(ctx, fmt.Sprintf("/items/%d/total-price", itemID), &total); err != nil {
		return nil, err
	}
	return total.Wei, nil
}

func (c *MarketplaceClient) MakeItem(ctx context.Context, seller, nft account.Address, tokenID uint64, price *big.Int) (uint64, error) {
	req := struct {
		NFT     account.Address `json:"nft"`
		TokenID uint64          `json:"token_id"`
		Price   *big.Int        `json:"price"`
	}{nft, tokenID, price}

	var resp struct {
		ItemID uint64 `json:"item_id"`
	}
	if err := c.send(ctx, http.MethodPost, "/items", seller, req, &resp, http.StatusCreated); err != nil {
		return 0, err
	}
	return resp.ItemID, nil
}

func (c *MarketplaceClient) PurchaseItem(ctx context.Context, buyer account.Address, itemID uint64, payment *big.Int) error {
	req := map[string]*big.Int{"payment": payment}
	return c.send(ctx, http.MethodPost, fmt.Sprintf("/items/%d/purchase", itemID), buyer, req, nil, http.StatusNoContent)
}

func (c *MarketplaceClient) History(ctx context.Context, itemID uint64) ([]eventstore.Event, error) {
	var events []eventstore.Event
	if err := c.get(ctx, fmt.Sprintf("/items/%d/history", itemID), &events); err != nil {
		return nil, err
	}
	return events, nil
}

func (c *MarketplaceClient) Balance(ctx context.Context, addr account.Address) (*ledger.Balance, error) {
	var bal ledger.Balance
	if err := c.get(ctx, fmt.Sprintf("/balances/%s", addr), &bal); err != nil {
		return nil, err
	}
	return &bal, nil
}

// Deposit credits addr through the development faucet.
func (c *MarketplaceClient) Deposit(ctx context.Context, addr account.Address, amount *big.Int) (*ledger.Balance, error) {
	var bal ledger.Balance
	req := map[string]*big.Int{"amount": amount}
	if err := c.send(ctx, http.MethodPost, fmt.Sprintf("/balances/%s/deposit", addr), addr, req, &bal, http.StatusOK); err != nil {
		return nil, err
	}
	return &bal, nil
}
