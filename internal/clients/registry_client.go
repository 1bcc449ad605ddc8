// internal/clients/registry_client.go
package clients

import (
	"context"
	"fmt"
	"net/http"

	"nftmarket/internal/account"
	"nftmarket/internal/auth"
	"nftmarket/internal/registry"
)

// RegistryClient talks to a registry service. It satisfies
// marketplace.AssetRegistry.
type RegistryClient struct {
	client
	address account.Address
}

func NewRegistryClient(baseURL string, address account.Address, issuer *auth.Issuer) *RegistryClient {
	return &RegistryClient{client: newClient(baseURL, issuer), address: address}
}

// DiscoverRegistry builds a client for the registry at baseURL, learning its
// address from the service.
func DiscoverRegistry(ctx context.Context, baseURL string, issuer *auth.Issuer) (*RegistryClient, error) {
	c := NewRegistryClient(baseURL, account.Zero, issuer)
	col, err := c.Collection(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to discover registry: %w", err)
	}
	c.address = col.Address
	return c, nil
}

func (c *RegistryClient) Address() account.Address {
	return c.address
}

func (c *RegistryClient) Collection(ctx context.Context) (*registry.Collection, error) {
	var col registry.Collection
	if err := c.get(ctx, "/collection", &col); err != nil {
		return nil, err
	}
	return &col, nil
}

func (c *RegistryClient) Mint(ctx context.Context, caller account.Address, uri string) (uint64, error) {
	var resp struct {
		TokenID uint64 `json:"token_id"`
	}
	req := map[string]string{"uri": uri}
	if err := c.send(ctx, http.MethodPost, "/tokens", caller, req, &resp, http.StatusCreated); err != nil {
		return 0, err
	}
	return resp.TokenID, nil
}

func (c *RegistryClient) Token(ctx context.Context, tokenID uint64) (*registry.Token, error) {
	var token registry.Token
	if err := c.get(ctx, fmt.Sprintf("/tokens/%d", tokenID), &token); err != nil {
		return nil, err
	}
	return &token, nil
}

func (c *RegistryClient) OwnerOf(ctx context.Context, tokenID uint64) (account.Address, error) {
	token, err := c.Token(ctx, tokenID)
	if err != nil {
		return account.Zero, err
	}
	return token.Owner, nil
}

func (c *RegistryClient) BalanceOf(ctx context.Context, owner account.Address) (uint64, error) {
	var resp struct {
		Balance uint64 `json:"balance"`
	}
	if err := c.get(ctx, fmt.Sprintf("/owners/%s/balance", owner), &resp); err != nil {
		return 0, err
	}
	return resp.Balance, nil
}

func (c *RegistryClient) Approve(ctx context.Context, caller, to account.Address, tokenID uint64) error {
	req := map[string]account.Address{"to": to}
	return c.send(ctx, http.MethodPost, fmt.Sprintf("/tokens/%d/approve", tokenID), caller, req, nil, http.StatusNoContent)
}

func (c *RegistryClient) SetApprovalForAll(ctx context.Context, caller, operator account.Address, approved bool) error {
	req := struct {
		Operator account.Address `json:"operator"`
		Approved bool            `json:"approved"`
	}{operator, approved}
	return c.send(ctx, http.MethodPost, "/operators", caller, req, nil, http.StatusNoContent)
}

func (c *RegistryClient) IsApprovedForAll(ctx context.Context, owner, operator account.Address) (bool, error) {
	var resp struct {
		Approved bool `json:"approved"`
	}
	if err := c.get(ctx, fmt.Sprintf("/owners/%s/operators/%s", owner, operator), &resp); err != nil {
		return false, err
	}
	return resp.Approved, nil
}

func (c *RegistryClient) TransferFrom(ctx context.Context, caller, from, to account.Address, tokenID uint64) error {
	req := map[string]account.Address{"from": from, "to": to}
	return c.send(ctx, http.MethodPost, fmt.Sprintf("/tokens/%d/transfer", tokenID), caller, req, nil, http.StatusNoContent)
}
