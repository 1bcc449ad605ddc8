// cmd/nftctl/main.go
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"nftmarket/internal/account"
	"nftmarket/internal/auth"
	"nftmarket/internal/clients"
	"nftmarket/internal/config"
	"nftmarket/internal/units"
)

func main() {
	config.Init()
	cfg := config.Get()

	app := &cli.App{
		Name:  "nftctl",
		Usage: "mint, list and buy tokens on the marketplace",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "registry", Value: cfg.Registry.URL, EnvVars: []string{"REGISTRY_URL"}, Usage: "registry service URL"},
			&cli.StringFlag{Name: "marketplace", Value: cfg.Marketplace.URL, EnvVars: []string{"MARKETPLACE_URL"}, Usage: "marketplace service URL"},
			&cli.StringFlag{Name: "secret", Value: cfg.JWTSecret, EnvVars: []string{"JWT_SECRET"}, Usage: "secret used to sign caller tokens"},
			&cli.StringFlag{Name: "as", Value: "addr1", Usage: "caller address, or a seed to derive one from"},
		},
		Commands: []*cli.Command{
			{Name: "whoami", Usage: "print the caller address", Action: whoami},
			{Name: "collection", Usage: "show the registry collection", Action: collection},
			{Name: "mint", Usage: "mint a token", ArgsUsage: "<uri>", Action: mint},
			{Name: "token", Usage: "show a token", ArgsUsage: "<token-id>", Action: token},
			{Name: "approve-market", Usage: "let the marketplace move all of the caller's tokens", Action: approveMarket},
			{Name: "list", Usage: "list a token for sale", ArgsUsage: "<token-id> <price-ether>", Action: list},
			{Name: "items", Usage: "show every listing", Action: items},
			{Name: "item", Usage: "show a listing", ArgsUsage: "<item-id>", Action: item},
			{Name: "price", Usage: "show the total price of a listing", ArgsUsage: "<item-id>", Action: price},
			{
				Name:      "buy",
				Usage:     "buy a listing",
				ArgsUsage: "<item-id>",
				Action:    buy,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "pay", Usage: "amount in ether to pay, defaults to the total price"},
				},
			},
			{Name: "history", Usage: "show the journal of a listing", ArgsUsage: "<item-id>", Action: history},
			{Name: "balance", Usage: "show a ledger balance", ArgsUsage: "[address]", Action: balance},
			{Name: "deposit", Usage: "credit the caller from the development faucet", ArgsUsage: "<ether>", Action: deposit},
		},
	}

	if err := app.Run(os.Args); err != nil {
		zap.L().With(zap.Error(err)).Fatal("Command failed")
	}
}

func parseAccount(s string) account.Address {
	if addr, err := account.ParseAddress(s); err == nil {
		return addr
	}
	return account.FromSeed(s)
}

func caller(c *cli.Context) account.Address {
	return parseAccount(c.String("as"))
}

func registryClient(c *cli.Context) (*clients.RegistryClient, error) {
	return clients.DiscoverRegistry(c.Context, c.String("registry"), auth.NewIssuer(c.String("secret")))
}

func marketClient(c *cli.Context) *clients.MarketplaceClient {
	return clients.NewMarketplaceClient(c.String("marketplace"), auth.NewIssuer(c.String("secret")))
}

func idArg(c *cli.Context, n int) (uint64, error) {
	id, err := strconv.ParseUint(c.Args().Get(n), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid id %q: %w", c.Args().Get(n), err)
	}
	return id, nil
}

func output(c *cli.Context, v interface{}) error {
	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func whoami(c *cli.Context) error {
	return output(c, map[string]string{"address": caller(c).Hex()})
}

func collection(c *cli.Context) error {
	rc, err := registryClient(c)
	if err != nil {
		return err
	}
	col, err := rc.Collection(c.Context)
	if err != nil {
		return err
	}
	return output(c, col)
}

func mint(c *cli.Context) error {
	rc, err := registryClient(c)
	if err != nil {
		return err
	}
	id, err := rc.Mint(c.Context, caller(c), c.Args().First())
	if err != nil {
		return err
	}
	return output(c, map[string]uint64{"token_id": id})
}

func token(c *cli.Context) error {
	id, err := idArg(c, 0)
	if err != nil {
		return err
	}
	rc, err := registryClient(c)
	if err != nil {
		return err
	}
	t, err := rc.Token(c.Context, id)
	if err != nil {
		return err
	}
	return output(c, t)
}

func approveMarket(c *cli.Context) error {
	rc, err := registryClient(c)
	if err != nil {
		return err
	}
	info, err := marketClient(c).Info(c.Context)
	if err != nil {
		return err
	}
	if err := rc.SetApprovalForAll(c.Context, caller(c), info.Address, true); err != nil {
		return err
	}
	return output(c, map[string]interface{}{"operator": info.Address, "approved": true})
}

func list(c *cli.Context) error {
	tokenID, err := idArg(c, 0)
	if err != nil {
		return err
	}
	wei, err := units.ToWei(c.Args().Get(1))
	if err != nil {
		return err
	}
	rc, err := registryClient(c)
	if err != nil {
		return err
	}
	id, err := marketClient(c).MakeItem(c.Context, caller(c), rc.Address(), tokenID, wei)
	if err != nil {
		return err
	}
	return output(c, map[string]uint64{"item_id": id})
}

func items(c *cli.Context) error {
	all, err := marketClient(c).ListItems(c.Context)
	if err != nil {
		return err
	}
	return output(c, all)
}

func item(c *cli.Context) error {
	id, err := idArg(c, 0)
	if err != nil {
		return err
	}
	it, err := marketClient(c).GetItem(c.Context, id)
	if err != nil {
		return err
	}
	return output(c, map[string]interface{}{"item": it, "slug": it.Slug(), "price_ether": units.FromWei(it.Price)})
}

func price(c *cli.Context) error {
	id, err := idArg(c, 0)
	if err != nil {
		return err
	}
	total, err := marketClient(c).GetTotalPrice(c.Context, id)
	if err != nil {
		return err
	}
	return output(c, map[string]interface{}{"item_id": id, "wei": total, "ether": units.FromWei(total)})
}

func buy(c *cli.Context) error {
	id, err := idArg(c, 0)
	if err != nil {
		return err
	}
	mc := marketClient(c)

	payment, err := mc.GetTotalPrice(c.Context, id)
	if err != nil {
		return err
	}
	if pay := c.String("pay"); pay != "" {
		if payment, err = units.ToWei(pay); err != nil {
			return err
		}
	}

	if err := mc.PurchaseItem(c.Context, caller(c), id, payment); err != nil {
		return err
	}
	return output(c, map[string]interface{}{"item_id": id, "paid": units.FromWei(payment)})
}

func history(c *cli.Context) error {
	id, err := idArg(c, 0)
	if err != nil {
		return err
	}
	events, err := marketClient(c).History(c.Context, id)
	if err != nil {
		return err
	}
	return output(c, events)
}

func balance(c *cli.Context) error {
	addr := caller(c)
	if c.Args().Present() {
		addr = parseAccount(c.Args().First())
	}
	bal, err := marketClient(c).Balance(c.Context, addr)
	if err != nil {
		return err
	}
	return output(c, bal)
}

func deposit(c *cli.Context) error {
	wei, err := units.ToWei(c.Args().First())
	if err != nil {
		return err
	}
	bal, err := marketClient(c).Deposit(c.Context, caller(c), wei)
	if err != nil {
		return err
	}
	return output(c, bal)
}
