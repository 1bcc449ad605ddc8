package marketplace

import (
	"context"
	"math/big"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"nftmarket/internal/account"
	"nftmarket/internal/ledger"
	"nftmarket/internal/registry"
	"nftmarket/internal/units"
)

func TestDeployment(t *testing.T) {
	f := newFixture(t, 1)
	assert.Equal(t, deployer, f.market.FeeAccount())
	assert.Equal(t, uint64(1), f.market.FeePercent())
	assert.Equal(t, account.ContractAddress(deployer, 1), f.market.Address())
	assert.Zero(t, f.market.ItemCount(context.Background()))
}

func TestMakeItemTakesCustody(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 1)

	id := f.list(t, addr1, units.MustToWei("1"))
	assert.Equal(t, uint64(1), id)
	assert.Equal(t, uint64(1), f.market.ItemCount(ctx))

	owner, err := f.nft.OwnerOf(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, f.market.Address(), owner)

	item := f.market.Items(ctx, 1)
	assert.Equal(t, uint64(1), item.ItemID)
	assert.Equal(t, f.nft.Address(), item.NFT)
	assert.Equal(t, uint64(1), item.TokenID)
	assert.Equal(t, addr1, item.Seller)
	assert.Equal(t, units.MustToWei("1").String(), item.Price.String())
	assert.False(t, item.Sold)

	offered := f.events.ofType(TypeOffered)
	require.Len(t, offered, 1)
	assert.Equal(t, OfferedEvent{
		ItemID:  1,
		NFT:     f.nft.Address(),
		TokenID: 1,
		Price:   units.MustToWei("1"),
		Seller:  addr1,
	}, offered[0].Data)
}

func TestMakeItemRejectsZeroPrice(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 1)
	tokenID, err := f.nft.Mint(ctx, addr1, uri)
	require.NoError(t, err)
	require.NoError(t, f.nft.SetApprovalForAll(ctx, addr1, f.market.Address(), true))

	for _, price := range []*big.Int{nil, big.NewInt(0), big.NewInt(-1)} {
		_, err := f.market.MakeItem(ctx, addr1, f.nft.Address(), tokenID, price)
		assert.ErrorIs(t, err, ErrInvalidPrice)
	}
	assert.Zero(t, f.market.ItemCount(ctx))

	owner, err := f.nft.OwnerOf(ctx, tokenID)
	require.NoError(t, err)
	assert.Equal(t, addr1, owner)
	assert.Empty(t, f.events.ofType(TypeOffered))
}

func TestMakeItemSurfacesRegistryErrors(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 1)
	tokenID, err := f.nft.Mint(ctx, addr1, uri)
	require.NoError(t, err)

	// no operator approval yet
	_, err = f.market.MakeItem(ctx, addr1, f.nft.Address(), tokenID, big.NewInt(1))
	assert.Equal(t, registry.ErrNotOwnerNorApproved, err)

	_, err = f.market.MakeItem(ctx, addr1, f.nft.Address(), 99, big.NewInt(1))
	assert.Equal(t, registry.ErrNonexistentToken, err)

	require.NoError(t, f.nft.SetApprovalForAll(ctx, addr2, f.market.Address(), true))
	_, err = f.market.MakeItem(ctx, addr2, f.nft.Address(), tokenID, big.NewInt(1))
	assert.Equal(t, registry.ErrNotOwnerNorApproved, err)

	_, err = f.market.MakeItem(ctx, addr1, account.FromSeed("elsewhere"), tokenID, big.NewInt(1))
	assert.ErrorIs(t, err, ErrUnknownRegistry)

	assert.Zero(t, f.market.ItemCount(ctx))
	assert.Empty(t, f.market.ListItems(ctx))
}

func TestGetTotalPrice(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 1)
	f.list(t, addr1, units.MustToWei("2"))
	f.list(t, addr1, big.NewInt(150))

	assert.Equal(t, units.MustToWei("2.02").String(), f.market.GetTotalPrice(ctx, 1).String())
	// 150 * 1 / 100 truncates to 1
	assert.Equal(t, "151", f.market.GetTotalPrice(ctx, 2).String())
	assert.Equal(t, "0", f.market.GetTotalPrice(ctx, 0).String())
	assert.Equal(t, "0", f.market.GetTotalPrice(ctx, 3).String())
}

func TestPurchaseItem(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 1)
	price := units.MustToWei("2")
	f.list(t, addr1, price)

	sellerBefore := f.ledger.BalanceOf(ctx, addr1)
	feeBefore := f.ledger.BalanceOf(ctx, deployer)
	total := f.market.GetTotalPrice(ctx, 1)

	require.NoError(t, f.market.PurchaseItem(ctx, addr2, 1, total))

	assert.Equal(t, new(big.Int).Add(sellerBefore, price).String(), f.balance(addr1))
	assert.Equal(t, new(big.Int).Add(feeBefore, units.MustToWei("0.02")).String(), f.balance(deployer))
	assert.Equal(t, units.MustToWei("9997.98").String(), f.balance(addr2))
	assert.Equal(t, "0", f.balance(f.market.Address()))

	owner, err := f.nft.OwnerOf(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, addr2, owner)
	assert.True(t, f.market.Items(ctx, 1).Sold)

	bought := f.events.ofType(TypeBought)
	require.Len(t, bought, 1)
	assert.Equal(t, BoughtEvent{
		ItemID:  1,
		NFT:     f.nft.Address(),
		TokenID: 1,
		Price:   price,
		Seller:  addr1,
		Buyer:   addr2,
	}, bought[0].Data)
}

func TestPurchaseItemFailures(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 1)
	price := units.MustToWei("2")
	f.list(t, addr1, price)
	total := f.market.GetTotalPrice(ctx, 1)

	assert.ErrorIs(t, f.market.PurchaseItem(ctx, addr2, 2, total), ErrItemNotFound)
	assert.ErrorIs(t, f.market.PurchaseItem(ctx, addr2, 0, total), ErrItemNotFound)
	assert.ErrorIs(t, f.market.PurchaseItem(ctx, addr2, 1, price), ErrInsufficientPayment)
	assert.ErrorIs(t, f.market.PurchaseItem(ctx, addr2, 1, nil), ErrInsufficientPayment)
	assert.False(t, f.market.Items(ctx, 1).Sold)

	require.NoError(t, f.market.PurchaseItem(ctx, addr2, 1, total))
	assert.ErrorIs(t, f.market.PurchaseItem(ctx, addr3, 1, total), ErrAlreadySold)
	assert.ErrorIs(t, f.market.PurchaseItem(ctx, addr3, 1, units.MustToWei("100")), ErrAlreadySold)
	// payment is checked before the sold flag
	assert.ErrorIs(t, f.market.PurchaseItem(ctx, addr3, 1, price), ErrInsufficientPayment)

	assert.Len(t, f.events.ofType(TypeBought), 1)
}

func TestOverpaymentGoesToFeeAccount(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 1)
	f.list(t, addr1, units.MustToWei("2"))

	require.NoError(t, f.market.PurchaseItem(ctx, addr2, 1, units.MustToWei("3")))
	assert.Equal(t, units.MustToWei("10002").String(), f.balance(addr1))
	assert.Equal(t, units.MustToWei("1").String(), f.balance(deployer))
	assert.Equal(t, units.MustToWei("9997").String(), f.balance(addr2))
}

func TestZeroFeeMarketplace(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 0)
	f.list(t, addr1, big.NewInt(500))

	assert.Equal(t, "500", f.market.GetTotalPrice(ctx, 1).String())
	require.NoError(t, f.market.PurchaseItem(ctx, addr2, 1, big.NewInt(500)))
	assert.Equal(t, "0", f.balance(deployer))
}

func TestPurchaseWithoutFundsChangesNothing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 1)
	f.list(t, addr1, units.MustToWei("2"))
	broke := account.FromSeed("broke")

	err := f.market.PurchaseItem(ctx, broke, 1, units.MustToWei("2.02"))
	assert.ErrorIs(t, err, ledger.ErrInsufficientFunds)

	assert.False(t, f.market.Items(ctx, 1).Sold)
	owner, err := f.nft.OwnerOf(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, f.market.Address(), owner)
	assert.Equal(t, units.MustToWei("10000").String(), f.balance(addr1))
	assert.Empty(t, f.events.ofType(TypeBought))
}

func TestPurchaseRollsBackOnRegistryFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 1, withRegistry(func(r AssetRegistry) AssetRegistry {
		return failingRegistry{AssetRegistry: r, failTo: addr2}
	}))
	f.list(t, addr1, units.MustToWei("2"))

	err := f.market.PurchaseItem(ctx, addr2, 1, units.MustToWei("2.5"))
	assert.ErrorIs(t, err, errBoom)

	assert.Equal(t, units.MustToWei("10000").String(), f.balance(addr1))
	assert.Equal(t, units.MustToWei("10000").String(), f.balance(addr2))
	assert.Equal(t, "0", f.balance(deployer))
	assert.Equal(t, "0", f.balance(f.market.Address()))

	owner, err := f.nft.OwnerOf(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, f.market.Address(), owner)
	assert.False(t, f.market.Items(ctx, 1).Sold)
	assert.Empty(t, f.events.ofType(TypeBought))

	// a different buyer can still complete the sale
	require.NoError(t, f.market.PurchaseItem(ctx, addr3, 1, units.MustToWei("2.02")))
}

func TestPurchaseCommitsWhenTransferReplyIsLost(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 1, withRegistry(func(r AssetRegistry) AssetRegistry {
		return lostReplyRegistry{AssetRegistry: r, replyTo: addr2}
	}))
	f.list(t, addr1, units.MustToWei("2"))

	require.NoError(t, f.market.PurchaseItem(ctx, addr2, 1, units.MustToWei("2.02")))

	owner, err := f.nft.OwnerOf(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, addr2, owner)
	assert.True(t, f.market.Items(ctx, 1).Sold)
	assert.Equal(t, units.MustToWei("10002").String(), f.balance(addr1))
	assert.Equal(t, units.MustToWei("0.02").String(), f.balance(deployer))
	assert.Equal(t, "0", f.balance(f.market.Address()))
	assert.Len(t, f.events.ofType(TypeBought), 1)
}

func TestPurchaseRollsBackOnFundsFailure(t *testing.T) {
	for step := 1; step <= 3; step++ {
		ctx := context.Background()
		funds := &failingFunds{failOn: step}
		f := newFixture(t, 1, withFunds(func(inner Funds) Funds {
			funds.Funds = inner
			return funds
		}))
		f.list(t, addr1, units.MustToWei("2"))

		err := f.market.PurchaseItem(ctx, addr2, 1, units.MustToWei("2.02"))
		assert.ErrorIs(t, err, errBoom, "step %d", step)

		assert.Equal(t, units.MustToWei("10000").String(), f.balance(addr1), "step %d", step)
		assert.Equal(t, units.MustToWei("10000").String(), f.balance(addr2), "step %d", step)
		assert.Equal(t, "0", f.balance(deployer), "step %d", step)
		assert.Equal(t, "0", f.balance(f.market.Address()), "step %d", step)
		assert.False(t, f.market.Items(ctx, 1).Sold, "step %d", step)

		owner, err := f.nft.OwnerOf(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, f.market.Address(), owner, "step %d", step)
	}
}

func TestConcurrentPurchasesSellOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 1)
	f.list(t, addr1, units.MustToWei("2"))
	total := f.market.GetTotalPrice(ctx, 1)

	const buyers = 16
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded []account.Address
	)
	for i := 0; i < buyers; i++ {
		buyer := account.FromSeed("buyer" + string(rune('a'+i)))
		require.NoError(t, f.ledger.Deposit(ctx, buyer, total))

		wg.Add(1)
		go func() {
			defer wg.Done()
			err := f.market.PurchaseItem(ctx, buyer, 1, total)
			if err == nil {
				mu.Lock()
				succeeded = append(succeeded, buyer)
				mu.Unlock()
				return
			}
			assert.ErrorIs(t, err, ErrAlreadySold)
		}()
	}
	wg.Wait()

	require.Len(t, succeeded, 1)
	owner, err := f.nft.OwnerOf(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, succeeded[0], owner)
	assert.Equal(t, "0", f.balance(succeeded[0]))
	assert.Len(t, f.events.ofType(TypeBought), 1)
}

func TestReadAccessors(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 1)
	f.list(t, addr1, big.NewInt(10))
	f.list(t, addr2, big.NewInt(20))

	missing := f.market.Items(ctx, 3)
	assert.Zero(t, missing.ItemID)
	assert.Equal(t, "0", missing.Price.String())

	_, err := f.market.GetItem(ctx, 3)
	assert.ErrorIs(t, err, ErrItemNotFound)

	item, err := f.market.GetItem(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, addr2, item.Seller)

	// returned items are copies
	item.Price.SetInt64(1)
	assert.Equal(t, "20", f.market.Items(ctx, 2).Price.String())

	items := f.market.ListItems(ctx)
	require.Len(t, items, 2)
	assert.Equal(t, uint64(1), items[0].ItemID)
	assert.Equal(t, uint64(2), items[1].ItemID)

	info := f.market.Info(ctx)
	assert.Equal(t, uint64(2), info.ItemCount)
	assert.Equal(t, deployer, info.FeeAccount)
	assert.NotEmpty(t, items[0].Slug())
	assert.NotEqual(t, items[0].Slug(), items[1].Slug())
}

func TestItemInvariants(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		ctx := context.Background()
		feePercent := rapid.Uint64Range(0, 100).Draw(t, "feePercent")
		prices := rapid.SliceOfN(rapid.Int64Range(0, 1_000_000_000_000), 1, 8).Draw(t, "prices")
		f := newFixture(t, feePercent)
		require.NoError(t, f.nft.SetApprovalForAll(ctx, addr1, f.market.Address(), true))

		listed := map[uint64]int64{}
		for _, p := range prices {
			tokenID, err := f.nft.Mint(ctx, addr1, uri)
			require.NoError(t, err)

			before := f.market.ItemCount(ctx)
			id, err := f.market.MakeItem(ctx, addr1, f.nft.Address(), tokenID, big.NewInt(p))
			if p == 0 {
				require.ErrorIs(t, err, ErrInvalidPrice)
				require.Equal(t, before, f.market.ItemCount(ctx))
				continue
			}
			require.NoError(t, err)
			require.Equal(t, before+1, id)
			require.Equal(t, id, f.market.ItemCount(ctx))
			listed[id] = p
		}

		for id, p := range listed {
			want := new(big.Int).Mul(big.NewInt(p), new(big.Int).SetUint64(feePercent))
			want.Quo(want, big.NewInt(100))
			want.Add(want, big.NewInt(p))
			require.Equal(t, want.String(), f.market.GetTotalPrice(ctx, id).String())

			total := f.market.GetTotalPrice(ctx, id)
			require.NoError(t, f.market.PurchaseItem(ctx, addr2, id, total))
			require.True(t, f.market.Items(ctx, id).Sold)
			require.ErrorIs(t, f.market.PurchaseItem(ctx, addr3, id, total), ErrAlreadySold)
		}
	})
}
