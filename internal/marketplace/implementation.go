// internal/marketplace/implementation.go
package marketplace

import (
	"context"
	"math/big"
	"sort"
	"sync"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"nftmarket/internal/account"
	"nftmarket/internal/notify"
)

// Config holds the immutable deployment parameters of a marketplace.
type Config struct {
	// FeeAccount receives every fee and overpayment. It is the deployer.
	FeeAccount account.Address
	FeePercent uint64

	// Address is where escrowed tokens and payments are held. When zero it
	// is derived from FeeAccount.
	Address account.Address
}

// service implements the Service interface in memory.
type service struct {
	address    account.Address
	feeAccount account.Address
	feePercent uint64

	mu        sync.Mutex
	itemCount uint64
	items     map[uint64]*Item

	registries Registries
	funds      Funds
	notifier   notify.Notifier

	tracer   trace.Tracer
	listings metric.Int64Counter
	sales    metric.Int64Counter
	fees     metric.Float64Counter
}

// NewService creates a new marketplace instance.
func NewService(cfg Config, registries Registries, funds Funds, notifier notify.Notifier) Service {
	if cfg.Address.IsZero() {
		cfg.Address = account.ContractAddress(cfg.FeeAccount, 1)
	}
	if notifier == nil {
		notifier = notify.Discard
	}

	meter := otel.Meter("nftmarket/marketplace")
	listings, err := meter.Int64Counter("marketplace.listings",
		metric.WithDescription("Items offered for sale"))
	if err != nil {
		zap.L().With(zap.Error(err)).Warn("Failed to create listings counter")
	}
	sales, err := meter.Int64Counter("marketplace.sales",
		metric.WithDescription("Items sold"))
	if err != nil {
		zap.L().With(zap.Error(err)).Warn("Failed to create sales counter")
	}
	fees, err := meter.Float64Counter("marketplace.fees",
		metric.WithDescription("Value paid to the fee account"),
		metric.WithUnit("ether"))
	if err != nil {
		zap.L().With(zap.Error(err)).Warn("Failed to create fees counter")
	}

	return &service{
		address:    cfg.Address,
		feeAccount: cfg.FeeAccount,
		feePercent: cfg.FeePercent,
		items:      make(map[uint64]*Item),
		registries: registries,
		funds:      funds,
		notifier:   notifier,
		tracer:     otel.Tracer("nftmarket/marketplace"),
		listings:   listings,
		sales:      sales,
		fees:       fees,
	}
}

func (s *service) Address() account.Address {
	return s.address
}

func (s *service) FeeAccount() account.Address {
	return s.feeAccount
}

func (s *service) FeePercent() uint64 {
	return s.feePercent
}

func (s *service) Info(ctx context.Context) Info {
	return Info{
		Address:    s.address,
		FeeAccount: s.feeAccount,
		FeePercent: s.feePercent,
		ItemCount:  s.ItemCount(ctx),
	}
}

// MakeItem takes custody of tokenID from seller and lists it at price.
func (s *service) MakeItem(ctx context.Context, seller, nft account.Address, tokenID uint64, price *big.Int) (uint64, error) {
	ctx, span := s.tracer.Start(ctx, "marketplace.make_item",
		trace.WithAttributes(
			attribute.String("seller", seller.Hex()),
			attribute.String("nft", nft.Hex()),
			attribute.Int64("token.id", int64(tokenID)),
		),
	)
	defer span.End()

	if price == nil || price.Sign() <= 0 {
		return 0, ErrInvalidPrice
	}

	s.mu.Lock()
	registry, err := s.registries.Lookup(ctx, nft)
	if err != nil {
		s.mu.Unlock()
		return 0, err
	}

	// Registry errors are surfaced as-is so callers can match them.
	if err := registry.TransferFrom(ctx, s.address, seller, s.address, tokenID); err != nil {
		s.mu.Unlock()
		span.RecordError(err)
		return 0, err
	}

	s.itemCount++
	item := &Item{
		ItemID:  s.itemCount,
		NFT:     nft,
		TokenID: tokenID,
		Seller:  seller,
		Price:   new(big.Int).Set(price),
	}
	s.items[item.ItemID] = item
	offered := OfferedEvent{
		ItemID:  item.ItemID,
		NFT:     nft,
		TokenID: tokenID,
		Price:   new(big.Int).Set(price),
		Seller:  seller,
	}
	s.mu.Unlock()

	span.SetAttributes(attribute.Int64("item.id", int64(offered.ItemID)))
	if s.listings != nil {
		s.listings.Add(ctx, 1, metric.WithAttributes(attribute.String("nft", nft.Hex())))
	}
	zap.L().With(
		zap.Uint64("itemId", offered.ItemID),
		zap.String("nft", nft.Hex()),
		zap.Uint64("tokenId", tokenID),
		zap.String("price", price.String()),
		zap.String("seller", seller.Hex()),
	).Info("Item offered")

	s.notifier.Notify(ctx, TypeOffered, offered)
	return offered.ItemID, nil
}

// PurchaseItem settles itemID for buyer. Payment above the total price goes
// to the fee account.
func (s *service) PurchaseItem(ctx context.Context, buyer account.Address, itemID uint64, payment *big.Int) error {
	ctx, span := s.tracer.Start(ctx, "marketplace.purchase_item",
		trace.WithAttributes(
			attribute.String("buyer", buyer.Hex()),
			attribute.Int64("item.id", int64(itemID)),
		),
	)
	defer span.End()

	if payment == nil {
		payment = new(big.Int)
	}

	s.mu.Lock()
	item, ok := s.items[itemID]
	if !ok {
		s.mu.Unlock()
		return ErrItemNotFound
	}
	total := s.totalPrice(item.Price)
	if payment.Cmp(total) < 0 {
		s.mu.Unlock()
		return ErrInsufficientPayment
	}
	if item.Sold {
		s.mu.Unlock()
		return ErrAlreadySold
	}

	registry, err := s.registries.Lookup(ctx, item.NFT)
	if err != nil {
		s.mu.Unlock()
		return err
	}

	fee := new(big.Int).Sub(payment, item.Price)
	var compensations []func()
	rollback := func() {
		for i := len(compensations) - 1; i >= 0; i-- {
			compensations[i]()
		}
	}
	move := func(from, to account.Address, amount *big.Int) error {
		if err := s.funds.Transfer(ctx, from, to, amount); err != nil {
			return err
		}
		compensations = append(compensations, func() {
			if err := s.funds.Transfer(ctx, to, from, amount); err != nil {
				zap.L().With(
					zap.Uint64("itemId", itemID),
					zap.String("from", to.Hex()),
					zap.String("to", from.Hex()),
					zap.String("amount", amount.String()),
					zap.Error(err),
				).Error("Failed to compensate transfer")
			}
		})
		return nil
	}

	steps := []func() error{
		func() error { return move(buyer, s.address, payment) },
		func() error { return move(s.address, item.Seller, item.Price) },
		func() error { return move(s.address, s.feeAccount, fee) },
		func() error { return s.deliver(ctx, registry, item.TokenID, buyer) },
	}
	for _, step := range steps {
		if err := step(); err != nil {
			rollback()
			s.mu.Unlock()
			span.RecordError(err)
			zap.L().With(
				zap.Uint64("itemId", itemID),
				zap.String("buyer", buyer.Hex()),
				zap.Error(err),
			).Warn("Purchase rolled back")
			return err
		}
	}

	item.Sold = true
	bought := BoughtEvent{
		ItemID:  item.ItemID,
		NFT:     item.NFT,
		TokenID: item.TokenID,
		Price:   new(big.Int).Set(item.Price),
		Seller:  item.Seller,
		Buyer:   buyer,
	}
	s.mu.Unlock()

	if s.sales != nil {
		s.sales.Add(ctx, 1, metric.WithAttributes(attribute.String("nft", bought.NFT.Hex())))
	}
	if s.fees != nil {
		s.fees.Add(ctx, decimal.NewFromBigInt(fee, -18).InexactFloat64())
	}
	zap.L().With(
		zap.Uint64("itemId", itemID),
		zap.String("buyer", buyer.Hex()),
		zap.String("payment", payment.String()),
		zap.String("fee", fee.String()),
	).Info("Item bought")

	s.notifier.Notify(ctx, TypeBought, bought)
	return nil
}

// deliver moves tokenID from escrow to buyer. A remote registry can fail
// after applying the transfer, so an error is only reported when the buyer
// does not hold the token afterwards.
func (s *service) deliver(ctx context.Context, registry AssetRegistry, tokenID uint64, buyer account.Address) error {
	err := registry.TransferFrom(ctx, s.address, s.address, buyer, tokenID)
	if err == nil {
		return nil
	}
	owner, ownerErr := registry.OwnerOf(ctx, tokenID)
	if ownerErr != nil || owner != buyer {
		return err
	}
	zap.L().With(
		zap.String("nft", registry.Address().Hex()),
		zap.Uint64("tokenId", tokenID),
		zap.String("buyer", buyer.Hex()),
		zap.Error(err),
	).Warn("Registry reported an error but the token was delivered")
	return nil
}

// GetTotalPrice returns price plus fee, or zero for an unknown item.
func (s *service) GetTotalPrice(ctx context.Context, itemID uint64) *big.Int {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[itemID]
	if !ok {
		return new(big.Int)
	}
	return s.totalPrice(item.Price)
}

func (s *service) totalPrice(price *big.Int) *big.Int {
	fee := new(big.Int).Mul(price, new(big.Int).SetUint64(s.feePercent))
	fee.Quo(fee, big.NewInt(100))
	return fee.Add(fee, price)
}

func (s *service) ItemCount(ctx context.Context) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.itemCount
}

// Items mirrors the public mapping accessor: a missing id yields the zero
// Item rather than an error.
func (s *service) Items(ctx context.Context, itemID uint64) Item {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[itemID]
	if !ok {
		return Item{Price: new(big.Int)}
	}
	return item.clone()
}

func (s *service) GetItem(ctx context.Context, itemID uint64) (*Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[itemID]
	if !ok {
		return nil, ErrItemNotFound
	}
	c := item.clone()
	return &c, nil
}

func (s *service) ListItems(ctx context.Context) []Item {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := make([]Item, 0, len(s.items))
	for _, item := range s.items {
		items = append(items, item.clone())
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ItemID < items[j].ItemID })
	return items
}
