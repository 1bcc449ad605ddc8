// internal/registry/implementation.go
package registry

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"nftmarket/internal/account"
	"nftmarket/internal/notify"
)

// Config holds the immutable deployment parameters of a registry.
type Config struct {
	Address account.Address
	Name    string
	Symbol  string

	// MintRate bounds mints per second across all callers. Zero disables
	// the limit.
	MintRate  rate.Limit
	MintBurst int
}

type token struct {
	owner    account.Address
	uri      string
	approved account.Address
}

// service implements the Service interface in memory.
type service struct {
	address account.Address
	name    string
	symbol  string

	mu         sync.RWMutex
	tokenCount uint64
	tokens     map[uint64]*token
	balances   map[account.Address]uint64
	operators  map[account.Address]map[account.Address]bool

	notifier    notify.Notifier
	rateLimiter *rate.Limiter
	tracer      trace.Tracer
}

// NewService creates a new registry instance.
func NewService(cfg Config, notifier notify.Notifier) Service {
	if cfg.Name == "" {
		cfg.Name = DefaultName
	}
	if cfg.Symbol == "" {
		cfg.Symbol = DefaultSymbol
	}
	if notifier == nil {
		notifier = notify.Discard
	}

	limit, burst := rate.Inf, 0
	if cfg.MintRate > 0 {
		limit, burst = cfg.MintRate, cfg.MintBurst
		if burst < 1 {
			burst = 1
		}
	}

	return &service{
		address:     cfg.Address,
		name:        cfg.Name,
		symbol:      cfg.Symbol,
		tokens:      make(map[uint64]*token),
		balances:    make(map[account.Address]uint64),
		operators:   make(map[account.Address]map[account.Address]bool),
		notifier:    notifier,
		rateLimiter: rate.NewLimiter(limit, burst),
		tracer:      otel.Tracer("nftmarket/registry"),
	}
}

func (s *service) Address() account.Address {
	return s.address
}

func (s *service) Collection(ctx context.Context) Collection {
	return Collection{
		Address:    s.address,
		Name:       s.name,
		Symbol:     s.symbol,
		TokenCount: s.TokenCount(ctx),
	}
}

// Mint issues the next token id to caller.
func (s *service) Mint(ctx context.Context, caller account.Address, uri string) (uint64, error) {
	ctx, span := s.tracer.Start(ctx, "registry.mint",
		trace.WithAttributes(attribute.String("caller", caller.Hex())),
	)
	defer span.End()

	if caller.IsZero() {
		return 0, ErrZeroAddress
	}
	if !s.rateLimiter.Allow() {
		return 0, ErrMintRateExceeded
	}

	s.mu.Lock()
	s.tokenCount++
	id := s.tokenCount
	s.tokens[id] = &token{owner: caller, uri: uri}
	s.balances[caller]++
	s.mu.Unlock()

	span.SetAttributes(attribute.Int64("token.id", int64(id)))
	zap.L().With(
		zap.String("collection", s.address.Hex()),
		zap.Uint64("tokenId", id),
		zap.String("owner", caller.Hex()),
	).Info("Token minted")

	s.notifier.Notify(ctx, TypeTransfer, TransferEvent{
		Collection: s.address,
		From:       account.Zero,
		To:         caller,
		TokenID:    id,
	})
	return id, nil
}

func (s *service) TokenCount(ctx context.Context) uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tokenCount
}

func (s *service) Token(ctx context.Context, tokenID uint64) (*Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tokens[tokenID]
	if !ok {
		return nil, ErrNonexistentToken
	}
	return &Token{ID: tokenID, Owner: t.owner, URI: t.uri, Approved: t.approved}, nil
}

func (s *service) OwnerOf(ctx context.Context, tokenID uint64) (account.Address, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tokens[tokenID]
	if !ok {
		return account.Zero, ErrNonexistentToken
	}
	return t.owner, nil
}

func (s *service) BalanceOf(ctx context.Context, owner account.Address) (uint64, error) {
	if owner.IsZero() {
		return 0, ErrZeroAddress
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.balances[owner], nil
}

func (s *service) TokenURI(ctx context.Context, tokenID uint64) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tokens[tokenID]
	if !ok {
		return "", ErrNonexistentToken
	}
	return t.uri, nil
}

// Approve lets to transfer a single token. The owner or one of its operators
// may call it.
func (s *service) Approve(ctx context.Context, caller, to account.Address, tokenID uint64) error {
	s.mu.Lock()
	t, ok := s.tokens[tokenID]
	if !ok {
		s.mu.Unlock()
		return ErrNonexistentToken
	}
	owner := t.owner
	if to == owner {
		s.mu.Unlock()
		return ErrApprovalToCurrentOwner
	}
	if caller != owner && !s.operators[owner][caller] {
		s.mu.Unlock()
		return ErrApproveNotAuthorized
	}
	t.approved = to
	s.mu.Unlock()

	s.notifier.Notify(ctx, TypeApproval, ApprovalEvent{
		Collection: s.address,
		Owner:      owner,
		Approved:   to,
		TokenID:    tokenID,
	})
	return nil
}

func (s *service) GetApproved(ctx context.Context, tokenID uint64) (account.Address, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tokens[tokenID]
	if !ok {
		return account.Zero, ErrNonexistentToken
	}
	return t.approved, nil
}

// SetApprovalForAll grants or revokes operator's right to move every token
// caller owns, now or later.
func (s *service) SetApprovalForAll(ctx context.Context, caller, operator account.Address, approved bool) error {
	if caller == operator {
		return ErrApproveToCaller
	}

	s.mu.Lock()
	ops, ok := s.operators[caller]
	if !ok {
		ops = make(map[account.Address]bool)
		s.operators[caller] = ops
	}
	if approved {
		ops[operator] = true
	} else {
		delete(ops, operator)
	}
	s.mu.Unlock()

	zap.L().With(
		zap.String("collection", s.address.Hex()),
		zap.String("owner", caller.Hex()),
		zap.String("operator", operator.Hex()),
		zap.Bool("approved", approved),
	).Debug("Operator approval changed")

	s.notifier.Notify(ctx, TypeApprovalForAll, ApprovalForAllEvent{
		Collection: s.address,
		Owner:      caller,
		Operator:   operator,
		Approved:   approved,
	})
	return nil
}

func (s *service) IsApprovedForAll(ctx context.Context, owner, operator account.Address) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.operators[owner][operator], nil
}

// authorized reports whether caller may move t. The zero address is never
// authorized, even though it is the unset value of t.approved.
func (s *service) authorized(caller account.Address, t *token) bool {
	if caller.IsZero() {
		return false
	}
	return caller == t.owner || s.operators[t.owner][caller] || caller == t.approved
}

// TransferFrom moves tokenID from -> to on behalf of caller, who must be the
// owner, an operator of the owner, or the token's approved address.
func (s *service) TransferFrom(ctx context.Context, caller, from, to account.Address, tokenID uint64) error {
	ctx, span := s.tracer.Start(ctx, "registry.transfer_from",
		trace.WithAttributes(
			attribute.String("caller", caller.Hex()),
			attribute.String("from", from.Hex()),
			attribute.String("to", to.Hex()),
			attribute.Int64("token.id", int64(tokenID)),
		),
	)
	defer span.End()

	s.mu.Lock()
	t, ok := s.tokens[tokenID]
	if !ok {
		s.mu.Unlock()
		return ErrNonexistentToken
	}
	if !s.authorized(caller, t) {
		s.mu.Unlock()
		span.SetAttributes(attribute.Bool("unauthorized", true))
		return ErrNotOwnerNorApproved
	}
	if t.owner != from {
		s.mu.Unlock()
		return ErrIncorrectOwner
	}
	if to.IsZero() {
		s.mu.Unlock()
		return ErrTransferToZero
	}

	t.approved = account.Zero
	s.balances[from]--
	s.balances[to]++
	t.owner = to
	s.mu.Unlock()

	s.notifier.Notify(ctx, TypeTransfer, TransferEvent{
		Collection: s.address,
		From:       from,
		To:         to,
		TokenID:    tokenID,
	})
	return nil
}
