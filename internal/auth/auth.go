// internal/auth/auth.go
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"go.uber.org/zap"

	"nftmarket/internal/account"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrNoCaller     = errors.New("missing bearer token")
)

type callerKey struct{}

// Issuer signs and verifies bearer tokens whose subject is the caller address.
type Issuer struct {
	secret []byte
}

func NewIssuer(secret string) *Issuer {
	return &Issuer{secret: []byte(secret)}
}

// Issue returns a token identifying addr, valid for ttl.
func (i *Issuer) Issue(addr account.Address, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   addr.Hex(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
}

// Parse verifies token and returns the address it was issued for.
func (i *Issuer) Parse(token string) (account.Address, error) {
	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return i.secret, nil
	})
	if err != nil {
		return account.Zero, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid {
		return account.Zero, ErrInvalidToken
	}

	addr, err := account.ParseAddress(claims.Subject)
	if err != nil {
		return account.Zero, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if addr.IsZero() {
		return account.Zero, fmt.Errorf("%w: zero address subject", ErrInvalidToken)
	}
	return addr, nil
}

// Middleware attaches the caller of a valid bearer token to the request
// context. Requests without a token pass through anonymously; requests with
// a bad token are rejected.
func (i *Issuer) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			next.ServeHTTP(w, r)
			return
		}
		if !strings.HasPrefix(header, "Bearer ") {
			http.Error(w, "authorization must use the Bearer scheme", http.StatusUnauthorized)
			return
		}

		addr, err := i.Parse(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			zap.L().With(zap.Error(err)).Debug("Rejected bearer token")
			http.Error(w, err.Error(), http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithCaller(r.Context(), addr)))
	})
}

func WithCaller(ctx context.Context, addr account.Address) context.Context {
	return context.WithValue(ctx, callerKey{}, addr)
}

// Caller returns the authenticated address of the request, if any.
func Caller(ctx context.Context) (account.Address, bool) {
	addr, ok := ctx.Value(callerKey{}).(account.Address)
	return addr, ok
}

// RequireCaller writes a 401 and returns false when the request is anonymous.
func RequireCaller(w http.ResponseWriter, r *http.Request) (account.Address, bool) {
	addr, ok := Caller(r.Context())
	if !ok {
		http.Error(w, ErrNoCaller.Error(), http.StatusUnauthorized)
	}
	return addr, ok
}
