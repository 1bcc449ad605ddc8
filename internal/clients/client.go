// internal/clients/client.go
package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"nftmarket/internal/account"
	"nftmarket/internal/auth"
	"nftmarket/internal/ledger"
	"nftmarket/internal/marketplace"
	"nftmarket/internal/registry"
)

const (
	tokenTTL = 5 * time.Minute

	// DefaultTimeout bounds each request attempt, reads and writes alike.
	DefaultTimeout = 10 * time.Second
)

// remoteErrors are the sentinel errors a service may answer with. They are
// matched by message so callers can use errors.Is across the wire.
var remoteErrors = []error{
	registry.ErrNonexistentToken,
	registry.ErrNotOwnerNorApproved,
	registry.ErrIncorrectOwner,
	registry.ErrTransferToZero,
	registry.ErrApproveToCaller,
	registry.ErrApprovalToCurrentOwner,
	registry.ErrApproveNotAuthorized,
	registry.ErrZeroAddress,
	registry.ErrMintRateExceeded,
	marketplace.ErrInvalidPrice,
	marketplace.ErrItemNotFound,
	marketplace.ErrInsufficientPayment,
	marketplace.ErrAlreadySold,
	marketplace.ErrUnknownRegistry,
	ledger.ErrInsufficientFunds,
	ledger.ErrInvalidAmount,
}

// client is the transport shared by the service clients. Reads are retried,
// writes are sent once.
type client struct {
	baseURL string
	http    *retryablehttp.Client
	issuer  *auth.Issuer
}

func newClient(baseURL string, issuer *auth.Issuer) client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = 3
	rc.RetryWaitMin = 50 * time.Millisecond
	rc.RetryWaitMax = time.Second
	rc.Logger = nil
	rc.HTTPClient.Timeout = DefaultTimeout

	return client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    rc,
		issuer:  issuer,
	}
}

// SetTimeout changes the per-request timeout of the client.
func (c *client) SetTimeout(d time.Duration) {
	c.http.HTTPClient.Timeout = d
}

func (c client) get(ctx context.Context, path string, out interface{}) error {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return remoteError(resp)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// send performs a single authenticated write on behalf of caller.
func (c client) send(ctx context.Context, method, path string, caller account.Address, in, out interface{}, want int) error {
	body, err := json.Marshal(in)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	if c.issuer != nil {
		token, err := c.issuer.Issue(caller, tokenTTL)
		if err != nil {
			return fmt.Errorf("failed to sign request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != want {
		return remoteError(resp)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func remoteError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	msg := strings.TrimSpace(string(raw))
	for _, known := range remoteErrors {
		if msg == known.Error() {
			return known
		}
	}
	return &StatusError{Code: resp.StatusCode, Message: msg}
}

// StatusError is a non-success response that carries no known error.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status code %d: %s", e.Code, e.Message)
}

// IsStatus reports whether err is a StatusError with the given code.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == code
}
