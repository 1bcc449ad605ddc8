// internal/registry/domain.go
package registry

import (
	"errors"

	"nftmarket/internal/account"
	"nftmarket/internal/notify"
)

const (
	DefaultName   = "iVobs NFT"
	DefaultSymbol = "DSP"
)

var (
	ErrNonexistentToken       = errors.New("ERC721: invalid token ID")
	ErrNotOwnerNorApproved    = errors.New("ERC721: caller is not token owner or approved")
	ErrIncorrectOwner         = errors.New("ERC721: transfer from incorrect owner")
	ErrTransferToZero         = errors.New("ERC721: transfer to the zero address")
	ErrApproveToCaller        = errors.New("ERC721: approve to caller")
	ErrApprovalToCurrentOwner = errors.New("ERC721: approval to current owner")
	ErrApproveNotAuthorized   = errors.New("ERC721: approve caller is not token owner or approved for all")
	ErrZeroAddress            = errors.New("ERC721: address zero is not a valid owner")
	ErrMintRateExceeded       = errors.New("mint rate limit exceeded")
)

const (
	TypeTransfer       notify.Type = "transfer"
	TypeApproval       notify.Type = "approval"
	TypeApprovalForAll notify.Type = "approval_for_all"
)

// Collection describes a registry instance.
type Collection struct {
	Address    account.Address `json:"address"`
	Name       string          `json:"name"`
	Symbol     string          `json:"symbol"`
	TokenCount uint64          `json:"token_count"`
}

// Token is a minted asset and its current custody.
type Token struct {
	ID       uint64          `json:"token_id"`
	Owner    account.Address `json:"owner"`
	URI      string          `json:"uri"`
	Approved account.Address `json:"approved"`
}

// TransferEvent is published on every mint and custody change. From is the
// zero address for mints.
type TransferEvent struct {
	Collection account.Address `json:"collection"`
	From       account.Address `json:"from"`
	To         account.Address `json:"to"`
	TokenID    uint64          `json:"token_id"`
}

// ApprovalEvent is published when a single-token approval is set.
type ApprovalEvent struct {
	Collection account.Address `json:"collection"`
	Owner      account.Address `json:"owner"`
	Approved   account.Address `json:"approved"`
	TokenID    uint64          `json:"token_id"`
}

// ApprovalForAllEvent is published when an operator is granted or revoked.
type ApprovalForAllEvent struct {
	Collection account.Address `json:"collection"`
	Owner      account.Address `json:"owner"`
	Operator   account.Address `json:"operator"`
	Approved   bool            `json:"approved"`
}
