// internal/account/address.go
package account

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/sha3"
)

// AddressLength is the number of bytes in an account address.
const AddressLength = 20

var ErrInvalidAddress = errors.New("invalid address")

// Address identifies an account holding native value or tokens.
type Address [AddressLength]byte

// Zero is the empty address. Registries treat it as "no owner".
var Zero Address

// ParseAddress decodes a 0x-prefixed, 40 hex character address.
func ParseAddress(s string) (Address, error) {
	var a Address
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if len(s) != 2*AddressLength {
		return a, fmt.Errorf("%w: %q", ErrInvalidAddress, s)
	}
	if _, err := hex.Decode(a[:], []byte(s)); err != nil {
		return a, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	return a, nil
}

// MustParseAddress is ParseAddress for constants and tests.
func MustParseAddress(s string) Address {
	a, err := ParseAddress(s)
	if err != nil {
		panic(err)
	}
	return a
}

// FromSeed derives a stable address from an arbitrary seed string, the last
// 20 bytes of keccak256(seed).
func FromSeed(seed string) Address {
	return fromHash([]byte(seed))
}

// ContractAddress derives the address of something deployed by deployer at
// the given nonce.
func ContractAddress(deployer Address, nonce uint64) Address {
	buf := make([]byte, AddressLength+8)
	copy(buf, deployer[:])
	binary.BigEndian.PutUint64(buf[AddressLength:], nonce)
	return fromHash(buf)
}

func fromHash(data []byte) Address {
	h := sha3.NewLegacyKeccak256()
	h.Write(data)
	sum := h.Sum(nil)

	var a Address
	copy(a[:], sum[len(sum)-AddressLength:])
	return a
}

func (a Address) IsZero() bool {
	return a == Zero
}

func (a Address) Hex() string {
	return "0x" + hex.EncodeToString(a[:])
}

func (a Address) String() string {
	return a.Hex()
}

func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.Hex()), nil
}

func (a *Address) UnmarshalText(text []byte) error {
	parsed, err := ParseAddress(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
