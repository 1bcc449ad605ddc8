// internal/units/units.go
package units

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// Decimals is the number of decimal places between one ether and one wei.
const Decimals = 18

var (
	ErrFractionalWei = errors.New("amount has more precision than one wei")
	ErrNegative      = errors.New("amount must not be negative")
)

// ToWei parses a human amount such as "2.02" into wei.
func ToWei(ether string) (*big.Int, error) {
	d, err := decimal.NewFromString(ether)
	if err != nil {
		return nil, fmt.Errorf("failed to parse amount %q: %w", ether, err)
	}
	if d.IsNegative() {
		return nil, ErrNegative
	}
	wei := d.Shift(Decimals)
	if !wei.IsInteger() {
		return nil, ErrFractionalWei
	}
	return wei.BigInt(), nil
}

// MustToWei is ToWei for literals.
func MustToWei(ether string) *big.Int {
	wei, err := ToWei(ether)
	if err != nil {
		panic(err)
	}
	return wei
}

// FromWei formats wei as ether with trailing zeros trimmed.
func FromWei(wei *big.Int) string {
	if wei == nil {
		return "0"
	}
	return decimal.NewFromBigInt(wei, -Decimals).String()
}
