// Package money converts between human-readable amounts and on-chain
// integer units. Conversions are pure and decimal-exact: the raw unit
// count is always produced by integer arithmetic on the decimal string,
// never by floating-point multiplication, because a single off-by-one raw
// unit breaks the exact-match comparisons the verifiers depend on.
package money

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// ErrInvalidAmount is returned for negative, non-finite, or unparseable
// amounts.
var ErrInvalidAmount = errors.New("invalid_amount")

// Currency describes a supported settlement currency.
type Currency struct {
	Symbol   string
	Decimals int32
	Native   bool
}

// Supported currencies. ETH is the chain's native coin; USDC is the
// stable token the escrow contract accepts.
var (
	ETH  = Currency{Symbol: "ETH", Decimals: 18, Native: true}
	USDC = Currency{Symbol: "USDC", Decimals: 6}
)

var currencies = map[string]Currency{
	"ETH":  ETH,
	"USDC": USDC,
}

// CurrencyFromSymbol looks up a currency by its symbol.
func CurrencyFromSymbol(symbol string) (Currency, error) {
	c, ok := currencies[symbol]
	if !ok {
		return Currency{}, fmt.Errorf("%w: unknown currency %q", ErrInvalidAmount, symbol)
	}
	return c, nil
}

// ToRawUnits converts a human decimal amount ("5.00") to the smallest-unit
// integer for the currency ("5000000" for USDC). Fractional digits beyond
// the currency's precision are truncated.
func ToRawUnits(humanAmount string, currency Currency) (*big.Int, error) {
	d, err := decimal.NewFromString(humanAmount)
	if err != nil {
		return nil, fmt.Errorf("%w: %q is not a decimal number", ErrInvalidAmount, humanAmount)
	}
	if d.IsNegative() {
		return nil, fmt.Errorf("%w: amount cannot be negative: %s", ErrInvalidAmount, humanAmount)
	}

	// Shift moves the decimal point with integer coefficient arithmetic;
	// Truncate drops any sub-unit remainder.
	raw := d.Shift(currency.Decimals).Truncate(0)
	return raw.BigInt(), nil
}

// ToHumanAmount converts a smallest-unit integer back to a human decimal
// string. Trailing zeros are not emitted ("5000000" raw USDC → "5").
func ToHumanAmount(rawUnits *big.Int, currency Currency) (string, error) {
	if rawUnits == nil {
		return "", fmt.Errorf("%w: nil raw units", ErrInvalidAmount)
	}
	if rawUnits.Sign() < 0 {
		return "", fmt.Errorf("%w: raw units cannot be negative: %s", ErrInvalidAmount, rawUnits)
	}
	return decimal.NewFromBigInt(rawUnits, -currency.Decimals).String(), nil
}

// MustRawUnits is ToRawUnits for amounts known valid at compile time,
// such as test fixtures and constants.
func MustRawUnits(humanAmount string, currency Currency) *big.Int {
	raw, err := ToRawUnits(humanAmount, currency)
	if err != nil {
		panic(err)
	}
	return raw
}
