// Package units converts between human decimal amounts and integer
// smallest-unit amounts (lamports, token base units).
package units

import (
	"fmt"
	"math"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

var maxUint64 = decimal.NewFromBigInt(new(big.Int).SetUint64(math.MaxUint64), 0)

// ParseUnits scales a decimal string into smallest units. It rejects
// negative values, more fractional digits than decimals, and values
// that overflow uint64.
func ParseUnits(s string, decimals int) (uint64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("amount is required")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q", s)
	}
	if d.IsNegative() {
		return 0, fmt.Errorf("amount must not be negative")
	}
	if -d.Exponent() > int32(decimals) && !d.Equal(d.Truncate(int32(decimals))) {
		return 0, fmt.Errorf("amount has more than %d decimal places", decimals)
	}
	scaled := d.Shift(int32(decimals))
	if scaled.GreaterThan(maxUint64) {
		return 0, fmt.Errorf("amount %s is too large", s)
	}
	return scaled.BigInt().Uint64(), nil
}

// FormatUnits renders a smallest-unit amount as a decimal string without
// trailing zeros, e.g. FormatUnits(100000000, 9) == "0.1".
func FormatUnits(amount uint64, decimals int) string {
	return fromUnits(amount, decimals).String()
}

// FormatRounded renders amount with at most places fractional digits,
// rounding half away from zero.
func FormatRounded(amount uint64, decimals int, places int32) string {
	return fromUnits(amount, decimals).Round(places).String()
}

func fromUnits(amount uint64, decimals int) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(amount), -int32(decimals))
}

// PercentOf returns floor(amount * pct / 100).
func PercentOf(amount uint64, pct uint32) uint64 {
	return mulDiv(amount, uint64(pct), 100)
}

// BpsOf returns floor(amount * bps / 10000).
func BpsOf(amount uint64, bps uint32) uint64 {
	return mulDiv(amount, uint64(bps), 10_000)
}

func mulDiv(a, b, div uint64) uint64 {
	n := new(big.Int).SetUint64(a)
	n.Mul(n, new(big.Int).SetUint64(b))
	n.Quo(n, new(big.Int).SetUint64(div))
	if !n.IsUint64() {
		return math.MaxUint64
	}
	return n.Uint64()
}

// ParsePercentBps parses a percentage such as "2.5" into basis points (250).
// The value must be in (0, 100] with at most two decimal places.
func ParsePercentBps(s string) (uint32, error) {
	d, err := decimal.NewFromString(strings.TrimSuffix(strings.TrimSpace(s), "%"))
	if err != nil {
		return 0, fmt.Errorf("invalid percentage %q", s)
	}
	if !d.IsPositive() || d.GreaterThan(decimal.NewFromInt(100)) {
		return 0, fmt.Errorf("percentage must be greater than 0 and at most 100")
	}
	bps := d.Shift(2)
	if !bps.Equal(bps.Truncate(0)) {
		return 0, fmt.Errorf("percentage supports at most two decimal places")
	}
	return uint32(bps.IntPart()), nil
}

// FormatBps renders basis points as a percentage string (250 -> "2.5").
func FormatBps(bps uint32) string {
	return decimal.New(int64(bps), -2).String()
}
