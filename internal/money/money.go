// Package money converts between integer minor units (kuruş, centavo) and
// decimal amounts. Amounts are stored and summed as int64 minor units;
// decimals only appear at the JSON/HTTP boundary.
package money

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// DefaultPlaces TRY ve MXN için kuruş/centavo hassasiyeti.
const DefaultPlaces int32 = 2

var (
	ErrInvalid   = errors.New("geçersiz tutar")
	ErrNegative  = errors.New("tutar negatif olamaz")
	ErrPrecision = errors.New("tutar para biriminin hassasiyetini aşıyor")
	ErrOverflow  = errors.New("tutar çok büyük")
)

// ToDecimal minor birimi decimal'e çevirir: 150050 -> 1500.50
func ToDecimal(minor int64, places int32) decimal.Decimal {
	return decimal.New(minor, -places)
}

// String returns the amount with exactly `places` fraction digits.
func String(minor int64, places int32) string {
	return ToDecimal(minor, places).StringFixed(places)
}

// FromDecimal converts an exact decimal amount to minor units. Amounts that
// carry more fraction digits than the currency allows are rejected instead of
// being rounded.
func FromDecimal(d decimal.Decimal, places int32) (int64, error) {
	shifted := d.Shift(places)
	if !shifted.Equal(shifted.Truncate(0)) {
		return 0, fmt.Errorf("%w: %s", ErrPrecision, d.String())
	}
	if !shifted.BigInt().IsInt64() {
		return 0, fmt.Errorf("%w: %s", ErrOverflow, d.String())
	}
	return shifted.IntPart(), nil
}

// Parse reads a decimal string ("1500.50") into minor units.
func Parse(s string, places int32) (int64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("%w %q: %v", ErrInvalid, s, err)
	}
	return FromDecimal(d, places)
}

// ParseNonNegative is Parse with a sign check.
func ParseNonNegative(s string, places int32) (int64, error) {
	v, err := Parse(s, places)
	if err != nil {
		return 0, err
	}
	if v < 0 {
		return 0, ErrNegative
	}
	return v, nil
}

// FromFloat rounds a float64 column value (eski ciro/gider tabloları float
// tutuyor) to minor units, half away from zero.
func FromFloat(f float64, places int32) int64 {
	return decimal.NewFromFloat(f).Shift(places).Round(0).IntPart()
}
