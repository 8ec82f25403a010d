package cashcount

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"kasa-backend/internal/money"
)

var (
	ErrUnknownCurrency     = errors.New("tanımsız para birimi")
	ErrInvalidDenomination = errors.New("geçersiz kupür")
	ErrInvalidQuantity     = errors.New("geçersiz adet")
	ErrCurrencyMismatch    = errors.New("para birimleri uyuşmuyor")
	ErrMissingCount        = errors.New("sayım verilmedi")
)

// Denomination is a bill or coin face value in minor units (20000 = 200 TL).
type Denomination int64

// Currency describes the cash that can physically sit in a drawer.
type Currency struct {
	Code          string
	MinorUnits    int32
	Denominations []Denomination // büyükten küçüğe
}

var registry = map[string]Currency{
	"TRY": {
		Code:       "TRY",
		MinorUnits: 2,
		Denominations: []Denomination{
			20000, 10000, 5000, 2000, 1000, 500, // banknot
			100, 50, 25, 10, 5, // madeni
		},
	},
	"MXN": {
		Code:       "MXN",
		MinorUnits: 2,
		Denominations: []Denomination{
			100000, 50000, 20000, 10000, 5000, 2000,
			1000, 500, 200, 100, 50,
		},
	},
}

// Lookup returns the registered currency for an ISO code (case-insensitive).
func Lookup(code string) (Currency, error) {
	c, ok := registry[strings.ToUpper(strings.TrimSpace(code))]
	if !ok {
		return Currency{}, fmt.Errorf("%w: %q", ErrUnknownCurrency, code)
	}
	return c, nil
}

// Codes lists the registered currency codes, sorted.
func Codes() []string {
	codes := make([]string, 0, len(registry))
	for code := range registry {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

func (c Currency) Recognizes(d Denomination) bool {
	for _, known := range c.Denominations {
		if known == d {
			return true
		}
	}
	return false
}

// Format renders a face value the way it is keyed in JSON ("200.00", "0.50").
func (c Currency) Format(d Denomination) string {
	return money.String(int64(d), c.MinorUnits)
}

// ParseDenomination reads a face value such as "200" or "0.50" and checks it
// against the currency's recognized set.
func (c Currency) ParseDenomination(s string) (Denomination, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidDenomination, s)
	}
	minor, err := money.FromDecimal(d, c.MinorUnits)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidDenomination, s)
	}
	den := Denomination(minor)
	if !c.Recognizes(den) {
		return 0, fmt.Errorf("%w: %s %s", ErrInvalidDenomination, s, c.Code)
	}
	return den, nil
}
