// Package cashcount models a physical cash count: how many of each bill and
// coin are in the drawer, and what that adds up to.
package cashcount

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"kasa-backend/internal/money"
)

// MaxQuantity bir kupür için kabul edilen en yüksek adet.
const MaxQuantity int64 = 1_000_000

// Count maps denominations to quantities for a single currency. The zero value
// is not usable; build one with New or FromMap.
type Count struct {
	currency Currency
	items    map[Denomination]int64
}

// Line is one row of a count, used by reports.
type Line struct {
	Denomination Denomination
	Quantity     int64
	Subtotal     int64
}

func New(cur Currency) *Count {
	return &Count{currency: cur, items: make(map[Denomination]int64)}
}

// FromMap builds a count from face-value strings, the shape clients send:
// {"200": 3, "0.50": 4}.
func FromMap(cur Currency, quantities map[string]int64) (*Count, error) {
	c := New(cur)
	for face, qty := range quantities {
		d, err := cur.ParseDenomination(face)
		if err != nil {
			return nil, err
		}
		if err := c.Add(d, qty); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *Count) Currency() Currency { return c.currency }

// Add increases the quantity recorded for d.
func (c *Count) Add(d Denomination, quantity int64) error {
	if err := c.validate(d, quantity); err != nil {
		return err
	}
	next := c.items[d] + quantity
	if next > MaxQuantity {
		return fmt.Errorf("%w: %s için %d adet", ErrInvalidQuantity, c.currency.Format(d), next)
	}
	c.put(d, next)
	return nil
}

// Set replaces the quantity recorded for d (sayım ekranında düzeltme).
func (c *Count) Set(d Denomination, quantity int64) error {
	if err := c.validate(d, quantity); err != nil {
		return err
	}
	c.put(d, quantity)
	return nil
}

func (c *Count) validate(d Denomination, quantity int64) error {
	if !c.currency.Recognizes(d) {
		return fmt.Errorf("%w: %d %s", ErrInvalidDenomination, d, c.currency.Code)
	}
	if quantity < 0 || quantity > MaxQuantity {
		return fmt.Errorf("%w: %d", ErrInvalidQuantity, quantity)
	}
	return nil
}

func (c *Count) put(d Denomination, quantity int64) {
	if quantity == 0 {
		delete(c.items, d)
		return
	}
	c.items[d] = quantity
}

func (c *Count) Quantity(d Denomination) int64 { return c.items[d] }

// Total returns the counted value in minor units.
func (c *Count) Total() int64 {
	var total int64
	for d, qty := range c.items {
		total += int64(d) * qty
	}
	return total
}

func (c *Count) TotalDecimal() decimal.Decimal {
	return money.ToDecimal(c.Total(), c.currency.MinorUnits)
}

// Merge returns a new count holding the element-wise sum of c and other.
// Neither input is modified. A sum above MaxQuantity is rejected, same as Add.
func (c *Count) Merge(other *Count) (*Count, error) {
	if other == nil {
		return nil, ErrMissingCount
	}
	if c.currency.Code != other.currency.Code {
		return nil, fmt.Errorf("%w: %s / %s", ErrCurrencyMismatch, c.currency.Code, other.currency.Code)
	}
	merged := c.Clone()
	for d, qty := range other.items {
		if err := merged.Add(d, qty); err != nil {
			return nil, err
		}
	}
	return merged, nil
}

func (c *Count) Clone() *Count {
	cp := New(c.currency)
	for d, qty := range c.items {
		cp.items[d] = qty
	}
	return cp
}

func (c *Count) Equal(other *Count) bool {
	if c.currency.Code != other.currency.Code || len(c.items) != len(other.items) {
		return false
	}
	for d, qty := range c.items {
		if other.items[d] != qty {
			return false
		}
	}
	return true
}

// Lines lists non-zero entries from the largest denomination down.
func (c *Count) Lines() []Line {
	lines := make([]Line, 0, len(c.items))
	for d, qty := range c.items {
		lines = append(lines, Line{Denomination: d, Quantity: qty, Subtotal: int64(d) * qty})
	}
	sort.Slice(lines, func(i, j int) bool { return lines[i].Denomination > lines[j].Denomination })
	return lines
}

type countJSON struct {
	Currency string           `json:"currency"`
	Items    map[string]int64 `json:"items"`
}

func (c Count) MarshalJSON() ([]byte, error) {
	out := countJSON{Currency: c.currency.Code, Items: make(map[string]int64, len(c.items))}
	for d, qty := range c.items {
		out.Items[c.currency.Format(d)] = qty
	}
	return json.Marshal(out)
}

// UnmarshalJSON re-validates every entry; a stored count is never trusted blindly.
func (c *Count) UnmarshalJSON(data []byte) error {
	var in countJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	cur, err := Lookup(in.Currency)
	if err != nil {
		return err
	}
	parsed, err := FromMap(cur, in.Items)
	if err != nil {
		return err
	}
	*c = *parsed
	return nil
}
