// Package money provides exact decimal scalars for price and quantity.
//
// The matching core never touches binary floating point: every price,
// quantity, and notional value flows through shopspring/decimal so that
// arithmetic is exact and comparisons are unambiguous.
package money

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	ErrNegative    = errors.New("money: value must be non-negative")
	ErrNotPos      = errors.New("money: value must be positive")
	ErrOutOfBounds = errors.New("money: value outside configured bounds")
)

// Price is a non-negative decimal scalar denominated in quote currency.
type Price struct {
	d decimal.Decimal
}

// Quantity is a non-negative decimal scalar denominated in base currency.
type Quantity struct {
	d decimal.Decimal
}

// ZeroPrice and ZeroQuantity are the additive identities, useful as
// starting accumulators.
var ZeroPrice = Price{d: decimal.Zero}
var ZeroQuantity = Quantity{d: decimal.Zero}

// NewPrice validates and wraps a decimal as a Price. Negative prices are
// rejected; a zero price is permitted only where the caller explicitly
// allows it (e.g. as an accumulator), never for a submitted limit order.
func NewPrice(d decimal.Decimal) (Price, error) {
	if d.IsNegative() {
		return Price{}, ErrNegative
	}
	return Price{d: d}, nil
}

// NewPriceFromString parses a canonical decimal string into a Price.
func NewPriceFromString(s string) (Price, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Price{}, fmt.Errorf("money: parse price: %w", err)
	}
	return NewPrice(d)
}

// MustPositivePrice wraps d as a Price, requiring strictly positive value.
// Used at order admission where Limit/IOC/FOK orders must carry a price.
func MustPositivePrice(d decimal.Decimal) (Price, error) {
	if !d.IsPositive() {
		return Price{}, ErrNotPos
	}
	return Price{d: d}, nil
}

func NewQuantity(d decimal.Decimal) (Quantity, error) {
	if d.IsNegative() {
		return Quantity{}, ErrNegative
	}
	return Quantity{d: d}, nil
}

// MustPositiveQuantity wraps d as a Quantity, requiring strictly positive
// value. Order and trade quantities are always strictly positive.
func MustPositiveQuantity(d decimal.Decimal) (Quantity, error) {
	if !d.IsPositive() {
		return Quantity{}, ErrNotPos
	}
	return Quantity{d: d}, nil
}

func (p Price) Decimal() decimal.Decimal    { return p.d }
func (q Quantity) Decimal() decimal.Decimal { return q.d }

func (p Price) String() string    { return p.d.String() }
func (q Quantity) String() string { return q.d.String() }

func (p Price) IsZero() bool    { return p.d.IsZero() }
func (q Quantity) IsZero() bool { return q.d.IsZero() }

func (p Price) IsPositive() bool    { return p.d.IsPositive() }
func (q Quantity) IsPositive() bool { return q.d.IsPositive() }

// Equal reports bitwise-equal comparison after normalization, per spec.
func (p Price) Equal(o Price) bool { return p.d.Equal(o.d) }

// LessThan, GreaterThan: strict ordering on prices.
func (p Price) LessThan(o Price) bool       { return p.d.LessThan(o.d) }
func (p Price) GreaterThan(o Price) bool    { return p.d.GreaterThan(o.d) }
func (p Price) LessOrEqual(o Price) bool    { return p.d.LessThanOrEqual(o.d) }
func (p Price) GreaterOrEqual(o Price) bool { return p.d.GreaterThanOrEqual(o.d) }

func (q Quantity) LessThan(o Quantity) bool       { return q.d.LessThan(o.d) }
func (q Quantity) GreaterThan(o Quantity) bool    { return q.d.GreaterThan(o.d) }
func (q Quantity) LessOrEqual(o Quantity) bool    { return q.d.LessThanOrEqual(o.d) }
func (q Quantity) GreaterOrEqual(o Quantity) bool { return q.d.GreaterThanOrEqual(o.d) }

// Add, Sub on Quantity. Sub does not clamp — callers must ensure the
// subtrahend never exceeds the minuend, which the book's fill bookkeeping
// guarantees (fill = min(remaining_a, remaining_b)).
func (q Quantity) Add(o Quantity) Quantity { return Quantity{d: q.d.Add(o.d)} }
func (q Quantity) Sub(o Quantity) Quantity { return Quantity{d: q.d.Sub(o.d)} }

// MinQuantity returns the smaller of a, b — the fill-quantity rule of §4.2.
func MinQuantity(a, b Quantity) Quantity {
	if a.LessOrEqual(b) {
		return a
	}
	return b
}

// Notional computes price * quantity, accumulating in decimal's own
// arbitrary-precision representation (the "wider integer" the spec calls
// for when a fixed-point scale is used).
func Notional(p Price, q Quantity) decimal.Decimal {
	return p.d.Mul(q.d)
}

// Bounds configures the minimum and maximum permissible price or quantity
// for a symbol. A zero Bounds (Min == Max == zero Decimal) means unbounded.
type Bounds struct {
	Min decimal.Decimal
	Max decimal.Decimal
}

// Unbounded is the default Bounds: no admission-time range check.
var Unbounded = Bounds{}

func (b Bounds) isSet() bool {
	return !b.Min.Equal(b.Max) || b.Min.IsPositive() || b.Max.IsPositive()
}

// CheckPrice validates p against b, returning ErrOutOfBounds if set and
// violated. An unset Bounds always passes.
func (b Bounds) CheckPrice(p Price) error {
	if !b.isSet() {
		return nil
	}
	if b.Max.IsPositive() && p.d.GreaterThan(b.Max) {
		return ErrOutOfBounds
	}
	if p.d.LessThan(b.Min) {
		return ErrOutOfBounds
	}
	return nil
}

// CheckQuantity validates q against b, mirroring CheckPrice.
func (b Bounds) CheckQuantity(q Quantity) error {
	if !b.isSet() {
		return nil
	}
	if b.Max.IsPositive() && q.d.GreaterThan(b.Max) {
		return ErrOutOfBounds
	}
	if q.d.LessThan(b.Min) {
		return ErrOutOfBounds
	}
	return nil
}
