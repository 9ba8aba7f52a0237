package domain

import (
	"github.com/kestrel-exchange/venue/internal/money"
)

// Order is a submitted trading intent plus mutable execution tracking.
// Orders rest in at most one book at a time; once Filled, Cancelled, or
// Rejected they no longer appear in any OrderBook index.
type Order struct {
	OrderID   string
	Symbol    string
	Type      OrderType
	Side      OrderSide
	Quantity  money.Quantity // original requested quantity
	Price     money.Price    // zero value when Type == Market
	HasPrice  bool
	Timestamp uint64 // monotonic arrival sequence, engine-assigned

	Status         OrderStatus
	FilledQuantity money.Quantity
	AveragePrice   money.Price
}

// RemainingQuantity is quantity - filled_quantity, per spec §3.
func (o *Order) RemainingQuantity() money.Quantity {
	return o.Quantity.Sub(o.FilledQuantity)
}

// IsFullyFilled reports whether no quantity remains unfilled.
func (o *Order) IsFullyFilled() bool {
	return o.RemainingQuantity().IsZero()
}

// ApplyFill increments the order's filled quantity by fillQty at fillPrice,
// and updates the running average price using the weighted re-average
// formula from the reference implementation:
//
//	average_price' = (average_price * filled_before + fill_price * fill_qty) / filled_after
//
// This is the formula that makes invariant 7 of spec §8 hold without the
// order retaining a trade log of its own.
func (o *Order) ApplyFill(fillQty money.Quantity, fillPrice money.Price) {
	filledBefore := o.FilledQuantity
	filledAfter := filledBefore.Add(fillQty)

	priorNotional := money.Notional(o.AveragePrice, filledBefore)
	fillNotional := money.Notional(fillPrice, fillQty)
	totalNotional := priorNotional.Add(fillNotional)

	o.FilledQuantity = filledAfter
	if !filledAfter.IsZero() {
		avg := totalNotional.Div(filledAfter.Decimal())
		p, err := money.NewPrice(avg)
		if err == nil {
			o.AveragePrice = p
		}
	}
}
