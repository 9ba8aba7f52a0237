package book

import (
	"github.com/kestrel-exchange/venue/internal/domain"
	"github.com/kestrel-exchange/venue/internal/money"
)

// PriceLevel holds every resting order at one price on one side, ordered
// by time of arrival. Appending is the only way a fresh order enters; a
// partial fill of the head does not change its position — it remains at
// the head until fully consumed or cancelled. This is what gives the
// level its time-priority guarantee.
type PriceLevel struct {
	Price  money.Price
	Side   domain.OrderSide
	orders []*domain.Order
	total  money.Quantity
}

// newPriceLevel creates an empty level at price on side.
func newPriceLevel(price money.Price, side domain.OrderSide) *PriceLevel {
	return &PriceLevel{Price: price, Side: side}
}

// append places order at the tail of the time queue and folds its
// remaining quantity into the cached total.
func (l *PriceLevel) append(order *domain.Order) {
	l.orders = append(l.orders, order)
	l.total = l.total.Add(order.RemainingQuantity())
}

// peekHead returns the order at the head of the queue without removing it.
// Callers must check isEmpty first.
func (l *PriceLevel) peekHead() *domain.Order {
	return l.orders[0]
}

// popHead removes and returns the head order, subtracting its remaining
// quantity from the cached total. Used when the head is fully consumed.
func (l *PriceLevel) popHead() *domain.Order {
	head := l.orders[0]
	l.orders = l.orders[1:]
	l.total = l.total.Sub(head.RemainingQuantity())
	return head
}

// remove deletes a specific order regardless of queue position — used only
// for cancellation. O(k) in level depth; acceptable per spec §4.1.
func (l *PriceLevel) remove(orderID string) (*domain.Order, bool) {
	for i, o := range l.orders {
		if o.OrderID == orderID {
			l.total = l.total.Sub(o.RemainingQuantity())
			l.orders = append(l.orders[:i], l.orders[i+1:]...)
			return o, true
		}
	}
	return nil, false
}

func (l *PriceLevel) isEmpty() bool { return len(l.orders) == 0 }

// TotalQuantity is the cached sum of remaining quantities of every order
// resting at this level.
func (l *PriceLevel) TotalQuantity() money.Quantity { return l.total }

// Orders returns the resting orders in FIFO (time-priority) order. The
// returned slice is owned by the level; callers must not mutate it.
func (l *PriceLevel) Orders() []*domain.Order { return l.orders }

// recomputeAfterHeadFill folds a fill quantity subtracted from the head
// order into the cached total, without altering queue position — the
// head-promotion rule of spec §4.2/§9: "advance to the next maker only
// when the current head has zero remaining quantity."
func (l *PriceLevel) recomputeAfterHeadFill(fillQty money.Quantity) {
	l.total = l.total.Sub(fillQty)
}
