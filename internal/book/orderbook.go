// Package book implements the per-symbol order book: price levels indexed
// by a btree for O(log n) insertion and O(1) best-price peek, and the
// price-time-priority matching algorithm of spec §4.2.
package book

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/tidwall/btree"

	"github.com/kestrel-exchange/venue/internal/domain"
	"github.com/kestrel-exchange/venue/internal/money"
)

// levels is the ordered-map realisation spec §4.2 calls for: a btree keyed
// by price, sorted toward the touch. Bids sort descending (best bid =
// Min()); asks sort ascending (best ask = Min()). Using Min() for both
// sides — by choosing the comparator direction per side — is what gives
// O(1) best-price peek without a second, separately-maintained structure
// (and sidesteps the "heap-plus-map" staleness hazard of spec §9 entirely,
// since the btree itself is the source of truth).
type levels = btree.BTreeG[*PriceLevel]

func newBidLevels() *levels {
	return btree.NewBTreeG(func(a, b *PriceLevel) bool {
		return a.Price.GreaterThan(b.Price)
	})
}

func newAskLevels() *levels {
	return btree.NewBTreeG(func(a, b *PriceLevel) bool {
		return a.Price.LessThan(b.Price)
	})
}

// BookStateError signals a violated internal invariant — a crossed book,
// a non-positive fill, or an FOK order that reaches Submit without enough
// crossable quantity for a full fill. Per spec §7 this is a
// programmer error: fatal to the current submission, never recovered
// locally.
type BookStateError struct {
	Symbol string
	Reason string
}

func (e *BookStateError) Error() string {
	return fmt.Sprintf("book state invariant violated for %s: %s", e.Symbol, e.Reason)
}

// OrderBook is the two-sided book of resting orders for one symbol.
type OrderBook struct {
	Symbol string

	bids *levels
	asks *levels

	byID map[string]*domain.Order

	log zerolog.Logger
}

// New creates an empty order book for symbol. The zero value of
// zerolog.Logger is a valid no-op logger.
func New(symbol string, log zerolog.Logger) *OrderBook {
	return &OrderBook{
		Symbol: symbol,
		bids:   newBidLevels(),
		asks:   newAskLevels(),
		byID:   make(map[string]*domain.Order),
		log:    log,
	}
}

// BestBid returns the highest resting bid price, if any.
func (b *OrderBook) BestBid() (money.Price, bool) {
	lvl, ok := b.bids.Min()
	if !ok {
		return money.Price{}, false
	}
	return lvl.Price, true
}

// BestAsk returns the lowest resting ask price, if any.
func (b *OrderBook) BestAsk() (money.Price, bool) {
	lvl, ok := b.asks.Min()
	if !ok {
		return money.Price{}, false
	}
	return lvl.Price, true
}

// DepthEntry is one row of a depth snapshot: a price and the aggregate
// resting quantity at that price.
type DepthEntry struct {
	Price    money.Price
	Quantity money.Quantity
}

// Depth returns up to n price levels on the named side, ordered toward the
// touch (bids descending, asks ascending), per spec §4.2.
func (b *OrderBook) Depth(side domain.OrderSide, n int) []DepthEntry {
	if n <= 0 {
		return nil
	}
	src := b.sideLevels(side)
	out := make([]DepthEntry, 0, n)
	src.Scan(func(lvl *PriceLevel) bool {
		out = append(out, DepthEntry{Price: lvl.Price, Quantity: lvl.TotalQuantity()})
		return len(out) < n
	})
	return out
}

// Lookup returns the resting order with orderID, if present.
func (b *OrderBook) Lookup(orderID string) (*domain.Order, bool) {
	o, ok := b.byID[orderID]
	return o, ok
}

func (b *OrderBook) sideLevels(side domain.OrderSide) *levels {
	if side == domain.Buy {
		return b.bids
	}
	return b.asks
}

func (b *OrderBook) oppositeLevels(side domain.OrderSide) *levels {
	return b.sideLevels(side.Opposite())
}

// Cancel removes orderID from its level, deleting the level if emptied,
// and marks the order Cancelled. Reports whether anything was removed.
func (b *OrderBook) Cancel(orderID string) bool {
	order, ok := b.byID[orderID]
	if !ok {
		return false
	}

	side := b.sideLevels(order.Side)
	key := &PriceLevel{Price: order.Price}
	lvl, ok := side.GetMut(key)
	if ok {
		lvl.remove(orderID)
		if lvl.isEmpty() {
			side.Delete(key)
		}
	}

	order.Status = domain.Cancelled
	delete(b.byID, orderID)
	return true
}

// TradeFactory produces trade ids and timestamps; injected so the book
// stays free of engine-level sequencing and uuid concerns.
type TradeFactory interface {
	NextTradeID() string
	NextTimestamp() uint64
}

// Submit runs the matching algorithm for order against the book, mutating
// book state and returning every trade produced, in the order produced.
// The caller (internal/matching.Engine) is responsible for order-type
// admission (FOK pre-check, validation) before calling Submit; Submit
// implements only the resting/matching mechanics of spec §4.2.
func (b *OrderBook) Submit(order *domain.Order, tf TradeFactory) ([]domain.Trade, error) {
	if order.Side != domain.Buy && order.Side != domain.Sell {
		return nil, fmt.Errorf("book: invalid order side")
	}

	var trades []domain.Trade
	opposite := b.oppositeLevels(order.Side)

	for order.RemainingQuantity().IsPositive() && opposite.Len() > 0 {
		bestLevel, ok := opposite.MinMut()
		if !ok {
			break
		}

		if order.Type != domain.Market && b.crossesOut(order, bestLevel.Price) {
			break
		}

		for order.RemainingQuantity().IsPositive() && !bestLevel.isEmpty() {
			maker := bestLevel.peekHead()

			fill := money.MinQuantity(order.RemainingQuantity(), maker.RemainingQuantity())
			if !fill.IsPositive() {
				return nil, &BookStateError{Symbol: b.Symbol, Reason: "non-positive fill computed"}
			}

			trade := domain.Trade{
				TradeID:       tf.NextTradeID(),
				Symbol:        b.Symbol,
				Price:         bestLevel.Price,
				Quantity:      fill,
				AggressorSide: order.Side,
				MakerOrderID:  maker.OrderID,
				TakerOrderID:  order.OrderID,
				Timestamp:     tf.NextTimestamp(),
			}
			trades = append(trades, trade)

			maker.ApplyFill(fill, bestLevel.Price)
			order.ApplyFill(fill, bestLevel.Price)
			bestLevel.recomputeAfterHeadFill(fill)

			// Advance to the next maker only when the current head has zero
			// remaining quantity — stated explicitly per spec §9.
			if maker.RemainingQuantity().IsZero() {
				maker.Status = domain.Filled
				bestLevel.popHead()
				delete(b.byID, maker.OrderID)
			}
		}

		if bestLevel.isEmpty() {
			opposite.Delete(bestLevel)
		}
	}

	if err := b.settleAggressor(order); err != nil {
		b.log.Error().Err(err).Str("symbol", b.Symbol).Str("orderID", order.OrderID).Msg("book state invariant violated while settling aggressor")
		return trades, err
	}

	if err := b.checkNotCrossed(); err != nil {
		b.log.Error().Err(err).Str("symbol", b.Symbol).Msg("book state invariant violated: crossed book")
		return trades, err
	}

	switch order.Status {
	case domain.Rejected:
		b.log.Warn().Str("symbol", b.Symbol).Str("orderID", order.OrderID).Str("type", order.Type.String()).Msg("order rejected after partial or no fill")
	case domain.Cancelled:
		b.log.Debug().Str("symbol", b.Symbol).Str("orderID", order.OrderID).Msg("IOC order cancelled: no immediate execution")
	}

	return trades, nil
}

// crossesOut reports whether a resting level at restingPrice is NOT
// crossable by order — i.e. whether the match loop should stop. Market
// orders never stop on price (callers must not invoke this for Market).
func (b *OrderBook) crossesOut(order *domain.Order, restingPrice money.Price) bool {
	if order.Side == domain.Buy {
		return restingPrice.GreaterThan(order.Price)
	}
	return restingPrice.LessThan(order.Price)
}

// settleAggressor decides the aggressor's terminal (or resting) state once
// the match loop has exited, per the per-type policy of spec §4.2 step 3.
func (b *OrderBook) settleAggressor(order *domain.Order) error {
	remaining := order.RemainingQuantity()

	switch order.Type {
	case domain.Limit:
		if remaining.IsPositive() {
			b.rest(order)
			if order.FilledQuantity.IsPositive() {
				order.Status = domain.PartiallyFilled
			} else {
				order.Status = domain.Pending
			}
		} else {
			order.Status = domain.Filled
		}
	case domain.IOC:
		switch {
		case remaining.IsZero():
			order.Status = domain.Filled
		case order.FilledQuantity.IsPositive():
			order.Status = domain.PartiallyFilled
		default:
			order.Status = domain.Cancelled
		}
	case domain.Market:
		if remaining.IsPositive() {
			// Market order exhausted the opposite side before completing.
			// The trades already produced stand; the remainder is rejected.
			// This is the documented bug-compatible behaviour of spec §9 —
			// not "fixed" to PartiallyFilled.
			order.Status = domain.Rejected
		} else {
			order.Status = domain.Filled
		}
	case domain.FOK:
		// FOK admission is the engine's responsibility (pre-check before
		// Submit is ever called); by the time Submit runs, a full fill is
		// guaranteed, so remaining must be zero here.
		if remaining.IsZero() {
			order.Status = domain.Filled
		} else {
			return &BookStateError{Symbol: b.Symbol, Reason: "FOK order reached Submit without guaranteed full fill"}
		}
	default:
		return fmt.Errorf("book: unknown order type %v", order.Type)
	}
	return nil
}

// rest inserts order's remainder into its own side at its limit price,
// creating the level if absent.
func (b *OrderBook) rest(order *domain.Order) {
	side := b.sideLevels(order.Side)
	key := &PriceLevel{Price: order.Price}

	lvl, ok := side.GetMut(key)
	if !ok {
		lvl = newPriceLevel(order.Price, order.Side)
		side.Set(lvl)
	}
	lvl.append(order)
	b.byID[order.OrderID] = order
}

// checkNotCrossed enforces the no-crossed-book invariant: best_bid <
// best_ask whenever both sides are non-empty. A violation here is a
// programmer error in the matching loop above, not a business outcome.
func (b *OrderBook) checkNotCrossed() error {
	bid, bidOK := b.BestBid()
	ask, askOK := b.BestAsk()
	if bidOK && askOK && !bid.LessThan(ask) {
		return &BookStateError{Symbol: b.Symbol, Reason: "crossed book after submit"}
	}
	return nil
}

// CrossableQuantity walks the opposite side accumulating aggregate
// quantity at levels that pass the price check for a hypothetical priced
// order of side/price. Used by the engine's FOK pre-check (spec §4.3); does
// not mutate the book.
func (b *OrderBook) CrossableQuantity(side domain.OrderSide, price money.Price) money.Quantity {
	opposite := b.sideLevels(side.Opposite())
	total := money.ZeroQuantity

	opposite.Scan(func(lvl *PriceLevel) bool {
		crosses := false
		if side == domain.Buy {
			crosses = lvl.Price.LessOrEqual(price)
		} else {
			crosses = lvl.Price.GreaterOrEqual(price)
		}
		if !crosses {
			return false
		}
		total = total.Add(lvl.TotalQuantity())
		return true
	})
	return total
}
