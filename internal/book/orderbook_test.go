package book

import (
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrel-exchange/venue/internal/domain"
	"github.com/kestrel-exchange/venue/internal/money"
)

// sequenceFactory is a deterministic, test-only TradeFactory.
type sequenceFactory struct {
	n uint64
}

func (f *sequenceFactory) NextTradeID() string {
	f.n++
	return fmt.Sprintf("trade-%d", f.n)
}

func (f *sequenceFactory) NextTimestamp() uint64 {
	return atomic.AddUint64(&f.n, 1)
}

func mustPrice(t *testing.T, s string) money.Price {
	t.Helper()
	p, err := money.MustPositivePrice(decimal.RequireFromString(s))
	require.NoError(t, err)
	return p
}

func mustQty(t *testing.T, s string) money.Quantity {
	t.Helper()
	q, err := money.MustPositiveQuantity(decimal.RequireFromString(s))
	require.NoError(t, err)
	return q
}

func limitOrder(t *testing.T, id string, side domain.OrderSide, price, qty string) *domain.Order {
	t.Helper()
	return &domain.Order{
		OrderID:  id,
		Symbol:   "AAPL",
		Type:     domain.Limit,
		Side:     side,
		Price:    mustPrice(t, price),
		HasPrice: true,
		Quantity: mustQty(t, qty),
		Status:   domain.Pending,
	}
}

func marketOrder(t *testing.T, id string, side domain.OrderSide, qty string) *domain.Order {
	t.Helper()
	return &domain.Order{
		OrderID:  id,
		Symbol:   "AAPL",
		Type:     domain.Market,
		Side:     side,
		Quantity: mustQty(t, qty),
		Status:   domain.Pending,
	}
}

func iocOrder(t *testing.T, id string, side domain.OrderSide, price, qty string) *domain.Order {
	t.Helper()
	o := limitOrder(t, id, side, price, qty)
	o.Type = domain.IOC
	return o
}

func fokOrder(t *testing.T, id string, side domain.OrderSide, price, qty string) *domain.Order {
	t.Helper()
	o := limitOrder(t, id, side, price, qty)
	o.Type = domain.FOK
	return o
}

func newTestBook() *OrderBook {
	return New("AAPL", zerolog.Nop())
}

func TestRestingLimitOrderAppearsInDepth(t *testing.T) {
	b := newTestBook()
	f := &sequenceFactory{}

	_, err := b.Submit(limitOrder(t, "b1", domain.Buy, "99.00", "100"), f)
	require.NoError(t, err)

	depth := b.Depth(domain.Buy, 10)
	require.Len(t, depth, 1)
	assert.True(t, depth[0].Price.Equal(mustPrice(t, "99.00")))
	assert.True(t, depth[0].Quantity.Equal(mustQty(t, "100")))
}

func TestMatchUsesMakerPrice(t *testing.T) {
	b := newTestBook()
	f := &sequenceFactory{}

	_, err := b.Submit(limitOrder(t, "s1", domain.Sell, "100.00", "50"), f)
	require.NoError(t, err)

	trades, err := b.Submit(limitOrder(t, "b1", domain.Buy, "105.00", "50"), f)
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.True(t, trades[0].Price.Equal(mustPrice(t, "100.00")), "trade prints at the maker's resting price, not the taker's limit")
}

func TestTimePriorityWithinLevel(t *testing.T) {
	b := newTestBook()
	f := &sequenceFactory{}

	_, err := b.Submit(limitOrder(t, "s1", domain.Sell, "100.00", "10"), f)
	require.NoError(t, err)
	_, err = b.Submit(limitOrder(t, "s2", domain.Sell, "100.00", "10"), f)
	require.NoError(t, err)

	trades, err := b.Submit(limitOrder(t, "b1", domain.Buy, "100.00", "10"), f)
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.Equal(t, "s1", trades[0].MakerOrderID, "the earlier-resting order at the same price fills first")
}

func TestLimitOrderRestsPartially(t *testing.T) {
	b := newTestBook()
	f := &sequenceFactory{}

	_, err := b.Submit(limitOrder(t, "s1", domain.Sell, "100.00", "10"), f)
	require.NoError(t, err)

	taker := limitOrder(t, "b1", domain.Buy, "100.00", "30")
	trades, err := b.Submit(taker, f)
	require.NoError(t, err)
	require.Len(t, trades, 1)

	assert.Equal(t, domain.PartiallyFilled, taker.Status)
	assert.True(t, taker.RemainingQuantity().Equal(mustQty(t, "20")))

	rested, ok := b.Lookup("b1")
	require.True(t, ok)
	assert.Equal(t, domain.PartiallyFilled, rested.Status)
}

func TestIOCPartialFillThenCancelled(t *testing.T) {
	b := newTestBook()
	f := &sequenceFactory{}

	_, err := b.Submit(limitOrder(t, "s1", domain.Sell, "100.00", "10"), f)
	require.NoError(t, err)

	taker := iocOrder(t, "b1", domain.Buy, "100.00", "30")
	trades, err := b.Submit(taker, f)
	require.NoError(t, err)
	require.Len(t, trades, 1)

	// An IOC with a partial fill reports PartiallyFilled, not Cancelled —
	// only a wholly-unfilled IOC is Cancelled.
	assert.Equal(t, domain.PartiallyFilled, taker.Status)

	_, ok := b.Lookup("b1")
	assert.False(t, ok, "an IOC order never rests, filled or not")
}

func TestIOCNoFillIsCancelled(t *testing.T) {
	b := newTestBook()
	f := &sequenceFactory{}

	taker := iocOrder(t, "b1", domain.Buy, "100.00", "10")
	trades, err := b.Submit(taker, f)
	require.NoError(t, err)
	assert.Empty(t, trades)
	assert.Equal(t, domain.Cancelled, taker.Status)
}

func TestFOKFeasibleFillsCompletely(t *testing.T) {
	b := newTestBook()
	f := &sequenceFactory{}

	_, err := b.Submit(limitOrder(t, "s1", domain.Sell, "100.00", "10"), f)
	require.NoError(t, err)
	_, err = b.Submit(limitOrder(t, "s2", domain.Sell, "101.00", "10"), f)
	require.NoError(t, err)

	have := b.CrossableQuantity(domain.Buy, mustPrice(t, "101.00"))
	require.True(t, have.Equal(mustQty(t, "20")))

	taker := fokOrder(t, "b1", domain.Buy, "101.00", "20")
	trades, err := b.Submit(taker, f)
	require.NoError(t, err)
	require.Len(t, trades, 2)
	assert.Equal(t, domain.Filled, taker.Status)
}

func TestMarketOrderThinBookRejectsRemainder(t *testing.T) {
	b := newTestBook()
	f := &sequenceFactory{}

	_, err := b.Submit(limitOrder(t, "s1", domain.Sell, "100.00", "10"), f)
	require.NoError(t, err)

	taker := marketOrder(t, "b1", domain.Buy, "30")
	trades, err := b.Submit(taker, f)
	require.NoError(t, err)
	require.Len(t, trades, 1, "the trade that did occur stands")

	// Documented behaviour per spec §9: a Market order that partially fills
	// because the book ran dry is Rejected, not PartiallyFilled, even
	// though FilledQuantity is nonzero.
	assert.Equal(t, domain.Rejected, taker.Status)
	assert.True(t, taker.FilledQuantity.Equal(mustQty(t, "10")))
}

func TestCancelEmptiesLevel(t *testing.T) {
	b := newTestBook()
	f := &sequenceFactory{}

	_, err := b.Submit(limitOrder(t, "b1", domain.Buy, "99.00", "100"), f)
	require.NoError(t, err)

	removed := b.Cancel("b1")
	assert.True(t, removed)

	_, ok := b.Lookup("b1")
	assert.False(t, ok)

	_, hasBid := b.BestBid()
	assert.False(t, hasBid, "cancelling the only order at a level evicts the level entirely")
}

func TestCancelUnknownOrderReturnsFalse(t *testing.T) {
	b := newTestBook()
	assert.False(t, b.Cancel("nonexistent"))
}

func TestBookNeverCrosses(t *testing.T) {
	b := newTestBook()
	f := &sequenceFactory{}

	_, err := b.Submit(limitOrder(t, "b1", domain.Buy, "99.00", "10"), f)
	require.NoError(t, err)
	_, err = b.Submit(limitOrder(t, "s1", domain.Sell, "101.00", "10"), f)
	require.NoError(t, err)

	bid, hasBid := b.BestBid()
	ask, hasAsk := b.BestAsk()
	require.True(t, hasBid)
	require.True(t, hasAsk)
	assert.True(t, bid.LessThan(ask))
}

func TestPartialFillDoesNotReorderLevel(t *testing.T) {
	b := newTestBook()
	f := &sequenceFactory{}

	_, err := b.Submit(limitOrder(t, "s1", domain.Sell, "100.00", "10"), f)
	require.NoError(t, err)
	_, err = b.Submit(limitOrder(t, "s2", domain.Sell, "100.00", "10"), f)
	require.NoError(t, err)

	_, err = b.Submit(limitOrder(t, "b1", domain.Buy, "100.00", "5"), f)
	require.NoError(t, err)

	// s1 is partially filled but remains at the head: the next taker should
	// still match against s1 first, not s2.
	trades, err := b.Submit(limitOrder(t, "b2", domain.Buy, "100.00", "5"), f)
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.Equal(t, "s1", trades[0].MakerOrderID)
}
