// Package matching owns the map from symbol to order book, dispatches
// incoming orders by type, applies order-type-specific admission and
// cancellation rules, and fans out trade and book-update notifications to
// subscribers. This is the MatchingEngine of spec §4.3.
package matching

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/kestrel-exchange/venue/internal/book"
	"github.com/kestrel-exchange/venue/internal/domain"
	"github.com/kestrel-exchange/venue/internal/money"
)

// TradeCallback is invoked once per trade, in the order the trades
// occurred, after a submit completes successfully.
type TradeCallback func(domain.Trade)

// BookUpdateCallback is invoked once per successful submit (after all of
// that submit's trade callbacks) and once per successful cancel, with the
// affected symbol's market-data snapshot.
type BookUpdateCallback func(Snapshot)

// Snapshot is the market-data shape delivered to book-update subscribers,
// per spec §6.
type Snapshot struct {
	Symbol    string
	Timestamp uint64
	BestBid   money.Price
	HasBid    bool
	BestAsk   money.Price
	HasAsk    bool
	Bids      []book.DepthEntry
	Asks      []book.DepthEntry
}

// bookEntry pairs an OrderBook with the mutex that serialises all access
// to it — the "single logical thread of control" per symbol of spec §5.
// Subscriber lists are not guarded by this lock; they have their own
// (Engine.subsMu).
type bookEntry struct {
	mu   sync.Mutex
	book *book.OrderBook
}

// Engine owns every symbol's OrderBook, dispatches submissions, and fans
// out notifications. Independent symbols may be driven concurrently —
// Engine only serialises access within a single symbol's bookEntry.
type Engine struct {
	cfg Config
	log zerolog.Logger

	booksMu sync.RWMutex
	books   map[string]*bookEntry

	subsMu    sync.RWMutex
	tradeSubs []TradeCallback
	bookSubs  []BookUpdateCallback

	seq uint64 // monotonic sequence, source of Order/Trade Timestamp

	startedAt time.Time

	ordersProcessed atomic.Uint64
	tradesExecuted  atomic.Uint64

	volMu         sync.Mutex
	totalNotional decimal.Decimal
}

// New constructs an Engine with the given configuration and logger. The
// zero value of zerolog.Logger is a valid no-op logger.
func New(cfg Config, log zerolog.Logger) *Engine {
	return &Engine{
		cfg:           cfg,
		log:           log,
		books:         make(map[string]*bookEntry),
		startedAt:     time.Now(),
		totalNotional: decimal.Zero,
	}
}

// NextTradeID implements book.TradeFactory.
func (e *Engine) NextTradeID() string { return uuid.New().String() }

// NextTimestamp implements book.TradeFactory: a monotonic, engine-wide
// sequence number. Spec §3 notes a monotonic sequence suffices in place of
// wall-clock time.
func (e *Engine) NextTimestamp() uint64 { return atomic.AddUint64(&e.seq, 1) }

// bookFor returns the bookEntry for symbol, lazily creating it.
func (e *Engine) bookFor(symbol string) *bookEntry {
	e.booksMu.RLock()
	entry, ok := e.books[symbol]
	e.booksMu.RUnlock()
	if ok {
		return entry
	}

	e.booksMu.Lock()
	defer e.booksMu.Unlock()
	if entry, ok := e.books[symbol]; ok {
		return entry
	}
	entry = &bookEntry{book: book.New(symbol, e.log)}
	e.books[symbol] = entry
	e.log.Info().Str("symbol", symbol).Msg("created order book")
	return entry
}

// Book returns the OrderBook for symbol, if it has been created. Reads are
// best-effort snapshots per spec §5.
func (e *Engine) Book(symbol string) (*book.OrderBook, bool) {
	e.booksMu.RLock()
	defer e.booksMu.RUnlock()
	entry, ok := e.books[symbol]
	if !ok {
		return nil, false
	}
	return entry.book, true
}

// OrderInput is the caller-facing submission shape of spec §6. OrderID is
// generated if empty.
type OrderInput struct {
	OrderID  string
	Symbol   string
	Type     domain.OrderType
	Side     domain.OrderSide
	Quantity decimal.Decimal
	Price    decimal.Decimal // ignored when Type == domain.Market
	HasPrice bool
}

// Submit admits, dispatches, and settles order, then notifies subscribers.
// Returns the trades produced, in the order produced, and the finished
// order (for its final Status/FilledQuantity/AveragePrice).
func (e *Engine) Submit(in OrderInput) (*domain.Order, []domain.Trade, error) {
	order, err := e.admit(in)
	if err != nil {
		return order, nil, err
	}

	entry := e.bookFor(order.Symbol)
	entry.mu.Lock()
	defer entry.mu.Unlock()

	if _, exists := entry.book.Lookup(order.OrderID); exists {
		order.Status = domain.Rejected
		return order, nil, fmt.Errorf("%w: %s", ErrDuplicateOrderID, order.OrderID)
	}

	if order.Type == domain.FOK {
		need := order.Quantity
		have := entry.book.CrossableQuantity(order.Side, order.Price)
		if have.LessThan(need) {
			order.Status = domain.Rejected
			e.log.Info().Str("symbol", order.Symbol).Str("orderID", order.OrderID).Msg("FOK order rejected: insufficient crossable liquidity")
			e.ordersProcessed.Add(1)
			return order, nil, ErrFillImpossible
		}
	}

	trades, err := entry.book.Submit(order, e)
	e.ordersProcessed.Add(1)
	if err != nil {
		// A BookState invariant failure is fatal to this submit: surface it
		// loudly, per spec §7. Any trades already produced are still
		// returned to the caller, mirroring the Market-thin policy of
		// "trades that occurred stand."
		return order, trades, err
	}

	e.recordTrades(trades)
	e.notify(order.Symbol, trades, entry.book)

	return order, trades, nil
}

// admit validates in per spec §4.3 and constructs the domain.Order. A
// rejected order's Status is Rejected; no trade is emitted and no book is
// touched.
func (e *Engine) admit(in OrderInput) (*domain.Order, error) {
	orderID := in.OrderID
	if orderID == "" {
		orderID = uuid.New().String()
	}

	order := &domain.Order{
		OrderID:   orderID,
		Symbol:    in.Symbol,
		Type:      in.Type,
		Side:      in.Side,
		Timestamp: e.NextTimestamp(),
		Status:    domain.Rejected,
	}

	if in.Symbol == "" {
		return order, fmt.Errorf("%w: empty symbol", ErrValidation)
	}
	if !in.Side.Valid() {
		return order, fmt.Errorf("%w: invalid side", ErrValidation)
	}
	if !in.Type.Valid() {
		return order, fmt.Errorf("%w: invalid order type", ErrValidation)
	}

	qty, err := money.MustPositiveQuantity(in.Quantity)
	if err != nil {
		return order, fmt.Errorf("%w: quantity must be positive", ErrValidation)
	}
	if err := e.cfg.QuantityBounds.CheckQuantity(qty); err != nil {
		return order, fmt.Errorf("%w: quantity out of bounds", ErrValidation)
	}
	order.Quantity = qty

	if in.Type.RequiresPrice() {
		if !in.HasPrice {
			return order, fmt.Errorf("%w: price required for %s orders", ErrValidation, in.Type)
		}
		price, err := money.MustPositivePrice(in.Price)
		if err != nil {
			return order, fmt.Errorf("%w: price must be positive", ErrValidation)
		}
		if err := e.cfg.PriceBounds.CheckPrice(price); err != nil {
			return order, fmt.Errorf("%w: price out of bounds", ErrValidation)
		}
		order.Price = price
		order.HasPrice = true
	} else if in.HasPrice {
		return order, fmt.Errorf("%w: market orders must not carry a price", ErrValidation)
	}

	order.Status = domain.Pending
	return order, nil
}

func (e *Engine) recordTrades(trades []domain.Trade) {
	if len(trades) == 0 {
		return
	}
	e.tradesExecuted.Add(uint64(len(trades)))

	e.volMu.Lock()
	for _, t := range trades {
		e.totalNotional = e.totalNotional.Add(t.NotionalValue())
	}
	e.volMu.Unlock()
}

// notify delivers every trade to trade subscribers in order, then a single
// book-update event to book-update subscribers, per spec §4.3/§5. A
// callback that panics is recovered, logged, and does not prevent the
// remaining callbacks from running or unwind the match — the CallbackError
// policy of spec §7.
func (e *Engine) notify(symbol string, trades []domain.Trade, b *book.OrderBook) {
	e.subsMu.RLock()
	tradeSubs := append([]TradeCallback(nil), e.tradeSubs...)
	bookSubs := append([]BookUpdateCallback(nil), e.bookSubs...)
	e.subsMu.RUnlock()

	for _, trade := range trades {
		for _, cb := range tradeSubs {
			e.safeCallTrade(cb, trade)
		}
	}

	if len(bookSubs) == 0 {
		return
	}
	snap := e.snapshot(symbol, b)
	for _, cb := range bookSubs {
		e.safeCallBookUpdate(cb, snap)
	}
}

func (e *Engine) safeCallTrade(cb TradeCallback, trade domain.Trade) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Error().Interface("panic", r).Str("tradeID", trade.TradeID).Msg("trade subscriber callback panicked")
		}
	}()
	cb(trade)
}

func (e *Engine) safeCallBookUpdate(cb BookUpdateCallback, snap Snapshot) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Error().Interface("panic", r).Str("symbol", snap.Symbol).Msg("book-update subscriber callback panicked")
		}
	}()
	cb(snap)
}

func (e *Engine) snapshot(symbol string, b *book.OrderBook) Snapshot {
	depth := clampDepth(e.cfg.DefaultSnapshotDepth)
	snap := Snapshot{
		Symbol:    symbol,
		Timestamp: e.NextTimestamp(),
		Bids:      b.Depth(domain.Buy, depth),
		Asks:      b.Depth(domain.Sell, depth),
	}
	if bid, ok := b.BestBid(); ok {
		snap.BestBid = bid
		snap.HasBid = true
	}
	if ask, ok := b.BestAsk(); ok {
		snap.BestAsk = ask
		snap.HasAsk = true
	}
	return snap
}

// SubscribeTrades registers a callback invoked for every trade. Adding
// subscribers at runtime is permitted but is serialised against the
// subscriber-list lock, not against any particular symbol's submit.
func (e *Engine) SubscribeTrades(cb TradeCallback) {
	e.subsMu.Lock()
	defer e.subsMu.Unlock()
	e.tradeSubs = append(e.tradeSubs, cb)
}

// SubscribeBookUpdates registers a callback invoked once per successful
// submit or cancel with the affected symbol's market-data snapshot.
func (e *Engine) SubscribeBookUpdates(cb BookUpdateCallback) {
	e.subsMu.Lock()
	defer e.subsMu.Unlock()
	e.bookSubs = append(e.bookSubs, cb)
}

// Cancel removes orderID from symbol's book. Returns ErrUnknownSymbol if
// no book exists for symbol, or false if the order is not found in it.
func (e *Engine) Cancel(orderID, symbol string) (bool, error) {
	e.booksMu.RLock()
	entry, ok := e.books[symbol]
	e.booksMu.RUnlock()
	if !ok {
		return false, ErrUnknownSymbol
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	removed := entry.book.Cancel(orderID)
	if removed {
		e.notify(symbol, nil, entry.book)
	}
	return removed, nil
}

// Lookup returns the order with orderID in symbol's book.
func (e *Engine) Lookup(orderID, symbol string) (*domain.Order, error) {
	e.booksMu.RLock()
	entry, ok := e.books[symbol]
	e.booksMu.RUnlock()
	if !ok {
		return nil, ErrUnknownSymbol
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	order, ok := entry.book.Lookup(orderID)
	if !ok {
		return nil, ErrOrderNotFound
	}
	return order, nil
}

// BestBidAsk returns symbol's current best bid and ask.
func (e *Engine) BestBidAsk(symbol string) (bid, ask money.Price, hasBid, hasAsk bool) {
	b, ok := e.Book(symbol)
	if !ok {
		return money.Price{}, money.Price{}, false, false
	}
	bid, hasBid = b.BestBid()
	ask, hasAsk = b.BestAsk()
	return
}

// Depth returns symbol's top-n price levels on side.
func (e *Engine) Depth(symbol string, side domain.OrderSide, n int) []book.DepthEntry {
	b, ok := e.Book(symbol)
	if !ok {
		return nil
	}
	return b.Depth(side, clampDepth(n))
}

// Stats is the aggregate counters and uptime of spec §4.3's "stats()".
type Stats struct {
	UptimeSeconds       float64
	OrdersProcessed     uint64
	TradesExecuted      uint64
	TotalNotionalTraded decimal.Decimal
	ActiveSymbols       []string
}

// Stats returns a best-effort snapshot of aggregate engine counters.
func (e *Engine) Stats() Stats {
	e.booksMu.RLock()
	symbols := make([]string, 0, len(e.books))
	for s := range e.books {
		symbols = append(symbols, s)
	}
	e.booksMu.RUnlock()

	e.volMu.Lock()
	notional := e.totalNotional
	e.volMu.Unlock()

	return Stats{
		UptimeSeconds:       time.Since(e.startedAt).Seconds(),
		OrdersProcessed:     e.ordersProcessed.Load(),
		TradesExecuted:      e.tradesExecuted.Load(),
		TotalNotionalTraded: notional,
		ActiveSymbols:       symbols,
	}
}
