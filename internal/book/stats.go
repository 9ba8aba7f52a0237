package book

import "github.com/kestrel-exchange/venue/internal/money"

// Statistics is a point-in-time snapshot of a book's shape: best prices,
// spread, per-side level/order counts. Supplements spec §4.3's "aggregate
// counters", shaped after original_source's get_statistics().
type Statistics struct {
	Symbol      string
	BestBid     money.Price
	HasBestBid  bool
	BestAsk     money.Price
	HasBestAsk  bool
	Spread      money.Price
	HasSpread   bool
	BidLevels   int
	AskLevels   int
	TotalOrders int
}

// Statistics computes a best-effort snapshot of the book. Safe to call
// concurrently with reads, but must not overlap a Submit/Cancel on the same
// book per spec §5's single-logical-thread-per-book model.
func (b *OrderBook) Statistics() Statistics {
	stats := Statistics{
		Symbol:      b.Symbol,
		BidLevels:   b.bids.Len(),
		AskLevels:   b.asks.Len(),
		TotalOrders: len(b.byID),
	}

	if bid, ok := b.BestBid(); ok {
		stats.BestBid = bid
		stats.HasBestBid = true
	}
	if ask, ok := b.BestAsk(); ok {
		stats.BestAsk = ask
		stats.HasBestAsk = true
	}
	if stats.HasBestBid && stats.HasBestAsk {
		spread := stats.BestAsk.Decimal().Sub(stats.BestBid.Decimal())
		if p, err := money.NewPrice(spread); err == nil {
			stats.Spread = p
			stats.HasSpread = true
		}
	}
	return stats
}
