package book

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrel-exchange/venue/internal/domain"
)

func TestStatisticsReflectsSpread(t *testing.T) {
	b := New("AAPL", zerolog.Nop())
	f := &sequenceFactory{}

	_, err := b.Submit(limitOrder(t, "b1", domain.Buy, "99.00", "10"), f)
	require.NoError(t, err)
	_, err = b.Submit(limitOrder(t, "s1", domain.Sell, "101.00", "10"), f)
	require.NoError(t, err)

	stats := b.Statistics()
	assert.Equal(t, "AAPL", stats.Symbol)
	assert.True(t, stats.HasBestBid)
	assert.True(t, stats.HasBestAsk)
	assert.True(t, stats.HasSpread)
	assert.True(t, stats.Spread.Equal(mustPrice(t, "2.00")))
	assert.Equal(t, 1, stats.BidLevels)
	assert.Equal(t, 1, stats.AskLevels)
	assert.Equal(t, 2, stats.TotalOrders)
}

func TestStatisticsEmptyBook(t *testing.T) {
	b := New("AAPL", zerolog.Nop())
	stats := b.Statistics()
	assert.False(t, stats.HasBestBid)
	assert.False(t, stats.HasBestAsk)
	assert.False(t, stats.HasSpread)
	assert.Equal(t, 0, stats.TotalOrders)
}
