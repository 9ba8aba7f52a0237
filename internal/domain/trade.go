package domain

import (
	"github.com/shopspring/decimal"

	"github.com/kestrel-exchange/venue/internal/money"
)

// Trade is an immutable record of one match event. Once constructed it is
// never mutated; the quantities and price it carries are used verbatim by
// ApplyFill on both participating orders.
type Trade struct {
	TradeID       string
	Symbol        string
	Price         money.Price // always the maker's resting price, never the taker's limit
	Quantity      money.Quantity
	AggressorSide OrderSide
	MakerOrderID  string
	TakerOrderID  string
	Timestamp     uint64
}

// NotionalValue is price * quantity for this trade.
func (t Trade) NotionalValue() decimal.Decimal {
	return money.Notional(t.Price, t.Quantity)
}
