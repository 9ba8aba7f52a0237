package transport

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewOrderRoundTrip(t *testing.T) {
	req := NewOrderRequest{
		OrderID:  "order-1",
		Symbol:   "AAPL",
		Type:     1,
		Side:     0,
		Quantity: "10.5",
		HasPrice: true,
		Price:    "101.25",
		Owner:    "alice",
	}

	frame := EncodeNewOrder(req)
	msgType, body, err := DecodeHeader(frame)
	require.NoError(t, err)
	assert.Equal(t, NewOrder, msgType)

	got, err := DecodeNewOrder(body)
	require.NoError(t, err)
	assert.Equal(t, req, got)
}

func TestNewOrderRoundTripNoPrice(t *testing.T) {
	req := NewOrderRequest{
		OrderID:  "order-2",
		Symbol:   "AAPL",
		Type:     0,
		Side:     1,
		Quantity: "5",
		Owner:    "bob",
	}

	frame := EncodeNewOrder(req)
	_, body, err := DecodeHeader(frame)
	require.NoError(t, err)

	got, err := DecodeNewOrder(body)
	require.NoError(t, err)
	assert.Equal(t, req, got)
	assert.False(t, got.HasPrice)
}

func TestCancelOrderRoundTrip(t *testing.T) {
	req := CancelOrderRequest{Symbol: "AAPL", OrderID: "order-1"}
	frame := EncodeCancelOrder(req)

	msgType, body, err := DecodeHeader(frame)
	require.NoError(t, err)
	assert.Equal(t, CancelOrder, msgType)

	got, err := DecodeCancelOrder(body)
	require.NoError(t, err)
	assert.Equal(t, req, got)
}

func TestExecutionReportRoundTrip(t *testing.T) {
	r := ExecutionReportWire{
		Symbol:         "AAPL",
		Side:           0,
		Price:          "100.00",
		Quantity:       "10",
		NotionalValue:  "1000.00",
		OrderID:        "order-1",
		Status:         2,
		FilledQuantity: "10",
		RemainingQty:   "0",
		AveragePrice:   "100.00",
		CounterpartyID: "order-2",
		Timestamp:      42,
	}

	frame := EncodeExecutionReport(r)
	require.Equal(t, byte(ExecutionReport), frame[0])

	got, err := DecodeExecutionReport(frame[1:])
	require.NoError(t, err)
	assert.Equal(t, r, got)
}

func TestDecodeNewOrderTooShort(t *testing.T) {
	_, err := DecodeNewOrder([]byte{0, 1})
	assert.Error(t, err)
}
