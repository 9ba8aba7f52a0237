// Package transport is a minimal TCP wire protocol and connection-handling
// server that sits in front of internal/matching.Engine. It is explicitly
// peripheral to the matching core (spec §1: "HTTP/WebSocket transports...
// out of scope, treated as external collaborators") — kept here as the
// reference consumer the teacher repository itself ships, following its
// internal/net (binary framing) and internal/worker.go (tomb-supervised
// pool) shape.
package transport

import (
	"encoding/binary"
	"errors"
	"fmt"
)

var (
	ErrMessageTooShort = errors.New("transport: message too short")
	ErrInvalidMessage  = errors.New("transport: invalid message type")
)

// MessageType distinguishes the handful of request frames a client may
// send.
type MessageType uint16

const (
	Heartbeat MessageType = iota
	NewOrder
	CancelOrder
	QueryDepth
)

// ReportType distinguishes the frames the server sends back.
type ReportType uint8

const (
	ExecutionReport ReportType = iota
	ErrorReport
	BookUpdateReportType
)

// NewOrderRequest is the wire shape of spec §6's "Order submission shape":
// {order_id?, symbol, type, side, quantity, price?}.
type NewOrderRequest struct {
	OrderID  string
	Symbol   string
	Type     uint8  // domain.OrderType
	Side     uint8  // domain.OrderSide
	Quantity string // canonical decimal string, no exponent
	HasPrice bool
	Price    string
	Owner    string // client session name; reports go back on the connection that sent it
}

// CancelOrderRequest cancels a resting order on a symbol.
type CancelOrderRequest struct {
	Symbol  string
	OrderID string
}

// QueryDepthRequest asks for the top-n levels of a symbol/side.
type QueryDepthRequest struct {
	Symbol string
	Side   uint8
	N      uint16
}

func putString(buf []byte, off int, s string) int {
	binary.BigEndian.PutUint16(buf[off:off+2], uint16(len(s)))
	off += 2
	copy(buf[off:off+len(s)], s)
	return off + len(s)
}

func getString(buf []byte, off int) (string, int, error) {
	if off+2 > len(buf) {
		return "", off, ErrMessageTooShort
	}
	n := int(binary.BigEndian.Uint16(buf[off : off+2]))
	off += 2
	if off+n > len(buf) {
		return "", off, ErrMessageTooShort
	}
	return string(buf[off : off+n]), off + n, nil
}

// EncodeNewOrder serialises r with a 2-byte MessageType header.
func EncodeNewOrder(r NewOrderRequest) []byte {
	size := 2 + 2 + len(r.OrderID) + 2 + len(r.Symbol) + 1 + 1 +
		2 + len(r.Quantity) + 1 + 2 + len(r.Price) + 2 + len(r.Owner)
	buf := make([]byte, size)
	off := 0
	binary.BigEndian.PutUint16(buf[off:off+2], uint16(NewOrder))
	off += 2
	off = putString(buf, off, r.OrderID)
	off = putString(buf, off, r.Symbol)
	buf[off] = r.Type
	off++
	buf[off] = r.Side
	off++
	off = putString(buf, off, r.Quantity)
	if r.HasPrice {
		buf[off] = 1
	} else {
		buf[off] = 0
	}
	off++
	off = putString(buf, off, r.Price)
	off = putString(buf, off, r.Owner)
	return buf[:off]
}

// DecodeNewOrder parses a NewOrder frame, msg excluding the 2-byte header.
func DecodeNewOrder(msg []byte) (NewOrderRequest, error) {
	var r NewOrderRequest
	var err error
	off := 0
	if r.OrderID, off, err = getString(msg, off); err != nil {
		return r, err
	}
	if r.Symbol, off, err = getString(msg, off); err != nil {
		return r, err
	}
	if off+2 > len(msg) {
		return r, ErrMessageTooShort
	}
	r.Type = msg[off]
	off++
	r.Side = msg[off]
	off++
	if r.Quantity, off, err = getString(msg, off); err != nil {
		return r, err
	}
	if off+1 > len(msg) {
		return r, ErrMessageTooShort
	}
	r.HasPrice = msg[off] != 0
	off++
	if r.Price, off, err = getString(msg, off); err != nil {
		return r, err
	}
	if r.Owner, _, err = getString(msg, off); err != nil {
		return r, err
	}
	return r, nil
}

// EncodeCancelOrder serialises r with a 2-byte MessageType header.
func EncodeCancelOrder(r CancelOrderRequest) []byte {
	size := 2 + 2 + len(r.Symbol) + 2 + len(r.OrderID)
	buf := make([]byte, size)
	off := 0
	binary.BigEndian.PutUint16(buf[off:off+2], uint16(CancelOrder))
	off += 2
	off = putString(buf, off, r.Symbol)
	putString(buf, off, r.OrderID)
	return buf
}

func DecodeCancelOrder(msg []byte) (CancelOrderRequest, error) {
	var r CancelOrderRequest
	var err error
	off := 0
	if r.Symbol, off, err = getString(msg, off); err != nil {
		return r, err
	}
	if r.OrderID, _, err = getString(msg, off); err != nil {
		return r, err
	}
	return r, nil
}

// DecodeHeader reads the 2-byte message type and returns the remaining body.
func DecodeHeader(msg []byte) (MessageType, []byte, error) {
	if len(msg) < 2 {
		return 0, nil, ErrMessageTooShort
	}
	return MessageType(binary.BigEndian.Uint16(msg[0:2])), msg[2:], nil
}

// ExecutionReportWire is the wire shape of spec §6's "Trade event shape"
// plus the order status fields of "Order response / status report",
// addressed to one side of the trade.
type ExecutionReportWire struct {
	Symbol         string
	Side           uint8
	Price          string
	Quantity       string
	NotionalValue  string
	OrderID        string
	Status         uint8
	FilledQuantity string
	RemainingQty   string
	AveragePrice   string
	CounterpartyID string
	Timestamp      uint64
}

// EncodeExecutionReport serialises an execution report with a 1-byte
// ReportType header.
func EncodeExecutionReport(r ExecutionReportWire) []byte {
	size := 1 + 2 + len(r.Symbol) + 1 + 2 + len(r.Price) + 2 + len(r.Quantity) +
		2 + len(r.NotionalValue) + 2 + len(r.OrderID) + 1 + 2 + len(r.FilledQuantity) +
		2 + len(r.RemainingQty) + 2 + len(r.AveragePrice) + 2 + len(r.CounterpartyID) + 8
	buf := make([]byte, size)
	off := 0
	buf[off] = byte(ExecutionReport)
	off++
	off = putString(buf, off, r.Symbol)
	buf[off] = r.Side
	off++
	off = putString(buf, off, r.Price)
	off = putString(buf, off, r.Quantity)
	off = putString(buf, off, r.NotionalValue)
	off = putString(buf, off, r.OrderID)
	buf[off] = r.Status
	off++
	off = putString(buf, off, r.FilledQuantity)
	off = putString(buf, off, r.RemainingQty)
	off = putString(buf, off, r.AveragePrice)
	off = putString(buf, off, r.CounterpartyID)
	binary.BigEndian.PutUint64(buf[off:off+8], r.Timestamp)
	off += 8
	return buf[:off]
}

func DecodeExecutionReport(body []byte) (ExecutionReportWire, error) {
	var r ExecutionReportWire
	var err error
	off := 0
	if r.Symbol, off, err = getString(body, off); err != nil {
		return r, err
	}
	if off+1 > len(body) {
		return r, ErrMessageTooShort
	}
	r.Side = body[off]
	off++
	if r.Price, off, err = getString(body, off); err != nil {
		return r, err
	}
	if r.Quantity, off, err = getString(body, off); err != nil {
		return r, err
	}
	if r.NotionalValue, off, err = getString(body, off); err != nil {
		return r, err
	}
	if r.OrderID, off, err = getString(body, off); err != nil {
		return r, err
	}
	if off+1 > len(body) {
		return r, ErrMessageTooShort
	}
	r.Status = body[off]
	off++
	if r.FilledQuantity, off, err = getString(body, off); err != nil {
		return r, err
	}
	if r.RemainingQty, off, err = getString(body, off); err != nil {
		return r, err
	}
	if r.AveragePrice, off, err = getString(body, off); err != nil {
		return r, err
	}
	if r.CounterpartyID, off, err = getString(body, off); err != nil {
		return r, err
	}
	if off+8 > len(body) {
		return r, ErrMessageTooShort
	}
	r.Timestamp = binary.BigEndian.Uint64(body[off : off+8])
	return r, nil
}

// EncodeErrorReport serialises an error string with a 1-byte ReportType
// header.
func EncodeErrorReport(msg string) []byte {
	buf := make([]byte, 1+2+len(msg))
	buf[0] = byte(ErrorReport)
	putString(buf, 1, msg)
	return buf
}

func wrapDecodeErr(field string, err error) error {
	return fmt.Errorf("transport: decode %s: %w", field, err)
}
