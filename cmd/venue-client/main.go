package main

import (
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"strings"

	"github.com/kestrel-exchange/venue/internal/domain"
	"github.com/kestrel-exchange/venue/internal/transport"
)

func main() {
	serverAddr := flag.String("server", "127.0.0.1:9001", "address of the venue server")
	owner := flag.String("owner", "", "owning session name (required)")
	action := flag.String("action", "place", "action to perform: place, cancel")

	symbol := flag.String("symbol", "AAPL", "trading symbol")
	sideStr := flag.String("side", "buy", "order side: buy or sell")
	typeStr := flag.String("type", "limit", "order type: market, limit, ioc, fok")
	price := flag.String("price", "", "limit price (required unless type=market)")
	qty := flag.String("qty", "10", "order quantity")
	orderID := flag.String("order-id", "", "order id (generated if omitted)")

	cancelID := flag.String("cancel-id", "", "order id to cancel")

	flag.Parse()

	if *owner == "" {
		fmt.Fprintln(os.Stderr, "-owner is required")
		flag.Usage()
		os.Exit(1)
	}

	conn, err := net.Dial("tcp", *serverAddr)
	if err != nil {
		log.Fatalf("failed to connect to %s: %v", *serverAddr, err)
	}
	defer conn.Close()

	go readReports(conn)

	switch strings.ToLower(*action) {
	case "place":
		if err := sendNewOrder(conn, *owner, *orderID, *symbol, *sideStr, *typeStr, *qty, *price); err != nil {
			log.Fatalf("failed to place order: %v", err)
		}
		fmt.Printf("-> sent %s %s order: %s %s @ %s\n", strings.ToUpper(*typeStr), strings.ToUpper(*sideStr), *qty, *symbol, *price)
	case "cancel":
		if *cancelID == "" {
			log.Fatal("-cancel-id is required for cancel")
		}
		if err := sendCancelOrder(conn, *symbol, *cancelID); err != nil {
			log.Fatalf("failed to cancel order: %v", err)
		}
		fmt.Printf("-> sent cancel for order %s\n", *cancelID)
	default:
		log.Fatalf("unknown action %q", *action)
	}

	fmt.Println("listening for reports (ctrl-c to exit)...")
	select {}
}

func parseSide(s string) uint8 {
	if strings.EqualFold(s, "sell") {
		return uint8(domain.Sell)
	}
	return uint8(domain.Buy)
}

func parseType(s string) uint8 {
	switch strings.ToLower(s) {
	case "market":
		return uint8(domain.Market)
	case "ioc":
		return uint8(domain.IOC)
	case "fok":
		return uint8(domain.FOK)
	default:
		return uint8(domain.Limit)
	}
}

func sendNewOrder(conn net.Conn, owner, orderID, symbol, side, orderType, qty, price string) error {
	req := transport.NewOrderRequest{
		OrderID:  orderID,
		Symbol:   symbol,
		Type:     parseType(orderType),
		Side:     parseSide(side),
		Quantity: qty,
		Owner:    owner,
	}
	if domain.OrderType(req.Type).RequiresPrice() {
		if price == "" {
			return fmt.Errorf("-price is required for %s orders", orderType)
		}
		req.HasPrice = true
		req.Price = price
	}
	return transport.WriteFrame(conn, transport.EncodeNewOrder(req))
}

func sendCancelOrder(conn net.Conn, symbol, orderID string) error {
	req := transport.CancelOrderRequest{Symbol: symbol, OrderID: orderID}
	return transport.WriteFrame(conn, transport.EncodeCancelOrder(req))
}

func readReports(conn net.Conn) {
	for {
		frame, err := transport.ReadFrame(conn)
		if err != nil {
			fmt.Fprintf(os.Stderr, "\nconnection closed: %v\n", err)
			os.Exit(0)
		}
		if len(frame) == 0 {
			continue
		}

		switch transport.ReportType(frame[0]) {
		case transport.ExecutionReport:
			r, err := transport.DecodeExecutionReport(frame[1:])
			if err != nil {
				fmt.Fprintf(os.Stderr, "\nmalformed execution report: %v\n", err)
				continue
			}
			printExecutionReport(r)
		case transport.ErrorReport:
			msg, _, err := decodeString(frame[1:])
			if err != nil {
				fmt.Fprintf(os.Stderr, "\nmalformed error report: %v\n", err)
				continue
			}
			fmt.Printf("\n[ERROR] %s\n", msg)
		default:
			fmt.Fprintf(os.Stderr, "\nunknown report type %d\n", frame[0])
		}
	}
}

func printExecutionReport(r transport.ExecutionReportWire) {
	side := "BUY"
	if domain.OrderSide(r.Side) == domain.Sell {
		side = "SELL"
	}
	if r.CounterpartyID != "" {
		fmt.Printf("\n[TRADE] %s %s %s @ %s | order %s vs %s\n",
			side, r.Quantity, r.Symbol, r.Price, r.OrderID, r.CounterpartyID)
		return
	}
	fmt.Printf("\n[ACK] order %s status=%s filled=%s remaining=%s avg=%s\n",
		r.OrderID, domain.OrderStatus(r.Status), r.FilledQuantity, r.RemainingQty, r.AveragePrice)
}

// decodeString mirrors transport's internal length-prefixed string decoding
// for the error-report payload, which carries a single string body.
func decodeString(buf []byte) (string, int, error) {
	if len(buf) < 2 {
		return "", 0, transport.ErrMessageTooShort
	}
	n := int(buf[0])<<8 | int(buf[1])
	if len(buf) < 2+n {
		return "", 0, transport.ErrMessageTooShort
	}
	return string(buf[2 : 2+n]), 2 + n, nil
}
