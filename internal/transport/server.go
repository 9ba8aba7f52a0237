package transport

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	tomb "gopkg.in/tomb.v2"

	"github.com/kestrel-exchange/venue/internal/domain"
	"github.com/kestrel-exchange/venue/internal/matching"
)

const (
	maxFrameSize       = 64 * 1024
	defaultNWorkers    = 10
	defaultConnTimeout = 30 * time.Second
)

// owner links a resting order back to the connection that should be sent
// its execution reports. Tracked here, not on domain.Order: the matching
// core has no notion of a network session.
type owner struct {
	name string
	conn net.Conn
}

// Server is a TCP front end for a matching.Engine. Out of scope per spec
// §1 ("HTTP/WebSocket transports... treated as external collaborators");
// kept as the reference consumer the teacher repository itself ships.
type Server struct {
	address string
	port    int
	engine  *matching.Engine
	log     zerolog.Logger

	pool   WorkerPool
	cancel context.CancelFunc

	mu        sync.Mutex
	sessions  map[string]net.Conn // owner name -> live connection
	orderedBy map[string]owner    // order id -> owning session
}

func New(address string, port int, engine *matching.Engine, log zerolog.Logger) *Server {
	s := &Server{
		address:   address,
		port:      port,
		engine:    engine,
		log:       log,
		pool:      NewWorkerPool(defaultNWorkers, log),
		sessions:  make(map[string]net.Conn),
		orderedBy: make(map[string]owner),
	}
	engine.SubscribeTrades(s.onTrade)
	return s
}

func (s *Server) Shutdown() {
	s.log.Info().Msg("transport server shutting down")
	if s.cancel != nil {
		s.cancel()
	}
}

// Run listens and serves until ctx is cancelled or a fatal worker error
// occurs.
func (s *Server) Run(ctx context.Context) error {
	defer s.Shutdown()

	ctx, s.cancel = context.WithCancel(ctx)
	t, ctx := tomb.WithContext(ctx)

	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", fmt.Sprintf("%s:%d", s.address, s.port))
	if err != nil {
		return fmt.Errorf("transport: listen: %w", err)
	}
	defer listener.Close()

	t.Go(func() error {
		s.pool.Setup(t, s.handleConnection)
		return nil
	})

	s.log.Info().Str("address", listener.Addr().String()).Msg("transport server listening")

	for {
		select {
		case <-ctx.Done():
			return t.Wait()
		default:
			conn, err := listener.Accept()
			if err != nil {
				select {
				case <-ctx.Done():
					return t.Wait()
				default:
				}
				s.log.Error().Err(err).Msg("accept failed")
				continue
			}
			s.pool.AddTask(conn)
		}
	}
}

// handleConnection reads and dispatches frames off one connection in a
// loop, until the connection errors out or the tomb starts dying. Unlike
// the teacher's requeue-per-message model, a frame boundary here is
// explicit (length-prefixed) so one worker can own a connection for its
// whole lifetime without losing fairness across other connections —
// each connection gets its own goroutine slot from the pool up front.
func (s *Server) handleConnection(t *tomb.Tomb, task any) error {
	conn, ok := task.(net.Conn)
	if !ok {
		return fmt.Errorf("transport: worker task is not a net.Conn")
	}
	defer s.closeConn(conn)

	for {
		select {
		case <-t.Dying():
			return nil
		default:
		}

		conn.SetReadDeadline(time.Now().Add(defaultConnTimeout))
		frame, err := ReadFrame(conn)
		if err != nil {
			if err != io.EOF {
				s.log.Debug().Err(err).Msg("connection read error")
			}
			return nil
		}

		if err := s.dispatch(conn, frame); err != nil {
			s.log.Error().Err(err).Msg("error dispatching frame")
			WriteFrame(conn, EncodeErrorReport(err.Error()))
		}
	}
}

func (s *Server) dispatch(conn net.Conn, frame []byte) error {
	msgType, body, err := DecodeHeader(frame)
	if err != nil {
		return err
	}

	switch msgType {
	case NewOrder:
		return s.handleNewOrder(conn, body)
	case CancelOrder:
		return s.handleCancelOrder(conn, body)
	case Heartbeat:
		return nil
	default:
		return ErrInvalidMessage
	}
}

func (s *Server) handleNewOrder(conn net.Conn, body []byte) error {
	req, err := DecodeNewOrder(body)
	if err != nil {
		return err
	}

	qty, err := decimal.NewFromString(req.Quantity)
	if err != nil {
		return fmt.Errorf("transport: invalid quantity: %w", err)
	}
	var price decimal.Decimal
	if req.HasPrice {
		if price, err = decimal.NewFromString(req.Price); err != nil {
			return fmt.Errorf("transport: invalid price: %w", err)
		}
	}

	in := matching.OrderInput{
		OrderID:  req.OrderID,
		Symbol:   req.Symbol,
		Type:     domain.OrderType(req.Type),
		Side:     domain.OrderSide(req.Side),
		Quantity: qty,
		Price:    price,
		HasPrice: req.HasPrice,
	}

	s.registerSession(req.Owner, conn)

	order, _, err := s.engine.Submit(in)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.orderedBy[order.OrderID] = owner{name: req.Owner, conn: conn}
	s.mu.Unlock()

	return WriteFrame(conn, encodeOrderAck(order))
}

func (s *Server) handleCancelOrder(conn net.Conn, body []byte) error {
	req, err := DecodeCancelOrder(body)
	if err != nil {
		return err
	}
	_, err = s.engine.Cancel(req.OrderID, req.Symbol)
	return err
}

// onTrade fans a fill out to both counterparties' connections, if they are
// still attached. Registered once via matching.Engine.SubscribeTrades; it
// runs synchronously inside Engine.Submit while that symbol's book is
// locked. No write deadline is set on the connections it writes to.
func (s *Server) onTrade(trade domain.Trade) {
	s.mu.Lock()
	maker, hasMaker := s.orderedBy[trade.MakerOrderID]
	taker, hasTaker := s.orderedBy[trade.TakerOrderID]
	s.mu.Unlock()

	report := ExecutionReportWire{
		Symbol:    trade.Symbol,
		Price:     trade.Price.Decimal().String(),
		Quantity:  trade.Quantity.Decimal().String(),
		Timestamp: trade.Timestamp,
	}

	if hasMaker {
		r := report
		r.OrderID = trade.MakerOrderID
		r.CounterpartyID = trade.TakerOrderID
		if err := WriteFrame(maker.conn, EncodeExecutionReport(r)); err != nil {
			s.log.Debug().Err(err).Str("owner", maker.name).Msg("failed to deliver trade report")
		}
	}
	if hasTaker {
		r := report
		r.OrderID = trade.TakerOrderID
		r.CounterpartyID = trade.MakerOrderID
		if err := WriteFrame(taker.conn, EncodeExecutionReport(r)); err != nil {
			s.log.Debug().Err(err).Str("owner", taker.name).Msg("failed to deliver trade report")
		}
	}
}

func encodeOrderAck(o *domain.Order) []byte {
	return EncodeExecutionReport(ExecutionReportWire{
		Symbol:         o.Symbol,
		Side:           uint8(o.Side),
		OrderID:        o.OrderID,
		Status:         uint8(o.Status),
		FilledQuantity: o.FilledQuantity.Decimal().String(),
		RemainingQty:   o.RemainingQuantity().Decimal().String(),
		AveragePrice:   o.AveragePrice.Decimal().String(),
		Timestamp:      o.Timestamp,
	})
}

func (s *Server) registerSession(owner string, conn net.Conn) {
	if owner == "" {
		return
	}
	s.mu.Lock()
	s.sessions[owner] = conn
	s.mu.Unlock()
}

func (s *Server) closeConn(conn net.Conn) {
	conn.Close()
	s.mu.Lock()
	defer s.mu.Unlock()
	for name, c := range s.sessions {
		if c == conn {
			delete(s.sessions, name)
		}
	}
}

// ReadFrame reads one length-prefixed frame: a 4-byte big-endian length
// followed by that many bytes.
func ReadFrame(r io.Reader) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	if n == 0 || n > maxFrameSize {
		return nil, fmt.Errorf("transport: frame size %d out of bounds", n)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// WriteFrame writes a length-prefixed frame.
func WriteFrame(w io.Writer, payload []byte) error {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(payload)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}
