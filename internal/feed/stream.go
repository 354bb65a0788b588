package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"sync"
	"time"

	"tradeterm/internal/domain"
	"tradeterm/internal/infra"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
)

const (
	maxRetries       = 10
	handshakeTimeout = 10 * time.Second
	readTimeout      = 60 * time.Second
)

// StreamWorker owns the one live websocket connection for a pair,
// multiplexing the ticker, trade and partial-depth channels on a single
// stream path. Parsed messages go into the service inbox tagged with
// the worker's generation; a worker that outlives its pair switch can
// therefore never corrupt newer state.
//
// Dropped connections are redialed with exponential backoff until the
// worker is disconnected.
type StreamWorker struct {
	wsURL       string
	pair        domain.Pair
	gen         uint64
	depthLevels int
	inbox       chan<- event
	conn        *websocket.Conn
	mu          sync.RWMutex
	connected   bool
	cancel      context.CancelFunc
	wg          sync.WaitGroup
}

// NewStreamWorker creates a worker for one pair at one generation.
func NewStreamWorker(wsURL string, pair domain.Pair, gen uint64, depthLevels int, inbox chan<- event) *StreamWorker {
	return &StreamWorker{
		wsURL:       wsURL,
		pair:        pair,
		gen:         gen,
		depthLevels: depthLevels,
		inbox:       inbox,
	}
}

// Connect starts the connection loop in the background.
func (w *StreamWorker) Connect(ctx context.Context) error {
	ctx, w.cancel = context.WithCancel(ctx)
	w.wg.Add(1)
	go w.connectionLoop(ctx)
	return nil
}

func (w *StreamWorker) connectionLoop(ctx context.Context) {
	defer w.wg.Done()
	retryCount := 0
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := w.connect(ctx); err != nil {
			if !domain.IsRetriable(err) {
				slog.Error("stream connection failed permanently",
					slog.String("pair", w.pair.String()),
					slog.Any("error", err))
				infra.GlobalMetrics.RecordError()
				return
			}
			slog.Warn("stream connection failed",
				slog.String("pair", w.pair.String()),
				slog.Any("error", err),
				slog.Int("retry", retryCount))
			infra.GlobalMetrics.RecordError()
			infra.GlobalMetrics.RecordReconnect()
			delay := infra.CalculateBackoff(retryCount)
			retryCount++
			if retryCount > maxRetries {
				retryCount = 0
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
				continue
			}
		} else {
			retryCount = 0
			w.readLoop(ctx)
			infra.GlobalMetrics.SetStreamUp(false)
		}
	}
}

// streamPath joins the three logical channels on one connection, the
// way the exchange multiplexes raw streams.
func (w *StreamWorker) streamPath() string {
	sym := w.pair.StreamSymbol()
	return fmt.Sprintf("%s/%s@ticker/%s@trade/%s@depth20@100ms", w.wsURL, sym, sym, sym)
}

func (w *StreamWorker) connect(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	path := w.streamPath()
	if _, parseErr := url.Parse(path); parseErr != nil {
		return domain.NewFatalNetworkError("dial stream", parseErr)
	}
	conn, _, err := dialer.DialContext(ctx, path, nil)
	if err != nil {
		return domain.NewNetworkError("dial stream", fmt.Errorf("%w: %s", domain.ErrConnectionFailed, err))
	}

	w.mu.Lock()
	w.conn = conn
	w.connected = true
	w.mu.Unlock()

	infra.GlobalMetrics.IncrementConnections()
	infra.GlobalMetrics.SetStreamUp(true)
	slog.Info("stream connected", slog.String("pair", w.pair.String()), slog.Uint64("gen", w.gen))
	return nil
}

func (w *StreamWorker) readLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			w.closeConnection()
			return
		default:
		}

		w.mu.RLock()
		conn := w.conn
		w.mu.RUnlock()
		if conn == nil {
			return
		}
		conn.SetReadDeadline(time.Now().Add(readTimeout))

		_, msg, err := conn.ReadMessage()
		if err != nil {
			slog.Warn("stream read failed", slog.String("pair", w.pair.String()), slog.Any("error", err))
			infra.GlobalMetrics.RecordError()
			w.closeConnection()
			return
		}
		w.handleMessage(msg)
	}
}

func (w *StreamWorker) handleMessage(msg []byte) {
	ev, err := parseStreamMessage(msg, w.gen, w.depthLevels)
	if err != nil {
		slog.Debug("unparsable stream message", slog.Any("error", err))
		infra.GlobalMetrics.RecordError()
		return
	}
	if ev == nil {
		return
	}
	select {
	case w.inbox <- ev:
	default: // inbox full, drop rather than stall the socket
	}
}

// streamMessage covers all three multiplexed payload shapes; the event
// type field (or the presence of bids/asks for partial depth, which
// carries no type) tells them apart.
type streamMessage struct {
	EventType string `json:"e"`

	// 24hrTicker
	LastPrice string `json:"c"`

	// trade
	TradeID    int64  `json:"t"`
	Price      string `json:"p"`
	Quantity   string `json:"q"`
	TradeTime  int64  `json:"T"`
	BuyerMaker bool   `json:"m"`

	// depth20 partial book
	Bids [][]string `json:"bids"`
	Asks [][]string `json:"asks"`
}

func parseStreamMessage(msg []byte, gen uint64, depthLevels int) (event, error) {
	var m streamMessage
	if err := json.Unmarshal(msg, &m); err != nil {
		return nil, err
	}

	switch {
	case m.EventType == "24hrTicker":
		price, err := decimal.NewFromString(m.LastPrice)
		if err != nil {
			return nil, fmt.Errorf("ticker price: %w", err)
		}
		return tickerEvent{gen: gen, price: price}, nil

	case m.EventType == "trade":
		price, err := decimal.NewFromString(m.Price)
		if err != nil {
			return nil, fmt.Errorf("trade price: %w", err)
		}
		amount, err := decimal.NewFromString(m.Quantity)
		if err != nil {
			return nil, fmt.Errorf("trade quantity: %w", err)
		}
		side := domain.SideBuy
		if m.BuyerMaker {
			side = domain.SideSell
		}
		return tradeEvent{gen: gen, trade: domain.Trade{
			ID:     strconv.FormatInt(m.TradeID, 10),
			Price:  price,
			Amount: amount,
			Side:   side,
			Time:   time.UnixMilli(m.TradeTime),
		}}, nil

	case len(m.Bids) > 0 || len(m.Asks) > 0:
		bids, err := parseDepthSide(m.Bids, depthLevels)
		if err != nil {
			return nil, fmt.Errorf("depth bids: %w", err)
		}
		asks, err := parseDepthSide(m.Asks, depthLevels)
		if err != nil {
			return nil, fmt.Errorf("depth asks: %w", err)
		}
		return depthEvent{gen: gen, bids: bids, asks: asks}, nil
	}

	// Subscription acks and unknown event types are silently skipped.
	return nil, nil
}

func parseDepthSide(raw [][]string, limit int) ([]domain.BookLevel, error) {
	if len(raw) > limit {
		raw = raw[:limit]
	}
	levels := make([]domain.BookLevel, 0, len(raw))
	for _, entry := range raw {
		if len(entry) < 2 {
			return nil, fmt.Errorf("level has %d fields", len(entry))
		}
		level, err := priceLevelToBookLevel(entry[0], entry[1])
		if err != nil {
			return nil, err
		}
		levels = append(levels, level)
	}
	return levels, nil
}

func (w *StreamWorker) closeConnection() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.conn != nil {
		w.conn.Close()
		w.conn = nil
		infra.GlobalMetrics.DecrementConnections()
	}
	w.connected = false
}

// Disconnect tears the connection down synchronously; it returns only
// after the read loop has exited, so a replacement worker can open
// without the two overlapping.
func (w *StreamWorker) Disconnect() {
	if w.cancel != nil {
		w.cancel()
	}
	w.closeConnection()
	w.wg.Wait()
}

// IsConnected reports the current connection state.
func (w *StreamWorker) IsConnected() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.connected
}
