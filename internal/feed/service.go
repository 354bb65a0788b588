package feed

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"tradeterm/internal/domain"
	"tradeterm/internal/infra"

	"github.com/shopspring/decimal"
)

const (
	defaultTapeLimit = 20
	inboxSize        = 1024
)

// restAPI is the request/response surface the service bootstraps from.
type restAPI interface {
	Candles(ctx context.Context, pair domain.Pair, interval string) ([]domain.Candle, error)
	Book(ctx context.Context, pair domain.Pair) (domain.OrderBook, error)
	PriceTable(ctx context.Context, referenceQuote string) (map[string]decimal.Decimal, error)
}

// streamController is the lifecycle surface of a stream worker.
type streamController interface {
	Connect(ctx context.Context) error
	Disconnect()
}

// Options configures a feed service.
type Options struct {
	WSURL          string
	ReferenceQuote string
	DepthLevels    int           // levels kept per side from stream depth payloads
	TapeLimit      int           // most-recent trade prints retained
	PollInterval   time.Duration // price table poll cadence
	OnUpdate       func()        // called after every applied event (UI notify)
}

// Service mirrors exchange state for one pair and one candle interval:
// current price, candle series, order book, trade tape, plus the
// auxiliary all-assets price table. Every mutation is an event applied
// by the single Run goroutine; reads take copies under RWMutex.
//
// Each pair/interval switch bumps a generation counter. Bootstrap
// responses and stream messages carry the generation they were issued
// under, and the loop drops anything stale, so a superseded fetch that
// resolves late can never overwrite newer state.
type Service struct {
	rest      restAPI
	opts      Options
	inbox     chan event
	newStream func(pair domain.Pair, gen uint64) streamController

	mu       sync.RWMutex
	pair     domain.Pair
	interval string
	gen      uint64
	price    decimal.Decimal
	candles  []domain.Candle
	book     domain.OrderBook
	trades   []domain.Trade
	prices   map[string]decimal.Decimal

	worker streamController
}

// NewService creates a feed service. Run must be started before any
// state appears.
func NewService(rest restAPI, opts Options) *Service {
	if opts.TapeLimit <= 0 {
		opts.TapeLimit = defaultTapeLimit
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 10 * time.Second
	}
	s := &Service{
		rest:   rest,
		opts:   opts,
		inbox:  make(chan event, inboxSize),
		prices: map[string]decimal.Decimal{opts.ReferenceQuote: decimal.NewFromInt(1)},
	}
	s.newStream = func(pair domain.Pair, gen uint64) streamController {
		return NewStreamWorker(opts.WSURL, pair, gen, opts.DepthLevels, s.inbox)
	}
	return s
}

// SetOnUpdate registers the callback invoked after every applied
// event. Must be set before Run starts.
func (s *Service) SetOnUpdate(fn func()) {
	s.opts.OnUpdate = fn
}

// SwitchMarket requests a pair change. The switch itself runs inside
// the event loop so it sequences with every other mutation.
func (s *Service) SwitchMarket(pair domain.Pair) {
	s.inbox <- switchMarketEvent{pair: pair}
}

// SwitchInterval requests a candle-interval change for the active pair.
func (s *Service) SwitchInterval(interval string) {
	s.inbox <- switchIntervalEvent{interval: interval}
}

// Run drives the feed: it starts the price poller, bootstraps the
// initial market and then applies inbox events until ctx is done.
// It must be called exactly once.
func (s *Service) Run(ctx context.Context, pair domain.Pair, interval string) {
	poller := NewPricePoller(s.rest, s.opts.ReferenceQuote, s.opts.PollInterval, s.inbox)
	if err := poller.Start(ctx); err != nil {
		slog.Warn("price poller failed to start", slog.Any("error", err))
	}
	defer poller.Stop()

	s.mu.Lock()
	s.interval = interval
	s.mu.Unlock()
	s.switchMarket(ctx, pair)

	defer func() {
		if s.worker != nil {
			s.worker.Disconnect()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			slog.Info("feed stopping")
			return
		case ev := <-s.inbox:
			s.apply(ctx, ev)
		}
	}
}

// apply dispatches one event. Only this method mutates feed state, and
// it only ever runs on the Run goroutine.
func (s *Service) apply(ctx context.Context, ev event) {
	if scoped, ok := ev.(pairScoped); ok {
		s.mu.RLock()
		current := s.gen
		s.mu.RUnlock()
		if scoped.generation() != current {
			infra.GlobalMetrics.RecordStaleDrop()
			return
		}
	}

	switch e := ev.(type) {
	case switchMarketEvent:
		s.switchMarket(ctx, e.pair)
		return
	case switchIntervalEvent:
		s.switchInterval(ctx, e.interval)
		return

	case tickerEvent:
		s.applyTicker(e)
	case tradeEvent:
		s.applyTrade(e)
	case depthEvent:
		s.applyDepth(e)
	case historyEvent:
		s.applyHistory(e)
	case bookSnapshotEvent:
		s.applyBookSnapshot(e)
	case priceTableEvent:
		s.applyPriceTable(e)
	default:
		slog.Warn("unknown feed event", slog.Any("event", ev))
		return
	}

	infra.GlobalMetrics.RecordMessage()
	if s.opts.OnUpdate != nil {
		s.opts.OnUpdate()
	}
}

// switchMarket tears the old stream down before the new one opens and
// starts a fresh bootstrap generation. Local state is cleared so the
// UI never shows the previous pair's data under the new header.
func (s *Service) switchMarket(ctx context.Context, pair domain.Pair) {
	if s.worker != nil {
		s.worker.Disconnect()
		s.worker = nil
	}

	s.mu.Lock()
	s.pair = pair
	s.gen++
	gen := s.gen
	interval := s.interval
	s.price = decimal.Zero
	s.candles = nil
	s.book = domain.OrderBook{}
	s.trades = nil
	s.mu.Unlock()

	slog.Info("switching market", slog.String("pair", pair.String()), slog.Uint64("gen", gen))

	s.worker = s.newStream(pair, gen)
	if err := s.worker.Connect(ctx); err != nil {
		slog.Warn("stream start failed", slog.Any("error", err))
		infra.GlobalMetrics.RecordError()
	}

	s.bootstrap(ctx, pair, interval, gen, true)

	if s.opts.OnUpdate != nil {
		s.opts.OnUpdate()
	}
}

// switchInterval refetches history only; the stream subscription does
// not depend on the candle interval.
func (s *Service) switchInterval(ctx context.Context, interval string) {
	s.mu.Lock()
	s.interval = interval
	s.gen++
	gen := s.gen
	pair := s.pair
	s.candles = nil
	s.mu.Unlock()

	s.bootstrap(ctx, pair, interval, gen, false)
}

// bootstrap launches the request/response fetches for a generation.
// The calls run off-loop so they cannot stall event processing; their
// results come back through the inbox carrying gen, and the staleness
// check discards them if another switch happened meanwhile. Failures
// are logged and the state keeps its last-known value.
func (s *Service) bootstrap(ctx context.Context, pair domain.Pair, interval string, gen uint64, withBook bool) {
	go func() {
		candles, err := s.rest.Candles(ctx, pair, interval)
		if err != nil {
			slog.Warn("history fetch failed", slog.String("pair", pair.String()), slog.Any("error", err))
			infra.GlobalMetrics.RecordError()
			return
		}
		select {
		case s.inbox <- historyEvent{gen: gen, candles: candles}:
		case <-ctx.Done():
		}
	}()

	if !withBook {
		return
	}
	go func() {
		book, err := s.rest.Book(ctx, pair)
		if err != nil {
			slog.Warn("depth fetch failed", slog.String("pair", pair.String()), slog.Any("error", err))
			infra.GlobalMetrics.RecordError()
			return
		}
		select {
		case s.inbox <- bookSnapshotEvent{gen: gen, book: book}:
		case <-ctx.Done():
		}
	}()
}

// applyTicker updates the current price and folds the tick into the
// in-progress candle. It never opens a new bar.
func (s *Service) applyTicker(e tickerEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.price = e.price
	if len(s.candles) > 0 {
		s.candles[len(s.candles)-1].ApplyTick(e.price)
	}
	if !s.pair.IsZero() {
		s.prices[s.pair.Base] = e.price
	}
}

func (s *Service) applyTrade(e tradeEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.trades = append([]domain.Trade{e.trade}, s.trades...)
	if len(s.trades) > s.opts.TapeLimit {
		s.trades = s.trades[:s.opts.TapeLimit]
	}
}

// applyDepth replaces the book wholesale; cumulative totals are always
// recomputed from the best price outward, never patched.
func (s *Service) applyDepth(e depthEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.book = domain.OrderBook{Bids: e.bids, Asks: e.asks}
	s.book.RecomputeTotals()
}

func (s *Service) applyHistory(e historyEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.candles = e.candles
	if len(e.candles) > 0 {
		last := e.candles[len(e.candles)-1].Close
		s.price = last
		if !s.pair.IsZero() {
			s.prices[s.pair.Base] = last
		}
	}
}

func (s *Service) applyBookSnapshot(e bookSnapshotEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.book = e.book
}

func (s *Service) applyPriceTable(e priceTableEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Merge rather than replace: a poll that briefly misses an asset
	// must not blank its last-known price.
	for asset, price := range e.prices {
		s.prices[asset] = price
	}
}

// Snapshot is a copy of all feed state for one render.
type Snapshot struct {
	Pair     domain.Pair
	Interval string
	Price    decimal.Decimal
	Candles  []domain.Candle
	Book     domain.OrderBook
	Trades   []domain.Trade
	Prices   map[string]decimal.Decimal
}

// Snapshot returns a deep copy of the current state.
func (s *Service) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		Pair:     s.pair,
		Interval: s.interval,
		Price:    s.price,
		Candles:  make([]domain.Candle, len(s.candles)),
		Trades:   make([]domain.Trade, len(s.trades)),
		Prices:   make(map[string]decimal.Decimal, len(s.prices)),
	}
	copy(snap.Candles, s.candles)
	copy(snap.Trades, s.trades)
	snap.Book.Bids = make([]domain.BookLevel, len(s.book.Bids))
	snap.Book.Asks = make([]domain.BookLevel, len(s.book.Asks))
	copy(snap.Book.Bids, s.book.Bids)
	copy(snap.Book.Asks, s.book.Asks)
	for k, v := range s.prices {
		snap.Prices[k] = v
	}
	return snap
}

// Prices returns a copy of the valuation price table.
func (s *Service) Prices() map[string]decimal.Decimal {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]decimal.Decimal, len(s.prices))
	for k, v := range s.prices {
		out[k] = v
	}
	return out
}

// Price returns the last traded price of the active pair.
func (s *Service) Price() decimal.Decimal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.price
}

// Pair returns the active pair.
func (s *Service) Pair() domain.Pair {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pair
}
