package feed

import (
	"tradeterm/internal/domain"

	"github.com/shopspring/decimal"
)

// event is anything the service loop consumes from its inbox. All
// state mutation happens by applying events one at a time on a single
// goroutine, so no mutation can interleave with another mid-apply.
type event interface{ isEvent() }

// pairScoped events carry the bootstrap generation they belong to; the
// loop discards anything from a superseded generation so a slow fetch
// can never overwrite newer state.
type pairScoped interface {
	event
	generation() uint64
}

type tickerEvent struct {
	gen   uint64
	price decimal.Decimal
}

type tradeEvent struct {
	gen   uint64
	trade domain.Trade
}

type depthEvent struct {
	gen  uint64
	bids []domain.BookLevel
	asks []domain.BookLevel
}

type historyEvent struct {
	gen     uint64
	candles []domain.Candle
}

type bookSnapshotEvent struct {
	gen  uint64
	book domain.OrderBook
}

// priceTableEvent carries the auxiliary all-assets price poll. It is
// independent of the active pair and never goes stale.
type priceTableEvent struct {
	prices map[string]decimal.Decimal
}

type switchMarketEvent struct {
	pair domain.Pair
}

type switchIntervalEvent struct {
	interval string
}

func (tickerEvent) isEvent()         {}
func (tradeEvent) isEvent()          {}
func (depthEvent) isEvent()          {}
func (historyEvent) isEvent()        {}
func (bookSnapshotEvent) isEvent()   {}
func (priceTableEvent) isEvent()     {}
func (switchMarketEvent) isEvent()   {}
func (switchIntervalEvent) isEvent() {}

func (e tickerEvent) generation() uint64       { return e.gen }
func (e tradeEvent) generation() uint64        { return e.gen }
func (e depthEvent) generation() uint64        { return e.gen }
func (e historyEvent) generation() uint64      { return e.gen }
func (e bookSnapshotEvent) generation() uint64 { return e.gen }
