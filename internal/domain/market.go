package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Trade is one print from the exchange trade tape.
type Trade struct {
	ID     string          `json:"id"`
	Price  decimal.Decimal `json:"price"`
	Amount decimal.Decimal `json:"amount"`
	Side   string          `json:"side"` // SideBuy or SideSell (taker side)
	Time   time.Time       `json:"time"`
}

// BookLevel is one price level of one side of the order book.
// Total is the cumulative amount from the best price out to this level.
type BookLevel struct {
	Price  decimal.Decimal `json:"price"`
	Amount decimal.Decimal `json:"amount"`
	Total  decimal.Decimal `json:"total"`
}

// OrderBook holds both sides of the depth snapshot, best price first.
type OrderBook struct {
	Bids []BookLevel `json:"bids"`
	Asks []BookLevel `json:"asks"`
}

// RecomputeTotals rebuilds the cumulative totals on both sides as a
// running sum walking outward from the best price. Totals are never
// patched incrementally; every depth update replaces the book wholesale
// and calls this.
func (ob *OrderBook) RecomputeTotals() {
	recomputeSide(ob.Bids)
	recomputeSide(ob.Asks)
}

func recomputeSide(levels []BookLevel) {
	sum := decimal.Zero
	for i := range levels {
		sum = sum.Add(levels[i].Amount)
		levels[i].Total = sum
	}
}

// Candle is one OHLCV bar. Only the in-progress (last) bar of a series
// mutates; closed bars are immutable.
type Candle struct {
	Time   time.Time       `json:"time"`
	Open   decimal.Decimal `json:"open"`
	High   decimal.Decimal `json:"high"`
	Low    decimal.Decimal `json:"low"`
	Close  decimal.Decimal `json:"close"`
	Volume decimal.Decimal `json:"volume"`
}

// ApplyTick folds a traded price into the bar: close always follows the
// tick, high/low widen when exceeded. It never opens a new bar.
func (c *Candle) ApplyTick(price decimal.Decimal) {
	c.Close = price
	if price.GreaterThan(c.High) {
		c.High = price
	}
	if price.LessThan(c.Low) {
		c.Low = price
	}
}

// Label formats the bar time the way the chart axis shows it.
func (c *Candle) Label() string {
	return c.Time.Format("15:04")
}
