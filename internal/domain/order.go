package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order represents a user-initiated simulated order.
type Order struct {
	ID        string          `json:"id"`
	Pair      Pair            `json:"pair"`
	Side      string          `json:"side"`   // "BUY", "SELL"
	Type      string          `json:"type"`   // "LIMIT", "MARKET"
	Amount    decimal.Decimal `json:"amount"` // Base asset quantity
	Price     decimal.Decimal `json:"price"`  // Quote per base unit
	Status    string          `json:"status"` // "PENDING", "COMPLETED", "CANCELLED"
	CreatedAt time.Time       `json:"created_at"`
}

const (
	SideBuy  = "BUY"
	SideSell = "SELL"

	OrderTypeLimit  = "LIMIT"
	OrderTypeMarket = "MARKET"

	OrderStatusPending   = "PENDING"
	OrderStatusCompleted = "COMPLETED"
	OrderStatusCancelled = "CANCELLED"
)

// IsOpen reports whether the order can still transition.
// COMPLETED and CANCELLED are terminal.
func (o *Order) IsOpen() bool {
	return o.Status == OrderStatusPending
}

// Cost returns the quote-asset value of the order (Amount * Price).
func (o *Order) Cost() decimal.Decimal {
	return o.Amount.Mul(o.Price)
}

// Reservation returns the asset and amount a pending limit order holds
// in the locked bucket: the quote cost for a buy, the base amount for a
// sell. Cancellation releases exactly this reservation.
func (o *Order) Reservation() (asset string, amount decimal.Decimal) {
	if o.Side == SideBuy {
		return o.Pair.Quote, o.Cost()
	}
	return o.Pair.Base, o.Amount
}
