package trading

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"tradeterm/internal/domain"
	"tradeterm/internal/wallet"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderRequest carries raw user intent from the order form. Amount and
// Price arrive as typed-in strings; parsing them is part of validation.
type OrderRequest struct {
	Pair   domain.Pair
	Side   string // domain.SideBuy or domain.SideSell
	Type   string // domain.OrderTypeLimit or domain.OrderTypeMarket
	Amount string
	Price  string // ignored for market orders
}

// Desk translates user intent plus the current market price into a
// concrete order and its funds-reservation plan, then drives the
// ledger. The whole validate-then-reserve sequence runs under one lock
// so no caller can observe a partial reservation.
type Desk struct {
	mu     sync.Mutex
	ledger *wallet.Ledger
}

// NewDesk creates a desk bound to a ledger.
func NewDesk(ledger *wallet.Ledger) *Desk {
	return &Desk{ledger: ledger}
}

// PlaceOrder validates the request against the free balance, applies
// the balance deltas and records the order. Market orders settle into
// COMPLETED immediately; limit orders start PENDING with their cost
// moved from the free to the locked bucket. Any validation failure
// returns before the ledger is touched.
func (d *Desk) PlaceOrder(req OrderRequest, marketPrice decimal.Decimal) (domain.Order, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	amount, err := parsePositive(req.Amount)
	if err != nil {
		return domain.Order{}, fmt.Errorf("%w: %q", domain.ErrInvalidAmount, req.Amount)
	}

	price, err := resolvePrice(req.Type, req.Price, marketPrice)
	if err != nil {
		return domain.Order{}, err
	}

	cost := amount.Mul(price)

	// The reservation requirement and the balance it draws from depend
	// on the side: a buy spends the quote asset, a sell the base asset.
	reserveAsset, required := req.Pair.Quote, cost
	if req.Side == domain.SideSell {
		reserveAsset, required = req.Pair.Base, amount
	}

	if required.GreaterThan(d.ledger.FreeBalance(reserveAsset)) {
		return domain.Order{}, fmt.Errorf("%w: need %s %s, free %s",
			domain.ErrInsufficientBalance, required, reserveAsset, d.ledger.FreeBalance(reserveAsset))
	}

	order := domain.Order{
		ID:        uuid.NewString(),
		Pair:      req.Pair,
		Side:      req.Side,
		Type:      req.Type,
		Amount:    amount,
		Price:     price,
		Status:    domain.OrderStatusPending,
		CreatedAt: time.Now(),
	}

	switch {
	case req.Type == domain.OrderTypeMarket && req.Side == domain.SideBuy:
		d.ledger.AdjustBalance(req.Pair.Quote, cost.Neg(), domain.BucketFree)
		d.ledger.AdjustBalance(req.Pair.Base, amount, domain.BucketFree)
		order.Status = domain.OrderStatusCompleted
	case req.Type == domain.OrderTypeMarket && req.Side == domain.SideSell:
		d.ledger.AdjustBalance(req.Pair.Base, amount.Neg(), domain.BucketFree)
		d.ledger.AdjustBalance(req.Pair.Quote, cost, domain.BucketFree)
		order.Status = domain.OrderStatusCompleted
	case req.Side == domain.SideBuy:
		d.ledger.AdjustBalance(req.Pair.Quote, cost.Neg(), domain.BucketFree)
		d.ledger.AdjustBalance(req.Pair.Quote, cost, domain.BucketLocked)
	default:
		d.ledger.AdjustBalance(req.Pair.Base, amount.Neg(), domain.BucketFree)
		d.ledger.AdjustBalance(req.Pair.Base, amount, domain.BucketLocked)
	}

	d.ledger.RecordOrder(order)

	slog.Info("order accepted",
		slog.String("id", order.ID),
		slog.String("pair", order.Pair.String()),
		slog.String("side", order.Side),
		slog.String("type", order.Type),
		slog.String("amount", order.Amount.String()),
		slog.String("price", order.Price.String()),
		slog.String("status", order.Status))

	return order, nil
}

// Cancel forwards a cancellation to the ledger. Non-pending targets are
// a silent no-op there; the return value only drives UI feedback.
func (d *Desk) Cancel(id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.ledger.CancelOrder(id)
}

// PercentAmount pre-fills the amount field for the 25/50/75/100%
// shortcuts: for a buy the free quote balance is converted through the
// effective price, for a sell the free base balance is used directly.
// Returns zero when the price is not resolvable yet.
func (d *Desk) PercentAmount(req OrderRequest, pct int64, marketPrice decimal.Decimal) decimal.Decimal {
	fraction := decimal.NewFromInt(pct).Div(decimal.NewFromInt(100))

	if req.Side == domain.SideSell {
		return d.ledger.FreeBalance(req.Pair.Base).Mul(fraction).Round(6)
	}

	price, err := resolvePrice(req.Type, req.Price, marketPrice)
	if err != nil {
		return decimal.Zero
	}
	return d.ledger.FreeBalance(req.Pair.Quote).Mul(fraction).Div(price).Round(6)
}

// EstimatedCost returns the quote value of the drafted order for
// display, zero while the draft does not parse.
func (d *Desk) EstimatedCost(req OrderRequest, marketPrice decimal.Decimal) decimal.Decimal {
	amount, err := parsePositive(req.Amount)
	if err != nil {
		return decimal.Zero
	}
	price, err := resolvePrice(req.Type, req.Price, marketPrice)
	if err != nil {
		return decimal.Zero
	}
	return amount.Mul(price)
}

func parsePositive(raw string) (decimal.Decimal, error) {
	v, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Decimal{}, err
	}
	if !v.IsPositive() {
		return decimal.Decimal{}, fmt.Errorf("non-positive value %s", v)
	}
	return v, nil
}

func resolvePrice(orderType, raw string, marketPrice decimal.Decimal) (decimal.Decimal, error) {
	if orderType == domain.OrderTypeMarket {
		if !marketPrice.IsPositive() {
			return decimal.Decimal{}, fmt.Errorf("%w: no market price yet", domain.ErrInvalidPrice)
		}
		return marketPrice, nil
	}
	price, err := parsePositive(raw)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%w: %q", domain.ErrInvalidPrice, raw)
	}
	return price, nil
}
