package wallet

import (
	"log/slog"
	"sync"

	"tradeterm/internal/domain"

	"github.com/shopspring/decimal"
)

// Ledger owns the simulated wallet: one balance per asset (ordered,
// asset unique) and the order history (newest first). It is the only
// write path for both; everything else reads copies.
//
// State lives in process memory and resets on restart unless a snapshot
// store is attached at the boundary (see infra/storage).
type Ledger struct {
	mu       sync.RWMutex
	balances []domain.Balance
	index    map[string]int // asset -> position in balances
	orders   []domain.Order
}

// NewLedger creates an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{
		index: make(map[string]int),
	}
}

// AdjustBalance adds delta to the chosen bucket of an asset, creating
// the balance record with a zero baseline when absent. Totals are
// recomputed on every call. No bound checking happens here: a negative
// result is allowed and signals a logic defect upstream.
func (l *Ledger) AdjustBalance(asset string, delta decimal.Decimal, bucket domain.BalanceBucket) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.adjustLocked(asset, delta, bucket)
}

func (l *Ledger) adjustLocked(asset string, delta decimal.Decimal, bucket domain.BalanceBucket) {
	i, ok := l.index[asset]
	if !ok {
		l.balances = append(l.balances, domain.NewBalance(asset))
		i = len(l.balances) - 1
		l.index[asset] = i
	}
	l.balances[i].Adjust(delta, bucket)

	if l.balances[i].Free.IsNegative() || l.balances[i].Locked.IsNegative() {
		slog.Warn("balance went negative, caller skipped validation",
			slog.String("asset", asset),
			slog.String("free", l.balances[i].Free.String()),
			slog.String("locked", l.balances[i].Locked.String()))
	}
}

// RecordOrder prepends an order to the history. The caller is
// responsible for having already moved funds via AdjustBalance; no
// consistency check happens here.
func (l *Ledger) RecordOrder(order domain.Order) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.orders = append([]domain.Order{order}, l.orders...)
}

// CancelOrder transitions a PENDING order to CANCELLED and releases its
// reservation back to the free bucket. Unknown ids and orders in any
// other status are a silent no-op, not an error; it reports whether a
// cancellation actually happened.
func (l *Ledger) CancelOrder(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	for i := range l.orders {
		if l.orders[i].ID != id {
			continue
		}
		if !l.orders[i].IsOpen() {
			return false
		}
		asset, amount := l.orders[i].Reservation()
		l.adjustLocked(asset, amount.Neg(), domain.BucketLocked)
		l.adjustLocked(asset, amount, domain.BucketFree)
		l.orders[i].Status = domain.OrderStatusCancelled
		return true
	}
	return false
}

// FreeBalance returns the spendable amount of an asset, zero when the
// asset has no record.
func (l *Ledger) FreeBalance(asset string) decimal.Decimal {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if i, ok := l.index[asset]; ok {
		return l.balances[i].Free
	}
	return decimal.Zero
}

// Balances returns a copy of all balances in insertion order.
func (l *Ledger) Balances() []domain.Balance {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]domain.Balance, len(l.balances))
	copy(out, l.balances)
	return out
}

// Orders returns a copy of the order history, newest first.
func (l *Ledger) Orders() []domain.Order {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]domain.Order, len(l.orders))
	copy(out, l.orders)
	return out
}

// TotalValue prices the whole portfolio in the reference quote
// currency. prices maps asset -> last price vs the reference quote (the
// reference itself pinned to 1 by the feed). Assets without a price are
// skipped rather than guessed at.
func (l *Ledger) TotalValue(prices map[string]decimal.Decimal) decimal.Decimal {
	l.mu.RLock()
	defer l.mu.RUnlock()

	total := decimal.Zero
	for _, b := range l.balances {
		price, ok := prices[b.Asset]
		if !ok {
			continue
		}
		total = total.Add(b.Total.Mul(price))
	}
	return total
}

// Restore replaces the ledger state wholesale. Used to seed demo
// balances at startup and to load a snapshot.
func (l *Ledger) Restore(balances []domain.Balance, orders []domain.Order) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.balances = make([]domain.Balance, len(balances))
	copy(l.balances, balances)
	l.index = make(map[string]int, len(balances))
	for i := range l.balances {
		l.index[l.balances[i].Asset] = i
	}
	l.orders = make([]domain.Order, len(orders))
	copy(l.orders, orders)
}
