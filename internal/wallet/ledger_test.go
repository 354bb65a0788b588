package wallet

import (
	"testing"
	"time"

	"tradeterm/internal/domain"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func btcusdt() domain.Pair { return domain.Pair{Base: "BTC", Quote: "USDT"} }

func TestLedger_AdjustBalanceInvariant(t *testing.T) {
	l := NewLedger()

	steps := []struct {
		asset  string
		delta  string
		bucket domain.BalanceBucket
	}{
		{"USDT", "1000", domain.BucketFree},
		{"USDT", "-300", domain.BucketFree},
		{"USDT", "300", domain.BucketLocked},
		{"BTC", "0.5", domain.BucketFree},
		{"USDT", "-300", domain.BucketLocked},
		{"USDT", "300", domain.BucketFree},
	}

	for _, s := range steps {
		l.AdjustBalance(s.asset, dec(s.delta), s.bucket)
		for _, b := range l.Balances() {
			if !b.Total.Equal(b.Free.Add(b.Locked)) {
				t.Fatalf("invariant broken for %s after %+v: free=%s locked=%s total=%s",
					b.Asset, s, b.Free, b.Locked, b.Total)
			}
		}
	}

	if got := l.FreeBalance("USDT"); !got.Equal(dec("1000")) {
		t.Errorf("USDT free = %s, want 1000", got)
	}
	if got := l.FreeBalance("DOGE"); !got.Equal(decimal.Zero) {
		t.Errorf("unknown asset free = %s, want 0", got)
	}
}

func TestLedger_AdjustBalanceCreatesZeroBaseline(t *testing.T) {
	l := NewLedger()
	l.AdjustBalance("ETH", dec("-2"), domain.BucketFree)

	balances := l.Balances()
	if len(balances) != 1 {
		t.Fatalf("expected 1 balance, got %d", len(balances))
	}
	// Negative is allowed, not clamped.
	if !balances[0].Free.Equal(dec("-2")) {
		t.Errorf("free = %s, want -2", balances[0].Free)
	}
}

func TestLedger_RecordOrderPrepends(t *testing.T) {
	l := NewLedger()

	first := domain.Order{ID: "a", Pair: btcusdt(), Side: domain.SideBuy, Status: domain.OrderStatusCompleted, CreatedAt: time.Now()}
	second := domain.Order{ID: "b", Pair: btcusdt(), Side: domain.SideSell, Status: domain.OrderStatusPending, CreatedAt: time.Now()}

	l.RecordOrder(first)
	l.RecordOrder(second)

	orders := l.Orders()
	if len(orders) != 2 {
		t.Fatalf("expected 2 orders, got %d", len(orders))
	}
	if orders[0].ID != "b" || orders[1].ID != "a" {
		t.Errorf("history not newest-first: %s, %s", orders[0].ID, orders[1].ID)
	}
}

func TestLedger_CancelReleasesLimitBuyReservation(t *testing.T) {
	l := NewLedger()
	l.AdjustBalance("USDT", dec("1000"), domain.BucketFree)

	// Reserve 5 * 100 = 500 USDT for a limit buy, as the order desk would.
	l.AdjustBalance("USDT", dec("-500"), domain.BucketFree)
	l.AdjustBalance("USDT", dec("500"), domain.BucketLocked)
	l.RecordOrder(domain.Order{
		ID:     "order-1",
		Pair:   btcusdt(),
		Side:   domain.SideBuy,
		Type:   domain.OrderTypeLimit,
		Amount: dec("5"),
		Price:  dec("100"),
		Status: domain.OrderStatusPending,
	})

	if !l.CancelOrder("order-1") {
		t.Fatal("cancellation of a pending order must succeed")
	}

	if got := l.FreeBalance("USDT"); !got.Equal(dec("1000")) {
		t.Errorf("quote free = %s, want 1000 restored", got)
	}
	balances := l.Balances()
	if !balances[0].Locked.Equal(decimal.Zero) {
		t.Errorf("quote locked = %s, want 0", balances[0].Locked)
	}
	if got := l.FreeBalance("BTC"); !got.Equal(decimal.Zero) {
		t.Errorf("base balance changed by cancellation: %s", got)
	}
	if l.Orders()[0].Status != domain.OrderStatusCancelled {
		t.Errorf("status = %s, want CANCELLED", l.Orders()[0].Status)
	}
}

func TestLedger_CancelReleasesLimitSellReservation(t *testing.T) {
	l := NewLedger()
	l.AdjustBalance("BTC", dec("2"), domain.BucketFree)
	l.AdjustBalance("BTC", dec("-0.5"), domain.BucketFree)
	l.AdjustBalance("BTC", dec("0.5"), domain.BucketLocked)
	l.RecordOrder(domain.Order{
		ID:     "order-2",
		Pair:   btcusdt(),
		Side:   domain.SideSell,
		Type:   domain.OrderTypeLimit,
		Amount: dec("0.5"),
		Price:  dec("60000"),
		Status: domain.OrderStatusPending,
	})

	if !l.CancelOrder("order-2") {
		t.Fatal("cancellation of a pending order must succeed")
	}
	if got := l.FreeBalance("BTC"); !got.Equal(dec("2")) {
		t.Errorf("base free = %s, want 2 restored", got)
	}
}

func TestLedger_CancelIsIdempotent(t *testing.T) {
	l := NewLedger()
	l.AdjustBalance("USDT", dec("500"), domain.BucketLocked)
	l.RecordOrder(domain.Order{
		ID:     "order-3",
		Pair:   btcusdt(),
		Side:   domain.SideBuy,
		Type:   domain.OrderTypeLimit,
		Amount: dec("5"),
		Price:  dec("100"),
		Status: domain.OrderStatusPending,
	})

	if !l.CancelOrder("order-3") {
		t.Fatal("first cancel must apply")
	}
	free := l.FreeBalance("USDT")

	if l.CancelOrder("order-3") {
		t.Error("second cancel must be a no-op")
	}
	if !l.FreeBalance("USDT").Equal(free) {
		t.Error("second cancel mutated balances")
	}
}

func TestLedger_CancelIgnoresTerminalAndUnknown(t *testing.T) {
	l := NewLedger()
	l.RecordOrder(domain.Order{ID: "done", Pair: btcusdt(), Side: domain.SideBuy, Type: domain.OrderTypeMarket, Status: domain.OrderStatusCompleted})

	if l.CancelOrder("done") {
		t.Error("completed order must not be cancellable")
	}
	if l.CancelOrder("ghost") {
		t.Error("unknown id must be a no-op")
	}
	if l.Orders()[0].Status != domain.OrderStatusCompleted {
		t.Error("terminal status mutated")
	}
}

func TestLedger_TotalValue(t *testing.T) {
	l := NewLedger()
	l.AdjustBalance("BTC", dec("0.5"), domain.BucketFree)
	l.AdjustBalance("BTC", dec("0.1"), domain.BucketLocked)
	l.AdjustBalance("USDT", dec("1000"), domain.BucketFree)
	l.AdjustBalance("XYZ", dec("42"), domain.BucketFree) // no price known

	prices := map[string]decimal.Decimal{
		"BTC":  dec("60000"),
		"USDT": dec("1"),
	}

	// 0.6 * 60000 + 1000 = 37000; unpriced assets skipped.
	if got := l.TotalValue(prices); !got.Equal(dec("37000")) {
		t.Errorf("TotalValue = %s, want 37000", got)
	}
}

func TestLedger_Restore(t *testing.T) {
	l := NewLedger()
	l.AdjustBalance("DOGE", dec("1"), domain.BucketFree)

	l.Restore(
		[]domain.Balance{{Asset: "BTC", Free: dec("1"), Locked: decimal.Zero, Total: dec("1")}},
		[]domain.Order{{ID: "x", Pair: btcusdt(), Status: domain.OrderStatusPending}},
	)

	if got := l.FreeBalance("DOGE"); !got.Equal(decimal.Zero) {
		t.Error("restore must replace state wholesale")
	}
	if got := l.FreeBalance("BTC"); !got.Equal(dec("1")) {
		t.Errorf("BTC free = %s, want 1", got)
	}
	if len(l.Orders()) != 1 {
		t.Errorf("orders = %d, want 1", len(l.Orders()))
	}

	// Restored orders stay cancellable through the normal path.
	l.AdjustBalance("USDT", decimal.Zero, domain.BucketFree)
	if !l.CancelOrder("x") {
		t.Error("restored pending order should cancel")
	}
}
