package trading

import (
	"errors"
	"testing"

	"tradeterm/internal/domain"
	"tradeterm/internal/wallet"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newDesk(t *testing.T, seed map[string]string) (*Desk, *wallet.Ledger) {
	t.Helper()
	l := wallet.NewLedger()
	for asset, free := range seed {
		l.AdjustBalance(asset, dec(free), domain.BucketFree)
	}
	return NewDesk(l), l
}

func buyReq(orderType, amount, price string) OrderRequest {
	return OrderRequest{
		Pair:   domain.Pair{Base: "BTC", Quote: "USDT"},
		Side:   domain.SideBuy,
		Type:   orderType,
		Amount: amount,
		Price:  price,
	}
}

func sellReq(orderType, amount, price string) OrderRequest {
	r := buyReq(orderType, amount, price)
	r.Side = domain.SideSell
	return r
}

func TestDesk_MarketBuy(t *testing.T) {
	desk, l := newDesk(t, map[string]string{"USDT": "1000"})

	order, err := desk.PlaceOrder(buyReq(domain.OrderTypeMarket, "5", ""), dec("100"))
	if err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}

	if order.Status != domain.OrderStatusCompleted {
		t.Errorf("market order status = %s, want COMPLETED", order.Status)
	}
	if got := l.FreeBalance("USDT"); !got.Equal(dec("500")) {
		t.Errorf("quote free = %s, want 500", got)
	}
	if got := l.FreeBalance("BTC"); !got.Equal(dec("5")) {
		t.Errorf("base free = %s, want 5", got)
	}
	if len(l.Orders()) != 1 {
		t.Errorf("orders = %d, want 1", len(l.Orders()))
	}
}

func TestDesk_MarketSell(t *testing.T) {
	desk, l := newDesk(t, map[string]string{"BTC": "2"})

	_, err := desk.PlaceOrder(sellReq(domain.OrderTypeMarket, "0.5", ""), dec("60000"))
	if err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}

	if got := l.FreeBalance("BTC"); !got.Equal(dec("1.5")) {
		t.Errorf("base free = %s, want 1.5", got)
	}
	if got := l.FreeBalance("USDT"); !got.Equal(dec("30000")) {
		t.Errorf("quote free = %s, want 30000", got)
	}
}

func TestDesk_LimitBuyReserves(t *testing.T) {
	desk, l := newDesk(t, map[string]string{"USDT": "1000"})

	order, err := desk.PlaceOrder(buyReq(domain.OrderTypeLimit, "5", "100"), dec("120"))
	if err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}
	if order.Status != domain.OrderStatusPending {
		t.Errorf("limit order status = %s, want PENDING", order.Status)
	}
	// Limit price, not market price, drives the reservation.
	if !order.Price.Equal(dec("100")) {
		t.Errorf("order price = %s, want 100", order.Price)
	}

	b := l.Balances()[0]
	if !b.Free.Equal(dec("500")) || !b.Locked.Equal(dec("500")) {
		t.Errorf("USDT free=%s locked=%s, want 500/500", b.Free, b.Locked)
	}
	// Reservation, not spend: no base asset credited.
	if got := l.FreeBalance("BTC"); !got.Equal(decimal.Zero) {
		t.Errorf("base free = %s, want 0", got)
	}
}

func TestDesk_LimitSellReserves(t *testing.T) {
	desk, l := newDesk(t, map[string]string{"BTC": "2"})

	_, err := desk.PlaceOrder(sellReq(domain.OrderTypeLimit, "0.5", "70000"), dec("60000"))
	if err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}

	b := l.Balances()[0]
	if !b.Free.Equal(dec("1.5")) || !b.Locked.Equal(dec("0.5")) {
		t.Errorf("BTC free=%s locked=%s, want 1.5/0.5", b.Free, b.Locked)
	}
}

func TestDesk_PlaceThenCancelRestoresBalances(t *testing.T) {
	desk, l := newDesk(t, map[string]string{"USDT": "1000"})

	order, err := desk.PlaceOrder(buyReq(domain.OrderTypeLimit, "5", "100"), dec("100"))
	if err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}
	if !desk.Cancel(order.ID) {
		t.Fatal("cancel of pending order must succeed")
	}

	b := l.Balances()[0]
	if !b.Free.Equal(dec("1000")) || !b.Locked.Equal(decimal.Zero) {
		t.Errorf("after cancel: free=%s locked=%s, want 1000/0", b.Free, b.Locked)
	}
}

func TestDesk_InsufficientBalanceRejected(t *testing.T) {
	desk, l := newDesk(t, map[string]string{"USDT": "50"})

	_, err := desk.PlaceOrder(buyReq(domain.OrderTypeMarket, "1", ""), dec("100"))
	if !errors.Is(err, domain.ErrInsufficientBalance) {
		t.Fatalf("err = %v, want ErrInsufficientBalance", err)
	}

	if got := l.FreeBalance("USDT"); !got.Equal(dec("50")) {
		t.Errorf("balance mutated on rejection: %s", got)
	}
	if len(l.Orders()) != 0 {
		t.Error("rejected order must not be recorded")
	}
}

func TestDesk_InvalidInputsAbortWithoutStateChange(t *testing.T) {
	desk, l := newDesk(t, map[string]string{"USDT": "1000"})

	tests := []struct {
		name    string
		req     OrderRequest
		price   decimal.Decimal
		wantErr error
	}{
		{"non-numeric amount", buyReq(domain.OrderTypeMarket, "abc", ""), dec("100"), domain.ErrInvalidAmount},
		{"zero amount", buyReq(domain.OrderTypeMarket, "0", ""), dec("100"), domain.ErrInvalidAmount},
		{"negative amount", buyReq(domain.OrderTypeMarket, "-1", ""), dec("100"), domain.ErrInvalidAmount},
		{"non-numeric limit price", buyReq(domain.OrderTypeLimit, "1", "oops"), dec("100"), domain.ErrInvalidPrice},
		{"zero limit price", buyReq(domain.OrderTypeLimit, "1", "0"), dec("100"), domain.ErrInvalidPrice},
		{"market without price yet", buyReq(domain.OrderTypeMarket, "1", ""), decimal.Zero, domain.ErrInvalidPrice},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := desk.PlaceOrder(tt.req, tt.price)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}

	if got := l.FreeBalance("USDT"); !got.Equal(dec("1000")) {
		t.Errorf("balance mutated by rejected inputs: %s", got)
	}
	if len(l.Orders()) != 0 {
		t.Error("rejected inputs must not record orders")
	}
}

func TestDesk_PercentAmount(t *testing.T) {
	desk, _ := newDesk(t, map[string]string{"USDT": "1000", "BTC": "2"})

	// 50% buy with 1000 quote free at price 100 -> amount 5.
	got := desk.PercentAmount(buyReq(domain.OrderTypeMarket, "", ""), 50, dec("100"))
	if !got.Equal(dec("5")) {
		t.Errorf("50%% buy amount = %s, want 5", got)
	}

	// Limit side uses the typed-in limit price.
	got = desk.PercentAmount(buyReq(domain.OrderTypeLimit, "", "200"), 100, dec("100"))
	if !got.Equal(dec("5")) {
		t.Errorf("100%% limit buy amount = %s, want 5", got)
	}

	// Sell side ignores price entirely.
	got = desk.PercentAmount(sellReq(domain.OrderTypeMarket, "", ""), 75, decimal.Zero)
	if !got.Equal(dec("1.5")) {
		t.Errorf("75%% sell amount = %s, want 1.5", got)
	}

	// No resolvable price -> zero, never a panic.
	got = desk.PercentAmount(buyReq(domain.OrderTypeMarket, "", ""), 25, decimal.Zero)
	if !got.Equal(decimal.Zero) {
		t.Errorf("unpriced buy shortcut = %s, want 0", got)
	}
}

func TestDesk_EstimatedCost(t *testing.T) {
	desk, _ := newDesk(t, map[string]string{"USDT": "1000"})

	if got := desk.EstimatedCost(buyReq(domain.OrderTypeLimit, "2", "150"), dec("100")); !got.Equal(dec("300")) {
		t.Errorf("estimated cost = %s, want 300", got)
	}
	if got := desk.EstimatedCost(buyReq(domain.OrderTypeLimit, "x", "150"), dec("100")); !got.Equal(decimal.Zero) {
		t.Errorf("unparsable draft cost = %s, want 0", got)
	}
}
