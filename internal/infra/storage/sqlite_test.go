package storage

import (
	"path/filepath"
	"testing"
	"time"

	"tradeterm/internal/domain"

	"github.com/shopspring/decimal"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "wallet.db"))
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	return s
}

func TestSnapshotRoundtrip(t *testing.T) {
	s := setupTestStore(t)

	free := decimal.RequireFromString("0.4521")
	locked := decimal.RequireFromString("0.05")
	b := domain.NewBalance("BTC")
	b.Adjust(free, domain.BucketFree)
	b.Adjust(locked, domain.BucketLocked)

	orders := []domain.Order{
		{
			ID:        "newest",
			Pair:      domain.Pair{Base: "BTC", Quote: "USDT"},
			Side:      domain.SideBuy,
			Type:      domain.OrderTypeLimit,
			Amount:    decimal.RequireFromString("0.1"),
			Price:     decimal.NewFromInt(64000),
			Status:    domain.OrderStatusPending,
			CreatedAt: time.Now().Truncate(time.Second),
		},
		{
			ID:        "older",
			Pair:      domain.Pair{Base: "ETH", Quote: "USDT"},
			Side:      domain.SideSell,
			Type:      domain.OrderTypeMarket,
			Amount:    decimal.RequireFromString("1.25"),
			Price:     decimal.NewFromInt(3450),
			Status:    domain.OrderStatusCompleted,
			CreatedAt: time.Now().Add(-time.Hour).Truncate(time.Second),
		},
	}

	if err := s.SaveSnapshot([]domain.Balance{b}, orders); err != nil {
		t.Fatalf("SaveSnapshot failed: %v", err)
	}

	balances, loaded, err := s.LoadSnapshot()
	if err != nil {
		t.Fatalf("LoadSnapshot failed: %v", err)
	}

	if len(balances) != 1 {
		t.Fatalf("expected 1 balance, got %d", len(balances))
	}
	if !balances[0].Free.Equal(free) || !balances[0].Locked.Equal(locked) {
		t.Errorf("balance = free %s locked %s", balances[0].Free, balances[0].Locked)
	}
	if !balances[0].Total.Equal(free.Add(locked)) {
		t.Errorf("total = %s, want %s", balances[0].Total, free.Add(locked))
	}

	if len(loaded) != 2 {
		t.Fatalf("expected 2 orders, got %d", len(loaded))
	}
	// History order (newest first) survives the roundtrip.
	if loaded[0].ID != "newest" || loaded[1].ID != "older" {
		t.Errorf("order sequence = %s, %s", loaded[0].ID, loaded[1].ID)
	}
	if loaded[0].Pair != (domain.Pair{Base: "BTC", Quote: "USDT"}) {
		t.Errorf("pair = %+v", loaded[0].Pair)
	}
	if !loaded[0].Amount.Equal(decimal.RequireFromString("0.1")) {
		t.Errorf("amount = %s", loaded[0].Amount)
	}
}

func TestSnapshotReplacesWholesale(t *testing.T) {
	s := setupTestStore(t)

	b1 := domain.NewBalance("BTC")
	b1.Adjust(decimal.NewFromInt(1), domain.BucketFree)
	if err := s.SaveSnapshot([]domain.Balance{b1}, nil); err != nil {
		t.Fatal(err)
	}

	b2 := domain.NewBalance("ETH")
	b2.Adjust(decimal.NewFromInt(5), domain.BucketFree)
	if err := s.SaveSnapshot([]domain.Balance{b2}, nil); err != nil {
		t.Fatal(err)
	}

	balances, _, err := s.LoadSnapshot()
	if err != nil {
		t.Fatal(err)
	}
	if len(balances) != 1 || balances[0].Asset != "ETH" {
		t.Errorf("snapshot must replace, not merge: %+v", balances)
	}
}

func TestLoadSnapshot_Empty(t *testing.T) {
	s := setupTestStore(t)

	balances, orders, err := s.LoadSnapshot()
	if err != nil {
		t.Fatalf("LoadSnapshot on empty db: %v", err)
	}
	if len(balances) != 0 || len(orders) != 0 {
		t.Errorf("expected empty snapshot, got %d balances %d orders", len(balances), len(orders))
	}
}
