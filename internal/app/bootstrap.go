// Package app wires the subsystems together at startup.
package app

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"tradeterm/internal/domain"
	"tradeterm/internal/feed"
	"tradeterm/internal/infra"
	"tradeterm/internal/infra/storage"
	"tradeterm/internal/trading"
	"tradeterm/internal/wallet"
)

// Bootstrap orchestrates the application startup sequence.
type Bootstrap struct {
	Config *infra.Config
	Store  *storage.Store
	Ledger *wallet.Ledger
	Desk   *trading.Desk
	Feed   *feed.Service
}

func NewBootstrap() *Bootstrap {
	return &Bootstrap{}
}

// Initialize loads config, sets up logging, opens the optional wallet
// snapshot store and builds the ledger, desk and feed service.
func (b *Bootstrap) Initialize(configPath string) error {
	cfg, err := infra.LoadConfig(configPath)
	if err != nil {
		return err
	}
	b.Config = cfg

	logger := infra.NewLogger(cfg)
	slog.SetDefault(logger)
	slog.Info("bootstrapping",
		slog.String("app", cfg.App.Name),
		slog.String("version", cfg.App.Version))

	b.Ledger = wallet.NewLedger()
	restored := false

	if cfg.Wallet.Snapshot.Enabled {
		store, err := storage.Open(cfg.Wallet.Snapshot.Path)
		if err != nil {
			return fmt.Errorf("open wallet snapshot store: %w", err)
		}
		b.Store = store

		balances, orders, err := store.LoadSnapshot()
		if err != nil {
			return fmt.Errorf("load wallet snapshot: %w", err)
		}
		if len(balances) > 0 {
			b.Ledger.Restore(balances, orders)
			restored = true
			slog.Info("wallet restored from snapshot",
				slog.Int("balances", len(balances)),
				slog.Int("orders", len(orders)))
		}
	}

	if !restored {
		if err := b.seedLedger(); err != nil {
			return err
		}
	}

	b.Desk = trading.NewDesk(b.Ledger)

	rest := feed.NewRestClient(cfg.Exchange.RestURL, cfg.Exchange.CandleLimit, cfg.Exchange.DepthLimit)
	b.Feed = feed.NewService(rest, feed.Options{
		WSURL:          cfg.Exchange.WSURL,
		ReferenceQuote: cfg.Market.ReferenceQuote,
		DepthLevels:    cfg.Exchange.StreamDepthLevels,
		PollInterval:   time.Duration(cfg.Exchange.PricePollIntervalSec) * time.Second,
	})

	slog.Info("bootstrap complete", slog.Int("pairs", len(cfg.Market.Pairs)))
	return nil
}

// seedLedger loads the demo balances from config and records a little
// starter order history so the dashboard is not empty on first run.
func (b *Bootstrap) seedLedger() error {
	for _, sb := range b.Config.Wallet.SeedBalances {
		free, err := decimal.NewFromString(sb.Free)
		if err != nil {
			return fmt.Errorf("seed balance %s: bad free amount %q", sb.Asset, sb.Free)
		}
		b.Ledger.AdjustBalance(sb.Asset, free, domain.BucketFree)

		if sb.Locked != "" {
			locked, err := decimal.NewFromString(sb.Locked)
			if err != nil {
				return fmt.Errorf("seed balance %s: bad locked amount %q", sb.Asset, sb.Locked)
			}
			b.Ledger.AdjustBalance(sb.Asset, locked, domain.BucketLocked)
		}
	}

	pair := b.Config.DefaultPair()
	if pair.IsZero() {
		return nil
	}
	seedOrders := []domain.Order{
		{
			ID:        uuid.NewString(),
			Pair:      pair,
			Side:      domain.SideBuy,
			Type:      domain.OrderTypeMarket,
			Amount:    decimal.RequireFromString("0.05"),
			Price:     decimal.RequireFromString("64250.00"),
			Status:    domain.OrderStatusCompleted,
			CreatedAt: time.Now().Add(-2 * time.Hour),
		},
		{
			ID:        uuid.NewString(),
			Pair:      pair,
			Side:      domain.SideSell,
			Type:      domain.OrderTypeLimit,
			Amount:    decimal.RequireFromString("0.01"),
			Price:     decimal.RequireFromString("71000.00"),
			Status:    domain.OrderStatusCancelled,
			CreatedAt: time.Now().Add(-30 * time.Minute),
		},
	}
	for _, o := range seedOrders {
		b.Ledger.RecordOrder(o)
	}
	return nil
}

// Shutdown persists the wallet when the snapshot store is enabled.
func (b *Bootstrap) Shutdown() {
	if b.Store == nil {
		return
	}
	if err := b.Store.SaveSnapshot(b.Ledger.Balances(), b.Ledger.Orders()); err != nil {
		slog.Error("save wallet snapshot", slog.Any("error", err))
		return
	}
	slog.Info("wallet snapshot saved")
}
