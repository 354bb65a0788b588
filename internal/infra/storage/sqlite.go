package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"tradeterm/internal/domain"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Store persists wallet snapshots (balances and order history) in a
// local SQLite database. It is the ledger's only durability boundary
// and stays optional: the wallet is fully functional without it.
type Store struct {
	db *gorm.DB
}

// balanceRow is the persisted form of a domain.Balance. Amounts are
// stored as decimal strings; SQLite floats would lose precision.
type balanceRow struct {
	Asset     string `gorm:"primaryKey"`
	Free      string
	Locked    string
	UpdatedAt time.Time
}

// orderRow is the persisted form of a domain.Order.
type orderRow struct {
	ID        string `gorm:"primaryKey"`
	Base      string
	Quote     string
	Side      string
	Type      string
	Amount    string
	Price     string
	Status    string
	CreatedAt time.Time
	Position  int `gorm:"index"` // history slot, 0 = newest
}

// Open creates a snapshot store at the given path, creating the parent
// directory as needed. An empty path resolves to the user config dir.
func Open(path string) (*Store, error) {
	if path == "" {
		var err error
		path, err = defaultPath()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve DB path: %w", err)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create DB directory: %w", err)
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.AutoMigrate(&balanceRow{}, &orderRow{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Store{db: db}, nil
}

func defaultPath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "tradeterm", "wallet.db"), nil
}

// SaveSnapshot replaces the persisted wallet state wholesale, matching
// the in-memory ownership model: the ledger's lists are the source of
// truth and rows never merge.
func (s *Store) SaveSnapshot(balances []domain.Balance, orders []domain.Order) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&balanceRow{}).Error; err != nil {
			return err
		}
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&orderRow{}).Error; err != nil {
			return err
		}

		for _, b := range balances {
			row := balanceRow{
				Asset:     b.Asset,
				Free:      b.Free.String(),
				Locked:    b.Locked.String(),
				UpdatedAt: time.Now(),
			}
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
		}

		for i, o := range orders {
			row := orderRow{
				ID:        o.ID,
				Base:      o.Pair.Base,
				Quote:     o.Pair.Quote,
				Side:      o.Side,
				Type:      o.Type,
				Amount:    o.Amount.String(),
				Price:     o.Price.String(),
				Status:    o.Status,
				CreatedAt: o.CreatedAt,
				Position:  i,
			}
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// LoadSnapshot restores the persisted wallet state. An empty database
// returns empty slices, not an error.
func (s *Store) LoadSnapshot() ([]domain.Balance, []domain.Order, error) {
	var balanceRows []balanceRow
	if err := s.db.Order("asset").Find(&balanceRows).Error; err != nil {
		return nil, nil, err
	}
	var orderRows []orderRow
	if err := s.db.Order("position").Find(&orderRows).Error; err != nil {
		return nil, nil, err
	}

	balances := make([]domain.Balance, 0, len(balanceRows))
	for _, row := range balanceRows {
		free, err := decimal.NewFromString(row.Free)
		if err != nil {
			return nil, nil, fmt.Errorf("corrupt free amount for %s: %w", row.Asset, err)
		}
		locked, err := decimal.NewFromString(row.Locked)
		if err != nil {
			return nil, nil, fmt.Errorf("corrupt locked amount for %s: %w", row.Asset, err)
		}
		b := domain.NewBalance(row.Asset)
		b.Adjust(free, domain.BucketFree)
		b.Adjust(locked, domain.BucketLocked)
		balances = append(balances, b)
	}

	orders := make([]domain.Order, 0, len(orderRows))
	for _, row := range orderRows {
		amount, err := decimal.NewFromString(row.Amount)
		if err != nil {
			return nil, nil, fmt.Errorf("corrupt amount for order %s: %w", row.ID, err)
		}
		price, err := decimal.NewFromString(row.Price)
		if err != nil {
			return nil, nil, fmt.Errorf("corrupt price for order %s: %w", row.ID, err)
		}
		orders = append(orders, domain.Order{
			ID:        row.ID,
			Pair:      domain.Pair{Base: row.Base, Quote: row.Quote},
			Side:      row.Side,
			Type:      row.Type,
			Amount:    amount,
			Price:     price,
			Status:    row.Status,
			CreatedAt: row.CreatedAt,
		})
	}

	return balances, orders, nil
}
