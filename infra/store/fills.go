// Package store persists executed fills for history queries. Fills are
// immutable trade records; nothing here ever feeds back into matching.
package store

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"hydra/domain/book"
)

// FillRow is the persisted shape of a fill.
type FillRow struct {
	ID          uint64 `gorm:"primaryKey;autoIncrement:false"`
	Symbol      string `gorm:"index"`
	BuyOrderID  string
	SellOrderID string
	BuyUserID   string `gorm:"index"`
	SellUserID  string `gorm:"index"`
	Price       int64
	Qty         int64
	At          int64
}

func (FillRow) TableName() string { return "fills" }

type FillStore struct {
	db *gorm.DB
}

func Open(path string) (*FillStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create store directory: %w", err)
		}
	}
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("open fill store: %w", err)
	}
	if err := db.AutoMigrate(&FillRow{}); err != nil {
		return nil, fmt.Errorf("migrate fill store: %w", err)
	}
	return &FillStore{db: db}, nil
}

// Save appends fills from one submit. Conflicting ids are ignored so a
// replayed batch stays idempotent.
func (s *FillStore) Save(fills []book.Fill) error {
	if len(fills) == 0 {
		return nil
	}
	rows := make([]FillRow, 0, len(fills))
	for _, f := range fills {
		rows = append(rows, FillRow{
			ID:          f.ID,
			Symbol:      f.Symbol,
			BuyOrderID:  f.BuyOrderID,
			SellOrderID: f.SellOrderID,
			BuyUserID:   f.BuyUserID,
			SellUserID:  f.SellUserID,
			Price:       f.Price,
			Qty:         f.Qty,
			At:          f.At,
		})
	}
	return s.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&rows).Error
}

// BySymbol returns the most recent fills for a symbol.
func (s *FillStore) BySymbol(symbol string, limit int) ([]FillRow, error) {
	var rows []FillRow
	err := s.db.Where("symbol = ?", symbol).Order("id desc").Limit(limit).Find(&rows).Error
	return rows, err
}

// ByUser returns the most recent fills a user participated in, either side.
func (s *FillStore) ByUser(userID string, limit int) ([]FillRow, error) {
	var rows []FillRow
	err := s.db.Where("buy_user_id = ? OR sell_user_id = ?", userID, userID).
		Order("id desc").Limit(limit).Find(&rows).Error
	return rows, err
}
