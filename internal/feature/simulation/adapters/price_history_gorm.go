package adapters

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"stock_simulator/internal/feature/simulation/domain"
	"stock_simulator/internal/feature/simulation/domain/entity"
	"stock_simulator/internal/feature/simulation/usecase"
)

// PriceHistoryModel は永続化された価格観測1件を表します。
type PriceHistoryModel struct {
	ID         uint      `gorm:"primaryKey"`
	StockID    string    `gorm:"size:64;not null;index:price_history_stock_time,priority:1"`
	Price      float64   `gorm:"not null"`
	RecordedAt time.Time `gorm:"not null;index:price_history_stock_time,priority:2"`
}

func (PriceHistoryModel) TableName() string {
	return "stock_price_history"
}

type priceHistoryGorm struct {
	db  *gorm.DB
	now func() time.Time
}

var (
	_ usecase.PersistenceSink    = (*priceHistoryGorm)(nil)
	_ usecase.HistoryReader      = (*priceHistoryGorm)(nil)
	_ usecase.PriceHistoryPurger = (*priceHistoryGorm)(nil)
)

// NewPriceHistoryRepository は価格履歴と現在価格を保存するリポジトリを生成します。
func NewPriceHistoryRepository(db *gorm.DB) *priceHistoryGorm {
	return &priceHistoryGorm{db: db, now: time.Now}
}

// RecordPriceHistory は価格観測を1件追記します。
// recordedAtがゼロ値の場合は書き込み時刻を使います。
func (r *priceHistoryGorm) RecordPriceHistory(ctx context.Context, instrumentID string, price float64, recordedAt time.Time) error {
	if recordedAt.IsZero() {
		recordedAt = r.now()
	}
	m := PriceHistoryModel{
		StockID:    instrumentID,
		Price:      price,
		RecordedAt: recordedAt.UTC(),
	}
	return r.db.WithContext(ctx).Create(&m).Error
}

// UpdateCurrentPrice はstocksテーブルの現在価格を上書きします。
func (r *priceHistoryGorm) UpdateCurrentPrice(ctx context.Context, instrumentID string, price float64) error {
	res := r.db.WithContext(ctx).
		Model(&InstrumentModel{}).
		Where("id = ?", instrumentID).
		Updates(map[string]any{"current_price": price, "updated_at": r.now().UTC()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", domain.ErrInstrumentNotFound, instrumentID)
	}
	return nil
}

// FindPriceHistory は最新limit件の価格観測を時刻の昇順で返します。
func (r *priceHistoryGorm) FindPriceHistory(ctx context.Context, instrumentID string, limit int) ([]entity.PricePoint, error) {
	var rows []PriceHistoryModel
	q := r.db.WithContext(ctx).
		Where("stock_id = ?", instrumentID).
		Order("recorded_at DESC").
		Order("id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}

	// 新しい順に取得したので昇順に並べ替える
	out := make([]entity.PricePoint, len(rows))
	for i, m := range rows {
		out[len(rows)-1-i] = entity.PricePoint{Price: m.Price, RecordedAt: m.RecordedAt.UTC()}
	}
	return out, nil
}

// DeleteOlderThan はcutoffより前に記録された価格観測を削除し、削除件数を返します。
func (r *priceHistoryGorm) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("recorded_at < ?", cutoff.UTC()).
		Delete(&PriceHistoryModel{})
	return res.RowsAffected, res.Error
}
