package adapters

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"stock_simulator/internal/feature/simulation/domain"
	"stock_simulator/internal/feature/simulation/domain/entity"
	"stock_simulator/internal/feature/simulation/usecase"
)

// InstrumentModel はstocksテーブルの行を表します。
type InstrumentModel struct {
	ID           string  `gorm:"primaryKey;size:64"`
	Symbol       string  `gorm:"size:32;not null;index"`
	Name         string  `gorm:"size:255;not null;default:''"`
	CurrentPrice float64 `gorm:"not null"`
	IsActive     bool    `gorm:"not null;default:true"`
	SortKey      int     `gorm:"not null;default:0"`
	UpdatedAt    time.Time
}

func (InstrumentModel) TableName() string {
	return "stocks"
}

func toInstrumentModel(e entity.Instrument, sortKey int) InstrumentModel {
	return InstrumentModel{
		ID:           e.ID,
		Symbol:       e.Symbol,
		Name:         e.Name,
		CurrentPrice: e.CurrentPrice,
		IsActive:     true,
		SortKey:      sortKey,
	}
}

type instrumentGorm struct {
	db *gorm.DB
}

var _ usecase.InstrumentRepository = (*instrumentGorm)(nil)

// NewInstrumentRepository は銘柄カタログのリポジトリを生成します。
func NewInstrumentRepository(db *gorm.DB) *instrumentGorm {
	return &instrumentGorm{db: db}
}

// ListInstruments はsort_key順にアクティブな銘柄を返します。
func (r *instrumentGorm) ListInstruments(ctx context.Context) ([]entity.Instrument, error) {
	var rows []InstrumentModel
	if err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("sort_key ASC").
		Order("symbol ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]entity.Instrument, 0, len(rows))
	for _, m := range rows {
		out = append(out, entity.Instrument{
			ID:           m.ID,
			Symbol:       m.Symbol,
			Name:         m.Name,
			CurrentPrice: m.CurrentPrice,
		})
	}
	return out, nil
}

// UpsertInstruments は銘柄を追加または更新します。並び順は引数の順序になります。
func (r *instrumentGorm) UpsertInstruments(ctx context.Context, instruments []entity.Instrument) error {
	if len(instruments) == 0 {
		return nil
	}
	ms := make([]InstrumentModel, 0, len(instruments))
	for i, e := range instruments {
		ms = append(ms, toInstrumentModel(e, i))
	}

	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"symbol", "name", "current_price", "is_active", "sort_key", "updated_at"}),
	}).Create(&ms).Error
}

// SaveInstrument は銘柄を1件追加または更新し、アクティブにします。
// 既存の銘柄は並び順を保ち、新しい銘柄は末尾に追加されます。
func (r *instrumentGorm) SaveInstrument(ctx context.Context, inst entity.Instrument) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing InstrumentModel
		err := tx.Where("id = ?", inst.ID).First(&existing).Error
		switch {
		case err == nil:
			return tx.Model(&existing).Updates(map[string]any{
				"symbol":        inst.Symbol,
				"name":          inst.Name,
				"current_price": inst.CurrentPrice,
				"is_active":     true,
			}).Error
		case errors.Is(err, gorm.ErrRecordNotFound):
			var next int
			if err := tx.Model(&InstrumentModel{}).Select("COALESCE(MAX(sort_key), -1) + 1").Scan(&next).Error; err != nil {
				return err
			}
			m := toInstrumentModel(inst, next)
			return tx.Create(&m).Error
		default:
			return err
		}
	})
}

// DeactivateInstrument は銘柄を非アクティブにします。履歴は残ります。
func (r *instrumentGorm) DeactivateInstrument(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).
		Model(&InstrumentModel{}).
		Where("id = ?", id).
		Update("is_active", false)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", domain.ErrInstrumentNotFound, id)
	}
	return nil
}
