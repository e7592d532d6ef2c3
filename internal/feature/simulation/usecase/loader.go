package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"stock_simulator/internal/feature/simulation/domain"
	"stock_simulator/internal/feature/simulation/domain/entity"
)

// InstrumentRepository は永続化された銘柄カタログを抽象化します。
type InstrumentRepository interface {
	ListInstruments(ctx context.Context) ([]entity.Instrument, error)
	UpsertInstruments(ctx context.Context, instruments []entity.Instrument) error
	SaveInstrument(ctx context.Context, inst entity.Instrument) error
	DeactivateInstrument(ctx context.Context, id string) error
}

// InstrumentCatalog はシミュレーション対象の銘柄を受け取ります。
// 追加・削除は次のティックから反映されます。
type InstrumentCatalog interface {
	SetInstruments(instruments []entity.Instrument)
	Upsert(inst entity.Instrument) error
	Remove(id string) error
}

// InstrumentLoader はリポジトリとメモリ上のカタログの間で銘柄を受け渡します。
type InstrumentLoader struct {
	repo    InstrumentRepository
	catalog InstrumentCatalog
}

// NewInstrumentLoader はInstrumentLoaderを生成します。
func NewInstrumentLoader(repo InstrumentRepository, catalog InstrumentCatalog) *InstrumentLoader {
	return &InstrumentLoader{repo: repo, catalog: catalog}
}

// Load は追跡中の銘柄を永続化された銘柄で置き換え、読み込んだ件数を返します。
func (l *InstrumentLoader) Load(ctx context.Context) (int, error) {
	instruments, err := l.repo.ListInstruments(ctx)
	if err != nil {
		return 0, fmt.Errorf("list instruments: %w", err)
	}
	l.catalog.SetInstruments(instruments)
	slog.Info("instruments loaded", "count", len(instruments))
	return len(instruments), nil
}

// Seed は銘柄をリポジトリへupsertします。価格が正でない銘柄はスキップします。
func (l *InstrumentLoader) Seed(ctx context.Context, instruments []entity.Instrument) error {
	valid := make([]entity.Instrument, 0, len(instruments))
	for _, inst := range instruments {
		if !(inst.CurrentPrice > 0) {
			slog.Warn("skipping instrument without positive price", "id", inst.ID, "symbol", inst.Symbol)
			continue
		}
		valid = append(valid, inst)
	}
	if len(valid) == 0 {
		return nil
	}
	if err := l.repo.UpsertInstruments(ctx, valid); err != nil {
		return fmt.Errorf("upsert instruments: %w", err)
	}
	slog.Info("instruments seeded", "count", len(valid))
	return nil
}

// Track は銘柄を保存してシミュレーション対象に加えます。
// IDが空の場合はシンボルから導出します。既存の銘柄は置き換えられ、ローソク足は空に戻ります。
func (l *InstrumentLoader) Track(ctx context.Context, inst entity.Instrument) (entity.Instrument, error) {
	inst.Symbol = strings.TrimSpace(inst.Symbol)
	if inst.Symbol == "" {
		return entity.Instrument{}, fmt.Errorf("%w: symbol is empty", domain.ErrInvalidState)
	}
	if !(inst.CurrentPrice > 0) {
		return entity.Instrument{}, fmt.Errorf("%w: current price %v of %s must be positive",
			domain.ErrInvalidState, inst.CurrentPrice, inst.Symbol)
	}
	if inst.ID == "" {
		inst.ID = entity.NewInstrumentID(inst.Symbol)
	}
	if inst.Name == "" {
		inst.Name = inst.Symbol
	}
	inst.PriceHistory = nil

	// DBを先に更新し、再起動後も同じ銘柄が読み込まれるようにする
	if err := l.repo.SaveInstrument(ctx, inst); err != nil {
		return entity.Instrument{}, fmt.Errorf("save instrument: %w", err)
	}
	if err := l.catalog.Upsert(inst); err != nil {
		return entity.Instrument{}, err
	}
	slog.Info("instrument tracked", "id", inst.ID, "symbol", inst.Symbol, "price", inst.CurrentPrice)
	return inst, nil
}

// Untrack は銘柄をシミュレーション対象から外し、リポジトリ上で非アクティブにします。
// 追跡していない銘柄の場合はErrInstrumentNotFoundを返します。
func (l *InstrumentLoader) Untrack(ctx context.Context, id string) error {
	if err := l.catalog.Remove(id); err != nil {
		return err
	}
	if err := l.repo.DeactivateInstrument(ctx, id); err != nil {
		return fmt.Errorf("deactivate instrument: %w", err)
	}
	slog.Info("instrument untracked", "id", id)
	return nil
}
