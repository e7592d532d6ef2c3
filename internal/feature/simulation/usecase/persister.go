package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"stock_simulator/internal/feature/simulation/domain"
	"stock_simulator/internal/feature/simulation/domain/entity"
)

// DefaultPersistTimeout はPersistenceSinkへの1回の書き込みにかける上限時間です。
const DefaultPersistTimeout = 5 * time.Second

// PersistenceSink はシミュレーション価格をプロセス外に保存します。
type PersistenceSink interface {
	// RecordPriceHistory は観測時刻recordedAtの価格を履歴に追記します。
	RecordPriceHistory(ctx context.Context, instrumentID string, price float64, recordedAt time.Time) error
	// UpdateCurrentPrice は保存済みの現在価格を上書きします。
	UpdateCurrentPrice(ctx context.Context, instrumentID string, price float64) error
}

// PricePersister はディスパッチされた価格更新をPersistenceSinkへ書き込みます。
// 同じ銘柄への書き込みは直列化され、現在価格は観測時刻が新しい更新でのみ上書きされます。
// 失敗は報告するだけで、メモリ上の状態は戻しません。
type PricePersister struct {
	sink     PersistenceSink
	reporter ErrorReporter
	timeout  time.Duration

	mu    sync.Mutex
	locks map[string]*instrumentWriteState
}

// instrumentWriteState は銘柄ごとの書き込みロックと、最後に保存できた現在価格の観測時刻です。
type instrumentWriteState struct {
	mu   sync.Mutex
	last time.Time
}

// NewPricePersister はPricePersisterを生成します。timeoutが0以下の場合はDefaultPersistTimeoutを使います。
func NewPricePersister(sink PersistenceSink, reporter ErrorReporter, timeout time.Duration) *PricePersister {
	if timeout <= 0 {
		timeout = DefaultPersistTimeout
	}
	return &PricePersister{
		sink:     sink,
		reporter: reporter,
		timeout:  timeout,
		locks:    make(map[string]*instrumentWriteState),
	}
}

// Handle は価格履歴を追記し、銘柄の現在価格を更新します。
// 履歴の追記が失敗しても現在価格の更新は試みます。
// 既に保存した更新より観測時刻が古い場合、現在価格は更新しません。
func (p *PricePersister) Handle(update entity.PriceUpdate) {
	state := p.stateFor(update.InstrumentID)
	state.mu.Lock()
	defer state.mu.Unlock()

	// ロック待ちの時間はタイムアウトに含めない
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	if err := p.sink.RecordPriceHistory(ctx, update.InstrumentID, update.Price, update.At); err != nil {
		p.reporter.Report(ctx, fmt.Errorf("%w: record price history: %w", domain.ErrPersistenceFailure, err),
			"instrument_id", update.InstrumentID, "price", update.Price)
	}

	if !state.last.IsZero() && !update.At.After(state.last) {
		slog.Debug("skipping stale current price",
			"instrument_id", update.InstrumentID, "at", update.At, "persisted_at", state.last)
		return
	}
	if err := p.sink.UpdateCurrentPrice(ctx, update.InstrumentID, update.Price); err != nil {
		p.reporter.Report(ctx, fmt.Errorf("%w: update current price: %w", domain.ErrPersistenceFailure, err),
			"instrument_id", update.InstrumentID, "price", update.Price)
		return
	}
	state.last = update.At
}

func (p *PricePersister) stateFor(instrumentID string) *instrumentWriteState {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.locks[instrumentID]
	if !ok {
		s = &instrumentWriteState{}
		p.locks[instrumentID] = s
	}
	return s
}
