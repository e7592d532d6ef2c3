package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"stock_simulator/internal/feature/simulation/domain"
	"stock_simulator/internal/feature/simulation/domain/entity"
)

const (
	// DefaultTickInterval はティックの間隔です。
	DefaultTickInterval = 5 * time.Second
	// PricePrecision はシミュレーション価格の小数点以下の桁数です。
	PricePrecision = 2
)

// State はSchedulerの状態です。
type State string

const (
	StateIdle    State = "idle"
	StateRunning State = "running"
)

// InstrumentStore は追跡中の銘柄を保持します。スケジューラはティックごとに一覧を読み、更新した銘柄を書き戻します。
// Goの慣例に従い、インターフェースは利用者（usecase）側で定義します。
type InstrumentStore interface {
	List() []entity.Instrument
	Apply(id string, price float64, history []entity.Candle) error
}

// PriceDispatcher はティックをブロックせずに価格更新を永続化へ渡します。
type PriceDispatcher interface {
	Dispatch(update entity.PriceUpdate)
}

// Ticker はスケジューラの定期的な発火を届けます。
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// TickerFactory はd間隔で発火するTickerを生成します。
type TickerFactory func(d time.Duration) Ticker

type timeTicker struct {
	t *time.Ticker
}

func (tt timeTicker) C() <-chan time.Time { return tt.t.C }
func (tt timeTicker) Stop()               { tt.t.Stop() }

// NewTimeTicker はtime.Tickerを使うデフォルトのTickerFactoryです。
func NewTimeTicker(d time.Duration) Ticker {
	return timeTicker{t: time.NewTicker(d)}
}

// TickStats は1回のティックの結果です。
type TickStats struct {
	Updated int
	Skipped int
}

// SchedulerOption はSchedulerの設定を変更します。
type SchedulerOption func(*Scheduler)

// WithInterval はティック間隔を設定します。0以下の値は無視されます。
func WithInterval(d time.Duration) SchedulerOption {
	return func(s *Scheduler) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithTickerFactory はティック間で使うTickerを差し替えます。
func WithTickerFactory(f TickerFactory) SchedulerOption {
	return func(s *Scheduler) {
		if f != nil {
			s.newTicker = f
		}
	}
}

// WithClock はローソク足の時刻に使う時計を差し替えます。
func WithClock(now func() time.Time) SchedulerOption {
	return func(s *Scheduler) {
		if now != nil {
			s.now = now
		}
	}
}

// Scheduler は追跡中の全銘柄の価格を定期的に更新します。
// Start・Stopは何度呼んでも安全で、ティックが重なることはありません。
type Scheduler struct {
	store      InstrumentStore
	generator  *PriceGenerator
	aggregator *CandleAggregator
	dispatcher PriceDispatcher
	reporter   ErrorReporter

	interval  time.Duration
	newTicker TickerFactory
	now       func() time.Time

	// lifecycle はStartとStopを直列化し、muは以下のフィールドを保護する
	lifecycle sync.Mutex
	mu        sync.Mutex
	state     State
	stop      chan struct{}
	done      chan struct{}
}

// NewScheduler は停止状態のSchedulerを生成します。
func NewScheduler(store InstrumentStore, generator *PriceGenerator, aggregator *CandleAggregator,
	dispatcher PriceDispatcher, reporter ErrorReporter, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		store:      store,
		generator:  generator,
		aggregator: aggregator,
		dispatcher: dispatcher,
		reporter:   reporter,
		interval:   DefaultTickInterval,
		newTicker:  NewTimeTicker,
		now:        time.Now,
		state:      StateIdle,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State は現在の状態を返します。
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Start はすぐに1回ティックを実行し、その後はStopが呼ばれるかctxがキャンセルされるまで間隔ごとに実行します。
// 実行中に呼んだ場合は何もしません。
func (s *Scheduler) Start(ctx context.Context) {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	s.mu.Lock()
	if s.state == StateRunning {
		s.mu.Unlock()
		return
	}
	s.state = StateRunning
	stop, done := make(chan struct{}), make(chan struct{})
	s.stop, s.done = stop, done
	s.mu.Unlock()

	stats := s.Tick(ctx)
	slog.Info("simulation started", "interval", s.interval, "updated", stats.Updated, "skipped", stats.Skipped)

	go s.loop(ctx, s.newTicker(s.interval), stop, done)
}

// Stop は定期的なティックを止めます。戻った後にティックは実行されませんが、
// 送信済みの永続化は完了する場合があります。停止中に呼んだ場合は何もしません。
func (s *Scheduler) Stop() {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	s.mu.Lock()
	if s.state != StateRunning {
		s.mu.Unlock()
		return
	}
	stop, done := s.stop, s.done
	s.state, s.stop, s.done = StateIdle, nil, nil
	s.mu.Unlock()

	close(stop)
	<-done
	slog.Info("simulation stopped")
}

func (s *Scheduler) loop(ctx context.Context, ticker Ticker, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			s.mu.Lock()
			if s.stop == stop {
				s.state, s.stop, s.done = StateIdle, nil, nil
			}
			s.mu.Unlock()
			slog.Info("simulation stopped by context", "error", ctx.Err())
			return
		case <-ticker.C():
			// stop が同時に閉じられた場合はティックを実行しない
			select {
			case <-stop:
				return
			default:
			}
			stats := s.Tick(ctx)
			slog.Debug("simulation tick", "updated", stats.Updated, "skipped", stats.Skipped)
		}
	}
}

// Tick はストア内の全銘柄を1ステップ進めます。
// 失敗した銘柄は報告してスキップし、他の銘柄は更新を続けます。
func (s *Scheduler) Tick(ctx context.Context) TickStats {
	var stats TickStats
	for _, inst := range s.store.List() {
		if err := s.advance(inst); err != nil {
			stats.Skipped++
			s.reporter.Report(ctx, err, "instrument_id", inst.ID, "symbol", inst.Symbol)
			continue
		}
		stats.Updated++
	}
	return stats
}

// advance は次の価格とローソク足を計算してストアへ書き込み、永続化のために更新を送信します。
func (s *Scheduler) advance(inst entity.Instrument) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: update of %s panicked: %v", domain.ErrInvalidState, inst.ID, r)
		}
	}()

	next, err := s.generator.NextPrice(inst.CurrentPrice, inst.Symbol)
	if err != nil {
		return err
	}
	price := RoundPrice(next)

	at := s.now()
	history, err := s.aggregator.AppendObservation(inst.PriceHistory, inst.LastClose(), price, at)
	if err != nil {
		return err
	}

	if err := s.store.Apply(inst.ID, price, history); err != nil {
		return err
	}

	s.dispatcher.Dispatch(entity.PriceUpdate{
		InstrumentID: inst.ID,
		Symbol:       inst.Symbol,
		Price:        price,
		Candle:       history[len(history)-1],
		At:           at,
	})
	return nil
}

// RoundPrice はpを小数点以下PricePrecision桁に四捨五入します（0から遠い方へ丸める）。
func RoundPrice(p float64) float64 {
	return decimal.NewFromFloat(p).Round(PricePrecision).InexactFloat64()
}
