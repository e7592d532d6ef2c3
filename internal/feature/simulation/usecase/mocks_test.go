package usecase_test

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"stock_simulator/internal/feature/simulation/domain"
	"stock_simulator/internal/feature/simulation/domain/entity"
	"stock_simulator/internal/feature/simulation/usecase"
)

// fixedSource はFloat64が常に同じ値を返すRandomSourceです。
type fixedSource float64

func (f fixedSource) Float64() float64 { return float64(f) }

// fakeStore はInstrumentStoreのテスト用実装です。
type fakeStore struct {
	mu         sync.Mutex
	order      []string
	items      map[string]entity.Instrument
	ApplyFunc  func(id string, price float64, history []entity.Candle) error
	ApplyCalls int
}

func newFakeStore(instruments ...entity.Instrument) *fakeStore {
	s := &fakeStore{items: map[string]entity.Instrument{}}
	for _, inst := range instruments {
		s.add(inst)
	}
	return s
}

func (s *fakeStore) add(inst entity.Instrument) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[inst.ID]; !ok {
		s.order = append(s.order, inst.ID)
	}
	s.items[inst.ID] = inst
}

func (s *fakeStore) get(id string) entity.Instrument {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.items[id].Clone()
}

func (s *fakeStore) List() []entity.Instrument {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]entity.Instrument, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.items[id].Clone())
	}
	return out
}

func (s *fakeStore) Apply(id string, price float64, history []entity.Candle) error {
	s.mu.Lock()
	s.ApplyCalls++
	fn := s.ApplyFunc
	s.mu.Unlock()
	if fn != nil {
		if err := fn(id, price, history); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	inst, ok := s.items[id]
	if !ok {
		return domain.ErrInstrumentNotFound
	}
	inst.CurrentPrice = price
	inst.PriceHistory = history
	s.items[id] = inst
	return nil
}

// recordingDispatcher はディスパッチされた更新を記録します。
type recordingDispatcher struct {
	mu      sync.Mutex
	updates []entity.PriceUpdate
}

func (d *recordingDispatcher) Dispatch(u entity.PriceUpdate) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.updates = append(d.updates, u)
}

func (d *recordingDispatcher) all() []entity.PriceUpdate {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]entity.PriceUpdate(nil), d.updates...)
}

// mockReporter は報告されたエラーを記録します。
type mockReporter struct {
	mu     sync.Mutex
	errors []error
}

func (r *mockReporter) Report(_ context.Context, err error, _ ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors = append(r.errors, err)
}

func (r *mockReporter) all() []error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]error(nil), r.errors...)
}

// manualTicker はテストから手動で発火させるTickerです。
type manualTicker struct {
	ch      chan time.Time
	stopped atomic.Bool
}

func (m *manualTicker) C() <-chan time.Time { return m.ch }
func (m *manualTicker) Stop()               { m.stopped.Store(true) }

// tickerRecorder はTickerFactoryの呼び出しを記録します。
type tickerRecorder struct {
	mu        sync.Mutex
	tickers   []*manualTicker
	intervals []time.Duration
}

func (r *tickerRecorder) factory(d time.Duration) usecase.Ticker {
	r.mu.Lock()
	defer r.mu.Unlock()
	t := &manualTicker{ch: make(chan time.Time)}
	r.tickers = append(r.tickers, t)
	r.intervals = append(r.intervals, d)
	return t
}

func (r *tickerRecorder) created() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.tickers)
}

func (r *tickerRecorder) last() *manualTicker {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.tickers[len(r.tickers)-1]
}

// steppingClock は呼び出しごとに1秒進む時計です。
func steppingClock(start time.Time) func() time.Time {
	var mu sync.Mutex
	next := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now := next
		next = next.Add(time.Second)
		return now
	}
}

// mockSink はPersistenceSinkのモック実装です。
type mockSink struct {
	RecordPriceHistoryFunc  func(ctx context.Context, instrumentID string, price float64, recordedAt time.Time) error
	UpdateCurrentPriceFunc  func(ctx context.Context, instrumentID string, price float64) error
	RecordPriceHistoryCalls int
	UpdateCurrentPriceCalls int
}

func (m *mockSink) RecordPriceHistory(ctx context.Context, instrumentID string, price float64, recordedAt time.Time) error {
	m.RecordPriceHistoryCalls++
	if m.RecordPriceHistoryFunc != nil {
		return m.RecordPriceHistoryFunc(ctx, instrumentID, price, recordedAt)
	}
	return nil
}

func (m *mockSink) UpdateCurrentPrice(ctx context.Context, instrumentID string, price float64) error {
	m.UpdateCurrentPriceCalls++
	if m.UpdateCurrentPriceFunc != nil {
		return m.UpdateCurrentPriceFunc(ctx, instrumentID, price)
	}
	return nil
}
