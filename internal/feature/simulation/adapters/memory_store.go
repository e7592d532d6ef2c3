// Package adapters はsimulationフィーチャーのストア・リポジトリ実装を提供します。
package adapters

import (
	"fmt"
	"sync"

	"stock_simulator/internal/feature/simulation/domain"
	"stock_simulator/internal/feature/simulation/domain/entity"
	"stock_simulator/internal/feature/simulation/usecase"
)

// MemoryStore は追跡中の銘柄をプロセス内に保持するInstrumentStoreの実装です。
// 挿入順を保持し、読み出しは常にコピーを返します。
type MemoryStore struct {
	mu    sync.RWMutex
	order []string
	items map[string]entity.Instrument
}

var (
	_ usecase.InstrumentStore   = (*MemoryStore)(nil)
	_ usecase.InstrumentCatalog = (*MemoryStore)(nil)
)

// NewMemoryStore は空のMemoryStoreを生成します。
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[string]entity.Instrument)}
}

// SetInstruments は追跡対象の銘柄を丸ごと置き換えます。
// 同じIDが複数ある場合は後のものが優先されます。
func (s *MemoryStore) SetInstruments(instruments []entity.Instrument) {
	order := make([]string, 0, len(instruments))
	items := make(map[string]entity.Instrument, len(instruments))
	for _, inst := range instruments {
		if _, ok := items[inst.ID]; !ok {
			order = append(order, inst.ID)
		}
		items[inst.ID] = inst.Clone()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.order, s.items = order, items
}

// Upsert は銘柄を追加または置き換えます。
func (s *MemoryStore) Upsert(inst entity.Instrument) error {
	if inst.ID == "" {
		return fmt.Errorf("%w: instrument id is empty", domain.ErrInvalidState)
	}
	if !(inst.CurrentPrice > 0) {
		return fmt.Errorf("%w: current price %v of %s must be positive", domain.ErrInvalidState, inst.CurrentPrice, inst.ID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[inst.ID]; !ok {
		s.order = append(s.order, inst.ID)
	}
	s.items[inst.ID] = inst.Clone()
	return nil
}

// Remove は銘柄を追跡対象から外します。存在しない場合はErrInstrumentNotFoundを返します。
func (s *MemoryStore) Remove(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[id]; !ok {
		return fmt.Errorf("%w: %s", domain.ErrInstrumentNotFound, id)
	}
	delete(s.items, id)
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

// List は挿入順に全銘柄のスナップショットを返します。
func (s *MemoryStore) List() []entity.Instrument {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]entity.Instrument, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.items[id].Clone())
	}
	return out
}

// Get は指定IDの銘柄のスナップショットを返します。
func (s *MemoryStore) Get(id string) (entity.Instrument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	inst, ok := s.items[id]
	if !ok {
		return entity.Instrument{}, fmt.Errorf("%w: %s", domain.ErrInstrumentNotFound, id)
	}
	return inst.Clone(), nil
}

// Apply は銘柄の現在価格と足の履歴を一度に書き換えます。
func (s *MemoryStore) Apply(id string, price float64, history []entity.Candle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	inst, ok := s.items[id]
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrInstrumentNotFound, id)
	}
	inst.CurrentPrice = price
	inst.PriceHistory = append([]entity.Candle(nil), history...)
	s.items[id] = inst
	return nil
}
