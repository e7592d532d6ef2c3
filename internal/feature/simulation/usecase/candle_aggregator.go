package usecase

import (
	"fmt"
	"math"
	"time"

	"stock_simulator/internal/feature/simulation/domain"
	"stock_simulator/internal/feature/simulation/domain/entity"
)

// DefaultHistoryCapacity は銘柄ごとに保持するローソク足の数です。
const DefaultHistoryCapacity = 100

// CandleAggregator は価格観測を上限付きのローソク足履歴にまとめます。
type CandleAggregator struct {
	capacity int
}

// NewCandleAggregator は最大capacity本の足を保持するCandleAggregatorを生成します。
// capacityが0以下の場合はDefaultHistoryCapacityを使います。
func NewCandleAggregator(capacity int) *CandleAggregator {
	if capacity <= 0 {
		capacity = DefaultHistoryCapacity
	}
	return &CandleAggregator{capacity: capacity}
}

// Capacity は保持する足の上限を返します。
func (a *CandleAggregator) Capacity() int {
	return a.capacity
}

// AppendObservation は時刻atのnewPriceの足を末尾に追加し、上限を超えた古い足を除いた新しい履歴を返します。
//
// 新しい足の始値は最新の足の終値で、履歴が空の場合はpreviousCloseです。
// 最新の足より後でない観測はErrOutOfOrderObservationとなり、履歴はそのまま返します。
// 引数のスライスは変更しません。
func (a *CandleAggregator) AppendObservation(history []entity.Candle, previousClose, newPrice float64, at time.Time) ([]entity.Candle, error) {
	if !(newPrice > 0) || math.IsInf(newPrice, 1) {
		return history, fmt.Errorf("%w: observed price %v must be positive and finite", domain.ErrInvalidState, newPrice)
	}

	open := previousClose
	if n := len(history); n > 0 {
		last := history[n-1]
		if !at.After(last.Time) {
			return history, fmt.Errorf("%w: %s is not after %s",
				domain.ErrOutOfOrderObservation, at.Format(time.RFC3339Nano), last.Time.Format(time.RFC3339Nano))
		}
		open = last.Close
	}
	if !(open > 0) {
		return history, fmt.Errorf("%w: open price %v must be positive", domain.ErrInvalidState, open)
	}

	c := entity.Candle{
		Time:  at,
		Open:  open,
		High:  math.Max(open, newPrice),
		Low:   math.Min(open, newPrice),
		Close: newPrice,
	}

	// 上限を超える古い足は先頭から捨てる
	start := 0
	if over := len(history) + 1 - a.capacity; over > 0 {
		start = over
	}
	out := make([]entity.Candle, 0, len(history)-start+1)
	out = append(out, history[start:]...)
	out = append(out, c)
	return out, nil
}
