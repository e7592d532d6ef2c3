package usecase

import (
	"context"
	"fmt"

	"stock_simulator/internal/feature/simulation/domain"
	"stock_simulator/internal/feature/simulation/domain/entity"
)

const (
	// DefaultHistoryLimit はデフォルトの価格履歴返却件数です。
	DefaultHistoryLimit = 100
	// MaxHistoryLimit は価格履歴の最大返却件数です。
	MaxHistoryLimit = 1000
)

// HistoryReader は永続化された価格履歴の読み取りレイヤーを抽象化します。
type HistoryReader interface {
	// FindPriceHistory は銘柄の最新limit件の価格観測を時刻の昇順で返します。
	FindPriceHistory(ctx context.Context, instrumentID string, limit int) ([]entity.PricePoint, error)
}

// HistoryUsecase は価格履歴取得のユースケースです。
type HistoryUsecase struct {
	reader   HistoryReader
	reporter ErrorReporter
}

// NewHistoryUsecase はHistoryUsecaseの新しいインスタンスを生成します。
func NewHistoryUsecase(reader HistoryReader, reporter ErrorReporter) *HistoryUsecase {
	return &HistoryUsecase{reader: reader, reporter: reporter}
}

// FetchPriceHistory は指定銘柄の価格履歴をDefaultHistoryLimit件まで返します。
func (u *HistoryUsecase) FetchPriceHistory(ctx context.Context, instrumentID string) []entity.PricePoint {
	return u.FetchPriceHistoryN(ctx, instrumentID, DefaultHistoryLimit)
}

// FetchPriceHistoryN は指定銘柄の価格履歴をlimit件まで返します。
// 読み取りに失敗した場合はエラーを報告し、空のスライスを返します。
func (u *HistoryUsecase) FetchPriceHistoryN(ctx context.Context, instrumentID string, limit int) []entity.PricePoint {
	if limit <= 0 || limit > MaxHistoryLimit {
		limit = DefaultHistoryLimit
	}

	points, err := u.reader.FindPriceHistory(ctx, instrumentID, limit)
	if err != nil {
		u.reporter.Report(ctx, fmt.Errorf("%w: fetch price history: %w", domain.ErrPersistenceFailure, err),
			"instrument_id", instrumentID)
		return []entity.PricePoint{}
	}
	if points == nil {
		return []entity.PricePoint{}
	}
	return points
}
