package usecase

import (
	"context"
	"errors"
	"log/slog"

	"stock_simulator/internal/feature/simulation/domain"
)

// ErrorReporter はシミュレーションを止めてはならない失敗を受け取ります。
type ErrorReporter interface {
	Report(ctx context.Context, err error, attrs ...any)
}

// SlogReporter は構造化ロガーでエラーを報告します。
type SlogReporter struct {
	logger *slog.Logger
}

var _ ErrorReporter = (*SlogReporter)(nil)

// NewSlogReporter はSlogReporterを生成します。loggerがnilの場合はslog.Default()を使います。
func NewSlogReporter(logger *slog.Logger) *SlogReporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogReporter{logger: logger}
}

// Report はerrをattrsと共にログ出力します。永続化の失敗はwarnレベルで出力します。
func (r *SlogReporter) Report(ctx context.Context, err error, attrs ...any) {
	if err == nil {
		return
	}
	args := append(attrs, "error", err)
	if errors.Is(err, domain.ErrPersistenceFailure) {
		r.logger.WarnContext(ctx, "price persistence failed", args...)
		return
	}
	r.logger.ErrorContext(ctx, "simulation step failed", args...)
}
