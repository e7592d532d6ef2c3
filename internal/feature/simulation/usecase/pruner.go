package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// DefaultHistoryRetention は永続化した価格履歴の保持期間です。
const DefaultHistoryRetention = 30 * 24 * time.Hour

// PriceHistoryPurger は永続化した価格履歴を削除します。
type PriceHistoryPurger interface {
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// HistoryPruner は保持期間より古い価格履歴を削除します。
type HistoryPruner struct {
	purger    PriceHistoryPurger
	retention time.Duration
	now       func() time.Time
}

// NewHistoryPruner はHistoryPrunerを生成します。retentionが0以下の場合はDefaultHistoryRetentionを使います。
func NewHistoryPruner(purger PriceHistoryPurger, retention time.Duration) *HistoryPruner {
	if retention <= 0 {
		retention = DefaultHistoryRetention
	}
	return &HistoryPruner{purger: purger, retention: retention, now: time.Now}
}

// Prune は現在時刻から保持期間を引いた時刻より前の価格履歴をすべて削除します。
func (p *HistoryPruner) Prune(ctx context.Context) (int64, error) {
	cutoff := p.now().Add(-p.retention).UTC()
	n, err := p.purger.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune price history before %s: %w", cutoff.Format(time.RFC3339), err)
	}
	slog.Info("price history pruned", "deleted", n, "cutoff", cutoff)
	return n, nil
}
