// Package jobs はcronスケジュールで定期メンテナンスタスクを実行します。
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Runner はcronタスクを管理します。スケジュールは秒を含む6フィールドで指定します。
type Runner struct {
	cron *cron.Cron
	ctx  context.Context
}

// NewRunner はタスクにctxを渡すRunnerを生成します。
func NewRunner(ctx context.Context) *Runner {
	return &Runner{
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
		),
		ctx: ctx,
	}
}

// Register はfnをnameで登録します。fnが返したエラーはログに出力されます。
func (r *Runner) Register(spec, name string, fn func(ctx context.Context) error) error {
	if _, err := r.cron.AddFunc(spec, func() {
		start := time.Now()
		if err := fn(r.ctx); err != nil {
			slog.Error("job failed", "job", name, "error", err)
			return
		}
		slog.Info("job finished", "job", name, "elapsed", time.Since(start))
	}); err != nil {
		return fmt.Errorf("register %s job: %w", name, err)
	}
	slog.Info("job registered", "job", name, "spec", spec)
	return nil
}

// Len は登録済みのタスク数を返します。
func (r *Runner) Len() int {
	return len(r.cron.Entries())
}

// Start はcronスケジューラを開始します。
func (r *Runner) Start() {
	r.cron.Start()
	slog.Info("job runner started", "jobs", r.Len())
}

// Stop はスケジューラを止め、ctxが終わるまで実行中のタスクを待ちます。
func (r *Runner) Stop(ctx context.Context) {
	done := r.cron.Stop()
	select {
	case <-done.Done():
		slog.Info("job runner stopped")
	case <-ctx.Done():
		slog.Warn("job runner stop timed out", "error", ctx.Err())
	}
}
