package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	redisv9 "github.com/redis/go-redis/v9"

	"stock_simulator/internal/app/di"
	"stock_simulator/internal/app/router"
	simhandler "stock_simulator/internal/feature/simulation/transport/handler"
	"stock_simulator/internal/platform/config"
	infradb "stock_simulator/internal/platform/db"
	"stock_simulator/internal/platform/http/handler"
	"stock_simulator/internal/platform/jobs"
	infraredis "stock_simulator/internal/platform/redis"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// .envを読み込む
	if err := godotenv.Load(".env"); err != nil {
		slog.Info(".env not found; using system environment variables")
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLevel(os.Getenv("LOG_LEVEL")),
	})))

	if err := run(); err != nil {
		slog.Error("server exited with error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(configPath())
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	// db
	db, err := infradb.OpenDB(infradb.LoadConfigFromEnv())
	if err != nil {
		return err
	}
	if sqlDB, err := db.DB(); err == nil {
		defer func() { _ = sqlDB.Close() }()
	}

	// Redis
	var rdb *redisv9.Client
	if rc := infraredis.LoadConfigFromEnv(); rc.Enabled() {
		if tmp, err := infraredis.NewRedisClient(ctx, rc); err != nil {
			slog.Warn("Redis unavailable. Running without cache.")
		} else {
			rdb = tmp
			defer func() {
				if err := rdb.Close(); err != nil {
					slog.Error("Failed to close Redis client", "error", err)
				}
			}()
		}
	}

	sim, err := di.NewSimulation(cfg, db, rdb)
	if err != nil {
		return err
	}

	// 銘柄の読み込み。DBが空なら設定ファイルのカタログを投入する
	n, err := sim.Loader.Load(ctx)
	if err != nil {
		return err
	}
	if n == 0 && len(cfg.Instruments) > 0 {
		if err := sim.Loader.Seed(ctx, cfg.SeedInstruments()); err != nil {
			return err
		}
		if _, err := sim.Loader.Load(ctx); err != nil {
			return err
		}
	}

	// 定期メンテナンス
	runner := jobs.NewRunner(ctx)
	if err := runner.Register(cfg.History.PruneCron, "prune_price_history", func(ctx context.Context) error {
		_, err := sim.Pruner.Prune(ctx)
		return err
	}); err != nil {
		return err
	}
	runner.Start()

	if cfg.Simulation.StartPaused {
		slog.Info("simulation paused; POST /simulation/start to begin")
	} else {
		sim.Scheduler.Start(ctx)
	}

	// Handler
	healthH := handler.NewHealthHandler(func() string { return string(sim.Scheduler.State()) })
	simH := simhandler.NewSimulationHandler(ctx, sim.Store, sim.Loader, sim.History, sim.Scheduler)

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           router.NewRouter(healthH, simH),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	// 停止順: ティック停止 → HTTP停止 → ジョブ停止 → 永続化の完了待ち
	sim.Scheduler.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown failed", "error", err)
	}
	runner.Stop(shutdownCtx)
	if err := sim.Dispatcher.Close(); err != nil {
		slog.Error("dispatcher close failed", "error", err)
	}

	slog.Info("server stopped")
	return nil
}

func configPath() string {
	if p := os.Getenv("SIMULATOR_CONFIG"); p != "" {
		return p
	}
	return "configs/simulator.yaml"
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
