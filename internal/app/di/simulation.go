// Package di provides dependency injection factories for creating application components.
package di

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	simadapters "stock_simulator/internal/feature/simulation/adapters"
	"stock_simulator/internal/feature/simulation/usecase"
	"stock_simulator/internal/platform/cache"
	"stock_simulator/internal/platform/config"
	"stock_simulator/internal/platform/eventbus"
)

// NewPriceHistoryStore creates the persistence layer for simulated prices.
// If Redis is available, history reads are cached in Redis.
// Otherwise, the database repository is used directly.
func NewPriceHistoryStore(rdb *redis.Client, db *gorm.DB, ttl time.Duration) cache.PriceHistoryStore {
	repo := simadapters.NewPriceHistoryRepository(db)
	if rdb != nil {
		return cache.NewCachingPriceHistory(rdb, ttl, repo, cache.DefaultNamespace)
	}
	return repo
}

// Simulation bundles the wired simulation components.
type Simulation struct {
	Store      *simadapters.MemoryStore
	Scheduler  *usecase.Scheduler
	Dispatcher *eventbus.Dispatcher
	History    *usecase.HistoryUsecase
	Loader     *usecase.InstrumentLoader
	Pruner     *usecase.HistoryPruner
}

// NewSimulation wires the simulation feature from configuration.
// The scheduler is returned idle.
func NewSimulation(cfg *config.Config, db *gorm.DB, rdb *redis.Client, opts ...usecase.SchedulerOption) (*Simulation, error) {
	reporter := usecase.NewSlogReporter(slog.Default())

	// Repository
	priceStore := NewPriceHistoryStore(rdb, db, cfg.History.CacheTTL)
	instrumentRepo := simadapters.NewInstrumentRepository(db)
	memStore := simadapters.NewMemoryStore()

	// 永続化はイベントバス経由で非同期に行う
	persister := usecase.NewPricePersister(priceStore, reporter, cfg.Simulation.PersistTimeout)
	dispatcher, err := eventbus.NewDispatcher(persister.Handle)
	if err != nil {
		return nil, fmt.Errorf("create dispatcher: %w", err)
	}

	// Usecase
	var rnd usecase.RandomSource
	if cfg.Simulation.Seed != 0 {
		rnd = usecase.NewSeededSource(cfg.Simulation.Seed)
	}
	generator := usecase.NewPriceGenerator(rnd, usecase.WithLowVolatilitySymbols(cfg.Simulation.LowVolatilitySymbols...))
	aggregator := usecase.NewCandleAggregator(cfg.Simulation.HistoryCapacity)
	schedulerOpts := append([]usecase.SchedulerOption{usecase.WithInterval(cfg.Simulation.Interval)}, opts...)

	return &Simulation{
		Store:      memStore,
		Scheduler:  usecase.NewScheduler(memStore, generator, aggregator, dispatcher, reporter, schedulerOpts...),
		Dispatcher: dispatcher,
		History:    usecase.NewHistoryUsecase(priceStore, reporter),
		Loader:     usecase.NewInstrumentLoader(instrumentRepo, memStore),
		Pruner:     usecase.NewHistoryPruner(priceStore, cfg.History.Retention),
	}, nil
}
