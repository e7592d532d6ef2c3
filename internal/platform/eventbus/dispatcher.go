// Package eventbus publishes simulation events to asynchronous subscribers.
package eventbus

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/asaskevich/EventBus"

	"stock_simulator/internal/feature/simulation/domain/entity"
	"stock_simulator/internal/feature/simulation/usecase"
)

// TopicPriceUpdated carries entity.PriceUpdate events.
const TopicPriceUpdated = "simulation:price_updated"

// Dispatcher hands price updates to a handler on background goroutines so
// the publisher never waits for it.
type Dispatcher struct {
	bus EventBus.Bus
	fn  func(entity.PriceUpdate)

	mu     sync.RWMutex
	closed bool
}

var _ usecase.PriceDispatcher = (*Dispatcher)(nil)

// NewDispatcher subscribes handler to TopicPriceUpdated. Each dispatched
// update runs handler on its own goroutine, so handler must order writes
// for the same instrument itself (see usecase.PricePersister).
func NewDispatcher(handler func(entity.PriceUpdate)) (*Dispatcher, error) {
	d := &Dispatcher{bus: EventBus.New()}
	d.fn = func(u entity.PriceUpdate) {
		defer func() {
			if r := recover(); r != nil {
				slog.Error("price update handler panicked", "instrument_id", u.InstrumentID, "panic", r)
			}
		}()
		handler(u)
	}

	if err := d.bus.SubscribeAsync(TopicPriceUpdated, d.fn, false); err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", TopicPriceUpdated, err)
	}
	slog.Info("Subscribed to topic", "topic", TopicPriceUpdated)
	return d, nil
}

// Dispatch publishes u. It is dropped after Close.
func (d *Dispatcher) Dispatch(u entity.PriceUpdate) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		slog.Debug("dispatcher closed, dropping price update", "instrument_id", u.InstrumentID)
		return
	}
	d.bus.Publish(TopicPriceUpdated, u)
}

// Close stops accepting updates and waits for in-flight handlers.
func (d *Dispatcher) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	d.mu.Unlock()

	d.bus.WaitAsync()
	if err := d.bus.Unsubscribe(TopicPriceUpdated, d.fn); err != nil {
		return fmt.Errorf("unsubscribe %s: %w", TopicPriceUpdated, err)
	}
	return nil
}
