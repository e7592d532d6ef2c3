// Package entity defines the domain models for the simulation feature.
package entity

import (
	"time"

	"github.com/google/uuid"
)

// Candle is one OHLC point of an instrument's simulated trajectory.
// Low <= Open <= High and Low <= Close <= High always hold.
type Candle struct {
	Time  time.Time // Observation time of the candle
	Open  float64   // Close of the previous candle, or the price before the first update
	High  float64   // max(Open, Close)
	Low   float64   // min(Open, Close)
	Close float64   // Simulated price after the update
}

// Instrument is a tracked stock whose price is mutated by the simulator.
type Instrument struct {
	ID           string   // Opaque identifier (matches the stocks table primary key)
	Symbol       string   // Ticker symbol used to classify volatility (e.g., "AMZN")
	Name         string   // Human-readable name
	CurrentPrice float64  // Latest simulated price, always positive
	PriceHistory []Candle // Recent candles in ascending time order, bounded length
}

// LastClose returns the close of the newest candle, falling back to the
// current price when the instrument has no history yet.
func (i Instrument) LastClose() float64 {
	if n := len(i.PriceHistory); n > 0 {
		return i.PriceHistory[n-1].Close
	}
	return i.CurrentPrice
}

// Clone returns a copy whose PriceHistory does not share a backing array
// with the receiver.
func (i Instrument) Clone() Instrument {
	out := i
	if i.PriceHistory != nil {
		out.PriceHistory = make([]Candle, len(i.PriceHistory))
		copy(out.PriceHistory, i.PriceHistory)
	}
	return out
}

// NewInstrumentID derives a stable id from the symbol, so registering the
// same symbol twice yields the same instrument.
func NewInstrumentID(symbol string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(symbol)).String()
}

// PricePoint is a persisted price observation.
type PricePoint struct {
	Price      float64
	RecordedAt time.Time
}

// PriceUpdate is emitted after an instrument's in-memory state has been
// advanced by one tick.
type PriceUpdate struct {
	InstrumentID string
	Symbol       string
	Price        float64
	Candle       Candle
	At           time.Time
}
