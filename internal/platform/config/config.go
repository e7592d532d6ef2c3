// Package config loads the simulator configuration from YAML with
// environment variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"stock_simulator/internal/feature/simulation/domain/entity"
)

// InstrumentConfig is one entry of the seed catalogue.
type InstrumentConfig struct {
	ID     string  `yaml:"id"`
	Symbol string  `yaml:"symbol"`
	Name   string  `yaml:"name"`
	Price  float64 `yaml:"price"`
}

// Config holds all simulator configuration.
type Config struct {
	Simulation struct {
		Interval             time.Duration `yaml:"interval"`
		HistoryCapacity      int           `yaml:"history_capacity"`
		PersistTimeout       time.Duration `yaml:"persist_timeout"`
		LowVolatilitySymbols []string      `yaml:"low_volatility_symbols"`
		Seed                 uint64        `yaml:"seed"`
		StartPaused          bool          `yaml:"start_paused"`
	} `yaml:"simulation"`
	History struct {
		Retention time.Duration `yaml:"retention"`
		PruneCron string        `yaml:"prune_cron"`
		CacheTTL  time.Duration `yaml:"cache_ttl"`
	} `yaml:"history"`
	HTTP struct {
		Addr string `yaml:"addr"`
	} `yaml:"http"`
	Instruments []InstrumentConfig `yaml:"instruments"`
}

// Load reads config from a YAML file, then applies environment variable
// overrides and defaults. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("SIMULATION_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("SIMULATION_INTERVAL: %w", err)
		}
		c.Simulation.Interval = d
	}
	if v := os.Getenv("SIMULATION_SEED"); v != "" {
		seed, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return fmt.Errorf("SIMULATION_SEED: %w", err)
		}
		c.Simulation.Seed = seed
	}
	if v := os.Getenv("SIMULATION_START_PAUSED"); v != "" {
		paused, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("SIMULATION_START_PAUSED: %w", err)
		}
		c.Simulation.StartPaused = paused
	}
	if v := os.Getenv("HISTORY_RETENTION"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("HISTORY_RETENTION: %w", err)
		}
		c.History.Retention = d
	}
	if v := os.Getenv("PRUNE_CRON"); v != "" {
		c.History.PruneCron = v
	}
	if v := os.Getenv("PORT"); v != "" {
		c.HTTP.Addr = ":" + v
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Simulation.Interval == 0 {
		c.Simulation.Interval = 5 * time.Second
	}
	if c.Simulation.HistoryCapacity == 0 {
		c.Simulation.HistoryCapacity = 100
	}
	if c.Simulation.PersistTimeout == 0 {
		c.Simulation.PersistTimeout = 5 * time.Second
	}
	if len(c.Simulation.LowVolatilitySymbols) == 0 {
		c.Simulation.LowVolatilitySymbols = []string{"AMZN", "GOOGL", "JPM"}
	}
	if c.History.Retention == 0 {
		c.History.Retention = 30 * 24 * time.Hour
	}
	if c.History.PruneCron == "" {
		c.History.PruneCron = "0 0 3 * * *"
	}
	if c.History.CacheTTL == 0 {
		c.History.CacheTTL = 30 * time.Second
	}
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = ":8080"
	}
}

// Validate checks that all values are usable.
func (c *Config) Validate() error {
	if c.Simulation.Interval <= 0 {
		return fmt.Errorf("simulation.interval must be positive")
	}
	if c.Simulation.HistoryCapacity <= 0 {
		return fmt.Errorf("simulation.history_capacity must be positive")
	}
	if c.Simulation.PersistTimeout <= 0 {
		return fmt.Errorf("simulation.persist_timeout must be positive")
	}
	if c.History.Retention <= 0 {
		return fmt.Errorf("history.retention must be positive")
	}
	seen := make(map[string]struct{}, len(c.Instruments))
	for i, inst := range c.Instruments {
		if inst.Symbol == "" {
			return fmt.Errorf("instruments[%d].symbol is required", i)
		}
		if !(inst.Price > 0) {
			return fmt.Errorf("instruments[%d].price must be positive", i)
		}
		id := inst.InstrumentID()
		if _, dup := seen[id]; dup {
			return fmt.Errorf("instruments[%d]: duplicate id %q", i, id)
		}
		seen[id] = struct{}{}
	}
	return nil
}

// InstrumentID returns the configured id, or a UUID derived from the symbol
// so reseeding the same catalogue yields the same ids.
func (i InstrumentConfig) InstrumentID() string {
	if i.ID != "" {
		return i.ID
	}
	return entity.NewInstrumentID(i.Symbol)
}

// SeedInstruments converts the configured catalogue into instruments.
func (c *Config) SeedInstruments() []entity.Instrument {
	out := make([]entity.Instrument, 0, len(c.Instruments))
	for _, inst := range c.Instruments {
		name := inst.Name
		if name == "" {
			name = inst.Symbol
		}
		out = append(out, entity.Instrument{
			ID:           inst.InstrumentID(),
			Symbol:       inst.Symbol,
			Name:         name,
			CurrentPrice: inst.Price,
		})
	}
	return out
}
