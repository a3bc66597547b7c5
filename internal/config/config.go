package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/efreitasn/lobsim/internal/domain"
	"github.com/efreitasn/lobsim/internal/engine"
	"github.com/efreitasn/lobsim/internal/events"
	"github.com/efreitasn/lobsim/internal/generator"
)

// Config holds all runtime configuration for the simulator.
type Config struct {
	LogLevel string

	Instrument     string
	TickSize       decimal.Decimal
	ReferencePrice int64 // ticks
	BookDepth      int
	QueueCapacity  int
	Backpressure   engine.Backpressure

	EventBuffer   int
	EventOverflow events.Overflow

	SimOrders      int
	SimProducers   int
	SimSeed        int64
	SimPriceBand   int64
	SimMaxQuantity int64
	SimMarketPct   int
	SimStopPct     int

	VWAPWindow      time.Duration
	HTTPAddr        string // empty disables the inspection server
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	KafkaBrokers []string // empty disables the Kafka publisher
	KafkaTopic   string
}

// Load reads configuration from environment variables, applies defaults,
// and validates values. It returns an error for any invalid value.
func Load() (*Config, error) {
	cfg := &Config{
		Instrument: getStr("INSTRUMENT", "SIM"),
		HTTPAddr:   os.Getenv("HTTP_ADDR"),
		KafkaTopic: getStr("KAFKA_TOPIC", "lob.events"),
	}

	cfg.LogLevel = getStr("LOG_LEVEL", "info")
	if !isValidLogLevel(cfg.LogLevel) {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %q, must be one of: debug, info, warn, error", cfg.LogLevel)
	}

	var err error
	cfg.TickSize, err = getDecimal("TICK_SIZE", "0.01")
	if err != nil {
		return nil, fmt.Errorf("invalid TICK_SIZE: %w", err)
	}
	if !cfg.TickSize.IsPositive() {
		return nil, fmt.Errorf("invalid TICK_SIZE: must be positive, got %s", cfg.TickSize)
	}

	refPrice, err := getDecimal("REFERENCE_PRICE", "100.00")
	if err != nil {
		return nil, fmt.Errorf("invalid REFERENCE_PRICE: %w", err)
	}
	cfg.ReferencePrice, err = domain.PriceToTicks(refPrice, cfg.TickSize)
	if err != nil {
		return nil, fmt.Errorf("invalid REFERENCE_PRICE: %w", err)
	}
	if cfg.ReferencePrice <= 0 {
		return nil, fmt.Errorf("invalid REFERENCE_PRICE: must be positive, got %s", refPrice)
	}

	if cfg.BookDepth, err = getPositiveInt("BOOK_DEPTH", engine.DefaultDepth); err != nil {
		return nil, err
	}
	if cfg.QueueCapacity, err = getPositiveInt("QUEUE_CAPACITY", 1024); err != nil {
		return nil, err
	}
	if cfg.Backpressure, err = engine.ParseBackpressure(getStr("BACKPRESSURE", string(engine.BackpressureBlock))); err != nil {
		return nil, fmt.Errorf("invalid BACKPRESSURE: %w", err)
	}

	if cfg.EventBuffer, err = getPositiveInt("EVENT_BUFFER", 4096); err != nil {
		return nil, err
	}
	if cfg.EventOverflow, err = events.ParseOverflow(getStr("EVENT_OVERFLOW", string(events.OverflowDrop))); err != nil {
		return nil, fmt.Errorf("invalid EVENT_OVERFLOW: %w", err)
	}

	if cfg.SimOrders, err = getInt("SIM_ORDERS", 10000); err != nil {
		return nil, fmt.Errorf("invalid SIM_ORDERS: %w", err)
	}
	if cfg.SimOrders < 0 {
		return nil, fmt.Errorf("invalid SIM_ORDERS: must not be negative, got %d", cfg.SimOrders)
	}
	if cfg.SimProducers, err = getPositiveInt("SIM_PRODUCERS", 4); err != nil {
		return nil, err
	}
	if cfg.SimSeed, err = getInt64("SIM_SEED", 1); err != nil {
		return nil, fmt.Errorf("invalid SIM_SEED: %w", err)
	}
	if cfg.SimPriceBand, err = getInt64("SIM_PRICE_BAND", 1000); err != nil {
		return nil, fmt.Errorf("invalid SIM_PRICE_BAND: %w", err)
	}
	if cfg.SimMaxQuantity, err = getInt64("SIM_MAX_QUANTITY", 100); err != nil {
		return nil, fmt.Errorf("invalid SIM_MAX_QUANTITY: %w", err)
	}
	if cfg.SimMarketPct, err = getInt("SIM_MARKET_PCT", 45); err != nil {
		return nil, fmt.Errorf("invalid SIM_MARKET_PCT: %w", err)
	}
	if cfg.SimStopPct, err = getInt("SIM_STOP_PCT", 10); err != nil {
		return nil, fmt.Errorf("invalid SIM_STOP_PCT: %w", err)
	}
	if err := cfg.Generator().Validate(); err != nil {
		return nil, fmt.Errorf("invalid simulation settings: %w", err)
	}

	if cfg.VWAPWindow, err = getDuration("VWAP_WINDOW", 5*time.Minute); err != nil {
		return nil, fmt.Errorf("invalid VWAP_WINDOW: %w", err)
	}
	if cfg.ReadTimeout, err = getDuration("READ_TIMEOUT", 5*time.Second); err != nil {
		return nil, fmt.Errorf("invalid READ_TIMEOUT: %w", err)
	}
	if cfg.WriteTimeout, err = getDuration("WRITE_TIMEOUT", 10*time.Second); err != nil {
		return nil, fmt.Errorf("invalid WRITE_TIMEOUT: %w", err)
	}
	if cfg.IdleTimeout, err = getDuration("IDLE_TIMEOUT", 60*time.Second); err != nil {
		return nil, fmt.Errorf("invalid IDLE_TIMEOUT: %w", err)
	}
	if cfg.ShutdownTimeout, err = getDuration("SHUTDOWN_TIMEOUT", 10*time.Second); err != nil {
		return nil, fmt.Errorf("invalid SHUTDOWN_TIMEOUT: %w", err)
	}

	cfg.KafkaBrokers = getList("KAFKA_BROKERS")

	return cfg, nil
}

// Engine returns the matching engine settings.
func (c *Config) Engine() engine.Config {
	return engine.Config{
		Instrument:     c.Instrument,
		ReferencePrice: c.ReferencePrice,
		DefaultDepth:   c.BookDepth,
		QueueCapacity:  c.QueueCapacity,
		Backpressure:   c.Backpressure,
	}
}

// Dispatcher returns the event dispatcher settings.
func (c *Config) Dispatcher() events.Config {
	return events.Config{Buffer: c.EventBuffer, Overflow: c.EventOverflow}
}

// Generator returns the order generator settings.
func (c *Config) Generator() generator.Config {
	return generator.Config{
		ReferencePrice: c.ReferencePrice,
		PriceBand:      c.SimPriceBand,
		MaxQuantity:    c.SimMaxQuantity,
		MarketPct:      c.SimMarketPct,
		StopPct:        c.SimStopPct,
	}
}

func getStr(key, defaultVal string) string {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	return v
}

func getInt(key string, defaultVal int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	return strconv.Atoi(v)
}

func getPositiveInt(key string, defaultVal int) (int, error) {
	n, err := getInt(key, defaultVal)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if n < 1 {
		return 0, fmt.Errorf("invalid %s: must be positive, got %d", key, n)
	}
	return n, nil
}

func getInt64(key string, defaultVal int64) (int64, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	return strconv.ParseInt(v, 10, 64)
}

func getDecimal(key, defaultVal string) (decimal.Decimal, error) {
	return decimal.NewFromString(getStr(key, defaultVal))
}

func getDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	return time.ParseDuration(v)
}

// getList splits a comma separated value, dropping blank entries.
func getList(key string) []string {
	var out []string
	for _, s := range strings.Split(os.Getenv(key), ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func isValidLogLevel(level string) bool {
	switch level {
	case "debug", "info", "warn", "error":
		return true
	}
	return false
}
