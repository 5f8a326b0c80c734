// Package timeouts centralizes the deadlines handlers put on database work.
//
//   - Ping: health checks
//   - Lookup: single-document reads (get by id, next number)
//   - Query: lists, aggregates, simple writes
//   - Allocation: range grants, which may wait on the allocation guard
//   - Batch: invoice generation and diagnostics scans
//
// Values come from app config through Configure; zero fields keep defaults.
package timeouts

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultPing       = 2 * time.Second
	DefaultLookup     = 5 * time.Second
	DefaultQuery      = 10 * time.Second
	DefaultAllocation = 20 * time.Second
	DefaultBatch      = 60 * time.Second
)

// Config holds timeout overrides.
type Config struct {
	Ping       time.Duration
	Lookup     time.Duration
	Query      time.Duration
	Allocation time.Duration
	Batch      time.Duration
}

var (
	mu  sync.RWMutex
	cur = defaults()
)

func defaults() Config {
	return Config{
		Ping:       DefaultPing,
		Lookup:     DefaultLookup,
		Query:      DefaultQuery,
		Allocation: DefaultAllocation,
		Batch:      DefaultBatch,
	}
}

func get(pick func(Config) time.Duration) time.Duration {
	mu.RLock()
	defer mu.RUnlock()
	return pick(cur)
}

func Ping() time.Duration       { return get(func(c Config) time.Duration { return c.Ping }) }
func Lookup() time.Duration     { return get(func(c Config) time.Duration { return c.Lookup }) }
func Query() time.Duration      { return get(func(c Config) time.Duration { return c.Query }) }
func Allocation() time.Duration { return get(func(c Config) time.Duration { return c.Allocation }) }
func Batch() time.Duration      { return get(func(c Config) time.Duration { return c.Batch }) }

// Configure applies non-zero values from cfg. Call during startup.
func Configure(cfg Config) {
	mu.Lock()
	defer mu.Unlock()
	if cfg.Ping > 0 {
		cur.Ping = cfg.Ping
	}
	if cfg.Lookup > 0 {
		cur.Lookup = cfg.Lookup
	}
	if cfg.Query > 0 {
		cur.Query = cfg.Query
	}
	if cfg.Allocation > 0 {
		cur.Allocation = cfg.Allocation
	}
	if cfg.Batch > 0 {
		cur.Batch = cfg.Batch
	}
}

// Current returns the active configuration, for startup logging.
func Current() Config {
	mu.RLock()
	defer mu.RUnlock()
	return cur
}

// Reset restores defaults. Tests only.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	cur = defaults()
}

// WithTimeout is context.WithTimeout whose cancel func logs when the
// deadline was what ended the operation.
func WithTimeout(parent context.Context, d time.Duration, log *zap.Logger, operation string) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(parent, d)
	return ctx, func() {
		if ctx.Err() == context.DeadlineExceeded && log != nil {
			log.Warn("operation timed out",
				zap.String("operation", operation),
				zap.Duration("timeout", d))
		}
		cancel()
	}
}
