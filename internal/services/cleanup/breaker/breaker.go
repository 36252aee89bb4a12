// Package breaker provides the latency circuit breaker guarding the cleanup
// LLM. Slow calls accumulate toward a limit; at the limit the breaker opens
// and workers route to the regex fallback until a reset window passes
package breaker

import (
	"sync"
	"time"

	"taplist/internal/platform/logger"
	"taplist/internal/platform/metrics"
	ptime "taplist/internal/platform/time"
)

// ringSize bounds the record of most recent triggering beer ids
const ringSize = 10

// Config tunes one breaker instance
type Config struct {
	// SlowCallLimit opens the breaker at this many slow calls (default 3)
	SlowCallLimit int
	// SlowThresholdMs is the latency at or above which a call counts as slow (default 5000)
	SlowThresholdMs int64
	// ResetMs is how long the breaker stays open before admitting a probe (default 60000)
	ResetMs int64
}

// Breaker is one latency breaker instance. Each worker process owns its own;
// state never crosses processes
type Breaker struct {
	mu           sync.Mutex
	cfg          Config
	slowCalls    int
	open         bool
	lastOpenedAt int64
	ring         []string
	log          logger.Logger

	// injected for tests
	now func() time.Time
}

// New constructs a breaker, defaulting zeroed config fields
func New(cfg Config) *Breaker {
	if cfg.SlowCallLimit <= 0 {
		cfg.SlowCallLimit = 3
	}
	if cfg.SlowThresholdMs <= 0 {
		cfg.SlowThresholdMs = 5000
	}
	if cfg.ResetMs <= 0 {
		cfg.ResetMs = 60_000
	}
	return &Breaker{cfg: cfg, log: *logger.Named("breaker"), now: time.Now}
}

// RecordLatency feeds one call's wall-clock latency. Fast calls are free;
// a slow call counts toward the open limit and lands the beer id in the
// ring. index/total and maxConcurrent only annotate the log line
func (b *Breaker) RecordLatency(latencyMs int64, index, total int, beerID string, maxConcurrent int) {
	if latencyMs < b.cfg.SlowThresholdMs {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	b.slowCalls++
	b.ring = append(b.ring, beerID)
	if len(b.ring) > ringSize {
		b.ring = b.ring[len(b.ring)-ringSize:]
	}
	b.log.Warn().
		Int64("latency_ms", latencyMs).
		Int("call", index+1).
		Int("of", total).
		Int("max_concurrent", maxConcurrent).
		Str("beer_id", beerID).
		Int("slow_calls", b.slowCalls).
		Msg("slow cleanup call")

	if !b.open && b.slowCalls >= b.cfg.SlowCallLimit {
		b.open = true
		b.lastOpenedAt = ptime.ToMs(b.now())
		metrics.BreakerOpens.Inc()
		b.log.Error().
			Int("slow_calls", b.slowCalls).
			Strs("recent_beer_ids", b.ring).
			Msg("circuit breaker opened")
	}
}

// IsOpen reports whether workers must skip the LLM. Once the reset window
// has passed, the first caller flips the breaker closed, zeroes the slow
// counter, and proceeds as the probe; further slow calls reopen as usual
func (b *Breaker) IsOpen() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.open {
		return false
	}
	if ptime.ToMs(b.now())-b.lastOpenedAt > b.cfg.ResetMs {
		b.open = false
		b.slowCalls = 0
		b.lastOpenedAt = 0
		b.log.Info().Msg("circuit breaker reset, admitting probe")
		return false
	}
	return true
}

// TriggeringBeers returns a copy of the most recent triggering beer ids
func (b *Breaker) TriggeringBeers() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.ring))
	copy(out, b.ring)
	return out
}
