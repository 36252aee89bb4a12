// Package analytics streams pipeline outcome events to clickhouse.
// Emission is fire and forget: a saturated buffer drops events rather than
// slowing the pipelines, and a process without a sink degrades to a no op
package analytics

import (
	"context"
	"time"

	"taplist/internal/platform/logger"
	"taplist/internal/platform/store"
)

// Table is the clickhouse destination table
const Table = "taplist_pipeline_events"

// Event names
const (
	EventCleanupProcessed    = "cleanup_processed"
	EventEnrichmentProcessed = "enrichment_processed"
	EventDlqIngested         = "dlq_ingested"
	EventDlqReplayed         = "dlq_replayed"
)

// Event is one pipeline outcome observation
type Event struct {
	Event     string
	BeerID    string
	Outcome   string
	Source    string
	LatencyMs int64
	Ts        int64
}

// Emitter accepts events. Implementations return quickly and never surface
// sink failures to the caller
type Emitter interface {
	Emit(ctx context.Context, e Event)
}

// Noop discards every event
type Noop struct{}

// Emit implements Emitter
func (Noop) Emit(context.Context, Event) {}

// Config tunes the clickhouse emitter
type Config struct {
	// Buffer is the channel capacity (default 1024)
	Buffer int
	// FlushSize triggers a flush when the pending batch reaches it (default 128)
	FlushSize int
	// FlushEvery bounds how long a partial batch may wait (default 5s)
	FlushEvery time.Duration
}

// CH buffers events and lands them in clickhouse batches
type CH struct {
	sink store.Clickhouse
	buf  chan Event
	cfg  Config
	log  logger.Logger
}

// NewCH constructs the clickhouse emitter. Run must be started for events
// to drain
func NewCH(sink store.Clickhouse, cfg Config) *CH {
	if sink == nil {
		panic("analytics: nil clickhouse sink")
	}
	if cfg.Buffer <= 0 {
		cfg.Buffer = 1024
	}
	if cfg.FlushSize <= 0 {
		cfg.FlushSize = 128
	}
	if cfg.FlushEvery <= 0 {
		cfg.FlushEvery = 5 * time.Second
	}
	return &CH{
		sink: sink,
		buf:  make(chan Event, cfg.Buffer),
		cfg:  cfg,
		log:  *logger.Named("analytics"),
	}
}

// Emit enqueues without blocking. A full buffer drops the event
func (c *CH) Emit(_ context.Context, e Event) {
	if e.Ts == 0 {
		e.Ts = time.Now().UnixMilli()
	}
	select {
	case c.buf <- e:
	default:
		c.log.Warn().Str("event", e.Event).Msg("analytics buffer full, dropping event")
	}
}

// Run drains the buffer until ctx is done, flushing by size or age.
// Shutdown flushes whatever is still buffered on a fresh context so the
// tail of a run is not lost
func (c *CH) Run(ctx context.Context) error {
	ticker := time.NewTicker(c.cfg.FlushEvery)
	defer ticker.Stop()

	batch := make([]Event, 0, c.cfg.FlushSize)
	for {
		select {
		case <-ctx.Done():
			c.drain(&batch)
			c.flush(context.Background(), &batch)
			return ctx.Err()
		case e := <-c.buf:
			batch = append(batch, e)
			if len(batch) >= c.cfg.FlushSize {
				c.flush(ctx, &batch)
			}
		case <-ticker.C:
			c.flush(ctx, &batch)
		}
	}
}

// drain moves whatever is already buffered into batch without waiting
func (c *CH) drain(batch *[]Event) {
	for {
		select {
		case e := <-c.buf:
			*batch = append(*batch, e)
		default:
			return
		}
	}
}

// flush inserts the pending batch; a failed insert logs and drops the batch
func (c *CH) flush(ctx context.Context, batch *[]Event) {
	if len(*batch) == 0 {
		return
	}
	rows := make([][]any, len(*batch))
	for i, e := range *batch {
		rows[i] = []any{e.Event, e.BeerID, e.Outcome, e.Source, e.LatencyMs, e.Ts}
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := c.sink.Insert(ctx, Table, rows); err != nil {
		c.log.Warn().Err(err).Int("events", len(rows)).Msg("analytics insert failed, dropping batch")
	}
	*batch = (*batch)[:0]
}
