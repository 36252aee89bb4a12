// Package audit lands admin mutations in the write-only audit_log table.
// Recording is asynchronous and best-effort: a full buffer or a failed
// insert drops the entry with a log line, never the mutation it describes
package audit

import (
	"context"
	"encoding/json"
	"time"

	"taplist/internal/platform/logger"
	"taplist/internal/platform/store"
)

// Action is the closed set of audited admin mutations
type Action string

// Audited actions
const (
	ActionEnrichTrigger  Action = "enrich_trigger"
	ActionDlqReplay      Action = "dlq_replay"
	ActionDlqAcknowledge Action = "dlq_acknowledge"
	ActionDlqPurge       Action = "dlq_purge"
)

// ActorSystem marks entries written by scheduled jobs rather than an admin key
const ActorSystem = "system"

// Entry is one audit row. Detail is marshaled into the jsonb column
type Entry struct {
	OccurredAt   int64
	Actor        string
	Action       Action
	SubjectCount int
	Detail       any
	RequestID    string
}

// Recorder is the seam admin surfaces record through
type Recorder interface {
	Record(ctx context.Context, e Entry)
}

// Noop discards entries
type Noop struct{}

// Record drops the entry
func (Noop) Record(context.Context, Entry) {}

// Config tunes the async recorder
type Config struct {
	// Buffer is the queued-entry capacity (default 256)
	Buffer int
}

// PG records entries through a buffered channel into audit_log
type PG struct {
	db  store.RowQuerier
	buf chan Entry
	log logger.Logger
}

// NewPG constructs the recorder. Run must be started for entries to land
func NewPG(db store.RowQuerier, cfg Config) *PG {
	if db == nil {
		panic("audit: nil db")
	}
	if cfg.Buffer <= 0 {
		cfg.Buffer = 256
	}
	return &PG{db: db, buf: make(chan Entry, cfg.Buffer), log: *logger.Named("audit")}
}

// Record queues one entry without blocking. Missing timestamps and actors
// are stamped here so callers can stay terse
func (p *PG) Record(_ context.Context, e Entry) {
	if e.OccurredAt == 0 {
		e.OccurredAt = time.Now().UnixMilli()
	}
	if e.Actor == "" {
		e.Actor = ActorSystem
	}
	select {
	case p.buf <- e:
	default:
		p.log.Warn().Str("action", string(e.Action)).Msg("audit buffer full, dropping entry")
	}
}

// Run drains the buffer until ctx is done, then flushes whatever is queued.
// The final inserts run on a fresh context since ctx is already cancelled
func (p *PG) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			for {
				select {
				case e := <-p.buf:
					p.insert(context.Background(), e)
				default:
					return ctx.Err()
				}
			}
		case e := <-p.buf:
			p.insert(ctx, e)
		}
	}
}

func (p *PG) insert(ctx context.Context, e Entry) {
	detail := "{}"
	if e.Detail != nil {
		b, err := json.Marshal(e.Detail)
		if err != nil {
			p.log.Warn().Err(err).Str("action", string(e.Action)).Msg("audit detail marshal failed")
		} else {
			detail = string(b)
		}
	}
	const sqlq = `
        INSERT INTO audit_log (occurred_at, actor, action, subject_count, detail, request_id)
        VALUES ($1, $2, $3, $4, $5::jsonb, $6)
    `
	_, err := p.db.Exec(ctx, sqlq, e.OccurredAt, e.Actor, string(e.Action), e.SubjectCount, detail, e.RequestID)
	if err != nil {
		p.log.Error().Err(err).Str("action", string(e.Action)).Msg("audit insert failed")
	}
}
