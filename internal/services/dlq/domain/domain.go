// Package domain defines dead-letter rows, the replay state machine's
// statuses, list/stats read models, and the opaque list cursor
package domain

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"time"

	perr "taplist/internal/platform/errors"
)

// Port is the dead-letter surface the admin API consumes
type Port interface {
	List(ctx context.Context, p ListParams) (ListPage, error)
	Stats(ctx context.Context) (Stats, error)
	Replay(ctx context.Context, ids []int64, delay time.Duration) (ReplayResult, error)
	Acknowledge(ctx context.Context, ids []int64) (AckResult, error)
}

// Status is a dead-letter row's place in the replay state machine.
// pending -> replaying -> replayed | pending (enqueue failed),
// pending -> acknowledged. Re-ingest of the same message_id re-opens any
// row back to pending
type Status string

// Dead-letter statuses
const (
	StatusPending      Status = "pending"
	StatusReplaying    Status = "replaying"
	StatusReplayed     Status = "replayed"
	StatusAcknowledged Status = "acknowledged"
)

// OK reports whether the status is a known value
func (s Status) OK() bool {
	switch s {
	case StatusPending, StatusReplaying, StatusReplayed, StatusAcknowledged:
		return true
	}
	return false
}

// Purgeable reports whether the janitor may delete rows in this status
func (s Status) Purgeable() bool { return s == StatusReplayed || s == StatusAcknowledged }

// SourceQueue names the topic a dead-lettered message originally failed on
type SourceQueue string

// Source queues
const (
	SourceEnrichment SourceQueue = "beer-enrichment"
	SourceCleanup    SourceQueue = "description-cleanup"
)

// OK reports whether the source queue is a known value
func (s SourceQueue) OK() bool { return s == SourceEnrichment || s == SourceCleanup }

// Bounds on mutation input sizes, per call
const (
	MaxReplayIDs      = 50
	MaxAcknowledgeIDs = 100
)

// Message is one dead-letter row. Timestamps are epoch milliseconds
type Message struct {
	ID             int64       `json:"id"`
	MessageID      string      `json:"message_id"`
	BeerID         string      `json:"beer_id"`
	BeerName       string      `json:"beer_name"`
	Brewer         string      `json:"brewer"`
	FailedAt       int64       `json:"failed_at"`
	FailureCount   int         `json:"failure_count"`
	SourceQueue    SourceQueue `json:"source_queue"`
	RawMessage     string      `json:"raw_message,omitempty"`
	Status         Status      `json:"status"`
	ReplayCount    int         `json:"replay_count"`
	ReplayedAt     *int64      `json:"replayed_at"`
	AcknowledgedAt *int64      `json:"acknowledged_at"`
}

// IngestRow is one failed delivery headed for the dead-letter store.
// MessageID is the source queue's message id; on conflict the stored row
// re-opens to pending with FailedAt, FailureCount, and RawMessage refreshed
type IngestRow struct {
	MessageID    string
	BeerID       string
	BeerName     string
	Brewer       string
	FailedAt     int64
	FailureCount int
	SourceQueue  SourceQueue
	RawMessage   string
}

// ListParams filters and pages the dead-letter listing
type ListParams struct {
	Status     Status
	BeerID     string
	Cursor     string
	Limit      int
	IncludeRaw bool
}

// ListPage is one page of dead-letter rows in descending (failed_at, id)
// order. NextCursor is set only when HasMore
type ListPage struct {
	Messages   []Message `json:"messages"`
	HasMore    bool      `json:"has_more"`
	NextCursor string    `json:"next_cursor,omitempty"`
}

// BrewerCount is one row of the failing-brewer leaderboard
type BrewerCount struct {
	Brewer string `json:"brewer"`
	Count  int64  `json:"count"`
}

// BeerReplays is one row of the most-replayed leaderboard
type BeerReplays struct {
	BeerID      string `json:"beer_id"`
	BeerName    string `json:"beer_name"`
	ReplayCount int64  `json:"replay_count"`
}

// Rollup counts activity inside a trailing window
type Rollup struct {
	Failed       int64 `json:"failed"`
	Replayed     int64 `json:"replayed"`
	Acknowledged int64 `json:"acknowledged"`
}

// Stats is the dead-letter dashboard read model
type Stats struct {
	ByStatus           map[Status]int64 `json:"by_status"`
	OldestPendingAgeMs *int64           `json:"oldest_pending_age_ms"`
	TopBrewers         []BrewerCount    `json:"top_failing_brewers"`
	Last24h            Rollup           `json:"last_24h"`
	MostReplayed       []BeerReplays    `json:"most_replayed"`
}

// ReplayResult reports a replay call per id: claims are optimistic, so the
// claimed count is authoritative and may be lower than requested
type ReplayResult struct {
	RequestedCount int `json:"requested_count"`
	ClaimedCount   int `json:"claimed_count"`
	ReplayedCount  int `json:"replayed_count"`
	FailedCount    int `json:"failed_count"`
}

// AckResult reports an acknowledge call; only pending rows transition
type AckResult struct {
	RequestedCount    int `json:"requested_count"`
	AcknowledgedCount int `json:"acknowledged_count"`
}

// Cursor pins a listing position at descending (failed_at, id). The wire
// form is opaque base64; both fields are required on decode
type Cursor struct {
	FailedAt int64 `json:"failed_at"`
	ID       int64 `json:"id"`
}

// Encode renders the cursor as its opaque wire form
func (c Cursor) Encode() string {
	raw, _ := json.Marshal(c)
	return base64.StdEncoding.EncodeToString(raw)
}

// DecodeCursor parses an opaque cursor. Any malformed input, base64 or
// otherwise, maps to the invalid-cursor error the API surfaces as a 400
func DecodeCursor(s string) (Cursor, error) {
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return Cursor{}, perr.InvalidCursorf("malformed cursor")
	}
	var c Cursor
	if err := json.Unmarshal(raw, &c); err != nil {
		return Cursor{}, perr.InvalidCursorf("malformed cursor")
	}
	if c.ID <= 0 || c.FailedAt <= 0 {
		return Cursor{}, perr.InvalidCursorf("malformed cursor")
	}
	return c, nil
}
