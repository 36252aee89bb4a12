// Package repo provides the dead-letter repository over Postgres.
// Status transitions are conditional single-statement updates, so two
// replayers racing over the same pending row can never both claim it
package repo

import (
	"context"
	"fmt"
	"strings"

	"taplist/internal/modkit/repokit"
	perr "taplist/internal/platform/errors"
	"taplist/internal/platform/store"
	dom "taplist/internal/services/dlq/domain"
)

// Repo is the dead-letter persistence surface used by the service layer
type Repo interface {
	UpsertFailed(ctx context.Context, rows []dom.IngestRow) error
	Claim(ctx context.Context, ids []int64) (int64, error)
	FetchClaimed(ctx context.Context, ids []int64) ([]dom.Message, error)
	MarkReplayed(ctx context.Context, ids []int64, nowMs int64) error
	Rollback(ctx context.Context, ids []int64) error
	Acknowledge(ctx context.Context, ids []int64, nowMs int64) (int64, error)
	List(ctx context.Context, p ListQuery) ([]dom.Message, error)
	CountByStatus(ctx context.Context) (map[dom.Status]int64, error)
	OldestPendingFailedAt(ctx context.Context) (*int64, error)
	TopFailingBrewers(ctx context.Context, n int) ([]dom.BrewerCount, error)
	Rollup(ctx context.Context, sinceMs int64) (dom.Rollup, error)
	MostReplayed(ctx context.Context, n int) ([]dom.BeerReplays, error)
	PurgeBatch(ctx context.Context, status dom.Status, olderThanMs int64, limit int) (int64, error)
	ReleaseReplaying(ctx context.Context) (int64, error)
}

// ListQuery is the repo-level listing filter. Limit is the exact row cap;
// the service fetches one extra row to detect another page
type ListQuery struct {
	Status dom.Status
	BeerID string
	After  *dom.Cursor
	Limit  int
}

type (
	// PG is a Postgres implementation of the dead-letter repo
	PG      struct{}
	queries struct{ q repokit.Queryer }
)

// NewPG returns a binder for the Postgres implementation
func NewPG() repokit.Binder[Repo] { return PG{} }

// Bind attaches a Queryer to the Postgres implementation
func (PG) Bind(q repokit.Queryer) Repo { return &queries{q: q} }

// UpsertFailed lands failed deliveries in one statement. A message_id seen
// before re-opens its row to pending with the fresh failure metadata; replay
// bookkeeping (replay_count, replayed_at, acknowledged_at) survives so the
// row's history stays readable
func (r *queries) UpsertFailed(ctx context.Context, rows []dom.IngestRow) error {
	if len(rows) == 0 {
		return nil
	}
	mids := make([]string, len(rows))
	beerIDs := make([]string, len(rows))
	names := make([]string, len(rows))
	brewers := make([]string, len(rows))
	failedAts := make([]int64, len(rows))
	counts := make([]int, len(rows))
	sources := make([]string, len(rows))
	raws := make([]string, len(rows))
	for i, row := range rows {
		mids[i] = row.MessageID
		beerIDs[i] = row.BeerID
		names[i] = row.BeerName
		brewers[i] = row.Brewer
		failedAts[i] = row.FailedAt
		counts[i] = row.FailureCount
		sources[i] = string(row.SourceQueue)
		raws[i] = row.RawMessage
	}

	const sqlq = `
		INSERT INTO dlq_messages (
		    message_id, beer_id, beer_name, brewer,
		    failed_at, failure_count, source_queue, raw_message, status
		)
		SELECT t.mid, t.beer_id, t.beer_name, t.brewer,
		       t.failed_at, t.failure_count, t.source_queue, t.raw_message, 'pending'
		  FROM UNNEST(
		           $1::text[], $2::text[], $3::text[], $4::text[],
		           $5::bigint[], $6::int[], $7::text[], $8::text[]
		       ) AS t(mid, beer_id, beer_name, brewer, failed_at, failure_count, source_queue, raw_message)
		ON CONFLICT (message_id) DO UPDATE SET
		    status        = 'pending',
		    failed_at     = EXCLUDED.failed_at,
		    failure_count = EXCLUDED.failure_count,
		    raw_message   = EXCLUDED.raw_message,
		    beer_id       = EXCLUDED.beer_id,
		    beer_name     = EXCLUDED.beer_name,
		    brewer        = EXCLUDED.brewer
	`
	if _, err := r.q.Exec(ctx, sqlq, mids, beerIDs, names, brewers, failedAts, counts, sources, raws); err != nil {
		return perr.FromPostgres(err, "dlq.UpsertFailed")
	}
	return nil
}

// Claim optimistically moves pending rows to replaying and reports how many
// actually flipped. The WHERE on status is the whole race guard
func (r *queries) Claim(ctx context.Context, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	const sqlq = `
		UPDATE dlq_messages
		   SET status = 'replaying'
		 WHERE id = ANY($1::bigint[]) AND status = 'pending'
	`
	tag, err := r.q.Exec(ctx, sqlq, ids)
	if err != nil {
		return 0, perr.FromPostgres(err, "dlq.Claim")
	}
	return tag.RowsAffected(), nil
}

// FetchClaimed loads rows this caller just claimed. The status filter keeps
// a stale id list from picking up rows someone else has since settled
func (r *queries) FetchClaimed(ctx context.Context, ids []int64) ([]dom.Message, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	const sqlq = `
		SELECT id, message_id, beer_id, beer_name, brewer,
		       failed_at, failure_count, source_queue, raw_message,
		       status, replay_count, replayed_at, acknowledged_at
		  FROM dlq_messages
		 WHERE id = ANY($1::bigint[]) AND status = 'replaying'
		 ORDER BY id
	`
	rows, err := store.Many(ctx, r.q, scanMessage, sqlq, ids)
	if err != nil {
		return nil, perr.FromPostgres(err, "dlq.FetchClaimed")
	}
	return rows, nil
}

// MarkReplayed settles successfully re-enqueued rows
func (r *queries) MarkReplayed(ctx context.Context, ids []int64, nowMs int64) error {
	if len(ids) == 0 {
		return nil
	}
	const sqlq = `
		UPDATE dlq_messages
		   SET status = 'replayed',
		       replay_count = replay_count + 1,
		       replayed_at  = $2
		 WHERE id = ANY($1::bigint[]) AND status = 'replaying'
	`
	if _, err := r.q.Exec(ctx, sqlq, ids, nowMs); err != nil {
		return perr.FromPostgres(err, "dlq.MarkReplayed")
	}
	return nil
}

// Rollback releases claimed rows whose re-enqueue failed back to pending
func (r *queries) Rollback(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	const sqlq = `
		UPDATE dlq_messages
		   SET status = 'pending'
		 WHERE id = ANY($1::bigint[]) AND status = 'replaying'
	`
	if _, err := r.q.Exec(ctx, sqlq, ids); err != nil {
		return perr.FromPostgres(err, "dlq.Rollback")
	}
	return nil
}

// Acknowledge closes pending rows and reports how many transitioned
func (r *queries) Acknowledge(ctx context.Context, ids []int64, nowMs int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	const sqlq = `
		UPDATE dlq_messages
		   SET status = 'acknowledged',
		       acknowledged_at = $2
		 WHERE id = ANY($1::bigint[]) AND status = 'pending'
	`
	tag, err := r.q.Exec(ctx, sqlq, ids, nowMs)
	if err != nil {
		return 0, perr.FromPostgres(err, "dlq.Acknowledge")
	}
	return tag.RowsAffected(), nil
}

// List pages rows in descending (failed_at, id) order. The cursor pins the
// position strictly after the last row served
func (r *queries) List(ctx context.Context, p ListQuery) ([]dom.Message, error) {
	var sb strings.Builder
	var args []any
	arg := func(v any) string { args = append(args, v); return fmt.Sprintf("$%d", len(args)) }

	sb.WriteString(`
		SELECT id, message_id, beer_id, beer_name, brewer,
		       failed_at, failure_count, source_queue, raw_message,
		       status, replay_count, replayed_at, acknowledged_at
		  FROM dlq_messages
		 WHERE status = ` + arg(string(p.Status)) + "\n")
	if p.BeerID != "" {
		sb.WriteString("  AND beer_id = " + arg(p.BeerID) + "\n")
	}
	// Keyset only when a cursor is set (first page scans from the top)
	if p.After != nil {
		sb.WriteString("  AND (failed_at, id) < (" + arg(p.After.FailedAt) + ", " + arg(p.After.ID) + ")\n")
	}
	sb.WriteString("ORDER BY failed_at DESC, id DESC\nLIMIT " + arg(p.Limit))

	rows, err := store.Many(ctx, r.q, scanMessage, sb.String(), args...)
	if err != nil {
		return nil, perr.FromPostgres(err, "dlq.List")
	}
	return rows, nil
}

// CountByStatus group-counts the whole table
func (r *queries) CountByStatus(ctx context.Context) (map[dom.Status]int64, error) {
	const sqlq = `SELECT status, count(*) FROM dlq_messages GROUP BY status`
	type pair struct {
		status string
		count  int64
	}
	rows, err := store.Many(ctx, r.q, func(r store.Row) (pair, error) {
		var p pair
		err := r.Scan(&p.status, &p.count)
		return p, err
	}, sqlq)
	if err != nil {
		return nil, perr.FromPostgres(err, "dlq.CountByStatus")
	}
	out := make(map[dom.Status]int64, len(rows))
	for _, p := range rows {
		out[dom.Status(p.status)] = p.count
	}
	return out, nil
}

// OldestPendingFailedAt reads the failure instant of the oldest pending row,
// nil when the backlog is clear
func (r *queries) OldestPendingFailedAt(ctx context.Context) (*int64, error) {
	const sqlq = `SELECT MIN(failed_at) FROM dlq_messages WHERE status = 'pending'`
	var v *int64
	if err := r.q.QueryRow(ctx, sqlq).Scan(&v); err != nil {
		return nil, perr.FromPostgres(err, "dlq.OldestPendingFailedAt")
	}
	return v, nil
}

// TopFailingBrewers ranks brewers by pending rows
func (r *queries) TopFailingBrewers(ctx context.Context, n int) ([]dom.BrewerCount, error) {
	const sqlq = `
		SELECT brewer, count(*) AS c
		  FROM dlq_messages
		 WHERE status = 'pending' AND brewer <> ''
		 GROUP BY brewer
		 ORDER BY c DESC, brewer
		 LIMIT $1
	`
	rows, err := store.Many(ctx, r.q, func(r store.Row) (dom.BrewerCount, error) {
		var b dom.BrewerCount
		err := r.Scan(&b.Brewer, &b.Count)
		return b, err
	}, sqlq, n)
	if err != nil {
		return nil, perr.FromPostgres(err, "dlq.TopFailingBrewers")
	}
	return rows, nil
}

// Rollup counts failures, replays, and acknowledgements since a cutoff
func (r *queries) Rollup(ctx context.Context, sinceMs int64) (dom.Rollup, error) {
	const sqlq = `
		SELECT count(*) FILTER (WHERE failed_at >= $1),
		       count(*) FILTER (WHERE replayed_at IS NOT NULL AND replayed_at >= $1),
		       count(*) FILTER (WHERE acknowledged_at IS NOT NULL AND acknowledged_at >= $1)
		  FROM dlq_messages
	`
	var out dom.Rollup
	if err := r.q.QueryRow(ctx, sqlq, sinceMs).Scan(&out.Failed, &out.Replayed, &out.Acknowledged); err != nil {
		return dom.Rollup{}, perr.FromPostgres(err, "dlq.Rollup")
	}
	return out, nil
}

// MostReplayed ranks beers by accumulated replay count
func (r *queries) MostReplayed(ctx context.Context, n int) ([]dom.BeerReplays, error) {
	const sqlq = `
		SELECT beer_id, MAX(beer_name), SUM(replay_count)::bigint AS replays
		  FROM dlq_messages
		 WHERE replay_count > 0
		 GROUP BY beer_id
		 ORDER BY replays DESC, beer_id
		 LIMIT $1
	`
	rows, err := store.Many(ctx, r.q, func(r store.Row) (dom.BeerReplays, error) {
		var b dom.BeerReplays
		err := r.Scan(&b.BeerID, &b.BeerName, &b.ReplayCount)
		return b, err
	}, sqlq, n)
	if err != nil {
		return nil, perr.FromPostgres(err, "dlq.MostReplayed")
	}
	return rows, nil
}

// PurgeBatch deletes one batch of settled rows older than the cutoff on the
// status's own timestamp. Callers loop until a batch comes back short
func (r *queries) PurgeBatch(ctx context.Context, status dom.Status, olderThanMs int64, limit int) (int64, error) {
	var sqlq string
	switch status {
	case dom.StatusReplayed:
		sqlq = `
			DELETE FROM dlq_messages
			 WHERE id IN (
			     SELECT id FROM dlq_messages
			      WHERE status = 'replayed' AND replayed_at IS NOT NULL AND replayed_at < $1
			      LIMIT $2
			 )
		`
	case dom.StatusAcknowledged:
		sqlq = `
			DELETE FROM dlq_messages
			 WHERE id IN (
			     SELECT id FROM dlq_messages
			      WHERE status = 'acknowledged' AND acknowledged_at IS NOT NULL AND acknowledged_at < $1
			      LIMIT $2
			 )
		`
	default:
		return 0, perr.InvalidArgf("dlq: cannot purge status %q", string(status))
	}
	tag, err := r.q.Exec(ctx, sqlq, olderThanMs, limit)
	if err != nil {
		return 0, perr.FromPostgres(err, "dlq.PurgeBatch")
	}
	return tag.RowsAffected(), nil
}

// ReleaseReplaying returns every replaying row to pending. Only the janitor
// calls it: a row can sit in replaying forever after a crash between claim
// and settle, while a live replay holds the status for seconds
func (r *queries) ReleaseReplaying(ctx context.Context) (int64, error) {
	const sqlq = `UPDATE dlq_messages SET status = 'pending' WHERE status = 'replaying'`
	tag, err := r.q.Exec(ctx, sqlq)
	if err != nil {
		return 0, perr.FromPostgres(err, "dlq.ReleaseReplaying")
	}
	return tag.RowsAffected(), nil
}

func scanMessage(r store.Row) (dom.Message, error) {
	var (
		m      dom.Message
		source string
		status string
	)
	err := r.Scan(
		&m.ID, &m.MessageID, &m.BeerID, &m.BeerName, &m.Brewer,
		&m.FailedAt, &m.FailureCount, &source, &m.RawMessage,
		&status, &m.ReplayCount, &m.ReplayedAt, &m.AcknowledgedAt,
	)
	if err != nil {
		return dom.Message{}, err
	}
	m.SourceQueue = dom.SourceQueue(source)
	m.Status = dom.Status(status)
	return m, nil
}
