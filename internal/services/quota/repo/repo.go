// Package repo provides the daily quota repository over Postgres.
// Each scope owns its own counter table of (date, request_count, last_updated)
package repo

import (
	"context"
	stdsql "database/sql"
	"errors"
	"fmt"

	"taplist/internal/modkit/repokit"
	perr "taplist/internal/platform/errors"
	"taplist/internal/platform/store"
	dom "taplist/internal/services/quota/domain"
)

// Repo is the quota persistence surface used by the service layer
type Repo interface {
	EnsureRow(ctx context.Context, scope dom.Scope, date string, nowMs int64) error
	CurrentCount(ctx context.Context, scope dom.Scope, date string) (int, error)
	ReserveBatch(ctx context.Context, scope dom.Scope, date string, requested, dailyLimit int, nowMs int64) (int, error)
	ReserveOne(ctx context.Context, scope dom.Scope, date string, dailyLimit int, nowMs int64) (int, bool, error)
	MonthlySum(ctx context.Context, scope dom.Scope, firstDate, lastDate string) (int, error)
	PurgeBefore(ctx context.Context, scope dom.Scope, cutoffDate string) (int64, error)
}

type (
	// PG is a Postgres implementation of the quota repo
	PG      struct{}
	queries struct{ q repokit.Queryer }
)

// NewPG returns a binder for the Postgres implementation
func NewPG() repokit.Binder[Repo] { return PG{} }

// Bind attaches a Queryer to the Postgres implementation
func (PG) Bind(q repokit.Queryer) Repo { return &queries{q: q} }

// tableFor maps a scope to its counter table. Table names cannot be bound as
// parameters, so the set is closed here
func tableFor(scope dom.Scope) (string, error) {
	switch scope {
	case dom.ScopeEnrichment:
		return "enrichment_limits", nil
	case dom.ScopeCleanup:
		return "cleanup_limits", nil
	default:
		return "", perr.InvalidArgf("quota: unknown scope %q", string(scope))
	}
}

// EnsureRow creates today's counter when absent
func (r *queries) EnsureRow(ctx context.Context, scope dom.Scope, date string, nowMs int64) error {
	t, err := tableFor(scope)
	if err != nil {
		return err
	}
	sql := fmt.Sprintf(`
		INSERT INTO %s (date, request_count, last_updated)
		VALUES ($1, 0, $2)
		ON CONFLICT (date) DO NOTHING
	`, t)
	_, err = r.q.Exec(ctx, sql, date, nowMs)
	return err
}

// CurrentCount reads the day's usage; a missing row reads as zero
func (r *queries) CurrentCount(ctx context.Context, scope dom.Scope, date string) (int, error) {
	t, err := tableFor(scope)
	if err != nil {
		return 0, err
	}
	sql := fmt.Sprintf(`SELECT request_count FROM %s WHERE date = $1`, t)
	n, err := store.Scalar[int](ctx, r.q, sql, date)
	if err != nil {
		if errors.Is(err, stdsql.ErrNoRows) {
			return 0, nil
		}
		return 0, err
	}
	return n, nil
}

// ReserveBatch runs the all-or-nothing CASE update and returns the
// post-update count. The CASE keeps the statement a single atomic write:
// concurrent reservations serialize on the row lock and each sees the
// other's count
func (r *queries) ReserveBatch(
	ctx context.Context, scope dom.Scope, date string, requested, dailyLimit int, nowMs int64,
) (int, error) {
	t, err := tableFor(scope)
	if err != nil {
		return 0, err
	}
	sql := fmt.Sprintf(`
		UPDATE %s
		   SET request_count = CASE
		           WHEN request_count + $2 <= $3 THEN request_count + $2
		           ELSE request_count
		       END,
		       last_updated = $4
		 WHERE date = $1
		RETURNING request_count
	`, t)
	return store.Scalar[int](ctx, r.q, sql, date, requested, dailyLimit, nowMs)
}

// ReserveOne grabs exactly one slot when the day is under the limit.
// Returns (newCount, true) on a grab and (0, false) when the limit is hit;
// a false return means the caller must read CurrentCount for the number
func (r *queries) ReserveOne(
	ctx context.Context, scope dom.Scope, date string, dailyLimit int, nowMs int64,
) (int, bool, error) {
	t, err := tableFor(scope)
	if err != nil {
		return 0, false, err
	}
	sql := fmt.Sprintf(`
		UPDATE %s
		   SET request_count = request_count + 1,
		       last_updated  = $3
		 WHERE date = $1 AND request_count < $2
		RETURNING request_count
	`, t)
	n, err := store.Scalar[int](ctx, r.q, sql, date, dailyLimit, nowMs)
	if err != nil {
		if errors.Is(err, stdsql.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return n, true, nil
}

// MonthlySum totals usage across a date range (inclusive)
func (r *queries) MonthlySum(ctx context.Context, scope dom.Scope, firstDate, lastDate string) (int, error) {
	t, err := tableFor(scope)
	if err != nil {
		return 0, err
	}
	sql := fmt.Sprintf(`
		SELECT COALESCE(SUM(request_count), 0)::int
		  FROM %s
		 WHERE date >= $1 AND date <= $2
	`, t)
	return store.Scalar[int](ctx, r.q, sql, firstDate, lastDate)
}

// PurgeBefore removes counters older than the cutoff date
func (r *queries) PurgeBefore(ctx context.Context, scope dom.Scope, cutoffDate string) (int64, error) {
	t, err := tableFor(scope)
	if err != nil {
		return 0, err
	}
	tag, err := r.q.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE date < $1`, t), cutoffDate)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
