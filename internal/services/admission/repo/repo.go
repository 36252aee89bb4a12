// Package repo provides the admission repository over Postgres
package repo

import (
	"context"

	"taplist/internal/modkit/repokit"
	"taplist/internal/platform/store"
)

// Repo is the admission persistence surface used by the service layer
type Repo interface {
	Increment(ctx context.Context, key string, bucket int64) (int, error)
	PurgeBefore(ctx context.Context, olderThanBucket int64) (int64, error)
}

type (
	// PG is a Postgres implementation of the admission repo
	PG      struct{}
	queries struct{ q repokit.Queryer }
)

// NewPG returns a binder for the Postgres implementation
func NewPG() repokit.Binder[Repo] { return PG{} }

// Bind attaches a Queryer to the Postgres implementation
func (PG) Bind(q repokit.Queryer) Repo { return &queries{q: q} }

// Increment bumps the window counter and returns the post-increment count.
// The single-statement conflict bump is the whole admission decision;
// concurrent callers each observe a distinct count
func (r *queries) Increment(ctx context.Context, key string, bucket int64) (int, error) {
	const sql = `
		INSERT INTO rate_limits (client_identifier, minute_bucket, request_count)
		VALUES ($1, $2, 1)
		ON CONFLICT (client_identifier, minute_bucket)
		DO UPDATE SET request_count = rate_limits.request_count + 1
		RETURNING request_count
	`
	return store.Scalar[int](ctx, r.q, sql, key, bucket)
}

// PurgeBefore deletes counters from buckets older than the horizon
func (r *queries) PurgeBefore(ctx context.Context, olderThanBucket int64) (int64, error) {
	tag, err := r.q.Exec(ctx, `DELETE FROM rate_limits WHERE minute_bucket < $1`, olderThanBucket)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
