package store

import (
	"context"
	"errors"

	"taplist/internal/platform/store/ch"
)

// newCHRunner wraps the native client in the Clickhouse seam
func newCHRunner(c *ch.CH) Clickhouse {
	return &chRunner{inner: c}
}

// chRunner adapts *ch.CH to the store.Clickhouse interface
type chRunner struct {
	inner *ch.CH
}

var _ Clickhouse = (*chRunner)(nil)

// Insert forwards a row batch. Callers hand over [][]any with columns
// in table order; anything else is refused before touching the wire.
func (a *chRunner) Insert(ctx context.Context, table string, data any) error {
	rows, ok := data.([][]any)
	if !ok {
		return errors.New("store: clickhouse insert wants [][]any row batches")
	}
	return a.inner.Insert(ctx, table, rows)
}

func (a *chRunner) Query(ctx context.Context, sql string, args ...any) (Rows, error) {
	r, err := a.inner.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	return &chRowIter{r: r}, nil
}

func (a *chRunner) Close() error { return a.inner.Close() }

func (a *chRunner) Ping(ctx context.Context) error {
	if a == nil || a.inner == nil {
		return errors.New("store: nil clickhouse runner")
	}
	return a.inner.Ping(ctx)
}

// chRowIter narrows ch.Rows to store.Rows; Close swallows the error to
// match the pg side
type chRowIter struct {
	r ch.Rows
}

func (r *chRowIter) Next() bool             { return r.r.Next() }
func (r *chRowIter) Scan(dest ...any) error { return r.r.Scan(dest...) }
func (r *chRowIter) Err() error             { return r.r.Err() }
func (r *chRowIter) Close()                 { _ = r.r.Close() }
func (r *chRowIter) Columns() []string      { return r.r.Columns() }
