package store

import (
	"context"
	"errors"
	"time"

	"taplist/internal/platform/store/pg"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// sqlRunner adapts pg.PG to RowQuerier and TxRunner. Every statement
// reports to the pool's tracer when one is configured.
type sqlRunner struct {
	p *pg.PG
}

func newSQLRunner(p *pg.PG) *sqlRunner { return &sqlRunner{p: p} }

func (a *sqlRunner) Ping(ctx context.Context) error {
	if a == nil {
		return errors.New("pg: nil adapter")
	}
	var one int
	return a.QueryRow(ctx, "SELECT 1").Scan(&one)
}

func (a *sqlRunner) Close() error { a.p.Close(); return nil }

func (a *sqlRunner) slowUS() int64 { return int64(a.p.SlowMs) * 1000 }

func (a *sqlRunner) Exec(ctx context.Context, sql string, args ...any) (CommandTag, error) {
	start := time.Now()
	ct, err := a.p.Pool.Exec(ctx, sql, args...)
	emitQuery(ctx, a.p.Tracer, a.slowUS(), sql, args, start, err)
	return cmdTag{ct}, err
}

func (a *sqlRunner) Query(ctx context.Context, sql string, args ...any) (Rows, error) {
	start := time.Now()
	rs, err := a.p.Pool.Query(ctx, sql, args...)
	// timed to first row; scan time is not included
	emitQuery(ctx, a.p.Tracer, a.slowUS(), sql, args, start, err)
	if err != nil {
		return nil, err
	}
	return rowIter{r: rs}, nil
}

func (a *sqlRunner) QueryRow(ctx context.Context, sql string, args ...any) Row {
	start := time.Now()
	r := a.p.Pool.QueryRow(ctx, sql, args...)
	// pgx surfaces row errors at Scan, so the event waits for it
	return tracedRow{
		r: r,
		after: func(scanErr error) {
			emitQuery(ctx, a.p.Tracer, a.slowUS(), sql, args, start, scanErr)
		},
	}
}

func (a *sqlRunner) Tx(ctx context.Context, fn func(q RowQuerier) error) error {
	tx, err := a.p.Pool.Begin(ctx)
	if err != nil {
		return err
	}
	q := txSession{
		tx:     tx,
		tracer: a.p.Tracer,
		slowUS: a.slowUS(),
	}
	if err := fn(q); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

// txSession satisfies RowQuerier inside a transaction, tracing the
// same way the pool paths do.
type txSession struct {
	tx     pgx.Tx
	tracer pg.QueryTracer
	slowUS int64
}

func (t txSession) Exec(ctx context.Context, sql string, args ...any) (CommandTag, error) {
	start := time.Now()
	ct, err := t.tx.Exec(ctx, sql, args...)
	emitQuery(ctx, t.tracer, t.slowUS, sql, args, start, err)
	return cmdTag{ct}, err
}

func (t txSession) Query(ctx context.Context, sql string, args ...any) (Rows, error) {
	start := time.Now()
	rs, err := t.tx.Query(ctx, sql, args...)
	emitQuery(ctx, t.tracer, t.slowUS, sql, args, start, err)
	if err != nil {
		return nil, err
	}
	return rowIter{r: rs}, nil
}

func (t txSession) QueryRow(ctx context.Context, sql string, args ...any) Row {
	start := time.Now()
	r := t.tx.QueryRow(ctx, sql, args...)
	return tracedRow{
		r: r,
		after: func(scanErr error) {
			emitQuery(ctx, t.tracer, t.slowUS, sql, args, start, scanErr)
		},
	}
}

// emitQuery sends one event to the tracer. A negative slowUS disables
// the slow mark entirely.
func emitQuery(ctx context.Context, tracer pg.QueryTracer, slowUS int64, sql string, args []any, start time.Time, err error) {
	if tracer == nil {
		return
	}
	elapsedUS := time.Since(start).Microseconds()
	tracer.OnQuery(ctx, pg.QueryEvent{
		SQL:       sql,
		Args:      args,
		ElapsedUS: elapsedUS,
		Err:       err,
		Slow:      slowUS >= 0 && elapsedUS >= slowUS,
	})
}

// shims from pgx types to the package's Row, Rows and CommandTag

type tracedRow struct {
	r     pgx.Row
	after func(error)
}

func (x tracedRow) Scan(dst ...any) error {
	err := x.r.Scan(dst...)
	if x.after != nil {
		x.after(err)
	}
	return err
}

type rowIter struct{ r pgx.Rows }

func (x rowIter) Next() bool            { return x.r.Next() }
func (x rowIter) Scan(dst ...any) error { return x.r.Scan(dst...) }
func (x rowIter) Err() error            { return x.r.Err() }
func (x rowIter) Close()                { x.r.Close() }
func (x rowIter) Columns() []string {
	f := x.r.FieldDescriptions()
	out := make([]string, len(f))
	for i := range f {
		out[i] = string(f[i].Name)
	}
	return out
}

type cmdTag struct{ t pgconn.CommandTag }

func (t cmdTag) String() string      { return t.t.String() }
func (t cmdTag) RowsAffected() int64 { return t.t.RowsAffected() }
