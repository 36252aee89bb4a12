package store

import (
	"context"
	"errors"
	"strings"
	"testing"
)

// stubSQL satisfies TxRunner but not Pinger
type stubSQL struct{}

func (s *stubSQL) Tx(ctx context.Context, fn func(q RowQuerier) error) error { return nil }
func (s *stubSQL) Exec(ctx context.Context, sql string, args ...any) (CommandTag, error) {
	return nil, nil
}

func (s *stubSQL) Query(ctx context.Context, sql string, args ...any) (Rows, error) {
	return nil, nil
}

func (s *stubSQL) QueryRow(ctx context.Context, sql string, args ...any) Row {
	return nil
}

// pingSQL adds Pinger on top of stubSQL
type pingSQL struct {
	stubSQL
	err error
}

func (p *pingSQL) Ping(context.Context) error { return p.err }

// pingWarehouse satisfies Clickhouse and Pinger
type pingWarehouse struct{ err error }

func (w *pingWarehouse) Insert(ctx context.Context, table string, data any) error { return nil }
func (w *pingWarehouse) Query(ctx context.Context, sql string, args ...any) (Rows, error) {
	return nil, nil
}
func (w *pingWarehouse) Close() error               { return nil }
func (w *pingWarehouse) Ping(context.Context) error { return w.err }

func TestGuard_NilStore(t *testing.T) {
	t.Parallel()

	var s *Store
	if err := s.Guard(context.Background()); err == nil {
		t.Fatal("nil store must refuse the probe")
	}
}

func TestGuard_NoBackends(t *testing.T) {
	t.Parallel()

	s := &Store{}
	if err := s.Guard(context.Background()); err != nil {
		t.Fatalf("empty store guard: %v", err)
	}
}

func TestGuard_SkipsNonPinger(t *testing.T) {
	t.Parallel()

	s := &Store{PG: &stubSQL{}}
	if err := s.Guard(context.Background()); err != nil {
		t.Fatalf("non-pinger seam must be skipped, got %v", err)
	}
}

func TestGuard_HealthyPG(t *testing.T) {
	t.Parallel()

	s := &Store{PG: &pingSQL{}}
	if err := s.Guard(context.Background()); err != nil {
		t.Fatalf("healthy pg guard: %v", err)
	}
}

func TestGuard_PGFailureKeepsCause(t *testing.T) {
	t.Parallel()

	cause := errors.New("pool exhausted")
	s := &Store{PG: &pingSQL{err: cause}}

	err := s.Guard(context.Background())
	if err == nil {
		t.Fatal("want guard failure when pg ping fails")
	}
	if !errors.Is(err, cause) {
		t.Fatalf("guard error lost the cause: %v", err)
	}
	if !strings.Contains(err.Error(), "pg: ") {
		t.Fatalf("guard error lacks the pg prefix: %q", err.Error())
	}
}

func TestGuard_CHFailureKeepsCause(t *testing.T) {
	t.Parallel()

	cause := errors.New("connection refused")
	s := &Store{CH: &pingWarehouse{err: cause}}

	err := s.Guard(context.Background())
	if err == nil {
		t.Fatal("want guard failure when ch ping fails")
	}
	if !errors.Is(err, cause) {
		t.Fatalf("guard error lost the cause: %v", err)
	}
	if !strings.Contains(err.Error(), "ch: ") {
		t.Fatalf("guard error lacks the ch prefix: %q", err.Error())
	}
}

func TestGuard_JoinsBothFailures(t *testing.T) {
	t.Parallel()

	pgCause := errors.New("pg down")
	chCause := errors.New("ch down")
	s := &Store{
		PG: &pingSQL{err: pgCause},
		CH: &pingWarehouse{err: chCause},
	}

	err := s.Guard(context.Background())
	if !errors.Is(err, pgCause) || !errors.Is(err, chCause) {
		t.Fatalf("guard must report both backends, got %v", err)
	}
}

// closableSQL records Close and satisfies TxRunner through stubSQL
type closableSQL struct {
	stubSQL
	closed bool
	err    error
}

func (c *closableSQL) Close() error { c.closed = true; return c.err }

// closableWarehouse records Close for the ch seam
type closableWarehouse struct {
	pingWarehouse
	closed bool
	err    error
}

func (c *closableWarehouse) Close() error { c.closed = true; return c.err }

func TestClose_ClosesEveryBackend(t *testing.T) {
	t.Parallel()

	pgSeam := &closableSQL{}
	chSeam := &closableWarehouse{}
	s := &Store{PG: pgSeam, CH: chSeam}

	if err := s.Close(context.Background()); err != nil {
		t.Fatalf("close: %v", err)
	}
	if !pgSeam.closed || !chSeam.closed {
		t.Fatalf("close skipped a backend: pg=%v ch=%v", pgSeam.closed, chSeam.closed)
	}
}

func TestClose_JoinsFailures(t *testing.T) {
	t.Parallel()

	pgCause := errors.New("pg close failed")
	chCause := errors.New("ch close failed")
	s := &Store{
		PG: &closableSQL{err: pgCause},
		CH: &closableWarehouse{err: chCause},
	}

	err := s.Close(context.Background())
	if !errors.Is(err, pgCause) || !errors.Is(err, chCause) {
		t.Fatalf("close must report both failures, got %v", err)
	}
}

func TestClose_EmptyStore(t *testing.T) {
	t.Parallel()

	s := &Store{}
	if err := s.Close(context.Background()); err != nil {
		t.Fatalf("empty store close: %v", err)
	}
}
