package service

import (
	"context"
	"errors"
	"testing"
	"time"

	dom "taplist/internal/services/quota/domain"
)

// fakeRepo drives the service with a scripted counter. drift is applied at
// the top of ReserveBatch, standing in for a concurrent reservation that
// commits between the count read and the update
type fakeRepo struct {
	count      int
	drift      int
	ensureErr  error
	reserveErr error
}

func (f *fakeRepo) EnsureRow(_ context.Context, _ dom.Scope, _ string, _ int64) error {
	return f.ensureErr
}

func (f *fakeRepo) CurrentCount(_ context.Context, _ dom.Scope, _ string) (int, error) {
	return f.count, nil
}

func (f *fakeRepo) ReserveBatch(_ context.Context, _ dom.Scope, _ string, requested, limit int, _ int64) (int, error) {
	if f.reserveErr != nil {
		return 0, f.reserveErr
	}
	f.count += f.drift
	f.drift = 0
	if f.count+requested <= limit {
		f.count += requested
	}
	return f.count, nil
}

func (f *fakeRepo) ReserveOne(_ context.Context, _ dom.Scope, _ string, limit int, _ int64) (int, bool, error) {
	if f.reserveErr != nil {
		return 0, false, f.reserveErr
	}
	if f.count < limit {
		f.count++
		return f.count, true, nil
	}
	return 0, false, nil
}

func (f *fakeRepo) MonthlySum(_ context.Context, _ dom.Scope, _, _ string) (int, error) {
	return f.count, nil
}

func (f *fakeRepo) PurgeBefore(_ context.Context, _ dom.Scope, _ string) (int64, error) {
	return 0, nil
}

func newTestSvc(repo *fakeRepo) *Svc {
	return &Svc{repo: repo, now: func() time.Time { return time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC) }}
}

// A batch under the limit reserves in full; one that would cross reserves nothing
func TestReserveBatchAllOrNothing(t *testing.T) {
	t.Parallel()

	repo := &fakeRepo{count: 490}
	s := newTestSvc(repo)

	res, err := s.ReserveBatch(context.Background(), dom.ScopeCleanup, 10, 500)
	if err != nil {
		t.Fatalf("ReserveBatch: %v", err)
	}
	if res.Reserved != 10 || res.Remaining != 0 {
		t.Fatalf("full batch: %+v", res)
	}

	repo.count = 495
	res, err = s.ReserveBatch(context.Background(), dom.ScopeCleanup, 10, 500)
	if err != nil {
		t.Fatalf("ReserveBatch: %v", err)
	}
	if res.Reserved != 0 {
		t.Fatalf("crossing batch must reserve nothing: %+v", res)
	}
	if res.Remaining != 5 {
		t.Fatalf("remaining = %d, want 5", res.Remaining)
	}
}

// A reservation committing between the count read and the update inflates
// the returned count, but the grant still caps at what this call asked for
func TestReserveBatchConcurrentWriterCapsGrant(t *testing.T) {
	t.Parallel()

	repo := &fakeRepo{count: 10, drift: 10}
	s := newTestSvc(repo)

	res, err := s.ReserveBatch(context.Background(), dom.ScopeCleanup, 5, 500)
	if err != nil {
		t.Fatalf("ReserveBatch: %v", err)
	}
	if res.Reserved != 5 {
		t.Fatalf("reserved = %d, want at most the requested 5", res.Reserved)
	}
	if res.Remaining != 475 {
		t.Fatalf("remaining = %d, want 475", res.Remaining)
	}
}

func TestReserveBatchUnknownScope(t *testing.T) {
	t.Parallel()

	s := newTestSvc(&fakeRepo{})
	if _, err := s.ReserveBatch(context.Background(), dom.Scope("weekly"), 1, 10); err == nil {
		t.Fatal("want error for unknown scope")
	}
}

// Zero requested slots is a pure remaining read
func TestReserveBatchZeroRequested(t *testing.T) {
	t.Parallel()

	s := newTestSvc(&fakeRepo{count: 3})
	res, err := s.ReserveBatch(context.Background(), dom.ScopeEnrichment, 0, 10)
	if err != nil {
		t.Fatalf("ReserveBatch: %v", err)
	}
	if res.Reserved != 0 || res.Remaining != 7 {
		t.Fatalf("zero request: %+v", res)
	}
}

// Slot reservations stop exactly at the limit and report the day's count
func TestReserveOneAtLimit(t *testing.T) {
	t.Parallel()

	repo := &fakeRepo{count: 499}
	s := newTestSvc(repo)

	res, err := s.ReserveOne(context.Background(), dom.ScopeEnrichment, 500)
	if err != nil {
		t.Fatalf("ReserveOne: %v", err)
	}
	if !res.Reserved || res.NewCount != 500 {
		t.Fatalf("last slot: %+v", res)
	}

	res, err = s.ReserveOne(context.Background(), dom.ScopeEnrichment, 500)
	if err != nil {
		t.Fatalf("ReserveOne: %v", err)
	}
	if res.Reserved {
		t.Fatalf("over-limit slot granted: %+v", res)
	}
	if res.NewCount != 500 {
		t.Fatalf("new count = %d, want the day's count", res.NewCount)
	}
}

func TestReserveBatchStoreError(t *testing.T) {
	t.Parallel()

	s := newTestSvc(&fakeRepo{ensureErr: errors.New("pg down")})
	if _, err := s.ReserveBatch(context.Background(), dom.ScopeCleanup, 5, 10); err == nil {
		t.Fatal("store errors must propagate, quota never fails open")
	}
}

func TestSnapshotReportsToday(t *testing.T) {
	t.Parallel()

	s := newTestSvc(&fakeRepo{count: 42})
	snap, err := s.Snapshot(context.Background(), dom.ScopeEnrichment)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if snap.Count != 42 || snap.Date != "2026-02-10" {
		t.Fatalf("snapshot: %+v", snap)
	}
}
