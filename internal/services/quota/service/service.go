// Package service implements atomic daily quota reservations
package service

import (
	"context"
	"time"

	"taplist/internal/modkit/repokit"
	perr "taplist/internal/platform/errors"
	"taplist/internal/platform/metrics"
	ptime "taplist/internal/platform/time"

	dom "taplist/internal/services/quota/domain"
	qrepo "taplist/internal/services/quota/repo"
)

// Svc implements domain.Port over the per-scope counter tables
type Svc struct {
	repo qrepo.Repo

	// injected for tests
	now func() time.Time
}

// New constructs the service
func New(db repokit.TxRunner) *Svc {
	if db == nil {
		panic("quota: nil db")
	}
	return &Svc{repo: qrepo.NewPG().Bind(db), now: time.Now}
}

// ReserveBatch grabs up to requested slots for today, all or nothing.
// The pre-read exists only to compute the delta for the return value; the
// CASE update alone decides whether the grab lands
func (s *Svc) ReserveBatch(
	ctx context.Context, scope dom.Scope, requested, dailyLimit int,
) (dom.BatchReservation, error) {
	if !scope.OK() {
		return dom.BatchReservation{}, perr.InvalidArgf("quota: unknown scope %q", string(scope))
	}
	if requested <= 0 {
		snap, err := s.Snapshot(ctx, scope)
		if err != nil {
			return dom.BatchReservation{}, err
		}
		return dom.BatchReservation{Reserved: 0, Remaining: max(0, dailyLimit-snap.Count)}, nil
	}

	nowMs := ptime.ToMs(s.now())
	date := ptime.UTCDate(s.now())

	if err := s.repo.EnsureRow(ctx, scope, date, nowMs); err != nil {
		return dom.BatchReservation{}, err
	}
	oldCount, err := s.repo.CurrentCount(ctx, scope, date)
	if err != nil {
		return dom.BatchReservation{}, err
	}
	newCount, err := s.repo.ReserveBatch(ctx, scope, date, requested, dailyLimit, nowMs)
	if err != nil {
		return dom.BatchReservation{}, err
	}

	reserved := newCount - oldCount
	if reserved < 0 {
		// a concurrent writer moved the counter between the read and the
		// update; the update's own arithmetic is still correct, so treat
		// the grab as missed
		reserved = 0
	}
	if reserved > requested {
		// the same race in the other direction: a concurrent reservation
		// landed between the read and the update and inflated the delta.
		// This call never grabs more than it asked for
		reserved = requested
	}
	if reserved > 0 {
		metrics.QuotaReservations.WithLabelValues(string(scope)).Add(float64(reserved))
	} else {
		metrics.QuotaRejections.WithLabelValues(string(scope)).Inc()
	}
	return dom.BatchReservation{
		Reserved:  reserved,
		Remaining: max(0, dailyLimit-newCount),
	}, nil
}

// ReserveOne grabs a single slot for today
func (s *Svc) ReserveOne(ctx context.Context, scope dom.Scope, dailyLimit int) (dom.SlotReservation, error) {
	if !scope.OK() {
		return dom.SlotReservation{}, perr.InvalidArgf("quota: unknown scope %q", string(scope))
	}
	nowMs := ptime.ToMs(s.now())
	date := ptime.UTCDate(s.now())

	if err := s.repo.EnsureRow(ctx, scope, date, nowMs); err != nil {
		return dom.SlotReservation{}, err
	}
	n, reserved, err := s.repo.ReserveOne(ctx, scope, date, dailyLimit, nowMs)
	if err != nil {
		return dom.SlotReservation{}, err
	}
	if !reserved {
		metrics.QuotaRejections.WithLabelValues(string(scope)).Inc()
		cur, err := s.repo.CurrentCount(ctx, scope, date)
		if err != nil {
			return dom.SlotReservation{}, err
		}
		return dom.SlotReservation{NewCount: cur, Reserved: false}, nil
	}
	metrics.QuotaReservations.WithLabelValues(string(scope)).Inc()
	return dom.SlotReservation{NewCount: n, Reserved: true}, nil
}

// Snapshot reads today's usage without reserving
func (s *Svc) Snapshot(ctx context.Context, scope dom.Scope) (dom.Snapshot, error) {
	if !scope.OK() {
		return dom.Snapshot{}, perr.InvalidArgf("quota: unknown scope %q", string(scope))
	}
	date := ptime.UTCDate(s.now())
	n, err := s.repo.CurrentCount(ctx, scope, date)
	if err != nil {
		return dom.Snapshot{}, err
	}
	return dom.Snapshot{Date: date, Count: n}, nil
}

// MonthlyUsed sums the current UTC month's usage, first through last day
func (s *Svc) MonthlyUsed(ctx context.Context, scope dom.Scope) (int, error) {
	if !scope.OK() {
		return 0, perr.InvalidArgf("quota: unknown scope %q", string(scope))
	}
	first, last := ptime.MonthRange(s.now())
	return s.repo.MonthlySum(ctx, scope, first, last)
}

// PurgeBefore removes counter rows older than the cutoff for both scopes.
// The janitor calls this with a retention horizon
func (s *Svc) PurgeBefore(ctx context.Context, cutoffDate string) (int64, error) {
	var total int64
	for _, scope := range []dom.Scope{dom.ScopeEnrichment, dom.ScopeCleanup} {
		n, err := s.repo.PurgeBefore(ctx, scope, cutoffDate)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}
