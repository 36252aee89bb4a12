// Package domain defines quota scopes, reservation results, and ports
package domain

import "context"

// Scope selects which daily counter a reservation draws from
type Scope string

// Quota scopes
const (
	ScopeEnrichment Scope = "enrichment"
	ScopeCleanup    Scope = "cleanup"
)

// OK reports whether the scope is a known value
func (s Scope) OK() bool { return s == ScopeEnrichment || s == ScopeCleanup }

// BatchReservation is the outcome of an all-or-nothing style batch grab.
// Reserved is how many slots were actually granted (0 when the batch would
// cross the daily limit); Remaining is what the day still has after the grab
type BatchReservation struct {
	Reserved  int
	Remaining int
}

// SlotReservation is the outcome of a single-slot grab
type SlotReservation struct {
	NewCount int
	Reserved bool
}

// Snapshot is a read-only view of a scope's usage
type Snapshot struct {
	Date  string
	Count int
}

// Port is the quota seam used by the pipelines and the admin orchestrator
type Port interface {
	ReserveBatch(ctx context.Context, scope Scope, requested, dailyLimit int) (BatchReservation, error)
	ReserveOne(ctx context.Context, scope Scope, dailyLimit int) (SlotReservation, error)
	Snapshot(ctx context.Context, scope Scope) (Snapshot, error)
	MonthlyUsed(ctx context.Context, scope Scope) (int, error)
}
