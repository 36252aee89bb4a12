// Package domain defines the enrichment trigger contract
package domain

import "context"

// SkipReason explains why a trigger run queued nothing
type SkipReason string

// Trigger skip reasons
const (
	SkipKillSwitch   SkipReason = "kill_switch"
	SkipMonthlyLimit SkipReason = "monthly_limit"
	SkipDailyLimit   SkipReason = "daily_limit"
	SkipNoEligible   SkipReason = "no_eligible_beers"
)

// TriggerParams tunes one trigger run
type TriggerParams struct {
	// Limit caps how many beers to queue; 0 takes the default batch (100)
	Limit int
	// ExcludeFailures leaves out beers with a pending dead-letter row
	ExcludeFailures bool
}

// TriggerResult reports what one trigger run decided
type TriggerResult struct {
	SkipReason       SkipReason `json:"skip_reason,omitempty"`
	BeersQueued      int        `json:"beers_queued"`
	DailyUsed        int        `json:"daily_used"`
	DailyRemaining   int        `json:"daily_remaining"`
	MonthlyUsed      int        `json:"monthly_used"`
	MonthlyRemaining int        `json:"monthly_remaining"`
}

// Port is the trigger seam the admin api fronts
type Port interface {
	Trigger(ctx context.Context, p TriggerParams) (TriggerResult, error)
}
