// Package time contains time related helpers
//
// Pipeline and admission arithmetic runs on epoch milliseconds; quota
// counters key on UTC calendar dates. The converters here are the single
// place those conventions live
package time

import (
	"context"
	"time"
)

// Ptr returns a pointer to t or nil if t is zero
func Ptr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

// NowMs returns the current time as epoch milliseconds
func NowMs() int64 { return ToMs(time.Now()) }

// ToMs converts t to epoch milliseconds
func ToMs(t time.Time) int64 { return t.UnixMilli() }

// FromMs converts epoch milliseconds to a UTC time.Time
func FromMs(ms int64) time.Time { return time.UnixMilli(ms).UTC() }

// MinuteBucket returns the fixed-window bucket for an epoch-ms instant
func MinuteBucket(ms int64) int64 { return ms / 60_000 }

// BucketResetMs returns the first instant after bucket, in epoch milliseconds.
// This is the reset_at admission hands back to clients
func BucketResetMs(bucket int64) int64 { return (bucket + 1) * 60_000 }

// UTCDate formats t as the quota counter key YYYY-MM-DD in UTC
func UTCDate(t time.Time) string { return t.UTC().Format("2006-01-02") }

// MonthRange returns the first and last calendar day of t's UTC month as
// YYYY-MM-DD strings. The last day comes from normalizing day zero of the
// next month, so February and 30-day months are exact
func MonthRange(t time.Time) (first, last string) {
	u := t.UTC()
	f := time.Date(u.Year(), u.Month(), 1, 0, 0, 0, 0, time.UTC)
	l := time.Date(u.Year(), u.Month()+1, 0, 0, 0, 0, 0, time.UTC)
	return UTCDate(f), UTCDate(l)
}

// DaysAgo returns the UTC date string n days before t
func DaysAgo(t time.Time, n int) string { return UTCDate(t.UTC().AddDate(0, 0, -n)) }

// Sleep pauses for d or until ctx is done, whichever comes first.
// Pipelines use it for pacing and retry backoff so shutdown never waits
// out a timer
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
