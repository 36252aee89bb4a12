// Package service implements the fixed-window admission check
package service

import (
	"context"
	"math/rand"
	"time"

	"taplist/internal/modkit/repokit"
	"taplist/internal/platform/logger"
	"taplist/internal/platform/metrics"
	ptime "taplist/internal/platform/time"

	dom "taplist/internal/services/admission/domain"
	arepo "taplist/internal/services/admission/repo"
)

// Config controls the admission window
type Config struct {
	// Limit is requests per minute per key
	Limit int
	// GCProbability samples the background purge per check; defaults to 0.01
	GCProbability float64
	// GCHorizonBuckets keeps this many minutes of history; defaults to 60
	GCHorizonBuckets int64
}

// Svc implements domain.Port over the Postgres counter table
type Svc struct {
	repo arepo.Repo
	cfg  Config

	// injected for tests
	now  func() time.Time
	rand func() float64
}

// New constructs the service
func New(db repokit.TxRunner, cfg Config) *Svc {
	if db == nil {
		panic("admission: nil db")
	}
	if cfg.Limit <= 0 {
		cfg.Limit = 60
	}
	if cfg.GCProbability <= 0 {
		cfg.GCProbability = 0.01
	}
	if cfg.GCHorizonBuckets <= 0 {
		cfg.GCHorizonBuckets = 60
	}
	return &Svc{
		repo: arepo.NewPG().Bind(db),
		cfg:  cfg,
		now:  time.Now,
		rand: rand.Float64,
	}
}

// Check runs one fixed-window admission decision. Store failures fail open:
// the request is admitted with a full window so availability never hinges on
// the counter table
func (s *Svc) Check(ctx context.Context, key string) dom.Decision {
	nowMs := ptime.ToMs(s.now())
	bucket := ptime.MinuteBucket(nowMs)
	resetAt := ptime.BucketResetMs(bucket)

	count, err := s.repo.Increment(ctx, key, bucket)
	if err != nil {
		logger.C(ctx).Warn().Err(err).Str("key", key).Msg("admission check failed open")
		metrics.AdmissionDecisions.WithLabelValues("fail_open").Inc()
		return dom.Decision{Allowed: true, Limit: s.cfg.Limit, Remaining: s.cfg.Limit, ResetAt: resetAt}
	}

	// sampled GC keeps the table bounded without a dedicated sweeper
	if s.rand() < s.cfg.GCProbability {
		if _, gcErr := s.repo.PurgeBefore(ctx, bucket-s.cfg.GCHorizonBuckets); gcErr != nil {
			logger.C(ctx).Warn().Err(gcErr).Msg("admission gc failed")
		}
	}

	allowed := count <= s.cfg.Limit
	remaining := s.cfg.Limit - count
	if remaining < 0 {
		remaining = 0
	}
	if allowed {
		metrics.AdmissionDecisions.WithLabelValues("allowed").Inc()
	} else {
		metrics.AdmissionDecisions.WithLabelValues("denied").Inc()
	}
	return dom.Decision{Allowed: allowed, Limit: s.cfg.Limit, Remaining: remaining, ResetAt: resetAt}
}

// PurgeBefore removes counters older than the horizon bucket. The janitor
// calls this on its sweep schedule
func (s *Svc) PurgeBefore(ctx context.Context, olderThanBucket int64) (int64, error) {
	return s.repo.PurgeBefore(ctx, olderThanBucket)
}
