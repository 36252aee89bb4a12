// Package service implements the enrichment trigger: a read-only quota
// inspection followed by one bulk enqueue of abv-less beers
package service

import (
	"context"

	perr "taplist/internal/platform/errors"
	"taplist/internal/platform/logger"
	"taplist/internal/platform/queue"

	dom "taplist/internal/services/admin/domain"
	beersdom "taplist/internal/services/beers/domain"
	enrichdom "taplist/internal/services/enrichment/domain"
	quotadom "taplist/internal/services/quota/domain"
)

// maxTriggerBatch caps one run regardless of the requested limit
const maxTriggerBatch = 100

// Enqueuer is the queue seam the trigger fans out through
type Enqueuer interface {
	SendBatch(ctx context.Context, topic string, bodies []any, opts ...queue.SendOption) error
}

// Config mirrors the consumer's kill switch and caps
type Config struct {
	Enabled      bool
	DailyLimit   int
	MonthlyLimit int
}

// Svc orchestrates enrichment triggers
type Svc struct {
	candidates beersdom.CandidatePort
	quota      quotadom.Port
	enqueue    Enqueuer
	cfg        Config
}

// New constructs the service
func New(candidates beersdom.CandidatePort, quota quotadom.Port, enq Enqueuer, cfg Config) *Svc {
	switch {
	case candidates == nil:
		panic("admin: nil candidate port")
	case quota == nil:
		panic("admin: nil quota")
	case enq == nil:
		panic("admin: nil enqueuer")
	}
	if cfg.DailyLimit <= 0 {
		cfg.DailyLimit = 500
	}
	if cfg.MonthlyLimit <= 0 {
		cfg.MonthlyLimit = 2000
	}
	return &Svc{candidates: candidates, quota: quota, enqueue: enq, cfg: cfg}
}

// Trigger inspects quota and queues up to the allowed number of abv-less
// beers. It never reserves: the consumer is the sole reservation authority,
// so a queued beer that loses the race later is skipped there instead
func (s *Svc) Trigger(ctx context.Context, p dom.TriggerParams) (dom.TriggerResult, error) {
	if !s.cfg.Enabled {
		return dom.TriggerResult{SkipReason: dom.SkipKillSwitch}, nil
	}

	snap, err := s.quota.Snapshot(ctx, quotadom.ScopeEnrichment)
	if err != nil {
		return dom.TriggerResult{}, perr.Wrapf(err, perr.CodeOf(err), "trigger: daily snapshot")
	}
	monthly, err := s.quota.MonthlyUsed(ctx, quotadom.ScopeEnrichment)
	if err != nil {
		return dom.TriggerResult{}, perr.Wrapf(err, perr.CodeOf(err), "trigger: monthly usage")
	}

	res := dom.TriggerResult{
		DailyUsed:        snap.Count,
		DailyRemaining:   max(0, s.cfg.DailyLimit-snap.Count),
		MonthlyUsed:      monthly,
		MonthlyRemaining: max(0, s.cfg.MonthlyLimit-monthly),
	}
	if res.MonthlyRemaining <= 0 {
		res.SkipReason = dom.SkipMonthlyLimit
		return res, nil
	}
	if res.DailyRemaining <= 0 {
		res.SkipReason = dom.SkipDailyLimit
		return res, nil
	}

	requested := p.Limit
	if requested <= 0 {
		requested = maxTriggerBatch
	}
	effective := min(requested, res.DailyRemaining, res.MonthlyRemaining, maxTriggerBatch)

	cands, err := s.candidates.SelectMissingABV(ctx, effective, p.ExcludeFailures)
	if err != nil {
		return dom.TriggerResult{}, perr.Wrapf(err, perr.CodeOf(err), "trigger: select candidates")
	}
	if len(cands) == 0 {
		res.SkipReason = dom.SkipNoEligible
		return res, nil
	}

	bodies := make([]any, len(cands))
	for i, c := range cands {
		bodies[i] = enrichdom.EnrichmentMessage{BeerID: c.ID, BeerName: c.Name, Brewer: c.Brewer}
	}
	if err := s.enqueue.SendBatch(ctx, enrichdom.Topic, bodies); err != nil {
		return dom.TriggerResult{}, perr.Wrapf(err, perr.CodeOf(err), "trigger: enqueue")
	}

	res.BeersQueued = len(cands)
	logger.C(ctx).Info().
		Int("queued", res.BeersQueued).
		Int("daily_remaining", res.DailyRemaining).
		Int("monthly_remaining", res.MonthlyRemaining).
		Bool("exclude_failures", p.ExcludeFailures).
		Msg("enrichment trigger queued beers")
	return res, nil
}
