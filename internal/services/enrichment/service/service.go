// Package service implements the serialized ABV enrichment consumer: one
// message at a time through the guard ladder (kill switch, terminal status,
// monthly cap, single daily slot), then a paced provider lookup and the
// terminal row write
package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	perr "taplist/internal/platform/errors"
	"taplist/internal/platform/logger"
	"taplist/internal/platform/metrics"
	"taplist/internal/platform/queue"
	ptime "taplist/internal/platform/time"

	"taplist/internal/core/brewtext"
	"taplist/internal/services/analytics"
	beersdom "taplist/internal/services/beers/domain"
	enrichdom "taplist/internal/services/enrichment/domain"
	quotadom "taplist/internal/services/quota/domain"
)

// lookupConfidence is the default stamped on provider-sourced ABVs
const lookupConfidence = 0.7

// Looker is the search-backed LLM seam ABV questions go through
type Looker interface {
	LookupABV(ctx context.Context, name, brewer string) (string, error)
}

// BeerStore is the slice of the beer store the pipeline touches
type BeerStore interface {
	GetStatus(ctx context.Context, id string) (beersdom.EnrichmentStatus, error)
	UpdateEnrichment(
		ctx context.Context,
		id string,
		abv, confidence *float64,
		source *beersdom.EnrichmentSource,
		status beersdom.EnrichmentStatus,
	) error
}

// Config tunes the pipeline
type Config struct {
	// Enabled is the kill switch; disabled batches are acked without work
	Enabled bool
	// DailyLimit caps lookups per UTC day (default 500)
	DailyLimit int
	// MonthlyLimit caps lookups per calendar month (default 2000)
	MonthlyLimit int
	// Pacing is the pause between consecutive provider calls (default 2s)
	Pacing time.Duration
	// RateLimitDelay is the redelivery pause after a provider 429 (default 120s)
	RateLimitDelay time.Duration
	// CallTimeout is the per-call provider deadline (default 10s)
	CallTimeout time.Duration
	// Confidence is stamped on provider-sourced ABVs (default 0.7)
	Confidence float64
	// Emitter streams pipeline events; nil discards them
	Emitter analytics.Emitter
}

// errBackoff aborts the rest of a lease once the provider rate-limits
var errBackoff = errors.New("enrichment: provider rate limited")

// Svc consumes enrichment messages one at a time
type Svc struct {
	store BeerStore
	quota quotadom.Port
	look  Looker
	emit  analytics.Emitter
	cfg   Config

	// injected for tests
	now   func() time.Time
	sleep func(context.Context, time.Duration) error
}

// New constructs the service
func New(store BeerStore, quota quotadom.Port, look Looker, cfg Config) *Svc {
	switch {
	case store == nil:
		panic("enrichment: nil store")
	case quota == nil:
		panic("enrichment: nil quota")
	case look == nil:
		panic("enrichment: nil looker")
	}
	if cfg.DailyLimit <= 0 {
		cfg.DailyLimit = 500
	}
	if cfg.MonthlyLimit <= 0 {
		cfg.MonthlyLimit = 2000
	}
	if cfg.Pacing <= 0 {
		cfg.Pacing = 2 * time.Second
	}
	if cfg.RateLimitDelay <= 0 {
		cfg.RateLimitDelay = 120 * time.Second
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 10 * time.Second
	}
	if cfg.Confidence <= 0 || cfg.Confidence > 1 {
		cfg.Confidence = lookupConfidence
	}
	emit := cfg.Emitter
	if emit == nil {
		emit = analytics.Noop{}
	}
	return &Svc{store: store, quota: quota, look: look, emit: emit, cfg: cfg, now: time.Now, sleep: ptime.Sleep}
}

// HandleBatch walks one leased batch strictly in order. The topic is
// consumed by a single runner, so the pacing pause between provider calls
// is the only throttle the provider sees. A 429 settles the rest of the
// lease with the same backoff delay so nothing else hits the provider
// inside the quiet window
func (s *Svc) HandleBatch(ctx context.Context, batch []*queue.Delivery) error {
	if !s.cfg.Enabled {
		for _, d := range batch {
			metrics.EnrichmentOutcomes.WithLabelValues("skipped").Inc()
			d.Ack()
		}
		if len(batch) > 0 {
			logger.C(ctx).Info().Int("messages", len(batch)).Msg("enrichment disabled, dropping batch")
		}
		return nil
	}

	paced := false
	for i, d := range batch {
		var msg enrichdom.EnrichmentMessage
		if err := json.Unmarshal(d.Body, &msg); err != nil || msg.BeerID == "" {
			logger.C(ctx).Warn().Err(err).
				Str("message_id", d.MessageID.String()).
				Msg("malformed enrichment message")
			metrics.EnrichmentOutcomes.WithLabelValues("retry").Inc()
			d.Retry()
			continue
		}

		err := s.handleOne(ctx, d, msg, &paced)
		if errors.Is(err, errBackoff) {
			for _, rest := range batch[i+1:] {
				if !rest.Decided() {
					rest.RetryWithDelay(s.cfg.RateLimitDelay)
				}
			}
			return nil
		}
		if err != nil {
			// cancelled mid-lease; undecided messages follow the batch verdict
			return err
		}
	}
	return nil
}

// handleOne takes one message through the guards and, when admitted, the
// provider. Every path settles the delivery except a cancelled pacing sleep
func (s *Svc) handleOne(ctx context.Context, d *queue.Delivery, msg enrichdom.EnrichmentMessage, paced *bool) error {
	status, err := s.store.GetStatus(ctx, msg.BeerID)
	if err != nil {
		if perr.IsCode(err, perr.ErrorCodeNotFound) {
			// the beer left the taplist since the message was queued
			s.skip(ctx, d, msg.BeerID, "beer gone")
			return nil
		}
		logger.C(ctx).Warn().Err(err).Str("beer_id", msg.BeerID).Msg("enrichment status read failed")
		metrics.EnrichmentOutcomes.WithLabelValues("retry").Inc()
		d.Retry()
		return nil
	}
	if status.Terminal() {
		s.skip(ctx, d, msg.BeerID, "already settled")
		return nil
	}

	// the monthly cap is a read, never a reservation
	monthly, err := s.quota.MonthlyUsed(ctx, quotadom.ScopeEnrichment)
	if err != nil {
		logger.C(ctx).Warn().Err(err).Msg("monthly quota read failed")
		metrics.EnrichmentOutcomes.WithLabelValues("retry").Inc()
		d.Retry()
		return nil
	}
	if monthly >= s.cfg.MonthlyLimit {
		s.skip(ctx, d, msg.BeerID, "monthly limit reached")
		return nil
	}

	res, err := s.quota.ReserveOne(ctx, quotadom.ScopeEnrichment, s.cfg.DailyLimit)
	if err != nil {
		logger.C(ctx).Warn().Err(err).Msg("daily slot reservation failed")
		metrics.EnrichmentOutcomes.WithLabelValues("retry").Inc()
		d.Retry()
		return nil
	}
	if !res.Reserved {
		s.skip(ctx, d, msg.BeerID, "daily limit reached")
		return nil
	}

	// the slot stays consumed from here on even when the lookup fails:
	// the counter protects cost, not correctness
	if *paced {
		if err := s.sleep(ctx, s.cfg.Pacing); err != nil {
			d.Retry()
			return err
		}
	}
	*paced = true

	return s.lookup(ctx, d, msg)
}

// lookup runs the provider call and lands the terminal write. The deadline
// returns control to the loop; the provider finishes its side regardless
func (s *Svc) lookup(ctx context.Context, d *queue.Delivery, msg enrichdom.EnrichmentMessage) error {
	callCtx, cancel := context.WithTimeout(ctx, s.cfg.CallTimeout)
	defer cancel()

	start := s.now()
	answer, err := s.look.LookupABV(callCtx, msg.BeerName, msg.Brewer)
	latency := s.now().Sub(start)
	metrics.LookupLatency.Observe(latency.Seconds())

	if err != nil {
		if perr.IsCode(err, perr.ErrorCodeTooManyRequests) {
			logger.C(ctx).Warn().
				Str("beer_id", msg.BeerID).
				Dur("delay", s.cfg.RateLimitDelay).
				Msg("provider rate limited, backing off")
			metrics.EnrichmentOutcomes.WithLabelValues("retry").Inc()
			d.RetryWithDelay(s.cfg.RateLimitDelay)
			return errBackoff
		}
		logger.C(ctx).Warn().Err(err).
			Str("beer_id", msg.BeerID).
			Int64("latency_ms", latency.Milliseconds()).
			Msg("abv lookup failed")
		metrics.EnrichmentOutcomes.WithLabelValues("retry").Inc()
		d.Retry()
		return nil
	}

	abv, ok := brewtext.ParseABVAnswer(answer)
	if !ok {
		// "unknown" or out-of-range answers settle the beer as not_found
		if werr := s.store.UpdateEnrichment(ctx, msg.BeerID, nil, nil, nil, beersdom.StatusNotFound); werr != nil {
			logger.C(ctx).Warn().Err(werr).Str("beer_id", msg.BeerID).Msg("not_found write failed")
			metrics.EnrichmentOutcomes.WithLabelValues("retry").Inc()
			d.Retry()
			return nil
		}
		metrics.EnrichmentOutcomes.WithLabelValues("not_found").Inc()
		s.emit.Emit(ctx, analytics.Event{
			Event:     analytics.EventEnrichmentProcessed,
			BeerID:    msg.BeerID,
			Outcome:   "not_found",
			Source:    string(beersdom.SourcePerplexity),
			LatencyMs: latency.Milliseconds(),
		})
		logger.C(ctx).Info().
			Str("beer_id", msg.BeerID).
			Str("answer", answer).
			Msg("abv not found")
		d.Ack()
		return nil
	}

	conf := s.cfg.Confidence
	src := beersdom.SourcePerplexity
	if werr := s.store.UpdateEnrichment(ctx, msg.BeerID, &abv, &conf, &src, beersdom.StatusEnriched); werr != nil {
		logger.C(ctx).Warn().Err(werr).Str("beer_id", msg.BeerID).Msg("enrichment write failed")
		metrics.EnrichmentOutcomes.WithLabelValues("retry").Inc()
		d.Retry()
		return nil
	}
	metrics.EnrichmentOutcomes.WithLabelValues("enriched").Inc()
	s.emit.Emit(ctx, analytics.Event{
		Event:     analytics.EventEnrichmentProcessed,
		BeerID:    msg.BeerID,
		Outcome:   "enriched",
		Source:    string(beersdom.SourcePerplexity),
		LatencyMs: latency.Milliseconds(),
	})
	logger.C(ctx).Info().
		Str("beer_id", msg.BeerID).
		Float64("abv", abv).
		Int64("latency_ms", latency.Milliseconds()).
		Msg("beer enriched")
	d.Ack()
	return nil
}

// skip acks a message the pipeline deliberately leaves alone
func (s *Svc) skip(ctx context.Context, d *queue.Delivery, beerID, reason string) {
	metrics.EnrichmentOutcomes.WithLabelValues("skipped").Inc()
	s.emit.Emit(ctx, analytics.Event{
		Event:   analytics.EventEnrichmentProcessed,
		BeerID:  beerID,
		Outcome: "skipped",
	})
	logger.C(ctx).Info().
		Str("beer_id", beerID).
		Str("reason", reason).
		Msg("enrichment skipped")
	d.Ack()
}
