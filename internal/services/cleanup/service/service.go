// Package service implements the description cleanup pipeline: quota-split
// batches, bounded-parallel LLM cleaning behind the latency breaker,
// validation, one atomic row batch, and enrichment fan-out for beers whose
// ABV is still unknown
package service

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	perr "taplist/internal/platform/errors"
	"taplist/internal/platform/logger"
	"taplist/internal/platform/metrics"
	"taplist/internal/platform/queue"
	ptime "taplist/internal/platform/time"

	"taplist/internal/core/brewtext"
	"taplist/internal/services/analytics"
	beersdom "taplist/internal/services/beers/domain"
	"taplist/internal/services/cleanup/breaker"
	cleandom "taplist/internal/services/cleanup/domain"
	enrichdom "taplist/internal/services/enrichment/domain"
	quotadom "taplist/internal/services/quota/domain"
)

// Confidence assigned to a description-extracted ABV, by arm
const (
	descriptionConfidence = 0.9
	fallbackConfidence    = 0.8
)

// Cleaner is the LLM seam the pipeline cleans descriptions through
type Cleaner interface {
	Clean(ctx context.Context, description string) (string, error)
}

// Enqueuer fans enrichment messages out of the pipeline
type Enqueuer interface {
	SendBatch(ctx context.Context, topic string, bodies []any, opts ...queue.SendOption) error
}

// Config tunes the pipeline
type Config struct {
	// DailyLimit caps cleanup slots per UTC day (default 1000)
	DailyLimit int
	// Concurrency bounds parallel LLM calls (default 10)
	Concurrency int
	// CallTimeout is the per-call LLM deadline (default 10s)
	CallTimeout time.Duration
	// DBAttempts bounds the atomic batch write (default 3)
	DBAttempts int
	// DBBackoff is the first retry pause, doubling per attempt (default 100ms)
	DBBackoff time.Duration
	// Emitter streams pipeline events; nil discards them
	Emitter analytics.Emitter
}

// Svc consumes cleanup batches
type Svc struct {
	store   beersdom.CleanupPort
	quota   quotadom.Port
	cleaner Cleaner
	brk     *breaker.Breaker
	enqueue Enqueuer
	emit    analytics.Emitter
	cfg     Config

	// injected for tests
	now func() time.Time
}

// New constructs the service
func New(
	store beersdom.CleanupPort,
	quota quotadom.Port,
	cleaner Cleaner,
	brk *breaker.Breaker,
	enq Enqueuer,
	cfg Config,
) *Svc {
	switch {
	case store == nil:
		panic("cleanup: nil store")
	case quota == nil:
		panic("cleanup: nil quota")
	case cleaner == nil:
		panic("cleanup: nil cleaner")
	case brk == nil:
		panic("cleanup: nil breaker")
	case enq == nil:
		panic("cleanup: nil enqueuer")
	}
	if cfg.DailyLimit <= 0 {
		cfg.DailyLimit = 1000
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 10
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 10 * time.Second
	}
	if cfg.DBAttempts <= 0 {
		cfg.DBAttempts = 3
	}
	if cfg.DBBackoff <= 0 {
		cfg.DBBackoff = 100 * time.Millisecond
	}
	emit := cfg.Emitter
	if emit == nil {
		emit = analytics.Noop{}
	}
	return &Svc{store: store, quota: quota, cleaner: cleaner, brk: brk, enqueue: enq, emit: emit, cfg: cfg, now: time.Now}
}

type workItem struct {
	delivery *queue.Delivery
	msg      cleandom.CleanupMessage
}

// HandleBatch processes one leased batch. The daily quota decides how much
// of the batch gets the model; the rest goes through the regex fallback so
// every admitted message still lands a cleaned description today
func (s *Svc) HandleBatch(ctx context.Context, batch []*queue.Delivery) error {
	items := make([]workItem, 0, len(batch))
	for _, d := range batch {
		var msg cleandom.CleanupMessage
		if err := json.Unmarshal(d.Body, &msg); err != nil || msg.BeerID == "" {
			logger.C(ctx).Warn().Err(err).
				Str("message_id", d.MessageID.String()).
				Msg("malformed cleanup message")
			d.Retry()
			continue
		}
		items = append(items, workItem{delivery: d, msg: msg})
	}
	if len(items) == 0 {
		return nil
	}

	res, err := s.quota.ReserveBatch(ctx, quotadom.ScopeCleanup, len(items), s.cfg.DailyLimit)
	if err != nil {
		// no dispositions set: the runner retries the whole lease
		return perr.Wrapf(err, perr.CodeOf(err), "cleanup: quota reservation")
	}
	// cap at the batch length: the reservation count is another service's
	// arithmetic and must never push the split past the lease
	n := min(res.Reserved, len(items))
	toProcess, quotaExceeded := items[:n], items[n:]

	if len(quotaExceeded) > 0 {
		s.handleFallback(ctx, quotaExceeded, beersdom.CleanupQuotaFallback)
	}
	if len(toProcess) == 0 {
		return nil
	}

	results := s.runAI(ctx, toProcess)
	s.finishBatch(ctx, toProcess, results)
	return nil
}

// runAI fans the model calls out under the concurrency bound. Admission is
// precise: any finished call immediately frees a slot for the next message
func (s *Svc) runAI(ctx context.Context, items []workItem) []cleandom.AIResult {
	results := make([]cleandom.AIResult, len(items))
	sem := make(chan struct{}, max(1, s.cfg.Concurrency))
	var wg sync.WaitGroup
	for i, it := range items {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, it workItem) {
			defer wg.Done()
			defer func() { <-sem }()
			results[i] = s.cleanOne(ctx, it.msg, i, len(items))
		}(i, it)
	}
	wg.Wait()
	return results
}

// cleanOne runs one guarded model call. An open breaker short-circuits to
// the regex fallback; the deadline returns control without cancelling the
// provider-side call
func (s *Svc) cleanOne(ctx context.Context, msg cleandom.CleanupMessage, index, total int) cleandom.AIResult {
	if s.brk.IsOpen() {
		o := fallbackOutcome(msg.Description)
		return cleandom.AIResult{
			Kind:         cleandom.ResultFallback,
			Cleaned:      o.Cleaned,
			UsedOriginal: o.UsedOriginal,
			ExtractedABV: o.ExtractedABV,
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, s.cfg.CallTimeout)
	defer cancel()

	start := s.now()
	text, err := s.cleaner.Clean(callCtx, msg.Description)
	latency := s.now().Sub(start)

	s.brk.RecordLatency(latency.Milliseconds(), index, total, msg.BeerID, s.cfg.Concurrency)
	metrics.AILatency.Observe(latency.Seconds())

	if err != nil {
		return cleandom.AIResult{Kind: cleandom.ResultFailure, Err: err, LatencyMs: latency.Milliseconds()}
	}
	o := CleanDescriptionSafely(msg.Description, text)
	return cleandom.AIResult{
		Kind:         cleandom.ResultSuccess,
		Cleaned:      o.Cleaned,
		UsedOriginal: o.UsedOriginal,
		ExtractedABV: o.ExtractedABV,
		LatencyMs:    latency.Milliseconds(),
	}
}

// finishBatch categorizes results, lands the atomic row batch, fans out
// enrichment messages, and settles each delivery
func (s *Svc) finishBatch(ctx context.Context, items []workItem, results []cleandom.AIResult) {
	nowMs := ptime.ToMs(s.now())
	updates := make([]beersdom.CleanupUpdate, 0, len(items))
	updated := make([]workItem, 0, len(items))
	events := make([]analytics.Event, 0, len(items))
	var enrich []any

	for i, it := range items {
		r := results[i]
		switch r.Kind {
		case cleandom.ResultFailure:
			metrics.CleanupOutcomes.WithLabelValues("failure").Inc()
			logger.C(ctx).Warn().Err(r.Err).
				Str("beer_id", it.msg.BeerID).
				Int64("latency_ms", r.LatencyMs).
				Msg("cleanup call failed")
			it.delivery.Retry()

		case cleandom.ResultFallback:
			metrics.CleanupOutcomes.WithLabelValues("fallback").Inc()
			src := beersdom.CleanupBreakerFallback
			o := cleandom.CleanOutcome{Cleaned: r.Cleaned, UsedOriginal: r.UsedOriginal, ExtractedABV: r.ExtractedABV}
			updates = append(updates, buildUpdate(
				it.msg.BeerID, o, &src, fallbackConfidence, beersdom.SourceDescriptionFallback, nowMs,
			))
			events = append(events, analytics.Event{
				Event: analytics.EventCleanupProcessed, BeerID: it.msg.BeerID,
				Outcome: "fallback", Source: string(src), LatencyMs: r.LatencyMs,
			})
			if r.ExtractedABV == nil {
				enrich = append(enrich, enrichMessage(it.msg))
			}
			updated = append(updated, it)

		case cleandom.ResultSuccess:
			metrics.CleanupOutcomes.WithLabelValues("success").Inc()
			// a rejected rewrite keeps the original text and records no
			// cleanup source; an extracted ABV still counts either way
			var src *beersdom.CleanupSource
			if !r.UsedOriginal {
				v := beersdom.CleanupWorkersAI
				src = &v
			}
			o := cleandom.CleanOutcome{Cleaned: r.Cleaned, UsedOriginal: r.UsedOriginal, ExtractedABV: r.ExtractedABV}
			updates = append(updates, buildUpdate(
				it.msg.BeerID, o, src, descriptionConfidence, beersdom.SourceDescription, nowMs,
			))
			ev := analytics.Event{
				Event: analytics.EventCleanupProcessed, BeerID: it.msg.BeerID,
				Outcome: "success", LatencyMs: r.LatencyMs,
			}
			if src != nil {
				ev.Source = string(*src)
			}
			events = append(events, ev)
			if r.ExtractedABV == nil {
				enrich = append(enrich, enrichMessage(it.msg))
			}
			updated = append(updated, it)
		}
	}

	if len(updates) > 0 {
		if err := s.applyWithRetry(ctx, updates); err != nil {
			logger.C(ctx).Error().Err(err).
				Int("updates", len(updates)).
				Msg("cleanup batch write failed, retrying batch")
			for _, it := range items {
				it.delivery.Retry()
			}
			return
		}
	}
	// events describe landed rows only, so they follow the write
	for _, ev := range events {
		s.emit.Emit(ctx, ev)
	}
	s.sendEnrichment(ctx, enrich)
	for _, it := range updated {
		it.delivery.Ack()
	}
}

// handleFallback cleans the quota-exceeded tail with the regex pipeline
func (s *Svc) handleFallback(ctx context.Context, items []workItem, source beersdom.CleanupSource) {
	nowMs := ptime.ToMs(s.now())
	updates := make([]beersdom.CleanupUpdate, 0, len(items))
	var enrich []any
	for _, it := range items {
		metrics.CleanupOutcomes.WithLabelValues("fallback").Inc()
		src := source
		o := fallbackOutcome(it.msg.Description)
		updates = append(updates, buildUpdate(
			it.msg.BeerID, o, &src, fallbackConfidence, beersdom.SourceDescriptionFallback, nowMs,
		))
		if o.ExtractedABV == nil {
			enrich = append(enrich, enrichMessage(it.msg))
		}
	}

	if err := s.applyWithRetry(ctx, updates); err != nil {
		logger.C(ctx).Error().Err(err).
			Int("messages", len(items)).
			Str("source", string(source)).
			Msg("fallback batch write failed")
		for _, it := range items {
			it.delivery.Retry()
		}
		return
	}
	for _, it := range items {
		s.emit.Emit(ctx, analytics.Event{
			Event: analytics.EventCleanupProcessed, BeerID: it.msg.BeerID,
			Outcome: "fallback", Source: string(source),
		})
	}
	s.sendEnrichment(ctx, enrich)
	for _, it := range items {
		it.delivery.Ack()
	}
}

// applyWithRetry lands one atomic batch with bounded exponential backoff
func (s *Svc) applyWithRetry(ctx context.Context, updates []beersdom.CleanupUpdate) error {
	var err error
	for attempt := 0; attempt < s.cfg.DBAttempts; attempt++ {
		if attempt > 0 {
			if serr := ptime.Sleep(ctx, s.cfg.DBBackoff<<(attempt-1)); serr != nil {
				return serr
			}
		}
		if err = s.store.ApplyCleanupBatch(ctx, updates); err == nil {
			return nil
		}
	}
	return err
}

// sendEnrichment emits the collected lookups as one batch. Losing it is
// tolerable: the stale-row sweep re-selects abv-less beers
func (s *Svc) sendEnrichment(ctx context.Context, msgs []any) {
	if len(msgs) == 0 {
		return
	}
	if err := s.enqueue.SendBatch(ctx, enrichdom.Topic, msgs); err != nil {
		logger.C(ctx).Warn().Err(err).Int("messages", len(msgs)).Msg("enrichment enqueue failed")
	}
}

// fallbackOutcome is the regex-only cleanup: strip markup, normalize, and
// extract the ABV once from the original
func fallbackOutcome(original string) cleandom.CleanOutcome {
	out := cleandom.CleanOutcome{Cleaned: brewtext.CleanFallback(original)}
	if abv, ok := brewtext.ExtractABV(original); ok {
		v := abv
		out.ExtractedABV = &v
	}
	return out
}

func buildUpdate(
	beerID string,
	o cleandom.CleanOutcome,
	src *beersdom.CleanupSource,
	confidence float64,
	esrc beersdom.EnrichmentSource,
	nowMs int64,
) beersdom.CleanupUpdate {
	u := beersdom.CleanupUpdate{
		BeerID:        beerID,
		Cleaned:       o.Cleaned,
		CleanedAtMs:   nowMs,
		CleanupSource: src,
	}
	if o.ExtractedABV != nil {
		c := confidence
		es := esrc
		u.ABV = o.ExtractedABV
		u.Confidence = &c
		u.Source = &es
	}
	return u
}

func enrichMessage(msg cleandom.CleanupMessage) enrichdom.EnrichmentMessage {
	return enrichdom.EnrichmentMessage{BeerID: msg.BeerID, BeerName: msg.BeerName, Brewer: msg.Brewer}
}
