// Package service implements the beer store core: taplist ingest with
// cleanup fan-out, enrichment reads and writes, and candidate selection
package service

import (
	"context"
	"time"

	"taplist/internal/modkit/repokit"
	perr "taplist/internal/platform/errors"
	"taplist/internal/platform/logger"
	"taplist/internal/platform/metrics"
	"taplist/internal/platform/queue"
	pstrings "taplist/internal/platform/strings"
	ptime "taplist/internal/platform/time"

	"taplist/internal/core/brewtext"
	dom "taplist/internal/services/beers/domain"
	brepo "taplist/internal/services/beers/repo"
	cleandom "taplist/internal/services/cleanup/domain"
)

// Storage caps applied before rows reach the schema constraints
const (
	maxIDLen          = 50
	maxDescriptionLen = 2000
	maxBatchIDs       = 100
)

// Enqueuer is the queue seam used to fan cleanup work out of an ingest
type Enqueuer interface {
	SendBatch(ctx context.Context, topic string, bodies []any, opts ...queue.SendOption) error
}

// Svc implements the beer store ports
type Svc struct {
	repo    brepo.Repo
	enqueue Enqueuer

	// injected for tests
	now func() time.Time
}

// New constructs the service
func New(db repokit.TxRunner, enq Enqueuer) *Svc {
	if db == nil {
		panic("beers: nil db")
	}
	if enq == nil {
		panic("beers: nil enqueuer")
	}
	return &Svc{repo: brepo.NewPG().Bind(db), enqueue: enq, now: time.Now}
}

// Ingest merges one taplist snapshot. Records without a usable id or name
// are dropped, descriptions are hashed and scanned for an ABV, and each new
// or changed description fans out one cleanup message. The enqueue is best
// effort: a lost message only delays the cleaned text until the next snapshot
func (s *Svc) Ingest(ctx context.Context, brews []dom.IngestBeer) (dom.IngestResult, error) {
	rows := make([]dom.UpsertRow, 0, len(brews))
	seen := make(map[string]bool, len(brews))
	for _, b := range brews {
		// duplicate ids would make the single-statement upsert touch one
		// row twice; first occurrence wins
		if b.ID == "" || len(b.ID) > maxIDLen || b.Name == "" || seen[b.ID] {
			continue
		}
		seen[b.ID] = true

		row := dom.UpsertRow{ID: b.ID, Name: b.Name, Brewer: b.Brewer}
		if d := pstrings.ClampRunes(b.Description, maxDescriptionLen); d != "" {
			h := brewtext.HashDescription(d)
			row.Description = &d
			row.DescriptionHash = &h
			if abv, ok := brewtext.ExtractABV(d); ok {
				v := abv
				row.ParsedABV = &v
			}
		}
		rows = append(rows, row)
	}
	if len(rows) == 0 {
		return dom.IngestResult{}, nil
	}

	ids := make([]string, len(rows))
	for i, r := range rows {
		ids[i] = r.ID
	}
	existing, err := s.repo.ExistingHashes(ctx, ids)
	if err != nil {
		return dom.IngestResult{}, err
	}

	upserted, err := s.repo.UpsertBatch(ctx, rows, ptime.ToMs(s.now()))
	if err != nil {
		return dom.IngestResult{}, err
	}
	metrics.BeersUpserted.Add(float64(upserted))

	var msgs []any
	for _, r := range rows {
		if r.Description == nil {
			continue
		}
		if old, ok := existing[r.ID]; ok && old == *r.DescriptionHash {
			continue
		}
		msgs = append(msgs, cleandom.CleanupMessage{
			BeerID:      r.ID,
			BeerName:    r.Name,
			Brewer:      r.Brewer,
			Description: *r.Description,
		})
	}
	queued := 0
	if len(msgs) > 0 {
		if err := s.enqueue.SendBatch(ctx, cleandom.Topic, msgs); err != nil {
			logger.C(ctx).Warn().Err(err).Int("messages", len(msgs)).Msg("cleanup enqueue failed")
		} else {
			queued = len(msgs)
		}
	}
	return dom.IngestResult{Upserted: int(upserted), CleanupQueued: queued}, nil
}

// GetBeer loads one full row
func (s *Svc) GetBeer(ctx context.Context, id string) (dom.Beer, error) {
	if id == "" {
		return dom.Beer{}, perr.InvalidArgf("beer id is required")
	}
	return s.repo.GetBeer(ctx, id)
}

// GetStatus reads one beer's enrichment status
func (s *Svc) GetStatus(ctx context.Context, id string) (dom.EnrichmentStatus, error) {
	if id == "" {
		return "", perr.InvalidArgf("beer id is required")
	}
	return s.repo.GetStatus(ctx, id)
}

// GetEnrichments returns the enrichment projection for up to 100 ids.
// Unknown ids are absent from the map
func (s *Svc) GetEnrichments(ctx context.Context, ids []string) (map[string]dom.Enrichment, error) {
	if len(ids) == 0 {
		return map[string]dom.Enrichment{}, nil
	}
	if len(ids) > maxBatchIDs {
		return nil, perr.InvalidArgf("at most %d ids per batch", maxBatchIDs)
	}
	rows, err := s.repo.GetEnrichments(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make(map[string]dom.Enrichment, len(rows))
	for _, r := range rows {
		out[r.ID] = dom.Enrichment{
			ABV:        r.ABV,
			Confidence: r.Confidence,
			Source:     r.Source,
			IsVerified: r.ABV != nil && r.Status == dom.StatusEnriched,
		}
	}
	return out, nil
}

// UpdateEnrichment writes the ABV triple and status for one beer
func (s *Svc) UpdateEnrichment(
	ctx context.Context,
	id string,
	abv, confidence *float64,
	source *dom.EnrichmentSource,
	status dom.EnrichmentStatus,
) error {
	if id == "" {
		return perr.InvalidArgf("beer id is required")
	}
	if !status.OK() {
		return perr.InvalidArgf("unknown enrichment status %q", string(status))
	}
	if source != nil && !source.OK() {
		return perr.InvalidArgf("unknown enrichment source %q", string(*source))
	}
	if abv != nil && (*abv < 0 || *abv > brewtext.MaxABV) {
		return perr.InvalidArgf("abv %.2f out of range", *abv)
	}
	return s.repo.UpdateEnrichment(ctx, id, abv, confidence, source, status, ptime.ToMs(s.now()))
}

// ApplyCleanupBatch lands one cleanup batch atomically
func (s *Svc) ApplyCleanupBatch(ctx context.Context, updates []dom.CleanupUpdate) error {
	for _, u := range updates {
		if u.BeerID == "" {
			return perr.InvalidArgf("cleanup update without a beer id")
		}
		if u.CleanupSource != nil && !u.CleanupSource.OK() {
			return perr.InvalidArgf("unknown cleanup source %q", string(*u.CleanupSource))
		}
	}
	return s.repo.ApplyCleanupBatch(ctx, updates)
}

// SelectMissingABV picks the freshest beers still lacking an ABV
func (s *Svc) SelectMissingABV(
	ctx context.Context, limit int, excludePendingDlq bool,
) ([]dom.Candidate, error) {
	return s.repo.SelectMissingABV(ctx, limit, excludePendingDlq)
}

// CountBeers returns the total number of stored beers
func (s *Svc) CountBeers(ctx context.Context) (int64, error) {
	return s.repo.CountBeers(ctx)
}

// CountMissingABV returns how many beers still lack an ABV
func (s *Svc) CountMissingABV(ctx context.Context) (int64, error) {
	return s.repo.CountMissingABV(ctx)
}
