// Package repo provides the beer repository over Postgres.
// Every multi-row write is a single atomic statement; the upsert and the
// cleanup batch both carry CASE guards so rows enriched by the search
// provider never lose their ABV triple to later ingests
package repo

import (
	"context"
	"errors"

	stdsql "database/sql"

	"taplist/internal/modkit/repokit"
	perr "taplist/internal/platform/errors"
	"taplist/internal/platform/store"
	dom "taplist/internal/services/beers/domain"
)

// Repo is the beer persistence surface used by the service layer
type Repo interface {
	UpsertBatch(ctx context.Context, rows []dom.UpsertRow, nowMs int64) (int64, error)
	ExistingHashes(ctx context.Context, ids []string) (map[string]string, error)
	GetBeer(ctx context.Context, id string) (dom.Beer, error)
	GetStatus(ctx context.Context, id string) (dom.EnrichmentStatus, error)
	GetEnrichments(ctx context.Context, ids []string) ([]dom.BeerEnrichment, error)
	UpdateEnrichment(
		ctx context.Context,
		id string,
		abv, confidence *float64,
		source *dom.EnrichmentSource,
		status dom.EnrichmentStatus,
		nowMs int64,
	) error
	ApplyCleanupBatch(ctx context.Context, updates []dom.CleanupUpdate) error
	SelectMissingABV(ctx context.Context, limit int, excludePendingDlq bool) ([]dom.Candidate, error)
	CountBeers(ctx context.Context) (int64, error)
	CountMissingABV(ctx context.Context) (int64, error)
}

type (
	// PG is a Postgres implementation of the beer repo
	PG      struct{}
	queries struct{ q repokit.Queryer }
)

// NewPG returns a binder for the Postgres implementation
func NewPG() repokit.Binder[Repo] { return PG{} }

// Bind attaches a Queryer to the Postgres implementation
func (PG) Bind(q repokit.Queryer) Repo { return &queries{q: q} }

// UpsertBatch merges one taplist snapshot in a single statement.
// Rows carrying a description-parsed ABV land with confidence 0.9, source
// 'description', status 'enriched'. On conflict the guards apply: a row
// whose enrichment_source is 'perplexity' keeps its ABV triple and status
// untouched, and a changed description hash clears the stale cleaned text
func (r *queries) UpsertBatch(ctx context.Context, rows []dom.UpsertRow, nowMs int64) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	ids := make([]string, len(rows))
	names := make([]string, len(rows))
	brewers := make([]string, len(rows))
	descs := make([]*string, len(rows))
	hashes := make([]*string, len(rows))
	abvs := make([]*float64, len(rows))
	for i, row := range rows {
		ids[i] = row.ID
		names[i] = row.Name
		brewers[i] = row.Brewer
		descs[i] = row.Description
		hashes[i] = row.DescriptionHash
		abvs[i] = row.ParsedABV
	}

	const sqlq = `
		INSERT INTO enriched_beers (
		    id, brew_name, brewer, brew_description, description_hash,
		    abv, confidence, enrichment_source, enrichment_status,
		    last_seen_at, updated_at
		)
		SELECT t.id, t.name, t.brewer, t.description, t.hash,
		       t.abv,
		       CASE WHEN t.abv IS NOT NULL THEN 0.9 END,
		       CASE WHEN t.abv IS NOT NULL THEN 'description' END,
		       CASE WHEN t.abv IS NOT NULL THEN 'enriched' ELSE 'pending' END,
		       $7, $7
		  FROM UNNEST(
		           $1::text[], $2::text[], $3::text[],
		           $4::text[], $5::text[], $6::float8[]
		       ) AS t(id, name, brewer, description, hash, abv)
		ON CONFLICT (id) DO UPDATE SET
		    brew_name        = EXCLUDED.brew_name,
		    brewer           = EXCLUDED.brewer,
		    brew_description = EXCLUDED.brew_description,
		    description_hash = EXCLUDED.description_hash,
		    brew_description_cleaned = CASE
		        WHEN enriched_beers.description_hash IS DISTINCT FROM EXCLUDED.description_hash THEN NULL
		        ELSE enriched_beers.brew_description_cleaned END,
		    description_cleaned_at = CASE
		        WHEN enriched_beers.description_hash IS DISTINCT FROM EXCLUDED.description_hash THEN NULL
		        ELSE enriched_beers.description_cleaned_at END,
		    cleanup_source = CASE
		        WHEN enriched_beers.description_hash IS DISTINCT FROM EXCLUDED.description_hash THEN NULL
		        ELSE enriched_beers.cleanup_source END,
		    abv = CASE
		        WHEN enriched_beers.enrichment_source = 'perplexity' THEN enriched_beers.abv
		        WHEN EXCLUDED.abv IS NOT NULL THEN EXCLUDED.abv
		        ELSE enriched_beers.abv END,
		    confidence = CASE
		        WHEN enriched_beers.enrichment_source = 'perplexity' THEN enriched_beers.confidence
		        WHEN EXCLUDED.abv IS NOT NULL THEN EXCLUDED.confidence
		        ELSE enriched_beers.confidence END,
		    enrichment_source = CASE
		        WHEN enriched_beers.enrichment_source = 'perplexity' THEN enriched_beers.enrichment_source
		        WHEN EXCLUDED.abv IS NOT NULL THEN EXCLUDED.enrichment_source
		        ELSE enriched_beers.enrichment_source END,
		    enrichment_status = CASE
		        WHEN enriched_beers.enrichment_source = 'perplexity' THEN enriched_beers.enrichment_status
		        WHEN EXCLUDED.abv IS NOT NULL THEN 'enriched'
		        ELSE enriched_beers.enrichment_status END,
		    last_seen_at = EXCLUDED.last_seen_at,
		    updated_at   = EXCLUDED.updated_at
	`
	tag, err := r.q.Exec(ctx, sqlq, ids, names, brewers, descs, hashes, abvs, nowMs)
	if err != nil {
		return 0, perr.FromPostgres(err, "beers.UpsertBatch")
	}
	return tag.RowsAffected(), nil
}

// ExistingHashes returns id -> description_hash for the ids already stored.
// Rows without a hash map to the empty string
func (r *queries) ExistingHashes(ctx context.Context, ids []string) (map[string]string, error) {
	if len(ids) == 0 {
		return map[string]string{}, nil
	}
	const sqlq = `
		SELECT id, COALESCE(description_hash, '')
		  FROM enriched_beers
		 WHERE id = ANY($1::text[])
	`
	type pair struct {
		id   string
		hash string
	}
	rows, err := store.Many(ctx, r.q, func(r store.Row) (pair, error) {
		var p pair
		err := r.Scan(&p.id, &p.hash)
		return p, err
	}, sqlq, ids)
	if err != nil {
		return nil, perr.FromPostgres(err, "beers.ExistingHashes")
	}
	out := make(map[string]string, len(rows))
	for _, p := range rows {
		out[p.id] = p.hash
	}
	return out, nil
}

// GetBeer loads one full row
func (r *queries) GetBeer(ctx context.Context, id string) (dom.Beer, error) {
	const sqlq = `
		SELECT id, brew_name, brewer, brew_description, description_hash,
		       brew_description_cleaned, description_cleaned_at, cleanup_source,
		       abv, confidence, enrichment_source, enrichment_status,
		       last_seen_at, updated_at
		  FROM enriched_beers
		 WHERE id = $1
	`
	b, err := store.One(ctx, r.q, scanBeer, sqlq, id)
	if err != nil {
		if errors.Is(err, perr.ErrNotFound) {
			return dom.Beer{}, perr.NotFoundf("beer %q not found", id)
		}
		return dom.Beer{}, perr.FromPostgres(err, "beers.GetBeer")
	}
	return b, nil
}

// GetStatus reads one beer's enrichment status
func (r *queries) GetStatus(ctx context.Context, id string) (dom.EnrichmentStatus, error) {
	const sqlq = `SELECT enrichment_status FROM enriched_beers WHERE id = $1`
	s, err := store.Scalar[string](ctx, r.q, sqlq, id)
	if err != nil {
		if errors.Is(err, stdsql.ErrNoRows) {
			return "", perr.NotFoundf("beer %q not found", id)
		}
		return "", perr.FromPostgres(err, "beers.GetStatus")
	}
	return dom.EnrichmentStatus(s), nil
}

// GetEnrichments loads the enrichment projection for a set of ids.
// Unknown ids are simply absent from the result
func (r *queries) GetEnrichments(ctx context.Context, ids []string) ([]dom.BeerEnrichment, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	const sqlq = `
		SELECT id, abv, confidence, enrichment_source, enrichment_status
		  FROM enriched_beers
		 WHERE id = ANY($1::text[])
	`
	rows, err := store.Many(ctx, r.q, func(r store.Row) (dom.BeerEnrichment, error) {
		var (
			e      dom.BeerEnrichment
			src    *string
			status string
		)
		if err := r.Scan(&e.ID, &e.ABV, &e.Confidence, &src, &status); err != nil {
			return dom.BeerEnrichment{}, err
		}
		if src != nil {
			es := dom.EnrichmentSource(*src)
			e.Source = &es
		}
		e.Status = dom.EnrichmentStatus(status)
		return e, nil
	}, sqlq, ids)
	if err != nil {
		return nil, perr.FromPostgres(err, "beers.GetEnrichments")
	}
	return rows, nil
}

// UpdateEnrichment writes the ABV triple and status transition for one beer.
// The write is unconditional: the enrichment consumer is the only caller and
// it already guarded on the current status
func (r *queries) UpdateEnrichment(
	ctx context.Context,
	id string,
	abv, confidence *float64,
	source *dom.EnrichmentSource,
	status dom.EnrichmentStatus,
	nowMs int64,
) error {
	var src any
	if source != nil {
		src = string(*source)
	}
	const sqlq = `
		UPDATE enriched_beers
		   SET abv = $2, confidence = $3, enrichment_source = $4,
		       enrichment_status = $5, updated_at = $6
		 WHERE id = $1
	`
	tag, err := r.q.Exec(ctx, sqlq, id, abv, confidence, src, string(status), nowMs)
	if err != nil {
		return perr.FromPostgres(err, "beers.UpdateEnrichment")
	}
	if tag.RowsAffected() == 0 {
		return perr.NotFoundf("beer %q not found", id)
	}
	return nil
}

// ApplyCleanupBatch lands one cleanup batch in a single statement.
// Cleaned-text columns always update; the ABV triple updates only for rows
// whose update carries an ABV, and never on perplexity-owned rows
func (r *queries) ApplyCleanupBatch(ctx context.Context, updates []dom.CleanupUpdate) error {
	if len(updates) == 0 {
		return nil
	}

	ids := make([]string, len(updates))
	cleaned := make([]string, len(updates))
	cleanedAt := make([]int64, len(updates))
	cleanupSrc := make([]*string, len(updates))
	abvs := make([]*float64, len(updates))
	confs := make([]*float64, len(updates))
	sources := make([]*string, len(updates))
	for i, u := range updates {
		ids[i] = u.BeerID
		cleaned[i] = u.Cleaned
		cleanedAt[i] = u.CleanedAtMs
		if u.CleanupSource != nil {
			s := string(*u.CleanupSource)
			cleanupSrc[i] = &s
		}
		abvs[i] = u.ABV
		confs[i] = u.Confidence
		if u.Source != nil {
			s := string(*u.Source)
			sources[i] = &s
		}
	}

	const sqlq = `
		UPDATE enriched_beers b
		   SET brew_description_cleaned = t.cleaned,
		       description_cleaned_at   = t.cleaned_at,
		       cleanup_source           = t.cleanup_source,
		       abv = CASE
		           WHEN b.enrichment_source = 'perplexity' THEN b.abv
		           WHEN t.abv IS NOT NULL THEN t.abv
		           ELSE b.abv END,
		       confidence = CASE
		           WHEN b.enrichment_source = 'perplexity' THEN b.confidence
		           WHEN t.abv IS NOT NULL THEN t.confidence
		           ELSE b.confidence END,
		       enrichment_source = CASE
		           WHEN b.enrichment_source = 'perplexity' THEN b.enrichment_source
		           WHEN t.abv IS NOT NULL THEN t.source
		           ELSE b.enrichment_source END,
		       enrichment_status = CASE
		           WHEN b.enrichment_source = 'perplexity' THEN b.enrichment_status
		           WHEN t.abv IS NOT NULL THEN 'enriched'
		           ELSE b.enrichment_status END,
		       updated_at = t.cleaned_at
		  FROM UNNEST(
		           $1::text[], $2::text[], $3::bigint[], $4::text[],
		           $5::float8[], $6::float8[], $7::text[]
		       ) AS t(id, cleaned, cleaned_at, cleanup_source, abv, confidence, source)
		 WHERE b.id = t.id
	`
	if _, err := r.q.Exec(ctx, sqlq, ids, cleaned, cleanedAt, cleanupSrc, abvs, confs, sources); err != nil {
		return perr.FromPostgres(err, "beers.ApplyCleanupBatch")
	}
	return nil
}

// SelectMissingABV picks the freshest beers still lacking an ABV
func (r *queries) SelectMissingABV(
	ctx context.Context, limit int, excludePendingDlq bool,
) ([]dom.Candidate, error) {
	if limit <= 0 {
		return nil, nil
	}
	sqlq := `
		SELECT id, brew_name, brewer
		  FROM enriched_beers
		 WHERE abv IS NULL
	`
	if excludePendingDlq {
		sqlq += `
		   AND NOT EXISTS (
		       SELECT 1 FROM dlq_messages d
		        WHERE d.beer_id = enriched_beers.id AND d.status = 'pending'
		   )
		`
	}
	sqlq += ` ORDER BY last_seen_at DESC LIMIT $1`

	rows, err := store.Many(ctx, r.q, func(r store.Row) (dom.Candidate, error) {
		var c dom.Candidate
		err := r.Scan(&c.ID, &c.Name, &c.Brewer)
		return c, err
	}, sqlq, limit)
	if err != nil {
		return nil, perr.FromPostgres(err, "beers.SelectMissingABV")
	}
	return rows, nil
}

// CountBeers returns the total number of stored beers
func (r *queries) CountBeers(ctx context.Context) (int64, error) {
	n, err := store.Scalar[int64](ctx, r.q, `SELECT count(*) FROM enriched_beers`)
	if err != nil {
		return 0, perr.FromPostgres(err, "beers.CountBeers")
	}
	return n, nil
}

// CountMissingABV returns how many beers still lack an ABV
func (r *queries) CountMissingABV(ctx context.Context) (int64, error) {
	n, err := store.Scalar[int64](ctx, r.q, `SELECT count(*) FROM enriched_beers WHERE abv IS NULL`)
	if err != nil {
		return 0, perr.FromPostgres(err, "beers.CountMissingABV")
	}
	return n, nil
}

func scanBeer(r store.Row) (dom.Beer, error) {
	var (
		b        dom.Beer
		cleanSrc *string
		src      *string
		status   string
	)
	err := r.Scan(
		&b.ID, &b.Name, &b.Brewer, &b.Description, &b.DescriptionHash,
		&b.DescriptionCleaned, &b.CleanedAt, &cleanSrc,
		&b.ABV, &b.Confidence, &src, &status,
		&b.LastSeenAt, &b.UpdatedAt,
	)
	if err != nil {
		return dom.Beer{}, err
	}
	if cleanSrc != nil {
		cs := dom.CleanupSource(*cleanSrc)
		b.CleanupSource = &cs
	}
	if src != nil {
		es := dom.EnrichmentSource(*src)
		b.Source = &es
	}
	b.Status = dom.EnrichmentStatus(status)
	return b, nil
}
