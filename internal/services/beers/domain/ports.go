package domain

import "context"

// IngestPort merges upstream taplist snapshots into the store
type IngestPort interface {
	Ingest(ctx context.Context, brews []IngestBeer) (IngestResult, error)
}

// QueryPort reads beers and their enrichment projections
type QueryPort interface {
	GetBeer(ctx context.Context, id string) (Beer, error)
	GetStatus(ctx context.Context, id string) (EnrichmentStatus, error)
	GetEnrichments(ctx context.Context, ids []string) (map[string]Enrichment, error)
	CountBeers(ctx context.Context) (int64, error)
	CountMissingABV(ctx context.Context) (int64, error)
}

// EnrichPort applies per-beer enrichment outcomes
type EnrichPort interface {
	UpdateEnrichment(
		ctx context.Context,
		id string,
		abv, confidence *float64,
		source *EnrichmentSource,
		status EnrichmentStatus,
	) error
}

// CleanupPort applies one cleanup batch atomically
type CleanupPort interface {
	ApplyCleanupBatch(ctx context.Context, updates []CleanupUpdate) error
}

// CandidatePort selects beers still waiting on an ABV
type CandidatePort interface {
	SelectMissingABV(ctx context.Context, limit int, excludePendingDlq bool) ([]Candidate, error)
}
