// Package domain defines beer records, enrichment enums, and store ports
package domain

// EnrichmentStatus tracks where a beer sits in the ABV pipeline.
// Rows leave pending monotonically; enriched, not_found, and skipped are terminal
type EnrichmentStatus string

// Enrichment statuses
const (
	StatusPending  EnrichmentStatus = "pending"
	StatusEnriched EnrichmentStatus = "enriched"
	StatusNotFound EnrichmentStatus = "not_found"
	StatusSkipped  EnrichmentStatus = "skipped"
)

// OK reports whether the status is a known value
func (s EnrichmentStatus) OK() bool {
	switch s {
	case StatusPending, StatusEnriched, StatusNotFound, StatusSkipped:
		return true
	}
	return false
}

// Terminal reports whether the status ends the pipeline for a beer
func (s EnrichmentStatus) Terminal() bool {
	return s == StatusEnriched || s == StatusNotFound || s == StatusSkipped
}

// EnrichmentSource records where an ABV value came from
type EnrichmentSource string

// Enrichment sources
const (
	SourceDescription         EnrichmentSource = "description"
	SourceDescriptionFallback EnrichmentSource = "description-fallback"
	SourcePerplexity          EnrichmentSource = "perplexity"
)

// OK reports whether the source is a known value
func (s EnrichmentSource) OK() bool {
	switch s {
	case SourceDescription, SourceDescriptionFallback, SourcePerplexity:
		return true
	}
	return false
}

// CleanupSource records which arm produced a cleaned description
type CleanupSource string

// Cleanup sources
const (
	CleanupWorkersAI      CleanupSource = "workers-ai"
	CleanupBreakerFallback CleanupSource = "fallback-circuit-breaker"
	CleanupQuotaFallback   CleanupSource = "fallback-quota-exceeded"
)

// OK reports whether the cleanup source is a known value
func (s CleanupSource) OK() bool {
	switch s {
	case CleanupWorkersAI, CleanupBreakerFallback, CleanupQuotaFallback:
		return true
	}
	return false
}

// Beer is one stored row. Timestamps are epoch milliseconds
type Beer struct {
	ID                 string
	Name               string
	Brewer             string
	Description        *string
	DescriptionHash    *string
	DescriptionCleaned *string
	CleanedAt          *int64
	CleanupSource      *CleanupSource
	ABV                *float64
	Confidence         *float64
	Source             *EnrichmentSource
	Status             EnrichmentStatus
	LastSeenAt         int64
	UpdatedAt          int64
}

// IngestBeer is a record arriving from the upstream taplist
type IngestBeer struct {
	ID          string
	Name        string
	Brewer      string
	Description string
}

// UpsertRow is a prepared ingest write: hash and description-parsed ABV
// already computed
type UpsertRow struct {
	ID              string
	Name            string
	Brewer          string
	Description     *string
	DescriptionHash *string
	ParsedABV       *float64
}

// Enrichment is the read model served by the batch endpoint.
// IsVerified is derived: an ABV is present and the status is enriched
type Enrichment struct {
	ABV        *float64          `json:"abv"`
	Confidence *float64          `json:"confidence"`
	Source     *EnrichmentSource `json:"source"`
	IsVerified bool              `json:"is_verified"`
}

// BeerEnrichment pairs a beer id with its raw enrichment columns
type BeerEnrichment struct {
	ID         string
	ABV        *float64
	Confidence *float64
	Source     *EnrichmentSource
	Status     EnrichmentStatus
}

// Candidate is one admin-trigger or janitor pick
type Candidate struct {
	ID     string
	Name   string
	Brewer string
}

// CleanupUpdate is one row of the cleanup pipeline's atomic batch write.
// CleanupSource is nil when the validators rejected the model text and the
// original description was kept. ABV fields ride along only when extraction
// succeeded; perplexity-owned rows keep theirs regardless
type CleanupUpdate struct {
	BeerID        string
	Cleaned       string
	CleanedAtMs   int64
	CleanupSource *CleanupSource
	ABV           *float64
	Confidence    *float64
	Source        *EnrichmentSource
}

// IngestResult summarizes one taplist ingest
type IngestResult struct {
	Upserted      int
	CleanupQueued int
}
