// Package domain defines the cleanup pipeline's message shape and results
package domain

// Topic is the queue topic cleanup messages travel on
const Topic = "description-cleanup"

// CleanupMessage asks the pipeline to clean one beer's description
type CleanupMessage struct {
	BeerID      string `json:"beer_id"`
	BeerName    string `json:"beer_name"`
	Brewer      string `json:"brewer"`
	Description string `json:"brew_description"`
}

// ResultKind tags an AI cleanup attempt
type ResultKind int

// AI result kinds. Success carries validated text, Fallback means the
// breaker or quota skipped the model, Failure means timeout or provider error
const (
	ResultSuccess ResultKind = iota
	ResultFallback
	ResultFailure
)

// AIResult is the outcome of one cleanup attempt for one message
type AIResult struct {
	Kind         ResultKind
	Cleaned      string
	UsedOriginal bool
	ExtractedABV *float64
	LatencyMs    int64
	Err          error
}

// CleanOutcome is what the safe-clean function hands back for one description
type CleanOutcome struct {
	Cleaned      string
	UsedOriginal bool
	ExtractedABV *float64
}
