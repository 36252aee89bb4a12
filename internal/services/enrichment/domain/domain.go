// Package domain defines the enrichment pipeline's message shape
package domain

// Topic is the queue topic enrichment messages travel on
const Topic = "beer-enrichment"

// EnrichmentMessage asks the pipeline to look up one beer's ABV
type EnrichmentMessage struct {
	BeerID   string `json:"beer_id"`
	BeerName string `json:"beer_name"`
	Brewer   string `json:"brewer"`
}
