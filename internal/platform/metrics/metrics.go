// Package metrics exposes the process-wide prometheus instruments the
// pipelines and admission layer record into, plus the /metrics mount
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	phttp "taplist/internal/platform/net/http"
)

// AdmissionDecisions counts rate-limit verdicts by outcome (allowed, denied, fail_open)
var AdmissionDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "taplist_admission_decisions_total",
	Help: "counter of fixed-window admission verdicts",
}, []string{"outcome"})

// BeersUpserted counts beer rows inserted or refreshed by taplist ingests
var BeersUpserted = promauto.NewCounter(prometheus.CounterOpts{
	Name: "taplist_beers_upserted_total",
	Help: "counter of beer rows written by ingest merges",
})

// QuotaReservations counts reserved slots per scope (cleanup, enrichment)
var QuotaReservations = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "taplist_quota_reserved_total",
	Help: "counter of daily quota slots actually reserved",
}, []string{"scope"})

// QuotaRejections counts reservation attempts that got zero slots
var QuotaRejections = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "taplist_quota_rejected_total",
	Help: "counter of quota reservations refused at the daily limit",
}, []string{"scope"})

// CleanupOutcomes counts categorized cleanup results (success, fallback, failure)
var CleanupOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "taplist_cleanup_outcomes_total",
	Help: "counter of per-message cleanup pipeline outcomes",
}, []string{"outcome"})

// EnrichmentOutcomes counts enrichment dispositions (enriched, not_found, skipped, retry)
var EnrichmentOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "taplist_enrichment_outcomes_total",
	Help: "counter of per-message enrichment pipeline outcomes",
}, []string{"outcome"})

// BreakerOpens counts circuit breaker open transitions
var BreakerOpens = promauto.NewCounter(prometheus.CounterOpts{
	Name: "taplist_breaker_opens_total",
	Help: "counter of latency circuit breaker open transitions",
})

// DlqIngested counts rows landed in the dead-letter store by source queue
var DlqIngested = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "taplist_dlq_ingested_total",
	Help: "counter of messages persisted to the dead-letter store",
}, []string{"source_queue"})

// DlqReplayed counts replay attempts by result (replayed, failed)
var DlqReplayed = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "taplist_dlq_replayed_total",
	Help: "counter of dead-letter replay attempts",
}, []string{"result"})

// AILatency observes cleanup LLM wall-clock latency in seconds
var AILatency = promauto.NewHistogram(prometheus.HistogramOpts{
	Name:    "taplist_ai_cleanup_latency_seconds",
	Help:    "histogram of cleanup LLM call latency",
	Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10},
})

// LookupLatency observes ABV lookup provider latency in seconds
var LookupLatency = promauto.NewHistogram(prometheus.HistogramOpts{
	Name:    "taplist_abv_lookup_latency_seconds",
	Help:    "histogram of search LLM ABV lookup latency",
	Buckets: []float64{.25, .5, 1, 2.5, 5, 10, 30},
})

// Mount attaches the prometheus handler at /metrics when enabled
func Mount(r phttp.Router, enabled bool) {
	if !enabled {
		return
	}
	r.Handle("/metrics", promhttp.Handler())
}
