// Package http provides the health endpoint: a store probe plus the
// day's quota picture for both pipelines
package http

import (
	"context"
	stdhttp "net/http"
	"time"

	"taplist/internal/core/version"
	"taplist/internal/modkit/httpkit"
	"taplist/internal/modkit/module"
	perr "taplist/internal/platform/errors"

	quotadom "taplist/internal/services/quota/domain"
)

// probeTimeout bounds the store ping inside one health call
const probeTimeout = 2 * time.Second

// Limits are the configured quota ceilings the payload reports against
type Limits struct {
	DailyEnrichment   int
	MonthlyEnrichment int
	DailyCleanup      int
	EnrichmentEnabled bool
}

// Deps are the handler collaborators
type Deps struct {
	// Guard pings every configured store seam
	Guard  func(ctx context.Context) error
	Quota  quotadom.Port
	Limits Limits
}

// Register mounts the health route
func Register(r httpkit.Router, d Deps) {
	if d.Guard == nil || d.Quota == nil {
		panic("meta http: Guard and Quota are required")
	}
	h := &handlers{deps: d}
	httpkit.Get(r, "/", h.health)
}

type handlers struct{ deps Deps }

// ScopeQuota reports one scope's daily window
type ScopeQuota struct {
	Date           string `json:"date"`
	DailyUsed      int    `json:"daily_used"`
	DailyLimit     int    `json:"daily_limit"`
	DailyRemaining int    `json:"daily_remaining"`
}

// EnrichmentQuota adds the monthly window enrichment also enforces
type EnrichmentQuota struct {
	ScopeQuota
	MonthlyUsed      int `json:"monthly_used"`
	MonthlyLimit     int `json:"monthly_limit"`
	MonthlyRemaining int `json:"monthly_remaining"`
}

// HealthResponse is the health payload
type HealthResponse struct {
	httpkit.ReplyMeta
	Status            string            `json:"status" example:"ok"`
	Version           version.BuildInfo `json:"version"`
	Modules           []string          `json:"modules"`
	EnrichmentEnabled bool              `json:"enrichment_enabled"`
	Enrichment        EnrichmentQuota   `json:"enrichment"`
	Cleanup           ScopeQuota        `json:"cleanup"`
	Now               string            `json:"now" example:"2025-06-15T12:00:00Z"`
}

// swagger:route GET /health Meta health
// @Summary Store connectivity probe plus quota snapshot
// @Tags Meta
// @Produce json
// @Success 200 {object} HealthResponse "ok"
// @Failure 503 {object} httpkit.Envelope "store unavailable"
// @Router /health [get]
func (h *handlers) health(r *stdhttp.Request) (any, error) {
	ctx, cancel := context.WithTimeout(r.Context(), probeTimeout)
	defer cancel()

	if err := h.deps.Guard(ctx); err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeUnavailable, "health: store probe")
	}

	enrich, err := h.scopeQuota(ctx, quotadom.ScopeEnrichment, h.deps.Limits.DailyEnrichment)
	if err != nil {
		return nil, err
	}
	monthly, err := h.deps.Quota.MonthlyUsed(ctx, quotadom.ScopeEnrichment)
	if err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeUnavailable, "health: monthly usage")
	}
	cleanup, err := h.scopeQuota(ctx, quotadom.ScopeCleanup, h.deps.Limits.DailyCleanup)
	if err != nil {
		return nil, err
	}

	return &HealthResponse{
		Status:            "ok",
		Version:           version.Info(),
		Modules:           module.Names(),
		EnrichmentEnabled: h.deps.Limits.EnrichmentEnabled,
		Enrichment: EnrichmentQuota{
			ScopeQuota:       enrich,
			MonthlyUsed:      monthly,
			MonthlyLimit:     h.deps.Limits.MonthlyEnrichment,
			MonthlyRemaining: remaining(h.deps.Limits.MonthlyEnrichment, monthly),
		},
		Cleanup: cleanup,
		Now:     time.Now().UTC().Format(time.RFC3339),
	}, nil
}

func (h *handlers) scopeQuota(ctx context.Context, scope quotadom.Scope, limit int) (ScopeQuota, error) {
	snap, err := h.deps.Quota.Snapshot(ctx, scope)
	if err != nil {
		return ScopeQuota{}, perr.Wrapf(err, perr.ErrorCodeUnavailable, "health: %s snapshot", string(scope))
	}
	return ScopeQuota{
		Date:           snap.Date,
		DailyUsed:      snap.Count,
		DailyLimit:     limit,
		DailyRemaining: remaining(limit, snap.Count),
	}, nil
}

func remaining(limit, used int) int {
	if r := limit - used; r > 0 {
		return r
	}
	return 0
}
