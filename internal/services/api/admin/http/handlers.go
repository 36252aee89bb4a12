// Package http provides the admin endpoints: dead-letter triage and the
// manual enrichment trigger. Every mutation lands an audit entry
package http

import (
	stdhttp "net/http"
	"strconv"
	"time"

	"taplist/internal/modkit/httpkit"
	perr "taplist/internal/platform/errors"

	admindom "taplist/internal/services/admin/domain"
	"taplist/internal/services/audit"
	dom "taplist/internal/services/dlq/domain"
)

// Deps are the handler collaborators
type Deps struct {
	DLQ     dom.Port
	Trigger admindom.Port
	Audit   audit.Recorder
}

// Register mounts the admin routes
func Register(r httpkit.Router, d Deps) {
	if d.DLQ == nil || d.Trigger == nil {
		panic("admin http: DLQ and Trigger are required")
	}
	if d.Audit == nil {
		d.Audit = audit.Noop{}
	}
	h := &handlers{deps: d}
	httpkit.Get(r, "/dlq", h.listDlq)
	httpkit.Get(r, "/dlq/stats", h.dlqStats)
	httpkit.PostJSON[ReplayInput](r, "/dlq/replay", h.replay)
	httpkit.PostJSON[AckInput](r, "/dlq/acknowledge", h.acknowledge)
	httpkit.PostJSON[TriggerInput](r, "/enrich/trigger", h.trigger)
}

type handlers struct{ deps Deps }

// ListResponse is one page of dead-letter rows
type ListResponse struct {
	httpkit.ReplyMeta
	dom.ListPage
}

// StatsResponse is the dead-letter dashboard
type StatsResponse struct {
	httpkit.ReplyMeta
	dom.Stats
}

// ReplayInput selects rows to re-enqueue, optionally after a delay
type ReplayInput struct {
	IDs          []int64 `json:"ids" validate:"required,min=1,max=50" example:"42"`
	DelaySeconds int     `json:"delay_seconds,omitempty" validate:"omitempty,min=0" example:"30"`
}

// ReplayResponse reports the per-id replay outcome
type ReplayResponse struct {
	httpkit.ReplyMeta
	dom.ReplayResult
}

// AckInput selects rows to close without replaying
type AckInput struct {
	IDs []int64 `json:"ids" validate:"required,min=1,max=100" example:"42"`
}

// AckResponse reports how many rows were acknowledged
type AckResponse struct {
	httpkit.ReplyMeta
	dom.AckResult
}

// TriggerInput tunes one manual enrichment run
type TriggerInput struct {
	Limit           int  `json:"limit,omitempty" validate:"omitempty,min=1,max=100" example:"25"`
	ExcludeFailures bool `json:"exclude_failures,omitempty" example:"true"`
}

// TriggerResponse reports what the run queued and the quota picture
type TriggerResponse struct {
	httpkit.ReplyMeta
	admindom.TriggerResult
}

// swagger:route GET /admin/dlq Admin dlqList
// @Summary List dead-letter rows
// @Tags Admin
// @Produce json
// @Param status query string false "pending | replaying | replayed | acknowledged"
// @Param beer_id query string false "filter by beer id"
// @Param limit query int false "page size, capped at 100"
// @Param cursor query string false "opaque page cursor"
// @Param include_raw query bool false "include stored payloads"
// @Success 200 {object} ListResponse "ok"
// @Failure 400 {object} httpkit.Envelope "bad cursor or status"
// @Router /admin/dlq [get]
func (h *handlers) listDlq(r *stdhttp.Request) (any, error) {
	q := r.URL.Query()
	p := dom.ListParams{
		Status: dom.Status(q.Get("status")),
		BeerID: q.Get("beer_id"),
		Cursor: q.Get("cursor"),
	}
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return nil, perr.InvalidArgf("limit must be an integer")
		}
		p.Limit = n
	}
	p.IncludeRaw, _ = strconv.ParseBool(q.Get("include_raw"))

	page, err := h.deps.DLQ.List(r.Context(), p)
	if err != nil {
		return nil, err
	}
	return &ListResponse{ListPage: page}, nil
}

// swagger:route GET /admin/dlq/stats Admin dlqStats
// @Summary Dead-letter dashboard counts
// @Tags Admin
// @Produce json
// @Success 200 {object} StatsResponse "ok"
// @Router /admin/dlq/stats [get]
func (h *handlers) dlqStats(r *stdhttp.Request) (any, error) {
	stats, err := h.deps.DLQ.Stats(r.Context())
	if err != nil {
		return nil, err
	}
	return &StatsResponse{Stats: stats}, nil
}

// swagger:route POST /admin/dlq/replay Admin dlqReplay
// @Summary Re-enqueue dead-lettered messages on their source queues
// @Tags Admin
// @Accept json
// @Produce json
// @Param payload body ReplayInput true "row ids and optional delay"
// @Success 200 {object} ReplayResponse "ok"
// @Failure 400 {object} httpkit.Envelope "bad request"
// @Router /admin/dlq/replay [post]
func (h *handlers) replay(r *stdhttp.Request, in ReplayInput) (any, error) {
	delay := in.DelaySeconds
	if delay < 0 {
		delay = 0
	}

	res, err := h.deps.DLQ.Replay(r.Context(), in.IDs, time.Duration(delay)*time.Second)
	if err != nil {
		return nil, err
	}

	actor, _ := httpkit.Actor(r)
	h.deps.Audit.Record(r.Context(), audit.Entry{
		Actor:        actor,
		Action:       audit.ActionDlqReplay,
		SubjectCount: res.ReplayedCount,
		Detail: map[string]any{
			"ids":           in.IDs,
			"delay_seconds": delay,
			"claimed":       res.ClaimedCount,
			"failed":        res.FailedCount,
		},
		RequestID: httpkit.RequestID(r),
	})
	return &ReplayResponse{ReplayResult: res}, nil
}

// swagger:route POST /admin/dlq/acknowledge Admin dlqAcknowledge
// @Summary Close dead-letter rows without replaying
// @Tags Admin
// @Accept json
// @Produce json
// @Param payload body AckInput true "row ids"
// @Success 200 {object} AckResponse "ok"
// @Failure 400 {object} httpkit.Envelope "bad request"
// @Router /admin/dlq/acknowledge [post]
func (h *handlers) acknowledge(r *stdhttp.Request, in AckInput) (any, error) {
	res, err := h.deps.DLQ.Acknowledge(r.Context(), in.IDs)
	if err != nil {
		return nil, err
	}

	actor, _ := httpkit.Actor(r)
	h.deps.Audit.Record(r.Context(), audit.Entry{
		Actor:        actor,
		Action:       audit.ActionDlqAcknowledge,
		SubjectCount: res.AcknowledgedCount,
		Detail:       map[string]any{"ids": in.IDs},
		RequestID:    httpkit.RequestID(r),
	})
	return &AckResponse{AckResult: res}, nil
}

// swagger:route POST /admin/enrich/trigger Admin enrichTrigger
// @Summary Queue beers missing an ABV for enrichment
// @Tags Admin
// @Accept json
// @Produce json
// @Param payload body TriggerInput true "run tuning"
// @Success 200 {object} TriggerResponse "ok"
// @Failure 503 {object} httpkit.Envelope "store unavailable"
// @Router /admin/enrich/trigger [post]
func (h *handlers) trigger(r *stdhttp.Request, in TriggerInput) (any, error) {
	res, err := h.deps.Trigger.Trigger(r.Context(), admindom.TriggerParams{
		Limit:           in.Limit,
		ExcludeFailures: in.ExcludeFailures,
	})
	if err != nil {
		return nil, err
	}

	detail := map[string]any{
		"limit":            in.Limit,
		"exclude_failures": in.ExcludeFailures,
	}
	if res.SkipReason != "" {
		detail["skip_reason"] = string(res.SkipReason)
	}
	actor, _ := httpkit.Actor(r)
	h.deps.Audit.Record(r.Context(), audit.Entry{
		Actor:        actor,
		Action:       audit.ActionEnrichTrigger,
		SubjectCount: res.BeersQueued,
		Detail:       detail,
		RequestID:    httpkit.RequestID(r),
	})
	return &TriggerResponse{TriggerResult: res}, nil
}
