// Package http provides the public beer endpoints: the live merged taplist
// and the bulk enrichment read
package http

import (
	"context"
	"encoding/json"
	stdhttp "net/http"
	"strings"

	"taplist/internal/adapters/taplist"
	"taplist/internal/modkit/httpkit"
	perr "taplist/internal/platform/errors"
	"taplist/internal/platform/logger"
	dom "taplist/internal/services/beers/domain"
)

// MaxBatchIDs bounds one POST /beers/batch call
const MaxBatchIDs = 100

// TapSource is the live taplist read seam
type TapSource interface {
	FetchTaplist(ctx context.Context, storeID string) ([]taplist.Brew, error)
}

// StoreSet is the sid allow-set. Empty admits any store id
type StoreSet map[string]struct{}

// NewStoreSet builds a set from configured ids; blank entries are dropped
func NewStoreSet(ids []string) StoreSet {
	s := make(StoreSet, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id != "" {
			s[id] = struct{}{}
		}
	}
	return s
}

// Allows reports whether the store id may be queried
func (s StoreSet) Allows(sid string) bool {
	if len(s) == 0 {
		return true
	}
	_, ok := s[sid]
	return ok
}

// Deps are the handler collaborators
type Deps struct {
	Tap    TapSource
	Query  dom.QueryPort
	Ingest dom.IngestPort
	Stores StoreSet
}

// Register mounts the beer routes
func Register(r httpkit.Router, d Deps) {
	if d.Tap == nil || d.Query == nil || d.Ingest == nil {
		panic("beers http: Tap, Query, and Ingest are required")
	}
	h := &handlers{deps: d}
	httpkit.Get(r, "/", h.list)
	httpkit.PostJSON[BatchInput](r, "/batch", h.batch)
}

type handlers struct{ deps Deps }

// ListResponse is the merged taplist payload
type ListResponse struct {
	httpkit.ReplyMeta
	Beers   []map[string]json.RawMessage `json:"beers"`
	StoreID string                       `json:"store_id"`
}

// BatchInput selects beers for the bulk enrichment read
type BatchInput struct {
	IDs []string `json:"ids" validate:"required,min=1,max=100,dive,required,max=50" example:"12345"`
}

// BatchResponse maps beer ids to their stored enrichment
type BatchResponse struct {
	httpkit.ReplyMeta
	Enrichments map[string]dom.Enrichment `json:"enrichments"`
}

// swagger:route GET /beers Beers beersList
// @Summary Live taplist merged with stored enrichment
// @Tags Beers
// @Produce json
// @Param sid query string true "store id"
// @Success 200 {object} ListResponse "ok"
// @Failure 400 {object} httpkit.Envelope "missing or unknown sid"
// @Failure 502 {object} httpkit.Envelope "upstream taplist failure"
// @Router /beers [get]
func (h *handlers) list(r *stdhttp.Request) (any, error) {
	ctx := r.Context()

	sid := strings.TrimSpace(r.URL.Query().Get("sid"))
	if sid == "" {
		return nil, perr.InvalidArgf("missing sid")
	}
	if !h.deps.Stores.Allows(sid) {
		return nil, perr.InvalidArgf("unknown store id %q", sid)
	}

	brews, err := h.deps.Tap.FetchTaplist(ctx, sid)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(brews))
	rows := make([]dom.IngestBeer, 0, len(brews))
	for _, b := range brews {
		ids = append(ids, b.ID)
		rows = append(rows, dom.IngestBeer{
			ID:          b.ID,
			Name:        b.Name,
			Brewer:      b.Brewer,
			Description: b.Description,
		})
	}

	// ingest is best-effort: a store hiccup must not take down the read path
	if _, err := h.deps.Ingest.Ingest(ctx, rows); err != nil {
		logger.C(ctx).Warn().Err(err).Str("store_id", sid).Msg("taplist ingest failed, serving upstream data")
	}

	enr, err := h.deps.Query.GetEnrichments(ctx, ids)
	if err != nil {
		logger.C(ctx).Warn().Err(err).Str("store_id", sid).Msg("enrichment read failed, serving unenriched")
		enr = nil
	}

	beers := make([]map[string]json.RawMessage, 0, len(brews))
	for _, b := range brews {
		m := b.AsMap()
		e := enr[b.ID]
		m["abv"] = jsonVal(e.ABV)
		m["confidence"] = jsonVal(e.Confidence)
		m["source"] = jsonVal(e.Source)
		m["is_verified"] = jsonVal(e.IsVerified)
		beers = append(beers, m)
	}

	return &ListResponse{Beers: beers, StoreID: sid}, nil
}

// swagger:route POST /beers/batch Beers beersBatch
// @Summary Stored enrichment for a set of beer ids
// @Tags Beers
// @Accept json
// @Produce json
// @Param payload body BatchInput true "beer ids"
// @Success 200 {object} BatchResponse "ok"
// @Failure 400 {object} httpkit.Envelope "bad request"
// @Router /beers/batch [post]
func (h *handlers) batch(r *stdhttp.Request, in BatchInput) (any, error) {
	if len(in.IDs) == 0 {
		return nil, perr.InvalidArgf("ids required")
	}
	if len(in.IDs) > MaxBatchIDs {
		return nil, perr.InvalidArgf("at most %d ids per call", MaxBatchIDs)
	}

	enr, err := h.deps.Query.GetEnrichments(r.Context(), in.IDs)
	if err != nil {
		return nil, err
	}
	if enr == nil {
		enr = map[string]dom.Enrichment{}
	}
	return &BatchResponse{Enrichments: enr}, nil
}

// jsonVal marshals a primitive merge value; nil pointers render as null
func jsonVal(v any) json.RawMessage {
	raw, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage("null")
	}
	return raw
}
