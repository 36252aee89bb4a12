package http

import (
	"bytes"
	"context"
	"encoding/json"
	stdhttp "net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	perr "taplist/internal/platform/errors"
	phttp "taplist/internal/platform/net/http"

	admindom "taplist/internal/services/admin/domain"
	"taplist/internal/services/audit"
	dom "taplist/internal/services/dlq/domain"
)

type fakeDLQ struct {
	listParams []dom.ListParams
	page       dom.ListPage
	listErr    error

	stats    dom.Stats
	statsErr error

	replayIDs   [][]int64
	replayDelay []time.Duration
	replayRes   dom.ReplayResult
	replayErr   error

	ackIDs [][]int64
	ackRes dom.AckResult
	ackErr error
}

func (f *fakeDLQ) List(_ context.Context, p dom.ListParams) (dom.ListPage, error) {
	f.listParams = append(f.listParams, p)
	if f.listErr != nil {
		return dom.ListPage{}, f.listErr
	}
	return f.page, nil
}

func (f *fakeDLQ) Stats(context.Context) (dom.Stats, error) {
	if f.statsErr != nil {
		return dom.Stats{}, f.statsErr
	}
	return f.stats, nil
}

func (f *fakeDLQ) Replay(_ context.Context, ids []int64, delay time.Duration) (dom.ReplayResult, error) {
	f.replayIDs = append(f.replayIDs, ids)
	f.replayDelay = append(f.replayDelay, delay)
	if f.replayErr != nil {
		return dom.ReplayResult{}, f.replayErr
	}
	return f.replayRes, nil
}

func (f *fakeDLQ) Acknowledge(_ context.Context, ids []int64) (dom.AckResult, error) {
	f.ackIDs = append(f.ackIDs, ids)
	if f.ackErr != nil {
		return dom.AckResult{}, f.ackErr
	}
	return f.ackRes, nil
}

type fakeTrigger struct {
	params []admindom.TriggerParams
	res    admindom.TriggerResult
	err    error
}

func (f *fakeTrigger) Trigger(_ context.Context, p admindom.TriggerParams) (admindom.TriggerResult, error) {
	f.params = append(f.params, p)
	if f.err != nil {
		return admindom.TriggerResult{}, f.err
	}
	return f.res, nil
}

type fakeAudit struct{ entries []audit.Entry }

func (f *fakeAudit) Record(_ context.Context, e audit.Entry) { f.entries = append(f.entries, e) }

type harness struct {
	dlq     *fakeDLQ
	trigger *fakeTrigger
	audit   *fakeAudit
	mux     stdhttp.Handler
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{dlq: &fakeDLQ{}, trigger: &fakeTrigger{}, audit: &fakeAudit{}}
	r := phttp.AdaptChi(chi.NewRouter())
	Register(r, Deps{DLQ: h.dlq, Trigger: h.trigger, Audit: h.audit})
	h.mux = r.Mux()
	return h
}

func (h *harness) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *stdhttp.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.mux.ServeHTTP(rec, req)
	return rec
}

func TestListDlqPassesParams(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.dlq.page = dom.ListPage{
		Messages: []dom.Message{{ID: 9, BeerID: "42", Status: dom.StatusReplayed}},
		HasMore:  true, NextCursor: "abc",
	}

	rec := h.do(t, stdhttp.MethodGet, "/dlq?status=replayed&beer_id=42&limit=25&cursor=Y3Vy&include_raw=true", "")
	if rec.Code != stdhttp.StatusOK {
		t.Fatalf("code = %d body=%s", rec.Code, rec.Body.String())
	}

	if len(h.dlq.listParams) != 1 {
		t.Fatalf("list calls = %d", len(h.dlq.listParams))
	}
	p := h.dlq.listParams[0]
	if p.Status != dom.StatusReplayed || p.BeerID != "42" || p.Limit != 25 || p.Cursor != "Y3Vy" || !p.IncludeRaw {
		t.Fatalf("bad params: %+v", p)
	}

	var out struct {
		Messages   []dom.Message `json:"messages"`
		HasMore    bool          `json:"has_more"`
		NextCursor string        `json:"next_cursor"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out.Messages) != 1 || !out.HasMore || out.NextCursor != "abc" {
		t.Fatalf("bad payload: %+v", out)
	}
}

func TestListDlqRejectsBadLimit(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	rec := h.do(t, stdhttp.MethodGet, "/dlq?limit=lots", "")
	if rec.Code != stdhttp.StatusBadRequest {
		t.Fatalf("code = %d", rec.Code)
	}
	if len(h.dlq.listParams) != 0 {
		t.Fatalf("list should not be called")
	}
}

// cursor validation lives in the service; the envelope code must survive the trip
func TestListDlqBadCursor(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.dlq.listErr = perr.InvalidCursorf("malformed cursor")

	rec := h.do(t, stdhttp.MethodGet, "/dlq?cursor=%21%21", "")
	if rec.Code != stdhttp.StatusBadRequest {
		t.Fatalf("code = %d", rec.Code)
	}
	var env phttp.Envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.Error == nil || env.Error.Code != "INVALID_CURSOR" {
		t.Fatalf("bad envelope: %+v", env)
	}
}

func TestDlqStats(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	age := int64(5000)
	h.dlq.stats = dom.Stats{
		ByStatus:           map[dom.Status]int64{dom.StatusPending: 3},
		OldestPendingAgeMs: &age,
	}

	rec := h.do(t, stdhttp.MethodGet, "/dlq/stats", "")
	if rec.Code != stdhttp.StatusOK {
		t.Fatalf("code = %d body=%s", rec.Code, rec.Body.String())
	}
	var out struct {
		ByStatus map[string]int64 `json:"by_status"`
		Oldest   *int64           `json:"oldest_pending_age_ms"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.ByStatus["pending"] != 3 || out.Oldest == nil || *out.Oldest != 5000 {
		t.Fatalf("bad payload: %+v", out)
	}
}

func TestReplayRecordsAudit(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.dlq.replayRes = dom.ReplayResult{RequestedCount: 2, ClaimedCount: 2, ReplayedCount: 1, FailedCount: 1}

	rec := h.do(t, stdhttp.MethodPost, "/dlq/replay", `{"ids":[4,5],"delay_seconds":30}`)
	if rec.Code != stdhttp.StatusOK {
		t.Fatalf("code = %d body=%s", rec.Code, rec.Body.String())
	}

	if len(h.dlq.replayIDs) != 1 || len(h.dlq.replayIDs[0]) != 2 {
		t.Fatalf("replay ids = %+v", h.dlq.replayIDs)
	}
	if h.dlq.replayDelay[0] != 30*time.Second {
		t.Fatalf("delay = %v", h.dlq.replayDelay[0])
	}

	if len(h.audit.entries) != 1 {
		t.Fatalf("audit entries = %d", len(h.audit.entries))
	}
	e := h.audit.entries[0]
	if e.Action != audit.ActionDlqReplay || e.SubjectCount != 1 {
		t.Fatalf("bad audit entry: %+v", e)
	}
	detail, ok := e.Detail.(map[string]any)
	if !ok || detail["claimed"] != 2 {
		t.Fatalf("bad audit detail: %+v", e.Detail)
	}

	var out dom.ReplayResult
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.ReplayedCount != 1 || out.FailedCount != 1 {
		t.Fatalf("bad payload: %+v", out)
	}
}

func TestReplayClampsNegativeDelay(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	rec := h.do(t, stdhttp.MethodPost, "/dlq/replay", `{"ids":[4],"delay_seconds":-5}`)
	if rec.Code != stdhttp.StatusOK {
		t.Fatalf("code = %d body=%s", rec.Code, rec.Body.String())
	}
	if h.dlq.replayDelay[0] != 0 {
		t.Fatalf("delay = %v", h.dlq.replayDelay[0])
	}
}

// oversize guards live in the service; the error must not trip the audit log
func TestReplayErrorSkipsAudit(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.dlq.replayErr = perr.InvalidArgf("dlq: at most 50 ids per replay")

	rec := h.do(t, stdhttp.MethodPost, "/dlq/replay", `{"ids":[1]}`)
	if rec.Code != stdhttp.StatusBadRequest {
		t.Fatalf("code = %d", rec.Code)
	}
	if len(h.audit.entries) != 0 {
		t.Fatalf("audit should not record failed mutations")
	}
}

func TestAcknowledgeRecordsAudit(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.dlq.ackRes = dom.AckResult{RequestedCount: 3, AcknowledgedCount: 2}

	rec := h.do(t, stdhttp.MethodPost, "/dlq/acknowledge", `{"ids":[1,2,3]}`)
	if rec.Code != stdhttp.StatusOK {
		t.Fatalf("code = %d body=%s", rec.Code, rec.Body.String())
	}

	if len(h.dlq.ackIDs) != 1 || len(h.dlq.ackIDs[0]) != 3 {
		t.Fatalf("ack ids = %+v", h.dlq.ackIDs)
	}
	if len(h.audit.entries) != 1 || h.audit.entries[0].Action != audit.ActionDlqAcknowledge {
		t.Fatalf("audit entries = %+v", h.audit.entries)
	}
	if h.audit.entries[0].SubjectCount != 2 {
		t.Fatalf("subject count = %d", h.audit.entries[0].SubjectCount)
	}
}

func TestTriggerReportsSkip(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.trigger.res = admindom.TriggerResult{
		SkipReason:     admindom.SkipMonthlyLimit,
		MonthlyUsed:    2000,
		DailyUsed:      120,
		DailyRemaining: 380,
	}

	rec := h.do(t, stdhttp.MethodPost, "/enrich/trigger", `{"limit":25,"exclude_failures":true}`)
	if rec.Code != stdhttp.StatusOK {
		t.Fatalf("code = %d body=%s", rec.Code, rec.Body.String())
	}

	if len(h.trigger.params) != 1 {
		t.Fatalf("trigger calls = %d", len(h.trigger.params))
	}
	if h.trigger.params[0].Limit != 25 || !h.trigger.params[0].ExcludeFailures {
		t.Fatalf("bad params: %+v", h.trigger.params[0])
	}

	var out admindom.TriggerResult
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.SkipReason != admindom.SkipMonthlyLimit || out.BeersQueued != 0 {
		t.Fatalf("bad payload: %+v", out)
	}

	if len(h.audit.entries) != 1 {
		t.Fatalf("audit entries = %d", len(h.audit.entries))
	}
	detail := h.audit.entries[0].Detail.(map[string]any)
	if detail["skip_reason"] != "monthly_limit" {
		t.Fatalf("bad audit detail: %+v", detail)
	}
}

func TestTriggerStoreFailure(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.trigger.err = perr.DBf("snapshot failed")

	rec := h.do(t, stdhttp.MethodPost, "/enrich/trigger", `{}`)
	if rec.Code != stdhttp.StatusServiceUnavailable {
		t.Fatalf("code = %d body=%s", rec.Code, rec.Body.String())
	}
	if len(h.audit.entries) != 0 {
		t.Fatalf("audit should not record failed mutations")
	}
}
