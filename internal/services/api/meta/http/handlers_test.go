package http

import (
	"context"
	"encoding/json"
	"errors"
	stdhttp "net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	phttp "taplist/internal/platform/net/http"
	quotadom "taplist/internal/services/quota/domain"
)

type fakeQuota struct {
	snaps      map[quotadom.Scope]quotadom.Snapshot
	snapErr    error
	monthly    int
	monthlyErr error
}

func (f *fakeQuota) ReserveBatch(context.Context, quotadom.Scope, int, int) (quotadom.BatchReservation, error) {
	return quotadom.BatchReservation{}, errors.New("unexpected ReserveBatch")
}

func (f *fakeQuota) ReserveOne(context.Context, quotadom.Scope, int) (quotadom.SlotReservation, error) {
	return quotadom.SlotReservation{}, errors.New("unexpected ReserveOne")
}

func (f *fakeQuota) Snapshot(_ context.Context, scope quotadom.Scope) (quotadom.Snapshot, error) {
	if f.snapErr != nil {
		return quotadom.Snapshot{}, f.snapErr
	}
	return f.snaps[scope], nil
}

func (f *fakeQuota) MonthlyUsed(context.Context, quotadom.Scope) (int, error) {
	if f.monthlyErr != nil {
		return 0, f.monthlyErr
	}
	return f.monthly, nil
}

func serve(t *testing.T, guardErr error, quota *fakeQuota) *httptest.ResponseRecorder {
	t.Helper()
	r := phttp.AdaptChi(chi.NewRouter())
	Register(r, Deps{
		Guard: func(context.Context) error { return guardErr },
		Quota: quota,
		Limits: Limits{
			DailyEnrichment:   500,
			MonthlyEnrichment: 2000,
			DailyCleanup:      1000,
			EnrichmentEnabled: true,
		},
	})
	req := httptest.NewRequest(stdhttp.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	r.Mux().ServeHTTP(rec, req)
	return rec
}

func TestHealthReportsQuota(t *testing.T) {
	t.Parallel()

	quota := &fakeQuota{
		snaps: map[quotadom.Scope]quotadom.Snapshot{
			quotadom.ScopeEnrichment: {Date: "2025-06-15", Count: 120},
			quotadom.ScopeCleanup:    {Date: "2025-06-15", Count: 990},
		},
		monthly: 1700,
	}

	rec := serve(t, nil, quota)
	if rec.Code != stdhttp.StatusOK {
		t.Fatalf("code = %d body=%s", rec.Code, rec.Body.String())
	}

	var out HealthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Status != "ok" || !out.EnrichmentEnabled {
		t.Fatalf("bad payload: %+v", out)
	}
	e := out.Enrichment
	if e.DailyUsed != 120 || e.DailyLimit != 500 || e.DailyRemaining != 380 {
		t.Fatalf("bad enrichment daily: %+v", e)
	}
	if e.MonthlyUsed != 1700 || e.MonthlyRemaining != 300 {
		t.Fatalf("bad enrichment monthly: %+v", e)
	}
	if out.Cleanup.DailyRemaining != 10 || out.Cleanup.Date != "2025-06-15" {
		t.Fatalf("bad cleanup quota: %+v", out.Cleanup)
	}
	if out.Version.Service == "" {
		t.Fatalf("version missing: %+v", out.Version)
	}
}

func TestHealthStoreDown(t *testing.T) {
	t.Parallel()

	rec := serve(t, errors.New("pg: connection refused"), &fakeQuota{})
	if rec.Code != stdhttp.StatusServiceUnavailable {
		t.Fatalf("code = %d body=%s", rec.Code, rec.Body.String())
	}

	var env phttp.Envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.Success || env.Error == nil || env.Error.Code != "DB_UNAVAILABLE" {
		t.Fatalf("bad envelope: %+v", env)
	}
}

func TestHealthQuotaReadFailure(t *testing.T) {
	t.Parallel()

	rec := serve(t, nil, &fakeQuota{snapErr: errors.New("query failed")})
	if rec.Code != stdhttp.StatusServiceUnavailable {
		t.Fatalf("code = %d body=%s", rec.Code, rec.Body.String())
	}
}

// usage past the ceiling must not report negative headroom
func TestHealthClampsRemaining(t *testing.T) {
	t.Parallel()

	quota := &fakeQuota{
		snaps: map[quotadom.Scope]quotadom.Snapshot{
			quotadom.ScopeEnrichment: {Date: "2025-06-15", Count: 503},
			quotadom.ScopeCleanup:    {Date: "2025-06-15", Count: 0},
		},
		monthly: 2400,
	}

	rec := serve(t, nil, quota)
	if rec.Code != stdhttp.StatusOK {
		t.Fatalf("code = %d body=%s", rec.Code, rec.Body.String())
	}

	var out HealthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Enrichment.DailyRemaining != 0 || out.Enrichment.MonthlyRemaining != 0 {
		t.Fatalf("remaining should clamp at zero: %+v", out.Enrichment)
	}
}
