package service

import (
	"context"
	"testing"

	perr "taplist/internal/platform/errors"
	"taplist/internal/platform/queue"

	dom "taplist/internal/services/admin/domain"
	beersdom "taplist/internal/services/beers/domain"
	enrichdom "taplist/internal/services/enrichment/domain"
	quotadom "taplist/internal/services/quota/domain"
)

type selectCall struct {
	limit   int
	exclude bool
}

type fakeCandidates struct {
	calls []selectCall
	out   []beersdom.Candidate
	err   error
}

func (f *fakeCandidates) SelectMissingABV(_ context.Context, limit int, exclude bool) ([]beersdom.Candidate, error) {
	f.calls = append(f.calls, selectCall{limit: limit, exclude: exclude})
	if f.err != nil {
		return nil, f.err
	}
	if len(f.out) > limit {
		return f.out[:limit], nil
	}
	return f.out, nil
}

type fakeQuota struct {
	daily        int
	dailyErr     error
	monthly      int
	monthlyErr   error
	reserveCalls int
}

func (f *fakeQuota) ReserveBatch(context.Context, quotadom.Scope, int, int) (quotadom.BatchReservation, error) {
	f.reserveCalls++
	return quotadom.BatchReservation{}, nil
}

func (f *fakeQuota) ReserveOne(context.Context, quotadom.Scope, int) (quotadom.SlotReservation, error) {
	f.reserveCalls++
	return quotadom.SlotReservation{}, nil
}

func (f *fakeQuota) Snapshot(context.Context, quotadom.Scope) (quotadom.Snapshot, error) {
	if f.dailyErr != nil {
		return quotadom.Snapshot{}, f.dailyErr
	}
	return quotadom.Snapshot{Date: "2025-06-15", Count: f.daily}, nil
}

func (f *fakeQuota) MonthlyUsed(context.Context, quotadom.Scope) (int, error) {
	return f.monthly, f.monthlyErr
}

type fakeEnqueuer struct {
	topics []string
	bodies [][]any
	err    error
}

func (f *fakeEnqueuer) SendBatch(_ context.Context, topic string, bodies []any, _ ...queue.SendOption) error {
	if f.err != nil {
		return f.err
	}
	f.topics = append(f.topics, topic)
	f.bodies = append(f.bodies, bodies)
	return nil
}

type harness struct {
	svc   *Svc
	cands *fakeCandidates
	quota *fakeQuota
	enq   *fakeEnqueuer
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		cands: &fakeCandidates{},
		quota: &fakeQuota{},
		enq:   &fakeEnqueuer{},
	}
	h.svc = New(h.cands, h.quota, h.enq, Config{
		Enabled:      true,
		DailyLimit:   500,
		MonthlyLimit: 2000,
	})
	return h
}

func candidates(n int) []beersdom.Candidate {
	out := make([]beersdom.Candidate, n)
	for i := range out {
		out[i] = beersdom.Candidate{ID: string(rune('a' + i)), Name: "Beer", Brewer: "Brewer Co"}
	}
	return out
}

func TestTriggerQueuesCandidates(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.quota.daily = 495
	h.quota.monthly = 100
	h.cands.out = []beersdom.Candidate{
		{ID: "b1", Name: "Fog", Brewer: "Cloud Co"},
		{ID: "b2", Name: "Mist", Brewer: "Cloud Co"},
		{ID: "b3", Name: "Haze", Brewer: "Cloud Co"},
	}

	res, err := h.svc.Trigger(context.Background(), dom.TriggerParams{Limit: 10, ExcludeFailures: true})
	if err != nil {
		t.Fatalf("Trigger: %v", err)
	}

	if res.SkipReason != "" || res.BeersQueued != 3 {
		t.Fatalf("result = %+v, want 3 queued", res)
	}
	if res.DailyUsed != 495 || res.DailyRemaining != 5 {
		t.Fatalf("daily = %d/%d, want 495/5", res.DailyUsed, res.DailyRemaining)
	}
	if res.MonthlyUsed != 100 || res.MonthlyRemaining != 1900 {
		t.Fatalf("monthly = %d/%d, want 100/1900", res.MonthlyUsed, res.MonthlyRemaining)
	}

	// the daily headroom beats the requested 10
	if got := h.cands.calls; len(got) != 1 || got[0].limit != 5 || !got[0].exclude {
		t.Fatalf("select calls = %+v, want one call for 5 excluding failures", got)
	}
	if len(h.enq.topics) != 1 || h.enq.topics[0] != enrichdom.Topic {
		t.Fatalf("enqueue topics = %v", h.enq.topics)
	}
	msg, ok := h.enq.bodies[0][0].(enrichdom.EnrichmentMessage)
	if !ok || msg.BeerID != "b1" || msg.BeerName != "Fog" || msg.Brewer != "Cloud Co" {
		t.Fatalf("first message = %+v", h.enq.bodies[0][0])
	}
	if h.quota.reserveCalls != 0 {
		t.Fatalf("trigger must never reserve quota, saw %d calls", h.quota.reserveCalls)
	}
}

func TestTriggerDefaultsAndCapsLimit(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.cands.out = candidates(3)

	if _, err := h.svc.Trigger(context.Background(), dom.TriggerParams{}); err != nil {
		t.Fatalf("Trigger: %v", err)
	}
	if _, err := h.svc.Trigger(context.Background(), dom.TriggerParams{Limit: 250}); err != nil {
		t.Fatalf("Trigger: %v", err)
	}

	if len(h.cands.calls) != 2 {
		t.Fatalf("select calls = %d, want 2", len(h.cands.calls))
	}
	for i, c := range h.cands.calls {
		if c.limit != 100 {
			t.Fatalf("call %d limit = %d, want the 100 cap", i, c.limit)
		}
	}
}

func TestTriggerKillSwitch(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.svc.cfg.Enabled = false

	res, err := h.svc.Trigger(context.Background(), dom.TriggerParams{})
	if err != nil {
		t.Fatalf("Trigger: %v", err)
	}
	if res.SkipReason != dom.SkipKillSwitch {
		t.Fatalf("skip reason = %q, want kill_switch", res.SkipReason)
	}
	if len(h.cands.calls) != 0 || len(h.enq.topics) != 0 {
		t.Fatalf("disabled trigger should touch nothing")
	}
}

func TestTriggerMonthlyLimit(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.quota.monthly = 2000

	res, err := h.svc.Trigger(context.Background(), dom.TriggerParams{})
	if err != nil {
		t.Fatalf("Trigger: %v", err)
	}
	if res.SkipReason != dom.SkipMonthlyLimit {
		t.Fatalf("skip reason = %q, want monthly_limit", res.SkipReason)
	}
	if res.MonthlyRemaining != 0 {
		t.Fatalf("monthly remaining = %d, want 0", res.MonthlyRemaining)
	}
	if len(h.cands.calls) != 0 {
		t.Fatalf("no candidate select past the monthly cap")
	}
}

func TestTriggerDailyLimit(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.quota.daily = 500

	res, err := h.svc.Trigger(context.Background(), dom.TriggerParams{})
	if err != nil {
		t.Fatalf("Trigger: %v", err)
	}
	if res.SkipReason != dom.SkipDailyLimit {
		t.Fatalf("skip reason = %q, want daily_limit", res.SkipReason)
	}
	if res.DailyRemaining != 0 {
		t.Fatalf("daily remaining = %d, want 0", res.DailyRemaining)
	}
}

func TestTriggerNoEligibleBeers(t *testing.T) {
	t.Parallel()

	h := newHarness(t)

	res, err := h.svc.Trigger(context.Background(), dom.TriggerParams{})
	if err != nil {
		t.Fatalf("Trigger: %v", err)
	}
	if res.SkipReason != dom.SkipNoEligible || res.BeersQueued != 0 {
		t.Fatalf("result = %+v, want no_eligible_beers", res)
	}
	if len(h.enq.topics) != 0 {
		t.Fatalf("nothing should enqueue without candidates")
	}
}

func TestTriggerStoreFailureIsRetriable(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.quota.dailyErr = perr.DBf("connection refused")

	_, err := h.svc.Trigger(context.Background(), dom.TriggerParams{})
	if err == nil {
		t.Fatalf("expected the snapshot failure to surface")
	}
	if !perr.IsCode(err, perr.ErrorCodeDB) {
		t.Fatalf("error code = %v, want the db code preserved", perr.CodeOf(err))
	}
}

func TestTriggerEnqueueFailure(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.cands.out = candidates(2)
	h.enq.err = perr.DBf("queue insert failed")

	_, err := h.svc.Trigger(context.Background(), dom.TriggerParams{})
	if err == nil {
		t.Fatalf("expected the enqueue failure to surface")
	}
}
