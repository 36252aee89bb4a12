package audit

import (
	"context"
	"errors"
	"strings"
	"testing"

	"taplist/internal/platform/store"
)

type fakeTag string

func (t fakeTag) String() string      { return string(t) }
func (t fakeTag) RowsAffected() int64 { return 1 }

type execCall struct {
	sql  string
	args []any
}

type fakeQuerier struct {
	execs   []execCall
	execErr error
}

func (f *fakeQuerier) Exec(_ context.Context, sql string, args ...any) (store.CommandTag, error) {
	f.execs = append(f.execs, execCall{sql: sql, args: args})
	if f.execErr != nil {
		return nil, f.execErr
	}
	return fakeTag("INSERT 0 1"), nil
}

func (f *fakeQuerier) Query(context.Context, string, ...any) (store.Rows, error) {
	return nil, errors.New("unexpected query")
}

func (f *fakeQuerier) QueryRow(context.Context, string, ...any) store.Row { return nil }

// drain runs the pump against an already-cancelled context so queued
// entries flush synchronously
func drain(t *testing.T, rec *PG) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := rec.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Run = %v, want context.Canceled", err)
	}
}

func TestRunFlushesQueuedEntries(t *testing.T) {
	t.Parallel()

	q := &fakeQuerier{}
	rec := NewPG(q, Config{Buffer: 8})

	rec.Record(context.Background(), Entry{
		OccurredAt:   1750000000000,
		Actor:        "key-abc123",
		Action:       ActionDlqReplay,
		SubjectCount: 2,
		Detail:       map[string]any{"ids": []int64{4, 5}},
		RequestID:    "req-1",
	})
	rec.Record(context.Background(), Entry{Action: ActionEnrichTrigger})

	drain(t, rec)

	if len(q.execs) != 2 {
		t.Fatalf("inserts = %d, want 2", len(q.execs))
	}
	first := q.execs[0]
	if !strings.Contains(first.sql, "INSERT INTO audit_log") {
		t.Fatalf("sql = %q", first.sql)
	}
	if first.args[0].(int64) != 1750000000000 || first.args[1].(string) != "key-abc123" {
		t.Fatalf("args = %+v", first.args)
	}
	if first.args[2].(string) != "dlq_replay" || first.args[3].(int) != 2 {
		t.Fatalf("args = %+v", first.args)
	}
	if !strings.Contains(first.args[4].(string), `"ids":[4,5]`) {
		t.Fatalf("detail = %v", first.args[4])
	}
	if first.args[5].(string) != "req-1" {
		t.Fatalf("request_id = %v", first.args[5])
	}

	second := q.execs[1]
	if second.args[1].(string) != ActorSystem {
		t.Fatalf("blank actor should default to system, got %v", second.args[1])
	}
	if ts := second.args[0].(int64); ts <= 0 {
		t.Fatalf("missing timestamp should be stamped, got %d", ts)
	}
	if second.args[4].(string) != "{}" {
		t.Fatalf("nil detail should land as an empty object, got %v", second.args[4])
	}
}

func TestRecordDropsWhenFull(t *testing.T) {
	t.Parallel()

	q := &fakeQuerier{}
	rec := NewPG(q, Config{Buffer: 1})

	rec.Record(context.Background(), Entry{Action: ActionDlqPurge, SubjectCount: 1})
	rec.Record(context.Background(), Entry{Action: ActionDlqPurge, SubjectCount: 2})

	drain(t, rec)

	if len(q.execs) != 1 {
		t.Fatalf("inserts = %d, want the overflow entry dropped", len(q.execs))
	}
	if q.execs[0].args[3].(int) != 1 {
		t.Fatalf("kept entry = %+v, want the first one", q.execs[0].args)
	}
}

func TestInsertFailureNeverBlocks(t *testing.T) {
	t.Parallel()

	q := &fakeQuerier{execErr: errors.New("db down")}
	rec := NewPG(q, Config{})

	rec.Record(context.Background(), Entry{Action: ActionDlqReplay})
	rec.Record(context.Background(), Entry{Action: ActionDlqAcknowledge})

	drain(t, rec)

	if len(q.execs) != 2 {
		t.Fatalf("inserts attempted = %d, want 2 despite failures", len(q.execs))
	}
}

func TestNoopRecord(t *testing.T) {
	t.Parallel()

	var r Recorder = Noop{}
	r.Record(context.Background(), Entry{Action: ActionEnrichTrigger})
}
