package pg

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/rs/zerolog"
)

func TestCompact(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want string
	}{
		{"SELECT 1", "SELECT 1"},
		{"  SELECT   1  ", " SELECT 1 "},
		{"SELECT\tbeer_id\nFROM\r\tenriched_beers WHERE  abv >  $1", "SELECT beer_id FROM enriched_beers WHERE abv > $1"},
		{"\n\nUPDATE\n\tenriched_beers  SET\r\nabv = $1", " UPDATE enriched_beers SET abv = $1"},
		{"", ""},
	}
	for i, c := range cases {
		if got := compact(c.in); got != c.want {
			t.Fatalf("case %d: compact(%q) = %q, want %q", i, c.in, got, c.want)
		}
	}
}

type traceLine struct {
	Level     string  `json:"level"`
	ElapsedMS float64 `json:"elapsed_ms"`
	Slow      bool    `json:"slow"`
	SQL       string  `json:"sql"`
	Args      any     `json:"args"`
	Error     string  `json:"error"`
	Message   string  `json:"message"`
	Component string  `json:"component,omitempty"`
	RequestID string  `json:"request_id,omitempty"`
}

func decodeTrace(t *testing.T, buf *bytes.Buffer) traceLine {
	t.Helper()
	var line traceLine
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line); err != nil {
		t.Fatalf("unmarshal trace line: %v\nraw=%s", err, buf.String())
	}
	return line
}

func TestTracer_InfoAndWarnPaths(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	tr := Tracer(zerolog.New(&buf), nil)

	ev := QueryEvent{
		SQL:       "SELECT  beer_id \n FROM  enriched_beers\tWHERE abv IS NULL",
		Args:      []any{25, "Mash Harbor"},
		ElapsedUS: 12345,
		Err:       errors.New("boom"),
		Slow:      false,
	}
	tr.OnQuery(context.Background(), ev)

	line := decodeTrace(t, &buf)
	if line.Level != "info" {
		t.Fatalf("expected level=info, got %q", line.Level)
	}
	wantMs := float64(ev.ElapsedUS) / 1000.0
	if math.Abs(line.ElapsedMS-wantMs) > 0.0005 {
		t.Fatalf("elapsed_ms mismatch: got %v want %v", line.ElapsedMS, wantMs)
	}
	if line.Slow {
		t.Fatalf("slow should be false")
	}
	if line.SQL != "SELECT beer_id FROM enriched_beers WHERE abv IS NULL" {
		t.Fatalf("sql not compacted: %q", line.SQL)
	}
	if arr, ok := line.Args.([]any); !ok || len(arr) != 2 || arr[0].(float64) != 25 || arr[1].(string) != "Mash Harbor" {
		t.Fatalf("args unexpected: %#v", line.Args)
	}
	if line.Error != "boom" {
		t.Fatalf("error field mismatch: %q", line.Error)
	}
	if line.Message != "pg query" {
		t.Fatalf("message mismatch: %q", line.Message)
	}
	if line.Component != "pg" {
		t.Fatalf("component mismatch: %q", line.Component)
	}

	// slow statements escalate to warn
	buf.Reset()
	ev.Slow = true
	tr.OnQuery(context.Background(), ev)

	line = decodeTrace(t, &buf)
	if line.Level != "warn" {
		t.Fatalf("expected level=warn, got %q", line.Level)
	}
	if !line.Slow {
		t.Fatalf("slow should be true")
	}
}

func TestTracer_StampsRequestID(t *testing.T) {
	t.Parallel()

	type ridKey struct{}
	extract := func(ctx context.Context) (string, bool) {
		s, _ := ctx.Value(ridKey{}).(string)
		return s, s != ""
	}

	var buf bytes.Buffer
	tr := Tracer(zerolog.New(&buf), extract)

	ctx := context.WithValue(context.Background(), ridKey{}, "tap-host/0007")
	tr.OnQuery(ctx, QueryEvent{SQL: "SELECT 1"})

	line := decodeTrace(t, &buf)
	if line.RequestID != "tap-host/0007" {
		t.Fatalf("request_id mismatch: %q", line.RequestID)
	}

	// no id on the context, no field on the line
	buf.Reset()
	tr.OnQuery(context.Background(), QueryEvent{SQL: "SELECT 1"})
	line = decodeTrace(t, &buf)
	if line.RequestID != "" {
		t.Fatalf("request_id should be absent, got %q", line.RequestID)
	}
}
