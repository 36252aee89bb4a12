package middleware_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"taplist/internal/platform/logger"
	"taplist/internal/platform/net/middleware"
)

func TestAccessLog_RecordsStatusAndBytes(t *testing.T) {
	sink.Reset()

	mw := middleware.AccessLog(middleware.AccessLogOptions{})
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, "tap ")
		_, _ = io.WriteString(w, "list")
	})

	req := httptest.NewRequest(http.MethodGet, "/v1/taplists/482", nil)
	rr := httptest.NewRecorder()
	mw(next).ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated || rr.Body.String() != "tap list" {
		t.Fatalf("response mangled: %d %q", rr.Code, rr.Body.String())
	}

	out := sink.String()
	for _, want := range []string{
		`"status":201`,
		`"bytes":8`,
		`"method":"GET"`,
		`"path":"/v1/taplists/482"`,
		`"message":"request served"`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("log line missing %s:\n%s", want, out)
		}
	}
}

func TestAccessLog_SlowRequestLogsWarn(t *testing.T) {
	sink.Reset()

	mw := middleware.AccessLog(middleware.AccessLogOptions{Slow: time.Nanosecond})
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(time.Millisecond)
		w.WriteHeader(http.StatusNoContent)
	})

	rr := httptest.NewRecorder()
	mw(next).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/beers", nil))

	if rr.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rr.Code)
	}
	if out := sink.String(); !strings.Contains(out, `"level":"warn"`) {
		t.Fatalf("slow request should log at warn:\n%s", out)
	}
}

func TestAccessLog_CarriesRequestID(t *testing.T) {
	sink.Reset()

	mw := middleware.AccessLog(middleware.AccessLogOptions{})
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})

	req := httptest.NewRequest(http.MethodGet, "/v1/beers", nil)
	req = req.WithContext(logger.WithRequestID(req.Context(), "tap-req-7"))
	mw(next).ServeHTTP(httptest.NewRecorder(), req)

	if out := sink.String(); !strings.Contains(out, `"request_id":"tap-req-7"`) {
		t.Fatalf("log line missing request id:\n%s", out)
	}
}

func TestAccessLog_ImplicitWriteRecordsAs200(t *testing.T) {
	sink.Reset()

	mw := middleware.AccessLog(middleware.AccessLogOptions{})
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "pong")
	})

	mw(next).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/ping", nil))

	if out := sink.String(); !strings.Contains(out, `"status":200`) {
		t.Fatalf("implicit 200 not recorded:\n%s", out)
	}
}
