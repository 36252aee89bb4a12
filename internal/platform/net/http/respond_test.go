package http_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	perr "taplist/internal/platform/errors"
	pnet "taplist/internal/platform/net"
	phttp "taplist/internal/platform/net/http"
)

// reqWithReqID builds a request whose context already carries an inbound
// request id, as if the RequestID middleware had run
func reqWithReqID(method, path, rid string) *http.Request {
	req := httptest.NewRequest(method, path, nil)
	return req.WithContext(pnet.WithRequest(req.Context(), rid))
}

func TestJSON_WritesStatusAndContentType(t *testing.T) {
	rec := httptest.NewRecorder()
	phttp.JSON(rec, http.StatusTeapot, map[string]any{"style": "gose"})
	if rec.Code != http.StatusTeapot {
		t.Fatalf("status: expected 418, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json; charset=utf-8" {
		t.Fatalf("content type: %q", ct)
	}
}

func TestRespondError_BuildsEnvelope(t *testing.T) {
	rec := httptest.NewRecorder()
	req := reqWithReqID("GET", "/v1/beers/nope", "tap-req-11")

	phttp.RespondError(rec, req, perr.NotFoundf("beer not found"))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	var env phttp.Envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if env.Success || env.Error == nil || env.Error.Code != "NOT_FOUND" {
		t.Fatalf("bad envelope: %+v", env)
	}
	if env.RequestID != "tap-req-11" {
		t.Fatalf("request id not carried: %+v", env)
	}
}

// DTOs embedding ReplyMeta get the request id stamped by the writer
func TestHandle_OKStampsReplyMeta(t *testing.T) {
	type dto struct {
		phttp.ReplyMeta
		Name string `json:"name"`
	}
	h := phttp.Handle(func(r *http.Request) phttp.Response {
		return phttp.OK(&dto{Name: "hazy ipa"})
	})

	rec := httptest.NewRecorder()
	h(rec, reqWithReqID("GET", "/v1/beers/7", "tap-req-12"))

	if rec.Code != http.StatusOK {
		t.Fatalf("status: %d", rec.Code)
	}
	var got map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got["request_id"] != "tap-req-12" || got["name"] != "hazy ipa" {
		t.Fatalf("bad stamped body: %+v", got)
	}
}

func TestHandle_ZeroStatusDefaultsTo200(t *testing.T) {
	h := phttp.Handle(func(r *http.Request) phttp.Response {
		return phttp.Response{Body: map[string]int{"taps": 24}}
	})
	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest("GET", "/v1/taplists/3", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("zero status should write 200, got %d", rec.Code)
	}
}

func TestHandle_NoContentWritesEmptyBody(t *testing.T) {
	h := phttp.Handle(func(r *http.Request) phttp.Response {
		return phttp.NoContent()
	})
	rec := httptest.NewRecorder()
	h(rec, reqWithReqID("DELETE", "/v1/admin/overrides/9", "tap-req-13"))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status: %d", rec.Code)
	}
	if rec.Body.Len() != 0 {
		t.Fatalf("204 must not carry a body, got %q", rec.Body.String())
	}
}

func TestHandle_ErrorBodyDecidesStatus(t *testing.T) {
	h := phttp.Handle(func(r *http.Request) phttp.Response {
		return phttp.Error(perr.New(perr.ErrorCodeForbidden, "admin key required"))
	})
	rec := httptest.NewRecorder()
	h(rec, reqWithReqID("POST", "/v1/admin/requeue", "tap-req-14"))

	if rec.Code != http.StatusForbidden {
		t.Fatalf("status: %d", rec.Code)
	}
	var env phttp.Envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if env.Error == nil || env.Error.Code != "UNAUTHORIZED" {
		t.Fatalf("bad envelope: %+v", env)
	}
}

func TestHandle_ExtraHeadersCarryThrough(t *testing.T) {
	h := phttp.Handle(func(r *http.Request) phttp.Response {
		resp := phttp.OK(map[string]string{"status": "ok"})
		resp.Header = http.Header{}
		resp.Header.Set("X-Taplist-Version", "42")
		return resp
	})
	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest("GET", "/v1/taplists/3", nil))
	if got := rec.Header().Get("X-Taplist-Version"); got != "42" {
		t.Fatalf("expected header to survive, got %q", got)
	}
}

func TestHandle_ForeignErrorIsMasked(t *testing.T) {
	h := phttp.Handle(func(r *http.Request) phttp.Response {
		return phttp.Error(errors.New("pour sensor caught fire"))
	})
	rec := httptest.NewRecorder()
	h(rec, reqWithReqID("GET", "/v1/beers/7", "tap-req-15"))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 for a foreign error, got %d", rec.Code)
	}
	var env phttp.Envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if env.Error == nil || env.Error.Code != "INTERNAL" {
		t.Fatalf("bad envelope: %+v", env)
	}
	if env.Error.Message != "internal error" {
		t.Fatalf("foreign error message leaked: %q", env.Error.Message)
	}
}
