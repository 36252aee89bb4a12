package httpkit

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	perrs "taplist/internal/platform/errors"
	phttp "taplist/internal/platform/net/http"

	"github.com/go-chi/chi/v5"
)

// staticPort admits exactly one token and labels the actor
type staticPort struct {
	token string
	actor string
}

func (p staticPort) Parse(r *http.Request) (string, error) {
	raw, err := Bearer(r)
	if err != nil {
		return "", err
	}
	if raw != p.token {
		return "", perrs.Unauthorizedf("invalid bearer token")
	}
	return p.actor, nil
}

func protectedMux(t *testing.T) http.Handler {
	t.Helper()
	r := phttp.AdaptChi(chi.NewMux())

	Protected(r, staticPort{token: "pour-key", actor: "tap-admin"}, func(pr Router) {
		Get(pr, "/admin/dlq", func(req *http.Request) (any, error) {
			actor, err := Actor(req)
			if err != nil {
				return nil, err
			}
			return map[string]string{"actor": actor}, nil
		})
	})
	// sibling route outside the group stays open
	Get(r, "/beers", func(*http.Request) (any, error) {
		return map[string]int{"total": 0}, nil
	})
	return r.Mux()
}

func TestProtected_RejectsMissingToken(t *testing.T) {
	mux := protectedMux(t)

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin/dlq", nil))

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}

func TestProtected_RejectsWrongToken(t *testing.T) {
	mux := protectedMux(t)

	req := httptest.NewRequest(http.MethodGet, "/admin/dlq", nil)
	req.Header.Set("Authorization", "Bearer stale-key")
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}

func TestProtected_StampsActorForHandlers(t *testing.T) {
	mux := protectedMux(t)

	req := httptest.NewRequest(http.MethodGet, "/admin/dlq", nil)
	req.Header.Set("Authorization", "Bearer pour-key")
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body["actor"] != "tap-admin" {
		t.Fatalf("actor = %q, want tap-admin", body["actor"])
	}
}

func TestProtected_LeavesSiblingRoutesOpen(t *testing.T) {
	mux := protectedMux(t)

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/beers", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
}
