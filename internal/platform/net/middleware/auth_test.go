package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	perr "taplist/internal/platform/errors"
	pnet "taplist/internal/platform/net"
	"taplist/internal/platform/net/middleware"
)

type portFunc func(*http.Request) (string, error)

func (f portFunc) Parse(r *http.Request) (string, error) { return f(r) }

func TestAuth(t *testing.T) {
	admit := portFunc(func(*http.Request) (string, error) { return "admin:ab12", nil })
	reject := portFunc(func(*http.Request) (string, error) {
		return "", perr.Unauthorizedf("missing bearer token")
	})

	cases := []struct {
		name       string
		port       middleware.AuthPort
		wantStatus int
		wantActor  string
		wantNext   bool
	}{
		{"nil port passes through", nil, http.StatusOK, "", true},
		{"rejection blocks with mapped status", reject, http.StatusUnauthorized, "", false},
		{"actor lands on the context", admit, http.StatusOK, "admin:ab12", true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var wroteBody any
			write := func(w http.ResponseWriter, status int, body any) {
				wroteBody = body
				w.WriteHeader(status)
			}

			var nextRan bool
			var seenActor string
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				nextRan = true
				seenActor = pnet.Actor(r.Context())
				w.WriteHeader(http.StatusOK)
			})

			rr := httptest.NewRecorder()
			middleware.Auth(tc.port, write)(next).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/admin/dlq", nil))

			if rr.Code != tc.wantStatus {
				t.Fatalf("status = %d, want %d", rr.Code, tc.wantStatus)
			}
			if nextRan != tc.wantNext {
				t.Fatalf("next ran = %v, want %v", nextRan, tc.wantNext)
			}
			if seenActor != tc.wantActor {
				t.Fatalf("actor = %q, want %q", seenActor, tc.wantActor)
			}
			if !tc.wantNext {
				env, ok := wroteBody.(pnet.Wire)
				if !ok {
					t.Fatalf("rejection body is %T, want pnet.Wire", wroteBody)
				}
				if env.Success || env.Error == nil || env.Error.Code != "UNAUTHORIZED" {
					t.Fatalf("rejection envelope = %+v", env)
				}
			}
		})
	}
}
