package middleware

import (
	"context"
	"net/http"
	"strconv"

	perr "taplist/internal/platform/errors"
	pnet "taplist/internal/platform/net"
)

// AdmissionDecision is the verdict of a fixed-window rate limit check
type AdmissionDecision struct {
	Allowed   bool
	Limit     int
	Remaining int
	// ResetAt is the end of the current minute window in epoch milliseconds
	ResetAt int64
}

// AdmissionPort is the seam the rate limiter service implements.
// Implementations fail open: a store error still yields Allowed=true
type AdmissionPort interface {
	Check(ctx context.Context, key string) AdmissionDecision
}

// KeyFunc derives the admission key for a request
type KeyFunc func(r *http.Request) string

// ClientEndpointKey composes "{client}:{endpoint}" from RemoteAddr and the request path.
// Mount after RealIP so RemoteAddr holds the upstream client
func ClientEndpointKey(r *http.Request) string {
	host := r.RemoteAddr
	for i := len(host) - 1; i >= 0; i-- {
		if host[i] == ':' {
			host = host[:i]
			break
		}
	}
	return host + ":" + r.URL.Path
}

// RateLimit applies a per-client fixed-window limit and replies 429 when denied.
// Every response carries X-RateLimit headers so clients can self-throttle
func RateLimit(p AdmissionPort, key KeyFunc, write func(w http.ResponseWriter, status int, body any)) func(http.Handler) http.Handler {
	if key == nil {
		key = ClientEndpointKey
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if p == nil {
				next.ServeHTTP(w, r)
				return
			}
			d := p.Check(r.Context(), key(r))

			h := w.Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(d.ResetAt/1000, 10))

			if !d.Allowed {
				status, body := pnet.Error(
					perr.TooManyRequestsf("rate limit exceeded, retry after %d", d.ResetAt/1000),
					pnet.RequestID(r.Context()),
				)
				write(w, status, body)
				return
			}
			next.ServeHTTP(w, r.WithContext(pnet.WithClient(r.Context(), key(r))))
		})
	}
}
