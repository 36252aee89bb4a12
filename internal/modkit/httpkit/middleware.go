package httpkit

import (
	"compress/flate"
	"net/http"
	"time"

	"taplist/internal/platform/logger"
	pnet "taplist/internal/platform/net"
	phttp "taplist/internal/platform/net/http"
	"taplist/internal/platform/net/middleware"
	"taplist/internal/platform/store"
)

// slowRequest is the access log's warn threshold
const slowRequest = 500 * time.Millisecond

// CommonStack returns the baseline middleware for the public router.
// allowedOrigin is the single frontend origin CORS admits; the header set
// covers the api-key and bearer schemes the endpoint gates use
func CommonStack(allowedOrigin string) []func(http.Handler) http.Handler {
	return []func(http.Handler) http.Handler{
		// correlation first so every later layer logs the same id
		middleware.RequestID(),
		carryRequestID,
		middleware.RealIP(),

		// the access log sits outside recovery so panics still log a 500
		middleware.AccessLog(middleware.AccessLogOptions{Slow: slowRequest}),
		middleware.RecoverJSON,

		middleware.NoCache(),

		middleware.CORS(middleware.CORSOptions{
			AllowedOrigins: []string{allowedOrigin},
			AllowedHeaders: []string{
				"Accept",
				"Authorization",
				"Content-Type",
				"X-API-Key",
				"X-Request-ID",
			},
			ExposedHeaders: []string{
				"X-RateLimit-Limit",
				"X-RateLimit-Remaining",
				"X-RateLimit-Reset",
			},
		}),
		middleware.AllowContentType("application/json"),
		middleware.Compress(flate.BestSpeed),
		middleware.Heartbeat("/ping"),
		middleware.RedirectSlashes(),
		middleware.StripSlashes(),
		middleware.Timeout(30 * time.Second),
	}
}

// carryRequestID copies chi's request id onto the store and logger contexts
// so SQL trace lines and handler logs carry the same id as the access log
func carryRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := pnet.RequestID(r.Context()); id != "" {
			ctx := store.WithRequestID(r.Context(), id)
			r = r.WithContext(logger.WithRequestID(ctx, id))
		}
		next.ServeHTTP(w, r)
	})
}

// Auth adapts an AuthPort to the platform JSON writer
func Auth(p middleware.AuthPort) func(http.Handler) http.Handler {
	return middleware.Auth(p, phttp.JSON)
}
