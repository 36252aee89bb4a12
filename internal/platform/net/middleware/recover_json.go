package middleware

import (
	"encoding/json"
	"net/http"
	"runtime/debug"

	perr "taplist/internal/platform/errors"
	"taplist/internal/platform/logger"
	pnet "taplist/internal/platform/net"
)

// RecoverJSON turns a handler panic into a JSON 500 and logs the stack.
// It encodes the envelope itself; the usual writer helpers live above
// this layer and may be what panicked
func RecoverJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			v := recover()
			if v == nil {
				return
			}
			reqID := pnet.RequestID(r.Context())

			logger.C(r.Context()).Error().
				Interface("panic", v).
				Bytes("stack", debug.Stack()).
				Msg("panic recovered")

			if reqID != "" {
				w.Header().Set("X-Request-ID", reqID)
			}
			status, body := pnet.Error(perr.PanicErrf("panic recovered"), reqID)
			w.Header().Set("Content-Type", "application/json; charset=utf-8")
			w.WriteHeader(status)
			_ = json.NewEncoder(w).Encode(body)
		}()
		next.ServeHTTP(w, r)
	})
}
