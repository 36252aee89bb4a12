package middleware

import (
	"net/http"
	"time"

	"taplist/internal/platform/logger"
)

// AccessLogOptions tunes the per-request log line
type AccessLogOptions struct {
	// Slow promotes requests at or over this duration to warn. Zero disables
	Slow time.Duration
}

// statusWriter records the status and byte count the handler produced
type statusWriter struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (sw *statusWriter) WriteHeader(code int) {
	sw.status = code
	sw.ResponseWriter.WriteHeader(code)
}

func (sw *statusWriter) Write(b []byte) (int, error) {
	n, err := sw.ResponseWriter.Write(b)
	sw.bytes += n
	return n, err
}

// AccessLog emits one line per request: method, path, status, bytes and
// elapsed time. Mount it outside RecoverJSON so panicking requests still
// log their 500, and after the id carry so the line is correlated
func AccessLog(opt AccessLogOptions) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			start := time.Now()

			next.ServeHTTP(sw, r)

			elapsed := time.Since(start)
			log := logger.C(r.Context())
			evt := log.Info()
			if opt.Slow > 0 && elapsed >= opt.Slow {
				evt = log.Warn()
			}
			evt.Int("status", sw.status).
				Int("bytes", sw.bytes).
				Dur("elapsed", elapsed).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Msg("request served")
		})
	}
}
