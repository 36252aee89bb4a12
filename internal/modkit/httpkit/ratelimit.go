package httpkit

import (
	"net/http"

	phttp "taplist/internal/platform/net/http"
	"taplist/internal/platform/net/middleware"
)

// RateLimit wires the admission middleware to the platform JSON writer.
// key nil means the default "{client}:{endpoint}" composition
func RateLimit(p middleware.AdmissionPort, key middleware.KeyFunc) func(http.Handler) http.Handler {
	return middleware.RateLimit(p, key, phttp.JSON)
}
