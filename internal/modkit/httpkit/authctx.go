package httpkit

import (
	"net/http"
	"strings"

	perrs "taplist/internal/platform/errors"
	pnet "taplist/internal/platform/net"
)

// Actor returns the authenticated admin actor the auth middleware stamped
func Actor(r *http.Request) (string, error) {
	actor := pnet.Actor(r.Context())
	if actor == "" {
		return "", perrs.Unauthorizedf("missing bearer token")
	}
	return actor, nil
}

// RequestID returns the request id from the request context, empty when absent
func RequestID(r *http.Request) string {
	return pnet.RequestID(r.Context())
}

// Bearer returns the raw bearer token from the Authorization header.
// The scheme match is case-insensitive; the token comes back trimmed
func Bearer(r *http.Request) (string, error) {
	authz := r.Header.Get("Authorization")
	if strings.TrimSpace(authz) == "" {
		return "", perrs.Unauthorizedf("missing bearer token")
	}
	const prefix = "bearer "
	if len(authz) < len(prefix) || !strings.EqualFold(authz[:len(prefix)], prefix) {
		return "", perrs.Unauthorizedf("missing bearer token")
	}
	raw := strings.TrimSpace(authz[len(prefix):])
	if raw == "" {
		return "", perrs.Unauthorizedf("missing bearer token")
	}
	return raw, nil
}
