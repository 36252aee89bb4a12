// Package httpkit is the HTTP surface modules build against. It aliases the
// platform http seams so module code never imports internal/platform/net/http
// directly, and adds the small amount of sugar the route tables use
package httpkit

import (
	"net/http"

	phttp "taplist/internal/platform/net/http"
)

type (
	// Envelope is the transport error envelope type
	Envelope = phttp.Envelope

	// ReplyMeta is embedded by success DTOs so the writer can stamp request_id
	ReplyMeta = phttp.ReplyMeta

	// Response is the HTTP response type
	Response = phttp.Response

	// Handler is the platform handler type
	Handler = phttp.Handler

	// Router is a re-export of the platform router seam
	Router = phttp.Router
)

// Call adapts a body-less handler. Errors map to status plus envelope, and a
// handler that already returns a Response passes through unwrapped
func Call(fn func(*http.Request) (any, error)) Handler {
	return phttp.Handle(func(r *http.Request) phttp.Response {
		out, err := fn(r)
		if err != nil {
			return phttp.Error(err)
		}
		if resp, ok := out.(phttp.Response); ok {
			return resp
		}
		return phttp.OK(out)
	})
}
