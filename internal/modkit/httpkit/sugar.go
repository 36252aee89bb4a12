package httpkit

import (
	"net/http"

	phttp "taplist/internal/platform/net/http"
)

// Get mounts a body-less handler under GET. The return value is wrapped in
// the standard envelope unless the handler returns a Response itself
func Get(r Router, path string, h func(*http.Request) (any, error)) {
	r.Get(path, Call(h))
}

// PostJSON mounts a JSON-body handler under POST. The body is bound and
// validated (struct tags) before h runs; bind failures never reach h
func PostJSON[T any](r Router, path string, h func(*http.Request, T) (any, error)) {
	r.Post(path, phttp.JSONHandler(h))
}
