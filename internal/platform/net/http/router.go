// Package http is the transport seam the modules mount against: a narrow
// Router interface over chi, the JSON reply envelope and writers, and the
// embedded server the binaries run.
package http

import "net/http"

// Handler is the handler type routes are registered with
type Handler = func(http.ResponseWriter, *http.Request)

// Router is the mounting surface handed to modules
type Router interface {
	Get(path string, h Handler)
	Post(path string, h Handler)
	Put(path string, h Handler)
	Patch(path string, h Handler)
	Delete(path string, h Handler)

	Handle(path string, h http.Handler)
	Use(mw ...func(http.Handler) http.Handler)
	Group(fn func(Router))
	Route(pattern string, fn func(Router))

	// Mux exposes the underlying handler for serving and tests
	Mux() http.Handler
}
