package http

import (
	stdhttp "net/http"

	mw "github.com/go-chi/chi/v5/middleware"
)

// MountProfiler exposes the pprof handlers under prefix, e.g. "/debug".
// Gated by a flag so production configs can leave it off.
func MountProfiler(r Router, prefix string, enabled bool) {
	if !enabled {
		return
	}
	// The Router interface has no Mount, so strip the prefix by hand before
	// handing off to chi's profiler mux.
	h := stdhttp.StripPrefix(prefix, mw.Profiler())

	r.Get(prefix, func(w stdhttp.ResponseWriter, req *stdhttp.Request) {
		h.ServeHTTP(w, req)
	})
	r.Get(prefix+"/*", func(w stdhttp.ResponseWriter, req *stdhttp.Request) {
		h.ServeHTTP(w, req)
	})
}
