package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// chiRouter narrows chi.Router to the platform Router. The mux and the
// subrouters chi hands to Route and Group share the chi.Router interface,
// so one adapter covers the whole tree
type chiRouter struct{ r chi.Router }

// AdaptChi wraps a chi mux in the platform Router seam
func AdaptChi(m *chi.Mux) Router { return chiRouter{r: m} }

// toStd wraps a platform Handler for chi registration
func toStd(h Handler) http.HandlerFunc { return http.HandlerFunc(h) }

func (c chiRouter) Get(p string, h Handler)    { c.r.Method(http.MethodGet, p, toStd(h)) }
func (c chiRouter) Post(p string, h Handler)   { c.r.Method(http.MethodPost, p, toStd(h)) }
func (c chiRouter) Put(p string, h Handler)    { c.r.Method(http.MethodPut, p, toStd(h)) }
func (c chiRouter) Patch(p string, h Handler)  { c.r.Method(http.MethodPatch, p, toStd(h)) }
func (c chiRouter) Delete(p string, h Handler) { c.r.Method(http.MethodDelete, p, toStd(h)) }

func (c chiRouter) Handle(p string, h http.Handler)           { c.r.Handle(p, h) }
func (c chiRouter) Use(mw ...func(http.Handler) http.Handler) { c.r.Use(mw...) }

func (c chiRouter) Group(fn func(Router)) {
	c.r.Group(func(sub chi.Router) { fn(chiRouter{r: sub}) })
}

func (c chiRouter) Route(pattern string, fn func(Router)) {
	c.r.Route(pattern, func(sub chi.Router) { fn(chiRouter{r: sub}) })
}

// Mux returns the underlying chi handler
func (c chiRouter) Mux() http.Handler { return c.r }
