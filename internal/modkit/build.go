package modkit

import (
	"net/http"

	"taplist/internal/modkit/httpkit"
)

// settings accumulates option values during Build
type settings struct {
	name      string
	prefix    string
	mw        []func(http.Handler) http.Handler
	ports     any
	swaggerOn bool
	subrouter func(httpkit.Router) httpkit.Router
	register  func(httpkit.Router)
}

// Built is the resolved construction state a module copies its fields from
type Built struct {
	Name      string
	Prefix    string
	Mw        []func(http.Handler) http.Handler
	Ports     any
	SwaggerOn bool

	// Subrouter and Register are never nil after Build
	Subrouter func(httpkit.Router) httpkit.Router
	Register  func(httpkit.Router)
}

// Build folds the options into a Built, filling no-op hook defaults
func Build(opts ...Option) Built {
	var s settings
	for _, o := range opts {
		o(&s)
	}
	if s.subrouter == nil {
		s.subrouter = func(r httpkit.Router) httpkit.Router { return r }
	}
	if s.register == nil {
		s.register = func(httpkit.Router) {}
	}
	return Built{
		Name:      s.name,
		Prefix:    s.prefix,
		Mw:        append([]func(http.Handler) http.Handler(nil), s.mw...),
		Ports:     s.ports,
		SwaggerOn: s.swaggerOn,
		Subrouter: s.subrouter,
		Register:  s.register,
	}
}
