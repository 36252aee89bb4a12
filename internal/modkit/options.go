package modkit

import (
	"net/http"

	"taplist/internal/modkit/httpkit"
)

// Option tweaks the settings a module is built with
type Option func(*settings)

// WithName overrides the module's registry name
func WithName(name string) Option {
	return func(s *settings) { s.name = name }
}

// WithPrefix overrides the path the module mounts under
func WithPrefix(prefix string) Option {
	return func(s *settings) { s.prefix = prefix }
}

// WithMiddlewares appends middleware applied to every route of the module
func WithMiddlewares(mw ...func(http.Handler) http.Handler) Option {
	return func(s *settings) { s.mw = append(s.mw, mw...) }
}

// WithPorts hands the module the port set it consumes. The concrete type
// is declared by the module itself
func WithPorts[T any](p T) Option {
	return func(s *settings) { s.ports = p }
}

// WithSwagger toggles the module's swagger docs
func WithSwagger(enabled bool) Option {
	return func(s *settings) { s.swaggerOn = enabled }
}

// WithSubrouter wraps the module's router before routes register, e.g. to
// interpose an extra seam in tests
func WithSubrouter(fn func(httpkit.Router) httpkit.Router) Option {
	return func(s *settings) { s.subrouter = fn }
}

// WithRegister appends an extra route-registration hook after the module's own
func WithRegister(fn func(httpkit.Router)) Option {
	return func(s *settings) { s.register = fn }
}
