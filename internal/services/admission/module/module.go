// Package module wires the admission service and exposes its port
package module

import (
	"taplist/internal/modkit"
	"taplist/internal/modkit/httpkit"
	"taplist/internal/platform/config"

	dom "taplist/internal/services/admission/domain"
	"taplist/internal/services/admission/service"
)

// Ports holds the ports exposed by the admission module
type Ports struct {
	Admission dom.Port
}

// Module defines the admission module (no routes of its own)
type Module struct {
	deps  modkit.Deps
	svc   *service.Svc
	ports Ports
}

// Options controls the admission window
type Options struct {
	RPM int
}

// FromConfig reads the public rate limit; the name is unprefixed on purpose,
// it is part of the deployment contract
func FromConfig(cfg config.Conf) Options {
	return Options{RPM: cfg.MayInt("RATE_LIMIT_RPM", 60)}
}

// New constructs the admission module
func New(deps modkit.Deps) *Module {
	opts := FromConfig(deps.Cfg)
	svc := service.New(deps.PG, service.Config{Limit: opts.RPM})

	m := &Module{deps: deps, svc: svc}
	m.ports = Ports{Admission: svc}
	return m
}

// Service returns the concrete service for callers that need purge access
func (m *Module) Service() *service.Svc { return m.svc }

// Ports returns the module ports
func (m *Module) Ports() any { return m.ports }

// Name returns the module name
func (m *Module) Name() string { return "admission" }

// Prefix returns the module config prefix (none)
func (m *Module) Prefix() string { return "" }

// MountRoutes returns no HTTP routes; admission rides along as middleware
func (m *Module) MountRoutes(_ httpkit.Router) {}
