// Package module wires the quota service and exposes its port
package module

import (
	"taplist/internal/modkit"
	"taplist/internal/modkit/httpkit"

	dom "taplist/internal/services/quota/domain"
	"taplist/internal/services/quota/service"
)

// Ports holds the ports exposed by the quota module
type Ports struct {
	Quota dom.Port
}

// Module defines the quota module (no routes of its own)
type Module struct {
	deps  modkit.Deps
	svc   *service.Svc
	ports Ports
}

// New constructs the quota module
func New(deps modkit.Deps) *Module {
	svc := service.New(deps.PG)
	m := &Module{deps: deps, svc: svc}
	m.ports = Ports{Quota: svc}
	return m
}

// Service returns the concrete service for callers that need purge access
func (m *Module) Service() *service.Svc { return m.svc }

// Ports returns the module ports
func (m *Module) Ports() any { return m.ports }

// Name returns the module name
func (m *Module) Name() string { return "quota" }

// Prefix returns the module config prefix (none)
func (m *Module) Prefix() string { return "" }

// MountRoutes returns no HTTP routes
func (m *Module) MountRoutes(_ httpkit.Router) {}
