// Package module wires the dead-letter service and exposes its port
package module

import (
	"taplist/internal/modkit"
	"taplist/internal/modkit/httpkit"
	"taplist/internal/platform/queue"

	dom "taplist/internal/services/dlq/domain"
	"taplist/internal/services/dlq/service"
)

// Ports holds the ports exposed by the dlq module
type Ports struct {
	Admin dom.Port
}

// Module defines the dlq module. It mounts no routes of its own; the admin
// api fronts it
type Module struct {
	deps  modkit.Deps
	svc   *service.Svc
	ports Ports
}

// New constructs the dlq module
func New(deps modkit.Deps, cfg service.Config) *Module {
	svc := service.New(deps.PG, queue.NewProducer(deps.PG, 0), cfg)
	m := &Module{deps: deps, svc: svc}
	m.ports = Ports{Admin: svc}
	return m
}

// Service returns the concrete service for worker and janitor wiring
func (m *Module) Service() *service.Svc { return m.svc }

// Ports returns the module ports
func (m *Module) Ports() any { return m.ports }

// Name returns the module name
func (m *Module) Name() string { return "dlq" }

// Prefix returns the module config prefix (none)
func (m *Module) Prefix() string { return "" }

// MountRoutes returns no HTTP routes
func (m *Module) MountRoutes(_ httpkit.Router) {}
