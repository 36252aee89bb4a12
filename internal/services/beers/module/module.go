// Package module wires the beer store service and exposes its ports
package module

import (
	"taplist/internal/modkit"
	"taplist/internal/modkit/httpkit"
	"taplist/internal/platform/queue"

	dom "taplist/internal/services/beers/domain"
	"taplist/internal/services/beers/service"
)

// Ports holds the ports exposed by the beers module
type Ports struct {
	Ingest     dom.IngestPort
	Query      dom.QueryPort
	Enrich     dom.EnrichPort
	Cleanup    dom.CleanupPort
	Candidates dom.CandidatePort
}

// Module defines the beers module. It mounts no routes of its own; the api
// modules front it
type Module struct {
	deps  modkit.Deps
	svc   *service.Svc
	ports Ports
}

// New constructs the beers module
func New(deps modkit.Deps) *Module {
	svc := service.New(deps.PG, queue.NewProducer(deps.PG, 0))
	m := &Module{deps: deps, svc: svc}
	m.ports = Ports{Ingest: svc, Query: svc, Enrich: svc, Cleanup: svc, Candidates: svc}
	return m
}

// Service returns the concrete service for worker wiring
func (m *Module) Service() *service.Svc { return m.svc }

// Ports returns the module ports
func (m *Module) Ports() any { return m.ports }

// Name returns the module name
func (m *Module) Name() string { return "beers" }

// Prefix returns the module config prefix (none)
func (m *Module) Prefix() string { return "" }

// MountRoutes returns no HTTP routes
func (m *Module) MountRoutes(_ httpkit.Router) {}
