// Package module wires the health endpoint over the store guard and the
// quota port
package module

import (
	"context"
	"net/http"

	modkit "taplist/internal/modkit"
	"taplist/internal/modkit/httpkit"
	"taplist/internal/platform/config"
	str "taplist/internal/platform/strings"

	metahttp "taplist/internal/services/api/meta/http"
	quotadom "taplist/internal/services/quota/domain"
)

// Ports declares the injected collaborators for the health endpoint
type Ports struct {
	// Guard pings every configured store seam
	Guard func(ctx context.Context) error
	Quota quotadom.Port
}

// Module implements the health module
type Module struct {
	deps   modkit.Deps
	name   string
	prefix string

	mws       []func(http.Handler) http.Handler
	swaggerOn bool

	subrouter func(httpkit.Router) httpkit.Router
	register  func(httpkit.Router)
}

// New constructs the health module
func New(deps modkit.Deps, opts ...modkit.Option) modkit.Module {
	b := modkit.Build(append([]modkit.Option{
		modkit.WithName("meta"),
		modkit.WithPrefix("/health"),
	}, opts...)...)

	var injected Ports
	if p, ok := b.Ports.(Ports); ok {
		injected = p
	}
	if injected.Guard == nil || injected.Quota == nil {
		panic("meta module requires Guard and Quota ports")
	}

	limits := metahttp.Limits{
		DailyEnrichment:   deps.Cfg.MayInt("DAILY_ENRICHMENT_LIMIT", 500),
		MonthlyEnrichment: deps.Cfg.MayInt("MONTHLY_ENRICHMENT_LIMIT", 2000),
		DailyCleanup:      deps.Cfg.MayInt("DAILY_CLEANUP_LIMIT", 1000),
		EnrichmentEnabled: enrichmentEnabled(deps.Cfg),
	}

	m := &Module{
		deps:      deps,
		name:      b.Name,
		prefix:    b.Prefix,
		mws:       b.Mw,
		swaggerOn: b.SwaggerOn,
		subrouter: b.Subrouter,
	}

	external := b.Register
	m.register = func(r httpkit.Router) {
		metahttp.Register(r, metahttp.Deps{
			Guard:  injected.Guard,
			Quota:  injected.Quota,
			Limits: limits,
		})
		if external != nil {
			external(r)
		}
	}
	return m
}

// enrichmentEnabled reads the kill switch; anything but "false" leaves it on
func enrichmentEnabled(cfg config.Conf) bool {
	return cfg.MayBool("ENRICHMENT_ENABLED", true)
}

// MountRoutes mounts the module routes on the given router
func (m *Module) MountRoutes(r httpkit.Router) {
	r.Route(m.prefix, func(rr httpkit.Router) {
		for _, mw := range m.mws {
			rr.Use(mw)
		}
		if m.subrouter != nil {
			rr = m.subrouter(rr)
		}
		if m.register != nil {
			m.register(rr)
		}
	})
}

// Name returns the module name
func (m *Module) Name() string { return str.MustString(m.name, "meta") }

// Prefix returns the module route prefix
func (m *Module) Prefix() string { return str.MustPrefix(m.prefix) }

// Ports returns no exported ports; the module only consumes
func (m *Module) Ports() any { return nil }
