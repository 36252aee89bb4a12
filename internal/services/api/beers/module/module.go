// Package module wires the public beers API: the upstream taplist client,
// the admission window, and the optional api-key gate
package module

import (
	"crypto/subtle"
	"net/http"
	"time"

	"taplist/internal/adapters/taplist"
	modkit "taplist/internal/modkit"
	"taplist/internal/modkit/httpkit"
	"taplist/internal/platform/config"
	perr "taplist/internal/platform/errors"
	"taplist/internal/platform/net/middleware"
	str "taplist/internal/platform/strings"

	bhttp "taplist/internal/services/api/beers/http"
	dom "taplist/internal/services/beers/domain"
)

// Ports declares the injected collaborators for the public beers API
type Ports struct {
	Query     dom.QueryPort
	Ingest    dom.IngestPort
	Admission middleware.AdmissionPort
}

// Options is the upstream and gate config
type Options struct {
	BaseURL  string
	CacheTTL time.Duration
	StoreIDs []string
	APIKey   string
}

// FromConfig reads the upstream taplist settings; the names are unprefixed
// deployment contract keys
func FromConfig(cfg config.Conf) Options {
	return Options{
		BaseURL:  cfg.MustString("FLYING_SAUCER_API_BASE"),
		CacheTTL: cfg.MayDuration("FLYING_SAUCER_CACHE_TTL", time.Minute),
		StoreIDs: cfg.MayCSV("FLYING_SAUCER_STORE_IDS", nil),
		APIKey:   cfg.MayString("API_KEY", ""),
	}
}

// Module implements the public beers API module
type Module struct {
	deps   modkit.Deps
	name   string
	prefix string

	mws       []func(http.Handler) http.Handler
	swaggerOn bool

	subrouter func(httpkit.Router) httpkit.Router
	register  func(httpkit.Router)
}

// New constructs the beers API module
func New(deps modkit.Deps, opts ...modkit.Option) modkit.Module {
	b := modkit.Build(append([]modkit.Option{
		modkit.WithName("beers"),
		modkit.WithPrefix("/beers"),
	}, opts...)...)

	cfg := FromConfig(deps.Cfg)

	var injected Ports
	if p, ok := b.Ports.(Ports); ok {
		injected = p
	}
	if injected.Query == nil || injected.Ingest == nil {
		panic("beers API module requires Query and Ingest ports (from services/beers)")
	}

	tap := taplist.New(taplist.Options{
		BaseURL:  cfg.BaseURL,
		CacheTTL: cfg.CacheTTL,
	})

	// admission first so a flooding client never reaches the key check
	mws := append([]func(http.Handler) http.Handler(nil), b.Mw...)
	if injected.Admission != nil {
		mws = append(mws, httpkit.RateLimit(injected.Admission, nil))
	}
	if cfg.APIKey != "" {
		mws = append(mws, httpkit.Auth(keyPort{key: cfg.APIKey}))
	}

	m := &Module{
		deps:      deps,
		name:      b.Name,
		prefix:    b.Prefix,
		mws:       mws,
		swaggerOn: b.SwaggerOn,
		subrouter: b.Subrouter,
	}

	external := b.Register
	m.register = func(r httpkit.Router) {
		bhttp.Register(r, bhttp.Deps{
			Tap:    tap,
			Query:  injected.Query,
			Ingest: injected.Ingest,
			Stores: bhttp.NewStoreSet(cfg.StoreIDs),
		})
		if external != nil {
			external(r)
		}
	}
	return m
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
func (m *Module) Name() string { return str.MustString(m.name, "beers") }

// Prefix returns the module route prefix
func (m *Module) Prefix() string { return str.MustPrefix(m.prefix) }

// Ports returns no exported ports; the module only consumes
func (m *Module) Ports() any { return nil }

// keyPort admits requests presenting the configured X-API-Key header
type keyPort struct{ key string }

func (p keyPort) Parse(r *http.Request) (string, error) {
	got := r.Header.Get("X-API-Key")
	if got == "" || subtle.ConstantTimeCompare([]byte(got), []byte(p.key)) != 1 {
		return "", perr.Unauthorizedf("invalid api key")
	}
	return "api-key", nil
}
