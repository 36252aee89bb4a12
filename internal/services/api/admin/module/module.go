// Package module wires the admin API behind the bearer secret gate
package module

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"

	modkit "taplist/internal/modkit"
	"taplist/internal/modkit/httpkit"
	"taplist/internal/platform/config"
	perr "taplist/internal/platform/errors"
	str "taplist/internal/platform/strings"

	ahttp "taplist/internal/services/api/admin/http"
	admindom "taplist/internal/services/admin/domain"
	"taplist/internal/services/audit"
	dlqdom "taplist/internal/services/dlq/domain"
)

// Ports declares the injected collaborators for the admin API
type Ports struct {
	DLQ     dlqdom.Port
	Trigger admindom.Port
	Audit   audit.Recorder
}

// Options is the gate config
type Options struct {
	Secret string
}

// FromConfig reads the admin secret; the name is an unprefixed deployment
// contract key
func FromConfig(cfg config.Conf) Options {
	return Options{Secret: cfg.MustString("ADMIN_SECRET")}
}

// Module implements the admin API module
type Module struct {
	deps   modkit.Deps
	name   string
	prefix string

	mws       []func(http.Handler) http.Handler
	swaggerOn bool

	subrouter func(httpkit.Router) httpkit.Router
	register  func(httpkit.Router)
}

// New constructs the admin module
func New(deps modkit.Deps, opts ...modkit.Option) modkit.Module {
	b := modkit.Build(append([]modkit.Option{
		modkit.WithName("admin"),
		modkit.WithPrefix("/admin"),
	}, opts...)...)

	cfg := FromConfig(deps.Cfg)

	var injected Ports
	if p, ok := b.Ports.(Ports); ok {
		injected = p
	}
	if injected.DLQ == nil || injected.Trigger == nil {
		panic("admin API module requires DLQ and Trigger ports")
	}
	if injected.Audit == nil {
		injected.Audit = audit.Noop{}
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
		httpkit.Protected(r, bearerPort{secret: cfg.Secret}, func(pr httpkit.Router) {
			ahttp.Register(pr, ahttp.Deps{
				DLQ:     injected.DLQ,
				Trigger: injected.Trigger,
				Audit:   injected.Audit,
			})
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
func (m *Module) Name() string { return str.MustString(m.name, "admin") }

// Prefix returns the module route prefix
func (m *Module) Prefix() string { return str.MustPrefix(m.prefix) }

// Ports returns no exported ports; the module only consumes
func (m *Module) Ports() any { return nil }

// bearerPort admits requests whose bearer token matches the admin secret.
// The actor label is a short fingerprint so audit rows never hold the key
type bearerPort struct{ secret string }

func (p bearerPort) Parse(r *http.Request) (string, error) {
	tok, err := httpkit.Bearer(r)
	if err != nil {
		return "", err
	}
	if subtle.ConstantTimeCompare([]byte(tok), []byte(p.secret)) != 1 {
		return "", perr.Unauthorizedf("invalid admin token")
	}
	sum := sha256.Sum256([]byte(tok))
	return "admin-" + hex.EncodeToString(sum[:4]), nil
}
