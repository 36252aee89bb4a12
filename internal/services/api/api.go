// Package api assembles the HTTP surface: the public taplist reads, the
// admin triage endpoints, and health
package api

import (
	"taplist/internal/platform/config"
	"taplist/internal/platform/logger"
	"taplist/internal/platform/metrics"
	phttp "taplist/internal/platform/net/http"
	"taplist/internal/platform/queue"
	"taplist/internal/platform/store"

	"taplist/internal/modkit"
	"taplist/internal/modkit/httpkit"
	"taplist/internal/modkit/module"
	"taplist/internal/modkit/swaggerkit"

	apiadmin "taplist/internal/services/api/admin/module"
	apibeers "taplist/internal/services/api/beers/module"
	metamod "taplist/internal/services/api/meta/module"

	adminsvc "taplist/internal/services/admin/service"
	admissionmod "taplist/internal/services/admission/module"
	"taplist/internal/services/analytics"
	"taplist/internal/services/audit"
	beersmod "taplist/internal/services/beers/module"
	dlqmod "taplist/internal/services/dlq/module"
	dlqsvc "taplist/internal/services/dlq/service"
	quotamod "taplist/internal/services/quota/module"
)

// Options are the API options
type Options struct {
	Config config.Conf
	Store  *store.Store
	Logger *logger.Logger

	// Audit receives admin mutation entries; nil drops them
	Audit audit.Recorder
	// Analytics receives pipeline events from replays; nil drops them
	Analytics analytics.Emitter

	EnableSwagger  bool
	EnableProfiler bool
}

// Mount mounts the API service onto the given router
func Mount(r phttp.Router, opt Options) {
	// shared deps for modules
	deps := modkit.Deps{
		Cfg: opt.Config,
		PG:  opt.Store.PG,
		CH:  opt.Store.CH,
	}
	if opt.Logger != nil {
		deps.Log = *opt.Logger
	}

	emit := opt.Analytics
	if emit == nil {
		emit = analytics.Noop{}
	}
	aud := opt.Audit
	if aud == nil {
		aud = audit.Noop{}
	}

	// worker-side modules own the ports the HTTP modules front
	beers := beersmod.New(deps)
	quota := quotamod.New(deps)
	admission := admissionmod.New(deps)
	dlq := dlqmod.New(deps, dlqsvc.Config{Emitter: emit})

	beersPorts := module.MustPortsOf[beersmod.Ports](beers)
	quotaPorts := module.MustPortsOf[quotamod.Ports](quota)
	admissionPorts := module.MustPortsOf[admissionmod.Ports](admission)
	dlqPorts := module.MustPortsOf[dlqmod.Ports](dlq)

	// the manual trigger shares the consumer's kill switch and limits
	trigger := adminsvc.New(
		beersPorts.Candidates,
		quotaPorts.Quota,
		queue.NewProducer(deps.PG, 0),
		adminsvc.Config{
			Enabled:      opt.Config.MayBool("ENRICHMENT_ENABLED", true),
			DailyLimit:   opt.Config.MayInt("DAILY_ENRICHMENT_LIMIT", 500),
			MonthlyLimit: opt.Config.MayInt("MONTHLY_ENRICHMENT_LIMIT", 2000),
		},
	)

	mods := []module.Module{
		beers,
		quota,
		admission,
		dlq,
		metamod.New(deps, modkit.WithPorts(metamod.Ports{
			Guard: opt.Store.Guard,
			Quota: quotaPorts.Quota,
		})),
		apibeers.New(deps, modkit.WithPorts(apibeers.Ports{
			Query:     beersPorts.Query,
			Ingest:    beersPorts.Ingest,
			Admission: admissionPorts.Admission,
		})),
		apiadmin.New(deps, modkit.WithPorts(apiadmin.Ports{
			DLQ:     dlqPorts.Admin,
			Trigger: trigger,
			Audit:   aud,
		})),
	}

	// endpoints live at the root; the origin is a deployment contract
	r.Use(httpkit.CommonStack(opt.Config.MustString("ALLOWED_ORIGIN"))...)

	swaggerkit.Mount(r, opt.EnableSwagger)
	phttp.MountProfiler(r, "/debug", opt.EnableProfiler)
	metrics.Mount(r, true)

	for _, m := range mods {
		// register each module's ports under its own name (for cross-module lookups)
		module.Register(m.Name(), m.Ports())

		// mount module routes under its Prefix()
		m.MountRoutes(r)
	}
}
