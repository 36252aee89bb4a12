// taplist-janitor runs the scheduled sweeps: dead-letter retention and
// release, rate-limit and quota counter purges, and the stale-row
// enrichment trigger
package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"taplist/internal/modkit"
	"taplist/internal/modkit/module"
	"taplist/internal/platform/config"
	"taplist/internal/platform/logger"
	"taplist/internal/platform/queue"
	"taplist/internal/platform/store"
	ptime "taplist/internal/platform/time"

	admindom "taplist/internal/services/admin/domain"
	adminsvc "taplist/internal/services/admin/service"
	admissionmod "taplist/internal/services/admission/module"
	admissionsvc "taplist/internal/services/admission/service"
	"taplist/internal/services/audit"
	beersmod "taplist/internal/services/beers/module"
	dlqmod "taplist/internal/services/dlq/module"
	dlqsvc "taplist/internal/services/dlq/service"
	quotamod "taplist/internal/services/quota/module"
	quotasvc "taplist/internal/services/quota/service"

	"golang.org/x/sync/errgroup"
)

func main() {
	root := config.New()
	pgCfg := root.Prefix("SERVICE_PGSQL_")
	jCfg := root.Prefix("JANITOR_")
	l := logger.Get()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(ctx, store.Config{
		AppName: "taplist-janitor",
		PG: store.PGConfig{
			Enabled:     true,
			URL:         pgCfg.MustString("DSN"),
			MaxConns:    int32(pgCfg.MayInt("MAX_CONNS", 2)),
			SlowQueryMs: pgCfg.MayInt("SLOW_MS", 500),
			LogSQL:      pgCfg.MayBool("LOG_SQL", false),
		},
	}, store.WithLogger(*l))
	if err != nil {
		l.Panic().Err(err).Msg("store.Open failed")
	}
	defer func() {
		if err := st.Close(context.Background()); err != nil {
			l.Error().Err(err).Msg("failed to close store")
		}
	}()

	deps := modkit.Deps{Cfg: root, PG: st.PG, Log: *l}

	beers := beersmod.New(deps)
	quota := quotamod.New(deps)
	admission := admissionmod.New(deps)
	dlq := dlqmod.New(deps, dlqsvc.Config{
		PurgeAge:   jCfg.MayDuration("DLQ_RETENTION", 30*24*time.Hour),
		PurgeBatch: jCfg.MayInt("DLQ_PURGE_BATCH", 1000),
	})

	module.Register(beers.Name(), beers.Ports())
	module.Register(quota.Name(), quota.Ports())
	module.Register(admission.Name(), admission.Ports())
	module.Register(dlq.Name(), dlq.Ports())

	// the scheduled trigger goes through the same orchestrator as the admin
	// endpoint, so limits and the kill switch hold here too
	trigger := adminsvc.New(
		module.MustPortsOf[beersmod.Ports](beers).Candidates,
		module.MustPortsOf[quotamod.Ports](quota).Quota,
		queue.NewProducer(st.PG, 0),
		adminsvc.Config{
			Enabled:      root.MayBool("ENRICHMENT_ENABLED", true),
			DailyLimit:   root.MayInt("DAILY_ENRICHMENT_LIMIT", 500),
			MonthlyLimit: root.MayInt("MONTHLY_ENRICHMENT_LIMIT", 2000),
		},
	)

	g, ctx := errgroup.WithContext(ctx)

	rec := audit.NewPG(st.PG, audit.Config{})
	g.Go(func() error { return rec.Run(ctx) })

	j := &janitor{
		log:       l,
		dlq:       dlq.Service(),
		admission: admission.Service(),
		quota:     quota.Service(),
		trigger:   trigger,
		audit:     rec,

		bucketKeep:   int64(jCfg.MayInt("RATE_BUCKET_KEEP", 60)),
		quotaDays:    jCfg.MayInt("QUOTA_RETENTION_DAYS", 90),
		triggerLimit: jCfg.MayInt("ENRICH_BATCH", 100),
		skipDlqBeers: jCfg.MayBool("ENRICH_EXCLUDE_FAILURES", true),
		sweepEvery:   jCfg.MayDuration("SWEEP_INTERVAL", time.Hour),
		triggerEvery: jCfg.MayDuration("ENRICH_INTERVAL", 6*time.Hour),
	}
	g.Go(func() error { return j.sweepLoop(ctx) })
	g.Go(func() error { return j.triggerLoop(ctx) })

	l.Info().
		Dur("sweep_every", j.sweepEvery).
		Dur("trigger_every", j.triggerEvery).
		Msg("taplist janitor running")
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		l.Panic().Err(err).Msg("janitor stopped")
	}
	l.Info().Msg("taplist janitor stopped")
}

type janitor struct {
	log       *logger.Logger
	dlq       *dlqsvc.Svc
	admission *admissionsvc.Svc
	quota     *quotasvc.Svc
	trigger   admindom.Port
	audit     audit.Recorder

	bucketKeep   int64
	quotaDays    int
	triggerLimit int
	skipDlqBeers bool
	sweepEvery   time.Duration
	triggerEvery time.Duration
}

// sweepLoop runs the retention sweeps immediately and then on the interval
func (j *janitor) sweepLoop(ctx context.Context) error {
	t := time.NewTicker(j.sweepEvery)
	defer t.Stop()
	for {
		j.sweep(ctx)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
}

// sweep runs every retention pass once. Failures log and leave the rest of
// the pass running; the next tick retries
func (j *janitor) sweep(ctx context.Context) {
	if purged, err := j.dlq.PurgeSettled(ctx); err != nil {
		j.log.Error().Err(err).Msg("dlq purge failed")
	} else if purged > 0 {
		j.log.Info().Int64("rows", purged).Msg("purged settled dead letters")
		j.audit.Record(ctx, audit.Entry{
			Action:       audit.ActionDlqPurge,
			SubjectCount: int(purged),
		})
	}

	if released, err := j.dlq.ReleaseStuck(ctx); err != nil {
		j.log.Error().Err(err).Msg("dlq release failed")
	} else if released > 0 {
		j.log.Warn().Int64("rows", released).Msg("released stuck replaying dead letters")
	}

	bucket := ptime.MinuteBucket(ptime.NowMs()) - j.bucketKeep
	if n, err := j.admission.PurgeBefore(ctx, bucket); err != nil {
		j.log.Error().Err(err).Msg("rate-limit purge failed")
	} else if n > 0 {
		j.log.Info().Int64("rows", n).Msg("purged rate-limit buckets")
	}

	cutoff := ptime.DaysAgo(time.Now(), j.quotaDays)
	if n, err := j.quota.PurgeBefore(ctx, cutoff); err != nil {
		j.log.Error().Err(err).Msg("quota purge failed")
	} else if n > 0 {
		j.log.Info().Int64("rows", n).Str("cutoff", cutoff).Msg("purged quota counters")
	}
}

// triggerLoop re-queues abv-less beers on the interval. The first run waits
// a full interval so a crash-looping janitor cannot spam the queue
func (j *janitor) triggerLoop(ctx context.Context) error {
	t := time.NewTicker(j.triggerEvery)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}

		res, err := j.trigger.Trigger(ctx, admindom.TriggerParams{
			Limit:           j.triggerLimit,
			ExcludeFailures: j.skipDlqBeers,
		})
		if err != nil {
			j.log.Error().Err(err).Msg("scheduled enrichment trigger failed")
			continue
		}
		if res.SkipReason != "" {
			j.log.Info().Str("reason", string(res.SkipReason)).Msg("scheduled enrichment trigger skipped")
			continue
		}
		j.log.Info().
			Int("queued", res.BeersQueued).
			Int("daily_remaining", res.DailyRemaining).
			Int("monthly_remaining", res.MonthlyRemaining).
			Msg("scheduled enrichment trigger queued beers")
		if res.BeersQueued > 0 {
			// only runs that queue something mutate anything worth auditing
			j.audit.Record(ctx, audit.Entry{
				Action:       audit.ActionEnrichTrigger,
				SubjectCount: res.BeersQueued,
				Detail: map[string]any{
					"limit":            j.triggerLimit,
					"exclude_failures": j.skipDlqBeers,
					"scheduled":        true,
				},
			})
		}
	}
}
