// taplist-worker consumes the durable pipeline topics: description cleanup,
// ABV enrichment, and both dead-letter shadows
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

	"taplist/internal/adapters/ai/perplexity"
	"taplist/internal/adapters/ai/workersai"

	"taplist/internal/services/analytics"
	beersmod "taplist/internal/services/beers/module"
	"taplist/internal/services/cleanup/breaker"
	cleandom "taplist/internal/services/cleanup/domain"
	cleanupsvc "taplist/internal/services/cleanup/service"
	dlqmod "taplist/internal/services/dlq/module"
	dlqsvc "taplist/internal/services/dlq/service"
	enrichdom "taplist/internal/services/enrichment/domain"
	enrichsvc "taplist/internal/services/enrichment/service"
	quotamod "taplist/internal/services/quota/module"

	"golang.org/x/sync/errgroup"
)

func main() {
	root := config.New()
	pgCfg := root.Prefix("SERVICE_PGSQL_")
	chCfg := root.Prefix("SERVICE_CLICKHOUSE_")
	wCfg := root.Prefix("WORKER_")
	l := logger.Get()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	chDSN := chCfg.MayString("DSN", "")

	st, err := store.Open(ctx, store.Config{
		AppName: "taplist-worker",
		PG: store.PGConfig{
			Enabled:     true,
			URL:         pgCfg.MustString("DSN"),
			MaxConns:    int32(pgCfg.MayInt("MAX_CONNS", 4)),
			SlowQueryMs: pgCfg.MayInt("SLOW_MS", 500),
			LogSQL:      pgCfg.MayBool("LOG_SQL", false),
		},
		CH: store.CHConfig{
			Enabled: chDSN != "",
			URL:     chDSN,
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

	deps := modkit.Deps{Cfg: root, PG: st.PG, CH: st.CH, Log: *l}

	g, ctx := errgroup.WithContext(ctx)

	var emit analytics.Emitter = analytics.Noop{}
	if st.CH != nil {
		sink := analytics.NewCH(st.CH, analytics.Config{})
		emit = sink
		g.Go(func() error { return sink.Run(ctx) })
	}

	beers := beersmod.New(deps)
	quota := quotamod.New(deps)
	dlq := dlqmod.New(deps, dlqsvc.Config{Emitter: emit})

	module.Register(beers.Name(), beers.Ports())
	module.Register(quota.Name(), quota.Ports())
	module.Register(dlq.Name(), dlq.Ports())

	beersPorts := module.MustPortsOf[beersmod.Ports](beers)
	quotaPort := module.MustPortsOf[quotamod.Ports](quota).Quota

	producer := queue.NewProducer(st.PG, wCfg.MayInt("MAX_ATTEMPTS", 3))

	cleaner := workersai.New(workersai.Options{
		URL:   root.MustURL("WORKERS_AI_URL").String(),
		Token: root.MayString("WORKERS_AI_TOKEN", ""),
	})
	brk := breaker.New(breaker.Config{
		SlowCallLimit:   wCfg.MayInt("BREAKER_SLOW_CALLS", 3),
		SlowThresholdMs: int64(wCfg.MayInt("BREAKER_SLOW_MS", 5000)),
		ResetMs:         int64(wCfg.MayInt("BREAKER_RESET_MS", 60_000)),
	})
	cleanup := cleanupsvc.New(beersPorts.Cleanup, quotaPort, cleaner, brk, producer, cleanupsvc.Config{
		DailyLimit:  root.MayInt("DAILY_CLEANUP_LIMIT", 1000),
		Concurrency: root.MayInt("MAX_CLEANUP_CONCURRENCY", 10),
		CallTimeout: wCfg.MayDuration("CLEANUP_CALL_TIMEOUT", 10*time.Second),
		Emitter:     emit,
	})

	look := perplexity.New(perplexity.Options{
		APIKey:  root.MustString("PERPLEXITY_API_KEY"),
		BaseURL: root.MayString("PERPLEXITY_API_BASE", ""),
		Model:   root.MayString("PERPLEXITY_MODEL", ""),
	})
	// the beers service carries both the status read and the terminal write
	enrich := enrichsvc.New(beers.Service(), quotaPort, look, enrichsvc.Config{
		Enabled:        root.MayBool("ENRICHMENT_ENABLED", true),
		DailyLimit:     root.MayInt("DAILY_ENRICHMENT_LIMIT", 500),
		MonthlyLimit:   root.MayInt("MONTHLY_ENRICHMENT_LIMIT", 2000),
		Pacing:         wCfg.MayDuration("ENRICH_PACING", 2*time.Second),
		RateLimitDelay: wCfg.MayDuration("ENRICH_RATE_LIMIT_DELAY", 120*time.Second),
		CallTimeout:    wCfg.MayDuration("ENRICH_CALL_TIMEOUT", 10*time.Second),
		Confidence:     wCfg.MayFloat64("ENRICH_CONFIDENCE", 0.7),
		Emitter:        emit,
	})

	// enrichment stays on one serialized runner; pacing is the provider throttle
	runners := []*queue.Runner{
		queue.NewRunner(st.PG, cleandom.Topic, cleanup.HandleBatch,
			queue.WithBatchSize(wCfg.MayInt("CLEANUP_BATCH_SIZE", 10)),
			queue.WithPollInterval(wCfg.MayDuration("CLEANUP_POLL", time.Second)),
			queue.WithLeaseFor(wCfg.MayDuration("CLEANUP_LEASE", 2*time.Minute)),
			queue.WithRetryDelay(wCfg.MayDuration("CLEANUP_RETRY_DELAY", 30*time.Second)),
		),
		queue.NewRunner(st.PG, enrichdom.Topic, enrich.HandleBatch,
			queue.WithBatchSize(wCfg.MayInt("ENRICH_BATCH_SIZE", 10)),
			queue.WithPollInterval(wCfg.MayDuration("ENRICH_POLL", time.Second)),
			queue.WithLeaseFor(wCfg.MayDuration("ENRICH_LEASE", 5*time.Minute)),
			queue.WithRetryDelay(wCfg.MayDuration("ENRICH_RETRY_DELAY", 30*time.Second)),
		),
		queue.NewRunner(st.PG, queue.DlqTopic(cleandom.Topic), dlq.Service().HandleDlqBatch,
			queue.WithBatchSize(wCfg.MayInt("DLQ_BATCH_SIZE", 25)),
			queue.WithPollInterval(wCfg.MayDuration("DLQ_POLL", 5*time.Second)),
		),
		queue.NewRunner(st.PG, queue.DlqTopic(enrichdom.Topic), dlq.Service().HandleDlqBatch,
			queue.WithBatchSize(wCfg.MayInt("DLQ_BATCH_SIZE", 25)),
			queue.WithPollInterval(wCfg.MayDuration("DLQ_POLL", 5*time.Second)),
		),
	}
	for _, r := range runners {
		g.Go(func() error { return r.Run(ctx) })
	}

	l.Info().Int("runners", len(runners)).Msg("taplist worker running")
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		l.Panic().Err(err).Msg("worker stopped")
	}
	l.Info().Msg("taplist worker stopped")
}
