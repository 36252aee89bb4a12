// @title         Taplist API
// @version       0.1.0
// @description   Merged taplist reads, enrichment lookups, and admin triage

package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"taplist/internal/platform/config"
	"taplist/internal/platform/logger"
	phttp "taplist/internal/platform/net/http"
	"taplist/internal/platform/store"

	"taplist/internal/services/analytics"
	"taplist/internal/services/api"
	"taplist/internal/services/audit"

	"golang.org/x/sync/errgroup"
)

func main() {
	// service-scoped config for HTTP etc (CORE_API_*)
	root := config.New()
	apiCfg := root.Prefix("CORE_API_")

	pgCfg := root.Prefix("SERVICE_PGSQL_")      // pgCfg lives under SERVICE_PGSQL_*
	chCfg := root.Prefix("SERVICE_CLICKHOUSE_") // chCfg lives under SERVICE_CLICKHOUSE_*
	// bring up logging early
	l := logger.Get()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// clickhouse is optional; without a DSN analytics degrades to a no op
	chDSN := chCfg.MayString("DSN", "")

	st, err := store.Open(
		ctx,
		store.Config{
			AppName: "taplist-api",
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
		},
		store.WithLogger(*l),
	)
	if err != nil {
		l.Panic().Err(err).Msg("store.Open failed")
	}
	defer func() {
		if err := st.Close(context.Background()); err != nil {
			l.Error().Err(err).Msg("failed to close store")
		}
	}()

	// the api owns the schema; worker and janitor assume it
	if err := store.Migrate(ctx, pgCfg.MustString("DSN")); err != nil {
		l.Panic().Err(err).Msg("migrate failed")
	}

	g, ctx := errgroup.WithContext(ctx)

	rec := audit.NewPG(st.PG, audit.Config{})
	g.Go(func() error { return rec.Run(ctx) })

	var emit analytics.Emitter = analytics.Noop{}
	if st.CH != nil {
		sink := analytics.NewCH(st.CH, analytics.Config{})
		emit = sink
		g.Go(func() error { return sink.Run(ctx) })
	}

	// http server (reads CORE_API_PORT)
	srv := phttp.NewServer(apiCfg)

	// mount our API; deployment keys (ALLOWED_ORIGIN, API_KEY, limits)
	// are unprefixed, so the modules get the root config
	api.Mount(
		srv.Router(),
		api.Options{
			Config:         root,
			Store:          st,
			Logger:         l,
			Audit:          rec,
			Analytics:      emit,
			EnableSwagger:  apiCfg.MayBool("SWAGGER", true),
			EnableProfiler: apiCfg.MayBool("PROFILER", true),
		},
	)

	g.Go(func() error { return srv.Run(ctx) })
	g.Go(func() error {
		<-ctx.Done()
		shCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		l.Panic().Err(err).Msg("http server stopped")
	}
	l.Info().Msg("taplist api stopped")
}
