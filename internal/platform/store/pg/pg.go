// Package pg owns the pgxpool handle and the statement tracer
package pg

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Config sizes the pool and sets the slow-statement threshold. Tracer and
// PoolHook are optional; a nil Tracer disables statement logging
type Config struct {
	URL      string
	MaxConns int32
	SlowMs   int
	Tracer   QueryTracer
	PoolHook func(*pgxpool.Config)
}

// PG bundles the pool with its tracing settings
type PG struct {
	Pool   *pgxpool.Pool
	Tracer QueryTracer
	SlowMs int
}

var newPool = pgxpool.NewWithConfig // seam

// Open parses the DSN and builds the pool. Nothing dials here; the first
// ping or query does
func Open(ctx context.Context, cfg Config) (*PG, error) {
	pcfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, err
	}
	if cfg.MaxConns > 0 {
		pcfg.MaxConns = cfg.MaxConns
	}
	if cfg.PoolHook != nil {
		cfg.PoolHook(pcfg)
	}
	pool, err := newPool(ctx, pcfg)
	if err != nil {
		return nil, err
	}
	return &PG{Pool: pool, Tracer: cfg.Tracer, SlowMs: cfg.SlowMs}, nil
}

// Close releases the pool; safe on a nil receiver
func (p *PG) Close() {
	if p == nil || p.Pool == nil {
		return
	}
	p.Pool.Close()
}
