// Package ch is a thin clickhouse client over the native protocol
package ch

import (
	"context"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
)

// Config carries the DSN and the connection role
type Config struct {
	URL string

	// Role tags connections in system.query_log client info so load
	// attributes per binary: "api", "worker", "janitor"
	Role string
}

// Rows is the result-set surface the adapter upstairs narrows further
type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close() error
	Columns() []string
}

// CH owns a native-protocol connection pool
type CH struct {
	conn driver.Conn
}

// Open parses the DSN and builds the pool. The first query dials.
func Open(_ context.Context, cfg Config) (*CH, error) {
	opts, err := clickhouse.ParseDSN(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("ch: parse dsn: %w", err)
	}
	opts.ClientInfo = BuildClientInfo(cfg.Role)

	conn, err := clickhouse.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("ch: open: %w", err)
	}
	return &CH{conn: conn}, nil
}

// Insert sends rows to table as one prepared batch. Column order must
// match the table definition; an empty batch is a no-op.
func (c *CH) Insert(ctx context.Context, table string, rows [][]any) error {
	if len(rows) == 0 {
		return nil
	}
	batch, err := c.conn.PrepareBatch(ctx, "INSERT INTO "+table)
	if err != nil {
		return fmt.Errorf("ch: prepare batch %s: %w", table, err)
	}
	for _, row := range rows {
		if err := batch.Append(row...); err != nil {
			_ = batch.Abort()
			return fmt.Errorf("ch: append %s: %w", table, err)
		}
	}
	return batch.Send()
}

// Query runs sql and returns the driver rows
func (c *CH) Query(ctx context.Context, sql string, args ...any) (Rows, error) {
	rows, err := c.conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("ch: query: %w", err)
	}
	return rows, nil
}

// Ping checks the pool can reach a server
func (c *CH) Ping(ctx context.Context) error { return c.conn.Ping(ctx) }

// Close releases the pool; safe on a zero value
func (c *CH) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}
