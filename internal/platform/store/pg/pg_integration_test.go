//go:build integration_pg
// +build integration_pg

package pg

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// startPostgres boots a throwaway container; generous deadlines cover a
// first-time image pull
func startPostgres(t *testing.T) (dsn string, stop func()) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)

	c, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: tc.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "postgres",
				"POSTGRES_PASSWORD": "postgres",
				"POSTGRES_DB":       "postgres",
			},
			WaitingFor: wait.ForAll(
				wait.ForListeningPort("5432/tcp"),
				wait.ForLog("database system is ready to accept connections"),
			).WithDeadline(2 * time.Minute),
		},
		Started: true,
	})
	if err != nil {
		cancel()
		t.Fatalf("start postgres container: %v", err)
	}
	stop = func() {
		_ = c.Terminate(context.Background())
		cancel()
	}

	hostPort, err := c.Endpoint(ctx, "")
	if err != nil {
		stop()
		t.Fatalf("container endpoint: %v", err)
	}
	return "postgres://postgres:postgres@" + hostPort + "/postgres?sslmode=disable", stop
}

func TestOpen_RoundTrip_Integration(t *testing.T) {
	dsn, stop := startPostgres(t)
	defer stop()

	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	const appName = "taplist-pg-integration"

	WithTestDB(t, dsn, func(pc *pgxpool.Config) {
		if pc.ConnConfig.RuntimeParams == nil {
			pc.ConnConfig.RuntimeParams = map[string]string{}
		}
		pc.ConnConfig.RuntimeParams["application_name"] = appName
		pc.MinConns = 1
	}, func(p *PG) {
		// pin one session so the TEMP table survives across statements
		conn := AcquireConn(t, p, ctx)

		var gotApp string
		if err := conn.QueryRow(ctx, `select current_setting('application_name')`).Scan(&gotApp); err != nil {
			t.Fatalf("check app name: %v", err)
		}
		if gotApp != appName {
			t.Fatalf("application_name = %q, want %q", gotApp, appName)
		}

		// no ON COMMIT DROP: autocommit would drop the table immediately
		if _, err := conn.Exec(ctx, `create temporary table taps (beer_id int primary key, name text)`); err != nil {
			t.Fatalf("create temp table: %v", err)
		}
		defer func() { _, _ = conn.Exec(ctx, `drop table if exists taps`) }()

		batch := &pgx.Batch{}
		batch.Queue(`insert into taps (beer_id, name) values ($1,$2)`, 1, "Hazy Bloom")
		batch.Queue(`insert into taps (beer_id, name) values ($1,$2)`, 2, "Cellar Door")
		br := conn.SendBatch(ctx, batch)
		for i := 0; i < batch.Len(); i++ {
			if _, err := br.Exec(); err != nil {
				_ = br.Close()
				t.Fatalf("batch insert %d: %v", i, err)
			}
		}
		if err := br.Close(); err != nil {
			t.Fatalf("batch close: %v", err)
		}

		type tapRow struct {
			BeerID int    `db:"beer_id"`
			Name   string `db:"name"`
		}
		rows, err := conn.Query(ctx, `select beer_id, name from taps order by beer_id`)
		if err != nil {
			t.Fatalf("query rows: %v", err)
		}
		got, err := pgx.CollectRows(rows, pgx.RowToStructByName[tapRow])
		if err != nil {
			t.Fatalf("collect: %v", err)
		}
		if len(got) != 2 || got[0].Name != "Hazy Bloom" || got[1].Name != "Cellar Door" {
			t.Fatalf("unexpected rows: %#v", got)
		}
	})
}
