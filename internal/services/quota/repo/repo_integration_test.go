//go:build integration_pg
// +build integration_pg

package repo

import (
	"context"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"taplist/internal/platform/store"
	dom "taplist/internal/services/quota/domain"

	"github.com/rs/zerolog"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// startPostgres boots a throwaway postgres and hands back its DSN
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

	hostPort, err := c.Endpoint(ctx, "")
	if err != nil {
		_ = c.Terminate(context.Background())
		cancel()
		t.Fatalf("container endpoint: %v", err)
	}

	dsn = fmt.Sprintf("postgres://postgres:postgres@%s/postgres?sslmode=disable", hostPort)
	stop = func() {
		_ = c.Terminate(context.Background())
		cancel()
	}
	return dsn, stop
}

// openRepo migrates the schema and binds the repo over a fresh pool
func openRepo(ctx context.Context, t *testing.T, dsn string) Repo {
	t.Helper()

	if err := store.Migrate(ctx, dsn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	st, err := store.Open(ctx, store.Config{
		AppName: "quota-repo-integration",
		PG:      store.PGConfig{Enabled: true, URL: dsn},
	}, store.WithLogger(zerolog.New(io.Discard)))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close(context.Background()) })
	return NewPG().Bind(st.PG)
}

// TestReserve_Integration drives the CASE update against the real backend.
// The daily counter must never pass the limit, reservations are all or
// nothing, and racing batches serialize on the row lock
func TestReserve_Integration(t *testing.T) {
	dsn, stop := startPostgres(t)
	defer stop()

	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	r := openRepo(ctx, t, dsn)
	const (
		date  = "2026-08-26"
		limit = 1000
	)
	nowMs := time.Now().UnixMilli()

	if err := r.EnsureRow(ctx, dom.ScopeCleanup, date, nowMs); err != nil {
		t.Fatalf("ensure row: %v", err)
	}
	// ensure is idempotent
	if err := r.EnsureRow(ctx, dom.ScopeCleanup, date, nowMs); err != nil {
		t.Fatalf("ensure row again: %v", err)
	}

	t.Run("oversized batch leaves the counter alone", func(t *testing.T) {
		// push the counter to 995
		if _, err := r.ReserveBatch(ctx, dom.ScopeCleanup, date, 995, limit, nowMs); err != nil {
			t.Fatalf("seed counter: %v", err)
		}
		got, err := r.ReserveBatch(ctx, dom.ScopeCleanup, date, 10, limit, nowMs)
		if err != nil {
			t.Fatalf("reserve 10: %v", err)
		}
		if got != 995 {
			t.Fatalf("count after oversized reserve = %d, want 995", got)
		}
	})

	t.Run("racing batches serialize at the limit", func(t *testing.T) {
		results := make([]int, 2)
		errs := make([]error, 2)
		var wg sync.WaitGroup
		for i := 0; i < 2; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				results[i], errs[i] = r.ReserveBatch(ctx, dom.ScopeCleanup, date, 5, limit, nowMs)
			}(i)
		}
		wg.Wait()

		for i, err := range errs {
			if err != nil {
				t.Fatalf("reserver %d: %v", i, err)
			}
		}
		// exactly one fit; both observe the post-race count at the limit
		for i, got := range results {
			if got != limit {
				t.Fatalf("reserver %d count = %d, want %d", i, got, limit)
			}
		}
		final, err := r.CurrentCount(ctx, dom.ScopeCleanup, date)
		if err != nil {
			t.Fatalf("current count: %v", err)
		}
		if final != limit {
			t.Fatalf("final count = %d, want %d", final, limit)
		}
	})

	t.Run("single slot stops at the limit", func(t *testing.T) {
		n, ok, err := r.ReserveOne(ctx, dom.ScopeCleanup, date, limit, nowMs)
		if err != nil {
			t.Fatalf("reserve one: %v", err)
		}
		if ok {
			t.Fatalf("reserved a slot past the limit (count %d)", n)
		}
		n, ok, err = r.ReserveOne(ctx, dom.ScopeCleanup, date, limit+1, nowMs)
		if err != nil {
			t.Fatalf("reserve one under raised limit: %v", err)
		}
		if !ok || n != limit+1 {
			t.Fatalf("reserve one = (%d, %v), want (%d, true)", n, ok, limit+1)
		}
	})

	t.Run("monthly sum spans dates, scopes stay apart", func(t *testing.T) {
		if err := r.EnsureRow(ctx, dom.ScopeCleanup, "2026-08-01", nowMs); err != nil {
			t.Fatalf("ensure first: %v", err)
		}
		if _, err := r.ReserveBatch(ctx, dom.ScopeCleanup, "2026-08-01", 7, limit, nowMs); err != nil {
			t.Fatalf("seed first: %v", err)
		}
		sum, err := r.MonthlySum(ctx, dom.ScopeCleanup, "2026-08-01", "2026-08-31")
		if err != nil {
			t.Fatalf("monthly sum: %v", err)
		}
		if sum != limit+1+7 {
			t.Fatalf("monthly sum = %d, want %d", sum, limit+1+7)
		}
		other, err := r.MonthlySum(ctx, dom.ScopeEnrichment, "2026-08-01", "2026-08-31")
		if err != nil {
			t.Fatalf("enrichment sum: %v", err)
		}
		if other != 0 {
			t.Fatalf("enrichment scope leaked %d from cleanup", other)
		}
	})

	t.Run("purge drops dates before the cutoff", func(t *testing.T) {
		n, err := r.PurgeBefore(ctx, dom.ScopeCleanup, date)
		if err != nil {
			t.Fatalf("purge: %v", err)
		}
		if n != 1 {
			t.Fatalf("purged %d rows, want 1", n)
		}
		left, err := r.CurrentCount(ctx, dom.ScopeCleanup, date)
		if err != nil {
			t.Fatalf("current count after purge: %v", err)
		}
		if left != limit+1 {
			t.Fatalf("today's counter = %d after purge, want %d", left, limit+1)
		}
	})
}
