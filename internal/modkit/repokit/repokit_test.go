package repokit

import (
	"context"
	"testing"

	"taplist/internal/platform/store"
)

// fakeQueryer counts calls so tests can tell which Queryer a repo bound
type fakeQueryer struct {
	store.RowQuerier
	execs int
}

func (f *fakeQueryer) Exec(context.Context, string, ...any) (store.CommandTag, error) {
	f.execs++
	return nil, nil
}

// tapRepo is the shape every service repo follows: a binder struct plus a
// queries struct holding the bound Queryer
type tapRepo interface {
	Pour(ctx context.Context) error
}

type pg struct{}

func (pg) Bind(q Queryer) tapRepo { return &tapQueries{q: q} }

type tapQueries struct{ q Queryer }

func (t *tapQueries) Pour(ctx context.Context) error {
	_, err := t.q.Exec(ctx, "update taps set poured = poured + 1")
	return err
}

func TestBinder_BindsRepoToQueryer(t *testing.T) {
	t.Parallel()

	var b Binder[tapRepo] = pg{}
	q := &fakeQueryer{}

	repo := b.Bind(q)
	if err := repo.Pour(context.Background()); err != nil {
		t.Fatalf("pour: %v", err)
	}
	if q.execs != 1 {
		t.Fatalf("repo did not run on the bound Queryer: execs=%d", q.execs)
	}
}

func TestBinder_RebindTargetsNewQueryer(t *testing.T) {
	t.Parallel()

	var b Binder[tapRepo] = pg{}
	pool, tx := &fakeQueryer{}, &fakeQueryer{}

	_ = b.Bind(pool).Pour(context.Background())
	_ = b.Bind(tx).Pour(context.Background())
	_ = b.Bind(tx).Pour(context.Background())

	if pool.execs != 1 || tx.execs != 2 {
		t.Fatalf("binds leaked across queryers: pool=%d tx=%d", pool.execs, tx.execs)
	}
}
