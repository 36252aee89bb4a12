package store

import (
	"context"
	"database/sql"
	"embed"

	perr "taplist/internal/platform/errors"

	_ "github.com/jackc/pgx/v5/stdlib" // database/sql driver for goose
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Migrate applies the embedded schema migrations against the postgres URL.
// It opens its own throwaway database/sql handle because goose drives
// database/sql, not pgx pools
func Migrate(ctx context.Context, url string) error {
	db, err := sql.Open("pgx", url)
	if err != nil {
		return perr.Wrapf(err, perr.ErrorCodeUnavailable, "migrate: open")
	}
	defer func() { _ = db.Close() }()

	goose.SetBaseFS(migrationsFS)
	if err := goose.SetDialect("postgres"); err != nil {
		return perr.Wrapf(err, perr.ErrorCodeUnknown, "migrate: dialect")
	}
	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return perr.Wrapf(err, perr.ErrorCodeUnavailable, "migrate: up")
	}
	return nil
}
