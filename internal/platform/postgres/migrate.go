package postgres

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io"
	"path"

	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrations embed.FS

// gooseUpContext is a seam for tests.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

func setupGoose() error {
	goose.SetBaseFS(migrations)
	return goose.SetDialect("pgx")
}

// Migrate applies every pending embedded migration.
func Migrate(ctx context.Context, db *sql.DB) error {
	if err := setupGoose(); err != nil {
		return err
	}
	return gooseUpContext(ctx, db, "migrations")
}

// MigrationStatus writes the applied/pending state of each migration to out.
func MigrationStatus(ctx context.Context, db *sql.DB, out io.Writer) error {
	if err := setupGoose(); err != nil {
		return err
	}
	current, err := goose.GetDBVersionContext(ctx, db)
	if err != nil {
		return err
	}
	all, err := goose.CollectMigrations("migrations", 0, goose.MaxVersion)
	if err != nil {
		return err
	}
	for _, m := range all {
		state := "pending"
		if m.Version <= current {
			state = "applied"
		}
		if _, err := fmt.Fprintf(out, "%-8s %05d %s\n", state, m.Version, path.Base(m.Source)); err != nil {
			return err
		}
	}
	return nil
}
