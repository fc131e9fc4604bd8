// Package migrate applies the embedded schema files in name order.
package migrate

import (
	"context"
	"embed"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"
)

//go:embed *.sql
var files embed.FS

// Execer is the subset of db.DB needed to migrate.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (int64, error)
}

// Up applies pending migrations and records each in schema_migrations.
func Up(ctx context.Context, d Execer, log zerolog.Logger) error {
	names, err := Pending()
	if err != nil {
		return err
	}
	if _, err := d.Exec(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (version TEXT PRIMARY KEY, applied_at TIMESTAMPTZ NOT NULL DEFAULT now())`); err != nil {
		return fmt.Errorf("schema_migrations: %w", err)
	}

	for _, f := range names {
		n, err := d.Exec(ctx, `INSERT INTO schema_migrations(version) VALUES ($1) ON CONFLICT DO NOTHING`, f)
		if err != nil {
			return err
		}
		if n == 0 {
			continue
		}
		b, err := files.ReadFile(f)
		if err != nil {
			return err
		}
		if _, err := d.Exec(ctx, string(b)); err != nil {
			_, _ = d.Exec(ctx, `DELETE FROM schema_migrations WHERE version=$1`, f)
			return fmt.Errorf("apply %s: %w", f, err)
		}
		log.Info().Str("migration", f).Msg("applied")
	}
	return nil
}

// Pending lists the embedded migration files in apply order.
func Pending() ([]string, error) {
	entries, err := files.ReadDir(".")
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			out = append(out, e.Name())
		}
	}
	sort.Strings(out)
	return out, nil
}
