package postgres

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"slices"
	"strconv"
	"strings"

	"github.com/kozaktomas/clock-in/internal/database"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// migration is one numbered schema change, e.g. 001_capture_outcomes.sql.
type migration struct {
	Version string // file name, recorded in schema_migrations
	Number  int
	SQL     string
}

// loadMigrations reads every .sql file under dir in fsys, ordered by number.
// Files must start with a unique numeric prefix.
func loadMigrations(fsys fs.FS, dir string) ([]migration, error) {
	names, err := fs.Glob(fsys, path.Join(dir, "*.sql"))
	if err != nil {
		return nil, fmt.Errorf("list migrations: %w", err)
	}

	seen := make(map[int]string, len(names))
	migrations := make([]migration, 0, len(names))
	for _, name := range names {
		base := path.Base(name)
		prefix, _, ok := strings.Cut(base, "_")
		n, err := strconv.Atoi(prefix)
		if !ok || err != nil {
			return nil, fmt.Errorf("migration %s has no numeric prefix", base)
		}
		if other, dup := seen[n]; dup {
			return nil, fmt.Errorf("migrations %s and %s share number %d", other, base, n)
		}
		seen[n] = base

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", base, err)
		}
		migrations = append(migrations, migration{Version: base, Number: n, SQL: string(content)})
	}

	slices.SortFunc(migrations, func(a, b migration) int { return a.Number - b.Number })
	return migrations, nil
}

// pendingMigrations drops the migrations whose version is already applied.
func pendingMigrations(all []migration, applied []string) []migration {
	return slices.DeleteFunc(slices.Clone(all), func(m migration) bool {
		return slices.Contains(applied, m.Version)
	})
}

func (p *Pool) ensureMigrationsTable(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version VARCHAR(255) PRIMARY KEY,
			applied_at TIMESTAMPTZ DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}
	return nil
}

func (p *Pool) apply(ctx context.Context, m migration) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction for %s: %w", m.Version, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, m.SQL); err != nil {
		return fmt.Errorf("execute migration %s: %w", m.Version, err)
	}
	record := "INSERT INTO schema_migrations (version) VALUES (" + database.Placeholders(database.Dollar, 1) + ")"
	if _, err := tx.ExecContext(ctx, record, m.Version); err != nil {
		return fmt.Errorf("record migration %s: %w", m.Version, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration %s: %w", m.Version, err)
	}
	return nil
}

// Migrate brings the audit schema up to date. Each migration runs in its own
// transaction.
func (p *Pool) Migrate(ctx context.Context) error {
	all, err := loadMigrations(migrationsFS, "migrations")
	if err != nil {
		return err
	}
	if err := p.ensureMigrationsTable(ctx); err != nil {
		return err
	}
	applied, err := p.MigrationsApplied(ctx)
	if err != nil {
		return err
	}

	pending := pendingMigrations(all, applied)
	for _, m := range pending {
		if err := p.apply(ctx, m); err != nil {
			return err
		}
		p.logger.Info("applied audit migration", "backend", "postgres", "version", m.Version)
	}
	p.logger.Debug("audit schema up to date", "backend", "postgres", "applied", len(pending), "total", len(all))
	return nil
}

// MigrationsApplied returns the applied migration versions in order.
func (p *Pool) MigrationsApplied(ctx context.Context) ([]string, error) {
	rows, err := p.db.QueryContext(ctx, "SELECT version FROM schema_migrations ORDER BY version")
	if err != nil {
		return nil, fmt.Errorf("query applied migrations: %w", err)
	}
	defer rows.Close()

	var versions []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan migration version: %w", err)
		}
		versions = append(versions, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate migration versions: %w", err)
	}
	return versions, nil
}
