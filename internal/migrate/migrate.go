// internal/migrate/migrate.go
package migrate

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"sort"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Migration is one SQL file named NNNN_description.sql.
type Migration struct {
	Version int
	Name    string
	SQL     string
}

// Load reads every *.sql file under dir in fsys, ordered by version.
func Load(fsys fs.FS, dir string) ([]Migration, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("reading migrations: %w", err)
	}

	var migrations []Migration
	seen := make(map[int]string)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		version, name, err := parseName(entry.Name())
		if err != nil {
			return nil, err
		}
		if prev, dup := seen[version]; dup {
			return nil, fmt.Errorf("duplicate migration version %d: %s and %s", version, prev, entry.Name())
		}
		seen[version] = entry.Name()

		body, err := fs.ReadFile(fsys, path.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", entry.Name(), err)
		}
		migrations = append(migrations, Migration{Version: version, Name: name, SQL: string(body)})
	}

	sort.Slice(migrations, func(i, j int) bool { return migrations[i].Version < migrations[j].Version })
	return migrations, nil
}

func parseName(file string) (int, string, error) {
	base := strings.TrimSuffix(file, ".sql")
	num, name, ok := strings.Cut(base, "_")
	if !ok || name == "" {
		return 0, "", fmt.Errorf("migration %q must be named NNNN_name.sql", file)
	}
	version, err := strconv.Atoi(num)
	if err != nil || version <= 0 {
		return 0, "", fmt.Errorf("migration %q has an invalid version", file)
	}
	return version, name, nil
}

// Migrator applies migrations to PostgreSQL, one transaction per file.
type Migrator struct {
	pool *pgxpool.Pool
}

func NewMigrator(pool *pgxpool.Pool) *Migrator {
	return &Migrator{pool: pool}
}

// InitializeSchema creates the bookkeeping tables.
func (m *Migrator) InitializeSchema(ctx context.Context) error {
	_, err := m.pool.Exec(ctx, `
	CREATE TABLE IF NOT EXISTS schema_migrations (
		version INT PRIMARY KEY,
		name TEXT NOT NULL,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS migration_history (
		id SERIAL PRIMARY KEY,
		version INT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		success BOOLEAN NOT NULL,
		errors TEXT
	);
	`)
	if err != nil {
		return fmt.Errorf("initializing migration schema: %w", err)
	}
	return nil
}

// CurrentVersion returns the highest applied version, or 0.
func (m *Migrator) CurrentVersion(ctx context.Context) (int, error) {
	var version int
	err := m.pool.QueryRow(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("reading schema version: %w", err)
	}
	return version, nil
}

// Up applies every migration newer than the current version and returns the
// versions it applied.
func (m *Migrator) Up(ctx context.Context, migrations []Migration) ([]int, error) {
	if err := m.InitializeSchema(ctx); err != nil {
		return nil, err
	}

	current, err := m.CurrentVersion(ctx)
	if err != nil {
		return nil, err
	}

	var applied []int
	for _, mig := range Pending(migrations, current) {
		if err := m.apply(ctx, mig); err != nil {
			m.recordHistory(ctx, mig.Version, err)
			return applied, fmt.Errorf("applying migration %d_%s: %w", mig.Version, mig.Name, err)
		}
		m.recordHistory(ctx, mig.Version, nil)
		slog.InfoContext(ctx, "Applied migration", "version", mig.Version, "name", mig.Name)
		applied = append(applied, mig.Version)
	}
	return applied, nil
}

// Pending filters migrations to those above current.
func Pending(migrations []Migration, current int) []Migration {
	var out []Migration
	for _, mig := range migrations {
		if mig.Version > current {
			out = append(out, mig)
		}
	}
	return out
}

func (m *Migrator) apply(ctx context.Context, mig Migration) error {
	return pgx.BeginFunc(ctx, m.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, mig.SQL); err != nil {
			return err
		}
		_, err := tx.Exec(ctx,
			`INSERT INTO schema_migrations (version, name) VALUES ($1, $2)`,
			mig.Version, mig.Name)
		return err
	})
}

func (m *Migrator) recordHistory(ctx context.Context, version int, applyErr error) {
	var msg *string
	if applyErr != nil {
		s := applyErr.Error()
		msg = &s
	}
	_, err := m.pool.Exec(ctx,
		`INSERT INTO migration_history (version, success, errors) VALUES ($1, $2, $3)`,
		version, applyErr == nil, msg)
	if err != nil && !errors.Is(err, context.Canceled) {
		slog.WarnContext(ctx, "Failed to record migration history", "version", version, "error", err)
	}
}
