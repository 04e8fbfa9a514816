package store

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed migrations/postgres/*.sql migrations/sqlite/*.sql
var migrationsFS embed.FS

type migration struct {
	version string
	sql     string
}

// loadMigrations returns the embedded migrations for d in version order.
func loadMigrations(d dialect) ([]migration, error) {
	dir := "migrations/postgres"
	if d == dialectSQLite {
		dir = "migrations/sqlite"
	}

	entries, err := fs.ReadDir(migrationsFS, dir)
	if err != nil {
		return nil, fmt.Errorf("reading migrations directory: %w", err)
	}

	// Lexicographic order is version order.
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	var out []migration
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		body, err := migrationsFS.ReadFile(dir + "/" + entry.Name())
		if err != nil {
			return nil, fmt.Errorf("reading migration %s: %w", entry.Name(), err)
		}
		out = append(out, migration{version: entry.Name(), sql: string(body)})
	}
	return out, nil
}

// RunMigrations applies pending Postgres migrations in order. Applied
// versions are tracked in schema_migrations. There are no down migrations.
func RunMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, queryCreateMigrationsPostgres); err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	migrations, err := loadMigrations(dialectPostgres)
	if err != nil {
		return err
	}

	for _, m := range migrations {
		var exists bool
		if err := pool.QueryRow(ctx, queryMigrationAppliedPostgres, m.version).Scan(&exists); err != nil {
			return fmt.Errorf("checking migration %s: %w", m.version, err)
		}
		if exists {
			continue
		}

		if _, err := pool.Exec(ctx, m.sql); err != nil {
			return fmt.Errorf("applying migration %s: %w", m.version, err)
		}
		if _, err := pool.Exec(ctx, queryRecordMigrationPostgres, m.version); err != nil {
			return fmt.Errorf("recording migration %s: %w", m.version, err)
		}
	}

	return nil
}

// runSQLiteMigrations is the SQLite counterpart of RunMigrations. Each
// migration and its bookkeeping row commit together.
func runSQLiteMigrations(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, queryCreateMigrationsSQLite); err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	migrations, err := loadMigrations(dialectSQLite)
	if err != nil {
		return err
	}

	for _, m := range migrations {
		var n int
		if err := db.QueryRowContext(ctx, queryMigrationAppliedSQLite, m.version).Scan(&n); err != nil {
			return fmt.Errorf("checking migration %s: %w", m.version, err)
		}
		if n > 0 {
			continue
		}

		if err := applySQLiteMigration(ctx, db, m); err != nil {
			return err
		}
	}

	return nil
}

func applySQLiteMigration(ctx context.Context, db *sql.DB, m migration) (err error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning migration %s: %w", m.version, err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, m.sql); err != nil {
		return fmt.Errorf("applying migration %s: %w", m.version, err)
	}
	if _, err = tx.ExecContext(ctx, queryRecordMigrationSQLite, m.version); err != nil {
		return fmt.Errorf("recording migration %s: %w", m.version, err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("committing migration %s: %w", m.version, err)
	}
	return nil
}
