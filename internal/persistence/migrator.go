package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"SherPool/internal/observability"
)

// Migrator applies the SQL files under migrations/ in version order.
// Files pair up as {version}_{name}.up.sql / {version}_{name}.down.sql;
// applied versions are recorded in event_log.schema_migrations so the
// service and cmd/migrate share one ledger of what ran.
type Migrator struct {
	db  *sql.DB
	dir string
	log zerolog.Logger
}

func NewMigrator(db *sql.DB, migrationsDir string) *Migrator {
	return &Migrator{
		db:  db,
		dir: migrationsDir,
		log: observability.NewLogger("migrator"),
	}
}

// migrationFile is one up-migration on disk.
type migrationFile struct {
	version string
	name    string // filename of the .up.sql
}

// Up applies every pending migration, each inside its own transaction so a
// failure leaves earlier migrations committed and later ones untouched.
func (m *Migrator) Up(ctx context.Context) error {
	if err := m.ensureLedger(ctx); err != nil {
		return fmt.Errorf("migration ledger: %w", err)
	}

	applied, err := m.appliedVersions(ctx)
	if err != nil {
		return fmt.Errorf("read applied versions: %w", err)
	}

	pending, err := m.pendingMigrations(applied)
	if err != nil {
		return err
	}

	for _, mf := range pending {
		if err := m.applyUp(ctx, mf); err != nil {
			return err
		}
		m.log.Info().Str("version", mf.version).Str("file", mf.name).Msg("migration applied")
	}
	if len(pending) == 0 {
		m.log.Debug().Msg("no pending migrations")
	}
	return nil
}

// Down rolls back the most recently applied migration using its paired
// .down.sql file.
func (m *Migrator) Down(ctx context.Context) error {
	if err := m.ensureLedger(ctx); err != nil {
		return fmt.Errorf("migration ledger: %w", err)
	}

	var version, upName string
	err := m.db.QueryRowContext(ctx, `
		SELECT version, filename FROM event_log.schema_migrations
		ORDER BY version DESC LIMIT 1
	`).Scan(&version, &upName)
	if err == sql.ErrNoRows {
		m.log.Info().Msg("nothing to roll back")
		return nil
	}
	if err != nil {
		return fmt.Errorf("read latest version: %w", err)
	}

	downName := strings.TrimSuffix(upName, ".up.sql") + ".down.sql"
	body, err := os.ReadFile(filepath.Join(m.dir, downName))
	if err != nil {
		return fmt.Errorf("read %s: %w", downName, err)
	}

	err = m.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, string(body)); err != nil {
			return fmt.Errorf("exec %s: %w", downName, err)
		}
		_, err := tx.ExecContext(ctx,
			`DELETE FROM event_log.schema_migrations WHERE version = $1`, version)
		return err
	})
	if err != nil {
		return err
	}

	m.log.Info().Str("version", version).Str("file", downName).Msg("migration rolled back")
	return nil
}

func (m *Migrator) applyUp(ctx context.Context, mf migrationFile) error {
	body, err := os.ReadFile(filepath.Join(m.dir, mf.name))
	if err != nil {
		return fmt.Errorf("read %s: %w", mf.name, err)
	}

	return m.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, string(body)); err != nil {
			return fmt.Errorf("exec %s: %w", mf.name, err)
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO event_log.schema_migrations (version, filename)
			VALUES ($1, $2)
		`, mf.version, mf.name)
		return err
	})
}

func (m *Migrator) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (m *Migrator) ensureLedger(ctx context.Context) error {
	_, err := m.db.ExecContext(ctx, `
		CREATE SCHEMA IF NOT EXISTS event_log;
		CREATE TABLE IF NOT EXISTS event_log.schema_migrations (
			version    TEXT PRIMARY KEY,
			filename   TEXT NOT NULL,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	return err
}

func (m *Migrator) appliedVersions(ctx context.Context) (map[string]bool, error) {
	rows, err := m.db.QueryContext(ctx,
		`SELECT version FROM event_log.schema_migrations`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	applied := make(map[string]bool)
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		applied[v] = true
	}
	return applied, rows.Err()
}

// pendingMigrations lists unapplied up-files in version order, requiring
// the paired down-file so Down never strands a half-described version.
func (m *Migrator) pendingMigrations(applied map[string]bool) ([]migrationFile, error) {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return nil, fmt.Errorf("read migrations dir %s: %w", m.dir, err)
	}

	var pending []migrationFile
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".up.sql") {
			continue
		}
		version, _, _ := strings.Cut(name, "_")
		if applied[version] {
			continue
		}
		downName := strings.TrimSuffix(name, ".up.sql") + ".down.sql"
		if _, err := os.Stat(filepath.Join(m.dir, downName)); err != nil {
			return nil, fmt.Errorf("migration %s has no down file %s", name, downName)
		}
		pending = append(pending, migrationFile{version: version, name: name})
	}

	sort.Slice(pending, func(i, j int) bool { return pending[i].version < pending[j].version })
	return pending, nil
}
