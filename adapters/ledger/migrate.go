package ledger

import (
	"context"
	"crypto/sha256"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"gammastack/internal/errors"

	"github.com/jmoiron/sqlx"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Migrator handles database schema migrations
type Migrator struct {
	db *sqlx.DB
}

// NewMigrator creates a new migrator
func NewMigrator(db *sqlx.DB) *Migrator {
	return &Migrator{db: db}
}

// MigrationFile represents a migration file
type MigrationFile struct {
	Version string
	Path    string
}

// Up executes all pending migrations
func (m *Migrator) Up(ctx context.Context) error {
	// Create migrations table if it doesn't exist
	_, err := m.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			checksum TEXT NOT NULL
		)`)
	if err != nil {
		return dbError(err, "failed to create migrations table")
	}

	applied, err := m.appliedMigrations(ctx)
	if err != nil {
		return dbError(err, "failed to get applied migrations")
	}

	files, err := findMigrationFiles()
	if err != nil {
		return errors.Wrap(err, "failed to find migration files")
	}

	for _, file := range files {
		checksum, done := applied[file.Version]
		if done {
			content, err := migrationFiles.ReadFile(file.Path)
			if err != nil {
				return err
			}
			if checksum != calculateChecksum(content) {
				return errors.DatabaseError(fmt.Sprintf("migration %s changed after it was applied", file.Version))
			}
			continue
		}
		if err := m.applyMigration(ctx, file); err != nil {
			return errors.Wrapf(err, "failed to apply migration %s", file.Version)
		}
	}
	return nil
}

// Pending returns the versions not applied yet
func (m *Migrator) Pending(ctx context.Context) ([]string, error) {
	applied, err := m.appliedMigrations(ctx)
	if err != nil {
		// no migrations table yet
		applied = map[string]string{}
	}
	files, err := findMigrationFiles()
	if err != nil {
		return nil, err
	}
	var pending []string
	for _, file := range files {
		if _, ok := applied[file.Version]; !ok {
			pending = append(pending, file.Version)
		}
	}
	return pending, nil
}

// appliedMigrations returns the checksum of every applied version
func (m *Migrator) appliedMigrations(ctx context.Context) (map[string]string, error) {
	rows, err := m.db.QueryContext(ctx, "SELECT version, checksum FROM schema_migrations")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	applied := make(map[string]string)
	for rows.Next() {
		var version, checksum string
		if err := rows.Scan(&version, &checksum); err != nil {
			return nil, err
		}
		applied[version] = checksum
	}
	return applied, rows.Err()
}

// calculateChecksum computes SHA256 checksum of migration content
func calculateChecksum(data []byte) string {
	hash := sha256.Sum256(data)
	return fmt.Sprintf("%x", hash)
}

// findMigrationFiles lists the embedded migrations ordered by version.
// Files are named 001_description.sql.
func findMigrationFiles() ([]MigrationFile, error) {
	var files []MigrationFile
	err := fs.WalkDir(migrationFiles, "migrations", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".sql") {
			return nil
		}
		parts := strings.SplitN(d.Name(), "_", 2)
		if len(parts) < 2 {
			return nil // skip invalid filenames
		}
		files = append(files, MigrationFile{Version: parts[0], Path: path})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].Version < files[j].Version
	})
	return files, nil
}

// applyMigration executes one migration file statement by statement inside
// a transaction
func (m *Migrator) applyMigration(ctx context.Context, file MigrationFile) error {
	content, err := migrationFiles.ReadFile(file.Path)
	if err != nil {
		return errors.Wrap(err, "failed to read migration file")
	}

	tx, err := m.db.BeginTxx(ctx, nil)
	if err != nil {
		return dbError(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	for _, stmt := range strings.Split(string(content), ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return dbError(err, "failed to execute migration SQL")
		}
	}

	_, err = tx.ExecContext(ctx, tx.Rebind("INSERT INTO schema_migrations (version, checksum) VALUES (?, ?)"),
		file.Version, calculateChecksum(content))
	if err != nil {
		return dbError(err, "failed to record migration")
	}
	return tx.Commit()
}
