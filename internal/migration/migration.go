package migration

import (
	"context"
	"crypto/sha256"
	"database/sql"
	stderrors "errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"mlgate/internal/errors"

	"github.com/jmoiron/sqlx"
)

// Migrator defines the interface for database migration operations
type Migrator interface {
	Run(ctx context.Context, db *sqlx.DB) error
	Version() string
}

// MigrationFile is one embedded NNN_name.sql script
type MigrationFile struct {
	Version string
	Name    string
	SQL     string
}

// Checksum is the SHA-256 of the script text
func (f MigrationFile) Checksum() string {
	return fmt.Sprintf("%x", sha256.Sum256([]byte(f.SQL)))
}

// MigrationStatus reports whether a script has been applied
type MigrationStatus struct {
	Version string
	Name    string
	Applied bool
}

// MigrationRunner applies the .sql files of an embedded directory in
// version order and records each one in schema_migrations with its
// checksum. A recorded checksum that no longer matches is an error.
type MigrationRunner struct {
	files fs.FS
	dir   string
}

// NewRunner creates a runner over dir inside files
func NewRunner(files fs.FS, dir string) *MigrationRunner {
	return &MigrationRunner{files: files, dir: dir}
}

// Version returns the highest available migration version
func (r *MigrationRunner) Version() string {
	files, err := r.migrationFiles()
	if err != nil || len(files) == 0 {
		return ""
	}
	return files[len(files)-1].Version
}

// Run executes all pending migrations
func (r *MigrationRunner) Run(ctx context.Context, db *sqlx.DB) error {
	if err := r.ensureTable(ctx, db); err != nil {
		return errors.Wrap(err, "failed to create schema_migrations table")
	}

	applied, err := r.appliedChecksums(ctx, db)
	if err != nil {
		return errors.Wrap(err, "failed to read applied migrations")
	}

	files, err := r.migrationFiles()
	if err != nil {
		return errors.Wrap(err, "failed to find migration files")
	}

	for _, file := range files {
		if checksum, ok := applied[file.Version]; ok {
			if checksum != file.Checksum() {
				return errors.New(errors.CodeTrackingStore,
					fmt.Sprintf("migration %s was modified after it was applied", file.Version))
			}
			continue
		}
		if err := r.apply(ctx, db, file); err != nil {
			return errors.Wrapf(err, "failed to apply migration %s", file.Version)
		}
	}
	return nil
}

// Status lists every known migration and whether it has been applied
func (r *MigrationRunner) Status(ctx context.Context, db *sqlx.DB) ([]MigrationStatus, error) {
	if err := r.ensureTable(ctx, db); err != nil {
		return nil, errors.Wrap(err, "failed to ensure schema_migrations table")
	}
	applied, err := r.appliedChecksums(ctx, db)
	if err != nil {
		return nil, err
	}
	files, err := r.migrationFiles()
	if err != nil {
		return nil, err
	}

	statuses := make([]MigrationStatus, len(files))
	for i, f := range files {
		_, ok := applied[f.Version]
		statuses[i] = MigrationStatus{Version: f.Version, Name: f.Name, Applied: ok}
	}
	return statuses, nil
}

func (r *MigrationRunner) ensureTable(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version VARCHAR(32) PRIMARY KEY,
			checksum VARCHAR(64) NOT NULL,
			applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`)
	return err
}

func (r *MigrationRunner) appliedChecksums(ctx context.Context, db *sqlx.DB) (map[string]string, error) {
	var rows []struct {
		Version  string `db:"version"`
		Checksum string `db:"checksum"`
	}
	if err := db.SelectContext(ctx, &rows, "SELECT version, checksum FROM schema_migrations"); err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return map[string]string{}, nil
		}
		return nil, err
	}
	applied := make(map[string]string, len(rows))
	for _, row := range rows {
		applied[row.Version] = row.Checksum
	}
	return applied, nil
}

// migrationFiles discovers NNN_name.sql files sorted by version
func (r *MigrationRunner) migrationFiles() ([]MigrationFile, error) {
	entries, err := fs.ReadDir(r.files, r.dir)
	if err != nil {
		return nil, err
	}

	var files []MigrationFile
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		version, name, ok := strings.Cut(strings.TrimSuffix(entry.Name(), ".sql"), "_")
		if !ok {
			continue
		}
		raw, err := fs.ReadFile(r.files, path.Join(r.dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		files = append(files, MigrationFile{Version: version, Name: name, SQL: string(raw)})
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].Version < files[j].Version
	})
	return files, nil
}

// apply runs one script statement by statement inside a transaction
func (r *MigrationRunner) apply(ctx context.Context, db *sqlx.DB, file MigrationFile) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range SplitStatements(file.SQL) {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to execute %q: %w", firstLine(stmt), err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		tx.Rebind("INSERT INTO schema_migrations (version, checksum) VALUES (?, ?)"),
		file.Version, file.Checksum()); err != nil {
		return fmt.Errorf("failed to record migration: %w", err)
	}
	return tx.Commit()
}

// SplitStatements splits a script on ';' line endings and drops comment-only
// lines. Scripts must not put ';' inside string literals.
func SplitStatements(script string) []string {
	var statements []string
	var current strings.Builder
	for _, line := range strings.Split(script, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "--") {
			continue
		}
		current.WriteString(line)
		current.WriteString("\n")
		if strings.HasSuffix(trimmed, ";") {
			stmt := strings.TrimSpace(current.String())
			statements = append(statements, strings.TrimSuffix(stmt, ";"))
			current.Reset()
		}
	}
	if rest := strings.TrimSpace(current.String()); rest != "" {
		statements = append(statements, rest)
	}
	return statements
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return strings.TrimSpace(line)
}
