package db

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"github.com/newhook/testrun/internal/logging"
	trsignal "github.com/newhook/testrun/internal/signal"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Migration is one versioned schema change, read from a file named
// <version>_<name>.sql with "-- +up" and "-- +down" sections.
type Migration struct {
	Version string
	Name    string
	UpSQL   string
	DownSQL string
}

// ErrNoMigrations is returned by a rollback when nothing has been applied.
var ErrNoMigrations = errors.New("no migrations to roll back")

// RunMigrations applies pending migrations from the embedded schema.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	return RunMigrationsForFS(ctx, db, migrationsFS)
}

// RunMigrationsForFS applies pending migrations found in fsys, in version order.
func RunMigrationsForFS(ctx context.Context, db *sql.DB, fsys fs.FS) error {
	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	versions, err := MigrationStatus(ctx, db)
	if err != nil {
		return fmt.Errorf("failed to get applied migrations: %w", err)
	}
	applied := make(map[string]bool, len(versions))
	for _, v := range versions {
		applied[v] = true
	}

	migrations, err := readMigrations(fsys)
	if err != nil {
		return fmt.Errorf("failed to read migrations: %w", err)
	}

	for _, m := range migrations {
		if applied[m.Version] {
			continue
		}
		logging.Debug("applying migration", "version", m.Version, "name", m.Name)
		err := execMigration(ctx, db, m.UpSQL, "INSERT INTO schema_migrations (version) VALUES (?)", m.Version)
		if err != nil {
			return fmt.Errorf("failed to apply migration %s: %w", m.Version, err)
		}
	}
	return nil
}

// RollbackMigration reverts the newest applied migration of the embedded schema.
func RollbackMigration(ctx context.Context, db *sql.DB) error {
	return RollbackMigrationForFS(ctx, db, migrationsFS)
}

// RollbackMigrationForFS reverts the newest applied migration found in fsys.
func RollbackMigrationForFS(ctx context.Context, db *sql.DB, fsys fs.FS) error {
	var version string
	err := db.QueryRowContext(ctx,
		"SELECT version FROM schema_migrations ORDER BY version DESC LIMIT 1").Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNoMigrations
	}
	if err != nil {
		return fmt.Errorf("failed to get last migration: %w", err)
	}

	migrations, err := readMigrations(fsys)
	if err != nil {
		return fmt.Errorf("failed to read migrations: %w", err)
	}
	idx := sort.Search(len(migrations), func(i int) bool { return migrations[i].Version >= version })
	if idx == len(migrations) || migrations[idx].Version != version {
		return fmt.Errorf("migration %s not found", version)
	}
	m := migrations[idx]
	if strings.TrimSpace(m.DownSQL) == "" {
		return fmt.Errorf("migration %s has no down script", version)
	}

	logging.Debug("rolling back migration", "version", m.Version, "name", m.Name)
	return execMigration(ctx, db, m.DownSQL, "DELETE FROM schema_migrations WHERE version = ?", version)
}

// MigrationStatus returns the applied migration versions in order.
func MigrationStatus(ctx context.Context, db *sql.DB) ([]string, error) {
	rows, err := db.QueryContext(ctx, "SELECT version FROM schema_migrations ORDER BY version")
	if err != nil {
		if strings.Contains(err.Error(), "no such table") {
			return nil, nil
		}
		return nil, err
	}
	defer rows.Close()

	var versions []string
	for rows.Next() {
		var version string
		if err := rows.Scan(&version); err != nil {
			return nil, err
		}
		versions = append(versions, version)
	}
	return versions, rows.Err()
}

// execMigration runs script and the bookkeeping statement in one transaction.
// Signals are held back so an interrupt cannot leave a half-applied schema.
func execMigration(ctx context.Context, db *sql.DB, script, record, version string) error {
	trsignal.BlockSignals()
	defer trsignal.UnblockSignals()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range splitSQLStatements(script) {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to execute statement: %w", err)
		}
	}
	if _, err := tx.ExecContext(ctx, record, version); err != nil {
		return fmt.Errorf("failed to record migration: %w", err)
	}
	return tx.Commit()
}

func readMigrations(fsys fs.FS) ([]Migration, error) {
	var migrations []Migration
	err := fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || path.Ext(p) != ".sql" {
			return nil
		}

		content, err := fs.ReadFile(fsys, p)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", p, err)
		}

		version, name, ok := strings.Cut(strings.TrimSuffix(path.Base(p), ".sql"), "_")
		if !ok || version == "" || name == "" {
			return fmt.Errorf("invalid migration filename: %s", path.Base(p))
		}

		up, down := parseSections(string(content))
		migrations = append(migrations, Migration{Version: version, Name: name, UpSQL: up, DownSQL: down})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})
	return migrations, nil
}

// parseSections splits a migration file at its "-- +up" and "-- +down"
// markers. Text before the first marker is ignored.
func parseSections(content string) (up, down string) {
	var upLines, downLines []string
	var section *[]string
	for _, line := range strings.Split(content, "\n") {
		switch trimmed := strings.TrimSpace(line); {
		case strings.HasPrefix(trimmed, "-- +up"):
			section = &upLines
		case strings.HasPrefix(trimmed, "-- +down"):
			section = &downLines
		case section != nil:
			*section = append(*section, line)
		}
	}
	return strings.Join(upLines, "\n"), strings.Join(downLines, "\n")
}

// splitSQLStatements splits a script on semicolons that are outside quotes
// and comments. Empty statements are dropped.
func splitSQLStatements(script string) []string {
	var statements []string
	var current strings.Builder

	flush := func() {
		if stmt := strings.TrimSpace(current.String()); stmt != "" {
			statements = append(statements, stmt)
		}
		current.Reset()
	}

	runes := []rune(script)
	var quote rune
	lineComment, blockComment := false, false

	for i := 0; i < len(runes); i++ {
		c := runes[i]
		var next rune
		if i+1 < len(runes) {
			next = runes[i+1]
		}

		switch {
		case lineComment:
			lineComment = c != '\n'
		case blockComment:
			if c == '*' && next == '/' {
				current.WriteRune(c)
				c = next
				i++
				blockComment = false
			}
		case quote != 0:
			if c == quote && !escaped(runes, i) {
				quote = 0
			}
		case c == '-' && next == '-':
			lineComment = true
		case c == '/' && next == '*':
			blockComment = true
		case c == '\'' || c == '"' || c == '`':
			quote = c
		case c == ';':
			flush()
			continue
		}
		current.WriteRune(c)
	}
	flush()
	return statements
}

// escaped reports whether runes[i] is preceded by an odd number of backslashes.
func escaped(runes []rune, i int) bool {
	n := 0
	for j := i - 1; j >= 0 && runes[j] == '\\'; j-- {
		n++
	}
	return n%2 == 1
}
