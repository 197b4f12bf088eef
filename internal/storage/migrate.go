package storage

import (
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strconv"
	"strings"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

const createVersionTable = `CREATE TABLE IF NOT EXISTS schema_migrations (
    version INTEGER PRIMARY KEY,
    name    TEXT NOT NULL
)`

type migration struct {
	version int
	name    string
	file    string
}

// MigrateUp applies every migration not yet recorded in schema_migrations,
// oldest first, each in its own transaction.
func MigrateUp(db *sql.DB) error {
	pending, err := loadMigrations(".up.sql")
	if err != nil {
		return err
	}
	if _, err := db.Exec(createVersionTable); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}
	applied, err := appliedVersions(db)
	if err != nil {
		return err
	}
	for _, m := range pending {
		if applied[m.version] {
			continue
		}
		if err := runMigration(db, m, `INSERT OR IGNORE INTO schema_migrations (version, name) VALUES (?, ?)`, m.version, m.name); err != nil {
			return err
		}
	}
	return nil
}

// MigrateDown reverts applied migrations newest first.
func MigrateDown(db *sql.DB) error {
	pending, err := loadMigrations(".down.sql")
	if err != nil {
		return err
	}
	if _, err := db.Exec(createVersionTable); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}
	applied, err := appliedVersions(db)
	if err != nil {
		return err
	}
	for i := len(pending) - 1; i >= 0; i-- {
		m := pending[i]
		if !applied[m.version] {
			continue
		}
		if err := runMigration(db, m, `DELETE FROM schema_migrations WHERE version = ?`, m.version); err != nil {
			return err
		}
	}
	return nil
}

// SchemaVersion is the highest applied migration, or zero on a fresh file.
func SchemaVersion(db *sql.DB) (int, error) {
	if _, err := db.Exec(createVersionTable); err != nil {
		return 0, fmt.Errorf("create schema_migrations: %w", err)
	}
	var v sql.NullInt64
	if err := db.QueryRow(`SELECT MAX(version) FROM schema_migrations`).Scan(&v); err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return int(v.Int64), nil
}

func loadMigrations(suffix string) ([]migration, error) {
	entries, err := fs.Glob(migrationFiles, "migrations/*"+suffix)
	if err != nil {
		return nil, fmt.Errorf("glob migrations: %w", err)
	}
	out := make([]migration, 0, len(entries))
	for _, file := range entries {
		base := strings.TrimSuffix(path.Base(file), suffix)
		prefix, name, ok := strings.Cut(base, "_")
		version, convErr := strconv.Atoi(prefix)
		if !ok || convErr != nil {
			return nil, fmt.Errorf("migration %s: name must be NNNN_description%s", file, suffix)
		}
		out = append(out, migration{version: version, name: name, file: file})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].version < out[j].version })
	return out, nil
}

func appliedVersions(db *sql.DB) (map[int]bool, error) {
	rows, err := db.Query(`SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("list applied migrations: %w", err)
	}
	defer rows.Close()
	applied := make(map[int]bool)
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan migration version: %w", err)
		}
		applied[v] = true
	}
	return applied, rows.Err()
}

func runMigration(db *sql.DB, m migration, record string, args ...any) error {
	body, err := migrationFiles.ReadFile(m.file)
	if err != nil {
		return fmt.Errorf("read migration %s: %w", m.file, err)
	}
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin migration %s: %w", m.file, err)
	}
	defer func() { _ = tx.Rollback() }()
	if _, err := tx.Exec(string(body)); err != nil {
		return fmt.Errorf("apply migration %s: %w", m.file, err)
	}
	if _, err := tx.Exec(record, args...); err != nil {
		return fmt.Errorf("record migration %s: %w", m.file, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration %s: %w", m.file, err)
	}
	return nil
}
