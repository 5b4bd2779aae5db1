// Package sqlitemigrate applies the embedded .sql migrations that ship with
// the snapshot store and the host placement model. Each migration file may
// carry "-- +migrate Up" / "-- +migrate Down" sections; only the Up section
// executes, at most once per file, with every applied file recorded in a
// ledger table inside the migrated database.
package sqlitemigrate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"time"
)

const (
	ledgerTable = "schema_migrations"
	upMarker    = "-- +migrate Up"
	downMarker  = "-- +migrate Down"
)

// ApplyMigrations runs every pending .sql file under dir in filename order.
// Files already present in the ledger are skipped, so both stores call this
// unconditionally on every open. An empty dir means the root of fsys.
func ApplyMigrations(db *sql.DB, fsys fs.FS, dir string) error {
	if db == nil {
		return errors.New("database handle is required")
	}
	files, err := listMigrations(fsys, dir)
	if err != nil {
		return err
	}
	if err := ensureLedger(db); err != nil {
		return err
	}
	for _, file := range files {
		if err := applyFile(db, fsys, file); err != nil {
			return err
		}
	}
	return nil
}

func listMigrations(fsys fs.FS, dir string) ([]string, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		dir = "."
	}
	files, err := fs.Glob(fsys, path.Join(dir, "*.sql"))
	if err != nil {
		return nil, fmt.Errorf("list migrations: %w", err)
	}
	sort.Strings(files)
	return files, nil
}

func ensureLedger(db *sql.DB) error {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS ` + ledgerTable + ` (
		name TEXT PRIMARY KEY,
		applied_at INTEGER NOT NULL
	)`)
	if err != nil {
		return fmt.Errorf("ensure migration ledger: %w", err)
	}
	return nil
}

// applyFile executes one migration's Up section and records it, both inside
// a single transaction so a failed migration leaves no ledger entry.
func applyFile(db *sql.DB, fsys fs.FS, file string) error {
	done, err := applied(db, file)
	if err != nil {
		return fmt.Errorf("check ledger for %s: %w", file, err)
	}
	if done {
		return nil
	}

	content, err := fs.ReadFile(fsys, file)
	if err != nil {
		return fmt.Errorf("read migration %s: %w", file, err)
	}
	stmts := upSection(string(content))
	if strings.TrimSpace(stmts) == "" {
		return nil
	}

	tx, err := db.BeginTx(context.Background(), nil)
	if err != nil {
		return fmt.Errorf("begin migration %s: %w", file, err)
	}
	if _, err := tx.Exec(stmts); err != nil && !isIdempotentDDL(err) {
		_ = tx.Rollback()
		return fmt.Errorf("apply migration %s: %w", file, err)
	}
	record := "INSERT OR IGNORE INTO " + ledgerTable + " (name, applied_at) VALUES (?, ?)"
	if _, err := tx.Exec(record, file, time.Now().UTC().UnixMilli()); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("record migration %s: %w", file, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration %s: %w", file, err)
	}
	return nil
}

// upSection returns the statements between the Up marker and the Down
// marker. Content without markers runs whole, so plain .sql files work too.
func upSection(content string) string {
	up := strings.Index(content, upMarker)
	if up == -1 {
		return content
	}
	rest := content[up+len(upMarker):]
	if down := strings.Index(rest, downMarker); down != -1 {
		return rest[:down]
	}
	return rest
}

// isIdempotentDDL reports whether a statement failed only because its object
// already exists, which happens when a database predates the ledger table.
func isIdempotentDDL(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "already exists") ||
		strings.Contains(msg, "duplicate column name")
}

func applied(db *sql.DB, name string) (bool, error) {
	var one int
	err := db.QueryRow("SELECT 1 FROM "+ledgerTable+" WHERE name = ?", name).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
