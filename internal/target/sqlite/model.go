// Package sqlite provides the SQLite-backed host placement model.
//
// The model owns the atomic update scope: callers begin a transaction, hand
// the engine a Workspace bound to it, and commit (or roll back) themselves.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/carrydown/carrydown/internal/platform/storage/sqlitemigrate"
	"github.com/carrydown/carrydown/internal/target"
	"github.com/carrydown/carrydown/internal/target/sqlite/migrations"
	_ "modernc.org/sqlite"
)

// Model provides SQLite-backed placement persistence.
type Model struct {
	sqlDB *sql.DB
}

// Open opens a placement model and applies migrations.
func Open(path string) (*Model, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("model path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open model db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping model db: %w", err)
	}

	model := &Model{sqlDB: sqlDB}
	if err := sqlitemigrate.ApplyMigrations(sqlDB, migrations.FS, ""); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return model, nil
}

// Close releases the SQLite connection.
func (m *Model) Close() error {
	if m == nil || m.sqlDB == nil {
		return nil
	}
	return m.sqlDB.Close()
}

// Begin opens the atomic update scope for one batch.
func (m *Model) Begin(ctx context.Context) (*sql.Tx, error) {
	if m == nil || m.sqlDB == nil {
		return nil, fmt.Errorf("model is not configured")
	}
	tx, err := m.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin model tx: %w", err)
	}
	return tx, nil
}

// PutPlacement registers or replaces a placement row.
func (m *Model) PutPlacement(ctx context.Context, id int64, category string, clusterID int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if m == nil || m.sqlDB == nil {
		return fmt.Errorf("model is not configured")
	}
	if id == 0 {
		return fmt.Errorf("placement id is required")
	}

	if _, err := m.sqlDB.ExecContext(ctx, `
INSERT INTO placements (id, category, cluster_id)
VALUES (?, ?, ?)
ON CONFLICT(id) DO UPDATE SET category = excluded.category, cluster_id = excluded.cluster_id
`, id, strings.TrimSpace(category), clusterID); err != nil {
		return fmt.Errorf("put placement: %w", err)
	}
	return nil
}

// ListPlacementIDs returns every placement id, optionally restricted to
// categories, ordered by id.
func (m *Model) ListPlacementIDs(ctx context.Context, categories []string) ([]int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m == nil || m.sqlDB == nil {
		return nil, fmt.Errorf("model is not configured")
	}

	query := `SELECT id FROM placements`
	var args []any
	if len(categories) > 0 {
		placeholders := make([]string, len(categories))
		for i, category := range categories {
			placeholders[i] = "?"
			args = append(args, strings.TrimSpace(category))
		}
		query += ` WHERE category IN (` + strings.Join(placeholders, ", ") + `)`
	}
	query += ` ORDER BY id`

	rows, err := m.sqlDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list placements: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan placement id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate placements: %w", err)
	}
	return ids, nil
}

// PutAttribute declares an attribute slot on a placement.
func (m *Model) PutAttribute(ctx context.Context, placementID int64, name string, storageType target.StorageType, readOnly bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if m == nil || m.sqlDB == nil {
		return fmt.Errorf("model is not configured")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("attribute name is required")
	}
	if storageType == target.StorageTypeUnspecified {
		return fmt.Errorf("storage type is required")
	}

	readOnlyFlag := 0
	if readOnly {
		readOnlyFlag = 1
	}
	if _, err := m.sqlDB.ExecContext(ctx, `
INSERT INTO placement_attributes (placement_id, name, name_key, storage_type, read_only)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(placement_id, name_key) DO UPDATE SET
	name = excluded.name,
	storage_type = excluded.storage_type,
	read_only = excluded.read_only
`, placementID, name, target.NormalizeName(name), storageType.String(), readOnlyFlag); err != nil {
		return fmt.Errorf("put attribute: %w", err)
	}
	return nil
}
