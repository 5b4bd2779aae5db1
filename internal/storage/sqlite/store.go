// Package sqlite provides the SQLite-backed snapshot store.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	apperrors "github.com/carrydown/carrydown/internal/platform/errors"
	"github.com/carrydown/carrydown/internal/platform/storage/sqlitemigrate"
	"github.com/carrydown/carrydown/internal/snapshot"
	"github.com/carrydown/carrydown/internal/storage"
	"github.com/carrydown/carrydown/internal/storage/sqlite/migrations"
	_ "modernc.org/sqlite"
)

// Store provides SQLite-backed snapshot persistence.
type Store struct {
	sqlDB *sql.DB
}

// Open opens a snapshot SQLite store and applies migrations. Connection
// failures surface as STORE_UNAVAILABLE because nothing in a batch can
// proceed without the snapshot store.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeStoreUnavailable, "open snapshot db", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, apperrors.Wrap(apperrors.CodeStoreUnavailable, "ping snapshot db", err)
	}

	store := &Store{sqlDB: sqlDB}
	if err := sqlitemigrate.ApplyMigrations(sqlDB, migrations.FS, ""); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return store, nil
}

// Close releases the SQLite connection.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// ListSnapshots returns snapshot rows, optionally restricted to categories.
func (s *Store) ListSnapshots(ctx context.Context, categories []string) ([]storage.SnapshotRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	query := `
SELECT
	id,
	target_id,
	category,
	source_type,
	cluster_id,
	stable_id,
	source_bag_json,
	host_bag_json,
	captured_at
FROM snapshots
`
	var args []any
	cleaned := make([]string, 0, len(categories))
	for _, category := range categories {
		category = strings.TrimSpace(category)
		if category != "" {
			cleaned = append(cleaned, category)
		}
	}
	if len(cleaned) > 0 {
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(cleaned)), ",")
		query += "WHERE category IN (" + placeholders + ")\n"
		for _, category := range cleaned {
			args = append(args, category)
		}
	}
	query += "ORDER BY id"

	rows, err := s.sqlDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeStoreUnavailable, "list snapshots", err)
	}
	defer rows.Close()

	var records []storage.SnapshotRecord
	for rows.Next() {
		var record storage.SnapshotRecord
		var sourceType string
		var sourceBagJSON, hostBagJSON string
		var capturedAt int64
		if err := rows.Scan(
			&record.ID,
			&record.TargetID,
			&record.Category,
			&sourceType,
			&record.ClusterID,
			&record.StableID,
			&sourceBagJSON,
			&hostBagJSON,
			&capturedAt,
		); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		record.Source, err = snapshot.ParseSourceType(sourceType)
		if err != nil {
			return nil, fmt.Errorf("snapshot %d: %w", record.ID, err)
		}
		record.SourceBag, err = decodeBag(sourceBagJSON)
		if err != nil {
			return nil, fmt.Errorf("snapshot %d source bag: %w", record.ID, err)
		}
		record.HostBag, err = decodeBag(hostBagJSON)
		if err != nil {
			return nil, fmt.Errorf("snapshot %d host bag: %w", record.ID, err)
		}
		record.CapturedAt = fromMillis(capturedAt)
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshots: %w", err)
	}
	return records, nil
}

// ListConstituents returns the combined-membership rows in stored order.
func (s *Store) ListConstituents(ctx context.Context) ([]storage.ConstituentRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT
	combined_id,
	position,
	stable_id,
	cluster_id
FROM constituents
ORDER BY combined_id, position
`)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeStoreUnavailable, "list constituents", err)
	}
	defer rows.Close()

	var records []storage.ConstituentRecord
	for rows.Next() {
		var record storage.ConstituentRecord
		if err := rows.Scan(
			&record.CombinedID,
			&record.Position,
			&record.Ref.StableID,
			&record.Ref.ClusterID,
		); err != nil {
			return nil, fmt.Errorf("scan constituent: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate constituents: %w", err)
	}
	return records, nil
}

// ListStableIDs returns the target-to-stable-id bridge rows.
func (s *Store) ListStableIDs(ctx context.Context) ([]storage.StableIDRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT
	target_id,
	stable_id
FROM stable_ids
ORDER BY target_id
`)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeStoreUnavailable, "list stable ids", err)
	}
	defer rows.Close()

	var records []storage.StableIDRecord
	for rows.Next() {
		var record storage.StableIDRecord
		if err := rows.Scan(&record.TargetID, &record.StableID); err != nil {
			return nil, fmt.Errorf("scan stable id: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stable ids: %w", err)
	}
	return records, nil
}

func decodeBag(raw string) (snapshot.Bag, error) {
	if strings.TrimSpace(raw) == "" {
		return snapshot.Bag{}, nil
	}
	var bag snapshot.Bag
	if err := json.Unmarshal([]byte(raw), &bag); err != nil {
		return nil, fmt.Errorf("decode bag: %w", err)
	}
	if bag == nil {
		bag = snapshot.Bag{}
	}
	return bag, nil
}

func encodeBag(bag snapshot.Bag) (string, error) {
	if bag == nil {
		bag = snapshot.Bag{}
	}
	raw, err := json.Marshal(bag)
	if err != nil {
		return "", fmt.Errorf("encode bag: %w", err)
	}
	return string(raw), nil
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

var _ storage.SnapshotStore = (*Store)(nil)
