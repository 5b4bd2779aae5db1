package sqlite

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/carrydown/carrydown/internal/snapshot"
	"github.com/carrydown/carrydown/internal/storage"
)

// PutSnapshot persists one captured snapshot row and returns its id.
func (s *Store) PutSnapshot(ctx context.Context, record storage.SnapshotRecord) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if s == nil || s.sqlDB == nil {
		return 0, fmt.Errorf("storage is not configured")
	}
	if record.TargetID == 0 {
		return 0, fmt.Errorf("target id is required")
	}
	if record.Source == snapshot.SourceTypeUnspecified {
		return 0, fmt.Errorf("source type is required")
	}
	if record.CapturedAt.IsZero() {
		record.CapturedAt = time.Now().UTC()
	}

	sourceBagJSON, err := encodeBag(record.SourceBag)
	if err != nil {
		return 0, err
	}
	hostBagJSON, err := encodeBag(record.HostBag)
	if err != nil {
		return 0, err
	}

	result, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO snapshots (
	target_id,
	category,
	source_type,
	cluster_id,
	stable_id,
	source_bag_json,
	host_bag_json,
	captured_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
`,
		record.TargetID,
		strings.TrimSpace(record.Category),
		record.Source.String(),
		record.ClusterID,
		strings.TrimSpace(record.StableID),
		sourceBagJSON,
		hostBagJSON,
		toMillis(record.CapturedAt),
	)
	if err != nil {
		return 0, fmt.Errorf("put snapshot: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("snapshot insert id: %w", err)
	}
	return id, nil
}

// PutConstituents replaces the ordered constituent list for a combined target.
// The list is fixed at combination time, so a re-capture writes it wholesale.
func (s *Store) PutConstituents(ctx context.Context, combinedID int64, refs []snapshot.ConstituentRef) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if combinedID == 0 {
		return fmt.Errorf("combined id is required")
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin constituents tx: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM constituents WHERE combined_id = ?`, combinedID); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("clear constituents: %w", err)
	}
	for position, ref := range refs {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO constituents (combined_id, position, stable_id, cluster_id)
VALUES (?, ?, ?, ?)
`, combinedID, position, strings.TrimSpace(ref.StableID), ref.ClusterID); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("put constituent %d: %w", position, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit constituents: %w", err)
	}
	return nil
}

// PutStableID records or replaces the stable-id bridge entry for a target.
func (s *Store) PutStableID(ctx context.Context, targetID int64, stableID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if targetID == 0 {
		return fmt.Errorf("target id is required")
	}
	stableID = strings.TrimSpace(stableID)
	if stableID == "" {
		return fmt.Errorf("stable id is required")
	}

	if _, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO stable_ids (target_id, stable_id)
VALUES (?, ?)
ON CONFLICT(target_id) DO UPDATE SET stable_id = excluded.stable_id
`, targetID, stableID); err != nil {
		return fmt.Errorf("put stable id: %w", err)
	}
	return nil
}

// DeleteSnapshotsForTarget removes superseded rows before a re-capture.
func (s *Store) DeleteSnapshotsForTarget(ctx context.Context, targetID int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if targetID == 0 {
		return fmt.Errorf("target id is required")
	}

	if _, err := s.sqlDB.ExecContext(ctx, `DELETE FROM snapshots WHERE target_id = ?`, targetID); err != nil {
		return fmt.Errorf("delete snapshots: %w", err)
	}
	return nil
}

var _ storage.SnapshotWriter = (*Store)(nil)
