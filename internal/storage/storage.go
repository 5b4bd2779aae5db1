// Package storage defines the persistence contract for captured snapshots.
//
// The engine only depends on three access shapes: snapshot rows keyed by
// target/constituent identity, the combined-membership table, and the
// stable-id bridge. The physical schema belongs to the implementation.
package storage

import (
	"context"
	"time"

	"github.com/carrydown/carrydown/internal/snapshot"
	apperrors "github.com/carrydown/carrydown/internal/platform/errors"
)

// ErrNotFound indicates a requested persistence record is missing.
var ErrNotFound = apperrors.New(apperrors.CodeNotFound, "record not found")

// SnapshotRecord is one persisted snapshot row.
type SnapshotRecord struct {
	ID       int64
	TargetID int64
	Category string
	Source   snapshot.SourceType
	// ClusterID is set for cluster-tier snapshots, zero otherwise.
	ClusterID int64
	// StableID is the durable identifier bridging the snapshot to its
	// target when the numeric id has gone stale. Empty when never assigned.
	StableID   string
	SourceBag  snapshot.Bag
	HostBag    snapshot.Bag
	CapturedAt time.Time
}

// Snapshot converts the record into its domain form.
func (r SnapshotRecord) Snapshot() snapshot.Snapshot {
	return snapshot.Snapshot{
		ID:        r.ID,
		TargetID:  r.TargetID,
		Source:    r.Source,
		SourceBag: r.SourceBag,
		HostBag:   r.HostBag,
	}
}

// ConstituentRecord is one row of the combined-membership table.
type ConstituentRecord struct {
	CombinedID int64
	// Position preserves the order fixed at combination time.
	Position int
	Ref      snapshot.ConstituentRef
}

// StableIDRecord bridges a target id to its durable identifier.
type StableIDRecord struct {
	TargetID int64
	StableID string
}

// SnapshotStore is the read-only view the engine consumes per batch.
type SnapshotStore interface {
	// ListSnapshots returns snapshot rows for the given categories.
	// An empty category list returns every row.
	ListSnapshots(ctx context.Context, categories []string) ([]SnapshotRecord, error)
	ListConstituents(ctx context.Context) ([]ConstituentRecord, error)
	ListStableIDs(ctx context.Context) ([]StableIDRecord, error)
}

// SnapshotWriter is the capture-side contract used at placement/refresh time
// and by seeding tools. A re-capture supersedes rows, never mutates them.
type SnapshotWriter interface {
	PutSnapshot(ctx context.Context, record SnapshotRecord) (int64, error)
	PutConstituents(ctx context.Context, combinedID int64, refs []snapshot.ConstituentRef) error
	PutStableID(ctx context.Context, targetID int64, stableID string) error
	DeleteSnapshotsForTarget(ctx context.Context, targetID int64) error
}
