// Package index builds the per-batch snapshot lookup structure.
//
// The index is loaded once per batch from the snapshot store and never
// patched; each invocation of the engine gets its own immutable copy.
package index

import (
	"context"
	"fmt"
	"strings"

	apperrors "github.com/carrydown/carrydown/internal/platform/errors"
	"github.com/carrydown/carrydown/internal/snapshot"
	"github.com/carrydown/carrydown/internal/storage"
)

// Index provides the four resolution paths over one batch's snapshots:
// by individual target id, by cluster id, by stable id, and the combined
// constituent map.
type Index struct {
	byIndividual   map[int64]snapshot.Snapshot
	byCluster      map[int64]snapshot.Snapshot
	byStable       map[string]snapshot.Snapshot
	stableByTarget map[int64]string
	constituents   map[int64][]snapshot.ConstituentRef
}

// Load builds the index in one pass over the store for the categories
// relevant to the batch. A store that cannot be reached aborts the whole
// batch with STORE_UNAVAILABLE; that is the only early-abort condition.
func Load(ctx context.Context, store storage.SnapshotStore, categories []string) (*Index, error) {
	if store == nil {
		return nil, apperrors.New(apperrors.CodeStoreUnavailable, "snapshot store is required")
	}

	records, err := store.ListSnapshots(ctx, categories)
	if err != nil {
		return nil, fmt.Errorf("load snapshots: %w", err)
	}
	constituentRecords, err := store.ListConstituents(ctx)
	if err != nil {
		return nil, fmt.Errorf("load constituents: %w", err)
	}
	bridgeRecords, err := store.ListStableIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("load stable ids: %w", err)
	}

	idx := &Index{
		byIndividual:   make(map[int64]snapshot.Snapshot),
		byCluster:      make(map[int64]snapshot.Snapshot),
		byStable:       make(map[string]snapshot.Snapshot),
		stableByTarget: make(map[int64]string),
		constituents:   make(map[int64][]snapshot.ConstituentRef),
	}

	// Records arrive ordered by insertion; a re-captured snapshot for the
	// same identity supersedes the earlier row.
	for _, record := range records {
		snap := record.Snapshot()
		switch record.Source {
		case snapshot.SourceTypeIndividual:
			idx.byIndividual[record.TargetID] = snap
		case snapshot.SourceTypeCluster:
			clusterID := record.ClusterID
			if clusterID == 0 {
				clusterID = record.TargetID
			}
			idx.byCluster[clusterID] = snap
		}
		if stableID := strings.TrimSpace(record.StableID); stableID != "" {
			idx.byStable[stableID] = snap
		}
	}

	for _, record := range constituentRecords {
		if record.Ref.Empty() {
			continue
		}
		idx.constituents[record.CombinedID] = append(idx.constituents[record.CombinedID], record.Ref)
	}

	for _, record := range bridgeRecords {
		if stableID := strings.TrimSpace(record.StableID); stableID != "" {
			idx.stableByTarget[record.TargetID] = stableID
		}
	}

	return idx, nil
}

// Individual returns the individual-tier snapshot for a target id.
func (idx *Index) Individual(targetID int64) (snapshot.Snapshot, bool) {
	snap, ok := idx.byIndividual[targetID]
	return snap, ok
}

// Cluster returns the cluster-tier snapshot for a cluster id.
func (idx *Index) Cluster(clusterID int64) (snapshot.Snapshot, bool) {
	if clusterID == 0 {
		return snapshot.Snapshot{}, false
	}
	snap, ok := idx.byCluster[clusterID]
	return snap, ok
}

// Stable returns the snapshot reachable through a stable id.
func (idx *Index) Stable(stableID string) (snapshot.Snapshot, bool) {
	stableID = strings.TrimSpace(stableID)
	if stableID == "" {
		return snapshot.Snapshot{}, false
	}
	snap, ok := idx.byStable[stableID]
	return snap, ok
}

// StableIDFor returns the bridged stable id for a target whose numeric id
// may have gone stale.
func (idx *Index) StableIDFor(targetID int64) (string, bool) {
	stableID, ok := idx.stableByTarget[targetID]
	return stableID, ok
}

// Constituents returns the ordered constituent references for a combined
// target, and whether the target is combined at all.
func (idx *Index) Constituents(combinedID int64) ([]snapshot.ConstituentRef, bool) {
	refs, ok := idx.constituents[combinedID]
	return refs, ok
}

// IsCombined reports whether the target id appears in the combined map.
func (idx *Index) IsCombined(targetID int64) bool {
	_, ok := idx.constituents[targetID]
	return ok
}
