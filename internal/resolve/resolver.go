// Package resolve finds the owning snapshot for a target and extracts the
// best-matching attribute value for a transfer mapping.
package resolve

import (
	"strconv"
	"strings"

	"github.com/carrydown/carrydown/internal/index"
	"github.com/carrydown/carrydown/internal/mapping"
	"github.com/carrydown/carrydown/internal/snapshot"
	"github.com/carrydown/carrydown/internal/target"
)

// Resolver resolves owning snapshots against one batch's index. Synthesized
// combined snapshots are memoized per (target, separator) so the optimized
// execution path resolves each target once.
type Resolver struct {
	idx      *index.Index
	combined map[combinedKey]snapshot.Snapshot
}

type combinedKey struct {
	targetID  int64
	separator string
}

// New creates a resolver over a loaded index.
func New(idx *index.Index) *Resolver {
	return &Resolver{
		idx:      idx,
		combined: make(map[combinedKey]snapshot.Snapshot),
	}
}

// Owner resolves the snapshot owning a target, trying the most aggregated
// applicable tier first: combined, then cluster, then individual, then the
// stable-id fallback. The combined path wins unconditionally even when the
// id is also reachable through another path.
func (r *Resolver) Owner(handle target.Handle, separator string) (snapshot.Snapshot, bool) {
	chain := []func(target.Handle) (snapshot.Snapshot, bool){
		func(h target.Handle) (snapshot.Snapshot, bool) {
			return r.combinedFor(h.ID(), separator)
		},
		func(h target.Handle) (snapshot.Snapshot, bool) {
			return r.idx.Cluster(h.ClusterID())
		},
		func(h target.Handle) (snapshot.Snapshot, bool) {
			return r.idx.Individual(h.ID())
		},
		func(h target.Handle) (snapshot.Snapshot, bool) {
			stableID, ok := r.idx.StableIDFor(h.ID())
			if !ok {
				return snapshot.Snapshot{}, false
			}
			return r.idx.Stable(stableID)
		},
	}
	for _, resolve := range chain {
		if snap, ok := resolve(handle); ok {
			return snap, true
		}
	}
	return snapshot.Snapshot{}, false
}

func (r *Resolver) combinedFor(targetID int64, separator string) (snapshot.Snapshot, bool) {
	if !r.idx.IsCombined(targetID) {
		return snapshot.Snapshot{}, false
	}
	key := combinedKey{targetID: targetID, separator: separator}
	if snap, ok := r.combined[key]; ok {
		return snap, true
	}
	snap := r.aggregateCombined(targetID, separator)
	r.combined[key] = snap
	return snap, true
}

// Extract pulls the mapped value out of a resolved snapshot. The bool result
// is false when no non-blank value matched.
func Extract(snap snapshot.Snapshot, category string, m mapping.Mapping) (string, bool) {
	switch m.Kind {
	case mapping.TransferKindSource:
		return lookupVariants(snap.SourceBag, m.SourceAttribute, category)
	case mapping.TransferKindHost:
		return lookupVariants(snap.HostBag, m.SourceAttribute, category)
	case mapping.TransferKindLevel:
		return lookupLevel(snap.HostBag)
	case mapping.TransferKindMetadata:
		return lookupMetadata(snap, m.SourceAttribute)
	default:
		return "", false
	}
}

// levelCandidates are the host attribute names that carry the hosting level,
// in preference order.
var levelCandidates = []string{"Reference Level", "Level", "Schedule Level"}

func lookupLevel(bag snapshot.Bag) (string, bool) {
	for _, name := range levelCandidates {
		if value, ok := bag.Lookup(name); ok {
			return value, true
		}
	}
	return "", false
}

func lookupMetadata(snap snapshot.Snapshot, field string) (string, bool) {
	switch metadataKey(field) {
	case "tier", "sourcetype":
		if snap.Source == snapshot.SourceTypeUnspecified {
			return "", false
		}
		return snap.Source.String(), true
	case "snapshotid":
		if snap.Synthetic() {
			return "", false
		}
		return strconv.FormatInt(snap.ID, 10), true
	case "targetid":
		return strconv.FormatInt(snap.TargetID, 10), true
	default:
		return "", false
	}
}

// metadataKey canonicalizes a metadata selector so that "Snapshot Id",
// "SnapshotId", and "snapshot_id" all name the same field.
func metadataKey(field string) string {
	key := target.NormalizeName(field)
	key = strings.ReplaceAll(key, " ", "")
	return strings.ReplaceAll(key, "_", "")
}
