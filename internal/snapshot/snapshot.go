// Package snapshot defines the attribute state captured from source objects
// at placement time. Snapshots are immutable once captured; a re-capture
// supersedes the previous snapshot wholesale instead of mutating it.
package snapshot

import (
	"fmt"
	"strings"
)

// SourceType describes which placement tier a snapshot was captured for.
type SourceType int

const (
	// SourceTypeUnspecified represents an invalid source type value.
	SourceTypeUnspecified SourceType = iota
	// SourceTypeIndividual indicates a snapshot for a single placement.
	SourceTypeIndividual
	// SourceTypeCluster indicates a snapshot for a same-category cluster.
	SourceTypeCluster
	// SourceTypeCombined indicates a snapshot synthesized across categories.
	SourceTypeCombined
)

// SyntheticID marks snapshots that were aggregated in memory for a combined
// target rather than read from the store.
const SyntheticID int64 = -1

// String returns the canonical name for the source type.
func (t SourceType) String() string {
	switch t {
	case SourceTypeIndividual:
		return "INDIVIDUAL"
	case SourceTypeCluster:
		return "CLUSTER"
	case SourceTypeCombined:
		return "COMBINED"
	default:
		return "UNSPECIFIED"
	}
}

// ParseSourceType converts a stored string form back into a SourceType.
func ParseSourceType(value string) (SourceType, error) {
	switch strings.ToUpper(strings.TrimSpace(value)) {
	case "INDIVIDUAL":
		return SourceTypeIndividual, nil
	case "CLUSTER":
		return SourceTypeCluster, nil
	case "COMBINED":
		return SourceTypeCombined, nil
	default:
		return SourceTypeUnspecified, fmt.Errorf("unknown source type %q", value)
	}
}

// Snapshot is the captured attribute state for one placement object.
//
// Two bags exist per snapshot: SourceBag holds the attributes of the source
// object itself, HostBag holds the attributes of the structure the placement
// is embedded in.
type Snapshot struct {
	ID        int64
	TargetID  int64
	Source    SourceType
	SourceBag Bag
	HostBag   Bag
}

// Synthetic reports whether the snapshot was aggregated in memory.
func (s Snapshot) Synthetic() bool {
	return s.ID == SyntheticID
}

// ConstituentRef identifies one contributor to a combined target. Either
// field may be absent; a reference with both fields empty resolves nothing.
type ConstituentRef struct {
	StableID  string
	ClusterID int64
}

// Empty reports whether the reference carries no usable identity.
func (r ConstituentRef) Empty() bool {
	return strings.TrimSpace(r.StableID) == "" && r.ClusterID == 0
}
