// Package mapping defines attribute transfer mappings: which captured
// attribute feeds which target attribute, and from which bag.
package mapping

import (
	"fmt"
	"strings"

	apperrors "github.com/carrydown/carrydown/internal/platform/errors"
)

// DefaultSeparator splits already-aggregated constituent values so they do
// not get re-duplicated during combined aggregation.
const DefaultSeparator = ";"

// TransferKind selects the origin of a mapped value.
type TransferKind int

const (
	// TransferKindUnspecified represents an invalid transfer kind value.
	TransferKindUnspecified TransferKind = iota
	// TransferKindSource reads from the snapshot's source-object bag.
	TransferKindSource
	// TransferKindHost reads from the snapshot's host-structure bag.
	TransferKindHost
	// TransferKindLevel derives the hosting level from the host bag.
	TransferKindLevel
	// TransferKindMetadata reads facts about the snapshot itself.
	TransferKindMetadata
)

// String returns the canonical name for the transfer kind.
func (k TransferKind) String() string {
	switch k {
	case TransferKindSource:
		return "SOURCE"
	case TransferKindHost:
		return "HOST"
	case TransferKindLevel:
		return "LEVEL"
	case TransferKindMetadata:
		return "METADATA"
	default:
		return "UNSPECIFIED"
	}
}

// ParseTransferKind converts a configured string form into a TransferKind.
func ParseTransferKind(value string) (TransferKind, error) {
	switch strings.ToUpper(strings.TrimSpace(value)) {
	case "SOURCE":
		return TransferKindSource, nil
	case "HOST", "CONTEXT":
		return TransferKindHost, nil
	case "LEVEL":
		return TransferKindLevel, nil
	case "METADATA", "META":
		return TransferKindMetadata, nil
	default:
		return TransferKindUnspecified, apperrors.WithMetadata(
			apperrors.CodeMappingInvalidKind,
			fmt.Sprintf("unknown transfer kind %q", value),
			map[string]string{"kind": value},
		)
	}
}

// Mapping describes one attribute transfer. Mappings are independent of each
// other; their order within a configuration only matters for diagnostics.
type Mapping struct {
	SourceAttribute string
	TargetAttribute string
	// CategoryScope restricts the mapping to targets of one category.
	// Empty means the mapping applies to every category.
	CategoryScope string
	Kind          TransferKind
	Enabled       bool
	// Separator splits aggregated constituent values. Defaults to ";".
	Separator string
}

// EffectiveSeparator returns the configured separator or the default.
func (m Mapping) EffectiveSeparator() string {
	if m.Separator == "" {
		return DefaultSeparator
	}
	return m.Separator
}

// AppliesTo reports whether the mapping covers a target of the given category.
func (m Mapping) AppliesTo(category string) bool {
	if strings.TrimSpace(m.CategoryScope) == "" {
		return true
	}
	return strings.EqualFold(strings.TrimSpace(m.CategoryScope), strings.TrimSpace(category))
}

// Validate checks the mapping for configuration mistakes.
func (m Mapping) Validate() error {
	if strings.TrimSpace(m.SourceAttribute) == "" {
		return apperrors.New(apperrors.CodeMappingEmptySourceAttribute, "source attribute is required")
	}
	if strings.TrimSpace(m.TargetAttribute) == "" {
		return apperrors.New(apperrors.CodeMappingEmptyTargetAttribute, "target attribute is required")
	}
	if m.Kind == TransferKindUnspecified {
		return apperrors.New(apperrors.CodeMappingInvalidKind, "transfer kind is required")
	}
	return nil
}
