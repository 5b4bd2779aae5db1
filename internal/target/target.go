// Package target defines the capability surface the engine uses to read and
// mutate placement objects in the host model.
//
// The engine is always called inside a caller-owned atomic update scope; a
// Workspace is the capability handed in for that scope. The engine never
// opens or closes the scope itself.
package target

import (
	"context"
	"strings"

	apperrors "github.com/carrydown/carrydown/internal/platform/errors"
)

// ErrTargetNotFound indicates the requested placement does not exist or was
// structurally removed mid-batch.
var ErrTargetNotFound = apperrors.New(apperrors.CodeTargetBecameInvalid, "target not found")

// StorageType describes how an attribute value is stored on the target.
type StorageType int

const (
	// StorageTypeUnspecified represents an invalid storage type value.
	StorageTypeUnspecified StorageType = iota
	// StorageTypeText stores free-form text.
	StorageTypeText
	// StorageTypeNumber stores a numeric value.
	StorageTypeNumber
)

// String returns the canonical name for the storage type.
func (t StorageType) String() string {
	switch t {
	case StorageTypeText:
		return "TEXT"
	case StorageTypeNumber:
		return "NUMBER"
	default:
		return "UNSPECIFIED"
	}
}

// Attribute is one writable slot on a placement object.
type Attribute interface {
	Name() string
	Type() StorageType
	ReadOnly() bool
	// Text returns the current value rendered as a string. Numeric
	// attributes render without a trailing zero fraction.
	Text() string
	SetText(ctx context.Context, value string) error
	SetNumber(ctx context.Context, value float64) error
}

// Handle is one placement object resolved inside the current scope.
type Handle interface {
	ID() int64
	Category() string
	// ClusterID returns the owning cluster id, zero when the placement does
	// not belong to a cluster.
	ClusterID() int64
	// Attribute resolves a named attribute case-insensitively. The second
	// result is false when the attribute does not exist on the target.
	Attribute(name string) (Attribute, bool)
}

// Workspace resolves placement handles inside the caller's atomic scope.
type Workspace interface {
	Target(ctx context.Context, id int64) (Handle, error)
}

// NormalizeName canonicalizes an attribute name for case-insensitive keying.
func NormalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
