// Package memory provides an in-memory host model used by tests and fixtures.
package memory

import (
	"context"
	"fmt"
	"strconv"

	apperrors "github.com/carrydown/carrydown/internal/platform/errors"
	"github.com/carrydown/carrydown/internal/target"
)

// Workspace is an in-memory target.Workspace.
type Workspace struct {
	targets map[int64]*Target
}

// NewWorkspace creates an empty in-memory workspace.
func NewWorkspace() *Workspace {
	return &Workspace{targets: make(map[int64]*Target)}
}

// Add registers a placement in the workspace.
func (w *Workspace) Add(t *Target) {
	w.targets[t.id] = t
}

// Invalidate simulates a structural removal of the placement mid-batch.
func (w *Workspace) Invalidate(id int64) {
	if t, ok := w.targets[id]; ok {
		t.invalid = true
	}
}

// Target resolves a placement handle by id.
func (w *Workspace) Target(ctx context.Context, id int64) (target.Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t, ok := w.targets[id]
	if !ok || t.invalid {
		return nil, target.ErrTargetNotFound
	}
	return t, nil
}

// Target is one in-memory placement object.
type Target struct {
	id        int64
	category  string
	clusterID int64
	attrs     map[string]*Attribute
	invalid   bool
}

// NewTarget creates a placement with the given identity.
func NewTarget(id int64, category string, clusterID int64) *Target {
	return &Target{
		id:        id,
		category:  category,
		clusterID: clusterID,
		attrs:     make(map[string]*Attribute),
	}
}

// WithAttribute adds a writable text attribute and returns the target for chaining.
func (t *Target) WithAttribute(name, value string) *Target {
	t.attrs[target.NormalizeName(name)] = &Attribute{
		name:        name,
		storageType: target.StorageTypeText,
		text:        value,
	}
	return t
}

// WithNumberAttribute adds a writable numeric attribute.
func (t *Target) WithNumberAttribute(name string, value float64) *Target {
	t.attrs[target.NormalizeName(name)] = &Attribute{
		name:        name,
		storageType: target.StorageTypeNumber,
		number:      value,
	}
	return t
}

// WithReadOnlyAttribute adds a read-only text attribute.
func (t *Target) WithReadOnlyAttribute(name, value string) *Target {
	t.attrs[target.NormalizeName(name)] = &Attribute{
		name:        name,
		storageType: target.StorageTypeText,
		text:        value,
		readOnly:    true,
	}
	return t
}

// ID returns the placement id.
func (t *Target) ID() int64 { return t.id }

// Category returns the placement category.
func (t *Target) Category() string { return t.category }

// ClusterID returns the owning cluster id, zero when unclustered.
func (t *Target) ClusterID() int64 { return t.clusterID }

// Attribute resolves a named attribute case-insensitively.
func (t *Target) Attribute(name string) (target.Attribute, bool) {
	attr, ok := t.attrs[target.NormalizeName(name)]
	if !ok {
		return nil, false
	}
	return attr, true
}

// Attribute is one in-memory attribute slot.
type Attribute struct {
	name        string
	storageType target.StorageType
	readOnly    bool
	text        string
	number      float64
	writes      int
}

// Name returns the attribute name as declared.
func (a *Attribute) Name() string { return a.name }

// Type returns the storage type.
func (a *Attribute) Type() target.StorageType { return a.storageType }

// ReadOnly reports whether the attribute rejects writes.
func (a *Attribute) ReadOnly() bool { return a.readOnly }

// Text renders the current value as a string.
func (a *Attribute) Text() string {
	if a.storageType == target.StorageTypeNumber {
		return strconv.FormatFloat(a.number, 'f', -1, 64)
	}
	return a.text
}

// Number returns the current numeric value.
func (a *Attribute) Number() float64 { return a.number }

// Writes returns how many times the attribute was written.
func (a *Attribute) Writes() int { return a.writes }

// SetText stores a text value.
func (a *Attribute) SetText(ctx context.Context, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if a.readOnly {
		return apperrors.WithMetadata(apperrors.CodeAttributeReadOnly,
			fmt.Sprintf("attribute %q is read-only", a.name),
			map[string]string{"attribute": a.name})
	}
	if a.storageType != target.StorageTypeText {
		return apperrors.New(apperrors.CodeAttributeTypeMismatch,
			fmt.Sprintf("attribute %q is not text", a.name))
	}
	a.text = value
	a.writes++
	return nil
}

// SetNumber stores a numeric value.
func (a *Attribute) SetNumber(ctx context.Context, value float64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if a.readOnly {
		return apperrors.WithMetadata(apperrors.CodeAttributeReadOnly,
			fmt.Sprintf("attribute %q is read-only", a.name),
			map[string]string{"attribute": a.name})
	}
	if a.storageType != target.StorageTypeNumber {
		return apperrors.New(apperrors.CodeAttributeTypeMismatch,
			fmt.Sprintf("attribute %q is not numeric", a.name))
	}
	a.number = value
	a.writes++
	return nil
}

var _ target.Workspace = (*Workspace)(nil)
var _ target.Handle = (*Target)(nil)
var _ target.Attribute = (*Attribute)(nil)
