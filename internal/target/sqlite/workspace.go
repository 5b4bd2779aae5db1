package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	apperrors "github.com/carrydown/carrydown/internal/platform/errors"
	"github.com/carrydown/carrydown/internal/target"
)

// Workspace resolves placement handles inside a caller-owned transaction.
type Workspace struct {
	tx *sql.Tx
}

// NewWorkspace binds a workspace to the caller's open transaction. The
// workspace performs no commit or rollback.
func NewWorkspace(tx *sql.Tx) *Workspace {
	return &Workspace{tx: tx}
}

// Target resolves a placement handle by id.
func (w *Workspace) Target(ctx context.Context, id int64) (target.Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if w == nil || w.tx == nil {
		return nil, fmt.Errorf("workspace is not configured")
	}

	var category string
	var clusterID int64
	row := w.tx.QueryRowContext(ctx, `
SELECT category, cluster_id FROM placements WHERE id = ?
`, id)
	if err := row.Scan(&category, &clusterID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, target.ErrTargetNotFound
		}
		return nil, fmt.Errorf("load placement %d: %w", id, err)
	}
	return &Handle{tx: w.tx, id: id, category: category, clusterID: clusterID}, nil
}

// Handle is one placement resolved inside the transaction.
type Handle struct {
	tx        *sql.Tx
	id        int64
	category  string
	clusterID int64
}

// ID returns the placement id.
func (h *Handle) ID() int64 { return h.id }

// Category returns the placement category.
func (h *Handle) Category() string { return h.category }

// ClusterID returns the owning cluster id, zero when unclustered.
func (h *Handle) ClusterID() int64 { return h.clusterID }

// Attribute resolves a named attribute case-insensitively.
func (h *Handle) Attribute(name string) (target.Attribute, bool) {
	var declared, storageType, valueText string
	var readOnly int
	var valueNum float64
	row := h.tx.QueryRow(`
SELECT name, storage_type, read_only, value_text, value_num
FROM placement_attributes
WHERE placement_id = ? AND name_key = ?
`, h.id, target.NormalizeName(name))
	if err := row.Scan(&declared, &storageType, &readOnly, &valueText, &valueNum); err != nil {
		return nil, false
	}

	attr := &Attribute{
		tx:          h.tx,
		placementID: h.id,
		name:        declared,
		readOnly:    readOnly != 0,
		text:        valueText,
		number:      valueNum,
	}
	switch storageType {
	case target.StorageTypeNumber.String():
		attr.storageType = target.StorageTypeNumber
	default:
		attr.storageType = target.StorageTypeText
	}
	return attr, true
}

// Attribute is one attribute slot backed by a placement_attributes row.
type Attribute struct {
	tx          *sql.Tx
	placementID int64
	name        string
	storageType target.StorageType
	readOnly    bool
	text        string
	number      float64
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

// SetText stores a text value.
func (a *Attribute) SetText(ctx context.Context, value string) error {
	if err := a.writable(target.StorageTypeText); err != nil {
		return err
	}
	if _, err := a.tx.ExecContext(ctx, `
UPDATE placement_attributes SET value_text = ?
WHERE placement_id = ? AND name_key = ?
`, value, a.placementID, target.NormalizeName(a.name)); err != nil {
		return fmt.Errorf("set text attribute %q: %w", a.name, err)
	}
	a.text = value
	return nil
}

// SetNumber stores a numeric value.
func (a *Attribute) SetNumber(ctx context.Context, value float64) error {
	if err := a.writable(target.StorageTypeNumber); err != nil {
		return err
	}
	if _, err := a.tx.ExecContext(ctx, `
UPDATE placement_attributes SET value_num = ?
WHERE placement_id = ? AND name_key = ?
`, value, a.placementID, target.NormalizeName(a.name)); err != nil {
		return fmt.Errorf("set numeric attribute %q: %w", a.name, err)
	}
	a.number = value
	return nil
}

func (a *Attribute) writable(want target.StorageType) error {
	if a.readOnly {
		return apperrors.WithMetadata(apperrors.CodeAttributeReadOnly,
			fmt.Sprintf("attribute %q is read-only", a.name),
			map[string]string{"attribute": a.name})
	}
	if a.storageType != want {
		return apperrors.New(apperrors.CodeAttributeTypeMismatch,
			fmt.Sprintf("attribute %q stores %s", a.name, a.storageType))
	}
	return nil
}

var _ target.Workspace = (*Workspace)(nil)
var _ target.Handle = (*Handle)(nil)
var _ target.Attribute = (*Attribute)(nil)
