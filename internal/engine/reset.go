package engine

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/carrydown/carrydown/internal/diag"
	apperrors "github.com/carrydown/carrydown/internal/platform/errors"
	"github.com/carrydown/carrydown/internal/target"
)

// resetAttributes lists the carried attribute slots a reset clears. Targets
// that carry only a subset are cleared for the slots they have.
var resetAttributes = []string{
	"CD Mark",
	"CD System Type",
	"CD Size",
	"CD Level",
	"CD Wall Type",
	"CD Carry ID",
	"CD Source Reference",
	"CD Tier",
}

// Reset clears the carried attribute slots on the given targets. Text slots
// reset to empty, numeric slots to zero. Like a transfer batch, one target's
// failure never stops the rest, and the caller owns the surrounding scope.
func Reset(ctx context.Context, ws target.Workspace, logger *diag.Logger, targetIDs []int64) (*Result, error) {
	runID := uuid.NewString()
	res := newResult(runID)

	for _, id := range targetIDs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		handle, err := ws.Target(ctx, id)
		if err != nil {
			code := apperrors.CodeOf(err)
			if code == apperrors.CodeUnknown {
				code = apperrors.CodeTargetBecameInvalid
			}
			res.fail(Issue{TargetID: id, Code: code, Message: err.Error()})
			logger.Logf(runID, "target %d: failed (%v)", id, err)
			continue
		}
		for _, name := range resetAttributes {
			attr, ok := handle.Attribute(name)
			if !ok {
				continue
			}
			if attr.ReadOnly() {
				issue := Issue{
					TargetID:  id,
					Attribute: name,
					Code:      apperrors.CodeAttributeReadOnly,
					Message:   fmt.Sprintf("attribute %q on target %d is read-only", name, id),
				}
				if Critical(name) {
					res.fail(issue)
				} else {
					res.warn(issue)
				}
				continue
			}
			if err := clearValue(ctx, attr); err != nil {
				code := apperrors.CodeOf(err)
				if code == apperrors.CodeUnknown {
					code = apperrors.CodeTargetBecameInvalid
				}
				res.fail(Issue{TargetID: id, Attribute: name, Code: code, Message: err.Error()})
				logger.Logf(runID, "target %d: clear %q failed (%v)", id, name, err)
				continue
			}
			res.transferred()
		}
	}

	res.finalize()
	return res, nil
}

func clearValue(ctx context.Context, attr target.Attribute) error {
	if attr.Type() == target.StorageTypeNumber {
		return attr.SetNumber(ctx, 0)
	}
	return attr.SetText(ctx, "")
}
