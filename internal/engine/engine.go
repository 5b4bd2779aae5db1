// Package engine applies attribute transfer mappings to placement targets.
//
// The engine runs inside a caller-owned atomic scope: it receives a
// target.Workspace capability and never opens or commits the scope itself.
// Two execution strategies produce identical results; the dispatcher picks
// between them.
package engine

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/carrydown/carrydown/internal/diag"
	"github.com/carrydown/carrydown/internal/index"
	"github.com/carrydown/carrydown/internal/mapping"
	apperrors "github.com/carrydown/carrydown/internal/platform/errors"
	"github.com/carrydown/carrydown/internal/resolve"
	"github.com/carrydown/carrydown/internal/snapshot"
	"github.com/carrydown/carrydown/internal/target"
)

// Batch is one unit of work: the targets to process and the mappings to
// apply. Targets are processed independently; one target's failure never
// stops the rest.
type Batch struct {
	TargetIDs []int64
	Mappings  []mapping.Mapping
}

// criticalAttributes lists the target attributes whose absence fails the
// target instead of warning. Keyed by normalized name.
var criticalAttributes = map[string]bool{
	"mark":             true,
	"carry id":         true,
	"source reference": true,
}

// Critical reports whether a missing target attribute of this name is a
// failure rather than a warning.
func Critical(name string) bool {
	return criticalAttributes[target.NormalizeName(name)]
}

// Engine executes transfer batches against one loaded snapshot index.
type Engine struct {
	ws   target.Workspace
	idx  *index.Index
	diag *diag.Logger
}

// New creates an engine over a workspace and a loaded index.
func New(ws target.Workspace, idx *index.Index, logger *diag.Logger) *Engine {
	return &Engine{ws: ws, idx: idx, diag: logger}
}

// handleCache bulk-resolves target handles up front so the optimized path
// pays one workspace lookup per target. Cached handles are re-validated by
// identity on use and re-resolved when they no longer match, since targets
// can become invalid between prefill and apply.
type handleCache struct {
	ws      target.Workspace
	handles map[int64]target.Handle
}

// newHandleCache prefills handles for every id it can resolve. Per-target
// resolution errors are ignored here; the authoritative lookup happens in
// target, where failures are reported against the batch.
func newHandleCache(ctx context.Context, ws target.Workspace, ids []int64) *handleCache {
	c := &handleCache{ws: ws, handles: make(map[int64]target.Handle, len(ids))}
	for _, id := range ids {
		if ctx.Err() != nil {
			break
		}
		if h, err := ws.Target(ctx, id); err == nil {
			c.handles[id] = h
		}
	}
	return c
}

// target returns the cached handle when it still answers to the requested
// id, otherwise drops it and resolves fresh.
func (c *handleCache) target(ctx context.Context, id int64) (target.Handle, error) {
	if h, ok := c.handles[id]; ok && h.ID() == id {
		return h, nil
	}
	delete(c.handles, id)
	h, err := c.ws.Target(ctx, id)
	if err != nil {
		return nil, err
	}
	c.handles[id] = h
	return h, nil
}

// RunOptimized processes the batch target-by-target: handles are bulk
// pre-resolved once for the whole batch, and each target's owning snapshot
// resolves once before every applicable mapping is applied against it.
func (e *Engine) RunOptimized(ctx context.Context, runID string, batch Batch) (*Result, error) {
	resolver := resolve.New(e.idx)
	res := newResult(runID)
	cache := newHandleCache(ctx, e.ws, batch.TargetIDs)

	for _, id := range batch.TargetIDs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		handle, err := cache.target(ctx, id)
		if err != nil {
			e.failTarget(res, runID, id, err)
			continue
		}
		applicable := applicableMappings(batch.Mappings, handle.Category())
		if len(applicable) == 0 {
			continue
		}
		if _, ok := resolver.Owner(handle, mapping.DefaultSeparator); !ok {
			e.warnNoSnapshot(res, runID, id)
			continue
		}
		for _, m := range applicable {
			snap, _ := resolver.Owner(handle, m.EffectiveSeparator())
			e.apply(ctx, runID, res, handle, snap, m)
		}
	}

	res.finalize()
	return res, nil
}

// RunLegacy processes the batch mapping-by-mapping, re-resolving the target
// handle for every pair. Per-target resolution problems are reported once
// even though the loop revisits each target per mapping.
func (e *Engine) RunLegacy(ctx context.Context, runID string, batch Batch) (*Result, error) {
	resolver := resolve.New(e.idx)
	res := newResult(runID)

	failedTargets := make(map[int64]bool)
	warnedTargets := make(map[int64]bool)

	for _, m := range batch.Mappings {
		if !m.Enabled {
			continue
		}
		for _, id := range batch.TargetIDs {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			if failedTargets[id] || warnedTargets[id] {
				continue
			}
			handle, err := e.ws.Target(ctx, id)
			if err != nil {
				failedTargets[id] = true
				e.failTarget(res, runID, id, err)
				continue
			}
			if !m.AppliesTo(handle.Category()) {
				continue
			}
			snap, ok := resolver.Owner(handle, m.EffectiveSeparator())
			if !ok {
				warnedTargets[id] = true
				e.warnNoSnapshot(res, runID, id)
				continue
			}
			e.apply(ctx, runID, res, handle, snap, m)
		}
	}

	res.finalize()
	return res, nil
}

func applicableMappings(mappings []mapping.Mapping, category string) []mapping.Mapping {
	var out []mapping.Mapping
	for _, m := range mappings {
		if m.Enabled && m.AppliesTo(category) {
			out = append(out, m)
		}
	}
	return out
}

func (e *Engine) failTarget(res *Result, runID string, id int64, err error) {
	code := apperrors.CodeOf(err)
	if code == apperrors.CodeUnknown {
		code = apperrors.CodeTargetBecameInvalid
	}
	res.fail(Issue{TargetID: id, Code: code, Message: err.Error()})
	e.diag.Logf(runID, "target %d: failed (%v)", id, err)
}

func (e *Engine) warnNoSnapshot(res *Result, runID string, id int64) {
	res.warn(Issue{
		TargetID: id,
		Code:     apperrors.CodeSnapshotNotFound,
		Message:  fmt.Sprintf("no snapshot resolves to target %d", id),
	})
	e.diag.Logf(runID, "target %d: no snapshot", id)
}

// apply transfers one mapped value onto one target. Absent source values
// warn, unchanged values skip. A missing or read-only target attribute warns
// unless the attribute name is critical, in which case it fails.
func (e *Engine) apply(ctx context.Context, runID string, res *Result, h target.Handle, snap snapshot.Snapshot, m mapping.Mapping) {
	value, ok := resolve.Extract(snap, h.Category(), m)
	if !ok {
		res.warn(Issue{
			TargetID:  h.ID(),
			Attribute: m.SourceAttribute,
			Code:      apperrors.CodeSourceValueMissing,
			Message:   fmt.Sprintf("no %s value for %q on target %d", m.Kind, m.SourceAttribute, h.ID()),
		})
		e.diag.Logf(runID, "target %d: %s has no value for %q", h.ID(), m.Kind, m.SourceAttribute)
		return
	}

	attr, ok := h.Attribute(m.TargetAttribute)
	if !ok {
		e.reportUnusable(res, runID, h.ID(), m.TargetAttribute,
			apperrors.CodeAttributeNotFoundOnTarget,
			fmt.Sprintf("attribute %q not found on target %d", m.TargetAttribute, h.ID()))
		return
	}

	if attr.ReadOnly() {
		e.reportUnusable(res, runID, h.ID(), m.TargetAttribute,
			apperrors.CodeAttributeReadOnly,
			fmt.Sprintf("attribute %q on target %d is read-only", m.TargetAttribute, h.ID()))
		return
	}

	if unchanged(attr.Text(), value) {
		res.skipped()
		e.diag.Logf(runID, "target %d: %q unchanged", h.ID(), m.TargetAttribute)
		return
	}

	if err := writeValue(ctx, attr, value); err != nil {
		code := apperrors.CodeOf(err)
		if code == apperrors.CodeUnknown {
			code = apperrors.CodeTargetBecameInvalid
		}
		res.fail(Issue{
			TargetID:  h.ID(),
			Attribute: m.TargetAttribute,
			Code:      code,
			Message:   err.Error(),
		})
		e.diag.Logf(runID, "target %d: write %q failed (%v)", h.ID(), m.TargetAttribute, err)
		return
	}

	res.transferred()
}

// reportUnusable records a missing or unwritable target attribute: a failure
// for critical attribute names, a warning for the rest.
func (e *Engine) reportUnusable(res *Result, runID string, targetID int64, attribute string, code apperrors.Code, message string) {
	issue := Issue{TargetID: targetID, Attribute: attribute, Code: code, Message: message}
	if Critical(attribute) {
		res.fail(issue)
		e.diag.Logf(runID, "target %d: critical attribute %q unusable (%s)", targetID, attribute, code)
		return
	}
	res.warn(issue)
	e.diag.Logf(runID, "target %d: attribute %q unusable (%s)", targetID, attribute, code)
}

// unchanged compares the stored and incoming values ignoring surrounding
// whitespace and case. Rewriting an equal value would dirty the host model
// for nothing.
func unchanged(current, next string) bool {
	return strings.EqualFold(strings.TrimSpace(current), strings.TrimSpace(next))
}

func writeValue(ctx context.Context, attr target.Attribute, value string) error {
	if attr.Type() == target.StorageTypeNumber {
		parsed, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil || math.IsNaN(parsed) || math.IsInf(parsed, 0) {
			return apperrors.New(apperrors.CodeAttributeTypeMismatch,
				fmt.Sprintf("value %q is not numeric", value))
		}
		return attr.SetNumber(ctx, parsed)
	}
	return attr.SetText(ctx, value)
}

var _ Runner = (*Engine)(nil)
