package engine

import (
	"context"
	"testing"

	"github.com/carrydown/carrydown/internal/index"
	"github.com/carrydown/carrydown/internal/mapping"
	apperrors "github.com/carrydown/carrydown/internal/platform/errors"
	"github.com/carrydown/carrydown/internal/snapshot"
	"github.com/carrydown/carrydown/internal/storage"
	"github.com/carrydown/carrydown/internal/target"
	"github.com/carrydown/carrydown/internal/target/memory"
)

type stubStore struct {
	snapshots    []storage.SnapshotRecord
	constituents []storage.ConstituentRecord
	stableIDs    []storage.StableIDRecord
}

func (s *stubStore) ListSnapshots(ctx context.Context, categories []string) ([]storage.SnapshotRecord, error) {
	return s.snapshots, nil
}

func (s *stubStore) ListConstituents(ctx context.Context) ([]storage.ConstituentRecord, error) {
	return s.constituents, nil
}

func (s *stubStore) ListStableIDs(ctx context.Context) ([]storage.StableIDRecord, error) {
	return s.stableIDs, nil
}

func loadIndex(t *testing.T, store *stubStore) *index.Index {
	t.Helper()
	idx, err := index.Load(context.Background(), store, nil)
	if err != nil {
		t.Fatalf("load index: %v", err)
	}
	return idx
}

func individualSnapshot(id, targetID int64, bag snapshot.Bag) storage.SnapshotRecord {
	return storage.SnapshotRecord{
		ID:        id,
		TargetID:  targetID,
		Source:    snapshot.SourceTypeIndividual,
		SourceBag: bag,
	}
}

func textMapping(source, targetAttr string) mapping.Mapping {
	return mapping.Mapping{
		SourceAttribute: source,
		TargetAttribute: targetAttr,
		Kind:            mapping.TransferKindSource,
		Enabled:         true,
	}
}

type strategy func(*Engine, context.Context, string, Batch) (*Result, error)

var strategies = map[string]strategy{
	"optimized": (*Engine).RunOptimized,
	"legacy":    (*Engine).RunLegacy,
}

func TestRunTransfersValues(t *testing.T) {
	for name, run := range strategies {
		t.Run(name, func(t *testing.T) {
			idx := loadIndex(t, &stubStore{snapshots: []storage.SnapshotRecord{
				individualSnapshot(1, 101, snapshot.Bag{"System Type": "Supply Air", "Mark": "M-1"}),
			}})
			ws := memory.NewWorkspace()
			placed := memory.NewTarget(101, "duct", 0).
				WithAttribute("CD System Type", "").
				WithAttribute("CD Mark", "")
			ws.Add(placed)

			res, err := run(New(ws, idx, nil), context.Background(), "run-1", Batch{
				TargetIDs: []int64{101},
				Mappings: []mapping.Mapping{
					textMapping("System Type", "CD System Type"),
					textMapping("Mark", "CD Mark"),
				},
			})
			if err != nil {
				t.Fatalf("run: %v", err)
			}
			if !res.Success || res.TransferredCount != 2 || res.FailedCount != 0 {
				t.Fatalf("result = %+v", res)
			}
			attr, _ := placed.Attribute("CD System Type")
			if attr.Text() != "Supply Air" {
				t.Fatalf("written value = %q", attr.Text())
			}
		})
	}
}

func TestRunSecondPassSkipsEverything(t *testing.T) {
	for name, run := range strategies {
		t.Run(name, func(t *testing.T) {
			idx := loadIndex(t, &stubStore{snapshots: []storage.SnapshotRecord{
				individualSnapshot(1, 101, snapshot.Bag{"System Type": "Supply Air"}),
			}})
			ws := memory.NewWorkspace()
			placed := memory.NewTarget(101, "duct", 0).WithAttribute("CD System Type", "")
			ws.Add(placed)
			batch := Batch{
				TargetIDs: []int64{101},
				Mappings:  []mapping.Mapping{textMapping("System Type", "CD System Type")},
			}
			eng := New(ws, idx, nil)

			first, err := run(eng, context.Background(), "run-1", batch)
			if err != nil {
				t.Fatalf("first run: %v", err)
			}
			if first.TransferredCount != 1 {
				t.Fatalf("first run transferred %d", first.TransferredCount)
			}

			second, err := run(eng, context.Background(), "run-2", batch)
			if err != nil {
				t.Fatalf("second run: %v", err)
			}
			if second.TransferredCount != 0 || second.SkippedCount != 1 {
				t.Fatalf("second run = %+v, want pure skip", second)
			}
			attr, _ := placed.Attribute("CD System Type")
			memAttr := attr.(*memory.Attribute)
			if memAttr.Writes() != 1 {
				t.Fatalf("writes = %d, want no rewrite of an unchanged value", memAttr.Writes())
			}
		})
	}
}

func TestRunUnchangedComparesFoldedAndTrimmed(t *testing.T) {
	idx := loadIndex(t, &stubStore{snapshots: []storage.SnapshotRecord{
		individualSnapshot(1, 101, snapshot.Bag{"System Type": "Supply Air"}),
	}})
	ws := memory.NewWorkspace()
	placed := memory.NewTarget(101, "duct", 0).WithAttribute("CD System Type", "  SUPPLY AIR ")
	ws.Add(placed)

	res, err := New(ws, idx, nil).RunOptimized(context.Background(), "run-1", Batch{
		TargetIDs: []int64{101},
		Mappings:  []mapping.Mapping{textMapping("System Type", "CD System Type")},
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.SkippedCount != 1 || res.TransferredCount != 0 {
		t.Fatalf("result = %+v, want case and whitespace insensitive skip", res)
	}
}

func TestRunMissingTargetAttribute(t *testing.T) {
	idx := loadIndex(t, &stubStore{snapshots: []storage.SnapshotRecord{
		individualSnapshot(1, 101, snapshot.Bag{"System Type": "Supply Air", "Mark": "M-1"}),
	}})
	ws := memory.NewWorkspace()
	ws.Add(memory.NewTarget(101, "duct", 0))

	res, err := New(ws, idx, nil).RunOptimized(context.Background(), "run-1", Batch{
		TargetIDs: []int64{101},
		Mappings: []mapping.Mapping{
			textMapping("System Type", "CD System Type"),
			textMapping("Mark", "Mark"),
		},
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	// The ordinary attribute warns; the critical one fails the target.
	if len(res.Warnings) != 1 || res.Warnings[0].Code != apperrors.CodeAttributeNotFoundOnTarget {
		t.Fatalf("warnings = %+v", res.Warnings)
	}
	if res.FailedCount != 1 || res.Errors[0].Attribute != "Mark" {
		t.Fatalf("errors = %+v", res.Errors)
	}
	if res.Success {
		t.Fatal("critical failure must fail the batch")
	}
}

func TestRunAbsentSourceValueWarns(t *testing.T) {
	idx := loadIndex(t, &stubStore{snapshots: []storage.SnapshotRecord{
		individualSnapshot(1, 101, snapshot.Bag{}),
	}})
	ws := memory.NewWorkspace()
	ws.Add(memory.NewTarget(101, "duct", 0).WithAttribute("CD System Type", ""))

	res, err := New(ws, idx, nil).RunOptimized(context.Background(), "run-1", Batch{
		TargetIDs: []int64{101},
		Mappings:  []mapping.Mapping{textMapping("System Type", "CD System Type")},
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(res.Warnings) != 1 || res.Warnings[0].Code != apperrors.CodeSourceValueMissing {
		t.Fatalf("warnings = %+v", res.Warnings)
	}
	if !res.Success || res.FailedCount != 0 || res.SkippedCount != 0 {
		t.Fatalf("result = %+v, absent values must not fail or skip-count", res)
	}
}

func TestRunReadOnlyAttribute(t *testing.T) {
	idx := loadIndex(t, &stubStore{snapshots: []storage.SnapshotRecord{
		individualSnapshot(1, 101, snapshot.Bag{"System Type": "Supply Air", "Mark": "M-1"}),
	}})
	ws := memory.NewWorkspace()
	ws.Add(memory.NewTarget(101, "duct", 0).
		WithReadOnlyAttribute("CD System Type", "").
		WithReadOnlyAttribute("Mark", ""))

	res, err := New(ws, idx, nil).RunOptimized(context.Background(), "run-1", Batch{
		TargetIDs: []int64{101},
		Mappings: []mapping.Mapping{
			textMapping("System Type", "CD System Type"),
			textMapping("Mark", "Mark"),
		},
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	// Read-only degrades to a warning unless the attribute is critical.
	if len(res.Warnings) != 1 || res.Warnings[0].Code != apperrors.CodeAttributeReadOnly {
		t.Fatalf("warnings = %+v", res.Warnings)
	}
	if res.FailedCount != 1 || res.Errors[0].Attribute != "Mark" || res.Errors[0].Code != apperrors.CodeAttributeReadOnly {
		t.Fatalf("errors = %+v", res.Errors)
	}
}

func TestRunNumericAttribute(t *testing.T) {
	idx := loadIndex(t, &stubStore{snapshots: []storage.SnapshotRecord{
		individualSnapshot(1, 101, snapshot.Bag{"Offset": "12.5", "Mark": "M-1"}),
	}})
	ws := memory.NewWorkspace()
	placed := memory.NewTarget(101, "duct", 0).
		WithNumberAttribute("CD Offset", 0).
		WithNumberAttribute("CD Width", 0)
	ws.Add(placed)

	res, err := New(ws, idx, nil).RunOptimized(context.Background(), "run-1", Batch{
		TargetIDs: []int64{101},
		Mappings: []mapping.Mapping{
			textMapping("Offset", "CD Offset"),
			textMapping("Mark", "CD Width"),
		},
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.TransferredCount != 1 {
		t.Fatalf("transferred = %d", res.TransferredCount)
	}
	if res.FailedCount != 1 || res.Errors[0].Code != apperrors.CodeAttributeTypeMismatch {
		t.Fatalf("errors = %+v, want non-numeric value rejected", res.Errors)
	}
	attr, _ := placed.Attribute("CD Offset")
	if attr.Text() != "12.5" {
		t.Fatalf("numeric write = %q", attr.Text())
	}
}

func TestRunInvalidTargetDoesNotStopBatch(t *testing.T) {
	for name, run := range strategies {
		t.Run(name, func(t *testing.T) {
			idx := loadIndex(t, &stubStore{snapshots: []storage.SnapshotRecord{
				individualSnapshot(1, 101, snapshot.Bag{"System Type": "Supply Air"}),
				individualSnapshot(2, 102, snapshot.Bag{"System Type": "Return Air"}),
			}})
			ws := memory.NewWorkspace()
			ws.Add(memory.NewTarget(102, "duct", 0).WithAttribute("CD System Type", ""))

			res, err := run(New(ws, idx, nil), context.Background(), "run-1", Batch{
				TargetIDs: []int64{101, 102},
				Mappings: []mapping.Mapping{
					textMapping("System Type", "CD System Type"),
				},
			})
			if err != nil {
				t.Fatalf("run: %v", err)
			}
			if res.FailedCount != 1 || res.Errors[0].Code != apperrors.CodeTargetBecameInvalid {
				t.Fatalf("errors = %+v", res.Errors)
			}
			if res.TransferredCount != 1 {
				t.Fatalf("transferred = %d, want the healthy target processed", res.TransferredCount)
			}
		})
	}
}

func TestRunLegacyReportsInvalidTargetOnce(t *testing.T) {
	idx := loadIndex(t, &stubStore{snapshots: []storage.SnapshotRecord{
		individualSnapshot(1, 101, snapshot.Bag{"System Type": "Supply Air", "Mark": "M-1"}),
	}})
	ws := memory.NewWorkspace()

	res, err := New(ws, idx, nil).RunLegacy(context.Background(), "run-1", Batch{
		TargetIDs: []int64{101},
		Mappings: []mapping.Mapping{
			textMapping("System Type", "CD System Type"),
			textMapping("Mark", "CD Mark"),
		},
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	// The mapping-outer loop revisits the target, but the failure reports once.
	if res.FailedCount != 1 {
		t.Fatalf("failed = %d, want deduplicated failure", res.FailedCount)
	}
}

func TestRunCategoryScope(t *testing.T) {
	idx := loadIndex(t, &stubStore{snapshots: []storage.SnapshotRecord{
		individualSnapshot(1, 101, snapshot.Bag{"Diameter": "110"}),
		individualSnapshot(2, 102, snapshot.Bag{"Diameter": "110"}),
	}})
	ws := memory.NewWorkspace()
	pipe := memory.NewTarget(101, "pipe", 0).WithAttribute("CD Diameter", "")
	duct := memory.NewTarget(102, "duct", 0).WithAttribute("CD Diameter", "")
	ws.Add(pipe)
	ws.Add(duct)

	m := textMapping("Diameter", "CD Diameter")
	m.CategoryScope = "pipe"

	res, err := New(ws, idx, nil).RunOptimized(context.Background(), "run-1", Batch{
		TargetIDs: []int64{101, 102},
		Mappings:  []mapping.Mapping{m},
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.TransferredCount != 1 {
		t.Fatalf("transferred = %d, want only the in-scope category", res.TransferredCount)
	}
	attr, _ := duct.Attribute("CD Diameter")
	if attr.(*memory.Attribute).Writes() != 0 {
		t.Fatal("out-of-scope target must not be written")
	}
}

func TestRunDisabledMappingIgnored(t *testing.T) {
	idx := loadIndex(t, &stubStore{snapshots: []storage.SnapshotRecord{
		individualSnapshot(1, 101, snapshot.Bag{"System Type": "Supply Air"}),
	}})
	ws := memory.NewWorkspace()
	ws.Add(memory.NewTarget(101, "duct", 0).WithAttribute("CD System Type", ""))

	m := textMapping("System Type", "CD System Type")
	m.Enabled = false

	for name, run := range strategies {
		t.Run(name, func(t *testing.T) {
			res, err := run(New(ws, idx, nil), context.Background(), "run-1", Batch{
				TargetIDs: []int64{101},
				Mappings:  []mapping.Mapping{m},
			})
			if err != nil {
				t.Fatalf("run: %v", err)
			}
			if res.TransferredCount != 0 || res.SkippedCount != 0 {
				t.Fatalf("disabled mapping produced work: %+v", res)
			}
		})
	}
}

func TestRunNoSnapshotWarnsOnce(t *testing.T) {
	for name, run := range strategies {
		t.Run(name, func(t *testing.T) {
			idx := loadIndex(t, &stubStore{})
			ws := memory.NewWorkspace()
			ws.Add(memory.NewTarget(101, "duct", 0).WithAttribute("CD System Type", ""))

			res, err := run(New(ws, idx, nil), context.Background(), "run-1", Batch{
				TargetIDs: []int64{101},
				Mappings: []mapping.Mapping{
					textMapping("System Type", "CD System Type"),
					textMapping("Mark", "CD Mark"),
				},
			})
			if err != nil {
				t.Fatalf("run: %v", err)
			}
			if len(res.Warnings) != 1 || res.Warnings[0].Code != apperrors.CodeSnapshotNotFound {
				t.Fatalf("warnings = %+v, want one per target", res.Warnings)
			}
			if !res.Success {
				t.Fatal("unresolved targets warn, they do not fail the batch")
			}
		})
	}
}

func TestRunStrategiesProduceIdenticalCounts(t *testing.T) {
	store := &stubStore{snapshots: []storage.SnapshotRecord{
		individualSnapshot(1, 101, snapshot.Bag{"System Type": "Supply Air", "Mark": "M-1"}),
		individualSnapshot(2, 103, snapshot.Bag{"System Type": "Return Air"}),
	}}
	batch := Batch{
		TargetIDs: []int64{101, 102, 103, 104},
		Mappings: []mapping.Mapping{
			textMapping("System Type", "CD System Type"),
			textMapping("Mark", "CD Mark"),
		},
	}
	build := func() *memory.Workspace {
		ws := memory.NewWorkspace()
		ws.Add(memory.NewTarget(101, "duct", 0).
			WithAttribute("CD System Type", "").
			WithAttribute("CD Mark", ""))
		// 102 exists but has no snapshot; 103 lacks both attributes; 104 is gone.
		ws.Add(memory.NewTarget(102, "duct", 0).WithAttribute("CD System Type", ""))
		ws.Add(memory.NewTarget(103, "duct", 0))
		return ws
	}

	opt, err := New(build(), loadIndex(t, store), nil).RunOptimized(context.Background(), "run-1", batch)
	if err != nil {
		t.Fatalf("optimized: %v", err)
	}
	leg, err := New(build(), loadIndex(t, store), nil).RunLegacy(context.Background(), "run-2", batch)
	if err != nil {
		t.Fatalf("legacy: %v", err)
	}

	if opt.TransferredCount != leg.TransferredCount ||
		opt.SkippedCount != leg.SkippedCount ||
		opt.FailedCount != leg.FailedCount ||
		len(opt.Warnings) != len(leg.Warnings) {
		t.Fatalf("strategies diverge: optimized %+v vs legacy %+v", opt, leg)
	}
}

func TestRunCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	idx := loadIndex(t, &stubStore{})
	ws := memory.NewWorkspace()
	ws.Add(memory.NewTarget(101, "duct", 0))

	if _, err := New(ws, idx, nil).RunOptimized(ctx, "run-1", Batch{TargetIDs: []int64{101}}); err == nil {
		t.Fatal("expected cancellation error")
	}
}

func TestCritical(t *testing.T) {
	for _, name := range []string{"Mark", "  carry id ", "SOURCE REFERENCE"} {
		if !Critical(name) {
			t.Errorf("Critical(%q) = false", name)
		}
	}
	if Critical("System Type") {
		t.Error("System Type must not be critical")
	}
}

// countingWorkspace counts handle resolutions so the tests can tell the two
// strategies' lookup patterns apart.
type countingWorkspace struct {
	ws      *memory.Workspace
	lookups int
}

func (c *countingWorkspace) Target(ctx context.Context, id int64) (target.Handle, error) {
	c.lookups++
	return c.ws.Target(ctx, id)
}

func TestRunOptimizedResolvesHandlesOnce(t *testing.T) {
	idx := loadIndex(t, &stubStore{snapshots: []storage.SnapshotRecord{
		individualSnapshot(1, 101, snapshot.Bag{"Mark": "M-1", "System Type": "Supply Air"}),
		individualSnapshot(2, 102, snapshot.Bag{"Mark": "M-2", "System Type": "Return Air"}),
	}})
	batch := Batch{
		TargetIDs: []int64{101, 102},
		Mappings: []mapping.Mapping{
			textMapping("Mark", "CD Mark"),
			textMapping("System Type", "CD System Type"),
		},
	}
	build := func() *memory.Workspace {
		ws := memory.NewWorkspace()
		for _, id := range batch.TargetIDs {
			ws.Add(memory.NewTarget(id, "duct", 0).
				WithAttribute("CD Mark", "").
				WithAttribute("CD System Type", ""))
		}
		return ws
	}

	optimized := &countingWorkspace{ws: build()}
	if _, err := New(optimized, idx, nil).RunOptimized(context.Background(), "run-1", batch); err != nil {
		t.Fatalf("optimized: %v", err)
	}
	if optimized.lookups != len(batch.TargetIDs) {
		t.Fatalf("optimized lookups = %d, want one per target (%d)", optimized.lookups, len(batch.TargetIDs))
	}

	legacy := &countingWorkspace{ws: build()}
	if _, err := New(legacy, idx, nil).RunLegacy(context.Background(), "run-2", batch); err != nil {
		t.Fatalf("legacy: %v", err)
	}
	if want := len(batch.TargetIDs) * len(batch.Mappings); legacy.lookups != want {
		t.Fatalf("legacy lookups = %d, want one per pair (%d)", legacy.lookups, want)
	}
}

func TestHandleCacheRevalidatesIdentity(t *testing.T) {
	ws := memory.NewWorkspace()
	ws.Add(memory.NewTarget(101, "duct", 0).WithAttribute("CD Mark", ""))

	cache := newHandleCache(context.Background(), ws, []int64{101})
	cache.handles[101] = memory.NewTarget(999, "duct", 0)

	h, err := cache.target(context.Background(), 101)
	if err != nil {
		t.Fatalf("target: %v", err)
	}
	if h.ID() != 101 {
		t.Fatalf("handle id = %d, want the stale entry re-resolved to 101", h.ID())
	}
	if _, err := cache.target(context.Background(), 404); err == nil {
		t.Fatal("expected unknown target to fail after prefill")
	}
}
