package app

import (
	"context"
	"fmt"

	"github.com/carrydown/carrydown/internal/diag"
	"github.com/carrydown/carrydown/internal/engine"
	"github.com/carrydown/carrydown/internal/index"
	"github.com/carrydown/carrydown/internal/mapping"
	storagesqlite "github.com/carrydown/carrydown/internal/storage/sqlite"
	targetsqlite "github.com/carrydown/carrydown/internal/target/sqlite"
)

// RunTransfer executes one transfer batch end to end: load mappings and the
// snapshot index, open the model's atomic scope, run the dispatcher, and
// commit. Per-target failures are reported in the result, not rolled back;
// only a whole-batch fault discards the scope.
func RunTransfer(ctx context.Context, cfg Config) (*engine.Result, error) {
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	logger, closeLog, err := openDiagnostics(cfg.DiagnosticsPath)
	if err != nil {
		return nil, err
	}
	defer closeLog()

	mappings, err := mapping.LoadFile(cfg.MappingsPath)
	if err != nil {
		return nil, err
	}

	store, err := storagesqlite.Open(cfg.SnapshotDBPath)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	idx, err := index.Load(ctx, store, cfg.Categories)
	if err != nil {
		return nil, err
	}

	model, err := targetsqlite.Open(cfg.ModelDBPath)
	if err != nil {
		return nil, err
	}
	defer model.Close()

	targetIDs := cfg.Targets
	if len(targetIDs) == 0 {
		targetIDs, err = model.ListPlacementIDs(ctx, cfg.Categories)
		if err != nil {
			return nil, err
		}
	}

	tx, err := model.Begin(ctx)
	if err != nil {
		return nil, err
	}

	eng := engine.New(targetsqlite.NewWorkspace(tx), idx, logger)
	dispatcher := engine.NewDispatcher(eng, logger, cfg.Optimized)
	res := dispatcher.Run(ctx, engine.Batch{TargetIDs: targetIDs, Mappings: mappings})

	if batchFaulted(res) {
		_ = tx.Rollback()
		return res, nil
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit model tx: %w", err)
	}
	return res, nil
}

// batchFaulted reports whether the result carries a whole-batch fault rather
// than ordinary per-target failures.
func batchFaulted(res *engine.Result) bool {
	for _, issue := range res.Errors {
		if issue.Code.Fatal() {
			return true
		}
	}
	return false
}

func openDiagnostics(path string) (*diag.Logger, func() error, error) {
	if path == "" {
		return nil, func() error { return nil }, nil
	}
	return diag.OpenFile(path)
}
