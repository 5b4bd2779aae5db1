package app

import (
	"context"
	"fmt"

	"github.com/carrydown/carrydown/internal/engine"
	targetsqlite "github.com/carrydown/carrydown/internal/target/sqlite"
)

// RunReset clears the carried attribute slots on the configured targets
// inside one atomic scope.
func RunReset(ctx context.Context, cfg Config) (*engine.Result, error) {
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

	res, err := engine.Reset(ctx, targetsqlite.NewWorkspace(tx), logger, targetIDs)
	if err != nil {
		_ = tx.Rollback()
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit model tx: %w", err)
	}
	return res, nil
}
