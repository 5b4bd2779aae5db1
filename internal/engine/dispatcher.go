package engine

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/carrydown/carrydown/internal/diag"
	apperrors "github.com/carrydown/carrydown/internal/platform/errors"
)

// Runner is the strategy surface the dispatcher drives. Both strategies must
// produce the same counts for the same batch.
type Runner interface {
	RunOptimized(ctx context.Context, runID string, batch Batch) (*Result, error)
	RunLegacy(ctx context.Context, runID string, batch Batch) (*Result, error)
}

// Dispatcher selects the execution strategy for each batch. It starts on the
// optimized strategy and demotes itself to legacy after a whole-batch fault;
// the demotion is permanent for the dispatcher's lifetime.
type Dispatcher struct {
	runner    Runner
	diag      *diag.Logger
	optimized bool
}

// NewDispatcher creates a dispatcher over a runner. The optimized flag sets
// the starting strategy.
func NewDispatcher(runner Runner, logger *diag.Logger, optimized bool) *Dispatcher {
	return &Dispatcher{runner: runner, diag: logger, optimized: optimized}
}

// Optimized reports which strategy the next batch will use.
func (d *Dispatcher) Optimized() bool {
	return d.optimized
}

// Run executes one batch. A fault in the optimized strategy, including a
// recovered panic, demotes the dispatcher and retries the same batch once on
// the legacy strategy under the same run id. A legacy fault surfaces as a
// failed result.
func (d *Dispatcher) Run(ctx context.Context, batch Batch) *Result {
	runID := uuid.NewString()

	if d.optimized {
		res, err := d.attempt(ctx, runID, batch, d.runner.RunOptimized)
		if err == nil {
			return res
		}
		if ctx.Err() != nil {
			return faultResult(runID, err)
		}
		d.diag.Logf(runID, "optimized strategy fault: %v; retrying on legacy", err)
		d.optimized = false
	}

	res, err := d.attempt(ctx, runID, batch, d.runner.RunLegacy)
	if err != nil {
		d.diag.Logf(runID, "legacy strategy fault: %v", err)
		return faultResult(runID, err)
	}
	return res
}

type runFunc func(ctx context.Context, runID string, batch Batch) (*Result, error)

func (d *Dispatcher) attempt(ctx context.Context, runID string, batch Batch, run runFunc) (res *Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			res = nil
			err = apperrors.New(apperrors.CodeBatchStrategyFault,
				fmt.Sprintf("batch strategy panic: %v", r))
		}
	}()
	return run(ctx, runID, batch)
}

func faultResult(runID string, err error) *Result {
	code := apperrors.CodeOf(err)
	if code == apperrors.CodeUnknown {
		code = apperrors.CodeBatchStrategyFault
	}
	res := newResult(runID)
	res.fail(Issue{Code: code, Message: err.Error()})
	res.finalize()
	return res
}
