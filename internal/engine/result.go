package engine

import (
	"fmt"

	apperrors "github.com/carrydown/carrydown/internal/platform/errors"
)

// Issue is one reportable problem found while processing a batch.
type Issue struct {
	TargetID  int64
	Attribute string
	Code      apperrors.Code
	Message   string
}

// Result summarizes one batch run. A batch succeeds when no target failed;
// skips and warnings do not affect success.
type Result struct {
	RunID            string
	Success          bool
	TransferredCount int
	SkippedCount     int
	FailedCount      int
	Errors           []Issue
	Warnings         []Issue
	Message          string
}

func newResult(runID string) *Result {
	return &Result{RunID: runID}
}

func (r *Result) transferred() {
	r.TransferredCount++
}

func (r *Result) skipped() {
	r.SkippedCount++
}

func (r *Result) warn(issue Issue) {
	r.Warnings = append(r.Warnings, issue)
}

func (r *Result) fail(issue Issue) {
	r.FailedCount++
	r.Errors = append(r.Errors, issue)
}

func (r *Result) finalize() {
	r.Success = r.FailedCount == 0
	r.Message = fmt.Sprintf("%d transferred, %d skipped, %d failed, %d warnings",
		r.TransferredCount, r.SkippedCount, r.FailedCount, len(r.Warnings))
}
