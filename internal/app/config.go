// Package app wires stores, the host model, and the engine into the
// command-line entry points.
package app

import "time"

// Config carries the settings shared by the transfer, reset, and seed
// commands. Values load from CARRYDOWN_-prefixed environment variables and
// may be overridden by flags.
type Config struct {
	// SnapshotDBPath locates the captured snapshot store.
	SnapshotDBPath string `env:"CARRYDOWN_SNAPSHOT_DB" envDefault:"carrydown-snapshots.db"`
	// ModelDBPath locates the host placement model.
	ModelDBPath string `env:"CARRYDOWN_MODEL_DB" envDefault:"carrydown-model.db"`
	// MappingsPath locates the JSON mapping configuration.
	MappingsPath string `env:"CARRYDOWN_MAPPINGS" envDefault:"mappings.json"`
	// Categories restricts the batch to placement categories. Empty means all.
	Categories []string `env:"CARRYDOWN_CATEGORIES" envSeparator:","`
	// Targets lists explicit placement ids. Empty means every placement in
	// the selected categories.
	Targets []int64 `env:"CARRYDOWN_TARGETS" envSeparator:","`
	// DiagnosticsPath appends per-decision diagnostics to a file when set.
	DiagnosticsPath string `env:"CARRYDOWN_DIAGNOSTICS"`
	// Optimized selects the starting batch strategy.
	Optimized bool `env:"CARRYDOWN_OPTIMIZED" envDefault:"true"`
	// Timeout bounds one batch run.
	Timeout time.Duration `env:"CARRYDOWN_TIMEOUT" envDefault:"5m"`
}
