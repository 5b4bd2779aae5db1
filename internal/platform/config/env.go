// Package config loads carrydown settings from CARRYDOWN_-prefixed
// environment variables and provides the shared fatal-exit helper for the
// command entry points.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// ParseEnv fills cfg from the environment variables declared in its env
// tags. cfg must be a pointer to a struct.
func ParseEnv(cfg any) error {
	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}
