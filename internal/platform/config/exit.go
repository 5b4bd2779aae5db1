package config

import (
	"fmt"
	"os"
)

// Exitf prints a fatal message to stderr and terminates the process with
// exit code 1. The transfer, reset, and seed commands use it for startup
// errors and batch aborts.
func Exitf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
