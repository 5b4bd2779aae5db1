// Package main clears the carried attribute slots on host model placements.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/carrydown/carrydown/internal/app"
	platformcmd "github.com/carrydown/carrydown/internal/platform/cmd"
	"github.com/carrydown/carrydown/internal/platform/config"
)

func main() {
	var cfg app.Config
	if err := platformcmd.ParseConfig(&cfg); err != nil {
		config.Exitf("parse config: %v", err)
	}

	fs := flag.NewFlagSet(platformcmd.ServiceReset, flag.ExitOnError)
	var categories, targets string
	fs.StringVar(&cfg.ModelDBPath, "model", cfg.ModelDBPath, "host model path")
	fs.StringVar(&cfg.DiagnosticsPath, "diagnostics", cfg.DiagnosticsPath, "diagnostics log path")
	fs.StringVar(&categories, "categories", "", "comma-separated category filter")
	fs.StringVar(&targets, "targets", "", "comma-separated target ids")
	if err := platformcmd.ParseArgs(fs, os.Args[1:]); err != nil {
		config.Exitf("parse flags: %v", err)
	}
	if categories != "" {
		cfg.Categories = splitList(categories)
	}
	if targets != "" {
		ids, err := parseIDs(targets)
		if err != nil {
			config.Exitf("parse targets: %v", err)
		}
		cfg.Targets = ids
	}

	log.SetPrefix("[RESET] ")
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := platformcmd.RunWithTelemetry(ctx, platformcmd.ServiceReset, func(ctx context.Context) error {
		res, err := app.RunReset(ctx, cfg)
		if err != nil {
			return err
		}
		fmt.Println(res.Message)
		for _, issue := range res.Errors {
			log.Printf("error: target %d %s: %s (%s)", issue.TargetID, issue.Attribute, issue.Message, issue.Code)
		}
		if !res.Success {
			return fmt.Errorf("reset %s failed", res.RunID)
		}
		return nil
	})
	if err != nil {
		config.Exitf("reset: %v", err)
	}
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseIDs(value string) ([]int64, error) {
	var ids []int64
	for _, part := range splitList(value) {
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid target id %q", part)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
