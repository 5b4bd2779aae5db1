// Package main runs one attribute transfer batch against the host model.
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

	fs := flag.NewFlagSet(platformcmd.ServiceTransfer, flag.ExitOnError)
	var categories, targets string
	fs.StringVar(&cfg.SnapshotDBPath, "snapshots", cfg.SnapshotDBPath, "snapshot store path")
	fs.StringVar(&cfg.ModelDBPath, "model", cfg.ModelDBPath, "host model path")
	fs.StringVar(&cfg.MappingsPath, "mappings", cfg.MappingsPath, "mapping config path")
	fs.StringVar(&cfg.DiagnosticsPath, "diagnostics", cfg.DiagnosticsPath, "diagnostics log path")
	fs.StringVar(&categories, "categories", "", "comma-separated category filter")
	fs.StringVar(&targets, "targets", "", "comma-separated target ids")
	fs.BoolVar(&cfg.Optimized, "optimized", cfg.Optimized, "start on the optimized strategy")
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

	log.SetPrefix("[TRANSFER] ")
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := platformcmd.RunWithTelemetry(ctx, platformcmd.ServiceTransfer, func(ctx context.Context) error {
		res, err := app.RunTransfer(ctx, cfg)
		if err != nil {
			return err
		}
		fmt.Println(res.Message)
		for _, issue := range res.Warnings {
			log.Printf("warning: target %d %s: %s", issue.TargetID, issue.Attribute, issue.Message)
		}
		for _, issue := range res.Errors {
			log.Printf("error: target %d %s: %s (%s)", issue.TargetID, issue.Attribute, issue.Message, issue.Code)
		}
		if !res.Success {
			return fmt.Errorf("batch %s failed", res.RunID)
		}
		return nil
	})
	if err != nil {
		config.Exitf("transfer: %v", err)
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
