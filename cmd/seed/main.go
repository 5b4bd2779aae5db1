// Package main seeds the local databases with a small worked example so the
// transfer command has data to run against.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
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

	fs := flag.NewFlagSet(platformcmd.ServiceSeed, flag.ExitOnError)
	fs.StringVar(&cfg.SnapshotDBPath, "snapshots", cfg.SnapshotDBPath, "snapshot store path")
	fs.StringVar(&cfg.ModelDBPath, "model", cfg.ModelDBPath, "host model path")
	fs.StringVar(&cfg.MappingsPath, "mappings", cfg.MappingsPath, "mapping config path")
	if err := platformcmd.ParseArgs(fs, os.Args[1:]); err != nil {
		config.Exitf("parse flags: %v", err)
	}

	log.SetPrefix("[SEED] ")
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.Seed(ctx, cfg); err != nil {
		config.Exitf("seed: %v", err)
	}
	log.Printf("seeded %s and %s", cfg.SnapshotDBPath, cfg.ModelDBPath)
}
