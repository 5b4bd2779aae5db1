package app

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	targetsqlite "github.com/carrydown/carrydown/internal/target/sqlite"
)

func testConfig(t *testing.T) Config {
	t.Helper()
	dir := t.TempDir()
	return Config{
		SnapshotDBPath:  filepath.Join(dir, "snapshots.db"),
		ModelDBPath:     filepath.Join(dir, "model.db"),
		MappingsPath:    filepath.Join(dir, "mappings.json"),
		DiagnosticsPath: filepath.Join(dir, "diag.log"),
		Optimized:       true,
	}
}

func readAttribute(t *testing.T, cfg Config, targetID int64, name string) string {
	t.Helper()
	model, err := targetsqlite.Open(cfg.ModelDBPath)
	if err != nil {
		t.Fatalf("open model: %v", err)
	}
	defer model.Close()

	tx, err := model.Begin(context.Background())
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	defer tx.Rollback()

	handle, err := targetsqlite.NewWorkspace(tx).Target(context.Background(), targetID)
	if err != nil {
		t.Fatalf("resolve target %d: %v", targetID, err)
	}
	attr, ok := handle.Attribute(name)
	if !ok {
		t.Fatalf("attribute %q missing on target %d", name, targetID)
	}
	return attr.Text()
}

func TestSeedAndTransfer(t *testing.T) {
	cfg := testConfig(t)
	ctx := context.Background()

	if err := Seed(ctx, cfg); err != nil {
		t.Fatalf("seed: %v", err)
	}

	res, err := RunTransfer(ctx, cfg)
	if err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if !res.Success || res.FailedCount != 0 || len(res.Warnings) != 0 {
		t.Fatalf("result = %+v", res)
	}
	// 4 seeded placements, 6 mappings each.
	if res.TransferredCount != 24 {
		t.Fatalf("transferred = %d", res.TransferredCount)
	}

	if got := readAttribute(t, cfg, 101, "CD Mark"); got != "P-101" {
		t.Fatalf("CD Mark on 101 = %q", got)
	}
	// Pipe size resolves through the diameter alias.
	if got := readAttribute(t, cfg, 101, "CD Size"); got != "110" {
		t.Fatalf("CD Size on 101 = %q", got)
	}
	// Clustered placements share the cluster snapshot.
	if got := readAttribute(t, cfg, 202, "CD System Type"); got != "Supply Air" {
		t.Fatalf("CD System Type on 202 = %q", got)
	}
	// The combined placement aggregates its constituents.
	if got := readAttribute(t, cfg, 900, "CD Mark"); got != "D-31, D-55" {
		t.Fatalf("CD Mark on 900 = %q", got)
	}
	if got := readAttribute(t, cfg, 900, "CD Size"); got != "200, 400x200" {
		t.Fatalf("CD Size on 900 = %q", got)
	}
	if got := readAttribute(t, cfg, 900, "CD Tier"); got != "COMBINED" {
		t.Fatalf("CD Tier on 900 = %q", got)
	}
}

func TestTransferIsIdempotent(t *testing.T) {
	cfg := testConfig(t)
	ctx := context.Background()

	if err := Seed(ctx, cfg); err != nil {
		t.Fatalf("seed: %v", err)
	}
	first, err := RunTransfer(ctx, cfg)
	if err != nil {
		t.Fatalf("first transfer: %v", err)
	}
	second, err := RunTransfer(ctx, cfg)
	if err != nil {
		t.Fatalf("second transfer: %v", err)
	}

	if second.TransferredCount != 0 {
		t.Fatalf("second run transferred %d, want 0", second.TransferredCount)
	}
	if second.SkippedCount != first.TransferredCount {
		t.Fatalf("second run skipped %d, want %d", second.SkippedCount, first.TransferredCount)
	}

	log, err := os.ReadFile(cfg.DiagnosticsPath)
	if err != nil {
		t.Fatalf("read diagnostics: %v", err)
	}
	if !strings.Contains(string(log), "unchanged") {
		t.Fatalf("diagnostics missing skip lines: %q", log)
	}
}

func TestResetClearsTransferredValues(t *testing.T) {
	cfg := testConfig(t)
	ctx := context.Background()

	if err := Seed(ctx, cfg); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := RunTransfer(ctx, cfg); err != nil {
		t.Fatalf("transfer: %v", err)
	}

	res, err := RunReset(ctx, cfg)
	if err != nil {
		t.Fatalf("reset: %v", err)
	}
	if !res.Success {
		t.Fatalf("result = %+v", res)
	}
	if got := readAttribute(t, cfg, 101, "CD Mark"); got != "" {
		t.Fatalf("CD Mark on 101 = %q after reset", got)
	}
	if got := readAttribute(t, cfg, 900, "CD Size"); got != "" {
		t.Fatalf("CD Size on 900 = %q after reset", got)
	}
}

func TestTransferExplicitTargetSelection(t *testing.T) {
	cfg := testConfig(t)
	ctx := context.Background()

	if err := Seed(ctx, cfg); err != nil {
		t.Fatalf("seed: %v", err)
	}
	cfg.Targets = []int64{101}

	res, err := RunTransfer(ctx, cfg)
	if err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if res.TransferredCount != 6 {
		t.Fatalf("transferred = %d, want only the selected target", res.TransferredCount)
	}
	if got := readAttribute(t, cfg, 202, "CD Mark"); got != "" {
		t.Fatalf("CD Mark on 202 = %q, want untouched", got)
	}
}

func TestTransferMissingMappingsFile(t *testing.T) {
	cfg := testConfig(t)
	if _, err := RunTransfer(context.Background(), cfg); err == nil {
		t.Fatal("expected missing mapping config to fail")
	}
}

func TestSeedKeepsExistingMappingsFile(t *testing.T) {
	cfg := testConfig(t)
	custom := `{"mappings": [{"source": "Mark", "target": "CD Mark", "kind": "source"}]}`
	if err := os.WriteFile(cfg.MappingsPath, []byte(custom), 0o644); err != nil {
		t.Fatalf("write mappings: %v", err)
	}

	if err := Seed(context.Background(), cfg); err != nil {
		t.Fatalf("seed: %v", err)
	}
	raw, err := os.ReadFile(cfg.MappingsPath)
	if err != nil {
		t.Fatalf("read mappings: %v", err)
	}
	if string(raw) != custom {
		t.Fatal("seed must not overwrite an existing mapping config")
	}
}
