package app

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/carrydown/carrydown/internal/snapshot"
	"github.com/carrydown/carrydown/internal/storage"
	storagesqlite "github.com/carrydown/carrydown/internal/storage/sqlite"
	"github.com/carrydown/carrydown/internal/target"
	targetsqlite "github.com/carrydown/carrydown/internal/target/sqlite"
)

// defaultMappings is written to the configured mappings path when no file
// exists yet, so a seeded workspace runs out of the box.
const defaultMappings = `{
  "mappings": [
    {"source": "Mark", "target": "CD Mark", "kind": "source"},
    {"source": "System Type", "target": "CD System Type", "kind": "source"},
    {"source": "Size", "target": "CD Size", "kind": "source"},
    {"source": "Wall Type", "target": "CD Wall Type", "kind": "host"},
    {"source": "Level", "target": "CD Level", "kind": "level"},
    {"source": "Tier", "target": "CD Tier", "kind": "metadata"}
  ]
}
`

// Seed populates both databases with a small worked example: an individual
// placement, a clustered pair, and a combined placement built from the
// cluster plus a stable-id reference.
func Seed(ctx context.Context, cfg Config) error {
	store, err := storagesqlite.Open(cfg.SnapshotDBPath)
	if err != nil {
		return err
	}
	defer store.Close()

	model, err := targetsqlite.Open(cfg.ModelDBPath)
	if err != nil {
		return err
	}
	defer model.Close()

	if err := seedPlacements(ctx, model); err != nil {
		return err
	}
	if err := seedSnapshots(ctx, store); err != nil {
		return err
	}
	return seedMappingsFile(cfg.MappingsPath)
}

func seedPlacements(ctx context.Context, model *targetsqlite.Model) error {
	placements := []struct {
		id        int64
		category  string
		clusterID int64
	}{
		{id: 101, category: "pipe"},
		{id: 201, category: "duct", clusterID: 31},
		{id: 202, category: "duct", clusterID: 31},
		{id: 900, category: "duct"},
	}
	carried := []struct {
		name        string
		storageType target.StorageType
	}{
		{name: "CD Mark", storageType: target.StorageTypeText},
		{name: "CD System Type", storageType: target.StorageTypeText},
		{name: "CD Size", storageType: target.StorageTypeText},
		{name: "CD Wall Type", storageType: target.StorageTypeText},
		{name: "CD Level", storageType: target.StorageTypeText},
		{name: "CD Tier", storageType: target.StorageTypeText},
	}

	for _, p := range placements {
		if err := model.PutPlacement(ctx, p.id, p.category, p.clusterID); err != nil {
			return err
		}
		for _, slot := range carried {
			if err := model.PutAttribute(ctx, p.id, slot.name, slot.storageType, false); err != nil {
				return err
			}
		}
	}
	return nil
}

func seedSnapshots(ctx context.Context, store *storagesqlite.Store) error {
	records := []storage.SnapshotRecord{
		{
			TargetID: 101,
			Category: "pipe",
			Source:   snapshot.SourceTypeIndividual,
			StableID: "pipe-101",
			SourceBag: snapshot.Bag{
				"Mark":        "P-101",
				"System Type": "Domestic Cold Water",
				"Diameter":    "110",
			},
			HostBag: snapshot.Bag{
				"Wall Type":       "Concrete 200",
				"Reference Level": "Level 1",
			},
		},
		{
			TargetID:  31,
			Category:  "duct",
			Source:    snapshot.SourceTypeCluster,
			ClusterID: 31,
			SourceBag: snapshot.Bag{
				"Mark":        "D-31",
				"System Type": "Supply Air",
				"Size":        "400x200",
			},
			HostBag: snapshot.Bag{
				"Wall Type": "Brick 100",
				"Level":     "Level 2",
			},
		},
		{
			TargetID: 55,
			Category: "duct",
			Source:   snapshot.SourceTypeIndividual,
			StableID: "duct-55",
			SourceBag: snapshot.Bag{
				"Mark":        "D-55",
				"System Type": "Return Air",
				"Size":        "200-200",
			},
			HostBag: snapshot.Bag{
				"Wall Type": "Brick 100",
				"Level":     "Level 2",
			},
		},
	}
	for _, record := range records {
		if _, err := store.PutSnapshot(ctx, record); err != nil {
			return err
		}
	}

	if err := store.PutStableID(ctx, 55, "duct-55"); err != nil {
		return err
	}
	return store.PutConstituents(ctx, 900, []snapshot.ConstituentRef{
		{ClusterID: 31},
		{StableID: "duct-55"},
	})
}

func seedMappingsFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("stat mapping config: %w", err)
	}
	if err := os.WriteFile(path, []byte(defaultMappings), 0o644); err != nil {
		return fmt.Errorf("write mapping config: %w", err)
	}
	return nil
}
