package mapping

import (
	"encoding/json"
	"fmt"
	"os"
)

// fileMapping is the JSON shape of one configured mapping.
type fileMapping struct {
	Source    string `json:"source"`
	Target    string `json:"target"`
	Kind      string `json:"kind"`
	Category  string `json:"category,omitempty"`
	Disabled  bool   `json:"disabled,omitempty"`
	Separator string `json:"separator,omitempty"`
}

// fileConfig is the JSON shape of a mapping configuration file.
type fileConfig struct {
	Mappings []fileMapping `json:"mappings"`
}

// LoadFile reads a mapping configuration from a JSON file. Every mapping is
// validated; a single bad entry fails the whole load so misconfiguration is
// caught before any batch runs.
func LoadFile(path string) ([]Mapping, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read mapping config: %w", err)
	}
	return Parse(raw)
}

// Parse decodes and validates a JSON mapping configuration.
func Parse(raw []byte) ([]Mapping, error) {
	var cfg fileConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("decode mapping config: %w", err)
	}

	mappings := make([]Mapping, 0, len(cfg.Mappings))
	for i, fm := range cfg.Mappings {
		kind, err := ParseTransferKind(fm.Kind)
		if err != nil {
			return nil, fmt.Errorf("mapping %d: %w", i, err)
		}
		m := Mapping{
			SourceAttribute: fm.Source,
			TargetAttribute: fm.Target,
			CategoryScope:   fm.Category,
			Kind:            kind,
			Enabled:         !fm.Disabled,
			Separator:       fm.Separator,
		}
		if err := m.Validate(); err != nil {
			return nil, fmt.Errorf("mapping %d: %w", i, err)
		}
		mappings = append(mappings, m)
	}
	return mappings, nil
}
