package resolve

import (
	"strings"

	"github.com/carrydown/carrydown/internal/snapshot"
	"github.com/carrydown/carrydown/internal/target"
)

// legacyPrefix marks attribute names written by older capture versions,
// which prefixed every carried attribute.
const legacyPrefix = "CD "

// globalAliases treats one attribute name as equivalent to another across
// every category. Keyed by normalized name.
var globalAliases = map[string]string{
	"system type":           "System Classification",
	"system classification": "System Type",
}

// categoryAliases holds per-category equivalences: round categories capture
// their dimension as Diameter where rectangular ones use Size.
var categoryAliases = map[string]map[string]string{
	"pipe": {
		"size": "Diameter",
	},
	"duct": {
		"diameter": "Size",
	},
}

// lookupVariants tries the attribute name, then its known spelling variants,
// then the fixed alias table. The first non-blank match wins.
func lookupVariants(bag snapshot.Bag, name, category string) (string, bool) {
	for _, candidate := range nameCandidates(name, category) {
		if value, ok := bag.Lookup(candidate); ok {
			return value, true
		}
	}
	return "", false
}

// nameCandidates enumerates the fallback spellings for an attribute name in
// matching order. The list is deliberately fixed and enumerable.
func nameCandidates(name, category string) []string {
	name = strings.TrimSpace(name)
	candidates := []string{name}

	if swapped := strings.ReplaceAll(name, " ", "_"); swapped != name {
		candidates = append(candidates, swapped)
	}
	if swapped := strings.ReplaceAll(name, "_", " "); swapped != name {
		candidates = append(candidates, swapped)
	}

	if len(name) > len(legacyPrefix) && strings.EqualFold(name[:len(legacyPrefix)], legacyPrefix) {
		candidates = append(candidates, name[len(legacyPrefix):])
	} else {
		candidates = append(candidates, legacyPrefix+name)
	}

	normalized := target.NormalizeName(name)
	if aliases, ok := categoryAliases[target.NormalizeName(category)]; ok {
		if alias, ok := aliases[normalized]; ok {
			candidates = append(candidates, alias)
		}
	}
	if alias, ok := globalAliases[normalized]; ok {
		candidates = append(candidates, alias)
	}

	return candidates
}
