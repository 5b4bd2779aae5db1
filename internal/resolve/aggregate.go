package resolve

import (
	"sort"
	"strings"

	"github.com/carrydown/carrydown/internal/snapshot"
	"github.com/carrydown/carrydown/internal/target"
)

// aggregateCombined merges attribute bags across every resolvable
// constituent of a combined target into one synthetic snapshot.
func (r *Resolver) aggregateCombined(combinedID int64, separator string) snapshot.Snapshot {
	refs, _ := r.idx.Constituents(combinedID)
	return snapshot.Snapshot{
		ID:       snapshot.SyntheticID,
		TargetID: combinedID,
		Source:   snapshot.SourceTypeCombined,
		SourceBag: r.aggregateBags(refs, separator, func(s snapshot.Snapshot) snapshot.Bag {
			return s.SourceBag
		}),
		HostBag: r.aggregateBags(refs, separator, func(s snapshot.Snapshot) snapshot.Bag {
			return s.HostBag
		}),
	}
}

// resolveConstituent resolves one contributor through cluster id then stable
// id. The combined path is deliberately excluded so nested references cannot
// cycle. An unreachable constituent contributes nothing.
func (r *Resolver) resolveConstituent(ref snapshot.ConstituentRef) (snapshot.Snapshot, bool) {
	if snap, ok := r.idx.Cluster(ref.ClusterID); ok {
		return snap, true
	}
	if snap, ok := r.idx.Stable(ref.StableID); ok {
		return snap, true
	}
	return snapshot.Snapshot{}, false
}

// tokenSet collects per-attribute tokens across constituents. Size-bearing
// attributes keep every token; the rest dedupe case-insensitively.
type tokenSet struct {
	displayName string
	isSize      bool
	tokens      []string
	seen        map[string]bool
}

func (r *Resolver) aggregateBags(refs []snapshot.ConstituentRef, separator string, selectBag func(snapshot.Snapshot) snapshot.Bag) snapshot.Bag {
	collectors := make(map[string]*tokenSet)

	for _, ref := range refs {
		snap, ok := r.resolveConstituent(ref)
		if !ok {
			continue
		}
		bag := selectBag(snap)
		for _, name := range bag.Names() {
			raw, ok := bag.Lookup(name)
			if !ok {
				continue
			}
			key := target.NormalizeName(name)
			collector, ok := collectors[key]
			if !ok {
				collector = &tokenSet{
					displayName: name,
					isSize:      strings.Contains(key, "size"),
					seen:        make(map[string]bool),
				}
				collectors[key] = collector
			}
			collector.add(raw, separator)
		}
	}

	bag := snapshot.Bag{}
	for _, collector := range collectors {
		if value, ok := collector.value(); ok {
			bag.Set(collector.displayName, value)
		}
	}
	return bag
}

// add splits an already-aggregated raw value on the separator so constituent
// values do not get re-duplicated, then records each trimmed token.
func (c *tokenSet) add(raw, separator string) {
	for _, token := range strings.Split(raw, separator) {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}
		if c.isSize {
			// Size tokens are never deduplicated, only pair-normalized.
			c.tokens = append(c.tokens, normalizeSizeToken(token))
			continue
		}
		fold := strings.ToLower(token)
		if c.seen[fold] {
			continue
		}
		c.seen[fold] = true
		c.tokens = append(c.tokens, token)
	}
}

// value renders the collected tokens sorted case-insensitively and joined
// with ", ". Attributes without a single non-empty token report absent.
func (c *tokenSet) value() (string, bool) {
	if len(c.tokens) == 0 {
		return "", false
	}
	sorted := make([]string, len(c.tokens))
	copy(sorted, c.tokens)
	sort.SliceStable(sorted, func(i, j int) bool {
		return strings.ToLower(sorted[i]) < strings.ToLower(sorted[j])
	})
	return strings.Join(sorted, ", "), true
}

// normalizeSizeToken collapses paired measurements captured identically for
// both sides: a token of the exact shape A-B where A equals B
// case-insensitively becomes A. Any other shape passes through unchanged.
func normalizeSizeToken(token string) string {
	if strings.Count(token, "-") != 1 {
		return token
	}
	parts := strings.SplitN(token, "-", 2)
	if parts[0] != "" && strings.EqualFold(parts[0], parts[1]) {
		return parts[0]
	}
	return token
}
