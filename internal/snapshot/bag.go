package snapshot

import "strings"

// Bag is a mapping from attribute name to captured value. Name lookup is
// case-insensitive; the original casing of names is preserved for output.
type Bag map[string]string

// Lookup returns the value stored under name, matching case-insensitively.
// Whitespace-only values are treated as absent, not as found-but-empty.
func (b Bag) Lookup(name string) (string, bool) {
	if len(b) == 0 {
		return "", false
	}
	if value, ok := b[name]; ok && strings.TrimSpace(value) != "" {
		return value, true
	}
	for key, value := range b {
		if strings.EqualFold(key, name) && strings.TrimSpace(value) != "" {
			return value, true
		}
	}
	return "", false
}

// Set stores value under name, replacing any existing entry whose name
// matches case-insensitively.
func (b Bag) Set(name, value string) {
	for key := range b {
		if strings.EqualFold(key, name) {
			delete(b, key)
		}
	}
	b[name] = value
}

// Names returns the attribute names present in the bag, in map order.
func (b Bag) Names() []string {
	names := make([]string, 0, len(b))
	for key := range b {
		names = append(names, key)
	}
	return names
}

// Clone returns an independent copy of the bag.
func (b Bag) Clone() Bag {
	if b == nil {
		return nil
	}
	clone := make(Bag, len(b))
	for key, value := range b {
		clone[key] = value
	}
	return clone
}
