package schema

import "strings"

// Normalize strips purely-numeric segments from a concrete document path so
// it matches the symbolic path produced by Flatten. `items.7.title` and
// `items.0.title` both normalize to `items.title`.
func Normalize(livePath string) string {
	if !strings.ContainsAny(livePath, "0123456789") {
		return livePath
	}
	segs := strings.Split(livePath, ".")
	kept := segs[:0]
	for _, s := range segs {
		if !isNumeric(s) {
			kept = append(kept, s)
		}
	}
	return strings.Join(kept, ".")
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// PathMap is a cached Flatten result for one schema version. Lookups are a
// single Normalize plus map access; callers rebuild the map only when the
// schema changes.
type PathMap struct {
	entries map[string]PathEntry
	order   []string
}

// NewPathMap flattens fields once and indexes the result by path.
func NewPathMap(fields []Field) *PathMap {
	return NewPathMapFromEntries(Flatten(fields))
}

// NewPathMapFromEntries indexes an already-flattened schema. Callers that
// keep the flat entries around avoid a second Flatten pass.
func NewPathMapFromEntries(flat []PathEntry) *PathMap {
	m := &PathMap{
		entries: make(map[string]PathEntry, len(flat)),
		order:   make([]string, 0, len(flat)),
	}
	for _, e := range flat {
		if _, dup := m.entries[e.Path]; dup {
			continue
		}
		m.entries[e.Path] = e
		m.order = append(m.order, e.Path)
	}
	return m
}

// Lookup resolves a concrete live path to its schema entry. A miss means
// the field has no instructions; callers degrade gracefully rather than
// treating it as an error.
func (m *PathMap) Lookup(livePath string) (PathEntry, bool) {
	e, ok := m.entries[Normalize(livePath)]
	return e, ok
}

// Entries returns all entries in schema order.
func (m *PathMap) Entries() []PathEntry {
	out := make([]PathEntry, 0, len(m.order))
	for _, p := range m.order {
		out = append(out, m.entries[p])
	}
	return out
}

// Len returns the number of distinct schema paths.
func (m *PathMap) Len() int { return len(m.order) }
