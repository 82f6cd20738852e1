// Package mapping maintains the correspondence between document key paths
// and feature identifiers. A mapping is a flat table: one row per key
// path, with array indices generalized to "[*]" so that one row covers
// every element of a list.
package mapping

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrAmbiguousKeyPath = errors.New("ambiguous key path")
	ErrBadMappingFile   = errors.New("bad mapping file")
)

// ValueKind says how a document value at a mapped key selects a feature.
type ValueKind int

const (
	// ValueVerbatim carries the document value through as an attribute
	// value.
	ValueVerbatim ValueKind = iota
	// ValuePresence selects the feature because the key exists; the value
	// is structural (an object or list) and not carried.
	ValuePresence
	// ValueEnum carries the value and permits only the feature's
	// enumerated values.
	ValueEnum
)

func (k ValueKind) String() string {
	switch k {
	case ValuePresence:
		return "boolean-presence"
	case ValueEnum:
		return "enumerated"
	}
	return "verbatim"
}

func parseValueKind(s string) (ValueKind, error) {
	switch s {
	case "verbatim":
		return ValueVerbatim, nil
	case "boolean-presence":
		return ValuePresence, nil
	case "enumerated":
		return ValueEnum, nil
	}
	return 0, fmt.Errorf("%w: unknown value kind %q", ErrBadMappingFile, s)
}

// Entry is one mapping row. KeyPath is relative to the document root and
// may contain "[*]" list wildcards; FeatureID's first segment names the
// kind the row belongs to.
type Entry struct {
	KeyPath   string
	FeatureID string
	Kind      ValueKind
}

// Mapping is a validated, queryable mapping table. Rows are unique per
// (kind, canonical key path) pair.
type Mapping struct {
	entries []Entry
	index   map[string]Entry
}

// New builds a mapping from rows, rejecting rows whose canonical key paths
// collide within one kind.
func New(entries []Entry) (*Mapping, error) {
	m := &Mapping{
		entries: entries,
		index:   make(map[string]Entry, len(entries)),
	}
	for _, e := range entries {
		key := indexKey(kindOf(e.FeatureID), e.KeyPath)
		if prev, ok := m.index[key]; ok {
			return nil, fmt.Errorf("%w: %q maps to both %s and %s",
				ErrAmbiguousKeyPath, e.KeyPath, prev.FeatureID, e.FeatureID)
		}
		m.index[key] = e
	}
	return m, nil
}

// Entries returns the rows in table order.
func (m *Mapping) Entries() []Entry {
	return m.entries
}

// Len returns the number of rows.
func (m *Mapping) Len() int {
	return len(m.entries)
}

// Lookup finds the row for a concrete document key path within one kind.
// Concrete list indices match the table's wildcards.
func (m *Mapping) Lookup(kind, path string) (Entry, bool) {
	e, ok := m.index[indexKey(kind, path)]
	return e, ok
}

func indexKey(kind, path string) string {
	return kind + "\x00" + Canonical(path)
}

func kindOf(featureID string) string {
	if i := strings.IndexByte(featureID, '.'); i >= 0 {
		return featureID[:i]
	}
	return featureID
}

// Canonical rewrites concrete list indices to the "[*]" wildcard, so
// "spec.containers[2].name" and "spec.containers[*].name" share one row.
func Canonical(path string) string {
	if !strings.ContainsRune(path, '[') {
		return path
	}
	var b strings.Builder
	b.Grow(len(path))
	for i := 0; i < len(path); i++ {
		c := path[i]
		if c != '[' {
			b.WriteByte(c)
			continue
		}
		j := i + 1
		for j < len(path) && path[j] >= '0' && path[j] <= '9' {
			j++
		}
		if j > i+1 && j < len(path) && path[j] == ']' {
			b.WriteString("[*]")
			i = j
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}
