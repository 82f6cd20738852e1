package mapping

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// The mapping file is three tab-separated columns per row: key path,
// feature id, value kind. Blank lines and "#" comments are skipped.

// Parse reads a mapping table.
func Parse(r io.Reader) (*Mapping, error) {
	var entries []Entry
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		s := strings.TrimSpace(scanner.Text())
		if s == "" || strings.HasPrefix(s, "#") {
			continue
		}
		fields := strings.Split(s, "\t")
		if len(fields) != 3 {
			return nil, fmt.Errorf("%w: line %d: expected 3 columns, got %d", ErrBadMappingFile, line, len(fields))
		}
		kind, err := parseValueKind(strings.TrimSpace(fields[2]))
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		entries = append(entries, Entry{
			KeyPath:   strings.TrimSpace(fields[0]),
			FeatureID: strings.TrimSpace(fields[1]),
			Kind:      kind,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return New(entries)
}

// ParseFile reads a mapping table from disk.
func ParseFile(path string) (*Mapping, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	m, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// Write emits the table in row order, which is stable for a derived
// mapping of the same model.
func (m *Mapping) Write(w io.Writer) error {
	bw := bufio.NewWriter(w)
	for _, e := range m.entries {
		fmt.Fprintf(bw, "%s\t%s\t%s\n", e.KeyPath, e.FeatureID, e.Kind)
	}
	return bw.Flush()
}

// WriteFile writes the table to disk.
func (m *Mapping) WriteFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := m.Write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
