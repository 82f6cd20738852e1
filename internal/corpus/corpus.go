// Package corpus enumerates configuration documents from a directory
// tree. A corpus file may hold several YAML documents; each document is
// addressed as path#index so reports stay stable across runs.
package corpus

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"github.com/gobwas/glob"

	"github.com/caosd-group/kubefm/internal/logging"
)

// Document is one scannable document, not yet parsed.
type Document struct {
	Path       string
	Index      int
	Kind       string
	APIVersion string
	Bytes      []byte
}

// ID addresses the document within its corpus.
func (d Document) ID() string {
	return fmt.Sprintf("%s#%d", d.Path, d.Index)
}

// SizeBucket classifies documents by byte size for reporting. Buckets
// keep summary tables readable over corpora with very uneven documents.
func (d Document) SizeBucket() string {
	switch n := len(d.Bytes); {
	case n <= 512:
		return "tiny"
	case n <= 2048:
		return "small"
	case n <= 8192:
		return "medium"
	case n <= 32768:
		return "large"
	}
	return "huge"
}

// Stats counts what the scan saw and why documents were skipped.
type Stats struct {
	Files       int
	Documents   int
	Templated   int
	MissingKind int
	CRDs        int
	Excluded    int
}

// Scanner walks a filesystem for .yaml/.yml/.json documents.
type Scanner struct {
	fsys     fs.FS
	include  []string
	exclude  []string
	skipCRDs bool
	log      *logging.Logger
}

func New(fsys fs.FS) *Scanner {
	return &Scanner{fsys: fsys, skipCRDs: true, log: logging.NewNopLogger()}
}

// WithInclude restricts the scan to files matching at least one glob
// pattern (over slash-separated paths).
func (s *Scanner) WithInclude(patterns ...string) *Scanner {
	s.include = append(s.include, patterns...)
	return s
}

// WithExclude drops files matching any glob pattern.
func (s *Scanner) WithExclude(patterns ...string) *Scanner {
	s.exclude = append(s.exclude, patterns...)
	return s
}

// WithCRDs keeps CustomResourceDefinition documents, which are skipped by
// default because they describe schemas rather than configurations.
func (s *Scanner) WithCRDs() *Scanner {
	s.skipCRDs = false
	return s
}

func (s *Scanner) WithLogger(log *logging.Logger) *Scanner {
	if log != nil {
		s.log = log
	}
	return s
}

// Scan enumerates documents in path order. Templated files, documents
// without apiVersion/kind, and (by default) CRDs are counted and skipped
// rather than failed: a corpus scan never aborts on one odd file.
func (s *Scanner) Scan(ctx context.Context) ([]Document, Stats, error) {
	include, err := compileGlobs(s.include)
	if err != nil {
		return nil, Stats{}, fmt.Errorf("include pattern: %w", err)
	}
	exclude, err := compileGlobs(s.exclude)
	if err != nil {
		return nil, Stats{}, fmt.Errorf("exclude pattern: %w", err)
	}

	var files []string
	err = fs.WalkDir(s.fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		switch path.Ext(p) {
		case ".yaml", ".yml", ".json":
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return nil, Stats{}, err
	}
	sort.Strings(files)

	var (
		docs  []Document
		stats Stats
	)
	for _, p := range files {
		if err := ctx.Err(); err != nil {
			return nil, stats, err
		}
		if len(include) > 0 && !matchAny(include, p) {
			stats.Excluded++
			continue
		}
		if matchAny(exclude, p) {
			stats.Excluded++
			continue
		}
		bs, err := fs.ReadFile(s.fsys, p)
		if err != nil {
			return nil, stats, err
		}
		stats.Files++

		for i, part := range splitDocuments(bs) {
			doc := Document{Path: p, Index: i, Bytes: part}
			if isTemplated(part) {
				stats.Templated++
				continue
			}
			doc.Kind = topLevelValue(part, "kind")
			doc.APIVersion = topLevelValue(part, "apiVersion")
			if doc.Kind == "" || doc.APIVersion == "" {
				stats.MissingKind++
				continue
			}
			if s.skipCRDs && doc.Kind == "CustomResourceDefinition" {
				stats.CRDs++
				continue
			}
			stats.Documents++
			docs = append(docs, doc)
		}
	}

	s.log.Debugf("corpus scan: %d files, %d documents, %d templated, %d without kind, %d crds, %d excluded",
		stats.Files, stats.Documents, stats.Templated, stats.MissingKind, stats.CRDs, stats.Excluded)
	return docs, stats, nil
}

// splitDocuments splits a multi-document YAML stream on "---" separator
// lines. Empty parts (leading separators, trailing whitespace) are dropped;
// document indices count the non-empty parts.
func splitDocuments(bs []byte) [][]byte {
	var out [][]byte
	var cur []byte
	flush := func() {
		if len(bytes.TrimSpace(cur)) > 0 {
			out = append(out, cur)
		}
		cur = nil
	}
	for _, line := range bytes.SplitAfter(bs, []byte("\n")) {
		if isSeparatorLine(line) {
			flush()
			continue
		}
		cur = append(cur, line...)
	}
	flush()
	return out
}

// isSeparatorLine reports whether a line is a document separator: "---"
// alone, optionally followed by whitespace or a comment. Longer dash runs
// and "---"-prefixed scalars inside documents are content, not separators.
func isSeparatorLine(line []byte) bool {
	line = bytes.TrimRight(line, "\r\n")
	if !bytes.HasPrefix(line, []byte("---")) {
		return false
	}
	rest := bytes.TrimSpace(line[3:])
	return len(rest) == 0 || rest[0] == '#'
}

// isTemplated detects files that are templates, not documents: Helm/go
// template actions and ytt annotations both make YAML unparseable.
func isTemplated(bs []byte) bool {
	return bytes.Contains(bs, []byte("{{")) || bytes.HasPrefix(bytes.TrimSpace(bs), []byte("#@"))
}

// topLevelValue scans for a top-level "key: value" line without parsing
// the whole document; the real parse happens at translation time.
func topLevelValue(bs []byte, key string) string {
	for _, line := range strings.Split(string(bs), "\n") {
		rest, ok := strings.CutPrefix(line, key+":")
		if !ok {
			continue
		}
		v := strings.TrimSpace(rest)
		v = strings.Trim(v, `"'`)
		if i := strings.IndexByte(v, '#'); i >= 0 {
			v = strings.TrimSpace(v[:i])
		}
		return v
	}
	return ""
}

func compileGlobs(patterns []string) ([]glob.Glob, error) {
	if len(patterns) == 0 {
		return nil, nil
	}
	out := make([]glob.Glob, 0, len(patterns))
	for _, p := range patterns {
		g, err := glob.Compile(p, '/')
		if err != nil {
			return nil, fmt.Errorf("%q: %w", p, err)
		}
		out = append(out, g)
	}
	return out, nil
}

func matchAny(globs []glob.Glob, p string) bool {
	for _, g := range globs {
		if g.Match(p) {
			return true
		}
	}
	return false
}
