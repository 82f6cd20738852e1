package mapping

import (
	"fmt"

	"github.com/gobwas/glob"

	"github.com/caosd-group/kubefm/internal/logging"
	"github.com/caosd-group/kubefm/internal/model"
)

// Deriver generates a mapping table from an assembled model. The table
// covers every key-addressable feature; synthetic nodes that do not
// correspond to a document key (union branches, the model root) get no
// rows of their own.
type Deriver struct {
	fm       *model.FeatureModel
	include  []string
	exclude  []string
	log      *logging.Logger
	rows     []Entry
	seen     map[string]string
	dropped  int
}

func NewDeriver(fm *model.FeatureModel) *Deriver {
	return &Deriver{fm: fm, log: logging.NewNopLogger()}
}

// WithInclude restricts the table to key paths matching at least one glob
// pattern. No patterns means everything is included.
func (d *Deriver) WithInclude(patterns ...string) *Deriver {
	d.include = append(d.include, patterns...)
	return d
}

// WithExclude drops key paths matching any glob pattern.
func (d *Deriver) WithExclude(patterns ...string) *Deriver {
	d.exclude = append(d.exclude, patterns...)
	return d
}

func (d *Deriver) WithLogger(log *logging.Logger) *Deriver {
	if log != nil {
		d.log = log
	}
	return d
}

// Derive walks every kind subtree and emits one row per addressable
// feature. Two features reaching the same canonical key path within one
// kind cannot both be addressed; the later row is dropped with a warning
// and the path stays with its first owner.
func (d *Deriver) Derive() (*Mapping, error) {
	include, err := compileGlobs(d.include)
	if err != nil {
		return nil, fmt.Errorf("include pattern: %w", err)
	}
	exclude, err := compileGlobs(d.exclude)
	if err != nil {
		return nil, fmt.Errorf("exclude pattern: %w", err)
	}

	d.rows = nil
	d.seen = make(map[string]string)
	d.dropped = 0
	for _, kind := range d.fm.Root.Children {
		onPath := map[string]bool{kind.ID: true}
		d.deriveChildren(kind, "", onPath, include, exclude)
	}
	if d.dropped > 0 {
		d.log.Warnf("mapping derivation dropped %d rows with colliding key paths", d.dropped)
	}
	return New(d.rows)
}

func (d *Deriver) deriveChildren(n *model.FeatureNode, basePath string, onPath map[string]bool, include, exclude []glob.Glob) {
	for _, c := range n.Children {
		target := d.resolveAlias(c)

		if n.Group == model.GroupOr || n.Group == model.GroupAlternative {
			// Composition branches share the parent's key path. The
			// branch feature is selected through its members (or, for
			// scalar branches, through the value type at the parent
			// path), never through a key of its own.
			d.deriveChildren(target, basePath, onPath, include, exclude)
			continue
		}

		path := lastIDSegment(c.ID)
		if basePath != "" {
			path = basePath + "." + path
		}
		d.emit(path, c.ID, valueKindOf(target), include, exclude)

		childBase := path
		if target.Repeatable {
			childBase = path + "[*]"
		}
		if target != c {
			// Shared subtree: deeper keys address the canonical
			// features. A target already on this chain is a schema
			// cycle, which bottoms out here.
			if onPath[target.ID] {
				continue
			}
			onPath[target.ID] = true
			d.deriveChildren(target, childBase, onPath, include, exclude)
			delete(onPath, target.ID)
			continue
		}
		d.deriveChildren(c, childBase, onPath, include, exclude)
	}
}

func (d *Deriver) emit(path, featureID string, kind ValueKind, include, exclude []glob.Glob) {
	if len(include) > 0 && !matchAny(include, path) {
		return
	}
	if matchAny(exclude, path) {
		return
	}
	key := indexKey(kindOf(featureID), path)
	if owner, ok := d.seen[key]; ok {
		d.dropped++
		d.log.Debugf("key path %q already owned by %s, dropping row for %s", path, owner, featureID)
		return
	}
	d.seen[key] = featureID
	d.rows = append(d.rows, Entry{KeyPath: path, FeatureID: featureID, Kind: kind})
}

// resolveAlias follows alias indirection to the node whose children are
// addressable beneath this key path.
func (d *Deriver) resolveAlias(n *model.FeatureNode) *model.FeatureNode {
	for n.AliasOf != "" {
		target, ok := d.fm.Feature(n.AliasOf)
		if !ok {
			return n
		}
		n = target
	}
	return n
}

func valueKindOf(n *model.FeatureNode) ValueKind {
	if n.Attr != nil {
		if len(n.Attr.Enum) > 0 {
			return ValueEnum
		}
		return ValueVerbatim
	}
	if n.Group == model.GroupOr || n.Group == model.GroupAlternative {
		for _, c := range n.Children {
			if c.Attr != nil {
				return ValueVerbatim
			}
		}
	}
	return ValuePresence
}

func compileGlobs(patterns []string) ([]glob.Glob, error) {
	if len(patterns) == 0 {
		return nil, nil
	}
	out := make([]glob.Glob, 0, len(patterns))
	for _, p := range patterns {
		g, err := glob.Compile(p, '.')
		if err != nil {
			return nil, fmt.Errorf("%q: %w", p, err)
		}
		out = append(out, g)
	}
	return out, nil
}

func matchAny(globs []glob.Glob, path string) bool {
	for _, g := range globs {
		if g.Match(path) {
			return true
		}
	}
	return false
}

func lastIDSegment(id string) string {
	for i := len(id) - 1; i >= 0; i-- {
		if id[i] == '.' {
			return id[i+1:]
		}
	}
	return id
}
