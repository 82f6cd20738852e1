// Package translate turns one configuration document into a feature
// selection over an assembled model, using the key mapping to bridge
// document paths and feature identifiers.
package translate

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/goccy/go-yaml"

	"github.com/caosd-group/kubefm/internal/logging"
	"github.com/caosd-group/kubefm/internal/mapping"
	"github.com/caosd-group/kubefm/internal/model"
)

var (
	ErrMissingKind = errors.New("document has no kind")
	ErrUnknownKind = errors.New("document kind not in model")
	ErrBadDocument = errors.New("bad document")
)

// Selection is the translated form of one document: which features it
// selects, the values carried for value-mapped features, and the key
// paths the mapping could not place.
type Selection struct {
	Kind     string
	Selected []string
	Values   map[string]string
	Unmapped []string

	set map[string]bool
}

// NewSelection builds a selection from explicit feature ids, for callers
// that do not start from a document.
func NewSelection(ids ...string) *Selection {
	s := &Selection{
		Values: make(map[string]string),
		set:    make(map[string]bool, len(ids)),
	}
	for _, id := range ids {
		if !s.set[id] {
			s.set[id] = true
			s.Selected = append(s.Selected, id)
		}
	}
	return s
}

// Has reports whether a feature is selected.
func (s *Selection) Has(id string) bool {
	return s.set[id]
}

// Translator translates documents against one model and mapping pair.
// It is read-only over both and safe for concurrent use.
type Translator struct {
	fm  *model.FeatureModel
	mp  *mapping.Mapping
	log *logging.Logger
}

func New(fm *model.FeatureModel, mp *mapping.Mapping) *Translator {
	return &Translator{fm: fm, mp: mp, log: logging.NewNopLogger()}
}

func (t *Translator) WithLogger(log *logging.Logger) *Translator {
	if log != nil {
		t.log = log
	}
	return t
}

// Document translates one YAML or JSON document. The context deadline is
// the per-document time budget: it is checked during the walk so a
// pathological document cannot stall a batch.
func (t *Translator) Document(ctx context.Context, doc []byte) (*Selection, error) {
	var root yaml.MapSlice
	if err := yaml.UnmarshalWithOptions(doc, &root, yaml.UseOrderedMap()); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadDocument, err)
	}

	kindValue, ok := docString(root, "kind")
	if !ok || kindValue == "" {
		return nil, ErrMissingKind
	}
	kindID, ok := t.kindFeature(kindValue)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, kindValue)
	}

	s := &Selection{
		Kind:   kindID,
		Values: make(map[string]string),
		set:    make(map[string]bool),
	}
	t.selectWithAncestors(s, kindID)

	w := &docWalker{t: t, s: s, kind: kindID, ctx: ctx}
	for _, item := range root {
		key, ok := item.Key.(string)
		if !ok {
			continue
		}
		// The kind discriminator and API group are consumed by kind
		// selection, not by the mapping.
		if key == "kind" || key == "apiVersion" {
			continue
		}
		if err := w.walk(key, item.Value); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// kindFeature finds the kind's subtree root under the model root.
func (t *Translator) kindFeature(kind string) (string, bool) {
	for _, c := range t.fm.Root.Children {
		if c.ID == kind {
			return c.ID, true
		}
	}
	return "", false
}

// selectWithAncestors selects a feature and its whole parent chain. A key
// path implies every enclosing key, so a selected feature never orphans.
func (t *Translator) selectWithAncestors(s *Selection, id string) {
	for id != "" && !s.set[id] {
		if _, ok := t.fm.Feature(id); ok {
			s.set[id] = true
			s.Selected = append(s.Selected, id)
		}
		parent, ok := t.fm.Parent(id)
		if !ok {
			return
		}
		id = parent
	}
}

type docWalker struct {
	t    *Translator
	s    *Selection
	kind string
	ctx  context.Context
}

func (w *docWalker) walk(path string, value any) error {
	if err := w.ctx.Err(); err != nil {
		return err
	}

	entry, mapped := w.t.mp.Lookup(kindOf(w.kind), path)
	if mapped {
		w.apply(entry, value)
	}

	switch v := value.(type) {
	case yaml.MapSlice:
		if len(v) == 0 {
			if mapped {
				w.selectSynthetic(entry.FeatureID, "isEmpty")
			} else {
				w.unmapped(path)
			}
		}
		for _, item := range v {
			key, ok := item.Key.(string)
			if !ok {
				continue
			}
			if err := w.walk(path+"."+key, item.Value); err != nil {
				return err
			}
		}
	case []any:
		if len(v) == 0 {
			if mapped {
				w.selectSynthetic(entry.FeatureID, "isEmpty")
			} else {
				w.unmapped(path)
			}
		}
		for i, elem := range v {
			if err := w.walk(path+"["+strconv.Itoa(i)+"]", elem); err != nil {
				return err
			}
		}
	case nil:
		if mapped {
			w.selectSynthetic(entry.FeatureID, "isNull")
		} else {
			w.unmapped(path)
		}
	default:
		if !mapped {
			w.unmapped(path)
		}
	}
	return nil
}

// apply selects the mapped feature and records its value according to the
// row's value kind.
func (w *docWalker) apply(entry mapping.Entry, value any) {
	w.t.selectWithAncestors(w.s, entry.FeatureID)

	switch entry.Kind {
	case mapping.ValueVerbatim, mapping.ValueEnum:
		if isScalar(value) {
			if _, ok := w.s.Values[entry.FeatureID]; !ok {
				w.s.Values[entry.FeatureID] = fmt.Sprint(value)
			}
		}
	}

	if f, ok := w.t.fm.Feature(entry.FeatureID); ok {
		w.selectBranch(f, value)
	}
}

// selectBranch resolves scalar union branches by the document value's
// type: a union feature with asInteger/asString style children selects
// the branch matching the value, satisfying the group cardinality that
// the key path alone cannot.
func (w *docWalker) selectBranch(f *model.FeatureNode, value any) {
	if f.Group != model.GroupOr && f.Group != model.GroupAlternative {
		return
	}
	if !isScalar(value) {
		return
	}
	typ := scalarType(value)
	for _, c := range f.Children {
		if c.Attr != nil && c.Attr.Type == typ {
			w.t.selectWithAncestors(w.s, c.ID)
			return
		}
	}
}

// selectSynthetic selects a derived null/empty marker next to its base
// feature. The marker has no node of its own; the validator accepts it
// whenever the base feature exists.
func (w *docWalker) selectSynthetic(baseID, suffix string) {
	id := baseID + "." + suffix
	if !w.s.set[id] {
		w.s.set[id] = true
		w.s.Selected = append(w.s.Selected, id)
	}
}

func (w *docWalker) unmapped(path string) {
	canonical := mapping.Canonical(path)
	for _, p := range w.s.Unmapped {
		if p == canonical {
			return
		}
	}
	w.s.Unmapped = append(w.s.Unmapped, canonical)
}

func docString(ms yaml.MapSlice, key string) (string, bool) {
	for _, item := range ms {
		if k, ok := item.Key.(string); ok && k == key {
			s, ok := item.Value.(string)
			return s, ok
		}
	}
	return "", false
}

func isScalar(v any) bool {
	switch v.(type) {
	case yaml.MapSlice, []any, nil:
		return false
	}
	return true
}

func scalarType(v any) string {
	switch v.(type) {
	case bool:
		return "boolean"
	case int, int64, uint64:
		return "integer"
	case float64:
		return "number"
	case string:
		return "string"
	}
	return ""
}

func kindOf(featureID string) string {
	if i := strings.IndexByte(featureID, '.'); i >= 0 {
		return featureID[:i]
	}
	return featureID
}
