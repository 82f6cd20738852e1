package schema

import (
	"strings"
)

// Kind is the tagged variant of a Definition. Dispatch on it is always done
// through a switch over all variants, never through open-ended inspection of
// the raw node.
type Kind int

const (
	KindObject Kind = iota
	KindArray
	KindScalar
	KindUnion        // oneOf (exclusive) or anyOf (see Definition.Exclusive)
	KindIntersection // allOf
	KindUnknown      // vocabulary outside the supported operator subset
)

func (k Kind) String() string {
	switch k {
	case KindObject:
		return "object"
	case KindArray:
		return "array"
	case KindScalar:
		return "scalar"
	case KindUnion:
		return "union"
	case KindIntersection:
		return "intersection"
	}
	return "unknown"
}

// Scalar holds the constraints of a scalar leaf.
type Scalar struct {
	Type string
	Enum []string
}

// Property is a named, ordered member of an object definition. Def is nil
// when the property's reference could not be resolved; such branches are
// dropped by the synthesizer.
type Property struct {
	Name string
	Def  *Definition
}

// Definition is one node of the schema graph. Definitions are owned by the
// Graph arena; references between them are plain pointers, are identified by
// qualified name, and may form cycles. Inline (anonymous) nodes have an
// empty Name.
type Definition struct {
	Name        string
	Kind        Kind
	Description string

	// Object.
	Properties []Property
	Required   []string

	// Union / intersection branches, in declaration order.
	Branches  []*Definition
	Exclusive bool // true for oneOf, false for anyOf

	// Array element.
	Elem *Definition

	Scalar Scalar

	state defState
}

type defState int

const (
	statePending defState = iota // placeholder scheduled for expansion
	stateExpanding
	stateDone
)

// ShortName returns the last dot-separated segment of the qualified name,
// e.g. "Pod" for "io.k8s.api.core.v1.Pod".
func (d *Definition) ShortName() string {
	if d.Name == "" {
		return ""
	}
	if i := strings.LastIndexByte(d.Name, '.'); i >= 0 {
		return d.Name[i+1:]
	}
	return d.Name
}

// IsRequired reports whether the named property is in the required list.
func (d *Definition) IsRequired(name string) bool {
	for _, r := range d.Required {
		if r == name {
			return true
		}
	}
	return false
}
