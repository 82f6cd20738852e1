package schema

import (
	"errors"
	"fmt"
)

var (
	ErrUnresolvedReference  = errors.New("unresolved reference")
	ErrUnsupportedConstruct = errors.New("unsupported construct")
	ErrMalformedSchema      = errors.New("malformed schema document")
)

// WarnKind classifies a recoverable schema condition. Both kinds degrade the
// model instead of failing the build: an unresolved reference drops the
// dependent branch, an unsupported construct turns the node opaque.
type WarnKind int

const (
	WarnUnresolvedReference WarnKind = iota
	WarnUnsupportedConstruct
)

func (k WarnKind) String() string {
	if k == WarnUnresolvedReference {
		return "unresolved-reference"
	}
	return "unsupported-construct"
}

// Warning records one recoverable condition encountered while building the
// graph. Warnings are never discarded; the caller surfaces them in the final
// summary.
type Warning struct {
	Kind   WarnKind
	Name   string // definition being expanded
	Detail string // offending reference or construct
}

func (w Warning) String() string {
	return fmt.Sprintf("%s: %s: %s", w.Kind, w.Name, w.Detail)
}
