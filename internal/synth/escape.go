package synth

import "strings"

// Words that collide with the model text format's own vocabulary. A schema
// property named one of these gets an "f_" prefix so the serialized model
// stays parseable.
var reserved = map[string]bool{
	"features":    true,
	"constraints": true,
	"metadata":    true,
	"mandatory":   true,
	"optional":    true,
	"and":         true,
	"or":          true,
	"alternative": true,
	"repeatable":  true,
	"alias":       true,
	"requires":    true,
	"excludes":    true,
	"expr":        true,
	"type":        true,
	"enum":        true,
}

// EscapeSegment turns an arbitrary schema property name into a feature id
// segment. Dots are the id separator, so they and any other byte outside
// the identifier set become underscores; reserved words and segments
// starting with a digit get an "f_" prefix. The mapping is stable across
// runs, which is what matters for round-tripping models and mappings.
func EscapeSegment(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '_', c == '-':
			b.WriteByte(c)
		default:
			b.WriteByte('_')
		}
	}
	s := b.String()
	if s == "" {
		return "f_"
	}
	if reserved[s] || (s[0] >= '0' && s[0] <= '9') {
		return "f_" + s
	}
	return s
}

// SanitizeDescription flattens a schema description to a single line of
// printable ASCII so it can live in the tab-separated metadata block.
func SanitizeDescription(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	lastSpace := false
	for _, r := range s {
		switch {
		case r == '\n' || r == '\r' || r == '\t' || r == ' ':
			if !lastSpace && b.Len() > 0 {
				b.WriteByte(' ')
				lastSpace = true
			}
		case r == '"' || r == '\'' || r == '`' || r == '{' || r == '}' || r == '\\':
			// Quoting and brace characters confuse downstream consumers
			// of the metadata block.
		case r >= 0x20 && r < 0x7f:
			b.WriteRune(r)
			lastSpace = false
		}
	}
	return strings.TrimRight(b.String(), " ")
}

// sanitizeEnum keeps enum values printable and free of the serializer's
// list separator and field whitespace. A value with interior spaces would
// split into separate fields on reload, so whitespace runs collapse to
// underscores like the separator does.
func sanitizeEnum(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.ReplaceAll(v, "|", "_")
		v = strings.Join(strings.Fields(v), "_")
		if v == "" {
			v = "_"
		}
		out = append(out, v)
	}
	return out
}
