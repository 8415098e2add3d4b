package synth

import "github.com/roach88/apfuzz/internal/placeholder"

// Entries is a field that holds either one object or a list of them, as
// object.tag and object.attachment do. Rules are written once against Each
// and apply to both shapes.
type Entries struct {
	single map[string]any
	many   []any
	isMany bool
}

// EntriesOf classifies v. It reports false for values that are neither an
// object nor an array.
func EntriesOf(v any) (Entries, bool) {
	switch t := v.(type) {
	case map[string]any:
		return Entries{single: t}, true
	case []any:
		return Entries{many: t, isMany: true}, true
	default:
		return Entries{}, false
	}
}

// IsMany reports whether the field is an array.
func (e Entries) IsMany() bool {
	return e.isMany
}

// Len returns the number of object entries.
func (e Entries) Len() int {
	n := 0
	e.Each(placeholder.Path{}, func(map[string]any, placeholder.Path) { n++ })
	return n
}

// Each calls fn for every object entry with its path below base. Array
// elements that are not objects are skipped.
func (e Entries) Each(base placeholder.Path, fn func(entry map[string]any, p placeholder.Path)) {
	if !e.isMany {
		if e.single != nil {
			fn(e.single, base)
		}
		return
	}
	for i, item := range e.many {
		if m, ok := item.(map[string]any); ok {
			fn(m, base.Index(i))
		}
	}
}

// typeOf returns the entry's "type" when it is a string.
func typeOf(entry map[string]any) string {
	s, _ := entry["type"].(string)
	return s
}
