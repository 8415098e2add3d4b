package placeholder

import (
	"strconv"
	"strings"
	"time"
)

// TimeFormat is the ISO-8601 layout used for <date-time>, millisecond
// precision in UTC.
const TimeFormat = "2006-01-02T15:04:05.000Z"

// Rand is the random source consumed once per Substituter.
type Rand interface {
	IntN(n int) int
}

// Substituter replaces placeholder tokens in one document. The <date-time>,
// <boolean> and <integer> values are drawn once at construction and reused
// for every occurrence.
type Substituter struct {
	uris  *RuleTable
	label string
	now   string
	flag  bool
	num   int
}

// NewSubstituter resolves the per-call values. label is the note text used
// to build <string> replacements; any tokens it contains are defused.
func NewSubstituter(uris *RuleTable, label string, now time.Time, rng Rand) *Substituter {
	return &Substituter{
		uris:  uris,
		label: Defuse(label),
		now:   now.UTC().Format(TimeFormat),
		flag:  rng.IntN(2) == 1,
		num:   rng.IntN(100),
	}
}

// Label returns the <string> replacement for a value at path p.
func (s *Substituter) Label(p Path) string {
	return "example " + s.label + " (" + Defuse(p.String()) + ")"
}

// Apply substitutes every token in doc and returns the result. Maps and
// slices are updated in place.
func (s *Substituter) Apply(doc any) any {
	return s.ApplyAt(doc, Path{})
}

// ApplyAt substitutes a fragment whose root sits at base inside a larger
// document, so rules and labels see absolute paths.
func (s *Substituter) ApplyAt(doc any, base Path) any {
	return s.walk(doc, base)
}

// Text parses data, substitutes it and returns indented JSON.
func (s *Substituter) Text(data []byte) ([]byte, error) {
	doc, err := Parse(data)
	if err != nil {
		return nil, err
	}
	return MarshalPretty(s.Apply(doc))
}

func (s *Substituter) walk(v any, p Path) any {
	switch t := v.(type) {
	case map[string]any:
		renamed := map[string]string{}
		for k, child := range t {
			if strings.Contains(k, "<") {
				if nk := s.embedded(k, p.Key(k)); nk != k {
					renamed[k] = nk
				}
			}
			t[k] = s.walk(child, p.Key(k))
		}
		for k, nk := range renamed {
			t[nk] = t[k]
			delete(t, k)
		}
		return t
	case []any:
		for i, child := range t {
			t[i] = s.walk(child, p.Index(i))
		}
		return t
	case string:
		return s.leaf(t, p)
	default:
		return v
	}
}

// leaf runs the passes over one string value. A value that is exactly a
// <boolean>, <integer>, <undefined> or <null> token becomes a typed value;
// the same token embedded in longer text becomes its textual form.
func (s *Substituter) leaf(v string, p Path) any {
	if !strings.Contains(v, "<") {
		return v
	}
	v = strings.ReplaceAll(v, string(URI), s.uris.Resolve(p))
	v = strings.ReplaceAll(v, string(String), s.Label(p))
	v = strings.ReplaceAll(v, string(DateTime), s.now)

	switch v {
	case string(Boolean):
		return s.flag
	case string(Integer):
		return s.num
	case string(Undefined):
		return ""
	case string(Null):
		return nil
	}
	return s.tail(v)
}

// embedded substitutes tokens inside text that cannot hold a typed value,
// such as object keys.
func (s *Substituter) embedded(v string, p Path) string {
	v = strings.ReplaceAll(v, string(URI), s.uris.Resolve(p))
	v = strings.ReplaceAll(v, string(String), s.Label(p))
	v = strings.ReplaceAll(v, string(DateTime), s.now)
	return s.tail(v)
}

func (s *Substituter) tail(v string) string {
	v = strings.ReplaceAll(v, string(Boolean), strconv.FormatBool(s.flag))
	v = strings.ReplaceAll(v, string(Integer), strconv.Itoa(s.num))
	v = strings.ReplaceAll(v, string(Undefined), "")
	return strings.ReplaceAll(v, string(Null), "null")
}
