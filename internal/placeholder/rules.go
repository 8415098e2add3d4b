package placeholder

// Rule binds a path pattern to the URL that replaces <uri> there.
//
// Pattern segments are separated by dots. A "*" segment matches exactly one
// key or array index. A trailing "**" segment matches any remaining suffix,
// including none.
type Rule struct {
	Pattern string
	Value   string
}

// RuleTable resolves <uri> replacements by field path. The first matching
// rule wins; paths no rule matches get the fallback.
type RuleTable struct {
	rules    []Rule
	fallback string
}

// NewRuleTable builds a table from rules in priority order.
func NewRuleTable(fallback string, rules ...Rule) *RuleTable {
	return &RuleTable{rules: append([]Rule(nil), rules...), fallback: fallback}
}

// Resolve returns the URL for a <uri> found at path p.
func (t *RuleTable) Resolve(p Path) string {
	for _, r := range t.rules {
		if Match(r.Pattern, p) {
			return r.Value
		}
	}
	return t.fallback
}

// Fallback returns the URL used for unmatched paths.
func (t *RuleTable) Fallback() string {
	return t.fallback
}

// Match reports whether pattern matches path p.
func Match(pattern string, p Path) bool {
	segs := ParsePath(pattern)
	for i, s := range segs {
		if s == "**" && i == len(segs)-1 {
			return true
		}
		if i >= len(p) {
			return false
		}
		if s != "*" && s != p[i] {
			return false
		}
	}
	return len(segs) == len(p)
}
