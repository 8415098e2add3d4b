package placeholder

import (
	"strconv"
	"strings"
)

// Path is the key path of a value inside a document. Array elements are
// addressed by their decimal index.
type Path []string

// Key returns a new path extended by an object key.
func (p Path) Key(k string) Path {
	out := make(Path, len(p), len(p)+1)
	copy(out, p)
	return append(out, k)
}

// Index returns a new path extended by an array index.
func (p Path) Index(i int) Path {
	return p.Key(strconv.Itoa(i))
}

// String renders the path dotted, e.g. "object.tag.0.name".
func (p Path) String() string {
	return strings.Join(p, ".")
}

// ParsePath splits a dotted path. The empty string is the root path.
func ParsePath(s string) Path {
	if s == "" {
		return Path{}
	}
	return Path(strings.Split(s, "."))
}
