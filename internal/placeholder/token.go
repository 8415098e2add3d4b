package placeholder

import "strings"

// Token is a typed placeholder as it appears inside template strings.
type Token string

const (
	URI       Token = "<uri>"
	String    Token = "<string>"
	DateTime  Token = "<date-time>"
	Boolean   Token = "<boolean>"
	Integer   Token = "<integer>"
	Undefined Token = "<undefined>"
	Null      Token = "<null>"
)

// Order is the pass order applied to every value.
var Order = []Token{URI, String, DateTime, Boolean, Integer, Undefined, Null}

// Name returns the token without its angle brackets.
func (t Token) Name() string {
	return strings.TrimSuffix(strings.TrimPrefix(string(t), "<"), ">")
}

// Find returns the tokens present in text, in pass order.
func Find(text string) []Token {
	var found []Token
	for _, tok := range Order {
		if strings.Contains(text, string(tok)) {
			found = append(found, tok)
		}
	}
	return found
}

// defuse rewrites every token in s to its bare name. Caller-supplied text
// such as template notes is defused before it is embedded in a document.
var defuse = func() *strings.Replacer {
	pairs := make([]string, 0, len(Order)*2)
	for _, tok := range Order {
		pairs = append(pairs, string(tok), tok.Name())
	}
	return strings.NewReplacer(pairs...)
}()

// Defuse returns s with every placeholder token replaced by its bare name.
func Defuse(s string) string {
	return defuse.Replace(s)
}
