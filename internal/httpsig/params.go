package httpsig

import (
	"crypto/sha256"
	"encoding/base64"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Parameter names in signing order.
const (
	ParamRequestTarget = "(request-target)"
	ParamHost          = "host"
	ParamDate          = "date"
	ParamDigest        = "digest"
)

// Param is one signed parameter.
type Param struct {
	Name  string
	Value string
}

// Params is an ordered parameter list. Order is significant: it fixes the
// signing string and the headers list.
type Params []Param

// BuildParams derives the parameters for a request. A nil or empty body
// omits the digest.
func BuildParams(method string, u *url.URL, body []byte, now time.Time) Params {
	target := u.EscapedPath()
	if target == "" {
		target = "/"
	}
	if u.RawQuery != "" {
		target += "?" + u.RawQuery
	}

	p := Params{
		{ParamRequestTarget, strings.ToLower(method) + " " + target},
		{ParamHost, u.Host},
		{ParamDate, now.UTC().Format(http.TimeFormat)},
	}
	if len(body) > 0 {
		p = append(p, Param{ParamDigest, Digest(body)})
	}
	return p
}

// Get returns the value of the named parameter.
func (p Params) Get(name string) (string, bool) {
	for _, param := range p {
		if param.Name == name {
			return param.Value, true
		}
	}
	return "", false
}

// Names returns the parameter names in order.
func (p Params) Names() []string {
	names := make([]string, len(p))
	for i, param := range p {
		names[i] = param.Name
	}
	return names
}

// SigningString joins the parameters as "name: value" lines.
func (p Params) SigningString() string {
	lines := make([]string, len(p))
	for i, param := range p {
		lines[i] = param.Name + ": " + param.Value
	}
	return strings.Join(lines, "\n")
}

// Digest returns "SHA-256=" followed by the base64 SHA-256 of body.
func Digest(body []byte) string {
	sum := sha256.Sum256(body)
	return "SHA-256=" + base64.StdEncoding.EncodeToString(sum[:])
}
