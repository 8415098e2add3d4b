// Package placeholder resolves the typed placeholder tokens that appear in
// ActivityPub templates.
//
// Templates are JSON documents whose leaf values may be literals or one of
// the tokens <uri>, <string>, <date-time>, <boolean>, <integer>,
// <undefined> and <null>. A Substituter walks the parsed tree and replaces
// every token according to the path of the value that holds it, so the same
// <uri> token can resolve to an account URL in one field and a message URL in
// another.
//
// Passes run in a fixed order per value: URI, string, date-time, boolean,
// integer, undefined, null. Values produced by an earlier pass are never
// re-read by a later one as tokens.
package placeholder
