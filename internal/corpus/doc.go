// Package corpus reads and maintains the template corpus (observatory.db).
//
// Each template is an ActivityPub activity shape observed in the wild, with
// placeholder tokens where values varied. Templates are identified by a
// content hash and carry a selection weight (total) proportional to how
// often the shape was seen, an optional URI-encoded note, and one or more
// software labels.
//
// Queries are compiled from a Filter into parameterized SQL. Values are
// never interpolated and every query has a deterministic ORDER BY, so the
// same corpus and the same random draws always select the same template.
package corpus
