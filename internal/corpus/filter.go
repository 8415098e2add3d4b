package corpus

import "strings"

// ExcludedHash is a template known to crash receivers for reasons unrelated
// to federation. It is never eligible.
const ExcludedHash = "c39fcca0edebff633e254f9397cafc90"

// Filter narrows the eligible templates. The zero Filter admits every
// template with a schema.
type Filter struct {
	// Types keeps templates whose top-level type is one of these.
	Types []string `json:"types,omitempty"`
	// Software keeps templates observed from this software.
	Software string `json:"software,omitempty"`
	// NotesOnly keeps templates that carry a note.
	NotesOnly bool `json:"notesOnly,omitempty"`
}

// compile returns the WHERE clause and its parameters. Table aliases are
// s (schemas) and ss (schemasSoftware).
//
// All values are bound as parameters, never interpolated.
func (f Filter) compile() (string, []any) {
	preds := []string{"s.schema IS NOT NULL", "s.hash != ?"}
	params := []any{ExcludedHash}

	if len(f.Types) > 0 {
		marks := make([]string, len(f.Types))
		for i, t := range f.Types {
			marks[i] = "?"
			params = append(params, t)
		}
		preds = append(preds, "json_extract(s.schema, '$.type') IN ("+strings.Join(marks, ", ")+")")
	}
	if f.NotesOnly {
		preds = append(preds, "s.notes IS NOT NULL")
	}
	if f.Software != "" {
		preds = append(preds, "ss.software = ?")
		params = append(params, f.Software)
	}

	return strings.Join(preds, " AND "), params
}

// eligibleQuery is the full SELECT for ListEligible.
func (f Filter) eligibleQuery() (string, []any) {
	where, params := f.compile()
	return `SELECT s.hash, s.schema, s.notes, ss.software, s.total
		FROM schemas s
		JOIN schemasSoftware ss ON s.hash = ss.schemaHash
		WHERE ` + where + `
		ORDER BY s.hash COLLATE BINARY ASC, ss.software COLLATE BINARY ASC`, params
}
