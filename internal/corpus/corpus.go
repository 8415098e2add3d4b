package corpus

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"net/url"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/apfuzz/internal/store"
)

//go:embed schema.sql
var schemaSQL string

// NullNote is the note text of a template that carries no note.
const NullNote = "null"

var (
	// ErrNoEligible is returned by Pick and Random when the filter admits
	// nothing with a positive weight.
	ErrNoEligible = errors.New("no eligible template")

	// ErrNotFound is returned by Get for an unknown hash.
	ErrNotFound = store.ErrNotFound

	// ErrStoreUnavailable wraps every I/O failure of observatory.db. It is
	// the same sentinel the message store uses.
	ErrStoreUnavailable = store.ErrStoreUnavailable
)

// Template is one corpus row joined with one of its software labels.
// A template observed from several programs appears once per program.
type Template struct {
	Hash     string `json:"hash"`
	Schema   string `json:"schema"`
	Notes    string `json:"notes"`
	Software string `json:"software"`
	Total    int64  `json:"total"`
}

// NoteEntry is a template that carries a note.
type NoteEntry struct {
	DisplayName string `json:"displayName"`
	Hash        string `json:"hash"`
}

// Corpus is the template store.
type Corpus struct {
	db *sql.DB
}

// Open creates or opens observatory.db at path.
func Open(path string) (*Corpus, error) {
	db, err := store.OpenSQLite(path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply corpus schema: %w", err)
	}
	return &Corpus{db: db}, nil
}

// Close closes the database connection.
func (c *Corpus) Close() error {
	if c.db == nil {
		return nil
	}
	return c.db.Close()
}

// ListEligible returns every template the filter admits, ordered by hash
// then software. ExcludedHash and rows without a schema never appear.
func (c *Corpus) ListEligible(ctx context.Context, f Filter) ([]Template, error) {
	query, params := f.eligibleQuery()
	rows, err := c.db.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, unavailable("list eligible", err)
	}
	defer rows.Close()

	templates := []Template{}
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		templates = append(templates, t)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("iterate templates", err)
	}
	return templates, nil
}

// Get returns a template by hash with its first software label.
func (c *Corpus) Get(ctx context.Context, hash string) (Template, error) {
	row := c.db.QueryRowContext(ctx, `
		SELECT s.hash, s.schema, s.notes, COALESCE(MIN(ss.software), ''), s.total
		FROM schemas s
		LEFT JOIN schemasSoftware ss ON s.hash = ss.schemaHash
		WHERE s.hash = ?
		GROUP BY s.hash
	`, hash)
	t, err := scanTemplate(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Template{}, fmt.Errorf("template %s: %w", hash, ErrNotFound)
	}
	return t, err
}

// Types returns the distinct top-level types in the corpus.
func (c *Corpus) Types(ctx context.Context) ([]string, error) {
	return c.strings(ctx, "distinct types", `
		SELECT DISTINCT json_extract(schema, '$.type') AS type
		FROM schemas
		WHERE schema IS NOT NULL AND json_extract(schema, '$.type') IS NOT NULL
		ORDER BY type COLLATE BINARY ASC
	`)
}

// Software returns the distinct software labels in the corpus.
func (c *Corpus) Software(ctx context.Context) ([]string, error) {
	return c.strings(ctx, "unique software", `
		SELECT DISTINCT software FROM schemasSoftware
		ORDER BY software COLLATE BINARY ASC
	`)
}

// WithNotes lists templates carrying a note, labelled "<note> - <hash>".
func (c *Corpus) WithNotes(ctx context.Context) ([]NoteEntry, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT notes, hash FROM schemas
		WHERE notes IS NOT NULL
		ORDER BY hash COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, unavailable("schemas with notes", err)
	}
	defer rows.Close()

	entries := []NoteEntry{}
	for rows.Next() {
		var (
			notes sql.NullString
			hash  string
		)
		if err := rows.Scan(&notes, &hash); err != nil {
			return nil, unavailable("scan note", err)
		}
		entries = append(entries, NoteEntry{
			DisplayName: decodeNotes(notes) + " - " + hash,
			Hash:        hash,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("iterate notes", err)
	}
	return entries, nil
}

// TotalSum returns the summed weight of every template.
func (c *Corpus) TotalSum(ctx context.Context) (int64, error) {
	var sum int64
	err := c.db.QueryRowContext(ctx, `SELECT COALESCE(SUM(total), 0) FROM schemas`).Scan(&sum)
	if err != nil {
		return 0, unavailable("total sum", err)
	}
	return sum, nil
}

// Count returns the number of templates.
func (c *Corpus) Count(ctx context.Context) (int, error) {
	var n int
	if err := c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM schemas`).Scan(&n); err != nil {
		return 0, unavailable("count templates", err)
	}
	return n, nil
}

func (c *Corpus) strings(ctx context.Context, op, query string) ([]string, error) {
	rows, err := c.db.QueryContext(ctx, query)
	if err != nil {
		return nil, unavailable(op, err)
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, unavailable(op, err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable(op, err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTemplate(row scanner) (Template, error) {
	var (
		t      Template
		schema sql.NullString
		notes  sql.NullString
		total  sql.NullInt64
	)
	if err := row.Scan(&t.Hash, &schema, &notes, &t.Software, &total); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Template{}, err
		}
		return Template{}, unavailable("scan template", err)
	}
	t.Schema = schema.String
	t.Notes = decodeNotes(notes)
	t.Total = total.Int64
	return t, nil
}

// decodeNotes reverses the URI encoding notes are stored with.
// A missing note reads as NullNote; a malformed escape is kept as stored.
func decodeNotes(notes sql.NullString) string {
	if !notes.Valid {
		return NullNote
	}
	decoded, err := url.PathUnescape(notes.String)
	if err != nil {
		decoded = notes.String
	}
	return norm.NFC.String(decoded)
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStoreUnavailable, err)
}
