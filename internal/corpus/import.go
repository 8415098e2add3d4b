package corpus

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/roach88/apfuzz/internal/placeholder"
)

// Record is one observed template as it appears in an import file.
// Schema is either a JSON object or a string holding one.
type Record struct {
	Schema   any      `json:"schema" yaml:"schema"`
	Notes    string   `json:"notes,omitempty" yaml:"notes,omitempty"`
	Software []string `json:"software" yaml:"software"`
	Count    int64    `json:"count,omitempty" yaml:"count,omitempty"`
}

// ImportStats summarizes an Import.
type ImportStats struct {
	Records int `json:"records"`
	Created int `json:"created"`
	Updated int `json:"updated"`
}

// LoadFile reads records from a .json, .yaml or .yml file holding a list.
func LoadFile(path string) ([]Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	var records []Record
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &records); err != nil {
			return nil, fmt.Errorf("%s: %w: %w", path, placeholder.ErrParse, err)
		}
	default:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		if err := dec.Decode(&records); err != nil {
			return nil, fmt.Errorf("%s: %w: %w", path, placeholder.ErrParse, err)
		}
	}
	return records, nil
}

// LoadFiles reads several import files concurrently. Records keep file
// order, then in-file order.
func LoadFiles(ctx context.Context, paths []string) ([]Record, error) {
	loaded := make([][]Record, len(paths))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, path := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			records, err := LoadFile(path)
			if err != nil {
				return err
			}
			loaded[i] = records
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []Record
	for _, records := range loaded {
		all = append(all, records...)
	}
	return all, nil
}

// Import adds records to the corpus in one transaction. A template already
// present (same hash) has its total increased by the record's count and
// gains any new software labels; its existing note is kept.
func (c *Corpus) Import(ctx context.Context, records []Record) (ImportStats, error) {
	stats := ImportStats{Records: len(records)}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return stats, unavailable("begin import", err)
	}
	defer tx.Rollback()

	for i, rec := range records {
		created, err := importRecord(ctx, tx, rec)
		if err != nil {
			return ImportStats{Records: len(records)}, fmt.Errorf("record %d: %w", i, err)
		}
		if created {
			stats.Created++
		} else {
			stats.Updated++
		}
	}

	if err := tx.Commit(); err != nil {
		return ImportStats{Records: len(records)}, unavailable("commit import", err)
	}
	return stats, nil
}

func importRecord(ctx context.Context, tx *sql.Tx, rec Record) (bool, error) {
	schema, err := normalizeSchema(rec.Schema)
	if err != nil {
		return false, err
	}
	canonical, err := MarshalCanonical(schema)
	if err != nil {
		return false, fmt.Errorf("%w: %w", placeholder.ErrParse, err)
	}
	hash, err := Hash(schema)
	if err != nil {
		return false, err
	}

	count := rec.Count
	if count <= 0 {
		count = 1
	}
	var notes any
	if rec.Notes != "" {
		notes = url.PathEscape(rec.Notes)
	}

	var existing int64
	err = tx.QueryRowContext(ctx, `SELECT total FROM schemas WHERE hash = ?`, hash).Scan(&existing)
	created := errors.Is(err, sql.ErrNoRows)
	switch {
	case created:
		_, err = tx.ExecContext(ctx, `
			INSERT INTO schemas (hash, schema, notes, total) VALUES (?, ?, ?, ?)
		`, hash, string(canonical), notes, count)
	case err == nil:
		_, err = tx.ExecContext(ctx, `
			UPDATE schemas SET total = total + ?, notes = COALESCE(notes, ?)
			WHERE hash = ?
		`, count, notes, hash)
	}
	if err != nil {
		return false, unavailable("upsert template", err)
	}

	for _, sw := range rec.Software {
		if sw == "" {
			continue
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO schemasSoftware (schemaHash, software)
			SELECT ?, ?
			WHERE NOT EXISTS (
				SELECT 1 FROM schemasSoftware WHERE schemaHash = ? AND software = ?
			)
		`, hash, sw, hash, sw)
		if err != nil {
			return false, unavailable("insert software", err)
		}
	}
	return created, nil
}

// normalizeSchema turns a decoded schema into a JSON object tree.
func normalizeSchema(v any) (map[string]any, error) {
	switch s := v.(type) {
	case string:
		return placeholder.ParseObject([]byte(s))
	case map[string]any:
		return s, nil
	case nil:
		return nil, fmt.Errorf("%w: record has no schema", placeholder.ErrParse)
	default:
		return nil, fmt.Errorf("%w: schema must be an object, got %T", placeholder.ErrParse, v)
	}
}
