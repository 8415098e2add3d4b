package store

import (
	"context"
	"fmt"
	"time"
)

// Delivery records one attempt to post a message to a target inbox.
// Status is the HTTP status code, 0 when no response arrived.
type Delivery struct {
	ID     string
	GUID   string
	Target string
	Status int
	Error  string
	SentAt time.Time
}

// OK reports whether the target accepted the message.
func (d Delivery) OK() bool {
	return d.Error == "" && d.Status >= 200 && d.Status < 300
}

// RecordDelivery appends a delivery record.
func (s *Store) RecordDelivery(ctx context.Context, d Delivery) error {
	if d.SentAt.IsZero() {
		d.SentAt = s.now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO deliveries (id, guid, target, status, error, sent_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, d.ID, d.GUID, d.Target, d.Status, d.Error, d.SentAt.UTC().Format(timeFormat))
	if err != nil {
		return unavailable("record delivery", err)
	}
	return nil
}

// ListDeliveries returns up to limit records, newest first.
// Ties on sent_at are broken by id for deterministic output.
func (s *Store) ListDeliveries(ctx context.Context, limit int) ([]Delivery, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, guid, target, status, error, sent_at
		FROM deliveries
		ORDER BY sent_at DESC, id COLLATE BINARY ASC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, unavailable("list deliveries", err)
	}
	defer rows.Close()

	deliveries := []Delivery{}
	for rows.Next() {
		var (
			d      Delivery
			sentAt string
		)
		if err := rows.Scan(&d.ID, &d.GUID, &d.Target, &d.Status, &d.Error, &sentAt); err != nil {
			return nil, unavailable("scan delivery", err)
		}
		d.SentAt, err = time.Parse(timeFormat, sentAt)
		if err != nil {
			return nil, fmt.Errorf("parse sent_at %q: %w", sentAt, err)
		}
		deliveries = append(deliveries, d)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("iterate deliveries", err)
	}
	return deliveries, nil
}
