package store

import (
	"context"
	"database/sql"
	"errors"
)

// PutMessage appends a message under guid. Uses ON CONFLICT(guid) DO NOTHING
// so a repeated write keeps the original body.
func (s *Store) PutMessage(ctx context.Context, guid, message string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO messages (guid, message, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT(guid) DO NOTHING
	`, guid, message, s.now().UTC().Format(timeFormat))
	if err != nil {
		return unavailable("put message", err)
	}
	return nil
}

// GetMessage returns the stored activity for guid.
func (s *Store) GetMessage(ctx context.Context, guid string) (string, error) {
	var message string
	err := s.db.QueryRowContext(ctx, `SELECT message FROM messages WHERE guid = ?`, guid).Scan(&message)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", unavailable("get message", err)
	}
	return message, nil
}

// GetMessageObject returns the object field of the stored activity as JSON
// text. A string object comes back quoted; a missing one as "null".
func (s *Store) GetMessageObject(ctx context.Context, guid string) (string, error) {
	var object string
	err := s.db.QueryRowContext(ctx, `
		SELECT json_quote(json_extract(message, '$.object'))
		FROM messages
		WHERE guid = ?
	`, guid).Scan(&object)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", unavailable("get message object", err)
	}
	return object, nil
}

// CountMessages returns the number of stored messages.
func (s *Store) CountMessages(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM messages`).Scan(&n); err != nil {
		return 0, unavailable("count messages", err)
	}
	return n, nil
}
