package store

import (
	"context"
	"database/sql"
	"errors"
)

// Account is a local actor with its keypair and pre-rendered documents.
type Account struct {
	Name       string
	PrivateKey string // PKCS8 PEM, empty when the account cannot sign
	PublicKey  string // SPKI PEM
	Webfinger  string // JSON
	Actor      string // JSON
}

// UpsertAccount inserts or replaces the account named a.Name.
func (s *Store) UpsertAccount(ctx context.Context, a Account) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO accounts (name, privkey, pubkey, webfinger, actor)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			privkey = excluded.privkey,
			pubkey = excluded.pubkey,
			webfinger = excluded.webfinger,
			actor = excluded.actor
	`, a.Name, nullIfEmpty(a.PrivateKey), a.PublicKey, a.Webfinger, a.Actor)
	if err != nil {
		return unavailable("upsert account", err)
	}
	return nil
}

// GetAccount returns the account called name.
func (s *Store) GetAccount(ctx context.Context, name string) (Account, error) {
	var (
		a                        Account
		priv, pub, wf, actorJSON sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT name, privkey, pubkey, webfinger, actor
		FROM accounts
		WHERE name = ?
	`, name).Scan(&a.Name, &priv, &pub, &wf, &actorJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return Account{}, ErrNotFound
	}
	if err != nil {
		return Account{}, unavailable("get account", err)
	}
	a.PrivateKey = priv.String
	a.PublicKey = pub.String
	a.Webfinger = wf.String
	a.Actor = actorJSON.String
	return a, nil
}

// SigningKey returns the private key of the first account created, which
// is the operating account. It returns "" with a nil error when no account
// exists or the first account has no key.
func (s *Store) SigningKey(ctx context.Context) (string, error) {
	var priv sql.NullString
	err := s.db.QueryRowContext(ctx, `SELECT privkey FROM accounts ORDER BY rowid LIMIT 1`).Scan(&priv)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", unavailable("get signing key", err)
	}
	return priv.String, nil
}

func nullIfEmpty(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
