// Package delivery signs and posts messages to target inboxes and keeps
// the record of what was sent.
package delivery

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/apfuzz/internal/activity"
	"github.com/roach88/apfuzz/internal/httpsig"
	"github.com/roach88/apfuzz/internal/placeholder"
	"github.com/roach88/apfuzz/internal/store"
)

// maxBodyExcerpt bounds how much of a target's response is kept.
const maxBodyExcerpt = 512

// SignedClient is the signed transport.
type SignedClient interface {
	PostJSON(ctx context.Context, rawURL string, body []byte) (*http.Response, error)
	GetJSON(ctx context.Context, rawURL string) (*http.Response, error)
}

// Store persists sent messages and delivery records.
type Store interface {
	PutMessage(ctx context.Context, guid, message string) error
	RecordDelivery(ctx context.Context, d store.Delivery) error
}

// Observer receives one call per completed POST. statusClass is "2xx",
// "4xx" and so on, or "error" when no response arrived.
type Observer interface {
	ObserveDelivery(statusClass string, elapsed time.Duration)
}

type noopObserver struct{}

func (noopObserver) ObserveDelivery(string, time.Duration) {}

// Sender delivers messages as the operating account.
type Sender struct {
	site     activity.Site
	client   SignedClient
	store    Store
	observer Observer
	logger   *slog.Logger
}

// NewSender creates a Sender. A nil observer or logger gets a default.
func NewSender(site activity.Site, client SignedClient, st Store, observer Observer, logger *slog.Logger) *Sender {
	if observer == nil {
		observer = noopObserver{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sender{
		site:     site,
		client:   client,
		store:    st,
		observer: observer,
		logger:   logger.With("component", "delivery"),
	}
}

// SignAndSend stores message under the GUID taken from its id, then posts
// it to target. The message is stored before the POST so the target can
// dereference it while verifying. It returns the GUID once the target
// answers 2xx; otherwise a *Error.
func (s *Sender) SignAndSend(ctx context.Context, message []byte, target string) (string, error) {
	if target == "" {
		return "", ErrNoTarget
	}

	doc, err := placeholder.ParseObject(message)
	if err != nil {
		return "", fmt.Errorf("parse message: %w", err)
	}
	id, _ := doc["id"].(string)
	guid := activity.GUIDFromID(id)
	if guid == "" {
		return "", fmt.Errorf("%w: message has no usable id %q", placeholder.ErrParse, id)
	}

	body, err := placeholder.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("encode message %s: %w", guid, err)
	}
	if err := s.store.PutMessage(ctx, guid, string(body)); err != nil {
		return "", fmt.Errorf("store message %s: %w", guid, err)
	}

	rec := store.Delivery{ID: uuid.NewString(), GUID: guid, Target: target}
	start := time.Now()
	resp, err := s.client.PostJSON(ctx, target, body)
	elapsed := time.Since(start)
	rec.SentAt = start

	if errors.Is(err, httpsig.ErrNoPrivateKey) {
		return "", err
	}
	if err != nil {
		s.observer.ObserveDelivery("error", elapsed)
		rec.Error = err.Error()
		s.record(ctx, rec)
		return "", &Error{Target: target, Err: err}
	}
	defer resp.Body.Close()

	excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, maxBodyExcerpt))
	rec.Status = resp.StatusCode
	s.observer.ObserveDelivery(fmt.Sprintf("%dxx", resp.StatusCode/100), elapsed)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		rec.Error = string(excerpt)
		s.record(ctx, rec)
		return "", &Error{Target: target, Status: resp.StatusCode, Body: string(excerpt)}
	}

	s.record(ctx, rec)
	s.logger.Info("message sent",
		"guid", guid,
		"id", id,
		"target", target,
		"status", resp.StatusCode,
		"elapsed", elapsed,
	)
	return guid, nil
}

// record stores a delivery row. A failure here does not change the
// outcome of the delivery itself.
func (s *Sender) record(ctx context.Context, d store.Delivery) {
	if err := s.store.RecordDelivery(ctx, d); err != nil {
		s.logger.Error("record delivery", "guid", d.GUID, "error", err)
	}
}
