package delivery

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/roach88/apfuzz/internal/activity"
	"github.com/roach88/apfuzz/internal/placeholder"
)

// SendFollow sends a Follow of followee to inbox. An empty followee follows
// the public collection.
func (s *Sender) SendFollow(ctx context.Context, inbox, followee string) (string, error) {
	follow := s.site.Follow(activity.NewGUID(), followee)
	data, err := placeholder.Marshal(follow)
	if err != nil {
		return "", fmt.Errorf("encode follow: %w", err)
	}
	return s.SignAndSend(ctx, data, inbox)
}

// AcceptFollow answers a Follow by delivering an Accept to the follower's
// inbox, read from the follower's actor document.
func (s *Sender) AcceptFollow(ctx context.Context, follow map[string]any) (string, error) {
	actor, _ := follow["actor"].(string)
	if actor == "" {
		return "", fmt.Errorf("%w: follow has no actor", placeholder.ErrParse)
	}

	inbox, err := s.InboxOf(ctx, actor)
	if err != nil {
		return "", err
	}

	accept := s.site.Accept(activity.NewGUID(), follow)
	data, err := placeholder.Marshal(accept)
	if err != nil {
		return "", fmt.Errorf("encode accept: %w", err)
	}
	s.logger.Info("sending accept", "follower", actor, "inbox", inbox)
	return s.SignAndSend(ctx, data, inbox)
}

// InboxOf resolves an actor's inbox. Some servers only serve JSON at
// <actor>.json, so that is tried first and the bare actor URL second.
func (s *Sender) InboxOf(ctx context.Context, actorURL string) (string, error) {
	var firstErr error
	for _, candidate := range []string{strings.TrimSuffix(actorURL, "/") + ".json", actorURL} {
		inbox, err := s.fetchInbox(ctx, candidate)
		if err == nil {
			return inbox, nil
		}
		if firstErr == nil {
			firstErr = err
		}
		s.logger.Debug("inbox lookup failed", "url", candidate, "error", err)
	}
	return "", fmt.Errorf("couldn't find inbox at supplied profile url %s: %w", actorURL, firstErr)
}

func (s *Sender) fetchInbox(ctx context.Context, u string) (string, error) {
	resp, err := s.client.GetJSON(ctx, u)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, maxBodyExcerpt))
		return "", &Error{Target: u, Status: resp.StatusCode, Body: string(excerpt)}
	}

	var actor struct {
		Inbox string `json:"inbox"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&actor); err != nil {
		return "", fmt.Errorf("%w: %v", placeholder.ErrParse, err)
	}
	if actor.Inbox == "" {
		return "", ErrNoInbox
	}
	return actor.Inbox, nil
}
