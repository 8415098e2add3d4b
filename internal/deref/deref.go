// Package deref makes arbitrary JSON fragments fetchable by URL.
//
// Mint assigns a fragment a fresh GUID-qualified id, wraps it in a Create
// activity and appends that activity to the message store, after which the
// fragment is served at /m/<guid> and the wrapper at /m/<guid>/activity.
package deref

import (
	"context"
	"fmt"

	"github.com/roach88/apfuzz/internal/activity"
	"github.com/roach88/apfuzz/internal/placeholder"
)

// MessageStore is the append side of the message store.
type MessageStore interface {
	PutMessage(ctx context.Context, guid, message string) error
}

// Minter mints dereferenceable sub-objects.
type Minter struct {
	site  activity.Site
	store MessageStore
	guids activity.GUIDGenerator
}

// NewMinter creates a Minter. A nil guids uses random GUIDs.
func NewMinter(site activity.Site, store MessageStore, guids activity.GUIDGenerator) *Minter {
	if guids == nil {
		guids = activity.RandomGUIDs{}
	}
	return &Minter{site: site, store: store, guids: guids}
}

// Mint sets object["id"] to a new message URL, stores the Create wrapper
// attributed to accountURL, and returns the object's id. Store failures are
// returned unchanged so callers can match them.
func (m *Minter) Mint(ctx context.Context, object map[string]any, accountURL string) (string, error) {
	guid := m.guids.Generate()
	id := m.site.MessageURL(guid)
	object["id"] = id

	wrapper := activity.Create(m.site.ActivityURL(guid), accountURL, object)
	data, err := placeholder.Marshal(wrapper)
	if err != nil {
		return "", fmt.Errorf("mint %s: %w", guid, err)
	}
	if err := m.store.PutMessage(ctx, guid, string(data)); err != nil {
		return "", fmt.Errorf("mint %s: %w", guid, err)
	}
	return id, nil
}
