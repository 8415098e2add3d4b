package activity

import (
	"net/url"
	"strings"
)

// Site is the public identity of this instance: the domain it serves and
// the operating account whose key signs outgoing requests.
type Site struct {
	Domain  string
	Account string
}

// Base returns https://<domain>.
func (s Site) Base() string {
	return "https://" + s.Domain
}

// AccountURL returns the actor URL for any local account name.
func (s Site) AccountURL(name string) string {
	return s.Base() + "/u/" + name
}

// ActorURL returns the operating account's actor URL. It doubles as the
// keyId of every signature.
func (s Site) ActorURL() string {
	return s.AccountURL(s.Account)
}

// MessageURL returns the dereferenceable URL of an object.
func (s Site) MessageURL(guid string) string {
	return s.Base() + "/m/" + guid
}

// ActivityURL returns the URL of the activity wrapping an object.
func (s Site) ActivityURL(guid string) string {
	return s.MessageURL(guid) + "/activity"
}

// HashtagURL returns the hashtag page for tag.
func (s Site) HashtagURL(tag string) string {
	return s.Base() + "/hashtag/" + url.PathEscape(tag)
}

// TagCollectionURL is the id of the collection served at HashtagURL.
func (s Site) TagCollectionURL(tag string) string {
	return s.Base() + "/tags/" + url.PathEscape(tag)
}

// ImageURL returns a static image path.
func (s Site) ImageURL(name string) string {
	return s.Base() + "/images/" + name
}

// InboxURL returns the shared inbox.
func (s Site) InboxURL() string {
	return s.Base() + "/inbox"
}

// AcceptURL returns the id for an Accept sent by the operating account.
func (s Site) AcceptURL(guid string) string {
	return s.ActorURL() + "/accept/" + guid
}

// Handle returns @name@domain.
func (s Site) Handle(name string) string {
	return "@" + name + "@" + s.Domain
}

// GUIDFromID extracts the GUID from a message or activity id such as
// https://host/m/<guid>/activity. It returns "" when no segment remains.
func GUIDFromID(id string) string {
	id = strings.TrimSuffix(id, "/activity")
	id = strings.TrimRight(id, "/")
	if i := strings.LastIndexByte(id, '/'); i >= 0 {
		id = id[i+1:]
	}
	return id
}
