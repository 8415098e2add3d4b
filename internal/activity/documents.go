package activity

// JSON-LD contexts.
const (
	ContextActivityStreams = "https://www.w3.org/ns/activitystreams"
	ContextSecurity        = "https://w3id.org/security/v1"
	PublicAudience         = ContextActivityStreams + "#Public"
)

// Media types.
const (
	MediaTypeActivityJSON = "application/activity+json"
	MediaTypeLDJSON       = `application/ld+json; profile="https://www.w3.org/ns/activitystreams"`
)

// ActorInfo is the presentational part of an actor document.
type ActorInfo struct {
	DisplayName string
	Description string
	Avatar      string
}

// Actor is a Person document with an RSA public key.
type Actor struct {
	Context           []string  `json:"@context"`
	ID                string    `json:"id"`
	Type              string    `json:"type"`
	PreferredUsername string    `json:"preferredUsername"`
	Name              string    `json:"name"`
	Summary           string    `json:"summary"`
	Icon              *Image    `json:"icon,omitempty"`
	Inbox             string    `json:"inbox"`
	Outbox            string    `json:"outbox"`
	Followers         string    `json:"followers"`
	Following         string    `json:"following"`
	Endpoints         Endpoints `json:"endpoints"`
	PublicKey         PublicKey `json:"publicKey"`
}

// Image is an icon reference.
type Image struct {
	Type string `json:"type"`
	URL  string `json:"url"`
}

// Endpoints lists the actor's shared inbox.
type Endpoints struct {
	SharedInbox string `json:"sharedInbox"`
}

// PublicKey publishes the key used to verify the actor's signatures.
type PublicKey struct {
	ID           string `json:"id"`
	Owner        string `json:"owner"`
	PublicKeyPem string `json:"publicKeyPem"`
}

// Actor builds the actor document for name.
func (s Site) Actor(name string, info ActorInfo, publicKeyPEM string) Actor {
	id := s.AccountURL(name)
	a := Actor{
		Context:           []string{ContextActivityStreams, ContextSecurity},
		ID:                id,
		Type:              "Person",
		PreferredUsername: name,
		Name:              info.DisplayName,
		Summary:           info.Description,
		Inbox:             s.InboxURL(),
		Outbox:            id + "/outbox",
		Followers:         id + "/followers",
		Following:         id + "/following",
		Endpoints:         Endpoints{SharedInbox: s.InboxURL()},
		PublicKey: PublicKey{
			ID:           id + "#main-key",
			Owner:        id,
			PublicKeyPem: publicKeyPEM,
		},
	}
	if info.Avatar != "" {
		a.Icon = &Image{Type: "Image", URL: info.Avatar}
	}
	return a
}

// MockActor builds the actor for an account created on first lookup.
func (s Site) MockActor(name, publicKeyPEM string) Actor {
	return s.Actor(name, ActorInfo{
		DisplayName: name,
		Description: "A mock user for testing purposes",
	}, publicKeyPEM)
}

// Webfinger is a JRD resource descriptor.
type Webfinger struct {
	Subject string `json:"subject"`
	Links   []Link `json:"links"`
}

// Link is a JRD or NodeInfo link.
type Link struct {
	Rel  string `json:"rel"`
	Type string `json:"type,omitempty"`
	Href string `json:"href"`
}

// Webfinger builds the descriptor resolving acct:name@domain.
func (s Site) Webfinger(name string) Webfinger {
	return Webfinger{
		Subject: "acct:" + name + "@" + s.Domain,
		Links: []Link{{
			Rel:  "self",
			Type: MediaTypeActivityJSON,
			Href: s.AccountURL(name),
		}},
	}
}

// NodeInfoSchema is the rel advertised for NodeInfo 2.0.
const NodeInfoSchema = "http://nodeinfo.diaspora.software/ns/schema/2.0"

// NodeInfoIndex is served at /.well-known/nodeinfo.
type NodeInfoIndex struct {
	Links []Link `json:"links"`
}

// NodeInfoIndex points at the NodeInfo 2.0 document.
func (s Site) NodeInfoIndex() NodeInfoIndex {
	return NodeInfoIndex{Links: []Link{{Rel: NodeInfoSchema, Href: s.Base() + "/nodeinfo/2.0"}}}
}

// NodeInfo is a NodeInfo 2.0 document.
type NodeInfo struct {
	Version           string         `json:"version"`
	Software          NodeSoftware   `json:"software"`
	Protocols         []string       `json:"protocols"`
	Services          NodeServices   `json:"services"`
	OpenRegistrations bool           `json:"openRegistrations"`
	Usage             NodeUsage      `json:"usage"`
	Metadata          map[string]any `json:"metadata"`
}

type NodeSoftware struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type NodeServices struct {
	Outbound []string `json:"outbound"`
	Inbound  []string `json:"inbound"`
}

type NodeUsage struct {
	Users         NodeUsers `json:"users"`
	LocalPosts    int       `json:"localPosts"`
	LocalComments int       `json:"localComments"`
}

type NodeUsers struct {
	Total          int `json:"total"`
	ActiveHalfyear int `json:"activeHalfyear"`
	ActiveMonth    int `json:"activeMonth"`
}

// Software identity reported through NodeInfo.
const (
	SoftwareName    = "activitypub-fuzzer"
	SoftwareVersion = "1.0.0"
)

// NewNodeInfo describes a single-user instance with no posts.
func NewNodeInfo() NodeInfo {
	return NodeInfo{
		Version:   "2.0",
		Software:  NodeSoftware{Name: SoftwareName, Version: SoftwareVersion},
		Protocols: []string{"activitypub"},
		Services:  NodeServices{Outbound: []string{}, Inbound: []string{}},
		Usage: NodeUsage{
			Users: NodeUsers{Total: 1, ActiveHalfyear: 1, ActiveMonth: 1},
		},
		Metadata: map[string]any{},
	}
}

// Follow builds a Follow from the operating account. An empty target
// follows the public collection.
func (s Site) Follow(guid, target string) map[string]any {
	if target == "" {
		target = PublicAudience
	}
	return map[string]any{
		"@context": ContextActivityStreams,
		"id":       s.MessageURL(guid),
		"type":     "Follow",
		"actor":    s.ActorURL(),
		"object":   target,
	}
}

// Accept builds an Accept of object from the operating account.
func (s Site) Accept(guid string, object any) map[string]any {
	return map[string]any{
		"@context": ContextActivityStreams,
		"id":       s.AcceptURL(guid),
		"type":     "Accept",
		"actor":    s.ActorURL(),
		"object":   object,
	}
}

// Create wraps an already-identified object in a Create activity with the
// given activity id.
func Create(activityID, actor string, object any) map[string]any {
	return map[string]any{
		"@context": ContextActivityStreams,
		"id":       activityID,
		"type":     "Create",
		"actor":    actor,
		"object":   object,
	}
}

// TagCollection is the empty OrderedCollection served for a hashtag.
func (s Site) TagCollection(tag string) map[string]any {
	return map[string]any{
		"@context": ContextActivityStreams,
		"id":       s.TagCollectionURL(tag),
		"type":     "OrderedCollection",
	}
}
