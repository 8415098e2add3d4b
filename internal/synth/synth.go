// Package synth turns corpus templates into concrete ActivityPub
// activities ready to sign and deliver.
//
// A synthesized message gets a fresh GUID, an id of
// https://<domain>/m/<guid>/activity and the operating account as actor.
// Tags and attachments are rewritten to point at resources this instance
// serves, custom emoji are minted as their own dereferenceable objects, and
// every remaining placeholder is resolved by path.
package synth

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"

	"github.com/roach88/apfuzz/internal/activity"
	"github.com/roach88/apfuzz/internal/placeholder"
)

// Fixed mock values written into synthesized documents.
const (
	MockUser       = "someUser"
	MockHashtag    = "cats"
	MockEmojiName  = ":test_emoji:"
	MockImage      = "cat.jpg"
	MockEmojiImage = "emoji.png"

	// ReplyTargetGUID is the message every templated inReplyTo points at.
	ReplyTargetGUID = "cf098bd74f6d9472c5bc6ebf0f18525a"

	// ArticleContent replaces the content of hashtagged Articles.
	ArticleContent = "<p>This is example article content.</p>" +
		"<p>This is example article content.</p>" +
		"<p>This is example article content.</p>" +
		"<p>This is example article content.</p>" +
		"<p>This is example article content.</p>"
)

var imageAttachmentTypes = map[string]bool{"Document": true, "Image": true, "Emoji": true}

// Minter mints dereferenceable sub-objects.
type Minter interface {
	Mint(ctx context.Context, object map[string]any, accountURL string) (string, error)
}

// Request is one synthesis call.
type Request struct {
	Template []byte
	// Note labels <string> values. Empty or "null" selects the fallback label.
	Note     string
	Software string
	// AnnounceToCreate rewrites an Announce to a Create. An Announce that is
	// kept stays attributed to the operating account.
	AnnounceToCreate bool
}

// Result is a synthesized message.
type Result struct {
	GUID string
	Type string
	JSON []byte // indented
}

// Synthesizer produces messages for one Site.
type Synthesizer struct {
	site   activity.Site
	minter Minter
	guids  activity.GUIDGenerator
	clock  activity.Clock
	rng    placeholder.Rand
	logger *slog.Logger
}

// Option configures a Synthesizer.
type Option func(*Synthesizer)

// WithGUIDs sets the GUID source.
func WithGUIDs(g activity.GUIDGenerator) Option {
	return func(s *Synthesizer) { s.guids = g }
}

// WithClock sets the clock used for <date-time> and emoji timestamps.
func WithClock(c activity.Clock) Option {
	return func(s *Synthesizer) { s.clock = c }
}

// WithRand sets the source for <boolean> and <integer>.
func WithRand(r placeholder.Rand) Option {
	return func(s *Synthesizer) { s.rng = r }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Synthesizer) { s.logger = l }
}

type globalRand struct{}

func (globalRand) IntN(n int) int { return rand.IntN(n) }

// New creates a Synthesizer that mints nested objects through minter.
func New(site activity.Site, minter Minter, opts ...Option) *Synthesizer {
	s := &Synthesizer{
		site:   site,
		minter: minter,
		guids:  activity.RandomGUIDs{},
		clock:  activity.SystemClock{},
		rng:    globalRand{},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "synth")
	return s
}

// Rules returns the <uri> rule table for a message with the given GUID.
// Paths without a rule get the message's own object URL.
func (s *Synthesizer) Rules(guid string) *placeholder.RuleTable {
	actor := s.site.ActorURL()
	return placeholder.NewRuleTable(s.site.MessageURL(guid),
		placeholder.Rule{Pattern: "id", Value: s.site.ActivityURL(guid)},
		placeholder.Rule{Pattern: "actor", Value: actor},
		placeholder.Rule{Pattern: "actor.id", Value: actor},
		placeholder.Rule{Pattern: "object.attributedTo", Value: actor},
		placeholder.Rule{Pattern: "object.attributedTo.id", Value: actor},
		placeholder.Rule{Pattern: "object.inReplyTo", Value: s.site.MessageURL(ReplyTargetGUID)},
		placeholder.Rule{Pattern: "object.tag.icon.url", Value: s.site.ImageURL(MockEmojiImage)},
		placeholder.Rule{Pattern: "object.tag.*.icon.url", Value: s.site.ImageURL(MockEmojiImage)},
	)
}

// Synthesize builds one concrete message from req.Template. Malformed
// templates fail with placeholder.ErrParse; minting failures abort the call.
func (s *Synthesizer) Synthesize(ctx context.Context, req Request) (Result, error) {
	doc, err := placeholder.ParseObject(req.Template)
	if err != nil {
		return Result{}, fmt.Errorf("parse template: %w", err)
	}

	guid := s.guids.Generate()
	now := s.clock.Now()
	sub := placeholder.NewSubstituter(s.Rules(guid), Label(req.Note, doc, req.Software), now, s.rng)
	actor := s.site.ActorURL()

	doc["id"] = s.site.ActivityURL(guid)
	bindActor(doc, "actor", actor)

	if req.AnnounceToCreate && doc["type"] == "Announce" {
		doc["type"] = "Create"
	}

	if obj, ok := doc["object"].(map[string]any); ok {
		if err := s.rewriteObject(ctx, obj, sub, now.UTC().Format(placeholder.TimeFormat)); err != nil {
			return Result{}, err
		}
	}

	out, err := placeholder.MarshalPretty(sub.Apply(doc))
	if err != nil {
		return Result{}, fmt.Errorf("encode message %s: %w", guid, err)
	}

	typ, _ := doc["type"].(string)
	s.logger.Debug("synthesized message", "guid", guid, "type", typ, "software", req.Software)
	return Result{GUID: guid, Type: typ, JSON: out}, nil
}

// bindActor points an actor-valued field at the operating account. String
// values are replaced; embedded actor objects get their id replaced.
func bindActor(m map[string]any, key, actor string) {
	switch v := m[key].(type) {
	case map[string]any:
		v["id"] = actor
	default:
		m[key] = actor
	}
}

func present(v any, ok bool) bool {
	return ok && v != nil && v != ""
}

func (s *Synthesizer) rewriteObject(ctx context.Context, obj map[string]any, sub *placeholder.Substituter, now string) error {
	if v, ok := obj["attributedTo"]; present(v, ok) {
		bindActor(obj, "attributedTo", s.site.ActorURL())
	}

	content, hasContent := obj["content"]
	hasContent = present(content, hasContent)
	if hasContent {
		obj["content"] = string(placeholder.String)
	}
	appendContent := func(text string) {
		if hasContent {
			obj["content"] = obj["content"].(string) + text
		}
	}

	hashtagged := false
	if tags, ok := EntriesOf(obj["tag"]); ok {
		var mintErr error
		tags.Each(placeholder.ParsePath("object.tag"), func(tag map[string]any, p placeholder.Path) {
			if mintErr != nil {
				return
			}
			switch typeOf(tag) {
			case "Mention":
				tag["name"] = s.site.Handle(MockUser)
				tag["href"] = s.site.AccountURL(MockUser)
				appendContent(fmt.Sprintf("\ncheck this out, <a href=\"%s\">@%s</a>", s.site.AccountURL(MockUser), MockUser))
			case "Hashtag":
				hashtagged = true
				tag["name"] = "#" + MockHashtag
				tag["href"] = s.site.HashtagURL(MockHashtag)
				appendContent(fmt.Sprintf("I love <a href=\"%s\">#%s</a>", s.site.HashtagURL(MockHashtag), MockHashtag))
			case "Emoji":
				tag["name"] = MockEmojiName
				if icon, ok := tag["icon"].(map[string]any); ok {
					icon["url"] = s.site.ImageURL(MockEmojiImage)
					icon["mediaType"] = "image/png"
					tag["updated"] = now
				}
				sub.ApplyAt(tag, p)
				id, err := s.minter.Mint(ctx, tag, s.site.ActorURL())
				if err != nil {
					mintErr = fmt.Errorf("mint emoji at %s: %w", p, err)
					return
				}
				tag["id"] = id
				appendContent(" " + MockEmojiName + " ")
			}
		})
		if mintErr != nil {
			return mintErr
		}
	}

	if hashtagged && obj["type"] == "Article" {
		obj["content"] = ArticleContent
	}

	if attachments, ok := EntriesOf(obj["attachment"]); ok {
		attachments.Each(placeholder.ParsePath("object.attachment"), func(a map[string]any, _ placeholder.Path) {
			if u, ok := a["url"]; imageAttachmentTypes[typeOf(a)] && present(u, ok) {
				a["url"] = s.site.ImageURL(MockImage)
				a["mediaType"] = "image/jpeg"
			}
		})
	}

	if obj["inReplyTo"] == string(placeholder.URI) {
		obj["inReplyTo"] = s.site.MessageURL(ReplyTargetGUID)
	}

	if v, ok := obj["contentMap"]; present(v, ok) {
		obj["contentMap"] = map[string]any{
			"und": string(placeholder.String),
			"de":  string(placeholder.String),
		}
	}

	if v, ok := obj["conversation"]; present(v, ok) {
		obj["conversation"] = string(placeholder.String)
	}

	return nil
}
