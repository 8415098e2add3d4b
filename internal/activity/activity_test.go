package activity

import (
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/apfuzz/internal/placeholder"
)

var testSite = Site{Domain: "example.com", Account: "fuzzer"}

const testPublicKey = "-----BEGIN PUBLIC KEY-----\nMIIBIjANBgkq\n-----END PUBLIC KEY-----\n"

func assertGolden(t *testing.T, name string, v any) {
	t.Helper()
	data, err := placeholder.MarshalPretty(v)
	require.NoError(t, err)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
}

func TestSiteURLs(t *testing.T) {
	assert.Equal(t, "https://example.com/u/fuzzer", testSite.ActorURL())
	assert.Equal(t, "https://example.com/m/abc", testSite.MessageURL("abc"))
	assert.Equal(t, "https://example.com/m/abc/activity", testSite.ActivityURL("abc"))
	assert.Equal(t, "https://example.com/hashtag/cats", testSite.HashtagURL("cats"))
	assert.Equal(t, "https://example.com/tags/cats", testSite.TagCollectionURL("cats"))
	assert.Equal(t, "https://example.com/images/cat.jpg", testSite.ImageURL("cat.jpg"))
	assert.Equal(t, "https://example.com/u/fuzzer/accept/abc", testSite.AcceptURL("abc"))
	assert.Equal(t, "@someUser@example.com", testSite.Handle("someUser"))
}

func TestGUIDFromID(t *testing.T) {
	tests := map[string]string{
		"https://example.com/m/abc/activity": "abc",
		"https://example.com/m/abc":          "abc",
		"https://example.com/m/abc/":         "abc",
		"abc":                                "abc",
		"":                                   "",
	}
	for in, want := range tests {
		assert.Equal(t, want, GUIDFromID(in), in)
	}
}

func TestNewGUID(t *testing.T) {
	a, b := NewGUID(), NewGUID()
	assert.Len(t, a, 32)
	assert.Regexp(t, `^[0-9a-f]{32}$`, a)
	assert.NotEqual(t, a, b)
}

func TestActorGolden(t *testing.T) {
	actor := testSite.Actor("fuzzer", ActorInfo{
		DisplayName: "Fuzzer",
		Description: "An ActivityPub fuzzing tool",
		Avatar:      "https://example.com/images/cat.png",
	}, testPublicKey)
	assertGolden(t, "actor", actor)
}

func TestMockActor(t *testing.T) {
	a := testSite.MockActor("someUser", testPublicKey)
	assert.Equal(t, "https://example.com/u/someUser", a.ID)
	assert.Equal(t, "someUser", a.Name)
	assert.Equal(t, "A mock user for testing purposes", a.Summary)
	assert.Nil(t, a.Icon)
	assert.Equal(t, "https://example.com/u/someUser#main-key", a.PublicKey.ID)
}

func TestNodeInfoGolden(t *testing.T) {
	assertGolden(t, "nodeinfo", NewNodeInfo())
}

func TestWebfinger(t *testing.T) {
	wf := testSite.Webfinger("fuzzer")
	assert.Equal(t, "acct:fuzzer@example.com", wf.Subject)
	require.Len(t, wf.Links, 1)
	assert.Equal(t, "self", wf.Links[0].Rel)
	assert.Equal(t, MediaTypeActivityJSON, wf.Links[0].Type)
	assert.Equal(t, "https://example.com/u/fuzzer", wf.Links[0].Href)
}

func TestFollowDefaultsToPublic(t *testing.T) {
	f := testSite.Follow("abc", "")
	assert.Equal(t, PublicAudience, f["object"])
	assert.Equal(t, "https://example.com/m/abc", f["id"])

	f = testSite.Follow("abc", "https://remote.example/users/bob")
	assert.Equal(t, "https://remote.example/users/bob", f["object"])
}

func TestAccept(t *testing.T) {
	follow := map[string]any{"type": "Follow", "actor": "https://remote.example/users/bob"}
	acc := testSite.Accept("abc", follow)
	assert.Equal(t, "Accept", acc["type"])
	assert.Equal(t, "https://example.com/u/fuzzer/accept/abc", acc["id"])
	assert.Equal(t, follow, acc["object"])
}
