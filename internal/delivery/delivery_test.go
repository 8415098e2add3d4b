package delivery

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/apfuzz/internal/activity"
	"github.com/roach88/apfuzz/internal/httpsig"
	"github.com/roach88/apfuzz/internal/placeholder"
	"github.com/roach88/apfuzz/internal/store"
	"github.com/roach88/apfuzz/internal/testutil"
)

var testSite = activity.Site{Domain: "example.com", Account: "fuzzer"}

type inbox struct {
	mu       sync.Mutex
	status   int
	received []map[string]any
	headers  []http.Header
}

func (in *inbox) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	var doc map[string]any
	_ = json.Unmarshal(body, &doc)

	in.mu.Lock()
	in.received = append(in.received, doc)
	in.headers = append(in.headers, r.Header.Clone())
	status := in.status
	in.mu.Unlock()

	if status == 0 {
		status = http.StatusAccepted
	}
	w.WriteHeader(status)
	_, _ = w.Write([]byte("inbox says hi"))
}

type recordingObserver struct {
	mu      sync.Mutex
	classes []string
}

func (o *recordingObserver) ObserveDelivery(class string, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.classes = append(o.classes, class)
}

type fixture struct {
	sender   *Sender
	store    *store.Store
	observer *recordingObserver
}

func newFixture(t *testing.T, key string) fixture {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "fuzzer.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	client := httpsig.NewClient(testSite.ActorURL(), func(context.Context) (string, error) { return key, nil })
	obs := &recordingObserver{}
	return fixture{sender: NewSender(testSite, client, st, obs, nil), store: st, observer: obs}
}

const testMessage = `{
  "id": "https://example.com/m/0123456789abcdef0123456789abcdef/activity",
  "type": "Create",
  "actor": "https://example.com/u/fuzzer",
  "object": {"id": "https://example.com/m/0123456789abcdef0123456789abcdef", "type": "Note", "content": "<p>hi</p>"}
}`

func TestSignAndSend_Success(t *testing.T) {
	privPEM, _ := testutil.RSAKeyPEM(t)
	f := newFixture(t, privPEM)
	in := &inbox{}
	srv := httptest.NewServer(in)
	defer srv.Close()

	guid, err := f.sender.SignAndSend(context.Background(), []byte(testMessage), srv.URL+"/inbox")
	require.NoError(t, err)
	assert.Equal(t, "0123456789abcdef0123456789abcdef", guid)

	require.Len(t, in.received, 1)
	assert.Equal(t, "Create", in.received[0]["type"])
	assert.Contains(t, in.headers[0].Get("Signature"), `keyId="https://example.com/u/fuzzer"`)
	assert.NotEmpty(t, in.headers[0].Get("Digest"))

	stored, err := f.store.GetMessage(context.Background(), guid)
	require.NoError(t, err)
	assert.JSONEq(t, testMessage, stored)
	assert.Contains(t, stored, "<p>hi</p>", "markup is stored unescaped")

	obj, err := f.store.GetMessageObject(context.Background(), guid)
	require.NoError(t, err)
	want, err := placeholder.ParseObject([]byte(testMessage))
	require.NoError(t, err)
	wantObj, err := placeholder.Marshal(want["object"])
	require.NoError(t, err)
	assert.JSONEq(t, string(wantObj), obj)

	deliveries, err := f.store.ListDeliveries(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, deliveries, 1)
	assert.Equal(t, http.StatusAccepted, deliveries[0].Status)
	assert.True(t, deliveries[0].OK())
	assert.Equal(t, []string{"2xx"}, f.observer.classes)
}

func TestSignAndSend_Non2xxIsDeliveryFailure(t *testing.T) {
	privPEM, _ := testutil.RSAKeyPEM(t)
	f := newFixture(t, privPEM)
	srv := httptest.NewServer(&inbox{status: http.StatusUnauthorized})
	defer srv.Close()

	_, err := f.sender.SignAndSend(context.Background(), []byte(testMessage), srv.URL+"/inbox")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDeliveryFailure))

	var derr *Error
	require.True(t, errors.As(err, &derr))
	assert.Equal(t, http.StatusUnauthorized, derr.Status)
	assert.Equal(t, "inbox says hi", derr.Body)

	_, err = f.store.GetMessage(context.Background(), "0123456789abcdef0123456789abcdef")
	assert.NoError(t, err, "message is stored even when the target rejects it")

	deliveries, err := f.store.ListDeliveries(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, deliveries, 1)
	assert.False(t, deliveries[0].OK())
	assert.Equal(t, []string{"4xx"}, f.observer.classes)
}

func TestSignAndSend_TransportFailure(t *testing.T) {
	privPEM, _ := testutil.RSAKeyPEM(t)
	f := newFixture(t, privPEM)
	srv := httptest.NewServer(&inbox{})
	url := srv.URL + "/inbox"
	srv.Close()

	_, err := f.sender.SignAndSend(context.Background(), []byte(testMessage), url)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDeliveryFailure))

	deliveries, err := f.store.ListDeliveries(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, deliveries, 1)
	assert.Zero(t, deliveries[0].Status)
	assert.NotEmpty(t, deliveries[0].Error)
	assert.Equal(t, []string{"error"}, f.observer.classes)
}

func TestSignAndSend_NoPrivateKey(t *testing.T) {
	f := newFixture(t, "")
	in := &inbox{}
	srv := httptest.NewServer(in)
	defer srv.Close()

	_, err := f.sender.SignAndSend(context.Background(), []byte(testMessage), srv.URL)
	require.Error(t, err)
	assert.True(t, errors.Is(err, httpsig.ErrNoPrivateKey))
	assert.False(t, errors.Is(err, ErrDeliveryFailure))
	assert.Empty(t, in.received)
}

func TestSignAndSend_RejectsBadInput(t *testing.T) {
	f := newFixture(t, "")

	_, err := f.sender.SignAndSend(context.Background(), []byte(testMessage), "")
	assert.True(t, errors.Is(err, ErrNoTarget))

	_, err = f.sender.SignAndSend(context.Background(), []byte(`{"id":`), "https://t/inbox")
	assert.True(t, errors.Is(err, placeholder.ErrParse))

	_, err = f.sender.SignAndSend(context.Background(), []byte(`{"type":"Note"}`), "https://t/inbox")
	assert.True(t, errors.Is(err, placeholder.ErrParse))
}

func TestAcceptFollow(t *testing.T) {
	privPEM, _ := testutil.RSAKeyPEM(t)
	f := newFixture(t, privPEM)

	in := &inbox{}
	mux := http.NewServeMux()
	mux.Handle("/inbox", in)
	var srv *httptest.Server
	mux.HandleFunc("/users/bob.json", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"inbox": srv.URL + "/inbox"})
	})
	srv = httptest.NewServer(mux)
	defer srv.Close()

	follow := map[string]any{
		"id":     "https://remote.example/follows/1",
		"type":   "Follow",
		"actor":  srv.URL + "/users/bob",
		"object": testSite.ActorURL(),
	}
	guid, err := f.sender.AcceptFollow(context.Background(), follow)
	require.NoError(t, err)
	assert.Len(t, guid, 32)

	require.Len(t, in.received, 1)
	accept := in.received[0]
	assert.Equal(t, "Accept", accept["type"])
	assert.Equal(t, testSite.AcceptURL(guid), accept["id"])
	assert.Equal(t, "https://remote.example/follows/1", accept["object"].(map[string]any)["id"])
}

func TestInboxOf_FallsBackToActorURL(t *testing.T) {
	privPEM, _ := testutil.RSAKeyPEM(t)
	f := newFixture(t, privPEM)

	mux := http.NewServeMux()
	mux.HandleFunc("/users/bob", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"inbox": "https://remote.example/users/bob/inbox"})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	inbox, err := f.sender.InboxOf(context.Background(), srv.URL+"/users/bob")
	require.NoError(t, err)
	assert.Equal(t, "https://remote.example/users/bob/inbox", inbox)

	_, err = f.sender.InboxOf(context.Background(), srv.URL+"/users/nobody")
	assert.Error(t, err)
}

func TestSendFollow(t *testing.T) {
	privPEM, _ := testutil.RSAKeyPEM(t)
	f := newFixture(t, privPEM)
	in := &inbox{}
	srv := httptest.NewServer(in)
	defer srv.Close()

	guid, err := f.sender.SendFollow(context.Background(), srv.URL+"/inbox", "")
	require.NoError(t, err)

	require.Len(t, in.received, 1)
	assert.Equal(t, "Follow", in.received[0]["type"])
	assert.Equal(t, activity.PublicAudience, in.received[0]["object"])
	assert.Equal(t, testSite.MessageURL(guid), in.received[0]["id"])
}

func TestTarget(t *testing.T) {
	target := NewTarget("")
	assert.Equal(t, "", target.Get())

	target.Set("https://target.example/inbox")
	assert.Equal(t, "https://target.example/inbox", target.Get())
}
