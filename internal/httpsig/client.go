package httpsig

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	gofed "github.com/go-fed/httpsig"

	"github.com/roach88/apfuzz/internal/activity"
)

// ErrNoPrivateKey is returned before any network I/O when no signing key
// is stored.
var ErrNoPrivateKey = errors.New("no private key found")

// KeyFunc returns the PEM private key to sign with. An empty key with a nil
// error means no key is stored.
type KeyFunc func(ctx context.Context) (string, error)

// HTTPClient is the transport seam; *http.Client satisfies it.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client issues signed requests on behalf of one actor.
type Client struct {
	keyID  string
	keys   KeyFunc
	http   HTTPClient
	clock  activity.Clock
	logger *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the transport.
func WithHTTPClient(c HTTPClient) Option {
	return func(cl *Client) { cl.http = c }
}

// WithClock sets the clock for the date parameter.
func WithClock(c activity.Clock) Option {
	return func(cl *Client) { cl.clock = c }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(cl *Client) { cl.logger = l }
}

// NewClient creates a client signing as keyID with keys from keys. The
// default transport has no timeout and never retries.
func NewClient(keyID string, keys KeyFunc, opts ...Option) *Client {
	c := &Client{
		keyID:  keyID,
		keys:   keys,
		http:   &http.Client{},
		clock:  activity.SystemClock{},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "httpsig")
	return c
}

// Fetch signs and sends a request. Caller headers are sent as given except
// Host, Date, Digest and Signature, which the signature owns. Transport
// errors are returned unchanged.
func (c *Client) Fetch(ctx context.Context, method, rawURL string, body []byte, header http.Header) (*http.Response, error) {
	pemKey, err := c.keys(ctx)
	if err != nil {
		return nil, fmt.Errorf("load signing key: %w", err)
	}
	if pemKey == "" {
		return nil, fmt.Errorf("%w for %s", ErrNoPrivateKey, c.keyID)
	}
	key, err := ParsePrivateKey(pemKey)
	if err != nil {
		return nil, err
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse url %q: %w", rawURL, err)
	}

	if len(body) == 0 {
		body = nil
	}
	if u.Path == "" {
		u.Path = "/"
	}
	params := BuildParams(method, u, body, c.clock.Now())

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	for name, values := range header {
		for _, v := range values {
			req.Header.Add(name, v)
		}
	}
	req.Header.Del("Digest")
	req.Header.Del("Signature")

	host, _ := params.Get(ParamHost)
	date, _ := params.Get(ParamDate)
	req.Host = host
	req.Header.Set("Host", host)
	req.Header.Set("Date", date)

	// Signers carry per-request state.
	signer, _, err := gofed.NewSigner([]gofed.Algorithm{gofed.RSA_SHA256}, gofed.DigestSha256, params.Names(), gofed.Signature, 0)
	if err != nil {
		return nil, fmt.Errorf("new signer: %w", err)
	}
	if err := signer.SignRequest(key, c.keyID, req, body); err != nil {
		return nil, fmt.Errorf("sign request: %w", err)
	}

	c.logger.Debug("signed request", "method", method, "url", rawURL, "headers", params.Names())
	return c.http.Do(req)
}

// PostJSON posts body with JSON Accept and Content-Type headers.
func (c *Client) PostJSON(ctx context.Context, rawURL string, body []byte) (*http.Response, error) {
	return c.fetchJSON(ctx, http.MethodPost, rawURL, body)
}

// GetJSON fetches rawURL with a JSON Accept header.
func (c *Client) GetJSON(ctx context.Context, rawURL string) (*http.Response, error) {
	return c.fetchJSON(ctx, http.MethodGet, rawURL, nil)
}

func (c *Client) fetchJSON(ctx context.Context, method, rawURL string, body []byte) (*http.Response, error) {
	h := http.Header{}
	h.Set("Accept", "application/json")
	if len(body) > 0 {
		h.Set("Content-Type", "application/json")
	}
	return c.Fetch(ctx, method, rawURL, body, h)
}
