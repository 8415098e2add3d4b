// Package account provisions local actors: an RSA keypair plus the actor
// and webfinger documents served for them.
package account

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/roach88/apfuzz/internal/activity"
	"github.com/roach88/apfuzz/internal/placeholder"
	"github.com/roach88/apfuzz/internal/store"
)

// DefaultKeyBits is the modulus size of generated keys.
const DefaultKeyBits = 4096

// Store is the persistence Provisioner needs.
type Store interface {
	GetAccount(ctx context.Context, name string) (store.Account, error)
	UpsertAccount(ctx context.Context, a store.Account) error
}

// KeyGenerator returns a new RSA private key.
type KeyGenerator func(bits int) (*rsa.PrivateKey, error)

// Provisioner creates accounts on demand.
type Provisioner struct {
	site   activity.Site
	store  Store
	bits   int
	keygen KeyGenerator
	logger *slog.Logger

	// mu serializes creation so concurrent lookups of a new name
	// generate one keypair.
	mu sync.Mutex
}

// Option configures a Provisioner.
type Option func(*Provisioner)

// WithKeyBits sets the RSA modulus size.
func WithKeyBits(bits int) Option {
	return func(p *Provisioner) {
		if bits > 0 {
			p.bits = bits
		}
	}
}

// WithKeyGenerator replaces RSA key generation. Tests use it to reuse a
// single key.
func WithKeyGenerator(gen KeyGenerator) Option {
	return func(p *Provisioner) { p.keygen = gen }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Provisioner) { p.logger = logger }
}

// NewProvisioner returns a Provisioner for accounts on site.
func NewProvisioner(site activity.Site, st Store, opts ...Option) *Provisioner {
	p := &Provisioner{
		site:  site,
		store: st,
		bits:  DefaultKeyBits,
		keygen: func(bits int) (*rsa.PrivateKey, error) {
			return rsa.GenerateKey(rand.Reader, bits)
		},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.With("component", "account")
	return p
}

// GetOrCreate returns the account called name, creating a mock actor with
// a fresh keypair when none exists.
func (p *Provisioner) GetOrCreate(ctx context.Context, name string) (store.Account, error) {
	return p.ensure(ctx, name, func(pub string) activity.Actor {
		return p.site.MockActor(name, pub)
	})
}

// EnsureOperator creates the operating account with the configured
// presentation if it does not exist yet. An existing account is returned
// unchanged so its key survives restarts.
func (p *Provisioner) EnsureOperator(ctx context.Context, name string, info activity.ActorInfo) (store.Account, error) {
	return p.ensure(ctx, name, func(pub string) activity.Actor {
		return p.site.Actor(name, info, pub)
	})
}

func (p *Provisioner) ensure(ctx context.Context, name string, build func(pub string) activity.Actor) (store.Account, error) {
	if name == "" {
		return store.Account{}, errors.New("account name is empty")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	a, err := p.store.GetAccount(ctx, name)
	if err == nil {
		return a, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return store.Account{}, err
	}

	a, err = p.create(name, build)
	if err != nil {
		return store.Account{}, err
	}
	if err := p.store.UpsertAccount(ctx, a); err != nil {
		return store.Account{}, err
	}

	p.logger.Info("account created",
		"name", name,
		"actor", p.site.AccountURL(name),
		"webfinger", p.site.Handle(name))
	return a, nil
}

func (p *Provisioner) create(name string, build func(pub string) activity.Actor) (store.Account, error) {
	key, err := p.keygen(p.bits)
	if err != nil {
		return store.Account{}, fmt.Errorf("generate key: %w", err)
	}
	privPEM, pubPEM, err := EncodeKey(key)
	if err != nil {
		return store.Account{}, err
	}

	actorJSON, err := placeholder.Marshal(build(pubPEM))
	if err != nil {
		return store.Account{}, fmt.Errorf("encode actor: %w", err)
	}
	webfingerJSON, err := placeholder.Marshal(p.site.Webfinger(name))
	if err != nil {
		return store.Account{}, fmt.Errorf("encode webfinger: %w", err)
	}

	return store.Account{
		Name:       name,
		PrivateKey: privPEM,
		PublicKey:  pubPEM,
		Webfinger:  string(webfingerJSON),
		Actor:      string(actorJSON),
	}, nil
}

// EncodeKey returns key as PKCS8 private and SPKI public PEM.
func EncodeKey(key *rsa.PrivateKey) (privPEM, pubPEM string, err error) {
	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return "", "", fmt.Errorf("marshal private key: %w", err)
	}
	pub, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		return "", "", fmt.Errorf("marshal public key: %w", err)
	}
	privPEM = string(pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der}))
	pubPEM = string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pub}))
	return privPEM, pubPEM, nil
}
