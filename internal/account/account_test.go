package account

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/apfuzz/internal/activity"
	"github.com/roach88/apfuzz/internal/httpsig"
	"github.com/roach88/apfuzz/internal/store"
	"github.com/roach88/apfuzz/internal/testutil"
)

var site = activity.Site{Domain: "fuzz.example", Account: "fuzzer"}

func setup(t *testing.T) (*Provisioner, *store.Store, *atomic.Int32) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "fuzzer.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	calls := &atomic.Int32{}
	key := testutil.RSAKey(t)
	p := NewProvisioner(site, st, WithKeyGenerator(func(bits int) (*rsa.PrivateKey, error) {
		calls.Add(1)
		return key, nil
	}))
	return p, st, calls
}

func TestGetOrCreate(t *testing.T) {
	ctx := context.Background()
	p, _, calls := setup(t)

	a, err := p.GetOrCreate(ctx, "someUser")
	require.NoError(t, err)
	assert.Equal(t, "someUser", a.Name)

	var actor activity.Actor
	require.NoError(t, json.Unmarshal([]byte(a.Actor), &actor))
	assert.Equal(t, "https://fuzz.example/u/someUser", actor.ID)
	assert.Equal(t, "someUser", actor.Name)
	assert.Equal(t, "A mock user for testing purposes", actor.Summary)
	assert.Equal(t, a.PublicKey, actor.PublicKey.PublicKeyPem)
	assert.Nil(t, actor.Icon)

	var wf activity.Webfinger
	require.NoError(t, json.Unmarshal([]byte(a.Webfinger), &wf))
	assert.Equal(t, "acct:someUser@fuzz.example", wf.Subject)

	again, err := p.GetOrCreate(ctx, "someUser")
	require.NoError(t, err)
	assert.Equal(t, a, again)
	assert.Equal(t, int32(1), calls.Load())
}

func TestGetOrCreate_KeysRoundTrip(t *testing.T) {
	p, _, _ := setup(t)

	a, err := p.GetOrCreate(context.Background(), "someUser")
	require.NoError(t, err)

	priv, err := httpsig.ParsePrivateKey(a.PrivateKey)
	require.NoError(t, err)
	pub, err := httpsig.ParsePublicKey(a.PublicKey)
	require.NoError(t, err)
	assert.True(t, priv.PublicKey.Equal(pub))
}

func TestGetOrCreate_Concurrent(t *testing.T) {
	p, _, calls := setup(t)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := p.GetOrCreate(context.Background(), "racer")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), calls.Load())
}

func TestEnsureOperator(t *testing.T) {
	ctx := context.Background()
	p, st, _ := setup(t)

	info := activity.ActorInfo{
		DisplayName: "Fuzzer",
		Description: "An ActivityPub fuzzing tool",
		Avatar:      "https://fuzz.example/images/cat.png",
	}
	a, err := p.EnsureOperator(ctx, "fuzzer", info)
	require.NoError(t, err)

	var actor activity.Actor
	require.NoError(t, json.Unmarshal([]byte(a.Actor), &actor))
	assert.Equal(t, "Fuzzer", actor.Name)
	assert.Equal(t, "An ActivityPub fuzzing tool", actor.Summary)
	require.NotNil(t, actor.Icon)
	assert.Equal(t, info.Avatar, actor.Icon.URL)

	key, err := st.SigningKey(ctx)
	require.NoError(t, err)
	assert.Equal(t, a.PrivateKey, key)

	// A second call with different presentation keeps the stored account.
	again, err := p.EnsureOperator(ctx, "fuzzer", activity.ActorInfo{DisplayName: "Other"})
	require.NoError(t, err)
	assert.Equal(t, a.Actor, again.Actor)
}

func TestGetOrCreate_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("empty name", func(t *testing.T) {
		p, _, _ := setup(t)
		_, err := p.GetOrCreate(ctx, "")
		assert.Error(t, err)
	})

	t.Run("key generation fails", func(t *testing.T) {
		st, err := store.Open(filepath.Join(t.TempDir(), "fuzzer.db"))
		require.NoError(t, err)
		defer st.Close()

		boom := errors.New("entropy exhausted")
		p := NewProvisioner(site, st, WithKeyGenerator(func(int) (*rsa.PrivateKey, error) {
			return nil, boom
		}))
		_, err = p.GetOrCreate(ctx, "someUser")
		assert.ErrorIs(t, err, boom)

		_, err = st.GetAccount(ctx, "someUser")
		assert.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("store closed", func(t *testing.T) {
		p, st, _ := setup(t)
		require.NoError(t, st.Close())
		_, err := p.GetOrCreate(ctx, "someUser")
		assert.ErrorIs(t, err, store.ErrStoreUnavailable)
	})
}

func TestWithKeyBits(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "fuzzer.db"))
	require.NoError(t, err)
	defer st.Close()

	var got int
	key := testutil.RSAKey(t)
	p := NewProvisioner(site, st, WithKeyBits(2048), WithKeyGenerator(func(bits int) (*rsa.PrivateKey, error) {
		got = bits
		return key, nil
	}))
	_, err = p.GetOrCreate(context.Background(), "someUser")
	require.NoError(t, err)
	assert.Equal(t, 2048, got)

	assert.Equal(t, DefaultKeyBits, NewProvisioner(site, st, WithKeyBits(0)).bits)
}
