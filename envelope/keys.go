package envelope

import (
	"context"
	"crypto/ecdh"
	"crypto/rand"
	"fmt"
	"sync"
	"time"

	"github.com/golang/glog"
	"github.com/google/tink/go/aead"
	"github.com/google/tink/go/keyset"
	"github.com/google/tink/go/tink"
)

// KeyID is the small integer every envelope ciphertext is tagged with,
// matching spec.md §4.1's `{key_id: small-int, ciphertext: bytes}` request
// shape.
type KeyID uint8

// PrivateKey is a KMS-fetched per-generation X25519 key used as the HPKE
// receiver key for one KeyID. Raw key bytes never leave this package.
type PrivateKey struct {
	ID  KeyID
	key *ecdh.PrivateKey
}

// PublicKey is the corresponding sender-side key, handed out by KeyRequest
// flows to bidders/sellers/clients that need to seal a request.
type PublicKey struct {
	ID  KeyID
	key *ecdh.PublicKey
}

// Bytes returns the raw X25519 point encoding of pub, for handing to a
// coordinator that needs to seal key material to this public key.
func (pub *PublicKey) Bytes() []byte {
	return pub.key.Bytes()
}

// GenerateKeyPair produces a fresh X25519 keypair for one KeyID. In
// production this instead comes from a cloud KMS fetch (out of scope per
// spec.md §1; modeled here by the Fetcher interface below).
func GenerateKeyPair(id KeyID) (*PrivateKey, *PublicKey, error) {
	priv, err := ecdh.X25519().GenerateKey(rand.Reader)
	if err != nil {
		return nil, nil, fmt.Errorf("generate x25519 keypair: %w", err)
	}
	return &PrivateKey{ID: id, key: priv}, &PublicKey{ID: id, key: priv.PublicKey()}, nil
}

// NewPrivateKeyFromBytes wraps raw X25519 scalar bytes fetched from an
// external key coordinator (see the keyfetcher package) into a PrivateKey
// for KeyID id.
func NewPrivateKeyFromBytes(id KeyID, raw []byte) (*PrivateKey, error) {
	priv, err := ecdh.X25519().NewPrivateKey(raw)
	if err != nil {
		return nil, fmt.Errorf("parse x25519 private key: %w", err)
	}
	return &PrivateKey{ID: id, key: priv}, nil
}

// NewPublicKeyFromBytes wraps raw X25519 point bytes into a PublicKey for
// KeyID id, used when a coordinator hands out a sender-side key.
func NewPublicKeyFromBytes(id KeyID, raw []byte) (*PublicKey, error) {
	pub, err := ecdh.X25519().NewPublicKey(raw)
	if err != nil {
		return nil, fmt.Errorf("parse x25519 public key: %w", err)
	}
	return &PublicKey{ID: id, key: pub}, nil
}

// Fetcher is the external collaborator named in spec.md §6: "Key fetcher
// manager (consumed). GetPrivateKey(key_id) → PrivateKey?". Concrete
// cloud-KMS fetching is out of scope; this interface is the seam.
type Fetcher interface {
	FetchPrivateKey(ctx context.Context, id KeyID) (*PrivateKey, error)
}

// sealedKeyStore wraps the private key material at rest with a tink AEAD
// primitive, mirroring google-privacy-sandbox-aggregation-service's
// envelope-encrypted-key pattern (KMSEnvelopeAEADKeyTemplate over a DEK) —
// here using a local AEAD in place of a live KMS client, since the concrete
// KMS call itself is explicitly out of scope. The KeyID is bound in as
// associated data so a sealed blob cannot be replayed under a different id.
type sealedKeyStore struct {
	aead tink.AEAD
}

func newSealedKeyStore() (*sealedKeyStore, error) {
	kh, err := keyset.NewHandle(aead.AES256GCMKeyTemplate())
	if err != nil {
		return nil, fmt.Errorf("generate key-encryption keyset: %w", err)
	}
	a, err := aead.New(kh)
	if err != nil {
		return nil, fmt.Errorf("build key-encryption aead: %w", err)
	}
	return &sealedKeyStore{aead: a}, nil
}

func (s *sealedKeyStore) seal(id KeyID, plaintext []byte) ([]byte, error) {
	return s.aead.Encrypt(plaintext, []byte{byte(id)})
}

func (s *sealedKeyStore) open(id KeyID, ciphertext []byte) ([]byte, error) {
	return s.aead.Decrypt(ciphertext, []byte{byte(id)})
}

// Cache is the process-wide singleton named in §5 "Shared resources": reads
// take a shared read lock (sync.RWMutex) and are not lock-free; keys are
// refreshed on the background tick StartRefreshLoop runs at the interval its
// caller passes, and never expire on their own. Keys are held sealed under
// store's AEAD and only decrypted back into an ecdh.PrivateKey inside Get.
type Cache struct {
	fetcher Fetcher
	store   *sealedKeyStore

	mu     sync.RWMutex
	sealed map[KeyID][]byte
}

// NewCache builds a key cache backed by fetcher, with no keys loaded yet.
// Call Refresh or StartRefreshLoop to populate it.
func NewCache(fetcher Fetcher) (*Cache, error) {
	store, err := newSealedKeyStore()
	if err != nil {
		return nil, err
	}
	return &Cache{
		fetcher: fetcher,
		store:   store,
		sealed:  make(map[KeyID][]byte),
	}, nil
}

// Get returns the cached private key for id, or ErrUnknownKeyID if the
// cache has never seen it.
func (c *Cache) Get(id KeyID) (*PrivateKey, error) {
	c.mu.RLock()
	sealed, ok := c.sealed[id]
	c.mu.RUnlock()
	if !ok {
		return nil, ErrUnknownKeyID
	}

	raw, err := c.store.open(id, sealed)
	if err != nil {
		return nil, fmt.Errorf("open cached key %d: %w", id, err)
	}
	return NewPrivateKeyFromBytes(id, raw)
}

// Put installs a key directly, bypassing the fetcher — used by tests and by
// Refresh. The scalar is sealed under store before it is held in memory.
func (c *Cache) Put(k *PrivateKey) error {
	sealed, err := c.store.seal(k.ID, k.key.Bytes())
	if err != nil {
		return fmt.Errorf("seal key %d for at-rest cache: %w", k.ID, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.sealed[k.ID] = sealed
	return nil
}

// Refresh fetches id through the configured Fetcher and installs the result.
func (c *Cache) Refresh(ctx context.Context, id KeyID) error {
	k, err := c.fetcher.FetchPrivateKey(ctx, id)
	if err != nil {
		return fmt.Errorf("refresh key %d: %w", id, err)
	}
	return c.Put(k)
}

// StartRefreshLoop refreshes every tracked key on the given interval until
// ctx is cancelled.
func (c *Cache) StartRefreshLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.mu.RLock()
				ids := make([]KeyID, 0, len(c.sealed))
				for id := range c.sealed {
					ids = append(ids, id)
				}
				c.mu.RUnlock()

				for _, id := range ids {
					if err := c.Refresh(ctx, id); err != nil {
						glog.Warningf("key cache refresh failed for key %d: %v", id, err)
					}
				}
			}
		}
	}()
}
