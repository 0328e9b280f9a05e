package envelope

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/ecdh"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

const (
	aeadKeyLen   = 32 // AES-256-GCM
	x25519EncLen = 32
)

// hkdfDerive expands an ECDH shared secret into an AEAD key and nonce for
// one direction (request or response), labeled by info so the two
// directions never reuse key material — this is the "response-side nonce
// derived from the request-side context" spec.md §4.1 calls for, built from
// stdlib primitives in place of a full RFC 9180 HPKE implementation.
func hkdfDerive(sharedSecret, salt []byte, info string) (key, nonce []byte, err error) {
	r := hkdf.New(sha256.New, sharedSecret, salt, []byte(info))
	out := make([]byte, aeadKeyLen+12)
	if _, err := io.ReadFull(r, out); err != nil {
		return nil, nil, fmt.Errorf("hkdf expand: %w", err)
	}
	return out[:aeadKeyLen], out[aeadKeyLen:], nil
}

func newAEAD(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("new aes cipher: %w", err)
	}
	return cipher.NewGCM(block)
}

// RequestContext is the server-side HPKE-equivalent receiver context
// retained across a request so the response can be sealed "with the same
// key schedule" (spec.md §4.1).
type RequestContext struct {
	keyID          KeyID
	responseKey    []byte
	responseNonce  []byte
}

// SealRequest is the client-side encrypt half of the envelope: generate an
// ephemeral X25519 keypair, derive a request key via ECDH+HKDF, and
// AES-256-GCM seal plaintext. The wire format is key_id(1) || enc(32) ||
// aead-ciphertext, matching spec.md's "single concatenated OHTTP-style byte
// string carrying key_id, enc, and AEAD output". It also derives and
// returns the response-direction key schedule under the same shared secret,
// so a caller in a different process than the one that opens the request
// can still decrypt the eventual response via DecodeResponse/OpenResponse.
func SealRequest(pub *PublicKey, plaintext []byte) ([]byte, *RequestContext, error) {
	ephemeral, err := ecdh.X25519().GenerateKey(rand.Reader)
	if err != nil {
		return nil, nil, fmt.Errorf("generate ephemeral key: %w", err)
	}

	sharedSecret, err := ephemeral.ECDH(pub.key)
	if err != nil {
		return nil, nil, fmt.Errorf("ecdh: %w", err)
	}

	enc := ephemeral.PublicKey().Bytes()
	key, nonce, err := hkdfDerive(sharedSecret, enc, "request")
	if err != nil {
		return nil, nil, err
	}

	aead, err := newAEAD(key)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrAeadFailure, err)
	}

	ct := aead.Seal(nil, nonce, plaintext, nil)

	out := make([]byte, 0, 1+len(enc)+len(ct))
	out = append(out, byte(pub.ID))
	out = append(out, enc...)
	out = append(out, ct...)

	respKey, respNonce, err := hkdfDerive(sharedSecret, enc, "response")
	if err != nil {
		return nil, nil, err
	}

	return out, &RequestContext{keyID: pub.ID, responseKey: respKey, responseNonce: respNonce}, nil
}

// Seal is SealRequest without the response-direction key schedule, for
// callers that never decrypt a reply under this envelope (e.g. sealing key
// material one-way in the keyfetcher handshake).
func Seal(pub *PublicKey, plaintext []byte) ([]byte, error) {
	ciphertext, _, err := SealRequest(pub, plaintext)
	return ciphertext, err
}

// Open is the server-side decrypt half: look up the private key by key_id,
// reconstruct the shared secret, and AES-256-GCM open the ciphertext.
// Returns the plaintext and a RequestContext retaining the response key
// schedule.
func Open(cache *Cache, ciphertext []byte) ([]byte, *RequestContext, error) {
	if len(ciphertext) < 1+x25519EncLen {
		return nil, nil, ErrMalformedFraming
	}

	keyID := KeyID(ciphertext[0])
	enc := ciphertext[1 : 1+x25519EncLen]
	ct := ciphertext[1+x25519EncLen:]

	priv, err := cache.Get(keyID)
	if err != nil {
		return nil, nil, ErrUnknownKeyID
	}

	encPub, err := ecdh.X25519().NewPublicKey(enc)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrAeadFailure, err)
	}

	sharedSecret, err := priv.key.ECDH(encPub)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrAeadFailure, err)
	}

	reqKey, reqNonce, err := hkdfDerive(sharedSecret, enc, "request")
	if err != nil {
		return nil, nil, err
	}

	aead, err := newAEAD(reqKey)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrAeadFailure, err)
	}

	plaintext, err := aead.Open(nil, reqNonce, ct, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrAeadFailure, err)
	}

	respKey, respNonce, err := hkdfDerive(sharedSecret, enc, "response")
	if err != nil {
		return nil, nil, err
	}

	return plaintext, &RequestContext{keyID: keyID, responseKey: respKey, responseNonce: respNonce}, nil
}

// SealResponse AEAD-seals plaintext using the response-direction key
// schedule derived during Open. The response wire format is just the
// ciphertext — key_id is implicit to the originating request.
func (c *RequestContext) SealResponse(plaintext []byte) ([]byte, error) {
	aead, err := newAEAD(c.responseKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAeadFailure, err)
	}
	return aead.Seal(nil, c.responseNonce, plaintext, nil), nil
}

// OpenResponse is the client-side counterpart, used by tests exercising the
// full round trip (P2).
func OpenResponse(c *RequestContext, ciphertext []byte) ([]byte, error) {
	aead, err := newAEAD(c.responseKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAeadFailure, err)
	}
	plaintext, err := aead.Open(nil, c.responseNonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAeadFailure, err)
	}
	return plaintext, nil
}
