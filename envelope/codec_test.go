package envelope

import (
	"context"
	"testing"

	"github.com/peterldowns/testy/check"
)

type staticFetcher struct {
	keys map[KeyID]*PrivateKey
}

func (f *staticFetcher) FetchPrivateKey(_ context.Context, id KeyID) (*PrivateKey, error) {
	k, ok := f.keys[id]
	if !ok {
		return nil, ErrUnknownKeyID
	}
	return k, nil
}

func newTestCache(t *testing.T, id KeyID) (*Cache, *PublicKey) {
	t.Helper()
	priv, pub, err := GenerateKeyPair(id)
	check.NoError(t, err)

	cache, err := NewCache(&staticFetcher{keys: map[KeyID]*PrivateKey{id: priv}})
	check.NoError(t, err)
	check.NoError(t, cache.Put(priv))

	return cache, pub
}

// P2: framing then padding then HPKE-seal then HPKE-open then unframe
// returns the exact plaintext, for both the request and response direction.
func TestEnvelopeRoundTrip(t *testing.T) {
	cache, pub := newTestCache(t, 7)

	plaintext := []byte(`{"generation_id":"abc","publisher_name":"pub.example"}`)

	ciphertext, _, err := EncodeRequest(pub, plaintext, CompressionNone)
	check.NoError(t, err)

	recovered, ctx, err := DecodeRequest(cache, ciphertext)
	check.NoError(t, err)
	check.Equal(t, string(plaintext), string(recovered))

	responsePlaintext := []byte(`{"isChaff":true}`)
	respCiphertext, err := EncodeResponse(ctx, responsePlaintext, CompressionNone)
	check.NoError(t, err)

	respRecovered, err := DecodeResponse(ctx, respCiphertext)
	check.NoError(t, err)
	check.Equal(t, string(responsePlaintext), string(respRecovered))
}

// A real client and the server that opens its request run in separate
// processes: the client must be able to decrypt the response using only
// the RequestContext EncodeRequest handed back to it, never the server's.
func TestEnvelopeRoundTrip_ClientOwnContext(t *testing.T) {
	cache, pub := newTestCache(t, 9)

	plaintext := []byte(`{"key_id":9}`)
	ciphertext, clientCtx, err := EncodeRequest(pub, plaintext, CompressionNone)
	check.NoError(t, err)

	recovered, serverCtx, err := DecodeRequest(cache, ciphertext)
	check.NoError(t, err)
	check.Equal(t, string(plaintext), string(recovered))

	responsePlaintext := []byte(`{"ciphertext":"..."}`)
	respCiphertext, err := EncodeResponse(serverCtx, responsePlaintext, CompressionNone)
	check.NoError(t, err)

	respRecovered, err := DecodeResponse(clientCtx, respCiphertext)
	check.NoError(t, err)
	check.Equal(t, string(responsePlaintext), string(respRecovered))
}

func TestEnvelopeRoundTrip_Gzip(t *testing.T) {
	cache, pub := newTestCache(t, 3)

	plaintext := []byte("the quick brown fox jumps over the lazy dog, repeated many times to compress well")

	ciphertext, _, err := EncodeRequest(pub, plaintext, CompressionGzip)
	check.NoError(t, err)

	recovered, _, err := DecodeRequest(cache, ciphertext)
	check.NoError(t, err)
	check.Equal(t, string(plaintext), string(recovered))
}

func TestEnvelopeUnknownKeyID(t *testing.T) {
	cache, pub := newTestCache(t, 1)

	ciphertext, _, err := EncodeRequest(pub, []byte("hi"), CompressionNone)
	check.NoError(t, err)

	// Flip the key_id byte to one the cache never loaded.
	ciphertext[0] = 99

	_, _, err = DecodeRequest(cache, ciphertext)
	check.Error(t, err)
}

func TestEnvelopeMalformedFraming(t *testing.T) {
	_, _, _, err := Unframe([]byte{0x00, 0x00})
	check.Error(t, err)
}

func TestEnvelopeUnsupportedCompression(t *testing.T) {
	_, err := Frame(0, 5, []byte("x"))
	check.Error(t, err)
}

// P3: encoded response size is max(256, 2^ceil(log2(n+framing_overhead))).
func TestPadMonotonePowerOfTwo(t *testing.T) {
	cases := []struct {
		inputLen int
		want     int
	}{
		{0, 256},
		{10, 256},
		{256, 256},
		{257, 512},
		{500, 512},
		{513, 1024},
	}

	for _, tc := range cases {
		padded := Pad(make([]byte, tc.inputLen))
		check.Equal(t, tc.want, len(padded))
	}
}
