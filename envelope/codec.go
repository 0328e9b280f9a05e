// Package envelope implements C1: the hybrid-encryption request/response
// wire envelope every gRPC hop shares — HPKE-equivalent sealing, the
// version/compression/length frame, and power-of-two padding (spec.md §4.1).
package envelope

const frameVersion = 0

// EncodeRequest is the client-side helper used by every cross-service
// caller (P2): frame plaintext, pad it, then seal it for pub. The returned
// RequestContext carries the response-direction key schedule the caller
// needs to decrypt the eventual response via DecodeResponse.
func EncodeRequest(pub *PublicKey, plaintext []byte, compression uint8) ([]byte, *RequestContext, error) {
	framed, err := Frame(frameVersion, compression, plaintext)
	if err != nil {
		return nil, nil, err
	}
	return SealRequest(pub, Pad(framed))
}

// DecodeRequest is the server-side entry point: open the ciphertext against
// the key cache, then unframe/unpad the recovered cleartext. Returns the
// plaintext payload and a context for sealing the response.
func DecodeRequest(cache *Cache, ciphertext []byte) ([]byte, *RequestContext, error) {
	framed, ctx, err := Open(cache, ciphertext)
	if err != nil {
		return nil, nil, err
	}
	payload, _, _, err := Unframe(framed)
	if err != nil {
		return nil, nil, err
	}
	return payload, ctx, nil
}

// EncodeResponse frames, pads, and seals plaintext for the response
// direction of ctx. Every encrypted response produced by this repo goes
// through here so the power-of-two padding invariant (P3) always holds.
func EncodeResponse(ctx *RequestContext, plaintext []byte, compression uint8) ([]byte, error) {
	framed, err := Frame(frameVersion, compression, plaintext)
	if err != nil {
		return nil, err
	}
	return ctx.SealResponse(Pad(framed))
}

// DecodeResponse is the client-side counterpart used by round-trip tests.
func DecodeResponse(ctx *RequestContext, ciphertext []byte) ([]byte, error) {
	framed, err := OpenResponse(ctx, ciphertext)
	if err != nil {
		return nil, err
	}
	payload, _, _, err := Unframe(framed)
	if err != nil {
		return nil, err
	}
	return payload, nil
}
