package envelope

import "errors"

// The four envelope failure modes from spec.md §4.1. All surface to clients
// as INVALID_ARGUMENT with these fixed strings; none reveal anything about
// key material.
var (
	ErrUnknownKeyID          = errors.New("envelope: unknown key id")
	ErrAeadFailure           = errors.New("envelope: aead failure")
	ErrMalformedFraming      = errors.New("envelope: malformed framing")
	ErrUnsupportedCompression = errors.New("envelope: unsupported compression")
)
