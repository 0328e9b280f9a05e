package envelope

import (
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"fmt"
	"io"
)

// Compression algorithm tags for the 3-bit compression field in the frame
// header.
const (
	CompressionNone = 0
	CompressionGzip = 2
)

const frameHeaderLen = 1 + 4 // 1-byte header + 4-byte big-endian payload_length

// Frame wraps payload in the cleartext framing spec.md §4.1 describes:
// 1-byte header {2-bit version, 3-bit compression, 3-bit reserved} · 4-byte
// big-endian payload_length · payload_length bytes of (optionally
// compressed) payload. The caller pads the result separately (see Pad).
func Frame(version uint8, compression uint8, payload []byte) ([]byte, error) {
	body := payload
	if compression == CompressionGzip {
		var buf bytes.Buffer
		gw := gzip.NewWriter(&buf)
		if _, err := gw.Write(payload); err != nil {
			return nil, fmt.Errorf("gzip payload: %w", err)
		}
		if err := gw.Close(); err != nil {
			return nil, fmt.Errorf("close gzip writer: %w", err)
		}
		body = buf.Bytes()
	} else if compression != CompressionNone {
		return nil, ErrUnsupportedCompression
	}

	header := (version&0x3)<<6 | (compression&0x7)<<3

	out := make([]byte, frameHeaderLen+len(body))
	out[0] = header
	binary.BigEndian.PutUint32(out[1:5], uint32(len(body)))
	copy(out[5:], body)
	return out, nil
}

// Unframe reverses Frame, tolerating trailing padding bytes beyond
// payload_length (§4.1 "strip by reading payload_length and ignoring
// trailing bytes").
func Unframe(data []byte) (payload []byte, version uint8, compression uint8, err error) {
	if len(data) < frameHeaderLen {
		return nil, 0, 0, ErrMalformedFraming
	}

	header := data[0]
	version = (header >> 6) & 0x3
	compression = (header >> 3) & 0x7

	payloadLen := binary.BigEndian.Uint32(data[1:5])
	if frameHeaderLen+int(payloadLen) > len(data) {
		return nil, 0, 0, ErrMalformedFraming
	}

	body := data[frameHeaderLen : frameHeaderLen+int(payloadLen)]

	switch compression {
	case CompressionNone:
		payload = body
	case CompressionGzip:
		gr, gzErr := gzip.NewReader(bytes.NewReader(body))
		if gzErr != nil {
			return nil, 0, 0, fmt.Errorf("%w: %v", ErrMalformedFraming, gzErr)
		}
		defer gr.Close()
		payload, err = io.ReadAll(gr)
		if err != nil {
			return nil, 0, 0, fmt.Errorf("%w: %v", ErrMalformedFraming, err)
		}
	default:
		return nil, 0, 0, ErrUnsupportedCompression
	}

	return payload, version, compression, nil
}
