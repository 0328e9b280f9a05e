package auctioncbor

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"

	"github.com/cloudx-io/auctiontee/core"
)

// canonicalEncMode applies shortlex (shortest-key-first, then lexical)
// map-key ordering and the narrowest int/float width that round-trips the
// value — fxamacker/cbor's CanonicalEncOptions (RFC 7049 canonical,
// length-first key order) plus ShortestFloat16 implement both of those
// directly, so C2's canonicalisation rules need no bespoke width-selection
// code.
var canonicalEncMode = mustEncMode()

func mustEncMode() cbor.EncMode {
	opts := cbor.CanonicalEncOptions()
	opts.ShortestFloat = cbor.ShortestFloat16
	mode, err := opts.EncMode()
	if err != nil {
		panic(fmt.Sprintf("auctioncbor: invalid canonical enc options: %v", err))
	}
	return mode
}

// EncodeAuctionResult canonically CBOR-encodes an AuctionResult using the
// map shape from spec.md §4.2.
func EncodeAuctionResult(r *core.AuctionResult) ([]byte, error) {
	return canonicalEncMode.Marshal(toWire(r))
}

// DecodeAuctionResult reverses EncodeAuctionResult; used by client-side
// round-trip tests, not by the servers themselves (they only ever encode an
// AuctionResult).
func DecodeAuctionResult(data []byte) (*core.AuctionResult, error) {
	var w auctionResultWire
	if err := cbor.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("decode auction result: %w", err)
	}
	return fromWire(&w), nil
}

type protectedAuctionInputWire struct {
	GenerationID         string            `cbor:"generationId"`
	PublisherName        string            `cbor:"publisherName"`
	EnableDebugReporting bool              `cbor:"enableDebugReporting"`
	BuyerInput           map[string][]byte `cbor:"buyerInput"`
	ConsentedDebugToken  string            `cbor:"consentedDebugToken,omitempty"`
	IsConsented          bool              `cbor:"isConsented,omitempty"`
}

// EncodeProtectedAuctionInput canonically CBOR-encodes a ProtectedAuctionInput.
// BuyerInputCiphertext is carried through as-is (already gzip-compressed
// CBOR per buyer, per spec.md §4.2).
func EncodeProtectedAuctionInput(in *core.ProtectedAuctionInput) ([]byte, error) {
	w := protectedAuctionInputWire{
		GenerationID:         in.GenerationID,
		PublisherName:        in.PublisherName,
		EnableDebugReporting: in.EnableDebugReporting,
		BuyerInput:           in.BuyerInputCiphertext,
	}
	if in.ConsentedDebugConfig != nil {
		w.ConsentedDebugToken = in.ConsentedDebugConfig.Token
		w.IsConsented = in.ConsentedDebugConfig.IsConsented
	}
	return canonicalEncMode.Marshal(w)
}

// DecodeProtectedAuctionInput decodes data field-by-field so a type
// mismatch on one field (e.g. generation_id encoded as a byte string
// instead of text string) is recorded on acc and decoding continues for
// every other field, per spec.md §4.2 / §7's non-fail-fast accumulator
// contract (scenario S5).
func DecodeProtectedAuctionInput(data []byte, acc *Accumulator) *core.ProtectedAuctionInput {
	var raw map[string]cbor.RawMessage
	if err := cbor.Unmarshal(data, &raw); err != nil {
		acc.Add(ClientVisible, 400, "root", "malformed CBOR input: "+err.Error())
		return nil
	}

	out := &core.ProtectedAuctionInput{}

	if v, ok := raw["generationId"]; ok {
		var s string
		if err := cbor.Unmarshal(v, &s); err != nil {
			if acc.TypeMismatch("generation_id", "string", "other") {
				return out
			}
		} else if s == "" {
			acc.Add(ClientVisible, 400, "generation_id", "generation_id must not be empty")
		} else {
			out.GenerationID = s
		}
	} else {
		acc.Add(ClientVisible, 400, "generation_id", "missing required field generation_id")
	}

	if v, ok := raw["publisherName"]; ok {
		var s string
		if err := cbor.Unmarshal(v, &s); err != nil {
			if acc.TypeMismatch("publisher_name", "string", "other") {
				return out
			}
		} else if s == "" {
			acc.Add(ClientVisible, 400, "publisher_name", "publisher_name must not be empty")
		} else {
			out.PublisherName = s
		}
	} else {
		acc.Add(ClientVisible, 400, "publisher_name", "missing required field publisher_name")
	}

	if v, ok := raw["enableDebugReporting"]; ok {
		var b bool
		if err := cbor.Unmarshal(v, &b); err != nil {
			if acc.TypeMismatch("enable_debug_reporting", "bool", "other") {
				return out
			}
		} else {
			out.EnableDebugReporting = b
		}
	}

	if v, ok := raw["buyerInput"]; ok {
		var m map[string][]byte
		if err := cbor.Unmarshal(v, &m); err != nil {
			if acc.TypeMismatch("buyer_input", "map[string]bytes", "other") {
				return out
			}
		} else {
			out.BuyerInputCiphertext = m
		}
	} else {
		acc.Add(ClientVisible, 400, "buyer_input", "missing required field buyer_input")
	}

	if v, ok := raw["consentedDebugToken"]; ok {
		var s string
		if err := cbor.Unmarshal(v, &s); err == nil && s != "" {
			var consented bool
			if cv, ok := raw["isConsented"]; ok {
				_ = cbor.Unmarshal(cv, &consented)
			}
			out.ConsentedDebugConfig = &core.ConsentedDebugConfig{Token: s, IsConsented: consented}
		}
	}

	return out
}

// DecodeBuyerInput gzip-decompresses and CBOR-decodes one buyer's
// compressed BuyerInput blob. Decompression failure for one buyer never
// aborts the others (spec.md §4.2) — the caller just skips this buyer.
func DecodeBuyerInput(compressed []byte) (*core.BuyerInput, error) {
	gr, err := gzip.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, fmt.Errorf("gunzip buyer input: %w", err)
	}
	defer gr.Close()

	raw, err := io.ReadAll(gr)
	if err != nil {
		return nil, fmt.Errorf("gunzip buyer input: %w", err)
	}

	var bi core.BuyerInput
	if err := cbor.Unmarshal(raw, &bi); err != nil {
		return nil, fmt.Errorf("decode buyer input: %w", err)
	}
	return &bi, nil
}

// EncodeBuyerInput CBOR-encodes then gzip-compresses a BuyerInput, the
// inverse of DecodeBuyerInput — used by client-side test fixtures and the
// round-trip property test.
func EncodeBuyerInput(bi *core.BuyerInput) ([]byte, error) {
	raw, err := canonicalEncMode.Marshal(bi)
	if err != nil {
		return nil, fmt.Errorf("encode buyer input: %w", err)
	}

	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	if _, err := gw.Write(raw); err != nil {
		return nil, fmt.Errorf("gzip buyer input: %w", err)
	}
	if err := gw.Close(); err != nil {
		return nil, fmt.Errorf("gzip buyer input: %w", err)
	}
	return buf.Bytes(), nil
}
