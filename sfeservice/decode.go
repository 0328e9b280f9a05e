package sfeservice

import (
	"fmt"

	"github.com/golang/glog"

	"github.com/cloudx-io/auctiontee/auctioncbor"
	"github.com/cloudx-io/auctiontee/core"
)

// decodeAuctionInput decodes the envelope's recovered cleartext payload into
// a ProtectedAuctionInput, per spec.md §4.8's "decode C2 (browser) or parse
// protobuf (app), distinguished by which of protected_auction_ciphertext /
// protected_audience_ciphertext was set."
//
// The app path's wire schema is the externally published protobuf IDL
// (spec.md §6: "implementers must reproduce field numbers bit-exactly
// against the published schema"); that IDL is out of this repo's scope
// (spec.md §1), so both client types are decoded through the same canonical
// CBOR codec here. A deployment that turns on ENABLE_PROTECTED_APP_SIGNALS
// swaps generated protobuf bindings into this one function without touching
// anything downstream — fan-out, collation, scoring, and encode all operate
// on the same core.ProtectedAuctionInput regardless of clientType.
func decodeAuctionInput(payload []byte, _ ClientType, acc *auctioncbor.Accumulator) *core.ProtectedAuctionInput {
	return auctioncbor.DecodeProtectedAuctionInput(payload, acc)
}

// decodeBuyerInputs gunzip+CBOR-decodes every buyer's compressed BuyerInput
// independently. A decompression or decode failure for one buyer is
// recorded on acc but never aborts the others (spec.md §4.8 "Decompress
// each buyer's compressed BuyerInput independently; errors are collected
// but do not abort"). A buyer whose decoded BuyerInput carries zero
// interest groups is dropped silently — it is not "usable" per spec.md
// §3's mandatory-field invariant, but its absence alone is not a defect
// worth surfacing to the client.
func decodeBuyerInputs(input *core.ProtectedAuctionInput, acc *auctioncbor.Accumulator) map[string]*core.BuyerInput {
	if input == nil {
		return nil
	}

	out := make(map[string]*core.BuyerInput, len(input.BuyerInputCiphertext))
	for origin, compressed := range input.BuyerInputCiphertext {
		bi, err := auctioncbor.DecodeBuyerInput(compressed)
		if err != nil {
			glog.Warningf("sfeservice: decode buyer input for %s: %v", origin, err)
			acc.Add(auctioncbor.ClientVisible, core.ClientSideErrorCode, "buyer_input."+origin,
				fmt.Sprintf("failed to decode buyer input for %s: %v", origin, err))
			continue
		}
		if len(bi.InterestGroups) == 0 {
			continue
		}
		out[origin] = bi
	}
	return out
}
