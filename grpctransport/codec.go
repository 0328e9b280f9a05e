// Package grpctransport wires the four unary services named in spec.md §6
// (SFE.SelectAd, BFE.GetBids, Bidding.GenerateBids, Auction.ScoreAds) onto
// google.golang.org/grpc without a generated .proto binding: message
// structs are the same core/*service Raw* types the reactors and
// orchestrators already exchange in-process, carried over the wire with a
// JSON codec instead of protobuf. No example repo in the pack ships a gRPC
// transport layer (see DESIGN.md), so this package's shape is original,
// grounded only in grpc's own ServiceDesc/Codec extension points.
package grpctransport

import (
	"encoding/json"

	"google.golang.org/grpc/encoding"
)

// jsonCodec marshals gRPC messages as JSON. Plain Go structs never
// implement proto.Message, so grpc's default codec can't carry them; this
// is the seam grpc.ForceServerCodec / grpc.ForceCodec expects.
type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

func (jsonCodec) Name() string { return "json" }

// Codec is the shared grpc codec every service and client in this repo
// uses in place of protobuf.
var Codec encoding.Codec = jsonCodec{}
