package grpctransport

import (
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// ServerOptions returns the grpc.ServerOption set every cmd/ entry point
// passes to grpc.NewServer: force the shared JSON codec for every method on
// this server, regardless of per-call negotiation.
func ServerOptions() []grpc.ServerOption {
	return []grpc.ServerOption{grpc.ForceServerCodec(Codec)}
}

// DialOptions returns the grpc.DialOption set every client stub in this
// package dials with. Transport security is out of scope (spec.md §1
// treats the TEE boundary, not TLS, as the trust boundary between
// services), so connections use plaintext transport credentials.
func DialOptions() []grpc.DialOption {
	return []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.ForceCodec(Codec)),
	}
}

// Dial opens a client connection to target using the shared codec and
// plaintext credentials.
func Dial(target string) (*grpc.ClientConn, error) {
	return grpc.NewClient(target, DialOptions()...)
}
