package grpctransport

import (
	"encoding/json"
	"fmt"

	"github.com/cloudx-io/auctiontee/envelope"
)

// WireRequest is the on-the-wire shape of every C1-enveloped RPC named in
// spec.md §6: {key_id, request_ciphertext}. BFE.GetBids, Bidding.GenerateBids,
// and Auction.ScoreAds each take this; SFE.SelectAd carries the same two
// fields directly on its own Raw request type instead, since decrypt/encrypt
// there is the orchestrator's own state machine rather than a transport
// concern.
type WireRequest struct {
	KeyID      envelope.KeyID
	Ciphertext []byte
}

// WireResponse is the {response_ciphertext} half.
type WireResponse struct {
	Ciphertext []byte
}

// sealWireRequest JSON-marshals req and seals it for pub, matching spec.md
// §4.7 step 1's "Decrypt request (C1)" in reverse for the caller side. The
// returned RequestContext carries the response-direction key schedule the
// caller needs to decrypt the eventual reply.
func sealWireRequest(pub *envelope.PublicKey, req any) (*WireRequest, *envelope.RequestContext, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, nil, fmt.Errorf("grpctransport: encode request payload: %w", err)
	}
	ciphertext, reqCtx, err := envelope.EncodeRequest(pub, payload, envelope.CompressionNone)
	if err != nil {
		return nil, nil, fmt.Errorf("grpctransport: seal request: %w", err)
	}
	return &WireRequest{KeyID: pub.ID, Ciphertext: ciphertext}, reqCtx, nil
}

// openWireResponse decrypts resp under reqCtx and JSON-decodes it into out.
func openWireResponse(reqCtx *envelope.RequestContext, resp *WireResponse, out any) error {
	plaintext, err := envelope.DecodeResponse(reqCtx, resp.Ciphertext)
	if err != nil {
		return fmt.Errorf("grpctransport: decrypt response: %w", err)
	}
	if err := json.Unmarshal(plaintext, out); err != nil {
		return fmt.Errorf("grpctransport: decode response payload: %w", err)
	}
	return nil
}

// openWireRequest decrypts req against cache and JSON-decodes it into out,
// returning the RequestContext the response leg seals under.
func openWireRequest(cache *envelope.Cache, req *WireRequest, out any) (*envelope.RequestContext, error) {
	plaintext, reqCtx, err := envelope.DecodeRequest(cache, req.Ciphertext)
	if err != nil {
		return nil, fmt.Errorf("grpctransport: decrypt request: %w", err)
	}
	if err := json.Unmarshal(plaintext, out); err != nil {
		return nil, fmt.Errorf("grpctransport: decode request payload: %w", err)
	}
	return reqCtx, nil
}

// sealWireResponse JSON-encodes resp and seals it under reqCtx.
func sealWireResponse(reqCtx *envelope.RequestContext, resp any) (*WireResponse, error) {
	payload, err := json.Marshal(resp)
	if err != nil {
		return nil, fmt.Errorf("grpctransport: encode response payload: %w", err)
	}
	ciphertext, err := envelope.EncodeResponse(reqCtx, payload, envelope.CompressionNone)
	if err != nil {
		return nil, fmt.Errorf("grpctransport: seal response: %w", err)
	}
	return &WireResponse{Ciphertext: ciphertext}, nil
}
