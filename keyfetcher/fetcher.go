package keyfetcher

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/golang/glog"
	"github.com/mdlayher/vsock"

	"github.com/cloudx-io/auctiontee/envelope"
)

// keyRequest is the wire shape sent to the coordinator over vsock: this
// enclave's own attestation, proving its identity, plus the ephemeral
// X25519 public key the coordinator should seal the granted private key to.
type keyRequest struct {
	Type            string          `json:"type"`
	KeyID           uint8           `json:"key_id"`
	EphemeralPubKey string          `json:"ephemeral_public_key"` // base64
	Attestation     AttestationCOSE `json:"attestation"`
}

// keyGrantResponse is the coordinator's reply: the requested private key,
// HPKE-sealed to EphemeralPubKey, plus the coordinator's own attestation so
// the requester can verify it before trusting the sealed material.
type keyGrantResponse struct {
	Type        string          `json:"type"`
	Message     string          `json:"message,omitempty"`
	SealedKey   string          `json:"sealed_key"` // base64, envelope.Seal output
	Attestation AttestationCOSE `json:"attestation"`
}

// VsockFetcher implements envelope.Fetcher by dialing a key coordinator
// running in a sibling Nitro Enclave over vsock, presenting this process's
// own attestation as proof of identity, and verifying the coordinator's
// attestation before trusting the private key material it releases.
// Grounded on the teacher's enclave/server.go vsock listener and
// enclaveapi's key_request/key_response message shapes, generalized to a
// client that dials out instead of a server that accepts.
type VsockFetcher struct {
	ContextID uint32
	Port      uint32
	Timeout   time.Duration

	Attester  Attester
	KnownPCRs []PCRSet
}

var _ envelope.Fetcher = (*VsockFetcher)(nil)

// FetchPrivateKey requests the private key for id from the coordinator,
// verifying the coordinator's attestation before returning it.
func (f *VsockFetcher) FetchPrivateKey(ctx context.Context, id envelope.KeyID) (*envelope.PrivateKey, error) {
	ephemeralPriv, ephemeralPub, err := envelope.GenerateKeyPair(id)
	if err != nil {
		return nil, fmt.Errorf("generate ephemeral keypair: %w", err)
	}

	nonce := make([]byte, 32)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generate attestation nonce: %w", err)
	}

	ephemeralPubBytes := ephemeralPub.Bytes()

	selfAttestation, err := f.Attester.Attest(ephemeralPubBytes, nonce)
	if err != nil {
		return nil, fmt.Errorf("self-attestation failed: %w", err)
	}

	req := keyRequest{
		Type:            "key_request",
		KeyID:           uint8(id),
		EphemeralPubKey: base64.StdEncoding.EncodeToString(ephemeralPubBytes),
		Attestation:     AttestationCOSE(base64.StdEncoding.EncodeToString(selfAttestation)),
	}

	resp, err := f.roundTrip(ctx, req)
	if err != nil {
		return nil, err
	}
	if resp.Type == "error" {
		return nil, fmt.Errorf("key coordinator rejected request: %s", resp.Message)
	}

	verdict, _, err := verifyAttestation(resp.Attestation, f.KnownPCRs)
	if err != nil {
		return nil, fmt.Errorf("parse coordinator attestation: %w", err)
	}
	if !verdict.Trusted() {
		return nil, fmt.Errorf("coordinator attestation not trusted: %v", verdict.Details)
	}

	sealed, err := base64.StdEncoding.DecodeString(resp.SealedKey)
	if err != nil {
		return nil, fmt.Errorf("decode sealed key: %w", err)
	}

	openCache, err := envelope.NewCache(nil)
	if err != nil {
		return nil, fmt.Errorf("build unsealing cache: %w", err)
	}
	if err := openCache.Put(ephemeralPriv); err != nil {
		return nil, fmt.Errorf("cache ephemeral key: %w", err)
	}

	raw, _, err := envelope.Open(openCache, sealed)
	if err != nil {
		return nil, fmt.Errorf("unseal granted key: %w", err)
	}

	priv, err := envelope.NewPrivateKeyFromBytes(id, raw)
	if err != nil {
		return nil, fmt.Errorf("parse granted key: %w", err)
	}

	glog.Infof("keyfetcher: fetched key %d from coordinator (pcr match, cert chain, signature all verified)", id)
	return priv, nil
}

func (f *VsockFetcher) roundTrip(ctx context.Context, req keyRequest) (*keyGrantResponse, error) {
	conn, err := vsock.Dial(f.ContextID, f.Port, nil)
	if err != nil {
		return nil, fmt.Errorf("dial key coordinator: %w", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(f.Timeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(deadline) {
		deadline = dl
	}
	_ = conn.SetDeadline(deadline)

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal key request: %w", err)
	}
	if _, err := conn.Write(body); err != nil {
		return nil, fmt.Errorf("send key request: %w", err)
	}
	_ = conn.CloseWrite()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, conn); err != nil {
		return nil, fmt.Errorf("read key response: %w", err)
	}

	var resp keyGrantResponse
	if err := json.Unmarshal(buf.Bytes(), &resp); err != nil {
		return nil, fmt.Errorf("decode key response: %w", err)
	}
	return &resp, nil
}
