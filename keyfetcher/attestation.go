// Package keyfetcher implements the attestation-gated key-coordinator
// client named in spec.md §6 ("Key fetcher manager (consumed)"): it proves
// this process is running inside a genuine, unmodified enclave image before
// a remote key coordinator will release X25519 private key material, and
// verifies the coordinator's own attestation before trusting what comes
// back. Grounded on the teacher's enclave/proofs.go (NSM attestation
// generation) and validation/cose.go+pcr.go+cert.go (attestation
// verification), retargeted from RSA-2048 key delivery to the X25519 keys
// envelope.Cache expects.
package keyfetcher

import (
	"crypto/ecdsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/veraison/go-cose"
)

// AttestationDoc is the AWS Nitro attestation document, minus the fields
// this client doesn't consume (module ID, digest algorithm).
type AttestationDoc struct {
	Timestamp   time.Time `json:"timestamp"`
	PCRs        PCRs      `json:"pcrs"`
	Certificate string    `json:"certificate"`
	CABundle    []string  `json:"cabundle"`
	PublicKey   string    `json:"public_key"`
	Nonce       string    `json:"nonce"`
}

// KeyGrantUserData is the payload a key coordinator embeds in its
// attestation document when releasing a private key: the key material
// itself, sealed to the requester's attested public key, plus the KeyID it
// belongs to and a single-use grant token.
type KeyGrantUserData struct {
	KeyID        uint8  `json:"key_id"`
	SealedKey    string `json:"sealed_key"` // base64, HPKE-sealed to the requester
	GrantToken   string `json:"grant_token"`
	KeyAlgorithm string `json:"key_algorithm"` // "X25519"
}

// AttestationCOSE is raw COSE_Sign1 CBOR bytes, base64-encoded for JSON
// transport over the vsock request/response frames.
type AttestationCOSE string

// Decode base64-decodes the COSE bytes.
func (a AttestationCOSE) Decode() ([]byte, error) {
	return base64.StdEncoding.DecodeString(string(a))
}

// ParseAttestationDoc extracts the AttestationDoc and raw user_data bytes
// embedded in a COSE_Sign1 attestation document's payload.
func ParseAttestationDoc(coseBytes []byte) (AttestationDoc, []byte, error) {
	payload, err := extractCOSEPayload(coseBytes)
	if err != nil {
		return AttestationDoc{}, nil, err
	}

	var envelope struct {
		AttestationDoc
		UserData json.RawMessage `json:"user_data"`
	}
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return AttestationDoc{}, nil, fmt.Errorf("parse attestation payload: %w", err)
	}
	return envelope.AttestationDoc, envelope.UserData, nil
}

func extractCOSEPayload(coseBytes []byte) ([]byte, error) {
	var arr []any
	if err := cbor.Unmarshal(coseBytes, &arr); err != nil {
		return nil, fmt.Errorf("parse COSE array: %w", err)
	}
	if len(arr) != 4 {
		return nil, fmt.Errorf("invalid COSE_Sign1 structure: expected 4 elements, got %d", len(arr))
	}
	payload, ok := arr[2].([]byte)
	if !ok {
		return nil, fmt.Errorf("invalid payload in COSE structure")
	}
	return payload, nil
}

// verifyCOSESignature checks the ES384 COSE_Sign1 signature over coseBytes
// against cert's public key, AWS Nitro's signing scheme. cert must be the
// same leaf validateCertificateChain already verified up to the Nitro
// root — this never re-derives trust from certB64 on its own.
func verifyCOSESignature(coseBytes []byte, cert *x509.Certificate) error {
	var arr []any
	if err := cbor.Unmarshal(coseBytes, &arr); err != nil {
		return fmt.Errorf("parse COSE array: %w", err)
	}
	if len(arr) != 4 {
		return fmt.Errorf("invalid COSE_Sign1 structure: expected 4 elements, got %d", len(arr))
	}
	protectedBytes, ok := arr[0].([]byte)
	if !ok {
		return fmt.Errorf("invalid protected headers")
	}
	payload, ok := arr[2].([]byte)
	if !ok {
		return fmt.Errorf("invalid payload")
	}
	signature, ok := arr[3].([]byte)
	if !ok {
		return fmt.Errorf("invalid signature")
	}

	ecdsaKey, ok := cert.PublicKey.(*ecdsa.PublicKey)
	if !ok {
		return fmt.Errorf("certificate public key is not ECDSA")
	}

	sigStructure := []any{"Signature1", protectedBytes, []byte{}, payload}
	sigStructureBytes, err := cbor.Marshal(sigStructure)
	if err != nil {
		return fmt.Errorf("marshal Sig_structure: %w", err)
	}

	verifier, err := cose.NewVerifier(cose.AlgorithmES384, ecdsaKey)
	if err != nil {
		return fmt.Errorf("create verifier: %w", err)
	}
	if err := verifier.Verify(sigStructureBytes, signature); err != nil {
		return fmt.Errorf("COSE signature verification failed: %w", err)
	}
	return nil
}
