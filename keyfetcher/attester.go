package keyfetcher

import (
	"fmt"

	nsm "github.com/edgebitio/nitro-enclaves-sdk-go"
)

// Attester produces a COSE_Sign1 attestation document for this process,
// binding userData and nonce into the document the NSM hypervisor signs.
// Matches the teacher's EnclaveAttester seam so tests can substitute a fake
// in place of a live NSM device.
type Attester interface {
	Attest(userData, nonce []byte) ([]byte, error)
}

// nsmAttester is the production Attester, backed by the AWS Nitro Security
// Module device available inside a real enclave.
type nsmAttester struct{}

// NewNSMAttester returns an Attester backed by the local NSM device. Fails
// if this process isn't running inside a Nitro enclave.
func NewNSMAttester() (Attester, error) {
	if _, err := nsm.GetOrInitializeHandle(); err != nil {
		return nil, fmt.Errorf("NSM not available: %w", err)
	}
	return nsmAttester{}, nil
}

func (nsmAttester) Attest(userData, nonce []byte) ([]byte, error) {
	handle, err := nsm.GetOrInitializeHandle()
	if err != nil {
		return nil, fmt.Errorf("NSM not available: %w", err)
	}
	doc, err := handle.Attest(nsm.AttestationOptions{UserData: userData, Nonce: nonce})
	if err != nil {
		return nil, fmt.Errorf("NSM attestation failed: %w", err)
	}
	return doc, nil
}
