package keyfetcher

import (
	"crypto/x509"
	"fmt"
)

// VerifyResult records why a key grant's attestation was or wasn't trusted,
// mirroring the teacher's BaseValidationResult shape for operator-facing
// diagnostics.
type VerifyResult struct {
	PCRsValid        bool
	CertificateValid bool
	SignatureValid   bool
	Details          []string
}

// Trusted reports whether every check passed.
func (r *VerifyResult) Trusted() bool {
	return r.PCRsValid && r.CertificateValid && r.SignatureValid
}

// verifyAttestation checks PCR measurements, certificate chain, and COSE
// signature on a coordinator's attestation document, returning the parsed
// document's embedded user data alongside the verdict.
func verifyAttestation(coseB64 AttestationCOSE, knownPCRs []PCRSet) (*VerifyResult, []byte, error) {
	coseBytes, err := coseB64.Decode()
	if err != nil {
		return nil, nil, fmt.Errorf("decode COSE bytes: %w", err)
	}

	doc, userData, err := ParseAttestationDoc(coseBytes)
	if err != nil {
		return nil, nil, fmt.Errorf("parse attestation document: %w", err)
	}

	result := &VerifyResult{}

	pcrMatch, matchedSet := ValidatePCRs(doc.PCRs, knownPCRs)
	result.PCRsValid = pcrMatch
	if pcrMatch {
		result.Details = append(result.Details, fmt.Sprintf("PCR measurements match known set #%d (%s)", matchedSet, knownPCRs[matchedSet].CommitHash))
	} else {
		result.Details = append(result.Details, "PCR measurements do not match any known-good enclave image")
	}

	var leaf *x509.Certificate
	switch {
	case doc.Certificate == "":
		result.Details = append(result.Details, "missing certificate")
	case len(doc.CABundle) == 0:
		result.Details = append(result.Details, "missing CA bundle")
	default:
		cert, err := validateCertificateChain(doc.Certificate, doc.CABundle)
		if err != nil {
			result.Details = append(result.Details, fmt.Sprintf("certificate chain invalid: %v", err))
		} else {
			leaf = cert
			result.CertificateValid = true
			result.Details = append(result.Details, "certificate chain verified")
		}
	}

	if leaf == nil {
		result.Details = append(result.Details, "COSE signature not checked: no trusted certificate")
	} else if err := verifyCOSESignature(coseBytes, leaf); err != nil {
		result.Details = append(result.Details, fmt.Sprintf("COSE signature invalid: %v", err))
	} else {
		result.SignatureValid = true
		result.Details = append(result.Details, "COSE signature verified")
	}

	return result, userData, nil
}
