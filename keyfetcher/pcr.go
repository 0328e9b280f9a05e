package keyfetcher

import (
	"encoding/json"
	"fmt"
	"os"
)

// PCRs are the AWS Nitro Enclave Platform Configuration Registers embedded
// in every attestation document: PCR0 measures the enclave image file,
// PCR1 the kernel/initramfs, PCR2 the running application.
type PCRs struct {
	ImageFileHash   string `json:"0"`
	KernelHash      string `json:"1"`
	ApplicationHash string `json:"2"`
}

// PCRSet is one known-good measurement triple, tied to the commit that
// produced the enclave image, matching how key-coordinator operators
// publish an allowlist of images they trust with private key material.
type PCRSet struct {
	PCR0       string `json:"pcr0"`
	PCR1       string `json:"pcr1"`
	PCR2       string `json:"pcr2"`
	CommitHash string `json:"commit_hash"`
}

type pcrConfig struct {
	PCRSets []PCRSet `json:"pcr_sets"`
}

// LoadPCRSets reads the allowlist of known-good PCR measurements from a
// JSON file, in the shape written by the enclave image build pipeline.
func LoadPCRSets(path string) ([]PCRSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read PCR allowlist: %w", err)
	}
	var cfg pcrConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse PCR allowlist: %w", err)
	}
	if len(cfg.PCRSets) == 0 {
		return nil, fmt.Errorf("PCR allowlist is empty")
	}
	return cfg.PCRSets, nil
}

// ValidatePCRs reports whether pcrs matches any entry in known, and if so
// which index.
func ValidatePCRs(pcrs PCRs, known []PCRSet) (bool, int) {
	for i, k := range known {
		if pcrs.ImageFileHash == k.PCR0 && pcrs.KernelHash == k.PCR1 && pcrs.ApplicationHash == k.PCR2 {
			return true, i
		}
	}
	return false, -1
}
