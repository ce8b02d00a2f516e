package validation

import (
	"crypto/x509"

	"github.com/cloudx-io/assetauction/receipt"
)

// BaseValidationResult contains common validation results for all attestation types
type BaseValidationResult struct {
	PCRsValid         bool
	CertificateValid  bool
	SignatureValid    bool
	ValidationDetails []string
}

// KeyValidationResult contains validation results specific to key attestations
type KeyValidationResult struct {
	BaseValidationResult
	PublicKeyMatch bool
}

// IsValid returns true if all key validation checks passed
func (r *KeyValidationResult) IsValid() bool {
	return r.PCRsValid && r.CertificateValid && r.SignatureValid && r.PublicKeyMatch
}

// ReceiptValidationResult reports the checks on a settlement receipt.
type ReceiptValidationResult struct {
	SignatureValid    bool
	DigestValid       bool
	ExpectationsValid bool
	Receipt           *receipt.SettlementReceipt
	ValidationDetails []string
}

// IsValid returns true if the receipt is authentic, self-consistent and
// matches what the caller expected.
func (r *ReceiptValidationResult) IsValid() bool {
	return r.SignatureValid && r.DigestValid && r.ExpectationsValid
}

// PCRSet represents a known-good set of PCR measurements
type PCRSet struct {
	PCR0       string `json:"pcr0"`
	PCR1       string `json:"pcr1"`
	PCR2       string `json:"pcr2"`
	CommitHash string `json:"commit_hash"` // repo commit used to build the enclave image
}

// PCRConfig represents the PCR configuration file structure
type PCRConfig struct {
	PCRSets []PCRSet `json:"pcr_sets"`
}

// AttestationOptions selects the trust anchors for attestation checks.
type AttestationOptions struct {
	// PCRSets are the accepted enclave measurements. Required.
	PCRSets []PCRSet

	// Roots verifies the NSM certificate chain. Nil selects the AWS Nitro
	// root certificate.
	Roots *x509.CertPool
}
