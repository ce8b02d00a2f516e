package validation

import (
	"fmt"
	"strings"

	"github.com/cloudx-io/assetauction/enclaveapi"
)

// ValidateKeyAttestation validates a TEE key attestation from COSE bytes
//
// Parameters:
//   - attestationCOSEBase64: Base64-encoded COSE_Sign1 bytes from KeyResponse.AttestationCOSEBase64
//   - expectedPublicKey: PEM-encoded public key to validate (from KeyResponse.PublicKey)
//   - opts: accepted PCR sets and certificate roots
//
// Returns:
//   - KeyValidationResult with detailed results (call result.IsValid() to check overall status)
//   - error if validation cannot be performed (e.g., malformed input, missing config)
func ValidateKeyAttestation(attestationCOSEBase64 enclaveapi.COSEBase64, expectedPublicKey string, opts AttestationOptions) (*KeyValidationResult, error) {
	coseBytes, err := attestationCOSEBase64.Decode()
	if err != nil {
		return nil, fmt.Errorf("decode COSE bytes: %w", err)
	}

	baseResult, err := validateCommonAttestation(coseBytes, opts)
	if err != nil {
		return nil, err
	}

	keyAttestation, err := coseBytes.ParseKeyAttestation()
	if err != nil {
		return nil, fmt.Errorf("failed to parse attestation from attestation_cose_base64: %w", err)
	}

	result := &KeyValidationResult{
		BaseValidationResult: *baseResult,
	}

	if keyAttestation.UserData == nil || keyAttestation.UserData.PublicKey == "" {
		result.ValidationDetails = append(result.ValidationDetails, "Public key missing from attestation")
		return result, nil
	}

	// Trim whitespace from both keys (handles trailing newlines from PEM encoding)
	providedKeyTrimmed := strings.TrimSpace(expectedPublicKey)
	attestedKeyTrimmed := strings.TrimSpace(keyAttestation.UserData.PublicKey)

	if providedKeyTrimmed == attestedKeyTrimmed {
		result.PublicKeyMatch = true
		result.ValidationDetails = append(result.ValidationDetails,
			fmt.Sprintf("Public key matches attestation (%s, purpose %q)", keyAttestation.UserData.KeyAlgorithm, keyAttestation.UserData.Purpose))
	} else {
		result.ValidationDetails = append(result.ValidationDetails, "Public key mismatch: provided key does not match attested key")
	}

	return result, nil
}
