package validation

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/veraison/go-cose"

	"github.com/cloudx-io/assetauction/enclaveapi"
)

// coseSign1Tag is the one-byte encoding of CBOR tag 18 (COSE_Sign1).
const coseSign1Tag = 0xd2

// VerifyCOSESignature verifies the signature of an NSM attestation with the
// key in its leaf certificate.
func VerifyCOSESignature(coseBytes enclaveapi.COSEBytes, certB64 string) error {
	cert, err := decodeCertificate(certB64)
	if err != nil {
		return err
	}

	// NSM returns untagged COSE_Sign1: [protected, unprotected, payload, signature]
	raw := []byte(coseBytes)
	if len(raw) > 0 && raw[0] == coseSign1Tag {
		raw = raw[1:]
	}
	var coseArray []any
	if err := cbor.Unmarshal(raw, &coseArray); err != nil {
		return fmt.Errorf("parse COSE array: %w", err)
	}

	if len(coseArray) != 4 {
		return fmt.Errorf("invalid COSE_Sign1 structure: expected 4 elements, got %d", len(coseArray))
	}

	protectedBytes, ok := coseArray[0].([]byte)
	if !ok {
		return fmt.Errorf("invalid protected headers")
	}

	payload, ok := coseArray[2].([]byte)
	if !ok {
		return fmt.Errorf("invalid payload")
	}

	signature, ok := coseArray[3].([]byte)
	if !ok {
		return fmt.Errorf("invalid signature")
	}

	ecdsaKey, ok := cert.PublicKey.(*ecdsa.PublicKey)
	if !ok {
		return fmt.Errorf("certificate public key is not ECDSA")
	}
	alg, err := algorithmFor(ecdsaKey)
	if err != nil {
		return err
	}

	// Sig_structure for COSE_Sign1: ["Signature1", protected, external_aad, payload]
	sigStructureBytes, err := cbor.Marshal([]any{
		"Signature1",
		protectedBytes,
		[]byte{}, // empty external_aad
		payload,
	})
	if err != nil {
		return fmt.Errorf("marshal Sig_structure: %w", err)
	}

	verifier, err := cose.NewVerifier(alg, ecdsaKey)
	if err != nil {
		return fmt.Errorf("create verifier: %w", err)
	}

	if err := verifier.Verify(sigStructureBytes, signature); err != nil {
		return fmt.Errorf("COSE signature verification failed: %w", err)
	}

	return nil
}

// algorithmFor maps a certificate key to its COSE algorithm. AWS Nitro signs
// with ES384.
func algorithmFor(key *ecdsa.PublicKey) (cose.Algorithm, error) {
	switch key.Curve {
	case elliptic.P384():
		return cose.AlgorithmES384, nil
	case elliptic.P256():
		return cose.AlgorithmES256, nil
	case elliptic.P521():
		return cose.AlgorithmES512, nil
	default:
		return 0, fmt.Errorf("unsupported certificate curve %s", key.Curve.Params().Name)
	}
}
