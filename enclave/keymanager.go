package main

import (
	"crypto/ecdsa"
	"fmt"

	"github.com/cloudx-io/assetauction/enclaveapi"
	"github.com/cloudx-io/assetauction/receipt"
)

// KeyAlgorithm names the receipt signing key in key attestations.
const KeyAlgorithm = "ECDSA-P256"

// KeyPurpose is recorded in key attestations so verifiers can tell what the
// attested key is for.
const KeyPurpose = "settlement-receipts"

// KeyManager holds the enclave's receipt signing key. The private key never
// leaves the enclave.
type KeyManager struct {
	privateKey *ecdsa.PrivateKey
	PublicKey  *ecdsa.PublicKey
	signer     *receipt.Signer
}

// NewKeyManager creates a new KeyManager with a fresh P-256 key.
func NewKeyManager() (*KeyManager, error) {
	privateKey, err := receipt.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate key pair: %w", err)
	}
	signer, err := receipt.NewSigner(privateKey)
	if err != nil {
		return nil, err
	}

	return &KeyManager{
		privateKey: privateKey,
		PublicKey:  &privateKey.PublicKey,
		signer:     signer,
	}, nil
}

// PublicKeyPEM returns the public key in PEM format
func (km *KeyManager) PublicKeyPEM() (string, error) {
	return receipt.PublicKeyPEM(km.PublicKey)
}

// Signer returns the receipt signer backed by the private key.
func (km *KeyManager) Signer() *receipt.Signer {
	return km.signer
}

// HandleKeyRequest returns the public key together with an attestation that
// binds it to this enclave image.
func HandleKeyRequest(attester EnclaveAttester, keyManager *KeyManager) (*enclaveapi.KeyResponse, error) {
	publicKeyPEM, err := keyManager.PublicKeyPEM()
	if err != nil {
		return nil, fmt.Errorf("failed to export public key: %w", err)
	}

	attestationCOSE, err := GenerateKeyAttestation(attester, publicKeyPEM)
	if err != nil {
		return nil, fmt.Errorf("failed to generate key attestation: %w", err)
	}

	keyAttestation, err := attestationCOSE.ParseKeyAttestation()
	if err != nil {
		return nil, fmt.Errorf("failed to parse key attestation: %w", err)
	}

	return &enclaveapi.KeyResponse{
		Type:                  enclaveapi.ResponseType(enclaveapi.TypeKeyRequest),
		PublicKey:             publicKeyPEM,
		KeyAttestation:        keyAttestation,
		AttestationCOSEBase64: attestationCOSE.EncodeBase64(),
	}, nil
}
