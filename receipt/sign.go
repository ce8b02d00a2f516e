package receipt

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"fmt"
	"io"

	"github.com/veraison/go-cose"

	"github.com/cloudx-io/assetauction/enclaveapi"
)

// Signer signs receipts with an ECDSA P-256 key.
type Signer struct {
	signer cose.Signer
	keyID  []byte
	rand   io.Reader
}

// NewSigner wraps key. The key must be on P-256.
func NewSigner(key *ecdsa.PrivateKey) (*Signer, error) {
	if key == nil || key.Curve != elliptic.P256() {
		return nil, fmt.Errorf("receipt signing key must be ECDSA P-256")
	}
	signer, err := cose.NewSigner(cose.AlgorithmES256, key)
	if err != nil {
		return nil, fmt.Errorf("create COSE signer: %w", err)
	}
	kid, err := KeyID(&key.PublicKey)
	if err != nil {
		return nil, err
	}
	return &Signer{signer: signer, keyID: kid, rand: rand.Reader}, nil
}

// Sign encodes r and returns the tagged COSE_Sign1 message.
func (s *Signer) Sign(r *SettlementReceipt) (enclaveapi.COSEBytes, error) {
	payload, err := r.marshal()
	if err != nil {
		return nil, fmt.Errorf("encode receipt payload: %w", err)
	}

	msg := &cose.Sign1Message{
		Headers: cose.Headers{
			Protected: cose.ProtectedHeader{
				cose.HeaderLabelAlgorithm: cose.AlgorithmES256,
			},
			Unprotected: cose.UnprotectedHeader{
				cose.HeaderLabelKeyID: s.keyID,
			},
		},
		Payload: payload,
	}
	if err := msg.Sign(s.rand, nil, s.signer); err != nil {
		return nil, fmt.Errorf("sign receipt: %w", err)
	}

	out, err := msg.MarshalCBOR()
	if err != nil {
		return nil, fmt.Errorf("encode COSE_Sign1: %w", err)
	}
	return enclaveapi.COSEBytes(out), nil
}

// Verify checks the signature on a receipt message against pub and the
// receipt's digest against its fields.
func Verify(message enclaveapi.COSEBytes, pub *ecdsa.PublicKey) (*SettlementReceipt, error) {
	r, err := VerifySignature(message, pub)
	if err != nil {
		return nil, err
	}
	if err := r.CheckDigest(); err != nil {
		return nil, err
	}
	return r, nil
}

// VerifySignature checks only the COSE signature and decodes the payload.
func VerifySignature(message enclaveapi.COSEBytes, pub *ecdsa.PublicKey) (*SettlementReceipt, error) {
	var msg cose.Sign1Message
	if err := msg.UnmarshalCBOR(message); err != nil {
		return nil, fmt.Errorf("parse COSE_Sign1: %w", err)
	}

	verifier, err := cose.NewVerifier(cose.AlgorithmES256, pub)
	if err != nil {
		return nil, fmt.Errorf("create verifier: %w", err)
	}
	if err := msg.Verify(nil, verifier); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	return unmarshal(msg.Payload)
}
