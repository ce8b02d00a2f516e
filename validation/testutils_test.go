package validation

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/json"
	"math/big"
	"testing"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/peterldowns/testy/assert"
	"github.com/veraison/go-cose"

	"github.com/cloudx-io/assetauction/enclaveapi"
)

var attestedAt = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

var testPCRs = map[uint64][]byte{
	0: {0x01, 0x02},
	1: {0x03, 0x04},
	2: {0x05, 0x06},
}

var testPCRSet = PCRSet{PCR0: "0102", PCR1: "0304", PCR2: "0506", CommitHash: "abc123"}

// testCA is a throwaway P-384 root with one leaf, standing in for the
// AWS Nitro PKI.
type testCA struct {
	rootDER []byte
	leafDER []byte
	leafKey *ecdsa.PrivateKey
	roots   *x509.CertPool
}

func newTestCA(t *testing.T) *testCA {
	t.Helper()
	rootKey, err := ecdsa.GenerateKey(elliptic.P384(), rand.Reader)
	assert.NoError(t, err)
	rootTmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "test-nitro-root"},
		NotBefore:             attestedAt.AddDate(-1, 0, 0),
		NotAfter:              attestedAt.AddDate(5, 0, 0),
		IsCA:                  true,
		BasicConstraintsValid: true,
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageDigitalSignature,
	}
	rootDER, err := x509.CreateCertificate(rand.Reader, rootTmpl, rootTmpl, &rootKey.PublicKey, rootKey)
	assert.NoError(t, err)
	root, err := x509.ParseCertificate(rootDER)
	assert.NoError(t, err)

	leafKey, err := ecdsa.GenerateKey(elliptic.P384(), rand.Reader)
	assert.NoError(t, err)
	leafTmpl := &x509.Certificate{
		SerialNumber: big.NewInt(2),
		Subject:      pkix.Name{CommonName: "test-enclave"},
		NotBefore:    attestedAt.Add(-time.Hour),
		NotAfter:     attestedAt.Add(3 * time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
	}
	leafDER, err := x509.CreateCertificate(rand.Reader, leafTmpl, root, &leafKey.PublicKey, rootKey)
	assert.NoError(t, err)

	roots := x509.NewCertPool()
	roots.AddCert(root)
	return &testCA{rootDER: rootDER, leafDER: leafDER, leafKey: leafKey, roots: roots}
}

// attest builds an untagged, ES384-signed COSE_Sign1 attestation like the NSM
// returns, carrying userData.
func (ca *testCA) attest(t *testing.T, at time.Time, userData any) enclaveapi.COSEBytes {
	t.Helper()
	userDataBytes, err := json.Marshal(userData)
	assert.NoError(t, err)

	payload, err := cbor.Marshal(map[string]any{
		"module_id":   "i-test-enc",
		"digest":      "SHA384",
		"timestamp":   uint64(at.UnixMilli()),
		"pcrs":        testPCRs,
		"certificate": ca.leafDER,
		"cabundle":    [][]byte{ca.rootDER},
		"public_key":  []byte{},
		"user_data":   userDataBytes,
		"nonce":       []byte("nonce"),
	})
	assert.NoError(t, err)

	protected, err := cbor.Marshal(map[int]int{1: int(cose.AlgorithmES384)})
	assert.NoError(t, err)

	sigStructure, err := cbor.Marshal([]any{"Signature1", protected, []byte{}, payload})
	assert.NoError(t, err)
	signer, err := cose.NewSigner(cose.AlgorithmES384, ca.leafKey)
	assert.NoError(t, err)
	signature, err := signer.Sign(rand.Reader, sigStructure)
	assert.NoError(t, err)

	message, err := cbor.Marshal([]any{protected, map[any]any{}, payload, signature})
	assert.NoError(t, err)
	return enclaveapi.COSEBytes(message)
}

func (ca *testCA) options() AttestationOptions {
	return AttestationOptions{PCRSets: []PCRSet{testPCRSet}, Roots: ca.roots}
}
