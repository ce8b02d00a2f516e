package main

import (
	"regexp"
	"strings"
	"testing"

	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"
)

func checkHexPattern(t *testing.T, test string) {
	t.Helper()
	matched, err := regexp.MatchString(`^[a-f0-9]+$`, test)
	check.Nil(t, err)
	check.True(t, matched)
}

func TestGenerateSecureRandomBytes(t *testing.T) {
	bytes1, err1 := generateSecureRandomBytes(32)
	bytes2, err2 := generateSecureRandomBytes(32)

	check.NoError(t, err1)
	check.NoError(t, err2)
	check.Equal(t, 32, len(bytes1))
	check.Equal(t, 32, len(bytes2))

	// Randomness: should be different
	check.NotEqual(t, bytes1, bytes2)

	bytes8, err3 := generateSecureRandomBytes(8)
	check.NoError(t, err3)
	check.Equal(t, 8, len(bytes8))
}

func TestGenerateNonce(t *testing.T) {
	nonce1, err1 := generateNonce()
	check.NoError(t, err1)

	nonce2, err2 := generateNonce()
	check.NoError(t, err2)

	// Should be 32 bytes = 64 hex characters
	check.Equal(t, 64, len(nonce1))
	check.Equal(t, 64, len(nonce2))

	checkHexPattern(t, nonce1)
	checkHexPattern(t, nonce2)

	check.NotEqual(t, nonce1, nonce2)
}

func TestGenerateKeyAttestation_NilAttester(t *testing.T) {
	attestation, err := GenerateKeyAttestation(nil, "pem")

	check.Error(t, err)
	check.Nil(t, attestation)
	check.True(t, strings.Contains(err.Error(), "enclave attester is nil"))
}

func TestGenerateKeyAttestationWithMock(t *testing.T) {
	km, err := NewKeyManager()
	assert.NoError(t, err)
	publicKeyPEM, err := km.PublicKeyPEM()
	assert.NoError(t, err)
	mockEnclave := CreateMockEnclave(t)

	attestation, err := GenerateKeyAttestation(mockEnclave, publicKeyPEM)
	assert.NoError(t, err)

	// One NSM call with a fresh hex nonce.
	assert.Equal(t, 1, len(mockEnclave.Calls))
	nonce := string(mockEnclave.Calls[0].Nonce)
	check.Equal(t, 64, len(nonce))
	checkHexPattern(t, nonce)

	doc, err := attestation.ParseKeyAttestation()
	assert.NoError(t, err)
	check.Equal(t, nonce, doc.Nonce)
	check.Equal(t, publicKeyPEM, doc.UserData.PublicKey)
	check.Equal(t, KeyAlgorithm, doc.UserData.KeyAlgorithm)

	// Verify all PCRs are extracted
	check.NotEqual(t, "", doc.PCRs.ImageFileHash)
	check.NotEqual(t, "", doc.PCRs.KernelHash)
	check.NotEqual(t, "", doc.PCRs.ApplicationHash)
	check.NotEqual(t, "", doc.PCRs.IAMRoleHash)
	check.NotEqual(t, "", doc.PCRs.InstanceIDHash)

	// Verify attestation metadata
	check.NotEqual(t, "", doc.Certificate)
	check.Equal(t, 1, len(doc.CABundle))
	check.Equal(t, 2026, doc.Timestamp.Year())
}

func TestApplyEnvOverrides(t *testing.T) {
	cfg := testConfig(t)
	t.Setenv("ENCLAVE_MAX_WORKERS", "4")
	t.Setenv("ENCLAVE_VSOCK_PORT", "6000")

	assert.NoError(t, applyEnvOverrides(cfg))

	check.Equal(t, 4, cfg.Server.MaxWorkers)
	check.Equal(t, uint32(6000), cfg.Server.VsockPort)
}

func TestApplyEnvOverrides_Invalid(t *testing.T) {
	cfg := testConfig(t)
	t.Setenv("ENCLAVE_MAX_WORKERS", "many")

	err := applyEnvOverrides(cfg)

	check.Error(t, err)
	check.True(t, strings.Contains(err.Error(), "ENCLAVE_MAX_WORKERS"))
}
