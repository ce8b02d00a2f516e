package enclaveapi

import (
	"bytes"
	"compress/gzip"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/cloudx-io/assetauction/enclaveapi/parsing"
)

// COSEBytes is a raw COSE_Sign1 message: an NSM attestation document or a
// signed settlement receipt.
type COSEBytes []byte

// COSEBase64 is standard base64 of COSEBytes, used in JSON responses.
type COSEBase64 string

// COSEURLBase64 is unpadded URL-safe base64 of COSEBytes.
type COSEURLBase64 string

// COSEGzip is gzip-compressed COSEBytes in unpadded URL-safe base64, for
// embedding in query strings.
type COSEGzip string

// EncodeBase64 encodes the message for JSON transport.
func (c COSEBytes) EncodeBase64() COSEBase64 {
	return COSEBase64(base64.StdEncoding.EncodeToString(c))
}

// EncodeURLSafe encodes the message for URLs.
func (c COSEBytes) EncodeURLSafe() COSEURLBase64 {
	return COSEURLBase64(base64.RawURLEncoding.EncodeToString(c))
}

// CompressGzip compresses the message and encodes it URL-safe. The gzip
// header carries no timestamp so equal inputs compress identically.
func (c COSEBytes) CompressGzip() (COSEGzip, error) {
	var buf bytes.Buffer
	zw, err := gzip.NewWriterLevel(&buf, gzip.BestCompression)
	if err != nil {
		return "", fmt.Errorf("create gzip writer: %w", err)
	}
	zw.ModTime = time.Time{}
	if _, err := zw.Write(c); err != nil {
		return "", fmt.Errorf("gzip COSE bytes: %w", err)
	}
	if err := zw.Close(); err != nil {
		return "", fmt.Errorf("close gzip writer: %w", err)
	}
	return COSEGzip(base64.RawURLEncoding.EncodeToString(buf.Bytes())), nil
}

// ParseAttestationDoc decodes an NSM attestation and returns the document
// together with its raw user data.
func (c COSEBytes) ParseAttestationDoc() (AttestationDoc, []byte, error) {
	raw, err := parsing.ParseNitroDocument(c)
	if err != nil {
		return AttestationDoc{}, nil, err
	}
	doc := AttestationDoc{
		ModuleID:        raw.ModuleID,
		Timestamp:       time.UnixMilli(int64(raw.Timestamp)).UTC(),
		DigestAlgorithm: raw.Digest,
		PCRs: PCRs{
			ImageFileHash:   parsing.FormatPCR(raw.PCRs[0]),
			KernelHash:      parsing.FormatPCR(raw.PCRs[1]),
			ApplicationHash: parsing.FormatPCR(raw.PCRs[2]),
			IAMRoleHash:     parsing.FormatPCR(raw.PCRs[3]),
			InstanceIDHash:  parsing.FormatPCR(raw.PCRs[4]),
			SigningCertHash: parsing.FormatPCR(raw.PCRs[8]),
		},
		Certificate: base64.StdEncoding.EncodeToString(raw.Certificate),
		CABundle:    parsing.EncodeCertificateBundle(raw.CABundle),
		PublicKey:   base64.StdEncoding.EncodeToString(raw.PublicKey),
		Nonce:       string(raw.Nonce),
	}
	return doc, raw.UserData, nil
}

// ParseKeyAttestation decodes a key attestation and its user data.
func (c COSEBytes) ParseKeyAttestation() (*KeyAttestationDoc, error) {
	doc, userData, err := c.ParseAttestationDoc()
	if err != nil {
		return nil, err
	}
	var keyUserData KeyAttestationUserData
	if len(userData) > 0 {
		if err := json.Unmarshal(userData, &keyUserData); err != nil {
			return nil, fmt.Errorf("parse user data: %w", err)
		}
	}
	return &KeyAttestationDoc{AttestationDoc: doc, UserData: &keyUserData}, nil
}

// String returns the encoded form.
func (b COSEBase64) String() string { return string(b) }

// Decode returns the raw message.
func (b COSEBase64) Decode() (COSEBytes, error) {
	raw, err := base64.StdEncoding.DecodeString(string(b))
	if err != nil {
		return nil, fmt.Errorf("decode base64 COSE: %w", err)
	}
	return COSEBytes(raw), nil
}

// CompressGzip decodes the message and recompresses it for URLs.
func (b COSEBase64) CompressGzip() (COSEGzip, error) {
	raw, err := b.Decode()
	if err != nil {
		return "", err
	}
	return raw.CompressGzip()
}

// String returns the encoded form.
func (u COSEURLBase64) String() string { return string(u) }

// Decode returns the raw message, accepting padded or unpadded input.
func (u COSEURLBase64) Decode() (COSEBytes, error) {
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(string(u), "="))
	if err != nil {
		return nil, fmt.Errorf("decode URL-safe COSE: %w", err)
	}
	return COSEBytes(raw), nil
}

// String returns the encoded form.
func (g COSEGzip) String() string { return string(g) }

// Decompress returns the raw message.
func (g COSEGzip) Decompress() (COSEBytes, error) {
	compressed, err := base64.RawURLEncoding.DecodeString(string(g))
	if err != nil {
		return nil, fmt.Errorf("decode compressed COSE: %w", err)
	}
	zr, err := gzip.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, fmt.Errorf("open gzip reader: %w", err)
	}
	defer zr.Close()
	raw, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("decompress COSE: %w", err)
	}
	return COSEBytes(raw), nil
}
