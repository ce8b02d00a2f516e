package validation

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/cloudx-io/assetauction/core"
	"github.com/cloudx-io/assetauction/enclaveapi"
	"github.com/cloudx-io/assetauction/receipt"
)

// ReceiptValidationInput contains everything needed to check a settlement
// receipt. Expected fields left zero are not checked.
type ReceiptValidationInput struct {
	Receipt      enclaveapi.COSEBase64 // receipt_cose_base64 from a close_auction response
	PublicKeyPEM string                // enclave key, from a validated key attestation

	AuctionID     core.Hash
	Winner        core.AccountID
	PreviousOwner core.AccountID
	Price         *decimal.Decimal
}

// ValidateReceipt verifies a settlement receipt and checks:
// - The signature was made by the enclave key
// - The digest matches the receipt fields
// - Auction, winner, seller and price match the caller's expectations
//
// Returns:
//   - ReceiptValidationResult with detailed results (call result.IsValid() to check overall status)
//   - error if validation cannot be performed (e.g., malformed key or encoding)
func ValidateReceipt(input *ReceiptValidationInput) (*ReceiptValidationResult, error) {
	pub, err := receipt.ParsePublicKeyPEM(input.PublicKeyPEM)
	if err != nil {
		return nil, fmt.Errorf("parse public key: %w", err)
	}
	coseBytes, err := input.Receipt.Decode()
	if err != nil {
		return nil, err
	}

	result := &ReceiptValidationResult{ValidationDetails: []string{}}

	r, err := receipt.VerifySignature(coseBytes, pub)
	if err != nil {
		if !errors.Is(err, receipt.ErrInvalidSignature) {
			return nil, err
		}
		result.ValidationDetails = append(result.ValidationDetails, fmt.Sprintf("Receipt signature verification failed: %v", err))
		return result, nil
	}
	result.SignatureValid = true
	result.Receipt = r
	result.ValidationDetails = append(result.ValidationDetails, "Receipt signature verified")

	if err := r.CheckDigest(); err != nil {
		result.ValidationDetails = append(result.ValidationDetails, fmt.Sprintf("Digest check failed: %v", err))
	} else {
		result.DigestValid = true
		result.ValidationDetails = append(result.ValidationDetails, fmt.Sprintf("Digest valid: %s", r.Digest))
	}

	result.ExpectationsValid = validateExpectations(input, r, result)
	return result, nil
}

func validateExpectations(input *ReceiptValidationInput, r *receipt.SettlementReceipt, result *ReceiptValidationResult) bool {
	valid := true
	mismatch := func(field string, want, have any) {
		valid = false
		result.ValidationDetails = append(result.ValidationDetails, fmt.Sprintf("%s mismatch: expected %v, receipt has %v", field, want, have))
	}

	if !input.AuctionID.IsZero() && input.AuctionID != r.AuctionID {
		mismatch("Auction", input.AuctionID, r.AuctionID)
	}
	if input.Winner != "" && input.Winner != r.Winner {
		mismatch("Winner", input.Winner, r.Winner)
	}
	if input.PreviousOwner != "" && input.PreviousOwner != r.PreviousOwner {
		mismatch("Previous owner", input.PreviousOwner, r.PreviousOwner)
	}
	if input.Price != nil && !input.Price.Equal(r.Price) {
		mismatch("Price", input.Price.String(), r.Price.String())
	}

	if valid {
		result.ValidationDetails = append(result.ValidationDetails,
			fmt.Sprintf("Settlement: %s sold asset %s to %s for %s", r.PreviousOwner, r.AssetID, r.Winner, r.Price))
	}
	return valid
}
