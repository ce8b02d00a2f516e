// Package receipt produces and verifies signed settlement receipts.
//
// A receipt is a CBOR-encoded SettlementReceipt carried as the payload of a
// tagged COSE_Sign1 message signed with ES256 (ECDSA P-256, SHA-256). The
// digest field binds the receipt to core.ComputeSettlementDigest so a
// verifier can detect payloads assembled from mismatched settlements.
package receipt

import (
	"errors"
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/shopspring/decimal"

	"github.com/cloudx-io/assetauction/core"
)

var (
	ErrNotSettled       = errors.New("auction has no settlement")
	ErrInvalidSignature = errors.New("invalid receipt signature")
	ErrDigestMismatch   = errors.New("receipt digest mismatch")
)

// SettlementReceipt records who bought which asset, from whom, for how much.
type SettlementReceipt struct {
	AuctionID     core.Hash       `cbor:"auction_id" json:"auction_id"`
	AssetID       core.Hash       `cbor:"asset_id" json:"asset_id"`
	PreviousOwner core.AccountID  `cbor:"previous_owner" json:"previous_owner"`
	Winner        core.AccountID  `cbor:"winner" json:"winner"`
	Price         decimal.Decimal `cbor:"price" json:"price"`
	SettledAt     time.Time       `cbor:"settled_at" json:"settled_at"`
	Digest        string          `cbor:"digest" json:"digest"`
}

// New builds the receipt for a closed auction. previousOwner is the seller
// reported by the AuctionSettled event.
func New(auction *core.Auction, previousOwner core.AccountID) (*SettlementReceipt, error) {
	if auction == nil || auction.Settlement == nil {
		return nil, ErrNotSettled
	}
	s := auction.Settlement
	return &SettlementReceipt{
		AuctionID:     auction.ID,
		AssetID:       auction.AssetID,
		PreviousOwner: previousOwner,
		Winner:        s.Winner,
		Price:         s.Price,
		SettledAt:     s.SettledAt,
		Digest:        core.ComputeSettlementDigest(auction.ID, auction.AssetID, previousOwner, *s),
	}, nil
}

// Record returns the settlement record the receipt describes.
func (r *SettlementReceipt) Record() core.SettlementRecord {
	return core.SettlementRecord{SettledAt: r.SettledAt, Winner: r.Winner, Price: r.Price}
}

// CheckDigest recomputes the digest from the receipt fields.
func (r *SettlementReceipt) CheckDigest() error {
	want := core.ComputeSettlementDigest(r.AuctionID, r.AssetID, r.PreviousOwner, r.Record())
	if r.Digest != want {
		return fmt.Errorf("%w: have %s, computed %s", ErrDigestMismatch, r.Digest, want)
	}
	return nil
}

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.EncOptions{
		Sort: cbor.SortCanonical,
		Time: cbor.TimeRFC3339Nano,
	}.EncMode()
	if err != nil {
		panic(fmt.Sprintf("receipt: build CBOR encoder: %v", err))
	}
	decMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("receipt: build CBOR decoder: %v", err))
	}
}

func (r *SettlementReceipt) marshal() ([]byte, error) {
	return encMode.Marshal(r)
}

func unmarshal(payload []byte) (*SettlementReceipt, error) {
	var r SettlementReceipt
	if err := decMode.Unmarshal(payload, &r); err != nil {
		return nil, fmt.Errorf("decode receipt payload: %w", err)
	}
	return &r, nil
}
