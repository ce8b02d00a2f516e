package core

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
)

// ComputeIdentifier derives a storage identifier for a new asset, auction or bid.
//
// Formula: SHA256(entropy + "|" + caller + "|" + big_endian_u64(nonce))
//
// The nonce makes two allocations by the same caller with the same entropy
// differ; the entropy makes identifiers unpredictable to other callers.
func ComputeIdentifier(entropy []byte, caller AccountID, nonce uint64) Hash {
	h := sha256.New()
	h.Write(entropy)
	h.Write([]byte{'|'})
	h.Write([]byte(caller))
	h.Write([]byte{'|'})
	var n [8]byte
	binary.BigEndian.PutUint64(n[:], nonce)
	h.Write(n[:])

	var out Hash
	copy(out[:], h.Sum(nil))
	return out
}

// ComputeSettlementDigest computes the digest that binds a settlement to its auction.
// This is used by the enclave (to sign receipts) and validation (to verify them).
//
// Formula: SHA256(auction_id_hex + "|" + asset_id_hex + "|" + previous_owner + "|" + winner + "|" + price + "|" + unix_nanos)
//
// The price is rendered with decimal.Decimal.String so that equal amounts hash
// the same regardless of their internal exponent.
func ComputeSettlementDigest(auctionID, assetID Hash, previousOwner AccountID, record SettlementRecord) string {
	data := fmt.Sprintf("%s|%s|%s|%s|%s|%d",
		auctionID, assetID, previousOwner, record.Winner, record.Price.String(), record.SettledAt.UnixNano())
	hash := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%x", hash)
}
