package core

import (
	"encoding/hex"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// HashSize is the width in bytes of every asset, auction and bid identifier.
const HashSize = 32

// Hash is an opaque fixed-width identifier.
type Hash [HashSize]byte

// String returns the lowercase hex form of the hash.
func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// IsZero reports whether h is the zero hash.
func (h Hash) IsZero() bool {
	return h == Hash{}
}

// MarshalText implements encoding.TextMarshaler so hashes render as hex in JSON.
func (h Hash) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (h *Hash) UnmarshalText(text []byte) error {
	parsed, err := ParseHash(string(text))
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}

// ParseHash decodes a 64-character hex string into a Hash.
func ParseHash(s string) (Hash, error) {
	var h Hash
	raw, err := hex.DecodeString(s)
	if err != nil {
		return h, fmt.Errorf("%w: invalid hash %q: %v", ErrInvalidInput, s, err)
	}
	if len(raw) != HashSize {
		return h, fmt.Errorf("%w: hash must be %d bytes, got %d", ErrInvalidInput, HashSize, len(raw))
	}
	copy(h[:], raw)
	return h, nil
}

// AccountID is a verified caller identity.
type AccountID string

// AuctionStatus is the lifecycle state of an auction.
type AuctionStatus string

const (
	AuctionOngoing   AuctionStatus = "ongoing"
	AuctionCancelled AuctionStatus = "cancelled"
	AuctionClosed    AuctionStatus = "closed"
)

// Terminal reports whether no further transitions are possible from s.
func (s AuctionStatus) Terminal() bool {
	return s == AuctionCancelled || s == AuctionClosed
}

// BidStatus is the state of a single bid.
type BidStatus string

const (
	BidActive    BidStatus = "active"
	BidWithdrawn BidStatus = "withdrawn"
)

// Asset is a unique, ownable item.
// Owner is nil iff OwnerPos is nil.
type Asset struct {
	ID        Hash       `json:"id"`
	Name      string     `json:"name,omitempty"`
	Owner     *AccountID `json:"owner,omitempty"`
	OwnerPos  *uint64    `json:"owner_pos,omitempty"`
	InAuction bool       `json:"in_auction"`
}

// SettlementRecord is written once when an auction closes with a winner.
type SettlementRecord struct {
	SettledAt time.Time       `json:"settled_at"`
	Winner    AccountID       `json:"winner"`
	Price     decimal.Decimal `json:"price"`
}

// Auction is a time-bounded solicitation of bids for one asset.
type Auction struct {
	ID                Hash              `json:"id"`
	AssetID           Hash              `json:"asset_id"`
	BasePrice         decimal.Decimal   `json:"base_price"`
	StartTime         time.Time         `json:"start_time"`
	EndTime           time.Time         `json:"end_time"`
	Status            AuctionStatus     `json:"status"`
	Leaderboard       []Hash            `json:"leaderboard"`
	Threshold         decimal.Decimal   `json:"threshold"`
	DisplayedBids     []Hash            `json:"displayed_bids"`
	LastDisplayUpdate time.Time         `json:"last_display_update"`
	Settlement        *SettlementRecord `json:"settlement,omitempty"`
}

// Bid is a bidder's current offer on an auction. The bidder's escrow for the
// auction always equals Price while the bid is Active.
type Bid struct {
	ID        Hash            `json:"id"`
	AuctionID Hash            `json:"auction_id"`
	Bidder    AccountID       `json:"bidder"`
	Price     decimal.Decimal `json:"price"`
	UpdatedAt time.Time       `json:"updated_at"`
	Status    BidStatus       `json:"status"`
}

func (a *Asset) clone() *Asset {
	c := *a
	if a.Owner != nil {
		owner := *a.Owner
		c.Owner = &owner
	}
	if a.OwnerPos != nil {
		pos := *a.OwnerPos
		c.OwnerPos = &pos
	}
	return &c
}

func (a *Auction) clone() *Auction {
	c := *a
	c.Leaderboard = append([]Hash{}, a.Leaderboard...)
	c.DisplayedBids = append([]Hash{}, a.DisplayedBids...)
	if a.Settlement != nil {
		s := *a.Settlement
		c.Settlement = &s
	}
	return &c
}

func (b *Bid) clone() *Bid {
	c := *b
	return &c
}
