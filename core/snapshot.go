package core

import (
	"bytes"
	"fmt"
	"sort"
)

// OwnerIndexRow is one (owner, position) → asset entry.
type OwnerIndexRow struct {
	Owner   AccountID `json:"owner"`
	Pos     uint64    `json:"pos"`
	AssetID Hash      `json:"asset_id"`
}

// OwnerCountRow is the number of assets held by an owner.
type OwnerCountRow struct {
	Owner AccountID `json:"owner"`
	Count uint64    `json:"count"`
}

// AuctionBidRow is one (auction, sequence) → bid entry.
type AuctionBidRow struct {
	AuctionID Hash   `json:"auction_id"`
	Seq       uint64 `json:"seq"`
	BidID     Hash   `json:"bid_id"`
}

// AuctionBidderRow is one (auction, bidder) → bid entry.
type AuctionBidderRow struct {
	AuctionID Hash      `json:"auction_id"`
	Bidder    AccountID `json:"bidder"`
	BidID     Hash      `json:"bid_id"`
}

// Snapshot is a table-by-table dump of the engine state. Rows are sorted so
// equal states produce equal snapshots.
type Snapshot struct {
	Nonce             uint64             `json:"nonce"`
	Assets            []Asset            `json:"assets"`
	OwnerIndex        []OwnerIndexRow    `json:"owner_index"`
	OwnerCount        []OwnerCountRow    `json:"owner_count"`
	Auctions          []Auction          `json:"auctions"`
	Bids              []Bid              `json:"bids"`
	AuctionBids       []AuctionBidRow    `json:"auction_bids"`
	AuctionBidderBids []AuctionBidderRow `json:"auction_bidder_bids"`
}

func lessHash(a, b Hash) bool {
	return bytes.Compare(a[:], b[:]) < 0
}

// Snapshot dumps the engine tables.
func (e *Engine) Snapshot() Snapshot {
	snap := Snapshot{Nonce: e.ids.Nonce()}

	for _, asset := range e.st.assets {
		snap.Assets = append(snap.Assets, *asset.clone())
	}
	sort.Slice(snap.Assets, func(i, j int) bool { return lessHash(snap.Assets[i].ID, snap.Assets[j].ID) })

	for owner, slots := range e.st.ownerIndex {
		for pos, id := range slots {
			snap.OwnerIndex = append(snap.OwnerIndex, OwnerIndexRow{Owner: owner, Pos: pos, AssetID: id})
		}
	}
	sort.Slice(snap.OwnerIndex, func(i, j int) bool {
		a, b := snap.OwnerIndex[i], snap.OwnerIndex[j]
		if a.Owner != b.Owner {
			return a.Owner < b.Owner
		}
		return a.Pos < b.Pos
	})

	for owner, count := range e.st.ownerCount {
		snap.OwnerCount = append(snap.OwnerCount, OwnerCountRow{Owner: owner, Count: count})
	}
	sort.Slice(snap.OwnerCount, func(i, j int) bool { return snap.OwnerCount[i].Owner < snap.OwnerCount[j].Owner })

	for _, auction := range e.st.auctions {
		snap.Auctions = append(snap.Auctions, *auction.clone())
	}
	sort.Slice(snap.Auctions, func(i, j int) bool { return lessHash(snap.Auctions[i].ID, snap.Auctions[j].ID) })

	for _, bid := range e.st.bids {
		snap.Bids = append(snap.Bids, *bid.clone())
	}
	sort.Slice(snap.Bids, func(i, j int) bool { return lessHash(snap.Bids[i].ID, snap.Bids[j].ID) })

	for auctionID, byseq := range e.st.auctionBids {
		for seq, bidID := range byseq {
			snap.AuctionBids = append(snap.AuctionBids, AuctionBidRow{AuctionID: auctionID, Seq: seq, BidID: bidID})
		}
	}
	sort.Slice(snap.AuctionBids, func(i, j int) bool {
		a, b := snap.AuctionBids[i], snap.AuctionBids[j]
		if a.AuctionID != b.AuctionID {
			return lessHash(a.AuctionID, b.AuctionID)
		}
		return a.Seq < b.Seq
	})

	for auctionID, bybidder := range e.st.auctionBidderBids {
		for bidder, bidID := range bybidder {
			snap.AuctionBidderBids = append(snap.AuctionBidderBids, AuctionBidderRow{AuctionID: auctionID, Bidder: bidder, BidID: bidID})
		}
	}
	sort.Slice(snap.AuctionBidderBids, func(i, j int) bool {
		a, b := snap.AuctionBidderBids[i], snap.AuctionBidderBids[j]
		if a.AuctionID != b.AuctionID {
			return lessHash(a.AuctionID, b.AuctionID)
		}
		return a.Bidder < b.Bidder
	})

	return snap
}

// Restore rebuilds an engine from a snapshot and verifies its invariants.
func Restore(cfg Config, ledger Ledger, snap Snapshot, opts ...Option) (*Engine, error) {
	e := NewEngine(cfg, ledger, opts...)
	if err := e.Reset(snap); err != nil {
		return nil, fmt.Errorf("restore snapshot: %w", err)
	}
	return e, nil
}

// Reset replaces the engine tables and nonce with snap. If snap violates an
// invariant the engine is left as it was.
func (e *Engine) Reset(snap Snapshot) error {
	prevIDs, prevState := e.ids, e.st
	e.ids = NewIDAllocator(snap.Nonce, e.ids.entropy)
	e.st = stateFromSnapshot(snap)

	if err := e.CheckInvariants(); err != nil {
		e.ids, e.st = prevIDs, prevState
		return err
	}
	return nil
}

func stateFromSnapshot(snap Snapshot) *state {
	st := newState()
	for i := range snap.Assets {
		asset := snap.Assets[i].clone()
		st.assets[asset.ID] = asset
	}
	for _, row := range snap.OwnerIndex {
		slots, ok := st.ownerIndex[row.Owner]
		if !ok {
			slots = make(map[uint64]Hash)
			st.ownerIndex[row.Owner] = slots
		}
		slots[row.Pos] = row.AssetID
	}
	for _, row := range snap.OwnerCount {
		st.ownerCount[row.Owner] = row.Count
	}
	for i := range snap.Auctions {
		auction := snap.Auctions[i].clone()
		st.auctions[auction.ID] = auction
	}
	for i := range snap.Bids {
		bid := snap.Bids[i].clone()
		st.bids[bid.ID] = bid
	}
	for _, row := range snap.AuctionBids {
		byseq, ok := st.auctionBids[row.AuctionID]
		if !ok {
			byseq = make(map[uint64]Hash)
			st.auctionBids[row.AuctionID] = byseq
		}
		byseq[row.Seq] = row.BidID
		if row.Seq+1 > st.auctionBidCount[row.AuctionID] {
			st.auctionBidCount[row.AuctionID] = row.Seq + 1
		}
	}
	for _, row := range snap.AuctionBidderBids {
		bybidder, ok := st.auctionBidderBids[row.AuctionID]
		if !ok {
			bybidder = make(map[AccountID]Hash)
			st.auctionBidderBids[row.AuctionID] = bybidder
		}
		bybidder[row.Bidder] = row.BidID
	}
	return st
}

// CheckInvariants verifies the cross-table consistency rules. It is used when
// restoring snapshots and by tests.
func (e *Engine) CheckInvariants() error {
	st := e.st

	for id, asset := range st.assets {
		if (asset.Owner == nil) != (asset.OwnerPos == nil) {
			return fmt.Errorf("%w: asset %s has owner without position", ErrInvalidState, id)
		}
		if asset.Owner == nil {
			continue
		}
		owner, pos := *asset.Owner, *asset.OwnerPos
		if pos >= st.ownerCount[owner] {
			return fmt.Errorf("%w: asset %s position %d outside owner count %d", ErrInvalidState, id, pos, st.ownerCount[owner])
		}
		if st.ownerIndex[owner][pos] != id {
			return fmt.Errorf("%w: owner index (%s, %d) does not point at asset %s", ErrInvalidState, owner, pos, id)
		}
	}

	for owner, count := range st.ownerCount {
		slots := st.ownerIndex[owner]
		if uint64(len(slots)) != count {
			return fmt.Errorf("%w: owner %s has %d index slots for count %d", ErrInvalidState, owner, len(slots), count)
		}
		for pos := uint64(0); pos < count; pos++ {
			id, ok := slots[pos]
			if !ok {
				return fmt.Errorf("%w: owner %s index has a gap at %d", ErrInvalidState, owner, pos)
			}
			asset, ok := st.assets[id]
			if !ok || asset.Owner == nil || *asset.Owner != owner {
				return fmt.Errorf("%w: owner %s index slot %d references asset %s it does not own", ErrInvalidState, owner, pos, id)
			}
		}
	}
	for owner := range st.ownerIndex {
		if _, ok := st.ownerCount[owner]; !ok {
			return fmt.Errorf("%w: owner %s has index entries without a count", ErrInvalidState, owner)
		}
	}

	ongoing := make(map[Hash]int)
	for id, auction := range st.auctions {
		if _, ok := st.assets[auction.AssetID]; !ok {
			return fmt.Errorf("%w: auction %s references missing asset %s", ErrInvalidState, id, auction.AssetID)
		}
		if auction.Status == AuctionOngoing {
			ongoing[auction.AssetID]++
		}
		if len(auction.Leaderboard) > e.cfg.LeaderboardSize {
			return fmt.Errorf("%w: auction %s leaderboard has %d entries", ErrInvalidState, id, len(auction.Leaderboard))
		}
		for i, bidID := range auction.Leaderboard {
			bid, ok := st.bids[bidID]
			if !ok || bid.AuctionID != id {
				return fmt.Errorf("%w: auction %s leaderboard lists foreign bid %s", ErrInvalidState, id, bidID)
			}
			if i > 0 && bid.Price.GreaterThan(st.bids[auction.Leaderboard[i-1]].Price) {
				return fmt.Errorf("%w: auction %s leaderboard out of order at %d", ErrInvalidState, id, i)
			}
		}
	}
	for id, asset := range st.assets {
		want := 0
		if asset.InAuction {
			want = 1
		}
		if ongoing[id] != want {
			return fmt.Errorf("%w: asset %s in_auction=%t with %d ongoing auctions", ErrInvalidState, id, asset.InAuction, ongoing[id])
		}
	}

	for auctionID, bybidder := range st.auctionBidderBids {
		for bidder, bidID := range bybidder {
			bid, ok := st.bids[bidID]
			if !ok || bid.AuctionID != auctionID || bid.Bidder != bidder {
				return fmt.Errorf("%w: bidder index (%s, %s) is inconsistent", ErrInvalidState, auctionID, bidder)
			}
		}
	}
	return nil
}
