package core

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// LeaderboardEntry is one ranked bid.
type LeaderboardEntry struct {
	BidID Hash
	Price decimal.Decimal
}

// RankLeaderboard orders entries by price descending and keeps the first size.
// Equal prices keep their slot order, so a bid admitted earlier ranks above a
// later bid at the same price. This decides the winner and must stay stable.
func RankLeaderboard(entries []LeaderboardEntry, size int) []LeaderboardEntry {
	ranked := make([]LeaderboardEntry, len(entries))
	copy(ranked, entries)

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Price.GreaterThan(ranked[j].Price)
	})

	if len(ranked) > size {
		ranked = ranked[:size]
	}
	return ranked
}

// AdmissionThreshold returns the minimum price a new bid needs to guarantee a
// place on the leaderboard: the base price while there is a free slot, one
// price step above the last entry once the leaderboard is full.
func AdmissionThreshold(ranked []LeaderboardEntry, size int, basePrice decimal.Decimal) decimal.Decimal {
	if len(ranked) < size {
		return basePrice
	}
	return ranked[size-1].Price.Add(priceUnit)
}

// admitToLeaderboard inserts or re-ranks bid on the auction's leaderboard and
// recomputes the admission threshold.
func (e *Engine) admitToLeaderboard(auction *Auction, bid *Bid) {
	entries := make([]LeaderboardEntry, 0, len(auction.Leaderboard)+1)
	listed := false
	for _, id := range auction.Leaderboard {
		if id == bid.ID {
			listed = true
		}
		entries = append(entries, LeaderboardEntry{BidID: id, Price: e.st.bids[id].Price})
	}
	if !listed {
		entries = append(entries, LeaderboardEntry{BidID: bid.ID, Price: bid.Price})
	}

	ranked := RankLeaderboard(entries, e.cfg.LeaderboardSize)

	board := make([]Hash, len(ranked))
	for i, entry := range ranked {
		board[i] = entry.BidID
	}
	auction.Leaderboard = board
	auction.Threshold = AdmissionThreshold(ranked, e.cfg.LeaderboardSize, auction.BasePrice)
}

func (e *Engine) isListed(auction *Auction, bidID Hash) bool {
	for _, id := range auction.Leaderboard {
		if id == bidID {
			return true
		}
	}
	return false
}

// RefreshDisplay publishes the live leaderboard as the displayed snapshot if
// the auction is ongoing and the display period has elapsed since the last
// refresh. It reports whether a refresh happened; throttled calls are no-ops.
func (e *Engine) RefreshDisplay(auctionID Hash) (bool, error) {
	auction, ok := e.st.auctions[auctionID]
	if !ok {
		return false, fmt.Errorf("auction %s: %w", auctionID, ErrNotFound)
	}
	if auction.Status != AuctionOngoing {
		return false, nil
	}
	if e.clock.Now().Sub(auction.LastDisplayUpdate) < e.cfg.DisplayPeriod {
		return false, nil
	}
	e.publishDisplay(auction)
	return true, nil
}

// publishDisplay copies the live leaderboard unconditionally.
func (e *Engine) publishDisplay(auction *Auction) {
	now := e.clock.Now()
	auction.DisplayedBids = append([]Hash(nil), auction.Leaderboard...)
	auction.LastDisplayUpdate = now

	e.log.WithFields(logrus.Fields{"auction_id": auction.ID, "entries": len(auction.DisplayedBids)}).Debug("displayed bids updated")
	e.emit(Event{
		Kind:        EventUpdateDisplayedBids,
		Time:        now,
		AuctionID:   auction.ID,
		Leaderboard: append([]Hash(nil), auction.DisplayedBids...),
	})
}

// Leaderboard returns copies of the auction's live leaderboard bids, highest first.
func (e *Engine) Leaderboard(auctionID Hash) ([]*Bid, error) {
	auction, ok := e.st.auctions[auctionID]
	if !ok {
		return nil, fmt.Errorf("auction %s: %w", auctionID, ErrNotFound)
	}
	bids := make([]*Bid, 0, len(auction.Leaderboard))
	for _, id := range auction.Leaderboard {
		bids = append(bids, e.st.bids[id].clone())
	}
	return bids, nil
}
