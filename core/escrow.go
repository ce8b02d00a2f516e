package core

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// PlaceBid records a new bid or raises the bidder's existing bid, escrowing the
// difference against the bidder's ledger balance. All preconditions are checked
// and the escrow taken before any engine state changes.
func (e *Engine) PlaceBid(bidder AccountID, auctionID Hash, price decimal.Decimal) (*Bid, error) {
	auction, ok := e.st.auctions[auctionID]
	if !ok {
		return nil, fmt.Errorf("auction %s: %w", auctionID, ErrNotFound)
	}
	if auction.Status != AuctionOngoing {
		return nil, fmt.Errorf("%w: auction %s is %s", ErrInvalidState, auctionID, auction.Status)
	}
	now := e.clock.Now()
	if !now.Before(auction.EndTime) {
		return nil, fmt.Errorf("%w: auction %s ended at %s", ErrInvalidState, auctionID, auction.EndTime)
	}
	asset := e.st.assets[auction.AssetID]
	if asset.Owner != nil && *asset.Owner == bidder {
		return nil, fmt.Errorf("%w: asset owner cannot bid on their own auction", ErrUnauthorized)
	}
	if err := validateAmount("price", price); err != nil {
		return nil, err
	}
	if !PriceMeetsFloor(price, auction.BasePrice) {
		return nil, fmt.Errorf("%w: price %s below base price %s", ErrBidTooLow, price, auction.BasePrice)
	}

	var bid *Bid
	if id, ok := e.st.auctionBidderBids[auctionID][bidder]; ok {
		existing := e.st.bids[id]
		if existing.Status == BidActive {
			bid = existing
		}
	}

	if bid != nil {
		if !price.GreaterThan(bid.Price) {
			return nil, fmt.Errorf("%w: raise to %s must exceed current bid %s", ErrBidTooLow, price, bid.Price)
		}
		delta := price.Sub(bid.Price)
		if err := e.ledger.Reserve(bidder, delta); err != nil {
			return nil, fmt.Errorf("%w: escrow %s for %s: %w", ErrReserveFailed, delta, bidder, err)
		}
		bid.Price = price
		bid.UpdatedAt = now
		e.log.WithFields(logrus.Fields{"auction_id": auctionID, "bid_id": bid.ID, "price": price}).Debug("bid raised")
	} else {
		al, err := e.allocate(bidder)
		if err != nil {
			return nil, fmt.Errorf("allocate bid id: %w", err)
		}
		if err := e.ledger.Reserve(bidder, price); err != nil {
			return nil, fmt.Errorf("%w: escrow %s for %s: %w", ErrReserveFailed, price, bidder, err)
		}
		al.Commit()

		bid = &Bid{
			ID:        al.ID,
			AuctionID: auctionID,
			Bidder:    bidder,
			Price:     price,
			UpdatedAt: now,
			Status:    BidActive,
		}
		e.recordBid(bid)
		e.log.WithFields(logrus.Fields{"auction_id": auctionID, "bid_id": bid.ID, "price": price}).Debug("bid placed")
	}

	if PriceMeetsFloor(price, auction.Threshold) || e.isListed(auction, bid.ID) {
		e.admitToLeaderboard(auction, bid)
	}

	e.emit(Event{Kind: EventNewBid, Time: now, AuctionID: auctionID, Price: price})
	return bid.clone(), nil
}

// recordBid stores a new bid and appends it to the per-auction indexes.
func (e *Engine) recordBid(bid *Bid) {
	e.st.bids[bid.ID] = bid

	seq := e.st.auctionBidCount[bid.AuctionID]
	byseq, ok := e.st.auctionBids[bid.AuctionID]
	if !ok {
		byseq = make(map[uint64]Hash)
		e.st.auctionBids[bid.AuctionID] = byseq
	}
	byseq[seq] = bid.ID
	e.st.auctionBidCount[bid.AuctionID] = seq + 1

	bybidder, ok := e.st.auctionBidderBids[bid.AuctionID]
	if !ok {
		bybidder = make(map[AccountID]Hash)
		e.st.auctionBidderBids[bid.AuctionID] = bybidder
	}
	bybidder[bid.Bidder] = bid.ID
}

// auctionBidIDs returns every bid ever recorded on the auction, in arrival order.
func (e *Engine) auctionBidIDs(auctionID Hash) []Hash {
	count := e.st.auctionBidCount[auctionID]
	byseq := e.st.auctionBids[auctionID]
	ids := make([]Hash, 0, count)
	for seq := uint64(0); seq < count; seq++ {
		ids = append(ids, byseq[seq])
	}
	return ids
}

// Bid returns a copy of the bid record.
func (e *Engine) Bid(id Hash) (*Bid, error) {
	bid, ok := e.st.bids[id]
	if !ok {
		return nil, fmt.Errorf("bid %s: %w", id, ErrNotFound)
	}
	return bid.clone(), nil
}

// BidOf returns the bidder's bid on the auction.
func (e *Engine) BidOf(auctionID Hash, bidder AccountID) (*Bid, error) {
	id, ok := e.st.auctionBidderBids[auctionID][bidder]
	if !ok {
		return nil, fmt.Errorf("bid by %s on auction %s: %w", bidder, auctionID, ErrNotFound)
	}
	return e.st.bids[id].clone(), nil
}

// BidsFor returns copies of every bid recorded on the auction in arrival order.
func (e *Engine) BidsFor(auctionID Hash) ([]*Bid, error) {
	if _, ok := e.st.auctions[auctionID]; !ok {
		return nil, fmt.Errorf("auction %s: %w", auctionID, ErrNotFound)
	}
	ids := e.auctionBidIDs(auctionID)
	bids := make([]*Bid, len(ids))
	for i, id := range ids {
		bids[i] = e.st.bids[id].clone()
	}
	return bids, nil
}
