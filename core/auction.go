package core

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// StartAuction opens a timed auction on an asset owned by caller.
//
// Preconditions, checked in order:
//  1. The asset exists
//  2. The caller is the asset's recorded owner
//  3. The asset is not already in an ongoing auction
//  4. endTime is at least MinAuctionDuration after now
//  5. basePrice is positive
func (e *Engine) StartAuction(caller AccountID, assetID Hash, endTime time.Time, basePrice decimal.Decimal) (*Auction, error) {
	asset, ok := e.st.assets[assetID]
	if !ok {
		return nil, fmt.Errorf("asset %s: %w", assetID, ErrNotFound)
	}
	if asset.Owner == nil || *asset.Owner != caller {
		return nil, fmt.Errorf("%w: %s does not own asset %s", ErrUnauthorized, caller, assetID)
	}
	if asset.InAuction {
		return nil, fmt.Errorf("%w: asset %s is already in auction", ErrInvalidState, assetID)
	}
	now := e.clock.Now()
	if endTime.Before(now.Add(e.cfg.MinAuctionDuration)) {
		return nil, fmt.Errorf("%w: end time %s must be at least %s after %s",
			ErrInvalidInput, endTime, e.cfg.MinAuctionDuration, now)
	}
	if err := validateAmount("base price", basePrice); err != nil {
		return nil, err
	}

	al, err := e.allocate(caller)
	if err != nil {
		return nil, fmt.Errorf("allocate auction id: %w", err)
	}
	al.Commit()

	auction := &Auction{
		ID:                al.ID,
		AssetID:           assetID,
		BasePrice:         basePrice,
		StartTime:         now,
		EndTime:           endTime,
		Status:            AuctionOngoing,
		Leaderboard:       []Hash{},
		Threshold:         basePrice,
		DisplayedBids:     []Hash{},
		LastDisplayUpdate: now,
	}
	e.st.auctions[auction.ID] = auction
	asset.InAuction = true

	e.log.WithFields(logrus.Fields{
		"auction_id": auction.ID,
		"asset_id":   assetID,
		"base_price": basePrice,
		"end_time":   endTime,
	}).Info("auction started")
	e.emit(Event{
		Kind:      EventAuctionStarted,
		Time:      now,
		Owner:     caller,
		AssetID:   assetID,
		AuctionID: auction.ID,
		Price:     basePrice,
		EndTime:   endTime,
	})

	return auction.clone(), nil
}

// CancelAuction withdraws an auction before it ends. Only the asset owner may
// cancel, and only while no bid has been recorded.
func (e *Engine) CancelAuction(caller AccountID, auctionID Hash) error {
	auction, ok := e.st.auctions[auctionID]
	if !ok {
		return fmt.Errorf("auction %s: %w", auctionID, ErrNotFound)
	}
	if auction.Status != AuctionOngoing {
		return fmt.Errorf("%w: auction %s is %s", ErrInvalidState, auctionID, auction.Status)
	}
	asset := e.st.assets[auction.AssetID]
	if asset.Owner == nil || *asset.Owner != caller {
		return fmt.Errorf("%w: %s is not the admin of auction %s", ErrUnauthorized, caller, auctionID)
	}
	if !e.clock.Now().Before(auction.EndTime) {
		return fmt.Errorf("%w: auction %s has already ended", ErrInvalidState, auctionID)
	}
	if n := e.st.auctionBidCount[auctionID]; n > 0 {
		return fmt.Errorf("%w: auction %s has %d bids", ErrInvalidState, auctionID, n)
	}

	auction.Status = AuctionCancelled
	asset.InAuction = false

	e.log.WithField("auction_id", auctionID).Info("auction cancelled")
	e.emit(Event{Kind: EventAuctionCancelled, AuctionID: auctionID, AssetID: auction.AssetID})
	return nil
}

// CloseAuction settles an expired auction. Anyone may call it, any number of
// times: closing an auction that is already Cancelled or Closed is a no-op and
// returns the auction unchanged. If settlement fails the auction stays Ongoing
// and the call can be retried.
func (e *Engine) CloseAuction(auctionID Hash) (*Auction, error) {
	auction, ok := e.st.auctions[auctionID]
	if !ok {
		return nil, fmt.Errorf("auction %s: %w", auctionID, ErrNotFound)
	}
	if auction.Status.Terminal() {
		return auction.clone(), nil
	}
	if e.clock.Now().Before(auction.EndTime) {
		return nil, fmt.Errorf("%w: auction %s ends at %s", ErrInvalidState, auctionID, auction.EndTime)
	}

	if err := e.settle(auction); err != nil {
		e.log.WithError(err).WithField("auction_id", auctionID).Warn("settlement failed")
		return nil, err
	}

	auction.Status = AuctionClosed
	e.log.WithFields(logrus.Fields{"auction_id": auctionID, "settled": auction.Settlement != nil}).Info("auction closed")
	e.emit(Event{Kind: EventAuctionClosed, AuctionID: auctionID, AssetID: auction.AssetID})

	return auction.clone(), nil
}

// Auction returns a copy of the auction record.
func (e *Engine) Auction(id Hash) (*Auction, error) {
	auction, ok := e.st.auctions[id]
	if !ok {
		return nil, fmt.Errorf("auction %s: %w", id, ErrNotFound)
	}
	return auction.clone(), nil
}

// OngoingAuctionFor returns the ongoing auction referencing the asset, if any.
func (e *Engine) OngoingAuctionFor(assetID Hash) (*Auction, bool) {
	for _, auction := range e.st.auctions {
		if auction.AssetID == assetID && auction.Status == AuctionOngoing {
			return auction.clone(), true
		}
	}
	return nil, false
}
