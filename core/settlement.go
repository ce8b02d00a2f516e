package core

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
)

// settle runs the close-time settlement of an expired auction as one unit.
//
// Processing flow:
//  1. Release the winner's escrow and pay the asset owner
//  2. Transfer asset ownership to the winner and record the settlement
//  3. Release the escrow of every other bid recorded on the auction
//  4. Publish the final leaderboard
//
// The only fallible step is the payment in step 1. When it fails the winner's
// escrow is restored and nothing else has been touched, so the auction stays
// Ongoing and CloseAuction can be retried.
func (e *Engine) settle(auction *Auction) error {
	asset := e.st.assets[auction.AssetID]
	now := e.clock.Now()

	var (
		winnerBid     *Bid
		previousOwner AccountID
	)

	if len(auction.Leaderboard) > 0 {
		winnerBid = e.st.bids[auction.Leaderboard[0]]
		if asset.Owner == nil {
			return fmt.Errorf("%w: asset %s has no owner to pay", ErrInvalidState, asset.ID)
		}
		previousOwner = *asset.Owner

		if err := e.payOwner(winnerBid, previousOwner); err != nil {
			return err
		}

		e.transferOwnership(asset.ID, winnerBid.Bidder)
		auction.Settlement = &SettlementRecord{
			SettledAt: now,
			Winner:    winnerBid.Bidder,
			Price:     winnerBid.Price,
		}
	} else if err := e.setInAuction(asset.ID, false); err != nil {
		return err
	}

	for _, id := range e.auctionBidIDs(auction.ID) {
		if winnerBid != nil && id == winnerBid.ID {
			continue
		}
		bid := e.st.bids[id]
		if bid.Status != BidActive {
			continue
		}
		if rest := e.ledger.Unreserve(bid.Bidder, bid.Price); !rest.IsZero() {
			e.log.WithFields(logrus.Fields{
				"auction_id": auction.ID,
				"bidder":     bid.Bidder,
				"unreleased": rest,
			}).Warn("escrow only partially released")
		}
		bid.Status = BidWithdrawn
	}

	if winnerBid != nil {
		e.log.WithFields(logrus.Fields{
			"auction_id": auction.ID,
			"winner":     winnerBid.Bidder,
			"price":      winnerBid.Price,
		}).Info("auction settled")
		e.emit(Event{
			Kind:      EventAuctionSettled,
			Time:      now,
			AuctionID: auction.ID,
			AssetID:   asset.ID,
			Owner:     previousOwner,
			Winner:    winnerBid.Bidder,
			Price:     winnerBid.Price,
		})
	}

	e.publishDisplay(auction)
	return nil
}

// payOwner releases the winning escrow and transfers it to the seller. On any
// failure the released escrow is reserved again before returning.
func (e *Engine) payOwner(winner *Bid, seller AccountID) error {
	if rest := e.ledger.Unreserve(winner.Bidder, winner.Price); !rest.IsZero() {
		released := winner.Price.Sub(rest)
		if released.IsPositive() {
			if err := e.ledger.Reserve(winner.Bidder, released); err != nil {
				return errors.Join(
					fmt.Errorf("%w: winner escrow short by %s", ErrSettlementTransferFailed, rest),
					fmt.Errorf("restore winner escrow: %w", err),
				)
			}
		}
		return fmt.Errorf("%w: winner escrow short by %s", ErrSettlementTransferFailed, rest)
	}

	if err := e.ledger.Transfer(winner.Bidder, seller, winner.Price); err != nil {
		transferErr := fmt.Errorf("%w: pay %s to %s: %w", ErrSettlementTransferFailed, winner.Price, seller, err)
		if rerr := e.ledger.Reserve(winner.Bidder, winner.Price); rerr != nil {
			e.log.WithError(rerr).WithField("bidder", winner.Bidder).Error("failed to restore winner escrow")
			return errors.Join(transferErr, fmt.Errorf("restore winner escrow: %w", rerr))
		}
		return transferErr
	}
	return nil
}
