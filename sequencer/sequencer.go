// Package sequencer serializes wire requests onto a single auction engine.
//
// core.Engine assumes its caller orders operations; the Sequencer is that
// caller for the enclave server and the operator CLI. Every request runs under
// one mutex, the events it produced are attached to its response, and a
// closing auction with a winner gets a signed settlement receipt.
package sequencer

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/cloudx-io/assetauction/core"
	"github.com/cloudx-io/assetauction/enclaveapi"
	"github.com/cloudx-io/assetauction/ledger"
	"github.com/cloudx-io/assetauction/logging"
	"github.com/cloudx-io/assetauction/receipt"
)

// CommitFunc runs after every successful state-changing request, while the
// sequencer lock is still held.
type CommitFunc func(e *core.Engine, l *ledger.Ledger) error

// Sequencer owns an engine, its ledger and the per-request event buffer.
type Sequencer struct {
	mu     sync.Mutex
	engine *core.Engine
	ledger *ledger.Ledger
	events *core.RecordingSink
	signer *receipt.Signer
	commit CommitFunc
	log    logrus.FieldLogger
}

// Option configures a Sequencer.
type Option func(*Sequencer)

// WithSigner signs a receipt for every settled auction.
func WithSigner(s *receipt.Signer) Option {
	return func(q *Sequencer) { q.signer = s }
}

// WithCommit installs a hook run after each successful mutation.
func WithCommit(fn CommitFunc) Option {
	return func(q *Sequencer) { q.commit = fn }
}

// WithLogger sets the request logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(q *Sequencer) { q.log = l }
}

// EngineOptions returns the engine options that route events to both the
// sequencer's buffer and the event log.
func EngineOptions(events *core.RecordingSink, log logrus.FieldLogger) []core.Option {
	return []core.Option{
		core.WithEventSink(logging.Fanout{events, logging.NewEventSink(log)}),
		core.WithLogger(log),
	}
}

// New wraps an engine. events must be the buffer the engine emits into.
func New(engine *core.Engine, l *ledger.Ledger, events *core.RecordingSink, opts ...Option) *Sequencer {
	s := &Sequencer{
		engine: engine,
		ledger: l,
		events: events,
		log:    logging.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var mutating = map[string]bool{
	enclaveapi.TypeCreateAsset:    true,
	enclaveapi.TypeStartAuction:   true,
	enclaveapi.TypeCancelAuction:  true,
	enclaveapi.TypeBid:            true,
	enclaveapi.TypeRefreshDisplay: true,
	enclaveapi.TypeCloseAuction:   true,
	enclaveapi.TypeDeposit:        true,
}

// Mutating reports whether a request type can change engine or ledger state.
func Mutating(requestType string) bool {
	return mutating[requestType]
}

// Handle runs one request to completion and never returns nil.
func (s *Sequencer) Handle(req enclaveapi.Request) *enclaveapi.Response {
	start := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.events.Drain()

	log := s.log.WithFields(logrus.Fields{
		"request_type": req.Type,
		"caller":       req.Caller,
	})

	committing := Mutating(req.Type) && s.commit != nil
	var (
		engineSnap core.Snapshot
		ledgerRows []ledger.AccountBalance
	)
	if committing {
		engineSnap = s.engine.Snapshot()
		ledgerRows = s.ledger.Snapshot()
	}

	resp, err := s.dispatch(req)
	if err == nil && committing {
		if cerr := s.commit(s.engine, s.ledger); cerr != nil {
			log.WithError(cerr).Error("failed to commit state")
			err = fmt.Errorf("commit state: %w", cerr)
			s.rollback(engineSnap, ledgerRows, log)
		}
	}

	if err != nil {
		log.WithError(err).WithField("error_kind", core.ErrorKind(err)).Debug("request rejected")
		resp = enclaveapi.NewErrorResponse(req.Type, err)
	} else {
		resp.Type = enclaveapi.ResponseType(req.Type)
		resp.Success = true
	}

	resp.Events = s.events.Drain()
	resp.Timestamp = start.Unix()
	resp.ProcessingTime = time.Since(start).Milliseconds()
	return resp
}

var errUnknownType = errors.New("unknown request type")

func (s *Sequencer) dispatch(req enclaveapi.Request) (*enclaveapi.Response, error) {
	switch req.Type {
	case enclaveapi.TypeCreateAsset:
		asset, err := s.engine.CreateAsset(req.Caller, req.Name)
		if err != nil {
			return nil, err
		}
		return &enclaveapi.Response{Asset: asset}, nil

	case enclaveapi.TypeStartAuction:
		auction, err := s.engine.StartAuction(req.Caller, req.AssetID, req.EndTime, req.BasePrice)
		if err != nil {
			return nil, err
		}
		return s.auctionResponse(auction)

	case enclaveapi.TypeCancelAuction:
		if err := s.engine.CancelAuction(req.Caller, req.AuctionID); err != nil {
			return nil, err
		}
		return s.auctionResponseByID(req.AuctionID)

	case enclaveapi.TypeBid:
		bid, err := s.engine.PlaceBid(req.Caller, req.AuctionID, req.Price)
		if err != nil {
			return nil, err
		}
		return &enclaveapi.Response{Bid: bid}, nil

	case enclaveapi.TypeRefreshDisplay:
		refreshed, err := s.engine.RefreshDisplay(req.AuctionID)
		if err != nil {
			return nil, err
		}
		resp, err := s.auctionResponseByID(req.AuctionID)
		if err != nil {
			return nil, err
		}
		resp.Refreshed = &refreshed
		return resp, nil

	case enclaveapi.TypeCloseAuction:
		return s.close(req.AuctionID)

	case enclaveapi.TypeGetAsset:
		asset, err := s.engine.Asset(req.AssetID)
		if err != nil {
			return nil, err
		}
		resp := &enclaveapi.Response{Asset: asset}
		if auction, ok := s.engine.OngoingAuctionFor(asset.ID); ok {
			if resp.Auction, err = s.view(auction); err != nil {
				return nil, err
			}
		}
		return resp, nil

	case enclaveapi.TypeListAssets:
		owner := req.Owner
		if owner == "" {
			owner = req.Caller
		}
		if owner == "" {
			return nil, fmt.Errorf("%w: owner is required", core.ErrInvalidInput)
		}
		return &enclaveapi.Response{Assets: s.engine.AssetsOf(owner)}, nil

	case enclaveapi.TypeGetAuction:
		return s.auctionResponseByID(req.AuctionID)

	case enclaveapi.TypeGetBid:
		var (
			bid *core.Bid
			err error
		)
		if !req.BidID.IsZero() {
			bid, err = s.engine.Bid(req.BidID)
		} else {
			bid, err = s.engine.BidOf(req.AuctionID, accountOf(req))
		}
		if err != nil {
			return nil, err
		}
		return &enclaveapi.Response{Bid: bid}, nil

	case enclaveapi.TypeDeposit:
		who := accountOf(req)
		if err := s.ledger.Deposit(who, req.Amount); err != nil {
			return nil, err
		}
		balance := s.ledger.Balance(who)
		return &enclaveapi.Response{Balance: &balance}, nil

	case enclaveapi.TypeBalance:
		who := accountOf(req)
		if who == "" {
			return nil, fmt.Errorf("%w: account is required", core.ErrInvalidInput)
		}
		balance := s.ledger.Balance(who)
		return &enclaveapi.Response{Balance: &balance}, nil

	default:
		return nil, fmt.Errorf("%w: %w %q", core.ErrInvalidInput, errUnknownType, req.Type)
	}
}

// accountOf returns the explicit account of a request, or its caller.
func accountOf(req enclaveapi.Request) core.AccountID {
	if req.Account != "" {
		return req.Account
	}
	return req.Caller
}

func (s *Sequencer) close(auctionID core.Hash) (*enclaveapi.Response, error) {
	auction, err := s.engine.CloseAuction(auctionID)
	if err != nil {
		return nil, err
	}
	resp, err := s.auctionResponse(auction)
	if err != nil {
		return nil, err
	}
	if s.signer == nil || auction.Settlement == nil {
		return resp, nil
	}

	// The seller is only known from the settlement event; a repeated close
	// of an already closed auction emits nothing and gets no receipt.
	for _, ev := range s.events.Events {
		if ev.Kind != core.EventAuctionSettled || ev.AuctionID != auction.ID {
			continue
		}
		r, err := receipt.New(auction, ev.Owner)
		if err != nil {
			return nil, err
		}
		signed, err := s.signer.Sign(r)
		if err != nil {
			// Settlement is already committed; report it without a receipt.
			s.log.WithError(err).WithField("auction_id", auction.ID.String()).Error("failed to sign settlement receipt")
			return resp, nil
		}
		resp.Receipt = signed.EncodeBase64()
	}
	return resp, nil
}

func (s *Sequencer) auctionResponseByID(id core.Hash) (*enclaveapi.Response, error) {
	auction, err := s.engine.Auction(id)
	if err != nil {
		return nil, err
	}
	return s.auctionResponse(auction)
}

func (s *Sequencer) auctionResponse(auction *core.Auction) (*enclaveapi.Response, error) {
	view, err := s.view(auction)
	if err != nil {
		return nil, err
	}
	return &enclaveapi.Response{Auction: view}, nil
}

// view resolves the bid ids of an auction into full bids.
func (s *Sequencer) view(auction *core.Auction) (*enclaveapi.AuctionView, error) {
	view := &enclaveapi.AuctionView{
		Auction:         *auction,
		LeaderboardBids: []core.Bid{},
		DisplayedView:   []core.Bid{},
	}

	board, err := s.engine.Leaderboard(auction.ID)
	if err != nil {
		return nil, err
	}
	for _, b := range board {
		view.LeaderboardBids = append(view.LeaderboardBids, *b)
	}

	for _, id := range auction.DisplayedBids {
		b, err := s.engine.Bid(id)
		if err != nil {
			return nil, err
		}
		view.DisplayedView = append(view.DisplayedView, *b)
	}

	bids, err := s.engine.BidsFor(auction.ID)
	if err != nil {
		return nil, err
	}
	view.BidCount = len(bids)
	return view, nil
}

// rollback puts engine and ledger back to the state they had before a
// request whose commit failed, and drops the events that request emitted.
func (s *Sequencer) rollback(snap core.Snapshot, rows []ledger.AccountBalance, log logrus.FieldLogger) {
	s.ledger.Reset(rows)
	if err := s.engine.Reset(snap); err != nil {
		log.WithError(err).Error("failed to roll back engine state")
	}
	s.events.Drain()
}
