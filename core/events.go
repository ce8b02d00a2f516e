package core

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EventKind names a notification emitted by the engine.
type EventKind string

const (
	EventAssetCreated        EventKind = "AssetCreated"
	EventAuctionStarted      EventKind = "AuctionStarted"
	EventAuctionCancelled    EventKind = "AuctionCancelled"
	EventNewBid              EventKind = "NewBid"
	EventUpdateDisplayedBids EventKind = "UpdateDisplayedBids"
	EventAuctionSettled      EventKind = "AuctionSettled"
	EventAuctionClosed       EventKind = "AuctionClosed"
)

// Event is a notification about a committed state change. Fields that do not
// apply to a kind are left zero.
type Event struct {
	ID        uuid.UUID `json:"id"`
	Kind      EventKind `json:"kind"`
	Time      time.Time `json:"time"`
	AuctionID Hash      `json:"auction_id,omitzero"`
	AssetID   Hash      `json:"asset_id,omitzero"`

	// Owner is the asset owner (AssetCreated, AuctionStarted) or the previous
	// owner (AuctionSettled).
	Owner  AccountID `json:"owner,omitempty"`
	Winner AccountID `json:"winner,omitempty"`
	Name   string    `json:"name,omitempty"`

	// Price is the base price (AuctionStarted) or the bid price (NewBid).
	Price   decimal.Decimal `json:"price,omitzero"`
	EndTime time.Time       `json:"end_time,omitzero"`

	Leaderboard []Hash `json:"leaderboard,omitempty"`
}

// EventSink receives engine notifications. Emit must not fail; sinks that do
// I/O are expected to buffer or log their own errors.
type EventSink interface {
	Emit(Event)
}

// RecordingSink keeps every emitted event in order.
type RecordingSink struct {
	Events []Event
}

func (r *RecordingSink) Emit(e Event) {
	r.Events = append(r.Events, e)
}

// Kinds returns the kinds of the recorded events in emission order.
func (r *RecordingSink) Kinds() []EventKind {
	kinds := make([]EventKind, len(r.Events))
	for i, e := range r.Events {
		kinds[i] = e.Kind
	}
	return kinds
}

// Drain returns the recorded events and clears the sink.
func (r *RecordingSink) Drain() []Event {
	events := r.Events
	r.Events = nil
	return events
}

type discardSink struct{}

func (discardSink) Emit(Event) {}

func (e *Engine) emit(ev Event) {
	ev.ID = uuid.New()
	if ev.Time.IsZero() {
		ev.Time = e.clock.Now()
	}
	e.events.Emit(ev)
}
