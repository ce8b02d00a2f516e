package logging

import (
	"github.com/sirupsen/logrus"

	"github.com/cloudx-io/assetauction/core"
)

// EventSink writes engine notifications as structured log lines.
type EventSink struct {
	log logrus.FieldLogger
}

// NewEventSink creates a sink logging at Info level through log.
func NewEventSink(log logrus.FieldLogger) *EventSink {
	return &EventSink{log: log}
}

// Emit implements core.EventSink.
func (s *EventSink) Emit(ev core.Event) {
	fields := logrus.Fields{
		"event_id":   ev.ID.String(),
		"event_kind": string(ev.Kind),
		"event_time": ev.Time,
	}
	if !ev.AuctionID.IsZero() {
		fields["auction_id"] = ev.AuctionID.String()
	}
	if !ev.AssetID.IsZero() {
		fields["asset_id"] = ev.AssetID.String()
	}
	if ev.Owner != "" {
		fields["owner"] = ev.Owner
	}
	if ev.Winner != "" {
		fields["winner"] = ev.Winner
	}
	if !ev.Price.IsZero() {
		fields["price"] = ev.Price.String()
	}
	if len(ev.Leaderboard) > 0 {
		ids := make([]string, len(ev.Leaderboard))
		for i, id := range ev.Leaderboard {
			ids[i] = id.String()
		}
		fields["leaderboard"] = ids
	}
	s.log.WithFields(fields).Info("engine event")
}

// Fanout delivers each event to every sink in order.
type Fanout []core.EventSink

// Emit implements core.EventSink.
func (f Fanout) Emit(ev core.Event) {
	for _, sink := range f {
		sink.Emit(ev)
	}
}

var (
	_ core.EventSink = (*EventSink)(nil)
	_ core.EventSink = Fanout(nil)
)
