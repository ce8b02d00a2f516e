package core

import (
	"encoding/binary"
	"errors"
	"testing"
	"time"

	"github.com/peterldowns/testy/assert"
	"github.com/shopspring/decimal"
)

var testEpoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// fakeClock is a manually advanced clock.
type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

// counterEntropy returns distinct deterministic entropy on every call.
type counterEntropy struct {
	n uint64
}

func (c *counterEntropy) Entropy() ([]byte, error) {
	c.n++
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, c.n)
	return buf, nil
}

// fixedEntropy always returns the same bytes, forcing identifier collisions
// for the same caller and nonce.
type fixedEntropy struct{}

func (fixedEntropy) Entropy() ([]byte, error) { return []byte("fixed"), nil }

// memLedger is a minimal ledger with injectable transfer failures.
type memLedger struct {
	free         map[AccountID]decimal.Decimal
	reserved     map[AccountID]decimal.Decimal
	failTransfer error
	transfers    int
}

func newMemLedger() *memLedger {
	return &memLedger{
		free:     make(map[AccountID]decimal.Decimal),
		reserved: make(map[AccountID]decimal.Decimal),
	}
}

func (l *memLedger) fund(who AccountID, amount int64) {
	l.free[who] = l.free[who].Add(decimal.NewFromInt(amount))
}

func (l *memLedger) Reserve(who AccountID, amount decimal.Decimal) error {
	if l.free[who].LessThan(amount) {
		return ErrInsufficientFunds
	}
	l.free[who] = l.free[who].Sub(amount)
	l.reserved[who] = l.reserved[who].Add(amount)
	return nil
}

func (l *memLedger) Unreserve(who AccountID, amount decimal.Decimal) decimal.Decimal {
	released := decimal.Min(amount, l.reserved[who])
	l.reserved[who] = l.reserved[who].Sub(released)
	l.free[who] = l.free[who].Add(released)
	return amount.Sub(released)
}

func (l *memLedger) Transfer(from, to AccountID, amount decimal.Decimal) error {
	if l.failTransfer != nil {
		return l.failTransfer
	}
	if l.free[from].LessThan(amount) {
		return ErrInsufficientFunds
	}
	l.free[from] = l.free[from].Sub(amount)
	l.free[to] = l.free[to].Add(amount)
	l.transfers++
	return nil
}

func (l *memLedger) freeOf(who AccountID) string     { return l.free[who].String() }
func (l *memLedger) reservedOf(who AccountID) string { return l.reserved[who].String() }

var errLedgerDown = errors.New("ledger unavailable")

// testEngine bundles an engine with its collaborators.
type testEngine struct {
	*Engine
	clock  *fakeClock
	ledger *memLedger
	events *RecordingSink
}

func newTestEngine(t *testing.T) *testEngine {
	t.Helper()
	return newTestEngineWithConfig(t, Config{
		MinAuctionDuration: time.Minute,
		DisplayPeriod:      10 * time.Second,
		LeaderboardSize:    3,
	})
}

func newTestEngineWithConfig(t *testing.T, cfg Config) *testEngine {
	t.Helper()
	clock := &fakeClock{now: testEpoch}
	ledger := newMemLedger()
	events := &RecordingSink{}
	e := NewEngine(cfg, ledger,
		WithClock(clock),
		WithEventSink(events),
		WithEntropySource(&counterEntropy{}),
	)
	return &testEngine{Engine: e, clock: clock, ledger: ledger, events: events}
}

func price(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}

// mustAuction creates an asset for owner and starts an hour-long auction on it.
func (te *testEngine) mustAuction(t *testing.T, owner AccountID, basePrice int64) (*Asset, *Auction) {
	t.Helper()
	asset, err := te.CreateAsset(owner, "X")
	assert.NoError(t, err)
	auction, err := te.StartAuction(owner, asset.ID, te.clock.Now().Add(time.Hour), price(basePrice))
	assert.NoError(t, err)
	return asset, auction
}

func (te *testEngine) mustBid(t *testing.T, bidder AccountID, auctionID Hash, amount int64) *Bid {
	t.Helper()
	bid, err := te.PlaceBid(bidder, auctionID, price(amount))
	assert.NoError(t, err)
	return bid
}

// leaderboardPrices renders the auction's leaderboard as "bidder:price" pairs.
func (te *testEngine) leaderboardPrices(t *testing.T, auctionID Hash) []string {
	t.Helper()
	bids, err := te.Leaderboard(auctionID)
	assert.NoError(t, err)
	out := make([]string, len(bids))
	for i, b := range bids {
		out[i] = string(b.Bidder) + ":" + b.Price.String()
	}
	return out
}

func errorIs(err, target error) bool {
	return errors.Is(err, target)
}
