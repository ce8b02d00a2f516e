package core

import (
	"fmt"
	"io"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// Default engine parameters.
const (
	DefaultLeaderboardSize    = 3
	DefaultMinAuctionDuration = time.Minute
	DefaultDisplayPeriod      = 10 * time.Second
)

// Config holds the tunable auction rules.
type Config struct {
	// MinAuctionDuration is how far in the future an auction's end time must be
	// when it starts. Zero disables the check.
	MinAuctionDuration time.Duration

	// DisplayPeriod throttles RefreshDisplay.
	DisplayPeriod time.Duration

	// LeaderboardSize is the number of bids tracked per auction (N).
	LeaderboardSize int
}

// DefaultConfig returns the standard auction rules.
func DefaultConfig() Config {
	return Config{
		MinAuctionDuration: DefaultMinAuctionDuration,
		DisplayPeriod:      DefaultDisplayPeriod,
		LeaderboardSize:    DefaultLeaderboardSize,
	}
}

// Ledger is the external account ledger holding free and reserved balances.
type Ledger interface {
	// Reserve moves amount from who's free balance to reserved.
	// Fails with ErrInsufficientFunds when the free balance is too small.
	Reserve(who AccountID, amount decimal.Decimal) error

	// Unreserve moves up to amount from reserved back to free and returns the
	// part that could not be released.
	Unreserve(who AccountID, amount decimal.Decimal) decimal.Decimal

	// Transfer moves amount from from's free balance to to's free balance.
	Transfer(from, to AccountID, amount decimal.Decimal) error
}

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// state holds the engine tables. Every table is keyed exactly as the persisted
// layout so snapshots are a direct dump.
type state struct {
	assets     map[Hash]*Asset
	ownerIndex map[AccountID]map[uint64]Hash
	ownerCount map[AccountID]uint64

	auctions          map[Hash]*Auction
	bids              map[Hash]*Bid
	auctionBids       map[Hash]map[uint64]Hash
	auctionBidCount   map[Hash]uint64
	auctionBidderBids map[Hash]map[AccountID]Hash
}

func newState() *state {
	return &state{
		assets:            make(map[Hash]*Asset),
		ownerIndex:        make(map[AccountID]map[uint64]Hash),
		ownerCount:        make(map[AccountID]uint64),
		auctions:          make(map[Hash]*Auction),
		bids:              make(map[Hash]*Bid),
		auctionBids:       make(map[Hash]map[uint64]Hash),
		auctionBidCount:   make(map[Hash]uint64),
		auctionBidderBids: make(map[Hash]map[AccountID]Hash),
	}
}

// idInUse reports whether id already keys any table.
func (s *state) idInUse(id Hash) bool {
	if _, ok := s.assets[id]; ok {
		return true
	}
	if _, ok := s.auctions[id]; ok {
		return true
	}
	_, ok := s.bids[id]
	return ok
}

// Engine is the auction state machine. It is not safe for concurrent use:
// callers must serialize operations (one transaction at a time).
type Engine struct {
	cfg    Config
	ledger Ledger
	clock  Clock
	events EventSink
	ids    *IDAllocator
	log    logrus.FieldLogger
	st     *state
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the system clock.
func WithClock(c Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithEventSink sets where notifications are delivered.
func WithEventSink(s EventSink) Option {
	return func(e *Engine) { e.events = s }
}

// WithEntropySource overrides crypto/rand for identifier generation.
func WithEntropySource(src EntropySource) Option {
	return func(e *Engine) { e.ids = NewIDAllocator(e.ids.Nonce(), src) }
}

// WithLogger sets the engine logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(e *Engine) { e.log = l }
}

// NewEngine creates an empty engine over the given ledger.
func NewEngine(cfg Config, ledger Ledger, opts ...Option) *Engine {
	if cfg.LeaderboardSize <= 0 {
		cfg.LeaderboardSize = DefaultLeaderboardSize
	}

	quiet := logrus.New()
	quiet.SetOutput(io.Discard)

	e := &Engine{
		cfg:    cfg,
		ledger: ledger,
		clock:  systemClock{},
		events: discardSink{},
		ids:    NewIDAllocator(0, nil),
		log:    quiet,
		st:     newState(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Config returns the rules the engine was built with.
func (e *Engine) Config() Config {
	return e.cfg
}

// Nonce returns the allocator's current nonce.
func (e *Engine) Nonce() uint64 {
	return e.ids.Nonce()
}

// allocate proposes a fresh identifier and rejects collisions with existing keys.
func (e *Engine) allocate(caller AccountID) (Allocation, error) {
	al, err := e.ids.Propose(caller)
	if err != nil {
		return Allocation{}, err
	}
	if e.st.idInUse(al.ID) {
		e.log.WithFields(logrus.Fields{"id": al.ID, "nonce": al.nonce}).Error("identifier collision")
		return Allocation{}, fmt.Errorf("%w: %s", ErrDuplicateIdentifier, al.ID)
	}
	return al, nil
}
