package core

import (
	"testing"
	"time"

	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"
)

// populated builds an engine with one closed, one cancelled and one ongoing auction.
func populated(t *testing.T) *testEngine {
	t.Helper()
	te := newTestEngine(t)
	for _, who := range []AccountID{"B", "C", "D"} {
		te.ledger.fund(who, 1000)
	}

	_, closed := te.mustAuction(t, "A", 100)
	te.mustBid(t, "B", closed.ID, 120)
	te.mustBid(t, "C", closed.ID, 130)

	_, cancelled := te.mustAuction(t, "A", 10)
	assert.NoError(t, te.CancelAuction("A", cancelled.ID))

	te.clock.Advance(time.Hour)
	_, err := te.CloseAuction(closed.ID)
	assert.NoError(t, err)

	_, ongoing := te.mustAuction(t, "D", 50)
	te.mustBid(t, "B", ongoing.ID, 60)
	te.mustBid(t, "C", ongoing.ID, 55)
	return te
}

func TestSnapshot_RestoreRoundTrip(t *testing.T) {
	te := populated(t)
	snap := te.Snapshot()

	restored, err := Restore(te.Config(), te.ledger, snap, WithClock(te.clock))

	assert.NoError(t, err)
	check.Equal(t, snap, restored.Snapshot())
	check.Equal(t, te.Nonce(), restored.Nonce())
	check.Equal(t, te.AssetsOf("C"), restored.AssetsOf("C"))
	check.Equal(t, te.AssetsOf("D"), restored.AssetsOf("D"))
}

func TestSnapshot_RestoredEngineContinues(t *testing.T) {
	te := populated(t)
	snap := te.Snapshot()
	var ongoing Hash
	for _, a := range snap.Auctions {
		if a.Status == AuctionOngoing {
			ongoing = a.ID
		}
	}

	restored, err := Restore(te.Config(), te.ledger, snap, WithClock(te.clock), WithEntropySource(&counterEntropy{n: 1000}))
	assert.NoError(t, err)

	_, err = restored.PlaceBid("B", ongoing, price(70))
	assert.NoError(t, err)
	check.Equal(t, snap.Nonce, restored.Nonce())

	te.clock.Advance(time.Hour)
	closed, err := restored.CloseAuction(ongoing)
	assert.NoError(t, err)
	check.Equal(t, AccountID("B"), closed.Settlement.Winner)
	// C paid 130 for the first asset and got the 55 escrow back.
	check.Equal(t, "870", te.ledger.freeOf("C"))
	assert.NoError(t, restored.CheckInvariants())
}

func TestSnapshot_Deterministic(t *testing.T) {
	te := populated(t)

	check.Equal(t, te.Snapshot(), te.Snapshot())
}

func TestRestore_RejectsInconsistentSnapshot(t *testing.T) {
	te := populated(t)

	t.Run("owner index gap", func(t *testing.T) {
		snap := te.Snapshot()
		snap.OwnerIndex = snap.OwnerIndex[1:]
		_, err := Restore(te.Config(), te.ledger, snap)
		check.True(t, errorIs(err, ErrInvalidState))
	})

	t.Run("in_auction without ongoing auction", func(t *testing.T) {
		snap := te.Snapshot()
		for i := range snap.Assets {
			snap.Assets[i].InAuction = true
		}
		_, err := Restore(te.Config(), te.ledger, snap)
		check.True(t, errorIs(err, ErrInvalidState))
	})

	t.Run("leaderboard out of order", func(t *testing.T) {
		snap := te.Snapshot()
		for i := range snap.Auctions {
			lb := snap.Auctions[i].Leaderboard
			if len(lb) == 2 {
				lb[0], lb[1] = lb[1], lb[0]
			}
		}
		_, err := Restore(te.Config(), te.ledger, snap)
		check.True(t, errorIs(err, ErrInvalidState))
	})
}

func TestRestore_Empty(t *testing.T) {
	e, err := Restore(DefaultConfig(), newMemLedger(), Snapshot{})

	assert.NoError(t, err)
	check.Equal(t, uint64(0), e.Nonce())
}

func TestReset_DiscardsLaterChanges(t *testing.T) {
	te := populated(t)
	snap := te.Snapshot()

	_, created := te.mustAuction(t, "C", 40)
	te.mustBid(t, "D", created.ID, 45)

	assert.NoError(t, te.Reset(snap))
	check.Equal(t, snap, te.Snapshot())
	check.Equal(t, snap.Nonce, te.Nonce())
	_, err := te.Auction(created.ID)
	check.True(t, errorIs(err, ErrNotFound))
}

func TestReset_InconsistentSnapshotKeepsState(t *testing.T) {
	te := populated(t)
	before := te.Snapshot()

	bad := te.Snapshot()
	bad.OwnerIndex = bad.OwnerIndex[1:]

	check.True(t, errorIs(te.Reset(bad), ErrInvalidState))
	check.Equal(t, before, te.Snapshot())
}
