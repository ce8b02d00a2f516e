package statefile

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"
	"github.com/shopspring/decimal"

	"github.com/cloudx-io/assetauction/core"
	"github.com/cloudx-io/assetauction/ledger"
)

var epoch = time.Date(2026, 3, 1, 12, 0, 0, 123456789, time.UTC)

func clockAt(t *time.Time) core.Option {
	return core.WithClock(core.ClockFunc(func() time.Time { return *t }))
}

// buildState runs a settled auction and leaves a second one open.
func buildState(t *testing.T, now *time.Time) (*core.Engine, *ledger.Ledger) {
	t.Helper()
	l := ledger.New()
	assert.NoError(t, l.Deposit("bob", decimal.NewFromInt(1000)))
	assert.NoError(t, l.Deposit("carol", decimal.RequireFromString("250.125")))
	e := core.NewEngine(core.DefaultConfig(), l, clockAt(now))

	asset, err := e.CreateAsset("alice", "Painting")
	assert.NoError(t, err)
	auction, err := e.StartAuction("alice", asset.ID, now.Add(time.Hour), decimal.NewFromInt(100))
	assert.NoError(t, err)
	_, err = e.PlaceBid("bob", auction.ID, decimal.NewFromInt(150))
	assert.NoError(t, err)
	*now = now.Add(time.Hour)
	_, err = e.CloseAuction(auction.ID)
	assert.NoError(t, err)

	other, err := e.CreateAsset("bob", "Vase")
	assert.NoError(t, err)
	open, err := e.StartAuction("bob", other.ID, now.Add(time.Hour), decimal.NewFromInt(10))
	assert.NoError(t, err)
	_, err = e.PlaceBid("carol", open.ID, decimal.RequireFromString("12.5"))
	assert.NoError(t, err)
	return e, l
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	now := epoch
	e, l := buildState(t, &now)
	path := filepath.Join(t.TempDir(), "state.cbor")

	assert.NoError(t, Save(path, e, l))
	loaded, loadedLedger, err := Load(path, core.DefaultConfig(), clockAt(&now))

	assert.NoError(t, err)
	check.Equal(t, e.Snapshot(), loaded.Snapshot())
	check.Equal(t, e.Nonce(), loaded.Nonce())
	check.Equal(t, "850", loadedLedger.Balance("bob").Free.String())
	check.Equal(t, "150", loadedLedger.Balance("alice").Free.String())
	check.Equal(t, "12.5", loadedLedger.Balance("carol").Reserved.String())

	// Nanosecond timestamps survive.
	snap := loaded.Snapshot()
	for _, a := range snap.Auctions {
		check.True(t, a.StartTime.Equal(epoch) || a.StartTime.Equal(epoch.Add(time.Hour)))
	}
}

func TestLoad_MissingFileStartsEmpty(t *testing.T) {
	e, l, err := Load(filepath.Join(t.TempDir(), "absent.cbor"), core.DefaultConfig())

	assert.NoError(t, err)
	check.Equal(t, uint64(0), e.Nonce())
	check.Equal(t, 0, len(l.Snapshot()))
}

func TestLoadedEngineKeepsWorking(t *testing.T) {
	now := epoch
	e, l := buildState(t, &now)
	data, err := Encode(e, l)
	assert.NoError(t, err)

	loaded, loadedLedger, err := Decode(data, core.DefaultConfig(), clockAt(&now))
	assert.NoError(t, err)

	assets := loaded.AssetsOf("bob")
	assert.Equal(t, 2, len(assets))
	auction, ok := loaded.OngoingAuctionFor(assets[1])
	assert.True(t, ok)

	now = now.Add(time.Hour)
	closed, err := loaded.CloseAuction(auction.ID)
	assert.NoError(t, err)
	check.Equal(t, core.AccountID("carol"), closed.Settlement.Winner)
	check.Equal(t, "862.5", loadedLedger.Balance("bob").Free.String())
	assert.NoError(t, loaded.CheckInvariants())
}

func TestDecode_RejectsUnknownVersion(t *testing.T) {
	data, err := cbor.Marshal(File{Version: 99})
	assert.NoError(t, err)

	_, _, err = Decode(data, core.DefaultConfig())

	check.Error(t, err)
}

func TestDecode_RejectsGarbage(t *testing.T) {
	_, _, err := Decode([]byte{0xff, 0x00}, core.DefaultConfig())

	check.Error(t, err)
}

func TestSave_ReplacesExistingFile(t *testing.T) {
	now := epoch
	e, l := buildState(t, &now)
	path := filepath.Join(t.TempDir(), "state.cbor")
	assert.NoError(t, os.WriteFile(path, []byte("old"), 0o600))

	assert.NoError(t, Save(path, e, l))

	entries, err := os.ReadDir(filepath.Dir(path))
	assert.NoError(t, err)
	check.Equal(t, 1, len(entries))
	_, _, err = Load(path, core.DefaultConfig())
	check.NoError(t, err)
}
