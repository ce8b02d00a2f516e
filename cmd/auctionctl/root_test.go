package main

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"

	"github.com/cloudx-io/assetauction/core"
	"github.com/cloudx-io/assetauction/enclaveapi"
	"github.com/cloudx-io/assetauction/receipt"
)

type ctl struct {
	state string
}

func newCtl(t *testing.T) *ctl {
	t.Helper()
	return &ctl{state: filepath.Join(t.TempDir(), "state.cbor")}
}

func (c *ctl) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append([]string{"--state", c.state}, args...))
	err := cmd.Execute()
	return stdout.String(), err
}

// must runs a command that should succeed and decodes its response.
func (c *ctl) must(t *testing.T, args ...string) *enclaveapi.Response {
	t.Helper()
	out, err := c.run(t, args...)
	assert.NoError(t, err)
	var resp enclaveapi.Response
	assert.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.True(t, resp.Success)
	return &resp
}

func TestCommandStructure(t *testing.T) {
	root := newRootCmd()
	commands := [][]string{
		{"asset", "create"}, {"asset", "get"}, {"asset", "list"},
		{"auction", "start"}, {"auction", "cancel"}, {"auction", "close"},
		{"auction", "refresh"}, {"auction", "get"},
		{"bid", "place"}, {"bid", "get"},
		{"account", "deposit"}, {"account", "balance"},
		{"state", "dump"}, {"state", "check"},
		{"keygen"},
	}

	for _, path := range commands {
		t.Run(strings.Join(path, " "), func(t *testing.T) {
			cmd, _, err := root.Find(path)
			assert.NoError(t, err)
			check.Equal(t, path[len(path)-1], cmd.Name())
			check.NotEqual(t, "", cmd.Short)
		})
	}
}

func TestAuctionLifecycle(t *testing.T) {
	c := newCtl(t)
	keyPath := filepath.Join(t.TempDir(), "key.pem")
	pubPEM, err := c.run(t, "keygen", "--out", keyPath)
	assert.NoError(t, err)
	pub, err := receipt.ParsePublicKeyPEM(pubPEM)
	assert.NoError(t, err)

	at := "--at=2026-05-01T10:00:00Z"
	c.must(t, at, "--as", "bob", "account", "deposit", "500")
	created := c.must(t, at, "--as", "alice", "asset", "create", "vase")
	assetID := created.Asset.ID.String()

	started := c.must(t, at, "--as", "alice", "auction", "start", assetID, "--duration", "1h", "--base-price", "100")
	auctionID := started.Auction.ID.String()
	check.Equal(t, core.AuctionOngoing, started.Auction.Status)

	bid := c.must(t, at, "--as", "bob", "bid", "place", auctionID, "150")
	check.Equal(t, "150", bid.Bid.Price.String())

	byAuction := c.must(t, at, "--as", "bob", "bid", "get", auctionID)
	check.Equal(t, bid.Bid.ID, byAuction.Bid.ID)

	closed := c.must(t, "--at=2026-05-01T12:00:00Z", "--signing-key", keyPath, "auction", "close", auctionID)
	check.Equal(t, core.AuctionClosed, closed.Auction.Status)
	assert.NotEqual(t, "", closed.Receipt.String())

	msg, err := closed.Receipt.Decode()
	assert.NoError(t, err)
	r, err := receipt.Verify(msg, pub)
	assert.NoError(t, err)
	check.Equal(t, core.AccountID("bob"), r.Winner)
	check.Equal(t, core.AccountID("alice"), r.PreviousOwner)

	balance := c.must(t, "--as", "alice", "account", "balance")
	check.Equal(t, "150", balance.Balance.Free.String())

	listed := c.must(t, "asset", "list", "--owner", "bob")
	check.Equal(t, []core.Hash{created.Asset.ID}, listed.Assets)

	out, err := c.run(t, "state", "check")
	assert.NoError(t, err)
	check.Equal(t, "ok\n", out)
}

func TestFailedRequestReturnsError(t *testing.T) {
	c := newCtl(t)
	created := c.must(t, "--as", "alice", "asset", "create", "vase")
	started := c.must(t, "--as", "alice", "auction", "start", created.Asset.ID.String(), "--base-price", "100")

	out, err := c.run(t, "--as", "carol", "bid", "place", started.Auction.ID.String(), "150")

	check.Error(t, err)
	var resp enclaveapi.Response
	assert.NoError(t, json.Unmarshal([]byte(out), &resp))
	check.False(t, resp.Success)
	check.Equal(t, "reserve_failed", resp.ErrorKind)
}

func TestStateIsNotSavedOnFailure(t *testing.T) {
	c := newCtl(t)
	c.must(t, "--as", "alice", "asset", "create", "vase")

	_, err := c.run(t, "--as", "alice", "auction", "cancel", core.Hash{1}.String())
	check.Error(t, err)

	out, err := c.run(t, "state", "dump")
	assert.NoError(t, err)
	var dump struct {
		Engine core.Snapshot `json:"Engine"`
	}
	assert.NoError(t, json.Unmarshal([]byte(out), &dump))
	check.Equal(t, 1, len(dump.Engine.Assets))
	check.Equal(t, 0, len(dump.Engine.Auctions))
}

func TestArgumentErrors(t *testing.T) {
	c := newCtl(t)

	_, err := c.run(t, "asset", "get", "not-hex")
	check.Error(t, err)

	_, err = c.run(t, "account", "deposit", "lots")
	check.Error(t, err)

	_, err = c.run(t, "--at", "yesterday", "asset", "list")
	check.Error(t, err)

	_, err = c.run(t, "bid", "get")
	check.Error(t, err)
}
