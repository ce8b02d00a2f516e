package core

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"
)

func TestComputeIdentifier(t *testing.T) {
	entropy := []byte("entropy")

	id := ComputeIdentifier(entropy, "alice", 7)

	// Same inputs should produce same identifier (deterministic)
	check.Equal(t, id, ComputeIdentifier(entropy, "alice", 7))

	// Each input participates
	check.NotEqual(t, id, ComputeIdentifier(entropy, "alice", 8))
	check.NotEqual(t, id, ComputeIdentifier(entropy, "bob", 7))
	check.NotEqual(t, id, ComputeIdentifier([]byte("other"), "alice", 7))
}

func TestComputeIdentifier_Formula(t *testing.T) {
	entropy := []byte{0xde, 0xad}
	var n [8]byte
	binary.BigEndian.PutUint64(n[:], 42)

	data := append([]byte{}, entropy...)
	data = append(data, '|')
	data = append(data, "caller"...)
	data = append(data, '|')
	data = append(data, n[:]...)
	expected := sha256.Sum256(data)

	check.Equal(t, Hash(expected), ComputeIdentifier(entropy, "caller", 42))
}

func TestComputeSettlementDigest(t *testing.T) {
	auctionID := Hash{1}
	assetID := Hash{2}
	settledAt := time.Date(2026, 3, 1, 13, 0, 0, 0, time.UTC)
	record := SettlementRecord{SettledAt: settledAt, Winner: "bob", Price: price(120)}

	digest := ComputeSettlementDigest(auctionID, assetID, "alice", record)

	data := fmt.Sprintf("%s|%s|alice|bob|120|%d", auctionID, assetID, settledAt.UnixNano())
	expected := fmt.Sprintf("%x", sha256.Sum256([]byte(data)))
	check.Equal(t, expected, digest)
	check.Equal(t, 64, len(digest))

	// Equal amounts with different exponents hash the same
	record.Price = price(12000).Shift(-2)
	check.Equal(t, digest, ComputeSettlementDigest(auctionID, assetID, "alice", record))

	record.Winner = "carol"
	check.NotEqual(t, digest, ComputeSettlementDigest(auctionID, assetID, "alice", record))
}

func TestHash_TextRoundTrip(t *testing.T) {
	id := ComputeIdentifier([]byte("x"), "alice", 1)

	parsed, err := ParseHash(id.String())
	assert.NoError(t, err)
	check.Equal(t, id, parsed)

	raw, err := json.Marshal(id)
	assert.NoError(t, err)
	check.Equal(t, `"`+id.String()+`"`, string(raw))
}

func TestParseHash_Invalid(t *testing.T) {
	for _, s := range []string{"", "zz", "abcd", id64("g")} {
		_, err := ParseHash(s)
		check.True(t, errorIs(err, ErrInvalidInput))
	}
}

func TestHash_IsZero(t *testing.T) {
	check.True(t, Hash{}.IsZero())
	check.False(t, Hash{1}.IsZero())
}

func id64(c string) string {
	out := ""
	for i := 0; i < 64; i++ {
		out += c
	}
	return out
}
