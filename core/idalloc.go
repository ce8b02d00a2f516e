package core

import (
	"crypto/rand"
	"fmt"
)

const entropySize = 32

// EntropySource provides the unpredictable input to identifier generation.
// This interface enables dependency injection for deterministic testing.
type EntropySource interface {
	// Entropy returns fresh random bytes.
	Entropy() ([]byte, error)
}

// cryptoEntropySource wraps crypto/rand for production use
type cryptoEntropySource struct{}

func (cryptoEntropySource) Entropy() ([]byte, error) {
	buf := make([]byte, entropySize)
	if _, err := rand.Read(buf); err != nil {
		return nil, fmt.Errorf("entropy generation failed: %w", err)
	}
	return buf, nil
}

// defaultEntropySource provides a cryptographically secure entropy source for production
var defaultEntropySource EntropySource = cryptoEntropySource{}

// IDAllocator generates identifiers from a monotonic nonce plus external entropy.
// The nonce is initialized once and only ever incremented.
type IDAllocator struct {
	nonce   uint64
	entropy EntropySource
}

// NewIDAllocator creates an allocator starting at the given nonce.
// A nil source uses crypto/rand.
func NewIDAllocator(nonce uint64, source EntropySource) *IDAllocator {
	if source == nil {
		source = defaultEntropySource
	}
	return &IDAllocator{nonce: nonce, entropy: source}
}

// Nonce returns the value the next committed allocation will consume.
func (a *IDAllocator) Nonce() uint64 {
	return a.nonce
}

// Allocation is a proposed identifier that has not consumed the nonce yet.
type Allocation struct {
	ID    Hash
	nonce uint64
	owner *IDAllocator
}

// Propose computes the identifier for the current nonce without consuming it.
// Operations propose ids before their fallible steps and commit afterwards so
// that a failed operation leaves the nonce untouched.
func (a *IDAllocator) Propose(caller AccountID) (Allocation, error) {
	entropy, err := a.entropy.Entropy()
	if err != nil {
		return Allocation{}, err
	}
	return Allocation{
		ID:    ComputeIdentifier(entropy, caller, a.nonce),
		nonce: a.nonce,
		owner: a,
	}, nil
}

// Commit consumes the nonce the allocation was computed from.
// Committing a stale allocation panics; operations are serialized so this
// indicates a programming error.
func (al Allocation) Commit() {
	if al.owner.nonce != al.nonce {
		panic(fmt.Sprintf("IDAllocator: stale allocation for nonce %d (current %d)", al.nonce, al.owner.nonce))
	}
	al.owner.nonce++
}
