package id

import (
	"context"
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"
)

const feistelRounds = 4

// Sequencer hands out the next dense sequence number for a kind. Storage
// implements it inside the caller's transaction.
type Sequencer interface {
	NextSequence(ctx context.Context, kind Kind) (uint64, error)
}

// Permutation is a keyed bijection over 64-bit values.
type Permutation struct {
	roundKeys [feistelRounds]uint64
}

// NewPermutation derives round keys from secret and kind.
func NewPermutation(secret string, kind Kind) Permutation {
	var p Permutation
	for i := range p.roundKeys {
		p.roundKeys[i] = xxhash.Sum64String(fmt.Sprintf("%s\x00%s\x00%d", secret, kind, i))
	}
	return p
}

// Apply maps v to its permuted value.
func (p Permutation) Apply(v uint64) uint64 {
	left, right := uint32(v>>32), uint32(v)
	for i := 0; i < feistelRounds; i++ {
		left, right = right, left^round(p.roundKeys[i], right)
	}
	return uint64(left)<<32 | uint64(right)
}

// Invert maps a permuted value back to its input.
func (p Permutation) Invert(v uint64) uint64 {
	left, right := uint32(v>>32), uint32(v)
	for i := feistelRounds - 1; i >= 0; i-- {
		left, right = right^round(p.roundKeys[i], left), left
	}
	return uint64(left)<<32 | uint64(right)
}

func round(key uint64, half uint32) uint32 {
	var buf [12]byte
	binary.LittleEndian.PutUint64(buf[:8], key)
	binary.LittleEndian.PutUint32(buf[8:], half)
	return uint32(xxhash.Sum64(buf[:]))
}

// Allocator turns per-kind sequence numbers into opaque keys.
type Allocator struct {
	secret string
}

// NewAllocator creates an allocator keyed by secret.
func NewAllocator(secret string) *Allocator {
	return &Allocator{secret: strings.TrimSpace(secret)}
}

// Next allocates a fresh key of kind. Uniqueness follows from the sequence
// being strictly increasing and the permutation being a bijection.
func (a *Allocator) Next(ctx context.Context, seq Sequencer, kind Kind) (Key, error) {
	if seq == nil {
		return 0, fmt.Errorf("sequencer is required")
	}
	if strings.TrimSpace(string(kind)) == "" {
		return 0, fmt.Errorf("key kind is required")
	}
	perm := NewPermutation(a.secret, kind)
	for {
		n, err := seq.NextSequence(ctx, kind)
		if err != nil {
			return 0, fmt.Errorf("next %s sequence: %w", kind, err)
		}
		key := Key(perm.Apply(n))
		if key != RootKey {
			return key, nil
		}
	}
}

// Sequence recovers the sequence number behind key.
func (a *Allocator) Sequence(kind Kind, key Key) uint64 {
	return NewPermutation(a.secret, kind).Invert(uint64(key))
}
