// Package id allocates opaque entity keys.
//
// Keys are dense per kind (one sequence per kind) but are passed through a
// keyed 64-bit permutation before being handed out, so consecutive
// allocations do not look sequential. Keys render as 11 character base64url
// strings.
package id

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"strings"
)

// Key is an opaque 64-bit entity identifier.
type Key int64

// RootKey is the key of the root realm. The allocator never produces it.
const RootKey Key = 0

// Kind names an independent key space.
type Kind string

// Key spaces used by the realm tree and its content.
const (
	KindRealm  Kind = "realm"
	KindEvent  Kind = "event"
	KindSeries Kind = "series"
	KindBlock  Kind = "block"
)

var keyEncoding = base64.RawURLEncoding

// String renders the key as base64url of its big-endian bytes.
func (k Key) String() string {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(k))
	return keyEncoding.EncodeToString(buf[:])
}

// ParseKey decodes a key rendered by Key.String.
func ParseKey(value string) (Key, error) {
	value = strings.TrimSpace(value)
	if len(value) != 11 {
		return 0, fmt.Errorf("key %q: want 11 characters, got %d", value, len(value))
	}
	raw, err := keyEncoding.DecodeString(value)
	if err != nil {
		return 0, fmt.Errorf("key %q: %w", value, err)
	}
	return Key(binary.BigEndian.Uint64(raw)), nil
}
