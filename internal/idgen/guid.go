// Package idgen generates cortex row/tufo identifiers.
package idgen

import (
	"crypto/rand"
	"encoding/hex"
	"time"
)

// Guid returns a 128-bit opaque identifier rendered as a 32-char lowercase
// hex string (spec.md §3). This is the Go equivalent of the original
// source's `guid()` (os.urandom(16) + hexlify): a non-UUID, non-dashed
// random hex identifier. No third-party ID generator in the example pack
// produces this exact format (UUID libraries emit dashed/versioned
// strings; the teacher's own idgen produces short base36 issue IDs with a
// prefix) so this stays on crypto/rand + encoding/hex.
func Guid() string {
	var buf [16]byte
	if _, err := rand.Read(buf[:]); err != nil {
		panic(err) // crypto/rand failing is unrecoverable
	}
	return hex.EncodeToString(buf[:])
}

// Now returns the current time in milliseconds since epoch, the unit
// every Row.Time value uses (spec.md §3).
func Now() int64 {
	return time.Now().UnixMilli()
}
