// Package seqno implements the 32-byte big-endian sequence number used
// by the continuous re-authentication loop (§3, §4.4/§9) to detect
// gaps and reorderings between reauth rounds.
package seqno

import (
	"crypto/rand"
	"crypto/subtle"
)

// Size is the fixed byte length of a SeqNo.
const Size = 32

// SeqNo is a 32-byte, big-endian, most-significant-byte-first counter
// with wraparound increment.
type SeqNo [Size]byte

// Random returns a SeqNo seeded with cryptographic randomness, the
// form both sides start a session with.
func Random() (SeqNo, error) {
	var s SeqNo
	if _, err := rand.Read(s[:]); err != nil {
		return SeqNo{}, err
	}
	return s, nil
}

// FromBytes copies a 32-byte slice into a SeqNo. The slice must be
// exactly Size bytes long.
func FromBytes(b []byte) (SeqNo, error) {
	var s SeqNo
	if len(b) != Size {
		return SeqNo{}, &Error{Message: "seqno: want 32 bytes"}
	}
	copy(s[:], b)
	return s, nil
}

// Error is the typed error category for malformed sequence numbers.
type Error struct {
	Message string
}

func (e *Error) Error() string { return e.Message }

// Bytes returns the 32-byte big-endian encoding.
func (s SeqNo) Bytes() []byte {
	out := make([]byte, Size)
	copy(out, s[:])
	return out
}

// Equal reports byte-wise equality, per §3.
func (s SeqNo) Equal(other SeqNo) bool {
	return subtle.ConstantTimeCompare(s[:], other[:]) == 1
}

// Next returns s+1 with wraparound: incrementing 0xFF...FF yields
// 0x00...00, matching a plain big-endian unsigned counter.
func (s SeqNo) Next() SeqNo {
	next := s
	for i := Size - 1; i >= 0; i-- {
		next[i]++
		if next[i] != 0 {
			break
		}
	}
	return next
}
