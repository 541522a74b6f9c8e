// Package kdf implements the SIGMA key-derivation function (§4.4): an
// HMAC-SHA-256 block-chaining expander that turns the ECDH shared
// secret and the two exchanged nonces into an arbitrarily long keying
// stream. The teacher derives its Noise transport keys the same way —
// an io.Reader-shaped expander drained in a fixed sequence
// (noise.go's hkdf.New(...).Read(key), RFC 5869 extract-and-expand) —
// but SIGMA-I's own block-chaining construction isn't RFC 5869, so
// this package builds the chain directly over crypto/hmac+crypto/sha256
// rather than importing golang.org/x/crypto/hkdf for a shape it
// wouldn't actually use.
package kdf

import (
	"crypto/hmac"
	"crypto/sha256"
)

// Expander is the block-chaining keying stream. It is created once per
// session from the ECDH shared secret and the prover/service nonces,
// then drained in a fixed sequence of Next calls — the stream is
// stateful and each byte is produced exactly once.
type Expander struct {
	key   []byte // K = HMAC-SHA-256(Np‖Ns, S)
	np    []byte
	ns    []byte
	prev  []byte // B(k-1), empty for B0
	count uint8
	// buffered unread tail of the most recent block
	buf []byte
}

// New builds the Expander for a completed ECDH exchange: sharedSecret
// is S (the ECDH output), np and ns are the prover and service nonces
// in that order.
func New(sharedSecret, np, ns []byte) *Expander {
	keyMAC := hmac.New(sha256.New, append(append([]byte{}, np...), ns...))
	keyMAC.Write(sharedSecret)
	e := &Expander{
		key: keyMAC.Sum(nil),
		np:  append([]byte{}, np...),
		ns:  append([]byte{}, ns...),
	}
	return e
}

// nextBlock computes B(count+1) = HMAC-SHA-256(K, B(count) ‖ Np ‖ Ns ‖ [count+1])
// and advances the chain.
func (e *Expander) nextBlock() []byte {
	e.count++
	mac := hmac.New(sha256.New, e.key)
	mac.Write(e.prev)
	mac.Write(e.np)
	mac.Write(e.ns)
	mac.Write([]byte{e.count})
	block := mac.Sum(nil)
	e.prev = block
	return block
}

// Next returns the next nBits/8 bytes of the stream. nBits must be a
// multiple of 8. Calls consume the stream in order — Next(256) then
// Next(128) yields a different, non-overlapping pair of slices than
// Next(128) then Next(256).
func (e *Expander) Next(nBits int) []byte {
	n := nBits / 8
	out := make([]byte, 0, n)
	for len(out) < n {
		if len(e.buf) == 0 {
			e.buf = e.nextBlock()
		}
		take := n - len(out)
		if take > len(e.buf) {
			take = len(e.buf)
		}
		out = append(out, e.buf[:take]...)
		e.buf = e.buf[take:]
	}
	return out
}

// SigmaKeys is the five-key bundle derived once both public keys and
// both nonces are known (§3, §4.4): pMacKey and vMacKey are 256-bit
// HMAC keys, pEncKey, vEncKey and sharedKey are 128-bit AES keys.
type SigmaKeys struct {
	PMacKey   []byte
	PEncKey   []byte
	VMacKey   []byte
	VEncKey   []byte
	SharedKey []byte
}

// DeriveSigmaKeys runs the real protocol's extraction order over a
// fresh Expander: pMacKey(256) ‖ pEncKey(128) ‖ vMacKey(256) ‖
// vEncKey(128) ‖ sharedKey(128).
func DeriveSigmaKeys(sharedSecret, np, ns []byte) SigmaKeys {
	e := New(sharedSecret, np, ns)
	return SigmaKeys{
		PMacKey:   e.Next(256),
		PEncKey:   e.Next(128),
		VMacKey:   e.Next(256),
		VEncKey:   e.Next(128),
		SharedKey: e.Next(128),
	}
}
