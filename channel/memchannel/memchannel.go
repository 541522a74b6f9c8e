// Package memchannel implements channel.Channel over a pair of
// in-process Go channels, the test double used for the S1 echo
// scenario and for exercising the FSMs/drivers without a real
// transport. Messages are inherently discrete on a Go channel, so no
// additional byte-stream framing is layered on top here — the 4-byte
// length-prefix framing in §6 exists to delimit messages within a
// continuous stream (rendezvous HTTP bodies, raw sockets), which this
// transport never has.
package memchannel

import (
	"time"

	"github.com/vertexhub/libpico/channel"
)

// Pair returns two connected Channel endpoints: writes on one are
// readable from the other.
func Pair() (*MemChannel, *MemChannel) {
	ab := make(chan []byte, 16)
	ba := make(chan []byte, 16)
	a := &MemChannel{out: ab, in: ba, timeout: 5 * time.Second}
	b := &MemChannel{out: ba, in: ab, timeout: 5 * time.Second}
	return a, b
}

// MemChannel is one end of an in-process channel pair.
type MemChannel struct {
	out     chan []byte
	in      chan []byte
	timeout time.Duration
	url     string
	closed  bool
}

var _ channel.Channel = (*MemChannel)(nil)

// Open is a no-op: the pair is ready to use as soon as Pair returns.
func (m *MemChannel) Open() error {
	return nil
}

// Close marks the channel closed; further Read/Write calls fail.
func (m *MemChannel) Close() error {
	m.closed = true
	return nil
}

// Read blocks for up to the configured timeout for the next message.
func (m *MemChannel) Read() ([]byte, error) {
	if m.closed {
		return nil, channel.ErrClosed
	}
	select {
	case msg, ok := <-m.in:
		if !ok {
			return nil, channel.ErrClosed
		}
		return msg, nil
	case <-time.After(m.timeout):
		return nil, channel.ErrTimeout
	}
}

// Write sends msg to the paired endpoint.
func (m *MemChannel) Write(msg []byte) error {
	if m.closed {
		return channel.ErrClosed
	}
	cp := append([]byte(nil), msg...)
	select {
	case m.out <- cp:
		return nil
	default:
		return &channel.Error{Message: "memchannel: peer buffer full"}
	}
}

// GetURL returns the last value set with SetURL.
func (m *MemChannel) GetURL() string { return m.url }

// SetURL records a logical address for this endpoint (unused for
// routing — memchannel pairs are already wired by Pair).
func (m *MemChannel) SetURL(url string) { m.url = url }

// SetTimeout sets the Read timeout.
func (m *MemChannel) SetTimeout(d time.Duration) { m.timeout = d }
