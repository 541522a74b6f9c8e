// Package rendezvouschannel implements channel.Channel over the
// internal/rendezvous HTTP relay: both Read and Write address the
// caller's own side — the relay delivers whatever is posted to one
// side into the other side's read queue. This is the client half of
// the demo rendezvous transport (§6's `http(s)://HOST/channel/<hex-id>`
// URL shape), parsed with picourl.
package rendezvouschannel

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"

	"github.com/vertexhub/libpico/buffer"
	"github.com/vertexhub/libpico/channel"
	"github.com/vertexhub/libpico/picourl"
)

// Side mirrors internal/rendezvous.Side without importing it, keeping
// this package usable by callers who only depend on the channel
// capability set.
type Side string

const (
	SideA Side = "a"
	SideB Side = "b"
)

// RendezvousChannel is a demo transport backed by an HTTP relay.
type RendezvousChannel struct {
	client   *http.Client
	baseURL  string // host portion, no trailing /channel/<id>
	id       string
	side     Side
	relayKey string
	timeout  time.Duration
}

var _ channel.Channel = (*RendezvousChannel)(nil)

// Dial parses a rendezvous URL of the form
// `http(s)://HOST/channel/<hex-id>` and returns a channel bound to the
// given side.
func Dial(url string, side Side, relayKey string) (*RendezvousChannel, error) {
	parsed, err := picourl.ParseRendezvous(url)
	if err != nil {
		return nil, &channel.Error{Message: "rendezvouschannel: " + err.Error()}
	}
	if parsed.ChannelID == "" {
		return nil, &channel.Error{Message: "rendezvouschannel: url has no /channel/<id> suffix"}
	}
	return &RendezvousChannel{
		client:   &http.Client{},
		baseURL:  parsed.Host,
		id:       parsed.ChannelID,
		side:     side,
		relayKey: relayKey,
		timeout:  30 * time.Second,
	}, nil
}

func (r *RendezvousChannel) url(side Side) string {
	return r.baseURL + "/channel/" + r.id + "/" + string(side)
}

// Open is a no-op: every request dials fresh over HTTP.
func (r *RendezvousChannel) Open() error { return nil }

// Close is a no-op: the relay has no per-client connection state.
func (r *RendezvousChannel) Close() error { return nil }

// Read long-polls the relay for the next frame addressed to this
// side, blocking up to the configured timeout.
func (r *RendezvousChannel) Read() ([]byte, error) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.url(r.side), nil)
	if err != nil {
		return nil, &channel.Error{Message: "rendezvouschannel: " + err.Error()}
	}
	req.Header.Set("X-Pico-Relay-Key", r.relayKey)

	resp, err := r.client.Do(req)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, channel.ErrTimeout
		}
		return nil, &channel.Error{Message: "rendezvouschannel: " + err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return nil, channel.ErrTimeout
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &channel.Error{Message: "rendezvouschannel: relay returned non-200"}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &channel.Error{Message: "rendezvouschannel: " + err.Error()}
	}
	payload, _, err := buffer.ReadLengthPrefixed(body, 0)
	if err != nil {
		return nil, &channel.Error{Message: "rendezvouschannel: " + err.Error()}
	}
	return payload, nil
}

// Write posts one length-prefixed frame under this channel's own side;
// the relay queues it for the peer.
func (r *RendezvousChannel) Write(msg []byte) error {
	framed := buffer.New(len(msg) + 4)
	buffer.AppendLengthPrefixed(framed, msg)

	req, err := http.NewRequest(http.MethodPost, r.url(r.side), bytes.NewReader(framed.Bytes()))
	if err != nil {
		return &channel.Error{Message: "rendezvouschannel: " + err.Error()}
	}
	req.Header.Set("X-Pico-Relay-Key", r.relayKey)
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := r.client.Do(req)
	if err != nil {
		return &channel.Error{Message: "rendezvouschannel: " + err.Error()}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return &channel.Error{Message: "rendezvouschannel: relay rejected write"}
	}
	return nil
}

// GetURL returns the dialed rendezvous URL: host plus "/channel/<id>".
func (r *RendezvousChannel) GetURL() string { return r.baseURL + "/channel/" + r.id }

// SetURL is unsupported after Dial; present only to satisfy
// channel.Channel.
func (r *RendezvousChannel) SetURL(url string) {}

// SetTimeout sets the per-Read deadline.
func (r *RendezvousChannel) SetTimeout(d time.Duration) { r.timeout = d }
