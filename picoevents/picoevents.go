// Package picoevents dispatches session-lifecycle notifications to
// registered HTTP webhooks, adapted from the teacher's
// internal/webhook.Dispatcher: same registration map, HMAC-signed
// payload, retry-with-backoff delivery loop, retargeted from WhatsApp
// message/session events to SIGMA-I session events. Unlike the
// teacher's dispatcher, Dispatch also knows the shape of the SIGMA-I
// event stream it carries: the continuous reauth loop (§4.9) can call
// Dispatch once per round, so EventSessionReauth/EventSessionPaused
// are coalesced per webhook (see flappingEvents, coalesce) and
// normalized into a stable {phase, round, extra} payload (see
// shapePayload) instead of forwarding whatever ad hoc data the caller
// passed for that round.
package picoevents

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vertexhub/libpico/picolog"
)

// Event types this package emits over the lifetime of one SIGMA-I
// session, mirroring the state chains §4.8 names.
const (
	EventSessionAuthenticated = "session.authenticated"
	EventSessionAuthFailed    = "session.auth_failed"
	EventSessionReauth        = "session.reauth"
	EventSessionPaused        = "session.paused"
	EventSessionEnded         = "session.ended"
	EventSessionError         = "session.error"
)

// flappingEvents are the event types the continuous reauth loop (§4.9)
// can emit once per round — as often as every active_timeout_ms, which
// the recognized-configuration table allows down to a few seconds.
// Re-delivering every single occurrence to the same webhook would
// flood it with near-duplicate notifications, so these are coalesced
// within reauthCoalesceWindow of each other.
var flappingEvents = map[string]bool{
	EventSessionReauth: true,
	EventSessionPaused: true,
}

// reauthCoalesceWindow bounds how often a flapping event type is
// allowed to reach a given webhook.
const reauthCoalesceWindow = 2 * time.Second

// Webhook is a registered delivery target.
type Webhook struct {
	ID        string    `json:"id"`
	URL       string    `json:"url"`
	Events    []string  `json:"events"`
	Secret    string    `json:"secret,omitempty"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"createdAt"`
}

// Event is one dispatched notification.
type Event struct {
	Type      string      `json:"event"`
	Timestamp time.Time   `json:"timestamp"`
	WebhookID string      `json:"webhookId,omitempty"`
	Signature string      `json:"signature,omitempty"`
	Data      interface{} `json:"data"`
}

// Error is the typed error category for dispatcher failures.
type Error struct {
	Message string
}

func (e *Error) Error() string { return e.Message }

// ErrWebhookNotFound is returned by Unregister for an unknown id.
var ErrWebhookNotFound = &Error{Message: "webhook not found"}

// Dispatcher fans session-lifecycle events out to every webhook
// registered for that event type (or "*").
type Dispatcher struct {
	webhooks   map[string]*Webhook
	mu         sync.RWMutex
	lastSent   map[string]time.Time // "webhookID|eventType" -> last dispatch time, see coalesce
	logger     *zap.SugaredLogger
	httpClient *http.Client
	maxRetries int
}

// NewDispatcher builds a Dispatcher. A nil logger is replaced with a
// no-op one (picolog.OrNop).
func NewDispatcher(logger *zap.SugaredLogger) *Dispatcher {
	return &Dispatcher{
		webhooks:   make(map[string]*Webhook),
		lastSent:   make(map[string]time.Time),
		logger:     picolog.OrNop(logger),
		httpClient: &http.Client{Timeout: 10 * time.Second},
		maxRetries: 3,
	}
}

// Register adds a webhook subscribed to the given event types ("*" for
// all).
func (d *Dispatcher) Register(url string, events []string, secret string) *Webhook {
	d.mu.Lock()
	defer d.mu.Unlock()

	wh := &Webhook{
		ID:        "wh_" + uuid.New().String()[:8],
		URL:       url,
		Events:    events,
		Secret:    secret,
		Active:    true,
		CreatedAt: time.Now(),
	}
	d.webhooks[wh.ID] = wh
	d.logger.Infof("registered webhook %s for events %v", wh.ID, events)
	return wh
}

// Unregister removes a webhook by id.
func (d *Dispatcher) Unregister(id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.webhooks[id]; !ok {
		return ErrWebhookNotFound
	}
	delete(d.webhooks, id)
	d.logger.Infof("unregistered webhook %s", id)
	return nil
}

// List returns the registered webhooks with their secrets redacted.
func (d *Dispatcher) List() []*Webhook {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]*Webhook, 0, len(d.webhooks))
	for _, wh := range d.webhooks {
		whCopy := *wh
		if whCopy.Secret != "" {
			whCopy.Secret = "***"
		}
		out = append(out, &whCopy)
	}
	return out
}

// Dispatch delivers eventType to every matching, active webhook
// concurrently; failures are logged, not returned, since delivery is
// fire-and-forget from the caller's perspective. Flapping event types
// (flappingEvents) are coalesced per webhook within
// reauthCoalesceWindow so a fast continuous-loop round doesn't flood a
// listener with one webhook call per round.
func (d *Dispatcher) Dispatch(eventType string, data interface{}) {
	d.mu.RLock()
	matching := make([]*Webhook, 0)
	for _, wh := range d.webhooks {
		if !wh.Active {
			continue
		}
		for _, evt := range wh.Events {
			if evt == eventType || evt == "*" {
				matching = append(matching, wh)
				break
			}
		}
	}
	d.mu.RUnlock()

	shaped := shapePayload(eventType, data)
	for _, wh := range matching {
		if flappingEvents[eventType] && d.coalesce(wh.ID, eventType) {
			d.logger.Debugf("coalesced %s for webhook %s", eventType, wh.ID)
			continue
		}
		go d.send(wh, eventType, shaped)
	}
}

// coalesce reports whether eventType was already sent to webhookID
// within reauthCoalesceWindow, and records the time of each call it
// lets through, so a burst of flapping events collapses to roughly
// one delivery per window instead of one per continuous-loop round.
func (d *Dispatcher) coalesce(webhookID, eventType string) bool {
	key := webhookID + "|" + eventType
	now := time.Now()

	d.mu.Lock()
	defer d.mu.Unlock()
	last, seen := d.lastSent[key]
	if seen && now.Sub(last) < reauthCoalesceWindow {
		return true
	}
	d.lastSent[key] = now
	return false
}

// reauthPayload is the normalized shape for EventSessionReauth/
// EventSessionPaused data: listeners can rely on a "phase" field
// without special-casing whatever shape the caller happened to pass
// for the loop's opaque per-round extra data.
type reauthPayload struct {
	Phase string      `json:"phase"`
	Round interface{} `json:"round,omitempty"`
	Extra interface{} `json:"extra,omitempty"`
}

// shapePayload normalizes data into a stable per-event-type structure.
// Most event types (auth/ended/error) pass their caller-supplied data
// through unchanged; the two flapping reauth-phase events get the
// extra layer of structure listeners need to tell rounds apart without
// parsing the caller's ad hoc map shape.
func shapePayload(eventType string, data interface{}) interface{} {
	if !flappingEvents[eventType] {
		return data
	}
	phase := "continue"
	if eventType == EventSessionPaused {
		phase = "paused"
	}
	payload := reauthPayload{Phase: phase}
	if m, ok := data.(map[string]any); ok {
		rest := make(map[string]any, len(m))
		for k, v := range m {
			if k == "round" {
				payload.Round = v
				continue
			}
			rest[k] = v
		}
		if len(rest) > 0 {
			payload.Extra = rest
		}
	} else if data != nil {
		payload.Extra = data
	}
	return payload
}

func (d *Dispatcher) send(wh *Webhook, eventType string, data interface{}) {
	event := Event{Type: eventType, Timestamp: time.Now(), WebhookID: wh.ID, Data: data}
	if wh.Secret != "" {
		event.Signature = sign(event, wh.Secret)
	}

	payload, err := json.Marshal(event)
	if err != nil {
		d.logger.Errorf("marshal webhook payload: %v", err)
		return
	}

	for attempt := 0; attempt <= d.maxRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(time.Duration(attempt*attempt) * time.Second)
		}

		req, err := http.NewRequest(http.MethodPost, wh.URL, bytes.NewReader(payload))
		if err != nil {
			d.logger.Errorf("build webhook request: %v", err)
			continue
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Pico-Webhook-ID", wh.ID)
		req.Header.Set("X-Pico-Event", eventType)
		if event.Signature != "" {
			req.Header.Set("X-Pico-Signature", event.Signature)
		}

		resp, err := d.httpClient.Do(req)
		if err != nil {
			d.logger.Warnf("webhook delivery failed (attempt %d): %v", attempt+1, err)
			continue
		}
		resp.Body.Close()

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			d.logger.Debugf("webhook delivered: %s -> %s", eventType, wh.URL)
			return
		}
		d.logger.Warnf("webhook returned %d (attempt %d)", resp.StatusCode, attempt+1)
	}
	d.logger.Errorf("failed to deliver webhook after %d attempts: %s", d.maxRetries+1, wh.URL)
}

func sign(event Event, secret string) string {
	payload, _ := json.Marshal(event.Data)
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(payload)
	return "sha256=" + hex.EncodeToString(h.Sum(nil))
}
