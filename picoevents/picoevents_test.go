package picoevents_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vertexhub/libpico/picoevents"
)

func TestDispatchDeliversToMatchingWebhookOnly(t *testing.T) {
	var mu sync.Mutex
	var received []picoevents.Event
	done := make(chan struct{}, 1)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var evt picoevents.Event
		require.NoError(t, json.NewDecoder(r.Body).Decode(&evt))
		mu.Lock()
		received = append(received, evt)
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
		done <- struct{}{}
	}))
	defer server.Close()

	d := picoevents.NewDispatcher(nil)
	d.Register(server.URL, []string{picoevents.EventSessionAuthenticated}, "")
	d.Register(server.URL, []string{picoevents.EventSessionError}, "")

	d.Dispatch(picoevents.EventSessionAuthenticated, map[string]string{"pico": "alice"})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("webhook was not delivered in time")
	}

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, received, 1)
	require.Equal(t, picoevents.EventSessionAuthenticated, received[0].Type)
}

func TestDispatchSignsPayloadWhenSecretSet(t *testing.T) {
	done := make(chan string, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		done <- r.Header.Get("X-Pico-Signature")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	d := picoevents.NewDispatcher(nil)
	d.Register(server.URL, []string{"*"}, "sharedsecret")
	d.Dispatch(picoevents.EventSessionEnded, nil)

	select {
	case sig := <-done:
		require.NotEmpty(t, sig)
		require.Contains(t, sig, "sha256=")
	case <-time.After(2 * time.Second):
		t.Fatal("webhook was not delivered in time")
	}
}

func TestUnregisterUnknownWebhookErrors(t *testing.T) {
	d := picoevents.NewDispatcher(nil)
	err := d.Unregister("wh_doesnotexist")
	require.ErrorIs(t, err, picoevents.ErrWebhookNotFound)
}

func TestListRedactsSecret(t *testing.T) {
	d := picoevents.NewDispatcher(nil)
	d.Register("https://example.com/hook", []string{"*"}, "topsecret")
	list := d.List()
	require.Len(t, list, 1)
	require.Equal(t, "***", list[0].Secret)
}
