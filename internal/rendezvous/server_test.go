package rendezvous

import (
	"bytes"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vertexhub/libpico/buffer"
)

func frame(payload []byte) []byte {
	b := buffer.New(len(payload) + 4)
	buffer.AppendLengthPrefixed(b, payload)
	return b.Bytes()
}

func TestPostThenGetDeliversAcrossSides(t *testing.T) {
	t.Setenv("PICO_RELAY_KEY", "dev-relay-key")
	s := NewServer(ServerConfig{})

	req := httptest(t, http.MethodPost, "/channel/abc123/a", frame([]byte("hello from a")))
	resp, err := s.app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	getReq := httptest(t, http.MethodGet, "/channel/abc123/b", nil)
	getResp, err := s.app.Test(getReq)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, getResp.StatusCode)

	body, err := io.ReadAll(getResp.Body)
	require.NoError(t, err)
	payload, _, err := buffer.ReadLengthPrefixed(body, 0)
	require.NoError(t, err)
	require.Equal(t, "hello from a", string(payload))
}

func TestRejectsMissingRelayKey(t *testing.T) {
	s := NewServer(ServerConfig{})
	req, err := http.NewRequest(http.MethodPost, "/channel/abc/a", bytes.NewReader(frame([]byte("x"))))
	require.NoError(t, err)
	resp, err := s.app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestRejectsInvalidSide(t *testing.T) {
	t.Setenv("PICO_RELAY_KEY", "dev-relay-key")
	s := NewServer(ServerConfig{})
	req := httptest(t, http.MethodGet, "/channel/abc/c", nil)
	resp, err := s.app.Test(req)
	require.NoError(t, err)
	require.NotEqual(t, http.StatusOK, resp.StatusCode)
}

func httptest(t *testing.T, method, path string, body []byte) *http.Request {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, path, reader)
	require.NoError(t, err)
	req.Header.Set("X-Pico-Relay-Key", "dev-relay-key")
	return req
}
