package picourl_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vertexhub/libpico/picourl"
)

// TestParseBluetoothS6 exercises scenario S6: exact accept/reject
// cases for the btspp URL grammar (§6).
func TestParseBluetoothS6(t *testing.T) {
	bt, err := picourl.ParseBluetooth("btspp://a5c32c6100e7:23")
	require.NoError(t, err)
	require.Equal(t, "a5c32c6100e7", bt.Address)
	require.NotNil(t, bt.Port)
	require.EqualValues(t, 0x23, *bt.Port)

	bt, err = picourl.ParseBluetooth("btspp://a5c32c6100e7")
	require.NoError(t, err)
	require.Equal(t, "a5c32c6100e7", bt.Address)
	require.Nil(t, bt.Port)

	_, err = picourl.ParseBluetooth("btspp://a5c32c6100e")
	require.Error(t, err)

	_, err = picourl.ParseBluetooth("btspp://a5c32c6100e7:")
	require.Error(t, err)

	_, err = picourl.ParseBluetooth("bteep://a5c32c6100e7:23")
	require.Error(t, err)
}

func TestParseBluetoothUppercaseNormalized(t *testing.T) {
	bt, err := picourl.ParseBluetooth("btspp://A5C32C6100E7:FF")
	require.NoError(t, err)
	require.Equal(t, "a5c32c6100e7", bt.Address)
	require.EqualValues(t, 0xff, *bt.Port)
}

func TestParseRendezvousWithChannel(t *testing.T) {
	r, err := picourl.ParseRendezvous("https://pico.example.com/channel/deadbeef")
	require.NoError(t, err)
	require.Equal(t, "https://pico.example.com", r.Host)
	require.Equal(t, "deadbeef", r.ChannelID)
}

func TestParseRendezvousHostOnly(t *testing.T) {
	r, err := picourl.ParseRendezvous("http://pico.example.com")
	require.NoError(t, err)
	require.Equal(t, "http://pico.example.com", r.Host)
	require.Empty(t, r.ChannelID)
}

func TestParseRendezvousSplitsAtRightmostMarker(t *testing.T) {
	r, err := picourl.ParseRendezvous("https://pico.example.com/channel/outer/channel/inner")
	require.NoError(t, err)
	require.Equal(t, "https://pico.example.com/channel/outer", r.Host)
	require.Equal(t, "inner", r.ChannelID)
}

func TestParseRendezvousRejectsBadScheme(t *testing.T) {
	_, err := picourl.ParseRendezvous("ftp://pico.example.com")
	require.Error(t, err)
}
