package discovery

import (
	"net"
	"testing"

	"github.com/enbility/zeroconf/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntryToGateway(t *testing.T) {
	t.Run("full entry", func(t *testing.T) {
		entry := &zeroconf.ServiceEntry{
			ServiceRecord: zeroconf.ServiceRecord{Instance: "Living Room Hub"},
			HostName:      "hub.local.",
			Port:          18789,
			Text: []string{
				"name=Living Room",
				"proto=1-3",
				"tls=1",
				"path=/rpc",
			},
			AddrIPv4: []net.IP{net.ParseIP("192.168.1.20")},
			AddrIPv6: []net.IP{net.ParseIP("fe80::1")},
		}

		gw := entryToGateway(entry)
		require.NotNil(t, gw, "entry rejected")
		assert.Equal(t, "Living Room Hub", gw.InstanceName)
		assert.Equal(t, "Living Room", gw.Name)
		assert.Equal(t, 1, gw.MinProtocol)
		assert.Equal(t, 3, gw.MaxProtocol)
		assert.True(t, gw.TLS)
		assert.Equal(t, "/rpc", gw.Path)
		assert.Equal(t, []string{"192.168.1.20", "fe80::1"}, gw.Addresses)
		assert.Equal(t, "wss://192.168.1.20:18789/rpc", gw.URL())
	})

	t.Run("minimal entry defaults", func(t *testing.T) {
		entry := &zeroconf.ServiceEntry{
			ServiceRecord: zeroconf.ServiceRecord{Instance: "gw"},
			HostName:      "gw.local.",
			Port:          8080,
		}

		gw := entryToGateway(entry)
		require.NotNil(t, gw, "entry rejected")
		assert.False(t, gw.TLS)
		assert.Equal(t, "/", gw.Path)
		assert.Equal(t, "ws://gw.local:8080/", gw.URL())
	})

	t.Run("entry without port is dropped", func(t *testing.T) {
		entry := &zeroconf.ServiceEntry{
			ServiceRecord: zeroconf.ServiceRecord{Instance: "broken"},
		}
		assert.Nil(t, entryToGateway(entry))
	})

	t.Run("ipv6 address is bracketed in the url", func(t *testing.T) {
		entry := &zeroconf.ServiceEntry{
			ServiceRecord: zeroconf.ServiceRecord{Instance: "v6"},
			HostName:      "v6.local.",
			Port:          9000,
			AddrIPv6:      []net.IP{net.ParseIP("fe80::2")},
		}

		gw := entryToGateway(entry)
		require.NotNil(t, gw)
		assert.Equal(t, "ws://[fe80::2]:9000/", gw.URL())
	})
}

func TestParseProtocolRange(t *testing.T) {
	cases := []struct {
		in       string
		min, max int
	}{
		{"1-3", 1, 3},
		{"2", 2, 2},
		{"3-1", 0, 0},
		{"x-3", 0, 0},
		{"", 0, 0},
	}
	for _, tc := range cases {
		min, max := parseProtocolRange(tc.in)
		assert.Equal(t, tc.min, min, "parseProtocolRange(%q)", tc.in)
		assert.Equal(t, tc.max, max, "parseProtocolRange(%q)", tc.in)
	}
}

func TestMergeAddresses(t *testing.T) {
	got := mergeAddresses([]string{"a", "b"}, []string{"b", "c"})
	assert.Equal(t, []string{"a", "b", "c"}, got)
}
