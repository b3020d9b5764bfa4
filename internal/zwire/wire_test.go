package zwire_test

import (
	"bufio"
	"bytes"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nextwire/bgpscand/internal/nexthop"
	"github.com/nextwire/bgpscand/internal/zwire"
)

func TestWriteReadMessageRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)
	body := []byte{1, 2, 3, 4}
	require.NoError(t, zwire.WriteMessage(w, zwire.CmdIPv4NexthopLookup, body))

	r := bufio.NewReader(&buf)
	cmd, got, err := zwire.ReadMessage(r)
	require.NoError(t, err)
	require.Equal(t, zwire.CmdIPv4NexthopLookup, cmd)
	require.Equal(t, body, got)
}

func TestReadMessageBadMarker(t *testing.T) {
	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)
	require.NoError(t, zwire.WriteMessage(w, zwire.CmdIPv4NexthopLookup, nil))

	raw := buf.Bytes()
	raw[2] = 0xAB // corrupt the marker byte

	r := bufio.NewReader(bytes.NewReader(raw))
	_, _, err := zwire.ReadMessage(r)
	require.Error(t, err)
}

func TestNexthopLookupV4ResponseRoundTrip(t *testing.T) {
	addr := netip.MustParseAddr("192.0.2.1")
	resp := encodeV4NexthopResponse(t, addr, 20, []nexthop.NextHop{
		{Tag: nexthop.TagIPv4Gate, Gate4: netip.MustParseAddr("192.0.2.254")},
	})

	gotAddr, metric, nhs, err := zwire.DecodeNexthopLookupV4Response(resp)
	require.NoError(t, err)
	require.Equal(t, addr, gotAddr)
	require.Equal(t, uint32(20), metric)
	require.Len(t, nhs, 1)
	require.Equal(t, nexthop.TagIPv4Gate, nhs[0].Tag)
	require.Equal(t, netip.MustParseAddr("192.0.2.254"), nhs[0].Gate4)
}

func TestNexthopLookupV4ResponseUnknownTagPreserved(t *testing.T) {
	addr := netip.MustParseAddr("192.0.2.1")
	body := []byte{}
	body = append(body, addr.As4()[:]...)
	body = append(body, 0, 0, 0, 10) // metric
	body = append(body, 1)           // n=1
	body = append(body, 0x7F)        // unrecognized tag byte

	_, _, nhs, err := zwire.DecodeNexthopLookupV4Response(body)
	require.NoError(t, err)
	require.Len(t, nhs, 1)
	require.Equal(t, nexthop.Tag(0x7F), nhs[0].Tag)
}

func TestRGateVerifyBatchBoundary(t *testing.T) {
	k := zwire.RGateVerifyBatchCapacity()
	require.Greater(t, k, 0)

	pairs := make([]zwire.RGatePair, k)
	for i := range pairs {
		pairs[i] = zwire.RGatePair{
			Prefix: netip.MustParsePrefix("10.0.0.0/24"),
			Gate:   netip.MustParseAddr("192.0.2.1"),
			RGate:  netip.MustParseAddr("198.51.100.1"),
		}
	}
	query := zwire.EncodeRGateVerifyQuery(false, pairs)
	require.LessOrEqual(t, len(query)+zwire.HeaderSize, zwire.MaxMessageSize)
}

func TestDecodeRGateVerifyResponse(t *testing.T) {
	body := []byte{0, 0, 1}
	addr := netip.MustParseAddr("10.1.0.0")
	body = append(body, addr.As4()[:]...)
	body = append(body, 16)

	more, prefixes, err := zwire.DecodeRGateVerifyResponse(body)
	require.NoError(t, err)
	require.False(t, more)
	require.Equal(t, []netip.Prefix{netip.MustParsePrefix("10.1.0.0/16")}, prefixes)
}

func encodeV4NexthopResponse(t *testing.T, addr netip.Addr, metric uint32, nhs []nexthop.NextHop) []byte {
	t.Helper()
	a4 := addr.As4()
	body := append([]byte{}, a4[:]...)
	body = append(body, byte(metric>>24), byte(metric>>16), byte(metric>>8), byte(metric))
	body = append(body, byte(len(nhs)))
	for _, nh := range nhs {
		body = append(body, byte(nh.Tag))
		switch nh.Tag {
		case nexthop.TagIPv4Gate:
			g := nh.Gate4.As4()
			body = append(body, g[:]...)
		case nexthop.TagIPv4IfIndex, nexthop.TagIPv4IfName:
			body = append(body,
				byte(nh.IfIndex>>24), byte(nh.IfIndex>>16), byte(nh.IfIndex>>8), byte(nh.IfIndex))
		}
	}
	return body
}
