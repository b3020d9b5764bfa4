package rgateverify_test

import (
	"errors"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nextwire/bgpscand/internal/nexthop"
	"github.com/nextwire/bgpscand/internal/nhcache"
	"github.com/nextwire/bgpscand/internal/rgateverify"
	"github.com/nextwire/bgpscand/internal/zwire"
)

type fakeVerifier struct {
	gotPairs []zwire.RGatePair
	desync   []netip.Prefix
	err      error
}

func (f *fakeVerifier) VerifyRGatesV4(pairs []zwire.RGatePair, onDesync func(netip.Prefix)) error {
	f.gotPairs = pairs
	if f.err != nil {
		return f.err
	}
	for _, p := range f.desync {
		onDesync(p)
	}
	return nil
}

// primePrevious installs an entry keyed by the BGP nexthop address nh —
// mirroring scanner.resolveCached's key scheme — whose first IPv4-gate
// nexthop is rgate, the FIB-installed recursive gate, then rotates it
// into the previous generation.
func primePrevious(t *testing.T, nh, rgate netip.Addr) *nhcache.Table {
	t.Helper()
	tbl := nhcache.New()
	tbl.Install(netip.PrefixFrom(nh, nh.BitLen()), &nexthop.CacheEntry{
		Valid: true,
		Nexthops: []nexthop.NextHop{
			{Tag: nexthop.TagIPv4Gate, Gate4: rgate},
		},
	})
	tbl.Swap() // move into the previous generation
	return tbl
}

func TestVerifyBuildsPairsFromPreviousGeneration(t *testing.T) {
	nh := netip.MustParseAddr("192.0.2.1")
	rgate := netip.MustParseAddr("203.0.113.1")
	prev := primePrevious(t, nh, rgate)

	v := &fakeVerifier{}
	desync, err := rgateverify.Verify(v, prev, nil)
	require.NoError(t, err)
	require.Empty(t, desync)

	require.Len(t, v.gotPairs, 1)
	require.Equal(t, netip.PrefixFrom(nh, nh.BitLen()), v.gotPairs[0].Prefix)
	require.Equal(t, nh, v.gotPairs[0].Gate)
	require.Equal(t, rgate, v.gotPairs[0].RGate)
}

func TestVerifySkipsEntriesWithoutIPv4Gate(t *testing.T) {
	tbl := nhcache.New()
	tbl.Install(netip.MustParsePrefix("198.51.100.1/32"), &nexthop.CacheEntry{
		Valid: true,
		Nexthops: []nexthop.NextHop{
			{Tag: nexthop.TagIPv4IfIndex, IfIndex: 2},
		},
	})
	tbl.Swap()

	v := &fakeVerifier{}
	_, err := rgateverify.Verify(v, tbl, nil)
	require.NoError(t, err)
	require.Empty(t, v.gotPairs)
}

func TestVerifySkipsInvalidEntries(t *testing.T) {
	tbl := nhcache.New()
	tbl.Install(netip.MustParsePrefix("198.51.100.0/24"), nexthop.Invalid())
	tbl.Swap()

	v := &fakeVerifier{}
	_, err := rgateverify.Verify(v, tbl, nil)
	require.NoError(t, err)
	require.Empty(t, v.gotPairs)
}

func TestVerifyReportsDesyncedPrefixes(t *testing.T) {
	// The daemon reports desyncs as BGP route prefixes it independently
	// derives from the (gate, rgate) pair, not as an echo of the query —
	// the wire query carries no prefix field at all (spec.md §4.2).
	pfx := netip.MustParsePrefix("10.3.0.0/16")
	prev := primePrevious(t, netip.MustParseAddr("192.0.2.1"), netip.MustParseAddr("203.0.113.1"))

	v := &fakeVerifier{desync: []netip.Prefix{pfx}}
	desync, err := rgateverify.Verify(v, prev, nil)
	require.NoError(t, err)
	require.True(t, desync.Contains(pfx))
}

func TestVerifyDuplicateDesyncReportIsIdempotent(t *testing.T) {
	pfx := netip.MustParsePrefix("10.3.0.0/16")
	prev := primePrevious(t, netip.MustParseAddr("192.0.2.1"), netip.MustParseAddr("203.0.113.1"))

	v := &fakeVerifier{desync: []netip.Prefix{pfx, pfx}}
	desync, err := rgateverify.Verify(v, prev, nil)
	require.NoError(t, err)
	require.Len(t, desync, 1, "a prefix reported twice collapses to one set entry")
}

func TestVerifyAbortOnErrorTreatsNothingAsDesynced(t *testing.T) {
	prev := primePrevious(t, netip.MustParseAddr("192.0.2.1"), netip.MustParseAddr("203.0.113.1"))

	v := &fakeVerifier{err: errors.New("boom")}
	desync, err := rgateverify.Verify(v, prev, nil)
	require.Error(t, err)
	require.Empty(t, desync, "verify failures must never mark any prefix as desynced")
}
