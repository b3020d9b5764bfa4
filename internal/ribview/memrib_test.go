package ribview_test

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nextwire/bgpscand/internal/ribview"
)

func TestPrefixesReturnedSorted(t *testing.T) {
	rib := ribview.NewMemRIB()
	rib.AddRoute(ribview.AFIIPv4, &ribview.RouteInfo{Prefix: netip.MustParsePrefix("198.51.100.0/24")})
	rib.AddRoute(ribview.AFIIPv4, &ribview.RouteInfo{Prefix: netip.MustParsePrefix("10.0.0.0/8")})
	rib.AddRoute(ribview.AFIIPv4, &ribview.RouteInfo{Prefix: netip.MustParsePrefix("172.16.0.0/12")})

	got := rib.Prefixes(ribview.AFIIPv4)
	require.Len(t, got, 3)
	for i := 1; i < len(got); i++ {
		require.Less(t, got[i-1].String(), got[i].String())
	}
}

func TestRouteInfosMergesAcrossAFIs(t *testing.T) {
	rib := ribview.NewMemRIB()
	pfx := netip.MustParsePrefix("2001:db8::/32")
	ri := &ribview.RouteInfo{Prefix: pfx}
	rib.AddRoute(ribview.AFIIPv6, ri)

	got := rib.RouteInfos(pfx)
	require.Equal(t, []*ribview.RouteInfo{ri}, got)
}

func TestAggregateIncrementDecrementRecorded(t *testing.T) {
	rib := ribview.NewMemRIB()
	pfx := netip.MustParsePrefix("198.51.100.0/24")

	rib.AggregateIncrement(pfx)
	rib.AggregateDecrement(pfx)

	require.Equal(t, []netip.Prefix{pfx}, rib.AggregateIncrements)
	require.Equal(t, []netip.Prefix{pfx}, rib.AggregateDecrements)
}

func TestDampScanReactivation(t *testing.T) {
	ri := &ribview.RouteInfo{
		Damping: &ribview.DampState{Configured: true, Suppressed: true, FigureOfMerit: 0},
	}
	rib := ribview.NewMemRIB()

	reactivated := rib.DampScan(ri)
	require.True(t, reactivated)
	require.False(t, ri.Damping.Suppressed)
}

func TestDampScanNoOpWhenNotConfigured(t *testing.T) {
	ri := &ribview.RouteInfo{Damping: nil}
	rib := ribview.NewMemRIB()
	require.False(t, rib.DampScan(ri))
}

func TestPeerSingleHopEBGPAndMaxPrefix(t *testing.T) {
	p := &ribview.Peer{EBGP: true, TTL: 1}
	require.True(t, p.SingleHopEBGP())

	key := ribview.AFISAFI{AFI: ribview.AFIIPv4, SAFI: ribview.SAFIUnicast}
	p.MaxPrefix = map[ribview.AFISAFI]int{key: 10}
	p.PrefixCount = map[ribview.AFISAFI]int{key: 11}
	require.True(t, p.MaxPrefixExceeded(key))

	p.PrefixCount[key] = 5
	require.False(t, p.MaxPrefixExceeded(key))
}

func TestStaticRoutesRoundTrip(t *testing.T) {
	rib := ribview.NewMemRIB()
	r := &ribview.StaticRoute{Prefix: netip.MustParsePrefix("198.51.100.0/24")}
	rib.AddStatic(r)

	got := rib.StaticRoutes()
	require.Equal(t, []*ribview.StaticRoute{r}, got)
}
