package nhcache_test

import (
	"net/netip"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/nextwire/bgpscand/internal/nexthop"
	"github.com/nextwire/bgpscand/internal/nhcache"
)

func TestSwapMovesActiveToPrevious(t *testing.T) {
	tbl := nhcache.New()
	key := netip.MustParsePrefix("192.0.2.1/32")
	entry := &nexthop.CacheEntry{Valid: true, Metric: 10}
	tbl.Install(key, entry)

	tbl.Swap()

	_, ok := tbl.GetActive(key)
	require.False(t, ok, "active generation is empty right after a swap")

	prev, ok := tbl.LookupPrevious(key)
	require.True(t, ok)
	require.Same(t, entry, prev)
}

func TestResetPreviousClearsGeneration(t *testing.T) {
	tbl := nhcache.New()
	key := netip.MustParsePrefix("192.0.2.1/32")
	tbl.Install(key, &nexthop.CacheEntry{Valid: true})
	tbl.Swap()

	tbl.ResetPrevious()

	_, ok := tbl.LookupPrevious(key)
	require.False(t, ok)
}

func TestGetOrInsertCreatesEmptyOnMiss(t *testing.T) {
	tbl := nhcache.New()
	key := netip.MustParsePrefix("198.51.100.1/32")

	entry, present := tbl.GetOrInsert(key)
	require.False(t, present)
	require.NotNil(t, entry)

	entry.Valid = true
	again, present := tbl.GetOrInsert(key)
	require.True(t, present)
	require.True(t, again.Valid)
}

func TestPreviousGenerationEntryMatchesWhatWasInstalled(t *testing.T) {
	tbl := nhcache.New()
	key := netip.MustParsePrefix("198.51.100.1/32")
	want := &nexthop.CacheEntry{
		Valid:  true,
		Metric: 20,
		Nexthops: []nexthop.NextHop{
			{Tag: nexthop.TagIPv4Gate, Gate4: netip.MustParseAddr("192.0.2.1")},
		},
	}
	tbl.Install(key, want)
	tbl.Swap()

	got, ok := tbl.LookupPrevious(key)
	require.True(t, ok)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("previous-generation entry diverged from what was installed (-want +got):\n%s", diff)
	}
}

func TestActiveEntriesSortedAndSized(t *testing.T) {
	tbl := nhcache.New()
	tbl.Install(netip.MustParsePrefix("10.0.0.1/32"), &nexthop.CacheEntry{Valid: true})
	tbl.Install(netip.MustParsePrefix("10.0.0.2/32"), &nexthop.CacheEntry{Valid: true})

	require.Equal(t, 2, tbl.ActiveSize())
	entries := tbl.ActiveEntries()
	require.Len(t, entries, 2)
	require.Equal(t, netip.MustParsePrefix("10.0.0.1/32"), entries[0].Prefix)
	require.Equal(t, netip.MustParsePrefix("10.0.0.2/32"), entries[1].Prefix)
}
