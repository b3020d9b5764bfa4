package cli_test

import (
	"bytes"
	"net/netip"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/nextwire/bgpscand/internal/cli"
	"github.com/nextwire/bgpscand/internal/config"
	"github.com/nextwire/bgpscand/internal/conntable"
	"github.com/nextwire/bgpscand/internal/nexthop"
	"github.com/nextwire/bgpscand/internal/nhcache"
	"github.com/nextwire/bgpscand/internal/sched"
)

func newRootForTest(t *testing.T) *cli.Root {
	t.Helper()
	return &cli.Root{
		Scan: config.NewScan(),
		Timers: sched.New(sched.Config{
			Clock:             clockwork.NewFakeClock(),
			ScanInterval:      config.ScanIntervalDefault,
			ImportInterval:    config.ImportIntervalDefault,
			ReconnectInterval: time.Minute,
		}),
		BNCTv4: nhcache.New(),
		BNCTv6: nhcache.New(),
		Connv4: conntable.New(),
		Connv6: conntable.New(),
	}
}

func TestScanTimeCmdValidatesAndRearms(t *testing.T) {
	root := newRootForTest(t)
	cmd := cli.NewScanTimeCmd(root).Command()
	cmd.SetArgs([]string{"10"})

	require.NoError(t, cmd.Execute())
	require.Equal(t, 10*time.Second, root.Scan.Interval())
}

func TestScanTimeCmdRejectsOutOfRange(t *testing.T) {
	root := newRootForTest(t)
	cmd := cli.NewScanTimeCmd(root).Command()
	cmd.SetArgs([]string{"99"})
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true

	require.Error(t, cmd.Execute())
	require.Equal(t, config.ScanIntervalDefault, root.Scan.Interval())
}

func TestNoScanTimeCmdResets(t *testing.T) {
	root := newRootForTest(t)
	_, err := root.Scan.Set(30 * time.Second)
	require.NoError(t, err)

	cmd := cli.NewNoScanTimeCmd(root).Command()
	require.NoError(t, cmd.Execute())
	require.Equal(t, config.ScanIntervalDefault, root.Scan.Interval())
}

func TestShowScanCmdPrintsSummary(t *testing.T) {
	root := newRootForTest(t)
	root.ScanRunning = true
	root.BNCTv4.Install(netip.MustParsePrefix("198.51.100.1/32"), &nexthop.CacheEntry{Valid: true, Metric: 5})

	var buf bytes.Buffer
	cmd := cli.NewShowScanCmd(root).Command()
	cmd.SetOut(&buf)

	require.NoError(t, cmd.Execute())
	out := buf.String()
	require.Contains(t, out, "BGP scanner running: true")
	require.Contains(t, out, "IPv4 active cache entries: 1")
}

func TestShowScanCmdDetailListsEntries(t *testing.T) {
	root := newRootForTest(t)
	root.BNCTv4.Install(netip.MustParsePrefix("198.51.100.1/32"), &nexthop.CacheEntry{
		Valid: true, Metric: 5,
		Nexthops: []nexthop.NextHop{{Tag: nexthop.TagIPv4Gate, Gate4: netip.MustParseAddr("192.0.2.1")}},
	})

	var buf bytes.Buffer
	cmd := cli.NewShowScanCmd(root).Command()
	cmd.SetArgs([]string{"--detail"})
	cmd.SetOut(&buf)

	require.NoError(t, cmd.Execute())
	require.Contains(t, buf.String(), "ipv4-gate")
}
