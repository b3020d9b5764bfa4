// Package cli implements the oracle's configuration surface (spec.md
// §6) as cobra commands, following the NewXCmd().Command() factory
// idiom of e2e/internal/devnet/cmd.
package cli

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/nextwire/bgpscand/internal/config"
	"github.com/nextwire/bgpscand/internal/conntable"
	"github.com/nextwire/bgpscand/internal/nhcache"
	"github.com/nextwire/bgpscand/internal/sched"
)

// Root is the state every subcommand in this package closes over: the
// live scan-time config, the timers it rearms, and the tables "show ip
// bgp scan" dumps.
type Root struct {
	Scan   *config.Scan
	Timers *sched.Timers

	BNCTv4 *nhcache.Table
	BNCTv6 *nhcache.Table
	Connv4 *conntable.Table
	Connv6 *conntable.Table

	ScanRunning bool
}

// ScanTimeCmd implements "bgp scan-time <5-60>".
type ScanTimeCmd struct{ root *Root }

// NewScanTimeCmd builds the "bgp scan-time" command.
func NewScanTimeCmd(root *Root) *ScanTimeCmd { return &ScanTimeCmd{root: root} }

func (c *ScanTimeCmd) Command() *cobra.Command {
	return &cobra.Command{
		Use:   "scan-time <5-60>",
		Short: "Set the BGP nexthop scan interval in seconds",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			secs, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("cli: invalid scan-time %q: %w", args[0], err)
			}
			d, err := c.root.Scan.Set(time.Duration(secs) * time.Second)
			if err != nil {
				return err
			}
			c.root.Timers.Rearm(d)
			return nil
		},
	}
}

// NoScanTimeCmd implements "no bgp scan-time [<5-60>]".
type NoScanTimeCmd struct{ root *Root }

// NewNoScanTimeCmd builds the "no bgp scan-time" command.
func NewNoScanTimeCmd(root *Root) *NoScanTimeCmd { return &NoScanTimeCmd{root: root} }

func (c *NoScanTimeCmd) Command() *cobra.Command {
	return &cobra.Command{
		Use:   "no-scan-time",
		Short: "Reset the BGP nexthop scan interval to its default",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d := c.root.Scan.Reset()
			c.root.Timers.Rearm(d)
			return nil
		},
	}
}

// ShowScanCmd implements "show ip bgp scan" / "show ip bgp scan detail".
type ShowScanCmd struct{ root *Root }

// NewShowScanCmd builds the "show ip bgp scan" command.
func NewShowScanCmd(root *Root) *ShowScanCmd { return &ShowScanCmd{root: root} }

func (c *ShowScanCmd) Command() *cobra.Command {
	var detail bool
	cmd := &cobra.Command{
		Use:   "show-scan",
		Short: "Show BGP nexthop scanner state",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "BGP scanner running: %v\n", c.root.ScanRunning)
			fmt.Fprintf(out, "Scan interval: %s\n", c.root.Scan.Interval())
			c.dumpAFI(out, "IPv4", c.root.BNCTv4, c.root.Connv4, detail)
			c.dumpAFI(out, "IPv6", c.root.BNCTv6, c.root.Connv6, detail)
			return nil
		},
	}
	cmd.Flags().BoolVar(&detail, "detail", false, "include each cache entry's nexthop list")
	return cmd
}

func (c *ShowScanCmd) dumpAFI(out io.Writer, label string, bnct *nhcache.Table, conn *conntable.Table, detail bool) {
	if bnct == nil {
		return
	}
	fmt.Fprintf(out, "%s active cache entries: %d\n", label, bnct.ActiveSize())
	if conn != nil {
		fmt.Fprintf(out, "%s connected prefixes: %d\n", label, conn.Size())
	}
	if !detail {
		return
	}
	for _, e := range bnct.ActiveEntries() {
		fmt.Fprintf(out, "  %s valid=%v metric=%d nexthops=%d\n",
			e.Prefix, e.Entry.Valid, e.Entry.Metric, len(e.Entry.Nexthops))
		for _, nh := range e.Entry.Nexthops {
			fmt.Fprintf(out, "    %s\n", nh.Tag)
		}
	}
}
