// Package importer implements Importer: the periodic loop that
// re-validates statically configured BGP routes against IGP presence
// (spec.md §4.7).
package importer

import (
	"log/slog"
	"net/netip"

	"github.com/nextwire/bgpscand/internal/metrics"
	"github.com/nextwire/bgpscand/internal/ribview"
	"github.com/nextwire/bgpscand/internal/zlookup"
)

// Checker is the subset of *zlookup.Client the importer needs.
type Checker interface {
	ImportCheckV4(prefix netip.Prefix) zlookup.ImportResult
}

// Importer fires every import interval and re-validates every static
// route against the routing daemon.
type Importer struct {
	RIB     ribview.StaticRIB
	ZLookup Checker
	Log     *slog.Logger
	Metrics *metrics.Metrics
}

func (im *Importer) log() *slog.Logger {
	if im.Log != nil {
		return im.Log
	}
	return slog.Default()
}

// RunOnce re-validates every eligible static route: skip backdoor
// routes and MPLS-VPN safi, query IGP presence when import-check is
// enabled, and call StaticUpdate/StaticWithdraw on a validity flip or
// on a refresh of metric/nexthop/route-map while still valid
// (spec.md §4.7).
func (im *Importer) RunOnce() {
	im.Metrics.IncImportRun()

	for _, r := range im.RIB.StaticRoutes() {
		if r.Backdoor {
			continue
		}
		if r.SAFI == ribview.SAFIMplsVPN {
			continue
		}

		prevValid, prevMetric, prevNexthop := r.Valid, r.IGPMetric, r.IGPNexthop

		if r.ImportCheck && r.AFI == ribview.AFIIPv4 && r.SAFI == ribview.SAFIUnicast {
			res := im.ZLookup.ImportCheckV4(r.Prefix)
			r.Valid = res.Active
			r.IGPMetric = res.Metric
			r.IGPNexthop = res.Nexthop
		} else {
			r.Valid = true
			r.IGPMetric = 0
			r.IGPNexthop = netip.IPv4Unspecified()
		}

		switch {
		case r.Valid != prevValid:
			im.Metrics.IncImportFlip(r.Valid)
			if r.Valid {
				im.RIB.StaticUpdate(r)
			} else {
				im.RIB.StaticWithdraw(r)
			}
			im.log().Debug("importer: static route validity flip", "prefix", r.Prefix, "valid", r.Valid)
		// A route carrying a route-map always gets the periodic refresh —
		// its IGP metric/nexthop feed route-map match conditions that can
		// change without the numbers themselves changing.
		case r.Valid && (r.IGPMetric != prevMetric || r.IGPNexthop != prevNexthop || r.HasRouteMap):
			im.RIB.StaticUpdate(r)
		}
	}
}
