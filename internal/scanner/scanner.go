// Package scanner implements Scanner: the periodic reachability engine
// that rotates BNCT generations, runs recursive-gate desync
// verification, walks the BGP RIB, and folds resolution results back
// into route VALID/IGP_CHANGED flags (spec.md §4.5).
package scanner

import (
	"context"
	"log/slog"
	"net/netip"
	"time"

	"github.com/nextwire/bgpscand/internal/conntable"
	"github.com/nextwire/bgpscand/internal/metrics"
	"github.com/nextwire/bgpscand/internal/nexthop"
	"github.com/nextwire/bgpscand/internal/nhcache"
	"github.com/nextwire/bgpscand/internal/rgateverify"
	"github.com/nextwire/bgpscand/internal/ribview"
)

// Resolver is the subset of *zlookup.Client the scanner needs: cache
// misses resolve through it, and IPv4-only scans run its batched
// desync verification.
type Resolver interface {
	ResolveV4(addr netip.Addr) (*nexthop.CacheEntry, error)
	ResolveV6(addr netip.Addr) (*nexthop.CacheEntry, error)
	rgateverify.Verifier
}

// Scanner runs the six-step algorithm of spec.md §4.5 for one address
// family.
type Scanner struct {
	AFI      ribview.AFI
	BNCT     *nhcache.Table
	Conn     *conntable.Table
	Resolver Resolver
	RIB      ribview.RIB
	Peers    []*ribview.Peer

	Log     *slog.Logger
	Metrics *metrics.Metrics

	// Now returns the current time; overridden in tests. Defaults to
	// time.Now when left nil by the caller.
	Now func() time.Time
}

func (s *Scanner) log() *slog.Logger {
	if s.Log != nil {
		return s.Log
	}
	return slog.Default()
}

func (s *Scanner) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// RunOnce executes one scan pass for s.AFI: swap generations, peer
// housekeeping, IPv4-only desync verification, the RIB walk, and
// reclaim of the previous generation (spec.md §4.5 steps 1–6).
func (s *Scanner) RunOnce(ctx context.Context) {
	start := s.now()
	afiName := s.AFI.String()

	// Step 1: rotate generations.
	s.BNCT.Swap()

	// Step 2: peer housekeeping.
	s.runPeerHousekeeping()

	// Step 3: desync verification, IPv4 only.
	desync := rgateverify.New()
	if s.AFI == ribview.AFIIPv4 {
		var err error
		desync, err = rgateverify.Verify(s.Resolver, s.BNCT, s.log())
		if err != nil {
			s.log().Warn("scanner: rgate-verify aborted this cycle", "error", err)
		} else if len(desync) > 0 {
			s.log().Debug("scanner: rgate-verify reported desyncs", "count", len(desync))
		}
		s.Metrics.AddRGateDesyncs(len(desync))
	}

	// Step 4 + 5: RIB walk and per-prefix decision process.
	for _, prefix := range s.RIB.Prefixes(s.AFI) {
		if ctx.Err() != nil {
			s.log().Warn("scanner: scan canceled mid-walk", "afi", afiName, "reason", ctx.Err())
			break
		}
		for _, ri := range s.RIB.RouteInfos(prefix) {
			s.foldOne(prefix, ri, desync)
		}
		s.RIB.Process(prefix)
	}

	// Step 6: reclaim.
	s.BNCT.ResetPrevious()

	s.Metrics.SetActiveCacheEntries(afiName, s.BNCT.ActiveSize())
	s.Metrics.ObserveScanDuration(afiName, s.now().Sub(start).Seconds())
}

func (s *Scanner) runPeerHousekeeping() {
	for _, p := range s.Peers {
		if !p.Established {
			continue
		}
		for key := range p.MaxPrefix {
			if p.MaxPrefixExceeded(key) {
				s.log().Warn("scanner: peer exceeds configured max-prefix",
					"peer", p.ID, "afi", key.AFI, "safi", key.SAFI)
			}
		}
	}
}

// foldOne resolves one route-info entry and folds the result into its
// VALID/IGP_CHANGED flags, calling AggregateIncrement/Decrement on a
// flip and DampScan when damping is configured (spec.md §4.5 step 4).
func (s *Scanner) foldOne(prefix netip.Prefix, ri *ribview.RouteInfo, desync rgateverify.DesyncSet) {
	if s.AFI == ribview.AFIIPv4 && desync.Contains(prefix) {
		ri.IGPChanged = true
		return
	}

	var valid, changed bool

	switch {
	case ri.Peer.SingleHopEBGP():
		// On-link EBGP shortcut: deliberately skips changed/metric_changed
		// (spec.md §4.5 tie-break: directly connected nexthops never
		// change IGP distance).
		valid = s.Conn.Onlink(ri.Nexthop)
	case s.AFI == ribview.AFIIPv6 && trivialV6Onlink(ri.Nexthop):
		valid = true
	default:
		valid, changed = s.resolveCached(ri.Nexthop)
	}

	if changed {
		s.Metrics.IncChanged(s.AFI.String())
	}
	ri.IGPChanged = changed

	if valid != ri.Valid {
		ri.Valid = valid
		s.Metrics.IncValidFlip(s.AFI.String(), valid)
		if valid {
			s.RIB.AggregateIncrement(prefix)
		} else {
			s.RIB.AggregateDecrement(prefix)
		}
	}

	if ri.Damping != nil && ri.Damping.Configured {
		if s.RIB.DampScan(ri) {
			s.RIB.AggregateIncrement(prefix)
		}
	}
}

// trivialV6Onlink reports the two IPv6 cases spec.md §4.5 treats as
// on-link without a lookup: link-local nexthops, and the
// global+link-local pair (modeled here as simply "is link-local", since
// RouteInfo carries a single address — the pair case is the ZWire
// decoder's TagIPv6GateIfIndex/IfName shape, already on-link by
// definition of carrying a link-local gate).
func trivialV6Onlink(addr netip.Addr) bool {
	return addr.IsLinkLocalUnicast()
}

// resolveCached implements the "cached resolution" sub-step: active
// BNCT hit reuses its entry; miss resolves through the daemon, diffs
// against the previous generation, and installs the fresh entry.
func (s *Scanner) resolveCached(addr netip.Addr) (valid bool, changed bool) {
	key := netip.PrefixFrom(addr, addr.BitLen())

	if entry, ok := s.BNCT.GetActive(key); ok {
		return entry.Valid, entry.Changed
	}

	var fresh *nexthop.CacheEntry
	var err error
	if s.AFI == ribview.AFIIPv4 {
		fresh, err = s.Resolver.ResolveV4(addr)
	} else {
		fresh, err = s.Resolver.ResolveV6(addr)
	}
	if err != nil {
		s.log().Warn("scanner: resolve failed", "addr", addr, "error", err)
	}
	if fresh == nil {
		fresh = nexthop.Invalid()
	}

	if prev, ok := s.BNCT.LookupPrevious(key); ok {
		fresh.Changed = !nexthop.SameNexthops(prev.Nexthops, fresh.Nexthops)
		fresh.MetricChanged = prev.Metric != fresh.Metric
	} else {
		fresh.Changed = fresh.Valid
		fresh.MetricChanged = fresh.Valid
	}

	s.BNCT.Install(key, fresh)
	return fresh.Valid, fresh.Changed
}
