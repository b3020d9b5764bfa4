// Package rgateverify implements the batched desync-verification
// protocol: given the previous generation's IPv4 BNCT, ask the routing
// daemon which of its recorded (nexthop, recursive gate) pairs zebra no
// longer agrees with, and collect the reported prefixes into a
// DesyncSet (spec.md §4.6).
package rgateverify

import (
	"log/slog"
	"net/netip"

	"github.com/nextwire/bgpscand/internal/nhcache"
	"github.com/nextwire/bgpscand/internal/zwire"
)

// Verifier issues rgate-verify queries. *zlookup.Client satisfies this.
type Verifier interface {
	VerifyRGatesV4(pairs []zwire.RGatePair, onDesync func(netip.Prefix)) error
}

// DesyncSet is the set of prefixes RGateVerify reported out of sync
// during one scan cycle. Membership is by exact prefix — no LPM is
// needed (spec.md §4.6).
type DesyncSet map[netip.Prefix]struct{}

// New builds an empty DesyncSet, created at the start of each IPv4
// scan and discarded at its end (spec.md §3).
func New() DesyncSet {
	return make(DesyncSet)
}

// Contains reports whether prefix was reported desynced this cycle.
func (d DesyncSet) Contains(pfx netip.Prefix) bool {
	_, ok := d[pfx]
	return ok
}

// Verify walks prev's still-valid entries, builds one (gate, recursive
// gate) pair per entry, and submits them to v. Duplicate prefixes
// reported by the daemon are tolerated and merely logged (spec.md
// §4.6).
func Verify(v Verifier, prev *nhcache.Table, log *slog.Logger) (DesyncSet, error) {
	if log == nil {
		log = slog.Default()
	}
	pairs := buildPairs(prev)
	out := New()
	err := v.VerifyRGatesV4(pairs, func(pfx netip.Prefix) {
		if out.Contains(pfx) {
			log.Debug("rgateverify: duplicate desync report", "prefix", pfx)
		}
		out[pfx] = struct{}{}
	})
	if err != nil {
		log.Warn("rgateverify: verify aborted, no prefixes treated as desynced", "error", err)
		return New(), err
	}
	return out, nil
}

// buildPairs extracts (gate, recursive gate) from every still-valid
// previous-generation entry: gate is the BGP nexthop the entry was
// resolved for (the BNCT key itself), and rgate is the first IPv4
// nexthop zebra returned for it — the one actually used for FIB
// installation (spec.md §4.5 step 3: "taking only the first IPv4
// nexthop per cache entry").
func buildPairs(prev *nhcache.Table) []zwire.RGatePair {
	entries := prev.PreviousEntries()
	pairs := make([]zwire.RGatePair, 0, len(entries))
	for _, e := range entries {
		if e.Entry == nil || !e.Entry.Valid {
			continue
		}
		if !e.Prefix.Addr().Is4() {
			continue
		}
		rgate, ok := e.Entry.FirstIPv4Gate()
		if !ok {
			continue
		}
		pairs = append(pairs, zwire.RGatePair{
			Prefix: e.Prefix,
			Gate:   e.Prefix.Addr(),
			RGate:  rgate,
		})
	}
	return pairs
}
