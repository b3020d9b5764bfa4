// Package ribview gives the surrounding BGP speaker — explicitly out
// of scope per spec.md §1 (peer state machine, RIB storage, decision
// process, aggregation, damping, route-map application) — a concrete
// Go shape: the collaborator interfaces Scanner and Importer call
// through, plus a minimal in-memory RIB implementing them so the core
// compiles and is testable standalone.
package ribview

import "net/netip"

// AFI is an Address Family Identifier.
type AFI int

const (
	AFIIPv4 AFI = iota
	AFIIPv6
)

func (a AFI) String() string {
	if a == AFIIPv6 {
		return "ipv6"
	}
	return "ipv4"
}

// SAFI is a Subsequent Address Family Identifier.
type SAFI int

const (
	SAFIUnicast SAFI = iota
	SAFIMulticast
	SAFIMplsVPN
)

// Peer stands in for the BGP speaker's peer session state. Only the
// fields the core actually reads are modeled: whether the session is
// EBGP with TTL 1 (the on-link shortcut eligibility test) and the
// per-(AFI,SAFI) prefix counters the max-prefix overflow check walks.
type Peer struct {
	ID          string
	Established bool
	EBGP        bool
	TTL         int
	MaxPrefix   map[AFISAFI]int
	PrefixCount map[AFISAFI]int
}

// AFISAFI is a composite key for per-(afi,safi) peer limits.
type AFISAFI struct {
	AFI  AFI
	SAFI SAFI
}

// SingleHopEBGP reports whether p is eligible for the on-link shortcut:
// an EBGP session with TTL 1 (spec.md §4.5 step 4). The Established
// flag is not consulted.
func (p *Peer) SingleHopEBGP() bool {
	return p != nil && p.EBGP && p.TTL == 1
}

// MaxPrefixExceeded runs the overflow check for one (afi,safi), the
// per-peer housekeeping spec.md §4.5 step 2 calls for every configured
// family on every established peer.
func (p *Peer) MaxPrefixExceeded(key AFISAFI) bool {
	limit, ok := p.MaxPrefix[key]
	if !ok || limit <= 0 {
		return false
	}
	return p.PrefixCount[key] > limit
}

// DampState is the per-route damping bookkeeping the surrounding BGP
// layer owns; the core only checks whether damping is configured and
// invokes DampScan, per spec.md §4.5 step 4 / §9.
type DampState struct {
	Configured    bool
	Suppressed    bool
	FigureOfMerit int
}

// RouteInfo is one BGP route-info entry ("bi") attached to a RIB
// prefix: the nexthop the route advertises, the peer it was learned
// from, the VALID/IGP_CHANGED flags the core mutates, and optional
// damping state.
type RouteInfo struct {
	Prefix     netip.Prefix
	Nexthop    netip.Addr
	Peer       *Peer
	Valid      bool
	IGPChanged bool
	Damping    *DampState
}

// RIB is the surrounding BGP speaker's route store and decision
// process, as seen by Scanner: prefix enumeration (in RIB order, which
// this package returns prefix-sorted to match spec.md §5's ordering
// guarantee), and the aggregate/process/damp_scan calls the core
// issues.
type RIB interface {
	// Prefixes returns every prefix carrying at least one BGP-typed,
	// normal route-info entry for afi, in RIB enumeration order.
	Prefixes(afi AFI) []netip.Prefix
	// RouteInfos returns the route-info entries attached to prefix.
	RouteInfos(prefix netip.Prefix) []*RouteInfo
	// AggregateIncrement/AggregateDecrement fold a validity flip into
	// any configured aggregate route for prefix.
	AggregateIncrement(prefix netip.Prefix)
	AggregateDecrement(prefix netip.Prefix)
	// DampScan re-evaluates damping state for ri, reporting whether the
	// route reactivated (in which case the caller must
	// AggregateIncrement).
	DampScan(ri *RouteInfo) (reactivated bool)
	// Process invokes the decision/update routine for prefix.
	Process(prefix netip.Prefix)
}

// StaticRoute is BgpStaticRef: a statically configured BGP route the
// Importer re-validates against the IGP every import interval.
type StaticRoute struct {
	Prefix      netip.Prefix
	AFI         AFI
	SAFI        SAFI
	Backdoor    bool
	ImportCheck bool
	HasRouteMap bool

	Valid      bool
	IGPMetric  uint32
	IGPNexthop netip.Addr
}

// StaticRIB is the surrounding BGP speaker's static-route table, as
// seen by Importer.
type StaticRIB interface {
	// StaticRoutes returns every statically configured route across
	// every BGP instance and (afi,safi) pair, MPLS-VPN included; the
	// Importer itself skips MPLS-VPN and backdoor routes.
	StaticRoutes() []*StaticRoute
	// StaticUpdate installs r's current (Valid, IGPMetric, IGPNexthop)
	// into the RIB, now that it has been confirmed valid.
	StaticUpdate(r *StaticRoute)
	// StaticWithdraw removes r's static route from the RIB.
	StaticWithdraw(r *StaticRoute)
}
