package ribview

import (
	"net/netip"
	"sort"
	"sync"
)

// MemRIB is a bookkeeping map, not a BGP table: enough prefix storage
// and counter-incrementing to drive and assert against Scanner and
// Importer in tests, without implementing route selection, aggregation
// math, or damping decay.
type MemRIB struct {
	mu sync.Mutex

	routes  map[AFI]map[netip.Prefix][]*RouteInfo
	statics []*StaticRoute

	AggregateIncrements []netip.Prefix
	AggregateDecrements []netip.Prefix
	Processed           []netip.Prefix
}

// NewMemRIB builds an empty in-memory RIB.
func NewMemRIB() *MemRIB {
	return &MemRIB{
		routes: map[AFI]map[netip.Prefix][]*RouteInfo{
			AFIIPv4: {},
			AFIIPv6: {},
		},
	}
}

// AddRoute inserts ri as a route-info entry for afi/ri.Prefix.
func (m *MemRIB) AddRoute(afi AFI, ri *RouteInfo) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.routes[afi][ri.Prefix] = append(m.routes[afi][ri.Prefix], ri)
}

// Prefixes implements RIB, returning prefixes in sorted order to match
// spec.md §5's "RIB trie enumeration is prefix-sorted" guarantee.
func (m *MemRIB) Prefixes(afi AFI) []netip.Prefix {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]netip.Prefix, 0, len(m.routes[afi]))
	for pfx := range m.routes[afi] {
		out = append(out, pfx)
	}
	sort.Slice(out, func(i, j int) bool {
		if c := out[i].Addr().Compare(out[j].Addr()); c != 0 {
			return c < 0
		}
		return out[i].Bits() < out[j].Bits()
	})
	return out
}

// RouteInfos implements RIB.
func (m *MemRIB) RouteInfos(prefix netip.Prefix) []*RouteInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*RouteInfo
	for _, byPrefix := range m.routes {
		out = append(out, byPrefix[prefix]...)
	}
	return out
}

// AggregateIncrement implements RIB.
func (m *MemRIB) AggregateIncrement(prefix netip.Prefix) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.AggregateIncrements = append(m.AggregateIncrements, prefix)
}

// AggregateDecrement implements RIB.
func (m *MemRIB) AggregateDecrement(prefix netip.Prefix) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.AggregateDecrements = append(m.AggregateDecrements, prefix)
}

// DampScan implements RIB: reactivation happens once the caller clears
// ri.Damping.FigureOfMerit to 0, standing in for the real damping
// decay timer without implementing it.
func (m *MemRIB) DampScan(ri *RouteInfo) bool {
	if ri.Damping == nil || !ri.Damping.Configured {
		return false
	}
	wasSuppressed := ri.Damping.Suppressed
	ri.Damping.Suppressed = ri.Damping.FigureOfMerit > 0
	return wasSuppressed && !ri.Damping.Suppressed
}

// Process implements RIB.
func (m *MemRIB) Process(prefix netip.Prefix) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Processed = append(m.Processed, prefix)
}

// StaticRoutes implements StaticRIB.
func (m *MemRIB) StaticRoutes() []*StaticRoute {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*StaticRoute, len(m.statics))
	copy(out, m.statics)
	return out
}

// AddStatic registers a statically configured route.
func (m *MemRIB) AddStatic(r *StaticRoute) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statics = append(m.statics, r)
}

// StaticUpdate implements StaticRIB: MemRIB already holds the
// StaticRoute by pointer, so the update is a no-op beyond the field
// mutations the Importer already made directly; tests assert on the
// route's fields rather than on a call log.
func (m *MemRIB) StaticUpdate(r *StaticRoute) {}

// StaticWithdraw implements StaticRIB.
func (m *MemRIB) StaticWithdraw(r *StaticRoute) {}
