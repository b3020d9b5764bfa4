// Package nexthop holds the data model shared by the resolution cache,
// the wire codec, and the desync verifier: the tagged NextHop variant
// and the per-prefix cache entry it lives inside.
package nexthop

import "net/netip"

// Tag identifies the wire/variant shape of a NextHop, mirroring the
// eight kinds ZWire can decode off a nexthop-lookup response.
type Tag uint8

const (
	TagIPv4Gate Tag = iota
	TagIPv6Gate
	TagIPv4IfName
	TagIPv4IfIndex
	TagIPv6GateIfIndex
	TagIPv6GateIfName
	TagIPv6IfIndex
	TagIPv6IfName
)

func (t Tag) String() string {
	switch t {
	case TagIPv4Gate:
		return "ipv4-gate"
	case TagIPv6Gate:
		return "ipv6-gate"
	case TagIPv4IfName:
		return "ipv4-ifname"
	case TagIPv4IfIndex:
		return "ipv4-ifindex"
	case TagIPv6GateIfIndex:
		return "ipv6-gate-ifindex"
	case TagIPv6GateIfName:
		return "ipv6-gate-ifname"
	case TagIPv6IfIndex:
		return "ipv6-ifindex"
	case TagIPv6IfName:
		return "ipv6-ifname"
	default:
		return "unknown"
	}
}

// NextHop is the tagged variant over the eight nexthop kinds the zebra
// wire protocol can report. Unknown tags decode with a zero payload and
// are preserved rather than rejected, so a message from a newer daemon
// never desynchronises the framing (spec.md §9).
type NextHop struct {
	Tag     Tag
	Gate4   netip.Addr // set for TagIPv4Gate
	Gate6   netip.Addr // set for TagIPv6Gate, TagIPv6GateIfIndex, TagIPv6GateIfName
	IfIndex uint32     // set for the ifindex/ifname-carrying tags
}

// Equal reports whether two nexthops carry the same (type, gate,
// ifindex) tuple. Comparison is positional at the caller, not here —
// this only answers the single-entry question spec.md §4.5 needs for
// ordered-list diffing.
func (n NextHop) Equal(o NextHop) bool {
	return n.Tag == o.Tag && n.Gate4 == o.Gate4 && n.Gate6 == o.Gate6 && n.IfIndex == o.IfIndex
}

// CacheEntry is one resolution result: whether the nexthop is reachable,
// at what IGP metric, and via which ordered list of NextHop records.
// A CacheEntry with Valid=false always has an empty Nexthops list.
type CacheEntry struct {
	Valid         bool
	Metric        uint32
	Nexthops      []NextHop
	Changed       bool
	MetricChanged bool
}

// Invalid returns the sentinel entry installed when the daemon reports
// no reachable nexthop (spec.md §4.5, "resolve" miss path).
func Invalid() *CacheEntry {
	return &CacheEntry{Valid: false}
}

// SameNexthops reports whether two entries carry identical ordered
// nexthop lists, used to compute CacheEntry.Changed across generations.
func SameNexthops(a, b []NextHop) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}

// FirstIPv4Gate returns the first IPv4-gate nexthop in the list, the
// FIB-installed recursive gate that RGateVerify keys off. (Import-check
// does not use it: it looks only at the response's first nexthop.)
func (e *CacheEntry) FirstIPv4Gate() (netip.Addr, bool) {
	for _, nh := range e.Nexthops {
		if nh.Tag == TagIPv4Gate {
			return nh.Gate4, true
		}
	}
	return netip.Addr{}, false
}
