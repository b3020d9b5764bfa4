// Package conntable implements ConnTable: a per-address-family,
// refcounted set of locally connected network prefixes, backed by
// gaissmai/bart's longest-prefix-match trie. It serves the EBGP
// single-hop on-link shortcut and the multi-access adjacency check
// (spec.md §4.3).
package conntable

import (
	"net/netip"
	"sync"

	"github.com/gaissmai/bart"
)

// ref is the value stored at each trie node: a refcount for the
// connected prefix it represents.
type ref struct {
	count int
}

// Table is a ConnTable for one address family.
type Table struct {
	mu sync.Mutex
	t  bart.Table[*ref]
}

// New builds an empty ConnTable.
func New() *Table {
	return &Table{}
}

// eligible reports whether prefix should ever be tracked: loopback,
// link-local, unspecified, and default prefixes are rejected
// (spec.md §4.3).
func eligible(pfx netip.Prefix) bool {
	addr := pfx.Addr()
	if addr.IsLoopback() || addr.IsLinkLocalUnicast() || addr.IsUnspecified() {
		return false
	}
	if pfx.Bits() == 0 {
		return false
	}
	return true
}

// Add registers one more reference to the connected network covering
// pfx; Add masks pfx to its network prefix itself.
// Ineligible prefixes (loopback, link-local, unspecified, default) are
// silently ignored, matching the BGP layer's connected_add contract.
func (c *Table) Add(pfx netip.Prefix) {
	pfx = pfx.Masked()
	if !eligible(pfx) {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if r, ok := c.t.Get(pfx); ok {
		r.count++
		return
	}
	c.t.Insert(pfx, &ref{count: 1})
}

// Delete drops one reference to the connected network covering pfx,
// removing the trie entry once its refcount reaches zero
// (spec.md §3 invariant on ConnectedRef).
func (c *Table) Delete(pfx netip.Prefix) {
	pfx = pfx.Masked()
	if !eligible(pfx) {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.t.Get(pfx)
	if !ok {
		return
	}
	r.count--
	if r.count <= 0 {
		c.t.Delete(pfx)
	}
}

// Onlink reports whether addr falls within any connected network, via
// longest-prefix-match. Used for the EBGP TTL=1 shortcut.
func (c *Table) Onlink(addr netip.Addr) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.t.Lookup(addr)
	return ok
}

// SameNetwork reports whether a and b longest-prefix-match to the same
// connected prefix — the multiaccess_check_v4 primitive (spec.md §6).
func (c *Table) SameNetwork(a, b netip.Addr) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	pa, _, ok := c.t.LookupPrefixLPM(netip.PrefixFrom(a, a.BitLen()))
	if !ok {
		return false
	}
	pb, _, ok := c.t.LookupPrefixLPM(netip.PrefixFrom(b, b.BitLen()))
	if !ok {
		return false
	}
	return pa == pb
}

// Size returns the number of distinct connected prefixes tracked, for
// "show ip bgp scan" dumps.
func (c *Table) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t.Size()
}

// All yields every tracked prefix, for diagnostics.
func (c *Table) All() []netip.Prefix {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]netip.Prefix, 0, c.t.Size())
	for pfx := range c.t.All() {
		out = append(out, pfx)
	}
	return out
}
