// Package nhcache implements BNCT: the double-buffered, per-address-
// family nexthop resolution cache. Two gaissmai/bart tries act as an
// active/previous pair; Swap flips them in O(1), and the previous
// generation is read-only until ResetPrevious reclaims it
// (spec.md §4.4, §9).
package nhcache

import (
	"net/netip"
	"sync"

	"github.com/gaissmai/bart"

	"github.com/nextwire/bgpscand/internal/nexthop"
)

// Table is one AFI's BNCT.
type Table struct {
	mu     sync.Mutex
	a, b   bart.Table[*nexthop.CacheEntry]
	active *bart.Table[*nexthop.CacheEntry] // points at a or b
}

// New builds an empty BNCT with table a active.
func New() *Table {
	t := &Table{}
	t.active = &t.a
	return t
}

func (t *Table) previousLocked() *bart.Table[*nexthop.CacheEntry] {
	if t.active == &t.a {
		return &t.b
	}
	return &t.a
}

// Swap flips active and previous in O(1) (spec.md §4.4).
func (t *Table) Swap() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.active = t.previousLocked()
}

// GetActive returns the active table's entry for key without creating
// one on a miss — the plain "hit ⇒ reuse" half of spec.md §4.5 step 4's
// cached-resolution lookup.
func (t *Table) GetActive(key netip.Prefix) (*nexthop.CacheEntry, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.active.Get(key)
}

// GetOrInsert returns the active table's entry for key, creating an
// empty one on first reference. wasPresent reports whether the entry
// already existed (a cache hit).
func (t *Table) GetOrInsert(key netip.Prefix) (entry *nexthop.CacheEntry, wasPresent bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if e, ok := t.active.Get(key); ok {
		return e, true
	}
	e := &nexthop.CacheEntry{}
	t.active.Insert(key, e)
	return e, false
}

// Install overwrites the active table's entry for key, used once a
// fresh resolution has been fetched and diffed against the previous
// generation.
func (t *Table) Install(key netip.Prefix, entry *nexthop.CacheEntry) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.active.Insert(key, entry)
}

// LookupPrevious returns the previous generation's entry for key, an
// exact-key lookup (spec.md §4.4 distinguishes this from the LPM
// Onlink/SameNetwork primitives ConnTable exposes).
func (t *Table) LookupPrevious(key netip.Prefix) (*nexthop.CacheEntry, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.previousLocked().Get(key)
}

// PreviousEntries returns every (prefix, entry) pair in the previous
// generation, the input RGateVerify walks to build its batch of
// (prefix, first-IPv4-recursive-gate) pairs (spec.md §4.5 step 3).
func (t *Table) PreviousEntries() []ActiveEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	prev := t.previousLocked()
	out := make([]ActiveEntry, 0, prev.Size())
	for pfx, e := range prev.All() {
		out = append(out, ActiveEntry{Prefix: pfx, Entry: e})
	}
	return out
}

// ResetPrevious walks the previous table and clears it, leaving an
// empty trie ready for the next Swap. Call only after the scan that
// produced the current active generation has finished — the previous
// table must not be written to mid-scan (spec.md §9).
func (t *Table) ResetPrevious() {
	t.mu.Lock()
	defer t.mu.Unlock()
	prev := t.previousLocked()
	for pfx := range prev.All() {
		prev.Delete(pfx)
	}
}

// Finish releases both tables, for shutdown.
func (t *Table) Finish() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for pfx := range t.a.All() {
		t.a.Delete(pfx)
	}
	for pfx := range t.b.All() {
		t.b.Delete(pfx)
	}
}

// ActiveSize returns the number of entries in the active generation,
// for "show ip bgp scan" dumps.
func (t *Table) ActiveSize() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.active.Size()
}

// ActiveEntry is one (prefix, entry) pair from a BNCT generation:
// ActiveEntries returns the active generation's pairs (the CLI's detail
// dump) and PreviousEntries the previous generation's.
type ActiveEntry struct {
	Prefix netip.Prefix
	Entry  *nexthop.CacheEntry
}

// ActiveEntries returns every entry in the active generation, sorted by
// prefix, for diagnostics.
func (t *Table) ActiveEntries() []ActiveEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]ActiveEntry, 0, t.active.Size())
	for pfx, e := range t.active.AllSorted() {
		out = append(out, ActiveEntry{Prefix: pfx, Entry: e})
	}
	return out
}
