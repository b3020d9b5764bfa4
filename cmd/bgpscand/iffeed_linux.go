//go:build linux

package main

import (
	"fmt"
	"net/netip"

	"github.com/vishvananda/netlink"

	"github.com/nextwire/bgpscand/internal/conntable"
)

// seedConnectedFromNetlink enumerates every interface address on the
// host and registers it into connv4/connv6, giving the
// "listing of local interfaces/addresses" collaborator spec.md §1
// puts out of scope a concrete, optional feed (Linux only).
func seedConnectedFromNetlink(connv4, connv6 *conntable.Table) error {
	addrs, err := netlink.AddrList(nil, netlink.FAMILY_ALL)
	if err != nil {
		return fmt.Errorf("iffeed: listing addresses failed: %w", err)
	}
	for _, a := range addrs {
		ones, _ := a.IPNet.Mask.Size()
		addr, ok := netip.AddrFromSlice(a.IPNet.IP)
		if !ok {
			continue
		}
		addr = addr.Unmap()
		pfx := netip.PrefixFrom(addr, ones)
		if addr.Is4() {
			connv4.Add(pfx)
		} else {
			connv6.Add(pfx)
		}
	}
	return nil
}
