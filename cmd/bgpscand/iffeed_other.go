//go:build !linux

package main

import (
	"errors"

	"github.com/nextwire/bgpscand/internal/conntable"
)

// seedConnectedFromNetlink is a no-op stub on non-Linux platforms:
// netlink interface enumeration doesn't exist there, and the
// connected-prefix feed is explicitly optional (spec.md §1).
func seedConnectedFromNetlink(connv4, connv6 *conntable.Table) error {
	return errors.New("iffeed: netlink interface feed is only available on linux")
}
