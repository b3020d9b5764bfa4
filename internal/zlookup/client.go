// Package zlookup owns the synchronous request/response session with
// the routing daemon: the socket, its reconnect state, and the four
// public operations (resolve-v4, resolve-v6, import-check-v4,
// rgate-verify) the rest of the oracle calls (spec.md §4.2).
package zlookup

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/netip"
	"sync"

	"github.com/nextwire/bgpscand/internal/nexthop"
	"github.com/nextwire/bgpscand/internal/zwire"
)

// Dialer opens the stream socket to the routing daemon. Production code
// dials a unix or tcp socket; tests substitute net.Pipe or a listener.
type Dialer func(ctx context.Context) (net.Conn, error)

// Client is ZClient: socket fd, input/output buffers, reconnect state.
// All requests are synchronous and mutex-serialized — the oracle issues
// one query at a time, matching spec.md §5's blocking-IPC contract.
type Client struct {
	dial Dialer
	log  *slog.Logger

	mu   sync.Mutex
	conn net.Conn
	r    *bufio.Reader
	w    *bufio.Writer
}

// NewClient builds a disconnected client. Only Connect establishes the
// socket; a request made while disconnected returns "no data" without
// dialing.
func NewClient(dial Dialer, log *slog.Logger) *Client {
	if log == nil {
		log = slog.Default()
	}
	return &Client{dial: dial, log: log}
}

// Connected reports whether the socket is currently open.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// Connect dials the routing daemon. Scheduling retries on failure is
// the caller's job (internal/sched owns the reconnect timer); Connect
// itself makes exactly one attempt.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connectLocked(ctx)
}

func (c *Client) connectLocked(ctx context.Context) error {
	conn, err := c.dial(ctx)
	if err != nil {
		return fmt.Errorf("zlookup: connect failed: %w", err)
	}
	c.conn = conn
	c.r = bufio.NewReader(conn)
	c.w = bufio.NewWriter(conn)
	return nil
}

// closeLocked implements spec.md §3's invariant: any write/read failure
// transitions the fd back to -1 atomically with the failure.
func (c *Client) closeLocked() {
	if c.conn != nil {
		c.conn.Close()
	}
	c.conn = nil
	c.r = nil
	c.w = nil
}

func (c *Client) roundTrip(cmd zwire.Command, body []byte) (zwire.Command, []byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return 0, nil, errNotConnected
	}
	if err := zwire.WriteMessage(c.w, cmd, body); err != nil {
		c.log.Warn("zlookup: write failed, closing socket", "error", err)
		c.closeLocked()
		return 0, nil, err
	}
	respCmd, respBody, err := zwire.ReadMessage(c.r)
	if err != nil {
		c.log.Warn("zlookup: read failed, closing socket", "error", err)
		c.closeLocked()
		return 0, nil, err
	}
	return respCmd, respBody, nil
}

var errNotConnected = fmt.Errorf("zlookup: socket not connected")

// ResolveV4 sends an IPv4-Nexthop-Lookup and returns the cache entry,
// or (nil, nil) if the daemon reported no reachable nexthop or the
// socket was unavailable — both are "no data", not errors.
func (c *Client) ResolveV4(addr netip.Addr) (*nexthop.CacheEntry, error) {
	_, body, err := c.roundTrip(zwire.CmdIPv4NexthopLookup, zwire.EncodeNexthopLookupV4Query(addr))
	if err != nil {
		return nil, nil //nolint:nilerr // socket unavailable is "no data", per spec.md §4.2
	}
	_, metric, nhs, err := zwire.DecodeNexthopLookupV4Response(body)
	if err != nil {
		return nil, err
	}
	if len(nhs) == 0 {
		return nil, nil
	}
	return &nexthop.CacheEntry{Valid: true, Metric: metric, Nexthops: nhs}, nil
}

// ResolveV6 is ResolveV4's IPv6 analogue.
func (c *Client) ResolveV6(addr netip.Addr) (*nexthop.CacheEntry, error) {
	_, body, err := c.roundTrip(zwire.CmdIPv6NexthopLookup, zwire.EncodeNexthopLookupV6Query(addr))
	if err != nil {
		return nil, nil //nolint:nilerr
	}
	_, metric, nhs, err := zwire.DecodeNexthopLookupV6Response(body)
	if err != nil {
		return nil, err
	}
	if len(nhs) == 0 {
		return nil, nil
	}
	return &nexthop.CacheEntry{Valid: true, Metric: metric, Nexthops: nhs}, nil
}

// ImportResult is the outcome of ImportCheckV4.
type ImportResult struct {
	Active  bool
	Metric  uint32
	Nexthop netip.Addr
}

// ImportCheckV4 queries IGP presence for a statically configured route.
// When the socket is unavailable it returns Active=true, Metric=0,
// Nexthop=0.0.0.0 — an oracle outage never blocks static imports
// (spec.md §4.2, §7).
func (c *Client) ImportCheckV4(prefix netip.Prefix) ImportResult {
	zero := netip.IPv4Unspecified()
	cmd := zwire.EncodeImportLookupV4Query(uint8(prefix.Bits()), prefix.Addr())
	_, body, err := c.roundTrip(zwire.CmdIPv4ImportLookup, cmd)
	if err != nil {
		return ImportResult{Active: true, Metric: 0, Nexthop: zero}
	}
	_, metric, nhs, err := zwire.DecodeImportLookupV4Response(body)
	if err != nil {
		c.log.Warn("zlookup: malformed import-check response", "error", err)
		return ImportResult{Active: true, Metric: 0, Nexthop: zero}
	}
	if len(nhs) == 0 {
		return ImportResult{Active: false, Metric: metric, Nexthop: zero}
	}
	// Per spec.md §9's open question: a non-IPv4-gate first nexthop still
	// counts as active, just with no usable IPv4 nexthop recorded.
	if nhs[0].Tag == nexthop.TagIPv4Gate {
		return ImportResult{Active: true, Metric: metric, Nexthop: nhs[0].Gate4}
	}
	return ImportResult{Active: true, Metric: metric, Nexthop: zero}
}

// VerifyRGatesV4 batches pairs into IPv4-RGate-Verify queries of
// RGateVerifyBatchCapacity() records each, the last carrying
// more_follows=0 even if empty. Each batch is its own round trip: one
// query is written, exactly one response is read, and onDesync is
// called for every prefix that response reports. The exchange ends at
// the first response with more_follows=0, and batches not yet sent at
// that point are not sent. After the terminal batch's response no
// further responses are read, even if that response carried
// more_follows=1.
//
// Any I/O failure aborts the exchange; the caller (RGateVerify) then
// treats every prefix as not desynced this cycle, per spec.md §4.2.
func (c *Client) VerifyRGatesV4(pairs []zwire.RGatePair, onDesync func(netip.Prefix)) error {
	batchSize := zwire.RGateVerifyBatchCapacity()
	if batchSize <= 0 {
		return fmt.Errorf("zlookup: invalid rgate-verify batch capacity")
	}

	batches := chunkRGatePairs(pairs, batchSize)
	for i, batch := range batches {
		more := i < len(batches)-1
		query := zwire.EncodeRGateVerifyQuery(more, batch)
		_, body, err := c.roundTrip(zwire.CmdIPv4RGateVerify, query)
		if err != nil {
			return err
		}
		moreFollows, prefixes, err := zwire.DecodeRGateVerifyResponse(body)
		if err != nil {
			return err
		}
		for _, p := range prefixes {
			onDesync(p)
		}
		if !moreFollows {
			return nil
		}
	}
	return nil
}

// chunkRGatePairs splits pairs into batches of at most size records and
// always appends a trailing empty batch: the terminal batch that
// carries more_follows=0 even when the data divided evenly into whole
// batches (spec.md §4.6, testable property 8).
func chunkRGatePairs(pairs []zwire.RGatePair, size int) [][]zwire.RGatePair {
	var batches [][]zwire.RGatePair
	for len(pairs) > 0 {
		n := size
		if n > len(pairs) {
			n = len(pairs)
		}
		batches = append(batches, pairs[:n])
		pairs = pairs[n:]
	}
	return append(batches, []zwire.RGatePair{})
}

// Close releases the socket, for shutdown.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeLocked()
	return nil
}
