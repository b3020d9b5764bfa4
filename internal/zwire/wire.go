// Package zwire implements the length-prefixed, versioned wire codec
// used to talk to the routing daemon: framing, and the encode/decode
// pairs for the four message kinds this oracle needs (spec.md §4.1).
//
// The framing idiom (read 2 bytes to learn the length, read the rest,
// validate a marker/version pair, back-patch the length at offset 0 on
// write) follows the buffered-reader/writer + encoding/binary style of
// jkmar-gobgp.1.27/server/zclient.go, a zapi client for the same wire
// family kept in this retrieval pack as reference material.
package zwire

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"net/netip"

	"github.com/nextwire/bgpscand/internal/nexthop"
)

// Version is the ABI version carried in every header. A mismatch aborts
// the exchange (spec.md §6).
const Version = 1

// Marker is the fixed header byte every message carries.
const Marker = 0xFF

// HeaderSize is the number of bytes in a ZWire header: total_length(2) +
// marker(1) + version(1) + command(2).
const HeaderSize = 6

// MaxMessageSize bounds a single message, used by RGateVerify to size
// its batches (spec.md §4.2).
const MaxMessageSize = 4096

// Command identifies the message kind.
type Command uint16

const (
	CmdIPv4NexthopLookup Command = iota + 1
	CmdIPv6NexthopLookup
	CmdIPv4ImportLookup
	CmdIPv4RGateVerify
)

// Header is the 6-byte envelope prefixing every message.
type Header struct {
	TotalLength uint16
	Marker      uint8
	Version     uint8
	Command     Command
}

// WriteMessage frames cmd+body and writes it to w, back-patching the
// total_length field with the final buffer size as spec.md §4.1
// requires.
func WriteMessage(w *bufio.Writer, cmd Command, body []byte) error {
	buf := make([]byte, HeaderSize+len(body))
	buf[2] = Marker
	buf[3] = Version
	binary.BigEndian.PutUint16(buf[4:6], uint16(cmd))
	copy(buf[HeaderSize:], body)
	binary.BigEndian.PutUint16(buf[0:2], uint16(len(buf)))

	n, err := w.Write(buf)
	if err != nil {
		return fmt.Errorf("zwire: write failed: %w", err)
	}
	if n <= 0 {
		return fmt.Errorf("zwire: short write")
	}
	return w.Flush()
}

// ReadMessage reads one framed message from r, validating the marker
// and version before returning the command and its body.
func ReadMessage(r *bufio.Reader) (Command, []byte, error) {
	lenBuf := make([]byte, 2)
	if _, err := io.ReadFull(r, lenBuf); err != nil {
		return 0, nil, fmt.Errorf("zwire: short read of length: %w", err)
	}
	totalLength := binary.BigEndian.Uint16(lenBuf)
	if totalLength < HeaderSize {
		return 0, nil, fmt.Errorf("zwire: invalid total_length %d", totalLength)
	}

	rest := make([]byte, totalLength-2)
	if _, err := io.ReadFull(r, rest); err != nil {
		return 0, nil, fmt.Errorf("zwire: short read of body: %w", err)
	}

	if rest[0] != Marker {
		return 0, nil, fmt.Errorf("zwire: bad marker 0x%x", rest[0])
	}
	if rest[1] != Version {
		return 0, nil, fmt.Errorf("zwire: version mismatch: got %d want %d", rest[1], Version)
	}
	cmd := Command(binary.BigEndian.Uint16(rest[2:4]))
	return cmd, rest[4:], nil
}

// EncodeNexthopLookupV4Query builds the query body for an
// IPv4-Nexthop-Lookup message.
func EncodeNexthopLookupV4Query(addr netip.Addr) []byte {
	a4 := addr.As4()
	return a4[:]
}

// DecodeNexthopLookupV4Response decodes an IPv4-Nexthop-Lookup response
// body: echoed addr, metric, and the ordered nexthop list.
func DecodeNexthopLookupV4Response(body []byte) (netip.Addr, uint32, []nexthop.NextHop, error) {
	if len(body) < 9 {
		return netip.Addr{}, 0, nil, fmt.Errorf("zwire: v4 nexthop response too short")
	}
	addr := netip.AddrFrom4([4]byte(body[0:4]))
	metric := binary.BigEndian.Uint32(body[4:8])
	n := int(body[8])
	nexthops, err := decodeNexthopListV4(body[9:], n)
	if err != nil {
		return netip.Addr{}, 0, nil, err
	}
	return addr, metric, nexthops, nil
}

func decodeNexthopListV4(buf []byte, n int) ([]nexthop.NextHop, error) {
	nhs := make([]nexthop.NextHop, 0, n)
	off := 0
	for i := 0; i < n; i++ {
		if off >= len(buf) {
			return nil, fmt.Errorf("zwire: truncated v4 nexthop list")
		}
		tag := nexthop.Tag(buf[off])
		off++
		var nh nexthop.NextHop
		nh.Tag = tag
		switch tag {
		case nexthop.TagIPv4Gate:
			if off+4 > len(buf) {
				return nil, fmt.Errorf("zwire: truncated v4 gate nexthop")
			}
			nh.Gate4 = netip.AddrFrom4([4]byte(buf[off : off+4]))
			off += 4
		case nexthop.TagIPv4IfIndex, nexthop.TagIPv4IfName:
			if off+4 > len(buf) {
				return nil, fmt.Errorf("zwire: truncated v4 ifindex nexthop")
			}
			nh.IfIndex = binary.BigEndian.Uint32(buf[off : off+4])
			off += 4
		default:
			// Unknown/unexpected tag for this AFI: preserve it with an
			// empty payload rather than desyncing the framing.
		}
		nhs = append(nhs, nh)
	}
	return nhs, nil
}

// EncodeNexthopLookupV6Query builds the query body for an
// IPv6-Nexthop-Lookup message.
func EncodeNexthopLookupV6Query(addr netip.Addr) []byte {
	a16 := addr.As16()
	return a16[:]
}

// DecodeNexthopLookupV6Response decodes an IPv6-Nexthop-Lookup response.
func DecodeNexthopLookupV6Response(body []byte) (netip.Addr, uint32, []nexthop.NextHop, error) {
	if len(body) < 21 {
		return netip.Addr{}, 0, nil, fmt.Errorf("zwire: v6 nexthop response too short")
	}
	addr := netip.AddrFrom16([16]byte(body[0:16]))
	metric := binary.BigEndian.Uint32(body[16:20])
	n := int(body[20])
	nexthops, err := decodeNexthopListV6(body[21:], n)
	if err != nil {
		return netip.Addr{}, 0, nil, err
	}
	return addr, metric, nexthops, nil
}

func decodeNexthopListV6(buf []byte, n int) ([]nexthop.NextHop, error) {
	nhs := make([]nexthop.NextHop, 0, n)
	off := 0
	for i := 0; i < n; i++ {
		if off >= len(buf) {
			return nil, fmt.Errorf("zwire: truncated v6 nexthop list")
		}
		tag := nexthop.Tag(buf[off])
		off++
		var nh nexthop.NextHop
		nh.Tag = tag
		switch tag {
		case nexthop.TagIPv6Gate:
			if off+16 > len(buf) {
				return nil, fmt.Errorf("zwire: truncated v6 gate nexthop")
			}
			nh.Gate6 = netip.AddrFrom16([16]byte(buf[off : off+16]))
			off += 16
		case nexthop.TagIPv6GateIfIndex, nexthop.TagIPv6GateIfName:
			if off+20 > len(buf) {
				return nil, fmt.Errorf("zwire: truncated v6 gate+ifindex nexthop")
			}
			nh.Gate6 = netip.AddrFrom16([16]byte(buf[off : off+16]))
			nh.IfIndex = binary.BigEndian.Uint32(buf[off+16 : off+20])
			off += 20
		case nexthop.TagIPv6IfIndex, nexthop.TagIPv6IfName:
			if off+4 > len(buf) {
				return nil, fmt.Errorf("zwire: truncated v6 ifindex nexthop")
			}
			nh.IfIndex = binary.BigEndian.Uint32(buf[off : off+4])
			off += 4
		default:
			// Unknown tag: zero payload, preserved.
		}
		nhs = append(nhs, nh)
	}
	return nhs, nil
}

// EncodeImportLookupV4Query builds the query body for an
// IPv4-Import-Lookup message.
func EncodeImportLookupV4Query(prefixLen uint8, addr netip.Addr) []byte {
	a4 := addr.As4()
	buf := make([]byte, 5)
	buf[0] = prefixLen
	copy(buf[1:], a4[:])
	return buf
}

// DecodeImportLookupV4Response decodes an IPv4-Import-Lookup response:
// addr, metric, and (if present) the first nexthop. Per spec.md §9's
// open question, a non-IPv4-gate first nexthop is decoded and simply
// carries no IPv4 gate — the caller still treats the route as active.
func DecodeImportLookupV4Response(body []byte) (netip.Addr, uint32, []nexthop.NextHop, error) {
	if len(body) < 9 {
		return netip.Addr{}, 0, nil, fmt.Errorf("zwire: v4 import response too short")
	}
	addr := netip.AddrFrom4([4]byte(body[0:4]))
	metric := binary.BigEndian.Uint32(body[4:8])
	n := int(body[8])
	if n == 0 {
		return addr, metric, nil, nil
	}
	nhs, err := decodeNexthopListV4(body[9:], 1)
	if err != nil {
		return netip.Addr{}, 0, nil, err
	}
	return addr, metric, nhs, nil
}

// RGatePair is one (prefix gate, recursive gate) record submitted in an
// IPv4-RGate-Verify query.
type RGatePair struct {
	Prefix netip.Prefix
	Gate   netip.Addr
	RGate  netip.Addr
}

// EncodeRGateVerifyQuery builds one batch of the bidirectional
// IPv4-RGate-Verify exchange.
func EncodeRGateVerifyQuery(moreFollows bool, pairs []RGatePair) []byte {
	buf := make([]byte, 3+8*len(pairs))
	if moreFollows {
		buf[0] = 1
	}
	binary.BigEndian.PutUint16(buf[1:3], uint16(len(pairs)))
	off := 3
	for _, p := range pairs {
		g4 := p.Gate.As4()
		r4 := p.RGate.As4()
		copy(buf[off:off+4], g4[:])
		copy(buf[off+4:off+8], r4[:])
		off += 8
	}
	return buf
}

// DecodeRGateVerifyResponse decodes one batch of the IPv4-RGate-Verify
// response stream: whether more batches follow, and the prefixes
// reported as desynced in this batch.
func DecodeRGateVerifyResponse(body []byte) (bool, []netip.Prefix, error) {
	if len(body) < 3 {
		return false, nil, fmt.Errorf("zwire: rgate-verify response too short")
	}
	moreFollows := body[0] != 0
	count := int(binary.BigEndian.Uint16(body[1:3]))
	off := 3
	prefixes := make([]netip.Prefix, 0, count)
	for i := 0; i < count; i++ {
		if off+5 > len(body) {
			return false, nil, fmt.Errorf("zwire: truncated rgate-verify response")
		}
		addr := netip.AddrFrom4([4]byte(body[off : off+4]))
		plen := int(body[off+4])
		off += 5
		pfx, err := addr.Prefix(plen)
		if err != nil {
			return false, nil, fmt.Errorf("zwire: invalid prefix in rgate-verify response: %w", err)
		}
		prefixes = append(prefixes, pfx)
	}
	return moreFollows, prefixes, nil
}

// RGateVerifyBatchCapacity returns K, the maximum number of pairs that
// fit in one rgate-verify query message (spec.md §4.2).
func RGateVerifyBatchCapacity() int {
	return (MaxMessageSize - HeaderSize - 3) / 8
}
