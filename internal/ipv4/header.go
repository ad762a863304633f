// Package ipv4 parses the subset of an IPv4 packet the scoring modules
// need: header length, protocol, source/destination address, and (for
// TCP/UDP) the payload offset and port pair.
//
// TCP payload is assumed to start exactly 20 bytes after the TCP header
// begins, ignoring TCP options — a known approximation traded for a
// fixed, branch-free offset calculation.
package ipv4

import "encoding/binary"

const (
	// TCPProto is the IPv4 protocol number for TCP.
	TCPProto = 6
	// UDPProto is the IPv4 protocol number for UDP.
	UDPProto = 17

	minHeaderLen = 20
	tcpHeaderLen = 20 // fixed; TCP options are not accounted for (known approximation)
	udpHeaderLen = 8
)

// Header is the parsed subset of an IPv4 header relevant to scoring.
type Header struct {
	Protocol   uint8
	Src, Dst   uint32
	PayloadOff int // offset of the L4 payload from the start of the packet
	SrcPort    uint16
	DstPort    uint16
	HasL4Ports bool
}

// Parse decodes the IPv4 header (and, for TCP/UDP, the source/destination
// ports) from a raw packet. It returns false if the packet is too short to
// contain a valid IPv4 header.
func Parse(packet []byte) (Header, bool) {
	var h Header

	if len(packet) < minHeaderLen {
		return h, false
	}

	vhl := packet[0]
	ihl := int(vhl&0x0f) * 4
	if ihl < minHeaderLen || len(packet) < ihl {
		return h, false
	}

	h.Protocol = packet[9]
	h.Src = binary.BigEndian.Uint32(packet[12:16])
	h.Dst = binary.BigEndian.Uint32(packet[16:20])

	switch h.Protocol {
	case TCPProto:
		if len(packet) < ihl+4 {
			h.PayloadOff = ihl
			return h, true
		}
		h.SrcPort = binary.BigEndian.Uint16(packet[ihl : ihl+2])
		h.DstPort = binary.BigEndian.Uint16(packet[ihl+2 : ihl+4])
		h.HasL4Ports = true
		h.PayloadOff = ihl + tcpHeaderLen
	case UDPProto:
		if len(packet) < ihl+4 {
			h.PayloadOff = ihl
			return h, true
		}
		h.SrcPort = binary.BigEndian.Uint16(packet[ihl : ihl+2])
		h.DstPort = binary.BigEndian.Uint16(packet[ihl+2 : ihl+4])
		h.HasL4Ports = true
		h.PayloadOff = ihl + udpHeaderLen
	default:
		h.PayloadOff = ihl
	}

	if h.PayloadOff > len(packet) {
		h.PayloadOff = len(packet)
	}

	return h, true
}

// Payload returns the L4 payload bytes of packet, given an already-parsed
// Header.
func Payload(packet []byte, h Header) []byte {
	if h.PayloadOff >= len(packet) {
		return nil
	}
	return packet[h.PayloadOff:]
}
