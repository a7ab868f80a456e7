// Package parser decodes Ethernet/IPv4/IPv6/TCP/UDP headers from raw
// frames. Every field access is gated by an explicit bounds check; the
// parser never reads past the captured region.
package parser

import (
	"encoding/binary"
	"errors"
	"fmt"
	"net"

	"NetWarden/internal/model"
)

// EtherType values the engine recognizes.
const (
	EtherTypeIPv4 uint16 = 0x0800
	EtherTypeARP  uint16 = 0x0806
	EtherTypeIPv6 uint16 = 0x86dd
)

const (
	ethHeaderLen  = 14
	ipv4MinLen    = 20
	ipv6HeaderLen = 40
	tcpMinLen     = 20
	udpHeaderLen  = 8

	// IPv6 fragment extension header; not traversed, only flagged.
	ipv6NextHeaderFragment = 44
)

// ErrMalformed marks frames that fail a bounds or consistency check.
var ErrMalformed = errors.New("malformed packet")

// ParsedPacket is the decoded view of one frame.
type ParsedPacket struct {
	SrcMAC    string
	DstMAC    string
	EtherType uint16

	HasIP     bool
	IPVersion uint8
	SrcIP     string
	DstIP     string
	SrcIPKey  uint32
	DstIPKey  uint32
	Protocol  uint8
	TTL       uint8

	HasTCP bool
	HasUDP bool

	SrcPort   uint16
	DstPort   uint16
	SeqNumber uint32
	AckNumber uint32
	TCPFlags  byte

	IPOffset        int
	TransportOffset int
	PayloadOffset   int
	PayloadLen      int

	Fragmented bool
}

// Tuple builds the flow key from the parsed addresses and ports.
func (p *ParsedPacket) Tuple() model.FiveTuple {
	return model.FiveTuple{
		SrcIP:    p.SrcIPKey,
		DstIP:    p.DstIPKey,
		SrcPort:  p.SrcPort,
		DstPort:  p.DstPort,
		Protocol: p.Protocol,
	}
}

func boundsOK(offset, required, total int) bool {
	return offset <= total && required <= total-offset
}

// Parse decodes a raw link-layer frame. A nil error with HasIP=false means
// the frame was well-formed but not IP; ErrMalformed wraps every bounds or
// consistency failure. Fragmented IP packets come back with the L3 payload
// left opaque and no transport decode.
func Parse(data []byte) (*ParsedPacket, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty frame", ErrMalformed)
	}

	p := &ParsedPacket{}
	offset := 0

	if err := parseEthernet(data, p, &offset); err != nil {
		return nil, err
	}

	switch p.EtherType {
	case EtherTypeIPv4:
		if err := parseIPv4(data, p, &offset); err != nil {
			return nil, err
		}
	case EtherTypeIPv6:
		if err := parseIPv6(data, p, &offset); err != nil {
			return nil, err
		}
	default:
		return p, nil
	}

	if p.Fragmented {
		p.setPayload(data, offset)
		return p, nil
	}

	switch p.Protocol {
	case model.ProtoTCP:
		if err := parseTCP(data, p, &offset); err != nil {
			return nil, err
		}
	case model.ProtoUDP:
		if err := parseUDP(data, p, &offset); err != nil {
			return nil, err
		}
	}

	p.setPayload(data, offset)
	return p, nil
}

func (p *ParsedPacket) setPayload(data []byte, offset int) {
	if offset < len(data) {
		p.PayloadOffset = offset
		p.PayloadLen = len(data) - offset
	}
}

func parseEthernet(data []byte, p *ParsedPacket, offset *int) error {
	if !boundsOK(*offset, ethHeaderLen, len(data)) {
		return fmt.Errorf("%w: truncated ethernet header", ErrMalformed)
	}

	p.DstMAC = net.HardwareAddr(data[*offset : *offset+6]).String()
	p.SrcMAC = net.HardwareAddr(data[*offset+6 : *offset+12]).String()
	p.EtherType = binary.BigEndian.Uint16(data[*offset+12 : *offset+14])

	*offset += ethHeaderLen
	p.IPOffset = *offset
	return nil
}

func parseIPv4(data []byte, p *ParsedPacket, offset *int) error {
	if !boundsOK(*offset, ipv4MinLen, len(data)) {
		return fmt.Errorf("%w: truncated ipv4 header", ErrMalformed)
	}

	ip := data[*offset:]
	version := ip[0] >> 4
	if version != 4 {
		return fmt.Errorf("%w: ipv4 version field is %d", ErrMalformed, version)
	}

	headerLen := int(ip[0]&0x0f) * 4
	if headerLen < ipv4MinLen || !boundsOK(*offset, headerLen, len(data)) {
		return fmt.Errorf("%w: bogus ihl %d", ErrMalformed, headerLen)
	}

	flagsFrag := binary.BigEndian.Uint16(ip[6:8])
	if flagsFrag&0x2000 != 0 || flagsFrag&0x1fff != 0 {
		p.Fragmented = true
	}

	p.HasIP = true
	p.IPVersion = 4
	p.TTL = ip[8]
	p.Protocol = ip[9]
	p.SrcIPKey = model.IPv4Key(ip[12:16])
	p.DstIPKey = model.IPv4Key(ip[16:20])
	p.SrcIP = model.FormatIPv4(p.SrcIPKey)
	p.DstIP = model.FormatIPv4(p.DstIPKey)

	*offset += headerLen
	p.TransportOffset = *offset
	return nil
}

func parseIPv6(data []byte, p *ParsedPacket, offset *int) error {
	if !boundsOK(*offset, ipv6HeaderLen, len(data)) {
		return fmt.Errorf("%w: truncated ipv6 header", ErrMalformed)
	}

	ip := data[*offset:]

	p.HasIP = true
	p.IPVersion = 6
	p.Protocol = ip[6] // next_header; extension chains are not traversed
	p.TTL = ip[7]
	p.SrcIP = net.IP(ip[8:24]).String()
	p.DstIP = net.IP(ip[24:40]).String()
	p.SrcIPKey = model.IPv6Key(ip[8:24])
	p.DstIPKey = model.IPv6Key(ip[24:40])

	if p.Protocol == ipv6NextHeaderFragment {
		p.Fragmented = true
	}

	*offset += ipv6HeaderLen
	p.TransportOffset = *offset
	return nil
}

func parseTCP(data []byte, p *ParsedPacket, offset *int) error {
	if !boundsOK(*offset, tcpMinLen, len(data)) {
		return fmt.Errorf("%w: truncated tcp header", ErrMalformed)
	}

	tcp := data[*offset:]
	p.SrcPort = binary.BigEndian.Uint16(tcp[0:2])
	p.DstPort = binary.BigEndian.Uint16(tcp[2:4])
	p.SeqNumber = binary.BigEndian.Uint32(tcp[4:8])
	p.AckNumber = binary.BigEndian.Uint32(tcp[8:12])

	headerLen := int(tcp[12]>>4) * 4
	if headerLen < tcpMinLen || !boundsOK(*offset, headerLen, len(data)) {
		return fmt.Errorf("%w: bogus tcp data offset %d", ErrMalformed, headerLen)
	}

	p.TCPFlags = tcp[13]
	p.HasTCP = true

	*offset += headerLen
	return nil
}

func parseUDP(data []byte, p *ParsedPacket, offset *int) error {
	if !boundsOK(*offset, udpHeaderLen, len(data)) {
		return fmt.Errorf("%w: truncated udp header", ErrMalformed)
	}

	udp := data[*offset:]
	p.SrcPort = binary.BigEndian.Uint16(udp[0:2])
	p.DstPort = binary.BigEndian.Uint16(udp[2:4])
	p.HasUDP = true

	*offset += udpHeaderLen
	return nil
}

// TCPFlagsString renders flag bits for logs, e.g. "SYN ACK".
func TCPFlagsString(flags byte) string {
	names := []struct {
		bit  byte
		name string
	}{
		{model.TCPSyn, "SYN"},
		{model.TCPAck, "ACK"},
		{model.TCPFin, "FIN"},
		{model.TCPRst, "RST"},
		{model.TCPPsh, "PSH"},
		{model.TCPUrg, "URG"},
	}
	out := ""
	for _, n := range names {
		if flags&n.bit != 0 {
			if out != "" {
				out += " "
			}
			out += n.name
		}
	}
	if out == "" {
		return "none"
	}
	return out
}
