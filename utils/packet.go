package utils

import (
	"encoding/binary"
	"fmt"
	"net"

	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"
)

const (
	ProtoICMP   = 1
	ProtoTCP    = 6
	ProtoUDP    = 17
	ProtoICMPv6 = 58

	minPacketLen = 4
	ethHeaderLen = 14
)

// Packet is a summary of one frame, used for debug logging only.
type Packet struct {
	Version  int
	Src      net.IP
	Dst      net.IP
	SrcPort  uint16
	DstPort  uint16
	Protocol int
	Fragment bool
	Len      int
	// EtherType is set for layer 2 frames.
	EtherType uint16
}

func (p *Packet) String() string {
	if p.Version == 0 {
		return fmt.Sprintf("ethertype=%#04x len=%d", p.EtherType, p.Len)
	}
	return fmt.Sprintf("v%d proto=%d %s:%d -> %s:%d len=%d frag=%v",
		p.Version, p.Protocol, p.Src, p.SrcPort, p.Dst, p.DstPort, p.Len, p.Fragment)
}

// ParseFrame summarizes an Ethernet frame, descending into IP payloads.
func ParseFrame(data []byte, p *Packet) error {
	if len(data) < ethHeaderLen {
		return fmt.Errorf("frame is less than %v bytes", ethHeaderLen)
	}

	p.EtherType = binary.BigEndian.Uint16(data[12:14])
	switch p.EtherType {
	case 0x0800, 0x86dd:
		if err := ParsePacket(data[ethHeaderLen:], p); err != nil {
			return err
		}
	default:
		*p = Packet{EtherType: p.EtherType}
	}
	p.Len = len(data)
	return nil
}

// ParsePacket summarizes an IPv4 or IPv6 packet.
func ParsePacket(data []byte, p *Packet) error {
	if len(data) == 0 {
		return fmt.Errorf("empty packet")
	}

	ether := p.EtherType
	*p = Packet{EtherType: ether, Len: len(data)}

	var payload []byte
	switch data[0] >> 4 {
	case 4:
		h, err := ipv4.ParseHeader(data)
		if err != nil {
			return err
		}
		if h.Len < ipv4.HeaderLen || h.Len > len(data) {
			return fmt.Errorf("packet had an invalid header length: %v", h.Len)
		}
		p.Version = 4
		p.Src, p.Dst = h.Src, h.Dst
		p.Protocol = h.Protocol
		// second or further fragment of a fragmented packet
		p.Fragment = h.FragOff != 0
		payload = data[h.Len:]

	case 6:
		h, err := ipv6.ParseHeader(data)
		if err != nil {
			return err
		}
		p.Version = 6
		p.Src, p.Dst = h.Src, h.Dst
		p.Protocol = h.NextHeader
		payload = data[ipv6.HeaderLen:]

	default:
		return fmt.Errorf("packet is not ip, version: %v", data[0]>>4)
	}

	if p.Fragment || (p.Protocol != ProtoTCP && p.Protocol != ProtoUDP) {
		return nil
	}
	if len(payload) < minPacketLen {
		return fmt.Errorf("transport header is less than %v bytes", minPacketLen)
	}
	p.SrcPort = binary.BigEndian.Uint16(payload[0:2])
	p.DstPort = binary.BigEndian.Uint16(payload[2:4])
	return nil
}
