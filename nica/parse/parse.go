// Copyright 2026 The NICA Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//   http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package parse extracts the UDP headers of Ethernet frames and builds
// frames from header fields.
package parse

import (
	"encoding/binary"
	"net"

	"github.com/gopacket/gopacket"
	"github.com/gopacket/gopacket/layers"

	"github.com/nicaproject/nica/nica/flowtable"
	"github.com/nicaproject/nica/nica/ikernel"
	"github.com/nicaproject/nica/pkg/private/serrors"
)

// Frames that are not UDP over IPv4 are rejected with one of these errors.
var (
	ErrMalformed = serrors.New("malformed Ethernet frame")
	ErrNotIPv4   = serrors.New("not an IPv4 packet")
	ErrBadLength = serrors.New("bad IPv4 length")
	ErrNotUDP    = serrors.New("not a UDP packet")
)

const (
	// HeaderSize is the size of the Ethernet, IPv4 and UDP headers without
	// options.
	HeaderSize = 14 + 20 + 8
	// MinFrameSize is the minimum Ethernet frame size without FCS.
	MinFrameSize = 60

	minIPv4Length = 20 + 8
	defaultTTL    = 64
)

// Packet holds the fields of a UDP packet.
type Packet struct {
	Meta             ikernel.PacketMetadata
	IPIdentification uint16
	// Payload references the parsed frame.
	Payload []byte
}

// Flow returns the flow key of the packet.
func (p *Packet) Flow() flowtable.Flow {
	return flowtable.Flow{
		SrcAddr: p.Meta.IPSrc,
		DstAddr: p.Meta.IPDst,
		SrcPort: p.Meta.UDPSrc,
		DstPort: p.Meta.UDPDst,
	}
}

// Parser decodes frames. It reuses its layers and is not safe for concurrent
// use.
type Parser struct {
	eth layers.Ethernet
	ip4 layers.IPv4
	udp layers.UDP
	pkt Packet
}

// Parse decodes frame. The returned packet is valid until the next call.
func (p *Parser) Parse(frame []byte) (*Packet, error) {
	if err := p.eth.DecodeFromBytes(frame, gopacket.NilDecodeFeedback); err != nil {
		return nil, serrors.Wrap("decoding Ethernet", ErrMalformed, "err", err)
	}
	if p.eth.EthernetType != layers.EthernetTypeIPv4 {
		return nil, ErrNotIPv4
	}
	data := p.eth.LayerPayload()
	if len(data) < 4 || binary.BigEndian.Uint16(data[2:4]) < minIPv4Length {
		return nil, ErrBadLength
	}
	if err := p.ip4.DecodeFromBytes(data, gopacket.NilDecodeFeedback); err != nil {
		return nil, serrors.Wrap("decoding IPv4", ErrBadLength, "err", err)
	}
	if p.ip4.Protocol != layers.IPProtocolUDP {
		return nil, ErrNotUDP
	}
	if err := p.udp.DecodeFromBytes(p.ip4.LayerPayload(), gopacket.NilDecodeFeedback); err != nil {
		return nil, serrors.Wrap("decoding UDP", ErrBadLength, "err", err)
	}
	p.pkt = Packet{
		Meta: ikernel.PacketMetadata{
			EthDst: ikernel.MACFrom(p.eth.DstMAC),
			EthSrc: ikernel.MACFrom(p.eth.SrcMAC),
			IPDst:  ipToUint32(p.ip4.DstIP),
			IPSrc:  ipToUint32(p.ip4.SrcIP),
			UDPDst: uint16(p.udp.DstPort),
			UDPSrc: uint16(p.udp.SrcPort),
		},
		IPIdentification: p.ip4.Id,
		Payload:          p.udp.LayerPayload(),
	}
	return &p.pkt, nil
}

var serializeOptions = gopacket.SerializeOptions{
	FixLengths:       true,
	ComputeChecksums: true,
}

// Build returns an Ethernet frame carrying payload with the given headers.
// Frames shorter than MinFrameSize are zero padded.
func Build(m ikernel.PacketMetadata, ipID uint16, payload []byte) ([]byte, error) {
	eth := layers.Ethernet{
		SrcMAC:       m.EthSrc.HardwareAddr(),
		DstMAC:       m.EthDst.HardwareAddr(),
		EthernetType: layers.EthernetTypeIPv4,
	}
	ip := layers.IPv4{
		Version:  4,
		IHL:      5,
		Id:       ipID,
		TTL:      defaultTTL,
		Protocol: layers.IPProtocolUDP,
		SrcIP:    uint32ToIP(m.IPSrc),
		DstIP:    uint32ToIP(m.IPDst),
	}
	udp := layers.UDP{
		SrcPort: layers.UDPPort(m.UDPSrc),
		DstPort: layers.UDPPort(m.UDPDst),
	}
	if err := udp.SetNetworkLayerForChecksum(&ip); err != nil {
		return nil, serrors.Wrap("setting network layer", err)
	}
	buf := gopacket.NewSerializeBuffer()
	err := gopacket.SerializeLayers(buf, serializeOptions, &eth, &ip, &udp,
		gopacket.Payload(payload))
	if err != nil {
		return nil, serrors.Wrap("serializing frame", err)
	}
	frame := buf.Bytes()
	if len(frame) < MinFrameSize {
		frame = append(frame, make([]byte, MinFrameSize-len(frame))...)
	}
	return frame, nil
}

func ipToUint32(ip net.IP) uint32 {
	ip4 := ip.To4()
	if ip4 == nil {
		return 0
	}
	return binary.BigEndian.Uint32(ip4)
}

func uint32ToIP(v uint32) net.IP {
	return binary.BigEndian.AppendUint32(make(net.IP, 0, net.IPv4len), v)
}
