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

package ikernel

import (
	"fmt"
	"net"

	"github.com/nicaproject/nica/nica/credit"
)

// MAC is an Ethernet address.
type MAC [6]byte

// HardwareAddr returns m as a net.HardwareAddr.
func (m MAC) HardwareAddr() net.HardwareAddr {
	return net.HardwareAddr(m[:])
}

func (m MAC) String() string {
	return m.HardwareAddr().String()
}

// MACFrom copies the first six bytes of hw. Shorter addresses are zero
// padded.
func MACFrom(hw net.HardwareAddr) MAC {
	var m MAC
	copy(m[:], hw)
	return m
}

// Uint64 returns the address as a 48 bit integer, most significant byte
// first.
func (m MAC) Uint64() uint64 {
	var v uint64
	for _, b := range m {
		v = v<<8 | uint64(b)
	}
	return v
}

// MACFromUint64 is the inverse of MAC.Uint64.
func MACFromUint64(v uint64) MAC {
	var m MAC
	for i := len(m) - 1; i >= 0; i-- {
		m[i] = byte(v)
		v >>= 8
	}
	return m
}

// PacketMetadata are the header fields of a UDP packet.
type PacketMetadata struct {
	EthDst MAC
	EthSrc MAC
	IPDst  uint32
	IPSrc  uint32
	UDPDst uint16
	UDPSrc uint16
}

// Reply returns the header fields of a packet sent back to the source.
func (p PacketMetadata) Reply() PacketMetadata {
	return PacketMetadata{
		EthDst: p.EthSrc,
		EthSrc: p.EthDst,
		IPDst:  p.IPSrc,
		IPSrc:  p.IPDst,
		UDPDst: p.UDPSrc,
		UDPSrc: p.UDPDst,
	}
}

// Metadata accompanies every packet going into or out of an ikernel. For
// ring 0 (the network stack) Packet holds the UDP headers; for a custom ring
// only EndOfMessage is meaningful.
type Metadata struct {
	FlowID    uint8
	IkernelID uint32
	RingID    credit.RingID
	// IPIdentification is the value of the IP identification field.
	IPIdentification uint16
	// Length is the UDP payload length.
	Length uint16

	Packet PacketMetadata
	// EndOfMessage marks the last packet of a custom ring message.
	EndOfMessage bool
}

// Reply returns the metadata of a response of the given length. The
// addresses are swapped for packets of the network stack.
func (m Metadata) Reply(length uint16) Metadata {
	r := m
	if m.RingID == 0 {
		r.Packet = m.Packet.Reply()
	}
	r.Length = length
	return r
}

// EmptyPacket reports whether the packet carries no payload.
func (m Metadata) EmptyPacket() bool {
	return m.Length == 0
}

func (m Metadata) String() string {
	if m.RingID != 0 {
		return fmt.Sprintf("flow=%d ikernel=%d ring=%d len=%d eom=%t",
			m.FlowID, m.IkernelID, m.RingID, m.Length, m.EndOfMessage)
	}
	return fmt.Sprintf("flow=%d ikernel=%d %08x:%d->%08x:%d len=%d",
		m.FlowID, m.IkernelID, m.Packet.IPSrc, m.Packet.UDPSrc,
		m.Packet.IPDst, m.Packet.UDPDst, m.Length)
}
