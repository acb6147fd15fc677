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

// Package customring encapsulates packets that an ikernel sends to a custom
// ring. Such packets are carried to the host as RoCE v2 unreliable connected
// SEND messages: the UDP headers are replaced by the ring transport headers,
// a base transport header (BTH) with the destination QP number and the next
// packet sequence number of the ring is prepended and room for the invariant
// CRC is appended.
//
// The ICRC is not computed; it is sent as zero.
package customring

import (
	"encoding/binary"

	"github.com/nicaproject/nica/nica/ikernel"
	"github.com/nicaproject/nica/pkg/ctxstore"
	"github.com/nicaproject/nica/pkg/gateway"
	"github.com/nicaproject/nica/pkg/stream"
)

// Register addresses.
const (
	RegDstMACLo = iota
	RegDstMACHi
	RegSrcMACLo
	RegSrcMACHi
	RegDstIP
	RegSrcIP
	RegDstUDP
	RegSrcUDP
	// RegNumContexts is the number of ring contexts (read only).
	RegNumContexts
	// RegDstQPN and RegPSN stage a context for RegWriteContext and hold the
	// result of RegReadContext.
	RegDstQPN
	RegPSN
	// Writing a ring id to RegWriteContext stores the staged context for
	// that ring. Writing a ring id to RegReadContext loads its context into
	// the staging registers; the write completes once the context is
	// available.
	RegWriteContext
	RegReadContext
)

const (
	// LogContexts is the log2 of the number of ring contexts.
	LogContexts = 4
	// RoCEPort is the UDP port of RoCE v2.
	RoCEPort = 4791
	// BTHSize is the size of the base transport header.
	BTHSize = 12
	// ICRCSize is the size of the invariant CRC trailer.
	ICRCSize = 4
	// Overhead is the number of bytes added to the payload.
	Overhead = BTHSize + ICRCSize

	opcodeUCSendOnly = 0x24
	defaultPKey      = 0xffff
)

// Context is the transport state of one ring.
type Context struct {
	DestQPN uint32
	PSN     uint32
}

// DefaultTransport is the initial transport header of the rings.
var DefaultTransport = ikernel.PacketMetadata{
	EthSrc: ikernel.MACFromUint64(1),
	IPSrc:  0x0a000001,
	UDPDst: RoCEPort,
	UDPSrc: RoCEPort,
}

// Ring holds the ring contexts and the transport headers of one pipeline.
type Ring struct {
	contexts *ctxstore.Store[Context]

	transport      ikernel.PacketMetadata
	transportCache ikernel.PacketMetadata
	updates        *stream.Fifo[ikernel.PacketMetadata]

	packets uint64
}

// New returns a ring stage with zeroed contexts and the default transport.
func New() *Ring {
	return &Ring{
		contexts:       ctxstore.New[Context](LogContexts),
		transport:      DefaultTransport,
		transportCache: DefaultTransport,
		updates:        stream.New[ikernel.PacketMetadata](1),
	}
}

// Transport returns the transport headers currently in use.
func (r *Ring) Transport() ikernel.PacketMetadata { return r.transport }

// Context returns the context of ring.
func (r *Ring) Context(ring uint8) Context { return *r.contexts.At(uint32(ring) - 1) }

// Packets returns the number of encapsulated packets.
func (r *Ring) Packets() uint64 { return r.packets }

// NextPacket returns the context of ring and advances its sequence number.
func (r *Ring) NextPacket(ring uint8) Context {
	c := r.contexts.At(uint32(ring) - 1)
	ret := *c
	c.PSN++
	return ret
}

// Encap rewrites the metadata of a packet sent to a custom ring and returns
// the new payload. Packets of ring 0 are returned unchanged.
func (r *Ring) Encap(m *ikernel.Metadata, payload []byte) []byte {
	if m.RingID == 0 {
		return payload
	}
	ctx := r.NextPacket(uint8(m.RingID))
	out := make([]byte, 0, len(payload)+Overhead)
	out = appendBTH(out, ctx, m.Length)
	out = append(out, payload...)
	out = append(out, make([]byte, ICRCSize)...)

	m.Packet = r.transport
	m.Length += Overhead
	m.RingID = 0
	r.packets++
	return out
}

func appendBTH(b []byte, ctx Context, length uint16) []byte {
	padCount := byte(-length & 3)
	b = append(b, opcodeUCSendOnly, padCount<<4)
	b = binary.BigEndian.AppendUint16(b, defaultPKey)
	b = binary.BigEndian.AppendUint32(b, ctx.DestQPN&0xffffff)
	return binary.BigEndian.AppendUint32(b, ctx.PSN)
}

// GatewayUpdate applies pending register updates. It implements
// gateway.Updater.
func (r *Ring) GatewayUpdate() {
	if t, ok := r.updates.TryRead(); ok {
		r.transport = t
	}
	r.contexts.Update()
}

// RegRead implements gateway.Handler.
func (r *Ring) RegRead(addr uint32) (int32, gateway.Result) {
	t := &r.transportCache
	switch addr {
	case RegDstMACLo:
		return int32(uint32(t.EthDst.Uint64())), gateway.Done
	case RegDstMACHi:
		return int32(t.EthDst.Uint64() >> 32), gateway.Done
	case RegSrcMACLo:
		return int32(uint32(t.EthSrc.Uint64())), gateway.Done
	case RegSrcMACHi:
		return int32(t.EthSrc.Uint64() >> 32), gateway.Done
	case RegDstIP:
		return int32(t.IPDst), gateway.Done
	case RegSrcIP:
		return int32(t.IPSrc), gateway.Done
	case RegDstUDP:
		return int32(t.UDPDst), gateway.Done
	case RegSrcUDP:
		return int32(t.UDPSrc), gateway.Done
	case RegNumContexts:
		return int32(r.contexts.Size()), gateway.Done
	case RegDstQPN:
		return int32(r.contexts.GatewayContext.DestQPN), gateway.Done
	case RegPSN:
		return int32(r.contexts.GatewayContext.PSN), gateway.Done
	}
	return -1, gateway.Fail
}

// RegWrite implements gateway.Handler.
func (r *Ring) RegWrite(addr uint32, value int32) gateway.Result {
	switch addr {
	case RegDstQPN:
		r.contexts.GatewayContext.DestQPN = uint32(value)
		return gateway.Done
	case RegPSN:
		r.contexts.GatewayContext.PSN = uint32(value)
		return gateway.Done
	case RegWriteContext:
		if r.contexts.GatewaySet(uint32(value) - 1) {
			return gateway.Done
		}
		return gateway.Busy
	case RegReadContext:
		if r.contexts.GatewayQuery(uint32(value) - 1) {
			return gateway.Done
		}
		return gateway.Busy
	}

	t := r.transportCache
	v := uint32(value)
	switch addr {
	case RegDstMACLo:
		t.EthDst = ikernel.MACFromUint64(t.EthDst.Uint64()&^0xffffffff | uint64(v))
	case RegDstMACHi:
		t.EthDst = ikernel.MACFromUint64(t.EthDst.Uint64()&0xffffffff | uint64(v&0xffff)<<32)
	case RegSrcMACLo:
		t.EthSrc = ikernel.MACFromUint64(t.EthSrc.Uint64()&^0xffffffff | uint64(v))
	case RegSrcMACHi:
		t.EthSrc = ikernel.MACFromUint64(t.EthSrc.Uint64()&0xffffffff | uint64(v&0xffff)<<32)
	case RegDstIP:
		t.IPDst = v
	case RegSrcIP:
		t.IPSrc = v
	case RegDstUDP:
		t.UDPDst = uint16(v)
	case RegSrcUDP:
		t.UDPSrc = uint16(v)
	default:
		return gateway.Fail
	}
	if r.updates.Full() {
		return gateway.Busy
	}
	r.transportCache = t
	r.updates.Write(t)
	return gateway.Done
}
