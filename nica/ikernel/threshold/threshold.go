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

// Package threshold contains an ikernel that filters network packets by a
// 32 bit value carried in their payload.
//
// Packets whose value is below the configured threshold are dropped. Passing
// packets are delivered unmodified, unless their flow is mapped to a custom
// ring: then only the value is sent to the host as a four byte message on
// that ring, provided the ring has credit. A packet without credit is
// dropped and counted as dropped due to backpressure.
package threshold

import (
	"encoding/binary"

	"github.com/nicaproject/nica/nica/credit"
	"github.com/nicaproject/nica/nica/ikernel"
	"github.com/nicaproject/nica/pkg/ctxstore"
	"github.com/nicaproject/nica/pkg/gateway"
	"github.com/nicaproject/nica/pkg/stream"
)

// Kind is the configuration name of the ikernel.
const Kind = "threshold"

// ID is the identity of the threshold ikernel.
var ID = ikernel.NameUUID(Kind)

// Registers.
const (
	RegValue               = 0x10
	RegMin                 = 0x11
	RegMax                 = 0x12
	RegCount               = 0x13
	RegSumLo               = 0x14
	RegSumHi               = 0x15
	RegDropped             = 0x16
	RegDroppedBackpressure = 0x17
	// RegRingID is the first entry of the flow to ring map, indexed by flow
	// id.
	RegRingID = 0x20
)

const (
	// LogFlows is the log2 of the size of the flow to ring map.
	LogFlows = 3
	// ValueOffset is the byte offset of the value in the first payload word.
	ValueOffset = 14
	// messageLength is the length of a custom ring message.
	messageLength = 4
)

// Stats are the value statistics of the net pipeline.
type Stats struct {
	Min                 uint32
	Max                 uint32
	Count               uint32
	Sum                 uint64
	Dropped             uint32
	DroppedBackpressure uint32
}

type state uint8

const (
	stateMetadata state = iota
	stateData
	stateRest
)

// Ikernel is the threshold ikernel. Host traffic is passed unmodified.
type Ikernel struct {
	ikernel.Base

	threshold uint32
	// thresholdCache is the last written threshold, returned by reads.
	thresholdCache uint32
	updates        *stream.Fifo[uint32]
	rings          *ctxstore.Store[credit.RingID]
	stats          Stats

	state state
	meta  ikernel.Metadata
	ring  credit.RingID
	drop  bool
}

// New returns a threshold ikernel with the given initial threshold.
func New(threshold uint32) *Ikernel {
	return &Ikernel{
		Base:           ikernel.NewBase(ID),
		threshold:      threshold,
		thresholdCache: threshold,
		updates:        stream.New[uint32](1),
		rings:          ctxstore.New[credit.RingID](LogFlows),
		stats:          Stats{Min: ^uint32(0)},
	}
}

// Step implements ikernel.Ikernel.
func (k *Ikernel) Step(p *ikernel.Ports) {
	ikernel.PassPackets(p.Host)
	k.netIngress(p.Net, p.HostCreditRegs)
}

// Stats returns the current statistics.
func (k *Ikernel) Stats() Stats { return k.stats }

func (k *Ikernel) netIngress(p ikernel.PipelinePorts, regs credit.UpdateRegisters) {
	k.UpdateCredits(regs)
	if v, ok := k.updates.TryRead(); ok {
		k.threshold = v
	}
	k.rings.Update()

	switch k.state {
	case stateMetadata:
		if p.MetadataIn.Empty() {
			return
		}
		k.meta = p.MetadataIn.Read()
		k.ring = *k.rings.At(uint32(k.meta.FlowID))
		k.state = stateData
	case stateData:
		if p.DataIn.Empty() || p.Action.Full() || p.MetadataOut.Full() || p.DataOut.Full() {
			return
		}
		d := p.DataIn.Read()
		last := d.Last
		v := binary.BigEndian.Uint32(d.Data[ValueOffset:])
		backpressure := !k.CanTransmit(k.meta.IkernelID, k.ring, messageLength, credit.Host)
		k.record(v, backpressure)

		k.drop = v < k.threshold || backpressure
		if !k.drop {
			m := k.meta
			if k.ring != 0 {
				k.NewMessage(k.ring, credit.Host)
				m.RingID = k.ring
				m.Packet = ikernel.PacketMetadata{}
				m.EndOfMessage = true
				m.Length = messageLength
				d = stream.Word{Keep: stream.KeepMask(messageLength), Last: true, ID: d.ID, User: d.User}
				binary.BigEndian.PutUint32(d.Data[:], v)
			}
			p.MetadataOut.Write(m)
			p.DataOut.Write(d)
		}
		if k.drop {
			p.Action.Write(ikernel.Drop)
		} else {
			p.Action.Write(ikernel.Pass)
		}
		k.state = nextState(last)
	case stateRest:
		forward := !k.drop && k.ring == 0
		if p.DataIn.Empty() || (forward && p.DataOut.Full()) {
			return
		}
		d := p.DataIn.Read()
		if forward {
			p.DataOut.Write(d)
		}
		k.state = nextState(d.Last)
	}
}

func nextState(last bool) state {
	if last {
		return stateMetadata
	}
	return stateRest
}

func (k *Ikernel) record(v uint32, backpressure bool) {
	s := &k.stats
	s.Min = min(s.Min, v)
	s.Max = max(s.Max, v)
	s.Sum += uint64(v)
	s.Count++
	if v < k.threshold || backpressure {
		s.Dropped++
	}
	if backpressure {
		s.DroppedBackpressure++
	}
}

func (k *Ikernel) ringEntry(addr uint32) (uint32, bool) {
	if addr < RegRingID || addr >= RegRingID+uint32(k.rings.Size()) {
		return 0, false
	}
	return addr - RegRingID, true
}

// RegRead implements gateway.Handler.
func (k *Ikernel) RegRead(addr uint32) (int32, gateway.Result) {
	if flow, ok := k.ringEntry(addr); ok {
		if !k.rings.GatewayQuery(flow) {
			return 0, gateway.Busy
		}
		return int32(k.rings.GatewayContext), gateway.Done
	}

	s := &k.stats
	switch addr {
	case RegValue:
		return int32(k.thresholdCache), gateway.Done
	case RegMin:
		return int32(s.Min), gateway.Done
	case RegMax:
		return int32(s.Max), gateway.Done
	case RegCount:
		return int32(s.Count), gateway.Done
	case RegSumLo:
		return int32(uint32(s.Sum)), gateway.Done
	case RegSumHi:
		return int32(uint32(s.Sum >> 32)), gateway.Done
	case RegDropped:
		return int32(s.Dropped), gateway.Done
	case RegDroppedBackpressure:
		return int32(s.DroppedBackpressure), gateway.Done
	}
	return k.Base.RegRead(addr)
}

// RegWrite implements gateway.Handler.
func (k *Ikernel) RegWrite(addr uint32, value int32) gateway.Result {
	if flow, ok := k.ringEntry(addr); ok {
		if value < 0 || value > credit.MaxRings {
			return gateway.Fail
		}
		k.rings.GatewayContext = credit.RingID(value)
		if !k.rings.GatewaySet(flow) {
			return gateway.Busy
		}
		return gateway.Done
	}

	if addr == RegValue {
		if k.updates.Full() {
			return gateway.Busy
		}
		k.thresholdCache = uint32(value)
		k.updates.Write(uint32(value))
		return gateway.Done
	}
	return k.Base.RegWrite(addr, value)
}
