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

// Package pktgen contains a packet generator ikernel. Every packet sent by
// the host is passed and then repeated burst size times. The copies carry
// the number of copies still to be sent (burst size down to 1) in the IP
// identification field. Network traffic is passed.
package pktgen

import (
	"github.com/google/uuid"

	"github.com/nicaproject/nica/nica/ikernel"
	"github.com/nicaproject/nica/pkg/gateway"
	"github.com/nicaproject/nica/pkg/stream"
)

// Kind is the configuration name of the ikernel.
const Kind = "pktgen"

// ID is the identity of the pktgen ikernel.
var ID = uuid.MustParse("2f8e8996-1b5e-4c02-908c-0f2878b0d4e4")

// Registers.
const (
	// RegBurstSize is the number of copies sent for each packet.
	RegBurstSize = 0x10
	// RegCurPacket is the number of copies still to be sent (read only).
	RegCurPacket = 0x11
)

// MaxPacketWords is the largest packet that can be repeated. Longer packets
// are passed but repeated truncated.
const MaxPacketWords = 2048 / stream.WordSize

type state uint8

const (
	stateIdle state = iota
	stateInput
	stateDuplicate
)

// Ikernel is the packet generator.
type Ikernel struct {
	ikernel.Base

	burstSize      int
	burstSizeCache int
	updates        *stream.Fifo[int]

	state     state
	meta      ikernel.Metadata
	data      []stream.Word
	offset    int
	curPacket int
}

// New returns a packet generator with the given burst size.
func New(burstSize int) *Ikernel {
	return &Ikernel{
		Base:           ikernel.NewBase(ID),
		burstSize:      burstSize,
		burstSizeCache: burstSize,
		updates:        stream.New[int](1),
		data:           make([]stream.Word, 0, MaxPacketWords),
	}
}

// Step implements ikernel.Ikernel.
func (k *Ikernel) Step(p *ikernel.Ports) {
	k.generate(p.Host)
	ikernel.PassPackets(p.Net)
}

func (k *Ikernel) generate(p ikernel.PipelinePorts) {
	if v, ok := k.updates.TryRead(); ok {
		k.burstSize = v
	}

	switch k.state {
	case stateIdle:
		if p.MetadataIn.Empty() || p.Action.Full() || p.MetadataOut.Full() {
			return
		}
		k.meta = p.MetadataIn.Read()
		p.Action.Write(ikernel.Pass)
		p.MetadataOut.Write(k.meta)
		k.data = k.data[:0]
		k.state = stateInput
		fallthrough
	case stateInput:
		if p.DataIn.Empty() || p.DataOut.Full() {
			return
		}
		d := p.DataIn.Read()
		if len(k.data) < MaxPacketWords {
			k.data = append(k.data, d)
		}
		p.DataOut.Write(d)
		if !d.Last {
			return
		}
		k.data[len(k.data)-1].Last = true
		k.offset = 0
		k.curPacket = k.burstSize
		if k.burstSize > 0 {
			k.state = stateDuplicate
		} else {
			k.state = stateIdle
		}
	case stateDuplicate:
		if p.DataOut.Full() ||
			(k.offset == 0 && (p.Action.Full() || p.MetadataOut.Full())) {
			return
		}
		if k.offset == 0 {
			m := k.meta
			m.IPIdentification = uint16(k.curPacket)
			p.Action.Write(ikernel.Generate)
			p.MetadataOut.Write(m)
		}
		p.DataOut.Write(k.data[k.offset])
		k.offset++
		if k.offset < len(k.data) {
			return
		}
		k.offset = 0
		k.curPacket--
		if k.curPacket == 0 {
			k.state = stateIdle
		}
	}
}

// RegRead implements gateway.Handler.
func (k *Ikernel) RegRead(addr uint32) (int32, gateway.Result) {
	switch addr {
	case RegBurstSize:
		return int32(k.burstSizeCache), gateway.Done
	case RegCurPacket:
		return int32(k.curPacket), gateway.Done
	}
	return k.Base.RegRead(addr)
}

// RegWrite implements gateway.Handler.
func (k *Ikernel) RegWrite(addr uint32, value int32) gateway.Result {
	if addr != RegBurstSize {
		return k.Base.RegWrite(addr, value)
	}
	if value < 0 {
		return gateway.Fail
	}
	if k.updates.Full() {
		return gateway.Busy
	}
	k.burstSizeCache = int(value)
	k.updates.Write(int(value))
	return gateway.Done
}
