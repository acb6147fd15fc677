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

// Package echo contains an ikernel that answers network packets itself.
//
// Every packet arriving from the network is dropped on its way to the host
// and a copy with swapped addresses is generated towards the network. In
// sockperf mode only ping-pong requests are answered, with the client flag
// cleared in the response. Traffic sent by the host is dropped.
package echo

import (
	"encoding/binary"

	"github.com/google/uuid"

	"github.com/nicaproject/nica/nica/ikernel"
	"github.com/nicaproject/nica/pkg/gateway"
	"github.com/nicaproject/nica/pkg/stream"
)

// Kind is the configuration name of the ikernel.
const Kind = "echo"

// ID is the identity of the echo ikernel.
var ID = uuid.MustParse("6d1efc9b-8655-42d7-8000-9e3e998dbd5c")

// RegRespondToSockperf selects sockperf mode when non-zero.
const RegRespondToSockperf = 0x10

// Sockperf header flags at byte 8 of the payload.
const (
	flagsOffset     = 8
	flagClient      = 0x1
	flagPongRequest = 0x2
)

type state uint8

const (
	stateMetadata state = iota
	stateData
)

// Ikernel is the echo ikernel.
type Ikernel struct {
	ikernel.Base

	respondToSockperf      bool
	respondToSockperfCache bool
	updates                *stream.Fifo[bool]

	state   state
	first   bool
	respond bool
	meta    ikernel.Metadata
}

// New returns an echo ikernel.
func New(respondToSockperf bool) *Ikernel {
	return &Ikernel{
		Base:                   ikernel.NewBase(ID),
		respondToSockperf:      respondToSockperf,
		respondToSockperfCache: respondToSockperf,
		updates:                stream.New[bool](1),
	}
}

// Step implements ikernel.Ikernel.
func (k *Ikernel) Step(p *ikernel.Ports) {
	k.echo(p.Net, p.Host)
	ikernel.DropPackets(p.Host)
}

func (k *Ikernel) echo(in, out ikernel.PipelinePorts) {
	if v, ok := k.updates.TryRead(); ok {
		k.respondToSockperf = v
	}

	switch k.state {
	case stateMetadata:
		if in.MetadataIn.Empty() || in.Action.Full() {
			return
		}
		k.meta = in.MetadataIn.Read()
		in.Action.Write(ikernel.Drop)
		k.state = stateData
		k.first = true
	case stateData:
		// The first word may start a response, which needs room in all
		// output queues.
		if in.DataIn.Empty() || out.DataOut.Full() ||
			(k.first && (out.Action.Full() || out.MetadataOut.Full())) {
			return
		}
		d := in.DataIn.Read()
		if k.first {
			k.first = false
			if k.respondToSockperf {
				flags := binary.BigEndian.Uint16(d.Data[flagsOffset:])
				k.respond = flags&flagPongRequest != 0
				binary.BigEndian.PutUint16(d.Data[flagsOffset:], flags&^flagClient)
			} else {
				k.respond = true
			}
			if k.respond {
				out.Action.Write(ikernel.Generate)
				out.MetadataOut.Write(k.meta.Reply(k.meta.Length))
			}
		}
		if k.respond {
			out.DataOut.Write(d)
		}
		if d.Last {
			k.state = stateMetadata
		}
	}
}

// RegRead implements gateway.Handler.
func (k *Ikernel) RegRead(addr uint32) (int32, gateway.Result) {
	if addr == RegRespondToSockperf {
		if k.respondToSockperfCache {
			return 1, gateway.Done
		}
		return 0, gateway.Done
	}
	return k.Base.RegRead(addr)
}

// RegWrite implements gateway.Handler.
func (k *Ikernel) RegWrite(addr uint32, value int32) gateway.Result {
	if addr == RegRespondToSockperf {
		if k.updates.Full() {
			return gateway.Busy
		}
		k.respondToSockperfCache = value != 0
		k.updates.Write(value != 0)
		return gateway.Done
	}
	return k.Base.RegWrite(addr, value)
}
