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

// Package ikernel defines the interface between the data path and the
// packet processing extensions (ikernels) plugged into it.
//
// An ikernel sees two pipelines: Net carries packets arriving from the
// network on their way to the host, Host carries packets sent by the host on
// their way to the network. For every packet it reads from a pipeline's
// metadata input it writes exactly one Action to the same pipeline: Pass
// followed by the (possibly modified) metadata and data of the packet, or
// Drop with no output. In addition it may write Generate followed by the
// metadata and data of a new packet at any time.
package ikernel

import (
	"encoding/binary"
	"fmt"

	"github.com/google/uuid"

	"github.com/nicaproject/nica/nica/credit"
	"github.com/nicaproject/nica/pkg/gateway"
	"github.com/nicaproject/nica/pkg/stream"
)

// Action is the verdict of an ikernel on a packet.
type Action uint8

const (
	Pass Action = iota
	Drop
	Generate
	numActions
)

// NumActions is the number of distinct actions.
const NumActions = int(numActions)

func (a Action) String() string {
	switch a {
	case Pass:
		return "pass"
	case Drop:
		return "drop"
	case Generate:
		return "generate"
	default:
		return fmt.Sprintf("Action(%d)", uint8(a))
	}
}

// Registers common to all ikernels.
const (
	// RegProbe always reads 1.
	RegProbe = 0x0
	// RegUUID is the first of four registers holding the ikernel UUID, most
	// significant word first.
	RegUUID = 0x1000
)

// DefaultDepth is the depth of the pipeline FIFOs created by
// NewPipelinePorts when no depth is given.
const DefaultDepth = 64

// PipelinePorts are the FIFOs connecting an ikernel to one pipeline.
type PipelinePorts struct {
	MetadataIn  *stream.Fifo[Metadata]
	DataIn      *stream.Fifo[stream.Word]
	Action      *stream.Fifo[Action]
	MetadataOut *stream.Fifo[Metadata]
	DataOut     *stream.Fifo[stream.Word]
}

// NewPipelinePorts returns pipeline ports whose FIFOs have the given depth.
func NewPipelinePorts(depth int) PipelinePorts {
	if depth <= 0 {
		depth = DefaultDepth
	}
	return PipelinePorts{
		MetadataIn:  stream.New[Metadata](depth),
		DataIn:      stream.New[stream.Word](depth),
		Action:      stream.New[Action](depth),
		MetadataOut: stream.New[Metadata](depth),
		DataOut:     stream.New[stream.Word](depth),
	}
}

// Ports are all the ports of one ikernel.
type Ports struct {
	Host PipelinePorts
	Net  PipelinePorts
	// HostCreditRegs is the host written credit update snapshot.
	HostCreditRegs credit.UpdateRegisters
}

// NewPorts returns ports with FIFOs of the given depth.
func NewPorts(depth int) *Ports {
	return &Ports{
		Host: NewPipelinePorts(depth),
		Net:  NewPipelinePorts(depth),
	}
}

// Ikernel is a packet processing extension. Step is called once per tick and
// must never block; the register accessors are driven by the ikernel's
// gateway.
type Ikernel interface {
	gateway.Handler
	Step(p *Ports)
	UUID() uuid.UUID
}

// Base implements the parts shared by all ikernels: the identity registers
// and the custom ring credit windows. Ikernels embed it and fall back to its
// register accessors for addresses they do not handle.
type Base struct {
	id      uuid.UUID
	credits credit.Controller
}

// NewBase returns a base with the given identity.
func NewBase(id uuid.UUID) Base {
	return Base{id: id}
}

// UUID returns the identity of the ikernel.
func (b *Base) UUID() uuid.UUID { return b.id }

// CanTransmit reports whether a message may be sent on ring in direction
// dir.
func (b *Base) CanTransmit(ikernelID uint32, ring credit.RingID, length uint16,
	dir credit.Direction) bool {

	return b.credits.CanTransmit(ikernelID, ring, length, dir)
}

// NewMessage accounts for a message sent on ring.
func (b *Base) NewMessage(ring credit.RingID, dir credit.Direction) {
	b.credits.NewMessage(ring, dir)
}

// UpdateCredits applies the host credit registers. Ikernels call it from
// the step that also calls CanTransmit.
func (b *Base) UpdateCredits(regs credit.UpdateRegisters) {
	b.credits.Update(regs)
}

// Credits returns the host credit window of ring.
func (b *Base) Credits(ring credit.RingID) credit.Window {
	return b.credits.Window(ring)
}

// RegRead implements gateway.Handler.
func (b *Base) RegRead(addr uint32) (int32, gateway.Result) {
	switch {
	case addr == RegProbe:
		return 1, gateway.Done
	case addr >= RegUUID && addr < RegUUID+4:
		off := (addr - RegUUID) * 4
		return int32(binary.BigEndian.Uint32(b.id[off : off+4])), gateway.Done
	default:
		return 0, gateway.Fail
	}
}

// RegWrite implements gateway.Handler.
func (b *Base) RegWrite(addr uint32, value int32) gateway.Result {
	if addr == RegProbe {
		return gateway.Done
	}
	return gateway.Fail
}

// PassPackets moves at most one metadata entry and one data word from the
// inputs to the outputs of p, writing Pass for every metadata entry.
func PassPackets(p PipelinePorts) {
	if !p.MetadataIn.Empty() && !p.MetadataOut.Full() && !p.Action.Full() {
		p.MetadataOut.Write(p.MetadataIn.Read())
		p.Action.Write(Pass)
	}
	if !p.DataIn.Empty() && !p.DataOut.Full() {
		p.DataOut.Write(p.DataIn.Read())
	}
}

// DropPackets consumes at most one metadata entry and one data word of p,
// writing Drop for every metadata entry.
func DropPackets(p PipelinePorts) {
	if !p.MetadataIn.Empty() && !p.Action.Full() {
		p.MetadataIn.Read()
		p.Action.Write(Drop)
	}
	if !p.DataIn.Empty() {
		p.DataIn.Read()
	}
}

// NameUUID derives a stable ikernel identity from a name.
func NameUUID(name string) uuid.UUID {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("urn:nica:ikernel:"+name))
}
