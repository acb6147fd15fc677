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

// Package flowtable implements the exact match flow classifier that decides
// whether a packet bypasses the ikernels, is dropped, or is handed to an
// ikernel.
//
// The table has a fixed number of entries that are only ever overwritten by
// index. Lookup is a linear scan in index order and the first matching entry
// wins, so lower indices have priority. Duplicate keys are not rejected.
package flowtable

import (
	"errors"
	"fmt"

	"github.com/nicaproject/nica/pkg/gateway"
	"github.com/nicaproject/nica/pkg/private/serrors"
	"github.com/nicaproject/nica/pkg/stream"
)

const (
	// DefaultSize is the number of entries of a flow table.
	DefaultSize = 6
	// MaxSize is the largest table whose entry indices fit in a flow id.
	MaxSize = 256
)

// ErrOutOfRange is returned for accesses to entries or fields that do not
// exist.
var ErrOutOfRange = errors.New("flow table access out of range")

// Fields selects the parts of the flow key that are significant for matching.
type Fields uint8

const (
	FieldSrcAddr Fields = 1 << iota
	FieldDstAddr
	FieldSrcPort
	FieldDstPort

	AllFields = FieldSrcAddr | FieldDstAddr | FieldSrcPort | FieldDstPort
)

// Flow is the flow key of a UDP/IPv4 packet.
type Flow struct {
	SrcPort uint16
	DstPort uint16
	SrcAddr uint32
	DstAddr uint32
}

// Mask clears the parts of the key that are not selected by fields.
func (f Flow) Mask(fields Fields) Flow {
	if fields&FieldSrcPort == 0 {
		f.SrcPort = 0
	}
	if fields&FieldDstPort == 0 {
		f.DstPort = 0
	}
	if fields&FieldSrcAddr == 0 {
		f.SrcAddr = 0
	}
	if fields&FieldDstAddr == 0 {
		f.DstAddr = 0
	}
	return f
}

// Action is the decision of the classifier.
type Action uint8

const (
	Passthrough Action = iota
	Drop
	ToIkernel
)

func (a Action) String() string {
	switch a {
	case Passthrough:
		return "passthrough"
	case Drop:
		return "drop"
	case ToIkernel:
		return "ikernel"
	default:
		return fmt.Sprintf("Action(%d)", uint8(a))
	}
}

// Entry is one row of the table.
type Entry struct {
	Key       Flow
	Action    Action
	Ikernel   int
	IkernelID uint32
}

// Result is the classification of one packet.
type Result struct {
	FlowID    uint8
	Action    Action
	Ikernel   int
	IkernelID uint32
}

// Field addresses a single field of an entry.
type Field uint32

const (
	KeySrcAddr      Field = 0
	KeyDstAddr      Field = 1
	KeySrcPort      Field = 2
	KeyDstPort      Field = 3
	ResultAction    Field = 8
	ResultIkernel   Field = 9
	ResultIkernelID Field = 10
)

// Register layout.
const (
	RegFields    = 0x0
	RegFlowsBase = 0x10
	RegStride    = 0x10
)

// EntryAddr returns the register address of field of entry index.
func EntryAddr(index int, field Field) uint32 {
	return RegFlowsBase + uint32(index)*RegStride + uint32(field)
}

// Table is the flow classifier.
type Table struct {
	entries []Entry
	fields  Fields
}

// New returns a table of size entries, all passthrough with zero keys. It
// panics if size is not in [1, MaxSize].
func New(size int) *Table {
	if size <= 0 || size > MaxSize {
		panic(fmt.Sprintf("invalid flow table size %d", size))
	}
	return &Table{entries: make([]Entry, size)}
}

// Size returns the number of entries.
func (t *Table) Size() int { return len(t.entries) }

// SetFields sets the significant key fields.
func (t *Table) SetFields(f Fields) { t.fields = f & AllFields }

// Fields returns the significant key fields.
func (t *Table) Fields() Fields { return t.fields }

// Set overwrites the entry at index.
func (t *Table) Set(index int, e Entry) error {
	if index < 0 || index >= len(t.entries) {
		return serrors.JoinNoStack(ErrOutOfRange, nil, "index", index)
	}
	t.entries[index] = e
	return nil
}

// Entry returns the entry at index.
func (t *Table) Entry(index int) (Entry, error) {
	if index < 0 || index >= len(t.entries) {
		return Entry{}, serrors.JoinNoStack(ErrOutOfRange, nil, "index", index)
	}
	return t.entries[index], nil
}

// Classify returns the result of the first entry matching f under the
// current field mask, or passthrough with flow id 0.
func (t *Table) Classify(f Flow) Result {
	key := f.Mask(t.fields)
	for i := range t.entries {
		e := &t.entries[i]
		if e.Key.Mask(t.fields) == key {
			return Result{
				FlowID:    uint8(i),
				Action:    e.Action,
				Ikernel:   e.Ikernel,
				IkernelID: e.IkernelID,
			}
		}
	}
	return Result{Action: Passthrough}
}

// Step classifies at most one flow from in.
func (t *Table) Step(in *stream.Fifo[Flow], out *stream.Fifo[Result]) {
	if in.Empty() || out.Full() {
		return
	}
	out.Write(t.Classify(in.Read()))
}

// Write sets a single field of the entry at index.
func (t *Table) Write(index int, field Field, value uint32) error {
	if index < 0 || index >= len(t.entries) {
		return serrors.JoinNoStack(ErrOutOfRange, nil, "index", index)
	}
	e := &t.entries[index]
	switch field {
	case KeySrcAddr:
		e.Key.SrcAddr = value
	case KeyDstAddr:
		e.Key.DstAddr = value
	case KeySrcPort:
		e.Key.SrcPort = uint16(value)
	case KeyDstPort:
		e.Key.DstPort = uint16(value)
	case ResultAction:
		e.Action = Action(value)
	case ResultIkernel:
		e.Ikernel = int(value)
	case ResultIkernelID:
		e.IkernelID = value
	default:
		return serrors.JoinNoStack(ErrOutOfRange, nil, "field", field)
	}
	return nil
}

// Read returns a single field of the entry at index.
func (t *Table) Read(index int, field Field) (uint32, error) {
	if index < 0 || index >= len(t.entries) {
		return 0, serrors.JoinNoStack(ErrOutOfRange, nil, "index", index)
	}
	e := &t.entries[index]
	switch field {
	case KeySrcAddr:
		return e.Key.SrcAddr, nil
	case KeyDstAddr:
		return e.Key.DstAddr, nil
	case KeySrcPort:
		return uint32(e.Key.SrcPort), nil
	case KeyDstPort:
		return uint32(e.Key.DstPort), nil
	case ResultAction:
		return uint32(e.Action), nil
	case ResultIkernel:
		return uint32(e.Ikernel), nil
	case ResultIkernelID:
		return e.IkernelID, nil
	default:
		return 0, serrors.JoinNoStack(ErrOutOfRange, nil, "field", field)
	}
}

func decode(addr uint32) (int, Field, bool) {
	if addr < RegFlowsBase {
		return 0, 0, false
	}
	off := addr - RegFlowsBase
	return int(off / RegStride), Field(off & (RegStride - 1)), true
}

// RegRead implements gateway.Handler.
func (t *Table) RegRead(addr uint32) (int32, gateway.Result) {
	if addr == RegFields {
		return int32(t.fields), gateway.Done
	}
	index, field, ok := decode(addr)
	if !ok {
		return -1, gateway.Fail
	}
	v, err := t.Read(index, field)
	if err != nil {
		return -1, gateway.Fail
	}
	return int32(v), gateway.Done
}

// RegWrite implements gateway.Handler.
func (t *Table) RegWrite(addr uint32, value int32) gateway.Result {
	if addr == RegFields {
		t.SetFields(Fields(value))
		return gateway.Done
	}
	index, field, ok := decode(addr)
	if !ok {
		return gateway.Fail
	}
	if err := t.Write(index, field, uint32(value)); err != nil {
		return gateway.Fail
	}
	return gateway.Done
}
