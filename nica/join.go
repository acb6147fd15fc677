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

package nica

import (
	"github.com/nicaproject/nica/nica/customring"
	"github.com/nicaproject/nica/nica/ikernel"
	"github.com/nicaproject/nica/nica/parse"
	"github.com/nicaproject/nica/pkg/log"
	"github.com/nicaproject/nica/pkg/stream"
)

// IkernelStats counts the actions one ikernel took in one pipeline.
type IkernelStats struct {
	Actions     [ikernel.NumActions]uint64 `json:"actions"`
	BuildErrors uint64                     `json:"build_errors"`
}

type joinState uint8

const (
	joinAction joinState = iota
	joinCollect
	joinEmit
)

// join matches the verdicts of an ikernel with the packets that were sent to
// it and turns passed and generated packets back into frames.
//
// For every input packet the ikernel writes one action. Pass consumes the
// private copy of the input metadata together with the ikernel's output
// packet, Drop consumes only the private copy and Generate consumes only the
// ikernel's output packet.
type join struct {
	private *stream.Fifo[ikernel.Metadata]
	ports   ikernel.PipelinePorts
	ring    *customring.Ring
	pass    *stream.Fifo[stream.Word]
	gen     *stream.Fifo[stream.Word]
	logger  log.Logger

	stats IkernelStats

	state     joinState
	generated bool
	meta      ikernel.Metadata
	payload   []byte
	frame     []stream.Word
	sent      int
}

func (j *join) step() {
	switch j.state {
	case joinAction:
		j.action()
	case joinCollect:
		j.collect()
	case joinEmit:
		j.emit()
	}
}

func (j *join) action() {
	a, ok := j.ports.Action.Peek()
	if !ok {
		return
	}
	switch a {
	case ikernel.Pass:
		if j.private.Empty() || j.ports.MetadataOut.Empty() {
			return
		}
		j.private.Read()
		j.generated = false
	case ikernel.Generate:
		if j.ports.MetadataOut.Empty() {
			return
		}
		j.generated = true
	case ikernel.Drop:
		if j.private.Empty() {
			return
		}
		j.private.Read()
		j.ports.Action.Read()
		j.stats.Actions[a]++
		return
	}
	j.ports.Action.Read()
	j.stats.Actions[a]++
	j.meta = j.ports.MetadataOut.Read()
	j.payload = j.payload[:0]
	j.state = joinCollect
}

func (j *join) collect() {
	d, ok := j.ports.DataOut.TryRead()
	if !ok {
		return
	}
	j.payload = stream.AppendBytes(j.payload, d)
	if !d.Last {
		return
	}
	payload := j.ring.Encap(&j.meta, j.payload)
	frame, err := parse.Build(j.meta.Packet, j.meta.IPIdentification, payload)
	if err != nil {
		j.stats.BuildErrors++
		j.logger.Debug("Dropping ikernel output", "meta", j.meta, "err", err)
		j.state = joinAction
		return
	}
	j.frame = stream.Packetize(frame, j.meta.FlowID, 0)
	j.sent = 0
	j.state = joinEmit
}

func (j *join) emit() {
	out := j.pass
	if j.generated {
		out = j.gen
	}
	if out.Full() {
		return
	}
	out.Write(j.frame[j.sent])
	j.sent++
	if j.sent == len(j.frame) {
		j.state = joinAction
	}
}
