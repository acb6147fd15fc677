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
	"errors"

	"github.com/nicaproject/nica/nica/flowtable"
	"github.com/nicaproject/nica/nica/ikernel"
	"github.com/nicaproject/nica/nica/parse"
	"github.com/nicaproject/nica/pkg/gateway"
	"github.com/nicaproject/nica/pkg/stream"
)

// Steering registers.
const (
	// RegSteeringEnable enables steering. When disabled every packet is
	// passed through.
	RegSteeringEnable = 0x0
	// The statistics registers are read only.
	RegPassthroughDisabled  = 0x10
	RegPassthroughNotIPv4   = 0x11
	RegPassthroughBadLength = 0x12
	RegPassthroughNotUDP    = 0x13
	RegActionPassthrough    = 0x14
	RegActionDrop           = 0x15
	RegActionIkernel        = 0x16
)

// SteeringStats counts the steering decisions of a pipeline.
type SteeringStats struct {
	PassthroughDisabled  uint64 `json:"passthrough_disabled"`
	PassthroughNotIPv4   uint64 `json:"passthrough_not_ipv4"`
	PassthroughBadLength uint64 `json:"passthrough_bad_length"`
	PassthroughNotUDP    uint64 `json:"passthrough_not_udp"`
	ActionPassthrough    uint64 `json:"action_passthrough"`
	ActionDrop           uint64 `json:"action_drop"`
	ActionIkernel        uint64 `json:"action_ikernel"`
}

type steeringState uint8

const (
	steeringCollect steeringState = iota
	steeringClassify
	steeringDispatch
)

// ikernelInput is where the steering stage delivers packets for one
// ikernel: the ikernel's own inputs and the join stage's copy of the
// metadata.
type ikernelInput struct {
	metadata *stream.Fifo[ikernel.Metadata]
	data     *stream.Fifo[stream.Word]
	private  *stream.Fifo[ikernel.Metadata]
}

// steering reassembles the frames arriving on a pipeline, classifies them and
// sends each one either unchanged to the passthrough port, to an ikernel or
// nowhere.
type steering struct {
	enabled bool
	parser  parse.Parser
	stats   SteeringStats

	state   steeringState
	frame   []stream.Word
	buf     []byte
	pkt     *parse.Packet
	result  flowtable.Result
	payload []stream.Word
	sent    int
	metaOut bool
}

func newSteering() *steering {
	return &steering{enabled: true}
}

func (s *steering) step(in *stream.Fifo[stream.Word], flows *stream.Fifo[flowtable.Flow],
	results *stream.Fifo[flowtable.Result], passthrough *stream.Fifo[stream.Word],
	ikernels []ikernelInput) {

	switch s.state {
	case steeringCollect:
		if in.Empty() {
			return
		}
		if len(s.frame) == 0 && flows.Full() {
			return
		}
		w := in.Read()
		s.frame = append(s.frame, w)
		if !w.Last {
			return
		}
		s.check(flows)
	case steeringClassify:
		r, ok := results.TryRead()
		if !ok {
			return
		}
		s.decide(r, len(ikernels))
	case steeringDispatch:
		s.dispatch(passthrough, ikernels)
	}
}

// check runs the passthrough checks on a complete frame and hands the flow
// to the classifier.
func (s *steering) check(flows *stream.Fifo[flowtable.Flow]) {
	if !s.enabled {
		s.stats.PassthroughDisabled++
		s.passthrough()
		return
	}
	s.buf = stream.AppendBytes(s.buf[:0], s.frame...)
	pkt, err := s.parser.Parse(s.buf)
	switch {
	case err == nil:
	case errors.Is(err, parse.ErrNotIPv4), errors.Is(err, parse.ErrMalformed):
		s.stats.PassthroughNotIPv4++
	case errors.Is(err, parse.ErrBadLength):
		s.stats.PassthroughBadLength++
	case errors.Is(err, parse.ErrNotUDP):
		s.stats.PassthroughNotUDP++
	}
	if err != nil {
		s.passthrough()
		return
	}
	s.pkt = pkt
	flows.Write(pkt.Flow())
	s.state = steeringClassify
}

func (s *steering) passthrough() {
	s.result = flowtable.Result{Action: flowtable.Passthrough}
	s.stats.ActionPassthrough++
	s.sent = 0
	s.state = steeringDispatch
}

func (s *steering) decide(r flowtable.Result, numIkernels int) {
	if r.Action == flowtable.ToIkernel && (r.Ikernel < 0 || r.Ikernel >= numIkernels) {
		r.Action = flowtable.Passthrough
	}
	s.result = r
	switch r.Action {
	case flowtable.Passthrough:
		s.stats.ActionPassthrough++
	case flowtable.Drop:
		s.stats.ActionDrop++
		s.reset()
		return
	case flowtable.ToIkernel:
		s.stats.ActionIkernel++
		s.payload = stream.Packetize(s.pkt.Payload, r.FlowID, 0)
		s.metaOut = false
	}
	s.sent = 0
	s.state = steeringDispatch
}

func (s *steering) dispatch(passthrough *stream.Fifo[stream.Word], ikernels []ikernelInput) {
	if s.result.Action != flowtable.ToIkernel {
		if passthrough.Full() {
			return
		}
		passthrough.Write(s.frame[s.sent])
		s.sent++
		if s.sent == len(s.frame) {
			s.reset()
		}
		return
	}

	in := ikernels[s.result.Ikernel]
	if !s.metaOut {
		if in.metadata.Full() || in.private.Full() {
			return
		}
		m := ikernel.Metadata{
			FlowID:           s.result.FlowID,
			IkernelID:        s.result.IkernelID,
			IPIdentification: s.pkt.IPIdentification,
			Length:           uint16(len(s.pkt.Payload)),
			Packet:           s.pkt.Meta,
		}
		in.metadata.Write(m)
		in.private.Write(m)
		s.metaOut = true
	}
	if in.data.Full() {
		return
	}
	in.data.Write(s.payload[s.sent])
	s.sent++
	if s.sent == len(s.payload) {
		s.reset()
	}
}

func (s *steering) reset() {
	s.frame = s.frame[:0]
	s.pkt = nil
	s.state = steeringCollect
}

func (s *steering) RegRead(addr uint32) (int32, gateway.Result) {
	var v uint64
	switch addr {
	case RegSteeringEnable:
		if s.enabled {
			v = 1
		}
	case RegPassthroughDisabled:
		v = s.stats.PassthroughDisabled
	case RegPassthroughNotIPv4:
		v = s.stats.PassthroughNotIPv4
	case RegPassthroughBadLength:
		v = s.stats.PassthroughBadLength
	case RegPassthroughNotUDP:
		v = s.stats.PassthroughNotUDP
	case RegActionPassthrough:
		v = s.stats.ActionPassthrough
	case RegActionDrop:
		v = s.stats.ActionDrop
	case RegActionIkernel:
		v = s.stats.ActionIkernel
	default:
		return -1, gateway.Fail
	}
	return int32(v), gateway.Done
}

func (s *steering) RegWrite(addr uint32, value int32) gateway.Result {
	if addr != RegSteeringEnable {
		return gateway.Fail
	}
	s.enabled = value != 0
	return gateway.Done
}
