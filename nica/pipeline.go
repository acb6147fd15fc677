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
	"fmt"

	"github.com/nicaproject/nica/nica/arbiter"
	"github.com/nicaproject/nica/nica/customring"
	"github.com/nicaproject/nica/nica/flowtable"
	"github.com/nicaproject/nica/nica/ikernel"
	"github.com/nicaproject/nica/pkg/log"
	"github.com/nicaproject/nica/pkg/private/serrors"
	"github.com/nicaproject/nica/pkg/stream"
)

// Direction selects one of the two pipelines.
type Direction uint8

const (
	// NetToHost processes packets received from the network.
	NetToHost Direction = iota
	// HostToNet processes packets sent by the host.
	HostToNet
)

// Directions lists both directions.
var Directions = [...]Direction{NetToHost, HostToNet}

func (d Direction) String() string {
	switch d {
	case NetToHost:
		return "n2h"
	case HostToNet:
		return "h2n"
	}
	return fmt.Sprintf("Direction(%d)", uint8(d))
}

// ParseDirection parses the string form of a direction.
func ParseDirection(s string) (Direction, error) {
	for _, d := range Directions {
		if d.String() == s {
			return d, nil
		}
	}
	return 0, serrors.New("unknown direction", "direction", s)
}

// PassthroughPort is the arbiter port of packets that bypass the ikernels.
const PassthroughPort = 0

// PassPort returns the arbiter port of packets passed by ikernel i.
func PassPort(i int) int { return 1 + 2*i }

// GeneratePort returns the arbiter port of packets generated by ikernel i.
func GeneratePort(i int) int { return 2 + 2*i }

// PipelineConfig sizes a pipeline.
type PipelineConfig struct {
	// FlowTableSize is the number of flow table entries.
	FlowTableSize int
	// PacketDepth is the depth of the per packet FIFOs.
	PacketDepth int
	// WordDepth is the depth of the data FIFOs.
	WordDepth int
}

// Pipeline is the data path of one direction: steering, the join stages of
// all ikernels and the arbiter.
type Pipeline struct {
	dir Direction

	in  *stream.Fifo[stream.Word]
	out *stream.Fifo[stream.Word]

	flowTable *flowtable.Table
	flows     *stream.Fifo[flowtable.Flow]
	results   *stream.Fifo[flowtable.Result]
	steering  *steering

	ring    *customring.Ring
	joins   []*join
	inputs  []ikernelInput
	arbiter *arbiter.Arbiter
	ports   []*stream.Fifo[stream.Word]
}

func newPipeline(dir Direction, cfg PipelineConfig, ports []*ikernel.Ports,
	logger log.Logger) *Pipeline {

	p := &Pipeline{
		dir:       dir,
		in:        stream.New[stream.Word](cfg.WordDepth),
		out:       stream.New[stream.Word](cfg.WordDepth),
		flowTable: flowtable.New(cfg.FlowTableSize),
		flows:     stream.New[flowtable.Flow](1),
		results:   stream.New[flowtable.Result](1),
		steering:  newSteering(),
		ring:      customring.New(),
		arbiter:   arbiter.New(1 + 2*len(ports)),
		ports:     make([]*stream.Fifo[stream.Word], 1+2*len(ports)),
	}
	for i := range p.ports {
		p.ports[i] = stream.New[stream.Word](cfg.WordDepth)
	}
	for i, ik := range ports {
		pp := ik.Net
		if dir == HostToNet {
			pp = ik.Host
		}
		private := stream.New[ikernel.Metadata](cfg.PacketDepth)
		p.inputs = append(p.inputs, ikernelInput{
			metadata: pp.MetadataIn,
			data:     pp.DataIn,
			private:  private,
		})
		p.joins = append(p.joins, &join{
			private: private,
			ports:   pp,
			ring:    p.ring,
			pass:    p.ports[PassPort(i)],
			gen:     p.ports[GeneratePort(i)],
			logger:  logger.New("ikernel", i),
		})
	}
	return p
}

// Direction returns the direction of the pipeline.
func (p *Pipeline) Direction() Direction { return p.dir }

// FlowTable returns the flow classifier.
func (p *Pipeline) FlowTable() *flowtable.Table { return p.flowTable }

// Arbiter returns the output arbiter.
func (p *Pipeline) Arbiter() *arbiter.Arbiter { return p.arbiter }

// Ring returns the custom ring stage.
func (p *Pipeline) Ring() *customring.Ring { return p.ring }

// SteeringStats returns the steering statistics.
func (p *Pipeline) SteeringStats() SteeringStats { return p.steering.stats }

// IkernelStats returns the statistics of the join stage of ikernel i.
func (p *Pipeline) IkernelStats(i int) IkernelStats { return p.joins[i].stats }

// step runs the pipeline stages that surround the ikernels. The ikernels
// themselves are stepped by the engine.
func (p *Pipeline) step() {
	p.flowTable.Step(p.flows, p.results)
	p.steering.step(p.in, p.flows, p.results, p.ports[PassthroughPort], p.inputs)
	for _, j := range p.joins {
		j.step()
	}
	p.arbiter.Step(p.out, p.ports)
}
