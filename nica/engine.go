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

// Package nica implements the offload engine: two pipelines (network to host
// and host to network) that classify packets, route them through ikernels
// and multiplex the results onto the egress link.
//
// The engine is a single threaded simulation driven by ticks. Every tick
// each stage moves at most one unit of work between bounded FIFOs. Host side
// accesses (packet injection, register gateways, statistics) may come from
// other goroutines; they synchronize with the ticking goroutine on one mutex
// that is only released between batches of ticks.
package nica

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nicaproject/nica/nica/arbiter"
	"github.com/nicaproject/nica/nica/credit"
	"github.com/nicaproject/nica/nica/flowtable"
	"github.com/nicaproject/nica/nica/ikernel"
	"github.com/nicaproject/nica/pkg/gateway"
	"github.com/nicaproject/nica/pkg/log"
	"github.com/nicaproject/nica/pkg/private/serrors"
	"github.com/nicaproject/nica/pkg/stream"
)

// Component names of the register blocks of a pipeline.
const (
	ComponentFlowTable  = "flowtable"
	ComponentSteering   = "steering"
	ComponentArbiter    = "arbiter"
	ComponentCustomRing = "customring"
	// ComponentIkernelPrefix followed by the ikernel index names the
	// register block of an ikernel. It is the same in both directions.
	ComponentIkernelPrefix = "ikernel"
)

var (
	// ErrUnknownComponent is returned for register blocks that do not exist.
	ErrUnknownComponent = serrors.New("unknown component")
	// ErrNoRoom is returned when a frame does not fit the ingress FIFO.
	ErrNoRoom = serrors.New("no room for frame")
)

// MaxIkernels is the number of ikernels whose ports fit in one arbiter next
// to the passthrough port.
const MaxIkernels = (arbiter.MaxPorts - 1) / 2

// Config sizes the engine.
type Config struct {
	Pipeline PipelineConfig
	// IkernelDepth is the depth of the ikernel port FIFOs.
	IkernelDepth int
}

// Validate checks that an engine hosting numIkernels ikernels can be built
// from cfg.
func (cfg Config) Validate(numIkernels int) error {
	if numIkernels > MaxIkernels {
		return serrors.New("too many ikernels", "ikernels", numIkernels, "max", MaxIkernels)
	}
	p := cfg.Pipeline
	if p.FlowTableSize <= 0 || p.FlowTableSize > flowtable.MaxSize {
		return serrors.New("flow table size out of range", "size", p.FlowTableSize,
			"max", flowtable.MaxSize)
	}
	for _, d := range []struct {
		name  string
		depth int
	}{
		{"packet_depth", p.PacketDepth},
		{"word_depth", p.WordDepth},
		{"ikernel_depth", cfg.IkernelDepth},
	} {
		if d.depth <= 0 {
			return serrors.New("fifo depth must be positive", d.name, d.depth)
		}
	}
	return nil
}

// DefaultConfig returns the default engine configuration.
func DefaultConfig() Config {
	return Config{
		Pipeline: PipelineConfig{
			FlowTableSize: 6,
			PacketDepth:   16,
			WordDepth:     512,
		},
		IkernelDepth: ikernel.DefaultDepth,
	}
}

// IkernelInfo describes an installed ikernel.
type IkernelInfo struct {
	Index int       `json:"index"`
	Kind  string    `json:"kind"`
	UUID  uuid.UUID `json:"uuid"`
}

type registerBlock struct {
	gw      gateway.Gateway
	regs    gateway.Registers
	handler gateway.Handler
	client  *gateway.Client
}

type installed struct {
	kind    string
	ik      ikernel.Ikernel
	ports   *ikernel.Ports
	credits credit.UpdateRegisters
	block   *registerBlock
}

// Engine owns both pipelines and the ikernels.
type Engine struct {
	mu sync.Mutex

	pipelines [len(Directions)]*Pipeline
	ikernels  []*installed
	blocks    map[string]*registerBlock
	ticks     uint64

	// partial holds the bytes of a frame that was drained incompletely.
	partial [len(Directions)][]byte
}

// Ikernel is an ikernel together with its configuration name.
type Ikernel struct {
	Kind    string
	Ikernel ikernel.Ikernel
}

// New returns an engine hosting the given ikernels. Ikernel i is reachable
// from the flow table as ikernel index i.
func New(cfg Config, iks []Ikernel, logger log.Logger) (*Engine, error) {
	if err := cfg.Validate(len(iks)); err != nil {
		return nil, err
	}
	e := &Engine{
		blocks: make(map[string]*registerBlock),
	}
	ports := make([]*ikernel.Ports, 0, len(iks))
	for i, ik := range iks {
		inst := &installed{
			kind:  ik.Kind,
			ik:    ik.Ikernel,
			ports: ikernel.NewPorts(cfg.IkernelDepth),
			block: &registerBlock{handler: ik.Ikernel},
		}
		e.ikernels = append(e.ikernels, inst)
		ports = append(ports, inst.ports)
		e.blocks[ComponentIkernelPrefix+strconv.Itoa(i)] = inst.block
	}
	for _, dir := range Directions {
		p := newPipeline(dir, cfg.Pipeline, ports, logger.New("pipeline", dir.String()))
		e.pipelines[dir] = p
		e.blocks[blockKey(dir, ComponentFlowTable)] = &registerBlock{handler: p.flowTable}
		e.blocks[blockKey(dir, ComponentSteering)] = &registerBlock{handler: p.steering}
		e.blocks[blockKey(dir, ComponentArbiter)] = &registerBlock{handler: p.arbiter}
		e.blocks[blockKey(dir, ComponentCustomRing)] = &registerBlock{handler: p.ring}
	}
	for _, b := range e.blocks {
		b.client = &gateway.Client{Locker: &e.mu, Regs: &b.regs}
	}
	return e, nil
}

func blockKey(dir Direction, component string) string {
	return dir.String() + "/" + component
}

// Pipeline returns the pipeline of dir. Its state may only be accessed
// through the engine's accessors while the engine is running.
func (e *Engine) Pipeline(dir Direction) *Pipeline { return e.pipelines[dir] }

// Ikernels describes the installed ikernels.
func (e *Engine) Ikernels() []IkernelInfo {
	infos := make([]IkernelInfo, 0, len(e.ikernels))
	for i, inst := range e.ikernels {
		infos = append(infos, IkernelInfo{Index: i, Kind: inst.kind, UUID: inst.ik.UUID()})
	}
	return infos
}

// Step runs one tick.
func (e *Engine) Step() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.tick()
}

func (e *Engine) tick() {
	for _, p := range e.pipelines {
		p.step()
	}
	for _, inst := range e.ikernels {
		inst.ports.HostCreditRegs = inst.credits
		inst.ik.Step(inst.ports)
	}
	for _, b := range e.blocks {
		b.gw.Step(b.handler, &b.regs)
	}
	e.ticks++
}

// Ticks returns the number of ticks run so far.
func (e *Engine) Ticks() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ticks
}

// RunConfig controls the tick driver.
type RunConfig struct {
	// TickInterval is the period of a batch of ticks. Zero runs batches back
	// to back.
	TickInterval time.Duration
	// TicksPerBatch is the number of ticks run while holding the engine
	// lock.
	TicksPerBatch int
}

// Run drives the engine until ctx is done.
func (e *Engine) Run(ctx context.Context, cfg RunConfig) error {
	batch := max(cfg.TicksPerBatch, 1)
	logger := log.FromCtx(ctx)
	logger.Debug("Engine running", "tick_interval", cfg.TickInterval, "batch", batch)
	defer logger.Debug("Engine stopped")

	var tick <-chan time.Time
	if cfg.TickInterval > 0 {
		ticker := time.NewTicker(cfg.TickInterval)
		defer ticker.Stop()
		tick = ticker.C
	}
	for {
		if tick != nil {
			select {
			case <-ctx.Done():
				return nil
			case <-tick:
			}
		} else if ctx.Err() != nil {
			return nil
		}
		e.mu.Lock()
		for i := 0; i < batch; i++ {
			e.tick()
		}
		e.mu.Unlock()
	}
}

// Inject queues frame at the ingress of the pipeline of dir. It fails with
// ErrNoRoom if the frame does not fit the ingress FIFO.
func (e *Engine) Inject(dir Direction, frame []byte) error {
	words := stream.Packetize(frame, 0, 0)
	e.mu.Lock()
	defer e.mu.Unlock()
	in := e.pipelines[dir].in
	if in.Cap()-in.Len() < len(words) {
		return serrors.JoinNoStack(ErrNoRoom, nil, "direction", dir, "words", len(words))
	}
	for _, w := range words {
		in.Write(w)
	}
	return nil
}

// Drain returns the frames that left the pipeline of dir.
func (e *Engine) Drain(dir Direction) [][]byte {
	e.mu.Lock()
	defer e.mu.Unlock()
	var frames [][]byte
	out := e.pipelines[dir].out
	for {
		w, ok := out.TryRead()
		if !ok {
			return frames
		}
		e.partial[dir] = stream.AppendBytes(e.partial[dir], w)
		if w.Last {
			frames = append(frames, e.partial[dir])
			e.partial[dir] = nil
		}
	}
}

// Gateway returns the client of the register block of component in the
// pipeline of dir. A block serves one command at a time; concurrent commands
// fail with gateway.ErrBusy.
func (e *Engine) Gateway(dir Direction, component string) (*gateway.Client, error) {
	key := component
	if !strings.HasPrefix(component, ComponentIkernelPrefix) {
		key = blockKey(dir, component)
	}
	b, ok := e.blocks[key]
	if !ok {
		return nil, serrors.JoinNoStack(ErrUnknownComponent, nil,
			"direction", dir, "component", component)
	}
	return b.client, nil
}

// Components lists the register blocks of a pipeline.
func (e *Engine) Components() []string {
	c := []string{ComponentFlowTable, ComponentSteering, ComponentArbiter, ComponentCustomRing}
	for i := range e.ikernels {
		c = append(c, ComponentIkernelPrefix+strconv.Itoa(i))
	}
	return c
}

// SetCredits sets the host credit registers of ikernel i. The ikernel
// applies them on its next tick.
func (e *Engine) SetCredits(i int, regs credit.UpdateRegisters) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if i < 0 || i >= len(e.ikernels) {
		return serrors.JoinNoStack(ErrUnknownComponent, nil, "ikernel", i)
	}
	e.ikernels[i].credits = regs
	return nil
}

// PipelineStats are the statistics of one pipeline.
type PipelineStats struct {
	Steering     SteeringStats  `json:"steering"`
	Arbiter      arbiter.Stats  `json:"arbiter"`
	Ikernels     []IkernelStats `json:"ikernels"`
	RingPackets  uint64         `json:"ring_packets"`
	EgressQueued int            `json:"egress_queued"`
}

// Stats is a snapshot of the engine statistics.
type Stats struct {
	Ticks     uint64                   `json:"ticks"`
	Pipelines map[string]PipelineStats `json:"pipelines"`
	// Credits holds the ring windows of every ikernel by ikernel index.
	Credits map[string]map[int]credit.Window `json:"credits"`
	// CacheEntries holds the occupancy of the ikernels that keep a cache.
	CacheEntries map[string]int `json:"cache_entries,omitempty"`
}

// Stats returns a snapshot of the statistics.
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := Stats{
		Ticks:     e.ticks,
		Pipelines: make(map[string]PipelineStats, len(e.pipelines)),
		Credits:   make(map[string]map[int]credit.Window, len(e.ikernels)),
	}
	for _, p := range e.pipelines {
		ps := PipelineStats{
			Steering:     p.steering.stats,
			Arbiter:      p.arbiter.Stats(),
			RingPackets:  p.ring.Packets(),
			EgressQueued: p.out.Len(),
		}
		for _, j := range p.joins {
			ps.Ikernels = append(ps.Ikernels, j.stats)
		}
		s.Pipelines[p.dir.String()] = ps
	}
	for i, inst := range e.ikernels {
		windows := make(map[int]credit.Window)
		for ring := credit.RingID(1); ring <= credit.MaxRings; ring++ {
			if w := creditsOf(inst.ik, ring); w != (credit.Window{}) {
				windows[int(ring)] = w
			}
		}
		s.Credits[strconv.Itoa(i)] = windows
		if c, ok := inst.ik.(cacheReporter); ok {
			if s.CacheEntries == nil {
				s.CacheEntries = make(map[string]int)
			}
			s.CacheEntries[strconv.Itoa(i)] = c.Entries()
		}
	}
	return s
}

type cacheReporter interface {
	Entries() int
}

type creditReporter interface {
	Credits(ring credit.RingID) credit.Window
}

func creditsOf(ik ikernel.Ikernel, ring credit.RingID) credit.Window {
	if r, ok := ik.(creditReporter); ok {
		return r.Credits(ring)
	}
	return credit.Window{}
}
