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

// Package arbiter multiplexes N packet streams onto one output.
//
// Every input port has a token bucket. A port is eligible while it has data
// and at least MinTokens tokens; eligible ports are granted in round robin
// order starting after the port served last. A granted port streams until it
// stays empty for the idle timeout (never in the middle of a packet) or until
// the bytes sent during the grant reach the quota, in which case the port is
// released at the next packet boundary and charged the bytes it sent.
//
// The arbiter is stepped once per tick. Each tick runs the transmit side
// (the Idle, WaitForArbiter, Stream state machine) first and then the
// selection side, which refills buckets and answers the pending request.
// The two sides talk through one-deep queues, so a grant takes effect on the
// tick after the request.
package arbiter

import (
	"fmt"
	"math/bits"

	"github.com/nicaproject/nica/pkg/stream"
)

// Defaults of the global configuration.
const (
	DefaultLogQuota    = 14
	DefaultIdleTimeout = 32
	// MinTokens is the balance a port needs to be granted.
	MinTokens = 32
	// BytesPerWord is charged for every word transmitted.
	BytesPerWord = stream.WordSize
	// MaxPorts is the number of ports a request bitmap can hold.
	MaxPorts = 64
)

// State is the state of the transmit side.
type State uint8

const (
	Idle State = iota
	WaitForArbiter
	Stream
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case WaitForArbiter:
		return "wait_for_arbiter"
	case Stream:
		return "stream"
	default:
		return fmt.Sprintf("State(%d)", uint8(s))
	}
}

type charge struct {
	port  int
	bytes int
}

// Arbiter is an N input, one output scheduler.
type Arbiter struct {
	state    State
	buckets  []Bucket
	cycle    uint32
	lastPort int
	// selected is the granted port or -1.
	selected    int
	midPacket   bool
	accumulated int
	idleCounter int

	logQuota    uint8
	idleTimeout int

	requests   *stream.Fifo[uint64]
	selections *stream.Fifo[int]
	charges    *stream.Fifo[charge]

	regs registers

	stats Stats
}

// New returns an arbiter for numPorts inputs with default configuration.
func New(numPorts int) *Arbiter {
	if numPorts <= 0 || numPorts > MaxPorts {
		panic(fmt.Sprintf("invalid number of arbiter ports %d", numPorts))
	}
	a := &Arbiter{
		buckets:     make([]Bucket, numPorts),
		selected:    -1,
		logQuota:    DefaultLogQuota,
		idleTimeout: DefaultIdleTimeout,
		requests:    stream.New[uint64](1),
		selections:  stream.New[int](1),
		charges:     stream.New[charge](1),
		stats:       Stats{Ports: make([]PortStats, numPorts)},
	}
	for i := range a.buckets {
		a.buckets[i] = newBucket()
	}
	a.regs = newRegisters(a)
	return a
}

// NumPorts returns the number of inputs.
func (a *Arbiter) NumPorts() int { return len(a.buckets) }

// State returns the state of the transmit side.
func (a *Arbiter) State() State { return a.state }

// Bucket returns the current bucket of port.
func (a *Arbiter) Bucket(port int) Bucket { return a.buckets[port] }

// Step runs one tick. in must have NumPorts entries.
func (a *Arbiter) Step(out *stream.Fifo[stream.Word], in []*stream.Fifo[stream.Word]) {
	if len(in) != len(a.buckets) {
		panic(fmt.Sprintf("arbiter has %d ports, got %d inputs", len(a.buckets), len(in)))
	}
	a.transmit(out, in)
	a.pickNext()
}

func (a *Arbiter) transmit(out *stream.Fifo[stream.Word], in []*stream.Fifo[stream.Word]) {
	a.stats.Idle = a.state == Idle
	if out.Full() {
		a.stats.OutFull++
	} else {
		switch a.state {
		case Idle:
			if a.requests.Full() {
				break
			}
			var req uint64
			for i, q := range in {
				if !q.Empty() {
					req |= 1 << i
				}
			}
			if req != 0 {
				a.requests.Write(req)
				a.state = WaitForArbiter
			}
		case WaitForArbiter:
			if a.selections.Empty() {
				break
			}
			if p := a.selections.Read(); p >= 0 {
				a.selected = p
				a.accumulated = 0
				a.idleCounter = a.idleTimeout
				a.state = Stream
				a.inOut(out, in)
			} else {
				a.state = Idle
			}
		case Stream:
			a.inOut(out, in)
		}
	}
	a.regs.apply()
}

func (a *Arbiter) inOut(out *stream.Fifo[stream.Word], in []*stream.Fifo[stream.Word]) {
	p := a.selected
	if p < 0 {
		return
	}
	q := in[p]
	if q.Empty() {
		a.idleCounter--
		if a.idleCounter <= 0 && !a.midPacket {
			a.stats.Ports[p].IdleEvictions++
			a.release()
		}
		return
	}
	if a.charges.Full() {
		return
	}

	w := q.Read()
	out.Write(w)
	a.midPacket = true
	a.accumulated += BytesPerWord
	a.idleCounter = a.idleTimeout

	s := &a.stats.Ports[p]
	s.Words++
	if !w.Last {
		return
	}
	s.Packets++
	s.LastPacketID = w.ID
	s.LastUser = w.User
	a.midPacket = false
	if a.accumulated >= 1<<a.logQuota {
		s.QuotaEvictions++
		a.charges.Write(charge{port: p, bytes: a.accumulated})
		a.release()
	}
}

func (a *Arbiter) release() {
	a.selected = -1
	a.state = Idle
}

func (a *Arbiter) pickNext() {
	a.divideTokens()
	if a.requests.Empty() || a.selections.Full() {
		return
	}
	req := a.requests.Read()
	for i := range a.buckets {
		noTokens := a.buckets[i].Tokens < MinTokens
		if req&(1<<i) != 0 {
			a.stats.Ports[i].NotEmpty++
		}
		if noTokens {
			a.stats.Ports[i].NoTokens++
			req &^= 1 << i
		}
	}

	sel := -1
	if req != 0 {
		n := len(a.buckets)
		// Rotate so that the port after lastPort comes first.
		start := (a.lastPort + 1) % n
		rotated := req>>start | req<<(n-start)
		if n < MaxPorts {
			rotated &= 1<<n - 1
		}
		sel = (start + bits.TrailingZeros64(rotated)) % n
		a.lastPort = sel
	}
	a.selections.Write(sel)
}

func (a *Arbiter) divideTokens() {
	a.cycle++
	if c, ok := a.charges.TryRead(); ok {
		a.buckets[c.port].charge(c.bytes, a.debtFloor())
	}
	for i := range a.buckets {
		if a.buckets[i].refillDue(a.cycle) {
			a.buckets[i].addTokens()
		}
	}
}

// debtFloor is the lowest balance a charge can leave behind.
func (a *Arbiter) debtFloor() int {
	return -(2 << a.logQuota)
}
