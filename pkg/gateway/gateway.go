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

// Package gateway implements the register gateway: the handshake through
// which a host reads and writes configuration registers of a data path
// component one command at a time.
//
// The host places a command (address, write flag and data) into the
// registers and raises Go. The component processes at most one command per
// tick; when the handler returns anything but Busy it raises Done. The host
// collects the result and lowers Go, after which the component lowers Done
// and the next command may be issued.
package gateway

import "fmt"

// Result is the outcome of a register access.
type Result int32

const (
	// Fail rejects the command permanently, e.g. for an unknown address.
	Fail Result = -1
	// Done completes the command.
	Done Result = 0
	// Busy asks the gateway to retry the same command on the next tick.
	Busy Result = 1
)

func (r Result) String() string {
	switch r {
	case Fail:
		return "FAIL"
	case Done:
		return "DONE"
	case Busy:
		return "BUSY"
	default:
		return fmt.Sprintf("Result(%d)", int32(r))
	}
}

// MaxAddr is the largest address a command can carry.
const MaxAddr = 1<<30 - 1

// Command is the command word written by the host.
type Command struct {
	Addr  uint32
	Write bool
	Go    bool
}

// Registers is the register block shared between host and component.
type Registers struct {
	Cmd  Command
	Data int32
	Done bool
	// Result of the last completed command.
	Result Result
}

// Handler is implemented by every component that exposes registers.
type Handler interface {
	RegRead(addr uint32) (int32, Result)
	RegWrite(addr uint32, value int32) Result
}

// Updater is optionally implemented by handlers that need to run
// housekeeping once per tick, whether or not a command is pending.
type Updater interface {
	GatewayUpdate()
}

// Gateway holds the component side of the handshake.
type Gateway struct {
	done bool
}

// Step runs one tick of the handshake against h.
func (g *Gateway) Step(h Handler, r *Registers) {
	switch {
	case r.Cmd.Go && !g.done:
		var res Result
		if r.Cmd.Write {
			res = h.RegWrite(r.Cmd.Addr, r.Data)
		} else {
			r.Data, res = h.RegRead(r.Cmd.Addr)
		}
		if res != Busy {
			g.done = true
			r.Done = true
			r.Result = res
		}
	case !r.Cmd.Go && g.done:
		g.done = false
		r.Done = false
	}
	if u, ok := h.(Updater); ok {
		u.GatewayUpdate()
	}
}
