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

// Package credit implements the per ring credit windows that bound how many
// unsolicited messages an ikernel may send to the host on a custom ring
// before the host acknowledges them.
//
// Each ring has a message sequence number (MSN) and a maximum MSN written by
// the host. Sending is allowed while the two differ; every message sent
// advances the MSN by one. The host grants more credit by raising the
// maximum and may restart the window by resetting the MSN.
package credit

import "fmt"

// MaxRings is the number of custom rings with a credit window. Ring ids
// 1..MaxRings are valid; ring 0 is the plain network stack.
const MaxRings = 16

// RingID identifies a custom ring.
type RingID uint8

// Direction is the side a message is sent to.
type Direction uint8

const (
	// Host messages are subject to credit based flow control.
	Host Direction = iota
	// Net messages are never flow controlled.
	Net
)

func (d Direction) String() string {
	switch d {
	case Host:
		return "host"
	case Net:
		return "net"
	default:
		return fmt.Sprintf("Direction(%d)", uint8(d))
	}
}

// Window is the credit state of one ring.
type Window struct {
	MSN    uint16
	MaxMSN uint16
}

// CanTransmit reports whether the window has credit left.
func (w Window) CanTransmit() bool {
	return w.MSN != w.MaxMSN
}

// UpdateRegisters is the credit update register block written by the host.
// It is a full snapshot, not a delta.
type UpdateRegisters struct {
	RingID RingID
	MaxMSN uint16
	Reset  bool
}

// Controller tracks the host credit windows of one ikernel.
//
// NewMessage must be called exactly once for every message sent on a ring,
// i.e. once per end of message marker produced. The controller cannot detect
// a mismatch; it silently shifts the window.
type Controller struct {
	windows [MaxRings]Window
	last    UpdateRegisters
}

func valid(ring RingID) bool {
	return ring >= 1 && ring <= MaxRings
}

// CanTransmit reports whether a message of the given length may be sent on
// ring in direction dir. The ikernel id and length do not influence the
// decision. Unknown rings never have credit.
func (c *Controller) CanTransmit(ikernelID uint32, ring RingID, length uint16,
	dir Direction) bool {

	if ring == 0 || dir != Host {
		return true
	}
	if !valid(ring) {
		return false
	}
	return c.windows[ring-1].CanTransmit()
}

// NewMessage accounts for a message sent on ring in direction dir.
func (c *Controller) NewMessage(ring RingID, dir Direction) {
	if dir != Host || !valid(ring) {
		return
	}
	c.windows[ring-1].MSN++
}

// Update applies regs unless it equals the last snapshot seen. A reset
// clears the MSN before the new maximum is written.
func (c *Controller) Update(regs UpdateRegisters) {
	if regs == c.last {
		return
	}
	c.last = regs
	if !valid(regs.RingID) {
		return
	}
	w := &c.windows[regs.RingID-1]
	if regs.Reset {
		w.MSN = 0
	}
	w.MaxMSN = regs.MaxMSN
}

// Window returns the window of ring. The zero window is returned for
// unknown rings.
func (c *Controller) Window(ring RingID) Window {
	if !valid(ring) {
		return Window{}
	}
	return c.windows[ring-1]
}
