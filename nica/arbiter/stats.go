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

package arbiter

// PortStats are the counters of one input port.
type PortStats struct {
	// NotEmpty counts selection rounds in which the port had data.
	NotEmpty uint64 `json:"not_empty"`
	// NoTokens counts selection rounds in which the port was below
	// MinTokens.
	NoTokens       uint64 `json:"no_tokens"`
	Tokens         int    `json:"tokens"`
	Words          uint64 `json:"words"`
	Packets        uint64 `json:"packets"`
	LastPacketID   uint8  `json:"last_packet_id"`
	LastUser       uint16 `json:"last_user"`
	IdleEvictions  uint64 `json:"idle_evictions"`
	QuotaEvictions uint64 `json:"quota_evictions"`
}

// Stats is a snapshot of the arbiter counters.
type Stats struct {
	Ports []PortStats `json:"ports"`
	// Idle is set if the transmit side was idle at the start of the last
	// tick.
	Idle bool `json:"idle"`
	// OutFull counts ticks in which the output was full.
	OutFull uint64 `json:"out_full"`
}

// Stats returns a copy of the counters.
func (a *Arbiter) Stats() Stats {
	s := Stats{
		Ports:   make([]PortStats, len(a.stats.Ports)),
		Idle:    a.stats.Idle,
		OutFull: a.stats.OutFull,
	}
	copy(s.Ports, a.stats.Ports)
	for i := range s.Ports {
		s.Ports[i].Tokens = a.buckets[i].Tokens
	}
	return s
}
