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

package threshold_test

import (
	"encoding/binary"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nicaproject/nica/nica/credit"
	"github.com/nicaproject/nica/nica/ikernel"
	"github.com/nicaproject/nica/nica/ikernel/threshold"
	"github.com/nicaproject/nica/pkg/gateway"
	"github.com/nicaproject/nica/pkg/stream"
)

var testMeta = ikernel.Metadata{
	FlowID:    2,
	IkernelID: 1,
	Length:    32,
	Packet: ikernel.PacketMetadata{
		EthDst: ikernel.MACFromUint64(1), EthSrc: ikernel.MACFromUint64(2),
		IPDst: 3, IPSrc: 4, UDPDst: 5, UDPSrc: 6,
	},
}

func valuePacket(v uint32, words int) []stream.Word {
	b := make([]byte, words*stream.WordSize)
	binary.BigEndian.PutUint32(b[threshold.ValueOffset:], v)
	return stream.Packetize(b, 0, 0)
}

func send(p ikernel.PipelinePorts, m ikernel.Metadata, words []stream.Word) {
	p.MetadataIn.Write(m)
	for _, w := range words {
		p.DataIn.Write(w)
	}
}

func run(k *threshold.Ikernel, p *ikernel.Ports, ticks int) {
	for i := 0; i < ticks; i++ {
		k.Step(p)
	}
}

func read(t *testing.T, k *threshold.Ikernel, addr uint32) int32 {
	t.Helper()
	v, res := k.RegRead(addr)
	require.Equal(t, gateway.Done, res)
	return v
}

func TestValueRegister(t *testing.T) {
	k := threshold.New(0)
	require.Equal(t, gateway.Done, k.RegWrite(threshold.RegValue, 0x5a5aff11))
	assert.Equal(t, gateway.Busy, k.RegWrite(threshold.RegValue, 1))
	assert.Equal(t, int32(0x5a5aff11), read(t, k, threshold.RegValue))
	assert.Equal(t, int32(0), read(t, k, threshold.RegDropped))
	assert.Equal(t, int32(0), read(t, k, threshold.RegCount))
	assert.Equal(t, int32(0), read(t, k, threshold.RegSumLo))
	assert.Equal(t, int32(0), read(t, k, threshold.RegSumHi))
	assert.Equal(t, int32(-1), read(t, k, threshold.RegMin))
	assert.Equal(t, int32(0), read(t, k, threshold.RegMax))
	assert.Equal(t, int32(1), read(t, k, ikernel.RegProbe))
	_, res := k.RegRead(0x30)
	assert.Equal(t, gateway.Fail, res)
}

func TestRandomPackets(t *testing.T) {
	const total = 100
	r := rand.New(rand.NewSource(1))
	k := threshold.New(0)
	p := ikernel.NewPorts(2 * total)
	limit := r.Uint32()
	require.Equal(t, gateway.Done, k.RegWrite(threshold.RegValue, int32(limit)))

	var want []ikernel.Action
	var sum uint64
	var dropped uint32
	minV, maxV := ^uint32(0), uint32(0)
	for i := 0; i < total; i++ {
		v := r.Uint32()
		sum += uint64(v)
		minV, maxV = min(minV, v), max(maxV, v)
		if v < limit {
			dropped++
			want = append(want, ikernel.Drop)
		} else {
			want = append(want, ikernel.Pass)
		}
		send(p.Net, testMeta, valuePacket(v, 1))
	}
	run(k, p, 3*total)

	for i := 0; i < total; i++ {
		a := p.Net.Action.Read()
		require.Equal(t, want[i], a, "packet %d", i)
		if a == ikernel.Pass {
			assert.Equal(t, testMeta, p.Net.MetadataOut.Read())
			assert.True(t, p.Net.DataOut.Read().Last)
		}
	}
	assert.True(t, p.Net.DataOut.Empty())

	assert.Equal(t, int32(dropped), read(t, k, threshold.RegDropped))
	assert.Equal(t, int32(total), read(t, k, threshold.RegCount))
	assert.Equal(t, int32(uint32(sum)), read(t, k, threshold.RegSumLo))
	assert.Equal(t, int32(uint32(sum>>32)), read(t, k, threshold.RegSumHi))
	assert.Equal(t, int32(minV), read(t, k, threshold.RegMin))
	assert.Equal(t, int32(maxV), read(t, k, threshold.RegMax))
}

func TestCustomRing(t *testing.T) {
	k := threshold.New(100)
	p := ikernel.NewPorts(16)
	require.Equal(t, gateway.Done, k.RegWrite(threshold.RegRingID+2, 1))
	p.HostCreditRegs = credit.UpdateRegisters{RingID: 1, MaxMSN: 2}

	// Three passing packets, of which the third has no credit left, and
	// one below the threshold.
	send(p.Net, testMeta, valuePacket(150, 2))
	send(p.Net, testMeta, valuePacket(50, 1))
	send(p.Net, testMeta, valuePacket(200, 1))
	send(p.Net, testMeta, valuePacket(300, 1))
	run(k, p, 20)

	assert.Equal(t, ikernel.Pass, p.Net.Action.Read())
	assert.Equal(t, ikernel.Drop, p.Net.Action.Read())
	assert.Equal(t, ikernel.Pass, p.Net.Action.Read())
	assert.Equal(t, ikernel.Drop, p.Net.Action.Read())
	assert.True(t, p.Net.Action.Empty())

	for _, v := range []uint32{150, 200} {
		m := p.Net.MetadataOut.Read()
		assert.Equal(t, credit.RingID(1), m.RingID)
		assert.True(t, m.EndOfMessage)
		assert.Equal(t, uint16(4), m.Length)
		assert.Equal(t, testMeta.FlowID, m.FlowID)
		assert.Equal(t, testMeta.IkernelID, m.IkernelID)

		d := p.Net.DataOut.Read()
		assert.True(t, d.Last)
		assert.Equal(t, 4, d.Len())
		assert.Equal(t, v, binary.BigEndian.Uint32(d.Data[:]))
	}
	assert.True(t, p.Net.DataOut.Empty(), "trailing words of ring packets are consumed")

	assert.Equal(t, int32(2), read(t, k, threshold.RegDropped))
	assert.Equal(t, int32(1), read(t, k, threshold.RegDroppedBackpressure))
	assert.Equal(t, credit.Window{MSN: 2, MaxMSN: 2}, k.Credits(1))
}

func TestMultiWordPacketPassesWhole(t *testing.T) {
	k := threshold.New(1)
	p := ikernel.NewPorts(8)
	send(p.Net, testMeta, valuePacket(10, 3))
	run(k, p, 6)

	assert.Equal(t, ikernel.Pass, p.Net.Action.Read())
	assert.Equal(t, 3, p.Net.DataOut.Len())
	assert.Equal(t, threshold.Stats{Min: 10, Max: 10, Count: 1, Sum: 10}, k.Stats())
}

func TestRingMapRegisters(t *testing.T) {
	k := threshold.New(0)
	p := ikernel.NewPorts(1)
	addr := uint32(threshold.RegRingID + 5)

	require.Equal(t, gateway.Done, k.RegWrite(addr, 3))
	assert.Equal(t, gateway.Fail, k.RegWrite(addr, credit.MaxRings+1))
	assert.Equal(t, gateway.Fail, k.RegWrite(threshold.RegRingID+8, 1))

	_, res := k.RegRead(addr)
	assert.Equal(t, gateway.Busy, res, "query issued")
	k.Step(p)
	assert.Equal(t, int32(3), read(t, k, addr))
}
