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

package customring_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nicaproject/nica/nica/customring"
	"github.com/nicaproject/nica/nica/ikernel"
	"github.com/nicaproject/nica/pkg/gateway"
)

// write retries a register write the way the gateway does until it is no
// longer busy.
func write(t *testing.T, r *customring.Ring, addr uint32, value int32) {
	t.Helper()
	for i := 0; i < 10; i++ {
		res := r.RegWrite(addr, value)
		if res != gateway.Busy {
			require.Equal(t, gateway.Done, res)
			return
		}
		r.GatewayUpdate()
	}
	t.Fatalf("register write 0x%x stayed busy", addr)
}

func setContext(t *testing.T, r *customring.Ring, ring uint8, c customring.Context) {
	t.Helper()
	write(t, r, customring.RegDstQPN, int32(c.DestQPN))
	write(t, r, customring.RegPSN, int32(c.PSN))
	write(t, r, customring.RegWriteContext, int32(ring))
	r.GatewayUpdate()
}

func TestRingZeroUnchanged(t *testing.T) {
	r := customring.New()
	m := ikernel.Metadata{Length: 3, Packet: ikernel.PacketMetadata{UDPDst: 53}}
	want := m
	payload := []byte{1, 2, 3}
	assert.Equal(t, payload, r.Encap(&m, payload))
	assert.Equal(t, want, m)
	assert.Zero(t, r.Packets())
}

func TestEncap(t *testing.T) {
	r := customring.New()
	setContext(t, r, 2, customring.Context{DestQPN: 0x123456, PSN: 7})

	testCases := map[string]struct {
		payload []byte
		flags   byte
		psn     byte
	}{
		"aligned":  {payload: []byte{1, 2, 3, 4}, flags: 0x00, psn: 7},
		"one pad":  {payload: []byte{1, 2, 3}, flags: 0x10, psn: 8},
		"two pads": {payload: []byte{1, 2}, flags: 0x20, psn: 9},
		"empty":    {payload: nil, flags: 0x00, psn: 10},
	}
	for _, name := range []string{"aligned", "one pad", "two pads", "empty"} {
		tc := testCases[name]
		t.Run(name, func(t *testing.T) {
			m := ikernel.Metadata{
				RingID:       2,
				Length:       uint16(len(tc.payload)),
				EndOfMessage: true,
				Packet:       ikernel.PacketMetadata{UDPDst: 53},
			}
			out := r.Encap(&m, tc.payload)

			want := []byte{0x24, tc.flags, 0xff, 0xff, 0, 0x12, 0x34, 0x56, 0, 0, 0, tc.psn}
			want = append(want, tc.payload...)
			want = append(want, 0, 0, 0, 0)
			assert.Equal(t, want, out)
			assert.Equal(t, uint16(len(tc.payload)+customring.Overhead), m.Length)
			assert.Zero(t, m.RingID)
			assert.Equal(t, customring.DefaultTransport, m.Packet)
			assert.True(t, m.EndOfMessage)
		})
	}
	assert.Equal(t, uint32(11), r.Context(2).PSN)
	assert.Equal(t, uint64(4), r.Packets())
}

func TestTransportRegisters(t *testing.T) {
	r := customring.New()
	write(t, r, customring.RegDstMACLo, 0x33445566)
	write(t, r, customring.RegDstMACHi, 0x1122)
	write(t, r, customring.RegDstIP, 0x0a000002)
	write(t, r, customring.RegSrcUDP, 1000)
	r.GatewayUpdate()

	want := customring.DefaultTransport
	want.EthDst = ikernel.MACFromUint64(0x112233445566)
	want.IPDst = 0x0a000002
	want.UDPSrc = 1000
	assert.Equal(t, want, r.Transport())

	testCases := map[string]struct {
		addr uint32
		want int32
	}{
		"dst mac lo":   {addr: customring.RegDstMACLo, want: 0x33445566},
		"dst mac hi":   {addr: customring.RegDstMACHi, want: 0x1122},
		"src mac lo":   {addr: customring.RegSrcMACLo, want: 1},
		"src mac hi":   {addr: customring.RegSrcMACHi, want: 0},
		"dst ip":       {addr: customring.RegDstIP, want: 0x0a000002},
		"src ip":       {addr: customring.RegSrcIP, want: 0x0a000001},
		"dst udp":      {addr: customring.RegDstUDP, want: customring.RoCEPort},
		"src udp":      {addr: customring.RegSrcUDP, want: 1000},
		"num contexts": {addr: customring.RegNumContexts, want: 1 << customring.LogContexts},
	}
	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			v, res := r.RegRead(tc.addr)
			assert.Equal(t, gateway.Done, res)
			assert.Equal(t, tc.want, v)
		})
	}
}

func TestTransportWriteBusy(t *testing.T) {
	r := customring.New()
	require.Equal(t, gateway.Done, r.RegWrite(customring.RegDstIP, 1))
	assert.Equal(t, gateway.Busy, r.RegWrite(customring.RegSrcIP, 2))
	v, _ := r.RegRead(customring.RegSrcIP)
	assert.Equal(t, int32(0x0a000001), v)
	assert.Equal(t, customring.DefaultTransport, r.Transport())

	r.GatewayUpdate()
	assert.Equal(t, uint32(1), r.Transport().IPDst)
	assert.Equal(t, gateway.Done, r.RegWrite(customring.RegSrcIP, 2))
}

func TestReadContext(t *testing.T) {
	r := customring.New()
	setContext(t, r, 5, customring.Context{DestQPN: 99, PSN: 1000})
	write(t, r, customring.RegDstQPN, 0)
	write(t, r, customring.RegPSN, 0)

	assert.Equal(t, gateway.Busy, r.RegWrite(customring.RegReadContext, 5))
	write(t, r, customring.RegReadContext, 5)
	qpn, _ := r.RegRead(customring.RegDstQPN)
	psn, _ := r.RegRead(customring.RegPSN)
	assert.Equal(t, int32(99), qpn)
	assert.Equal(t, int32(1000), psn)
}

func TestUnknownRegister(t *testing.T) {
	r := customring.New()
	v, res := r.RegRead(0x20)
	assert.Equal(t, gateway.Fail, res)
	assert.Equal(t, int32(-1), v)
	assert.Equal(t, gateway.Fail, r.RegWrite(customring.RegNumContexts, 1))
	assert.Equal(t, gateway.Fail, r.RegWrite(0x20, 1))
}
