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

package memcached_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nicaproject/nica/nica/ikernel"
	"github.com/nicaproject/nica/nica/ikernel/memcached"
	"github.com/nicaproject/nica/pkg/gateway"
	"github.com/nicaproject/nica/pkg/stream"
)

var header = []byte{0, 1, 0, 0, 0, 1, 0, 0}

var client = ikernel.Metadata{
	FlowID: 1,
	Packet: ikernel.PacketMetadata{
		EthDst: ikernel.MACFromUint64(1), EthSrc: ikernel.MACFromUint64(2),
		IPDst: 0x0a000002, IPSrc: 0x0a000001, UDPDst: 11211, UDPSrc: 40000,
	},
}

func requestPacket(cmd, key string) []byte {
	b := append([]byte{}, header...)
	b = append(b, cmd+" "+key+"\r\n"...)
	return b
}

func responsePacket(key, value string) []byte {
	b := append([]byte{}, header...)
	b = append(b, "VALUE "+key+" 0 10\r\n"+value+"\r\nEND\r\n"...)
	return b
}

func writePacket(t *testing.T, p ikernel.PipelinePorts, m ikernel.Metadata, b []byte) {
	t.Helper()
	m.Length = uint16(len(b))
	require.False(t, p.MetadataIn.Full())
	p.MetadataIn.Write(m)
	for _, w := range stream.Packetize(b, m.FlowID, 0) {
		require.False(t, p.DataIn.Full())
		p.DataIn.Write(w)
	}
}

type output struct {
	action ikernel.Action
	meta   ikernel.Metadata
	data   []byte
}

// readOutputs drains the outputs of one pipeline direction.
func readOutputs(p ikernel.PipelinePorts) []output {
	var outs []output
	for !p.Action.Empty() {
		o := output{action: p.Action.Read()}
		if o.action != ikernel.Drop {
			o.meta = p.MetadataOut.Read()
			for {
				d := p.DataOut.Read()
				o.data = stream.AppendBytes(o.data, d)
				if d.Last {
					break
				}
			}
		}
		outs = append(outs, o)
	}
	return outs
}

func step(k *memcached.Ikernel, p *ikernel.Ports, n int) {
	for i := 0; i < n; i++ {
		k.Step(p)
	}
}

func indexes() map[string]func() memcached.Index {
	return map[string]func() memcached.Index{
		"direct":  func() memcached.Index { return memcached.NewDirectIndex(memcached.DefaultCacheSize) },
		"probing": func() memcached.Index { return memcached.NewProbingIndex(memcached.DefaultCacheSize) },
	}
}

func TestReplySize(t *testing.T) {
	size := len(responsePacket("0123456789", "abcdefghij"))
	assert.Equal(t, size, memcached.ReplySize)
	var m ikernel.Metadata
	assert.Equal(t, uint16(size), m.Reply(uint16(memcached.ReplySize)).Length)
}

func TestGet(t *testing.T) {
	const key, value = "0123456789", "abcdefghij"
	testCases := map[string]struct {
		store   bool
		get     string
		hit     bool
		entries int
	}{
		"miss on empty index": {get: key},
		"hit":                 {store: true, get: key, hit: true, entries: 1},
		"miss on other key":   {store: true, get: "9876543210", entries: 1},
	}
	for indexName, newIndex := range indexes() {
		for name, tc := range testCases {
			t.Run(indexName+"/"+name, func(t *testing.T) {
				k := memcached.New(newIndex())
				p := ikernel.NewPorts(ikernel.DefaultDepth)
				if tc.store {
					writePacket(t, p.Host, client.Reply(0), responsePacket(key, value))
					step(k, p, 8)
					host := readOutputs(p.Host)
					require.Len(t, host, 1)
					assert.Equal(t, ikernel.Pass, host[0].action)
				}

				get := requestPacket("get", tc.get)
				writePacket(t, p.Net, client, get)
				step(k, p, 16)

				net, host := readOutputs(p.Net), readOutputs(p.Host)
				require.Len(t, net, 1)
				if !tc.hit {
					assert.Equal(t, ikernel.Pass, net[0].action)
					assert.Equal(t, get, net[0].data)
					assert.Empty(t, host)
				} else {
					assert.Equal(t, ikernel.Drop, net[0].action)
					require.Len(t, host, 1)
					assert.Equal(t, ikernel.Generate, host[0].action)
					m := client
					m.Length = uint16(len(get))
					assert.Equal(t, m.Reply(uint16(memcached.ReplySize)), host[0].meta)
					assert.Equal(t, responsePacket(key, value), host[0].data)
				}

				s := k.Stats()
				assert.Equal(t, tc.entries, s.Entries)
				if tc.hit {
					assert.Equal(t, uint64(1), s.Hits)
				} else {
					assert.Equal(t, uint64(1), s.Misses)
				}
			})
		}
	}
}

func TestSetInvalidates(t *testing.T) {
	const key = "0123456789"
	for name, newIndex := range indexes() {
		t.Run(name, func(t *testing.T) {
			k := memcached.New(newIndex())
			p := ikernel.NewPorts(ikernel.DefaultDepth)
			writePacket(t, p.Host, client.Reply(0), responsePacket(key, "abcdefghij"))
			step(k, p, 8)
			readOutputs(p.Host)
			require.Equal(t, 1, k.Stats().Entries)

			set := requestPacket("set", key)
			writePacket(t, p.Net, client, set)
			step(k, p, 8)
			writePacket(t, p.Net, client, requestPacket("get", key))
			step(k, p, 8)

			net := readOutputs(p.Net)
			require.Len(t, net, 2)
			assert.Equal(t, ikernel.Pass, net[0].action)
			assert.Equal(t, set, net[0].data)
			assert.Equal(t, ikernel.Pass, net[1].action)
			assert.Empty(t, readOutputs(p.Host))
			assert.Equal(t, memcached.Stats{Misses: 1, Stores: 1, Invalidations: 1}, k.Stats())
		})
	}
}

func TestOtherRequestsPassed(t *testing.T) {
	k := memcached.New(memcached.NewDirectIndex(16))
	p := ikernel.NewPorts(ikernel.DefaultDepth)
	big := make([]byte, 300)
	copy(big, requestPacket("delete", "0123456789"))
	writePacket(t, p.Net, client, big)
	step(k, p, 32)
	net := readOutputs(p.Net)
	require.Len(t, net, 1)
	assert.Equal(t, ikernel.Pass, net[0].action)
	assert.Equal(t, big, net[0].data)
	assert.Equal(t, memcached.Stats{}, k.Stats())
}

func TestRegisters(t *testing.T) {
	const key = "0123456789"
	k := memcached.New(memcached.NewProbingIndex(64))
	p := ikernel.NewPorts(ikernel.DefaultDepth)
	writePacket(t, p.Host, client.Reply(0), responsePacket(key, "abcdefghij"))
	step(k, p, 8)
	writePacket(t, p.Net, client, requestPacket("get", key))
	writePacket(t, p.Net, client, requestPacket("get", "xxxxxxxxxx"))
	step(k, p, 32)

	testCases := map[string]struct {
		addr uint32
		want int32
	}{
		"hits":          {addr: memcached.RegHits, want: 1},
		"misses":        {addr: memcached.RegMisses, want: 1},
		"stores":        {addr: memcached.RegStores, want: 1},
		"invalidations": {addr: memcached.RegInvalidations, want: 0},
		"entries":       {addr: memcached.RegEntries, want: 1},
		"probe":         {addr: ikernel.RegProbe, want: 1},
	}
	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			v, res := k.RegRead(tc.addr)
			assert.Equal(t, gateway.Done, res)
			assert.Equal(t, tc.want, v)
		})
	}
	_, res := k.RegRead(0x20)
	assert.Equal(t, gateway.Fail, res)
	assert.Equal(t, gateway.Fail, k.RegWrite(memcached.RegHits, 0))
}
