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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nicaproject/nica/nica/customring"
	"github.com/nicaproject/nica/nica/ikernel"
	"github.com/nicaproject/nica/nica/parse"
	"github.com/nicaproject/nica/pkg/log/testlog"
	"github.com/nicaproject/nica/pkg/stream"
)

func newTestJoin(t *testing.T) *join {
	return &join{
		private: stream.New[ikernel.Metadata](4),
		ports:   ikernel.NewPipelinePorts(16),
		ring:    customring.New(),
		pass:    stream.New[stream.Word](64),
		gen:     stream.New[stream.Word](64),
		logger:  testlog.NewLogger(t),
	}
}

func outputMeta(b []byte) ikernel.Metadata {
	return ikernel.Metadata{
		FlowID:           3,
		IPIdentification: 99,
		Length:           uint16(len(b)),
		Packet: ikernel.PacketMetadata{
			IPSrc:  0x0a000001,
			IPDst:  0x0a000002,
			UDPSrc: 1,
			UDPDst: 2,
		},
	}
}

func writeOutput(j *join, a ikernel.Action, b []byte) {
	j.ports.Action.Write(a)
	j.ports.MetadataOut.Write(outputMeta(b))
	for _, w := range stream.Packetize(b, 3, 0) {
		j.ports.DataOut.Write(w)
	}
}

func readFrame(t *testing.T, f *stream.Fifo[stream.Word]) []byte {
	t.Helper()
	var b []byte
	for {
		w, ok := f.TryRead()
		require.True(t, ok, "incomplete frame")
		assert.Equal(t, uint8(3), w.ID)
		b = stream.AppendBytes(b, w)
		if w.Last {
			return b
		}
	}
}

func stepJoin(j *join, n int) {
	for i := 0; i < n; i++ {
		j.step()
	}
}

func TestJoinPassWaitsForPrivateCopy(t *testing.T) {
	j := newTestJoin(t)
	body := []byte("hello")
	writeOutput(j, ikernel.Pass, body)

	stepJoin(j, 10)
	assert.True(t, j.pass.Empty())
	assert.Equal(t, 1, j.ports.Action.Len())

	j.private.Write(outputMeta(body))
	stepJoin(j, 10)
	assert.True(t, j.private.Empty())

	want, err := parse.Build(outputMeta(body).Packet, 99, body)
	require.NoError(t, err)
	assert.Equal(t, want, readFrame(t, j.pass))
	assert.True(t, j.gen.Empty())
	assert.Equal(t, uint64(1), j.stats.Actions[ikernel.Pass])
}

func TestJoinGenerateKeepsPrivateCopy(t *testing.T) {
	j := newTestJoin(t)
	j.private.Write(outputMeta(nil))
	body := make([]byte, 100)
	writeOutput(j, ikernel.Generate, body)

	stepJoin(j, 20)
	assert.Equal(t, 1, j.private.Len())
	assert.True(t, j.pass.Empty())
	frame := readFrame(t, j.gen)
	assert.Len(t, frame, parse.HeaderSize+len(body))
	assert.Equal(t, uint64(1), j.stats.Actions[ikernel.Generate])
}

func TestJoinDrop(t *testing.T) {
	j := newTestJoin(t)
	j.private.Write(outputMeta(nil))
	j.private.Write(outputMeta(nil))
	j.ports.Action.Write(ikernel.Drop)
	j.ports.Action.Write(ikernel.Drop)

	stepJoin(j, 4)
	assert.True(t, j.private.Empty())
	assert.True(t, j.ports.Action.Empty())
	assert.True(t, j.pass.Empty())
	assert.True(t, j.gen.Empty())
	assert.Equal(t, uint64(2), j.stats.Actions[ikernel.Drop])
}

func TestJoinEmitStallsOnFullPort(t *testing.T) {
	j := newTestJoin(t)
	j.gen = stream.New[stream.Word](1)
	body := make([]byte, 200)
	writeOutput(j, ikernel.Generate, body)

	stepJoin(j, 20)
	assert.True(t, j.gen.Full())
	var b []byte
	for i := 0; i < 50 && (len(b) == 0 || !j.gen.Empty() || j.state != joinAction); i++ {
		if w, ok := j.gen.TryRead(); ok {
			b = stream.AppendBytes(b, w)
		}
		j.step()
	}
	assert.Len(t, b, parse.HeaderSize+len(body))
}
