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

package nica_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/nicaproject/nica/nica"
	"github.com/nicaproject/nica/nica/flowtable"
	"github.com/nicaproject/nica/nica/ikernel"
	"github.com/nicaproject/nica/nica/ikernel/echo"
	"github.com/nicaproject/nica/nica/ikernel/mock_ikernel"
	"github.com/nicaproject/nica/nica/ikernel/passthrough"
	"github.com/nicaproject/nica/nica/parse"
	"github.com/nicaproject/nica/pkg/gateway"
	"github.com/nicaproject/nica/pkg/log/testlog"
	"github.com/nicaproject/nica/pkg/private/xtest"
)

const maxTicks = 5000

var testMeta = ikernel.PacketMetadata{
	EthDst: ikernel.MAC{0x02, 0, 0, 0, 0, 0x01},
	EthSrc: ikernel.MAC{0x02, 0, 0, 0, 0, 0x02},
	IPDst:  0x0a000001,
	IPSrc:  0x0a000002,
	UDPDst: 11211,
	UDPSrc: 40000,
}

func udpFrame(t *testing.T, m ikernel.PacketMetadata, payload []byte) []byte {
	t.Helper()
	frame, err := parse.Build(m, 0x1234, payload)
	require.NoError(t, err)
	return frame
}

func payload(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i)
	}
	return b
}

// collect steps e until n frames left the pipeline of dir.
func collect(t *testing.T, e *nica.Engine, dir nica.Direction, n int) [][]byte {
	t.Helper()
	var frames [][]byte
	for i := 0; i < maxTicks && len(frames) < n; i++ {
		e.Step()
		frames = append(frames, e.Drain(dir)...)
	}
	require.Len(t, frames, n)
	return frames
}

// settle steps e long enough for every queued packet to leave and returns
// what left in each direction.
func settle(e *nica.Engine) map[nica.Direction][][]byte {
	out := make(map[nica.Direction][][]byte)
	for i := 0; i < maxTicks; i++ {
		e.Step()
	}
	for _, dir := range nica.Directions {
		out[dir] = e.Drain(dir)
	}
	return out
}

func newEngine(t *testing.T, iks ...nica.Ikernel) *nica.Engine {
	e, err := nica.New(nica.DefaultConfig(), iks, testlog.NewLogger(t))
	require.NoError(t, err)
	return e
}

// steerAll sends every UDP packet of dir to ikernel 0.
func steerAll(t *testing.T, e *nica.Engine, dir nica.Direction) {
	t.Helper()
	err := e.Pipeline(dir).FlowTable().Set(0, flowtable.Entry{
		Action:    flowtable.ToIkernel,
		IkernelID: 7,
	})
	require.NoError(t, err)
}

func TestPassthroughWithoutIkernels(t *testing.T) {
	testCases := map[string]struct {
		Frame func(t *testing.T) []byte
		Stats nica.SteeringStats
	}{
		"udp": {
			Frame: func(t *testing.T) []byte { return udpFrame(t, testMeta, payload(100)) },
			Stats: nica.SteeringStats{ActionPassthrough: 1},
		},
		"minimal udp": {
			Frame: func(t *testing.T) []byte { return udpFrame(t, testMeta, nil) },
			Stats: nica.SteeringStats{ActionPassthrough: 1},
		},
		"arp": {
			Frame: func(t *testing.T) []byte {
				f := make([]byte, parse.MinFrameSize)
				f[12], f[13] = 0x08, 0x06
				return f
			},
			Stats: nica.SteeringStats{PassthroughNotIPv4: 1, ActionPassthrough: 1},
		},
		"tcp": {
			Frame: func(t *testing.T) []byte {
				f := udpFrame(t, testMeta, payload(20))
				f[14+9] = 6
				return f
			},
			Stats: nica.SteeringStats{PassthroughNotUDP: 1, ActionPassthrough: 1},
		},
	}
	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			e := newEngine(t)
			frame := tc.Frame(t)
			require.NoError(t, e.Inject(nica.NetToHost, frame))
			out := collect(t, e, nica.NetToHost, 1)
			assert.Equal(t, frame, out[0])
			assert.Equal(t, tc.Stats, e.Pipeline(nica.NetToHost).SteeringStats())
			assert.Empty(t, e.Drain(nica.HostToNet))
		})
	}
}

func TestPassthroughIkernel(t *testing.T) {
	for _, dir := range nica.Directions {
		t.Run(dir.String(), func(t *testing.T) {
			e := newEngine(t, nica.Ikernel{Kind: "passthrough", Ikernel: passthrough.New()})
			steerAll(t, e, dir)

			frames := [][]byte{
				udpFrame(t, testMeta, payload(10)),
				udpFrame(t, testMeta, payload(200)),
				udpFrame(t, testMeta, payload(1400)),
			}
			for _, f := range frames {
				require.NoError(t, e.Inject(dir, f))
			}
			out := collect(t, e, dir, len(frames))
			assert.Equal(t, frames, out)

			p := e.Pipeline(dir)
			assert.Equal(t, nica.SteeringStats{ActionIkernel: 3}, p.SteeringStats())
			var want nica.IkernelStats
			want.Actions[ikernel.Pass] = 3
			assert.Equal(t, want, p.IkernelStats(0))
			assert.Equal(t, uint64(3), p.Arbiter().Stats().Ports[nica.PassPort(0)].Packets)
		})
	}
}

func TestEchoIkernel(t *testing.T) {
	e := newEngine(t, nica.Ikernel{Kind: "echo", Ikernel: echo.New(false)})
	steerAll(t, e, nica.NetToHost)

	body := payload(120)
	require.NoError(t, e.Inject(nica.NetToHost, udpFrame(t, testMeta, body)))
	out := collect(t, e, nica.HostToNet, 1)

	var parser parse.Parser
	got, err := parser.Parse(out[0])
	require.NoError(t, err)
	want := &parse.Packet{
		Meta:             testMeta.Reply(),
		IPIdentification: 0x1234,
		Payload:          body,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("reply mismatch (-want +got):\n%s", diff)
	}

	rest := settle(e)
	assert.Empty(t, rest[nica.NetToHost])
	assert.Empty(t, rest[nica.HostToNet])
	assert.Equal(t, uint64(1),
		e.Pipeline(nica.NetToHost).IkernelStats(0).Actions[ikernel.Drop])
	assert.Equal(t, uint64(1),
		e.Pipeline(nica.HostToNet).IkernelStats(0).Actions[ikernel.Generate])
	assert.Equal(t, uint64(1),
		e.Pipeline(nica.HostToNet).Arbiter().Stats().Ports[nica.GeneratePort(0)].Packets)
}

func TestFlowTableDrop(t *testing.T) {
	e := newEngine(t)
	ft := e.Pipeline(nica.NetToHost).FlowTable()
	ft.SetFields(flowtable.FieldDstPort)
	require.NoError(t, ft.Set(1, flowtable.Entry{
		Key:    flowtable.Flow{DstPort: testMeta.UDPDst},
		Action: flowtable.Drop,
	}))

	other := testMeta
	other.UDPDst = 53
	require.NoError(t, e.Inject(nica.NetToHost, udpFrame(t, testMeta, payload(40))))
	kept := udpFrame(t, other, payload(40))
	require.NoError(t, e.Inject(nica.NetToHost, kept))

	out := settle(e)
	assert.Equal(t, [][]byte{kept}, out[nica.NetToHost])
	assert.Equal(t, nica.SteeringStats{ActionDrop: 1, ActionPassthrough: 1},
		e.Pipeline(nica.NetToHost).SteeringStats())
}

func TestUnknownIkernelPassesThrough(t *testing.T) {
	e := newEngine(t)
	require.NoError(t, e.Pipeline(nica.NetToHost).FlowTable().Set(0, flowtable.Entry{
		Action:  flowtable.ToIkernel,
		Ikernel: 3,
	}))
	frame := udpFrame(t, testMeta, payload(16))
	require.NoError(t, e.Inject(nica.NetToHost, frame))
	out := collect(t, e, nica.NetToHost, 1)
	assert.Equal(t, frame, out[0])
	assert.Equal(t, nica.SteeringStats{ActionPassthrough: 1},
		e.Pipeline(nica.NetToHost).SteeringStats())
}

func TestInjectNoRoom(t *testing.T) {
	cfg := nica.DefaultConfig()
	cfg.Pipeline.WordDepth = 4
	e, err := nica.New(cfg, nil, testlog.NewLogger(t))
	require.NoError(t, err)

	err = e.Inject(nica.NetToHost, udpFrame(t, testMeta, payload(200)))
	assert.ErrorIs(t, err, nica.ErrNoRoom)
	assert.NoError(t, e.Inject(nica.NetToHost, udpFrame(t, testMeta, nil)))
}

func TestMockIkernel(t *testing.T) {
	ctrl := gomock.NewController(t)
	id := uuid.MustParse("0b6bb1d2-5a6c-4c32-9d3c-6f7f8e0c1a11")
	ik := mock_ikernel.NewMockIkernel(ctrl)
	ik.EXPECT().UUID().Return(id).AnyTimes()
	ik.EXPECT().Step(gomock.Any()).Do(func(p *ikernel.Ports) {
		ikernel.DropPackets(p.Net)
		ikernel.DropPackets(p.Host)
	}).AnyTimes()

	e := newEngine(t, nica.Ikernel{Kind: "mock", Ikernel: ik})
	assert.Equal(t, []nica.IkernelInfo{{Index: 0, Kind: "mock", UUID: id}}, e.Ikernels())

	steerAll(t, e, nica.NetToHost)
	require.NoError(t, e.Inject(nica.NetToHost, udpFrame(t, testMeta, payload(64))))
	out := settle(e)
	assert.Empty(t, out[nica.NetToHost])
	var want nica.IkernelStats
	want.Actions[ikernel.Drop] = 1
	assert.Equal(t, want, e.Pipeline(nica.NetToHost).IkernelStats(0))
}

// runEngine drives e in the background until the test ends.
func runEngine(t *testing.T, e *nica.Engine) {
	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		assert.NoError(t, e.Run(ctx, nica.RunConfig{TicksPerBatch: 16}))
	}()
	t.Cleanup(func() {
		cancel()
		wg.Wait()
	})
}

func TestGatewayRegisters(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctrl := gomock.NewController(t)
	ik := mock_ikernel.NewMockIkernel(ctrl)
	ik.EXPECT().Step(gomock.Any()).AnyTimes()
	ik.EXPECT().RegRead(uint32(0x20)).Return(int32(42), gateway.Done)
	ik.EXPECT().RegWrite(uint32(0x21), int32(-5)).Return(gateway.Done)

	e := newEngine(t, nica.Ikernel{Kind: "mock", Ikernel: ik})
	t.Run("run", func(t *testing.T) {
		runEngine(t, e)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		c, err := e.Gateway(nica.NetToHost, "ikernel0")
		require.NoError(t, err)
		v, err := c.Read(ctx, 0x20)
		require.NoError(t, err)
		assert.Equal(t, int32(42), v)
		require.NoError(t, c.Write(ctx, 0x21, -5))

		st, err := e.Gateway(nica.NetToHost, nica.ComponentSteering)
		require.NoError(t, err)
		v, err = st.Read(ctx, nica.RegSteeringEnable)
		require.NoError(t, err)
		assert.Equal(t, int32(1), v)
		require.NoError(t, st.Write(ctx, nica.RegSteeringEnable, 0))
		_, err = st.Read(ctx, 0x100)
		assert.ErrorIs(t, err, gateway.ErrFailed)

		frame := udpFrame(t, testMeta, payload(30))
		require.NoError(t, e.Inject(nica.NetToHost, frame))
		require.Eventually(t, func() bool {
			return len(e.Drain(nica.NetToHost)) == 1
		}, 5*time.Second, time.Millisecond)
		v, err = st.Read(ctx, nica.RegPassthroughDisabled)
		require.NoError(t, err)
		assert.Equal(t, int32(1), v)
	})
	assert.NotZero(t, e.Ticks())

	_, err := e.Gateway(nica.NetToHost, "ikernel1")
	assert.ErrorIs(t, err, nica.ErrUnknownComponent)
	_, err = e.Gateway(nica.HostToNet, "router")
	assert.ErrorIs(t, err, nica.ErrUnknownComponent)
}

func TestRunStops(t *testing.T) {
	defer goleak.VerifyNone(t)

	e := newEngine(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- e.Run(ctx, nica.RunConfig{TickInterval: time.Millisecond, TicksPerBatch: 4})
	}()
	require.Eventually(t, func() bool { return e.Ticks() >= 8 }, 5*time.Second,
		time.Millisecond)
	xtest.AssertReadDoesNotReturnBefore(t, done, 10*time.Millisecond)
	cancel()
	assert.NoError(t, xtest.AssertReadReturnsBefore(t, done, 5*time.Second))
	assert.Zero(t, e.Ticks()%4)
}

func TestStats(t *testing.T) {
	e := newEngine(t, nica.Ikernel{Kind: "passthrough", Ikernel: passthrough.New()})
	steerAll(t, e, nica.HostToNet)
	require.NoError(t, e.Inject(nica.HostToNet, udpFrame(t, testMeta, payload(64))))
	collect(t, e, nica.HostToNet, 1)

	s := e.Stats()
	assert.NotZero(t, s.Ticks)
	require.Contains(t, s.Pipelines, "h2n")
	h2n := s.Pipelines["h2n"]
	assert.Equal(t, uint64(1), h2n.Steering.ActionIkernel)
	require.Len(t, h2n.Ikernels, 1)
	assert.Equal(t, uint64(1), h2n.Ikernels[0].Actions[ikernel.Pass])
	assert.Len(t, h2n.Arbiter.Ports, 3)
	assert.Equal(t, []string{"flowtable", "steering", "arbiter", "customring", "ikernel0"},
		e.Components())
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	passthroughs := func(n int) []nica.Ikernel {
		iks := make([]nica.Ikernel, n)
		for i := range iks {
			iks[i] = nica.Ikernel{Kind: "passthrough", Ikernel: passthrough.New()}
		}
		return iks
	}
	testCases := map[string]struct {
		Modify    func(cfg *nica.Config)
		Ikernels  int
		Assertion assert.ErrorAssertionFunc
	}{
		"most ikernels": {
			Modify:    func(cfg *nica.Config) {},
			Ikernels:  nica.MaxIkernels,
			Assertion: assert.NoError,
		},
		"too many ikernels": {
			Modify:    func(cfg *nica.Config) {},
			Ikernels:  nica.MaxIkernels + 1,
			Assertion: assert.Error,
		},
		"largest flow table": {
			Modify:    func(cfg *nica.Config) { cfg.Pipeline.FlowTableSize = flowtable.MaxSize },
			Assertion: assert.NoError,
		},
		"flow table too large": {
			Modify:    func(cfg *nica.Config) { cfg.Pipeline.FlowTableSize = flowtable.MaxSize + 1 },
			Assertion: assert.Error,
		},
		"empty flow table": {
			Modify:    func(cfg *nica.Config) { cfg.Pipeline.FlowTableSize = 0 },
			Assertion: assert.Error,
		},
		"zero word depth": {
			Modify:    func(cfg *nica.Config) { cfg.Pipeline.WordDepth = 0 },
			Assertion: assert.Error,
		},
		"negative ikernel depth": {
			Modify:    func(cfg *nica.Config) { cfg.IkernelDepth = -1 },
			Assertion: assert.Error,
		},
	}
	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			cfg := nica.DefaultConfig()
			tc.Modify(&cfg)
			e, err := nica.New(cfg, passthroughs(tc.Ikernels), testlog.NewLogger(t))
			tc.Assertion(t, err)
			if err == nil {
				assert.Len(t, e.Ikernels(), tc.Ikernels)
			}
		})
	}
}
