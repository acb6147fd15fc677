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

package gateway_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/nicaproject/nica/pkg/gateway"
)

// regFile accepts addresses below 16, reports busy for the first busyFor
// accesses and fails everything else.
type regFile struct {
	regs    [16]int32
	busyFor int
	updates int
}

func (f *regFile) RegRead(addr uint32) (int32, gateway.Result) {
	if f.busyFor > 0 {
		f.busyFor--
		return 0, gateway.Busy
	}
	if addr >= 16 {
		return -1, gateway.Fail
	}
	return f.regs[addr], gateway.Done
}

func (f *regFile) RegWrite(addr uint32, value int32) gateway.Result {
	if f.busyFor > 0 {
		f.busyFor--
		return gateway.Busy
	}
	if addr >= 16 {
		return gateway.Fail
	}
	f.regs[addr] = value
	return gateway.Done
}

func (f *regFile) GatewayUpdate() { f.updates++ }

func TestGatewayHandshake(t *testing.T) {
	var (
		g    gateway.Gateway
		h    = &regFile{busyFor: 2}
		regs gateway.Registers
	)
	regs.Cmd = gateway.Command{Addr: 3, Write: true, Go: true}
	regs.Data = 42

	g.Step(h, &regs)
	g.Step(h, &regs)
	assert.False(t, regs.Done, "busy must not complete the command")
	g.Step(h, &regs)
	require.True(t, regs.Done)
	assert.Equal(t, gateway.Done, regs.Result)
	assert.Equal(t, int32(42), h.regs[3])

	// The command is not processed again while go stays high.
	h.regs[3] = 0
	g.Step(h, &regs)
	assert.Equal(t, int32(0), h.regs[3])
	assert.True(t, regs.Done)

	regs.Cmd.Go = false
	g.Step(h, &regs)
	assert.False(t, regs.Done)

	regs.Cmd = gateway.Command{Addr: 20, Go: true}
	g.Step(h, &regs)
	assert.True(t, regs.Done)
	assert.Equal(t, gateway.Fail, regs.Result)
	assert.Equal(t, int32(-1), regs.Data)
	assert.Equal(t, 6, h.updates)
}

func TestResultString(t *testing.T) {
	assert.Equal(t, "FAIL", gateway.Fail.String())
	assert.Equal(t, "BUSY", gateway.Busy.String())
	assert.Equal(t, "Result(7)", gateway.Result(7).String())
}

// driver steps the gateway from a separate goroutine the same way the engine
// does.
func driver(t *testing.T, h gateway.Handler, mu *sync.Mutex,
	regs *gateway.Registers) func() {

	done := make(chan struct{})
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		var g gateway.Gateway
		for {
			select {
			case <-done:
				return
			default:
			}
			mu.Lock()
			g.Step(h, regs)
			mu.Unlock()
			time.Sleep(10 * time.Microsecond)
		}
	}()
	return func() {
		close(done)
		<-stopped
	}
}

func TestClient(t *testing.T) {
	defer goleak.VerifyNone(t)

	var (
		mu   sync.Mutex
		regs gateway.Registers
		h    = &regFile{busyFor: 3}
	)
	stop := driver(t, h, &mu, &regs)
	defer stop()

	c := &gateway.Client{Locker: &mu, Regs: &regs, PollInterval: 20 * time.Microsecond}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, c.Write(ctx, 7, 1234))
	v, err := c.Read(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, int32(1234), v)

	_, err = c.Read(ctx, 40)
	assert.ErrorIs(t, err, gateway.ErrFailed)
	assert.ErrorIs(t, c.Write(ctx, 40, 1), gateway.ErrFailed)
	_, err = c.Read(ctx, gateway.MaxAddr+1)
	assert.ErrorIs(t, err, gateway.ErrAddress)

	// A command issued after a failed one still works.
	v, err = c.Read(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, int32(1234), v)
}

func TestClientConcurrentCommandIsBusy(t *testing.T) {
	var (
		mu   sync.Mutex
		regs gateway.Registers
	)
	// Nothing steps the gateway, so the first command never completes.
	c := &gateway.Client{Locker: &mu, Regs: &regs, PollInterval: time.Millisecond}
	ctx, cancel := context.WithCancel(context.Background())
	errC := make(chan error, 1)
	go func() {
		errC <- c.Write(ctx, 1, 1)
	}()
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return regs.Cmd.Go
	}, time.Second, time.Millisecond)

	assert.ErrorIs(t, c.Write(context.Background(), 2, 2), gateway.ErrBusy)
	cancel()
	assert.ErrorIs(t, <-errC, context.Canceled)
	mu.Lock()
	assert.False(t, regs.Cmd.Go)
	mu.Unlock()
}
