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

package gateway

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nicaproject/nica/pkg/private/serrors"
)

var (
	// ErrBusy is returned when a command is issued while another one is
	// still outstanding on the same register block.
	ErrBusy = errors.New("gateway busy")
	// ErrFailed is returned when the component rejected the command.
	ErrFailed = errors.New("register access failed")
	// ErrAddress is returned for addresses that do not fit a command.
	ErrAddress = errors.New("address out of range")
)

// DefaultPollInterval is used by a Client without PollInterval.
const DefaultPollInterval = 100 * time.Microsecond

// Client is the host side of the handshake. The registers are shared with
// the goroutine that steps the component; every access to them happens while
// holding Locker.
type Client struct {
	Locker       sync.Locker
	Regs         *Registers
	PollInterval time.Duration

	inflight atomic.Bool
}

// Read reads the register at addr.
func (c *Client) Read(ctx context.Context, addr uint32) (int32, error) {
	return c.do(ctx, addr, false, 0)
}

// Write writes value to the register at addr.
func (c *Client) Write(ctx context.Context, addr uint32, value int32) error {
	_, err := c.do(ctx, addr, true, value)
	return err
}

func (c *Client) do(ctx context.Context, addr uint32, write bool, value int32) (int32, error) {
	if addr > MaxAddr {
		return 0, serrors.JoinNoStack(ErrAddress, nil, "addr", addr)
	}
	if !c.inflight.CompareAndSwap(false, true) {
		return 0, ErrBusy
	}
	defer c.inflight.Store(false)

	// The previous command may still be acknowledged by the component.
	if err := c.waitFor(ctx, func(r *Registers) bool { return !r.Done }); err != nil {
		return 0, err
	}
	c.Locker.Lock()
	c.Regs.Cmd = Command{Addr: addr, Write: write, Go: true}
	if write {
		c.Regs.Data = value
	}
	c.Locker.Unlock()

	var (
		data int32
		res  Result
	)
	err := c.waitFor(ctx, func(r *Registers) bool {
		if !r.Done {
			return false
		}
		data, res = r.Data, r.Result
		return true
	})
	c.Locker.Lock()
	c.Regs.Cmd.Go = false
	c.Locker.Unlock()
	if err != nil {
		return 0, err
	}
	if res == Fail {
		return 0, serrors.JoinNoStack(ErrFailed, nil, "addr", addr, "write", write)
	}
	return data, nil
}

func (c *Client) waitFor(ctx context.Context, cond func(*Registers) bool) error {
	interval := c.PollInterval
	if interval == 0 {
		interval = DefaultPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		c.Locker.Lock()
		ok := cond(c.Regs)
		c.Locker.Unlock()
		if ok {
			return nil
		}
		select {
		case <-ctx.Done():
			return serrors.Wrap("waiting for register gateway", ctx.Err())
		case <-ticker.C:
		}
	}
}
