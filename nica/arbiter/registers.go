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

import (
	"github.com/nicaproject/nica/pkg/gateway"
	"github.com/nicaproject/nica/pkg/stream"
)

// Register layout. Bucket fields of port p live at p*RegPortStride + field.
// The global registers overlay fields 3 and 4 of port 0.
const (
	RegBucketPeriod        = 0x0
	RegBucketTokens        = 0x1
	RegBucketLogSaturation = 0x2
	RegQuota               = 0x3
	RegIdleTimeout         = 0x4
	RegPortStride          = 0x10

	maxLog         = 30
	maxIdleTimeout = 255
)

// PortAddr returns the register address of a bucket field of port.
func PortAddr(port int, field uint32) uint32 {
	return uint32(port)*RegPortStride + field
}

type bucketUpdate struct {
	port  int
	field uint32
	value int
}

// registers holds the host visible configuration. Writes are staged in
// one-deep queues and applied by the transmit side at the end of a tick; a
// write while the previous one is still staged is answered with Busy.
// Reads return the last value written.
type registers struct {
	a *Arbiter

	logQuota    uint8
	idleTimeout int
	buckets     []Bucket

	quotaUpdates  *stream.Fifo[uint8]
	idleUpdates   *stream.Fifo[int]
	bucketUpdates *stream.Fifo[bucketUpdate]
}

func newRegisters(a *Arbiter) registers {
	r := registers{
		a:             a,
		logQuota:      a.logQuota,
		idleTimeout:   a.idleTimeout,
		buckets:       make([]Bucket, len(a.buckets)),
		quotaUpdates:  stream.New[uint8](1),
		idleUpdates:   stream.New[int](1),
		bucketUpdates: stream.New[bucketUpdate](1),
	}
	copy(r.buckets, a.buckets)
	return r
}

func (r *registers) apply() {
	if v, ok := r.quotaUpdates.TryRead(); ok {
		r.a.logQuota = v
	}
	if v, ok := r.idleUpdates.TryRead(); ok {
		r.a.idleTimeout = v
	}
	if u, ok := r.bucketUpdates.TryRead(); ok {
		b := &r.a.buckets[u.port]
		switch u.field {
		case RegBucketPeriod:
			b.LogPeriod = uint8(u.value)
		case RegBucketTokens:
			b.TokensPerRound = u.value
		case RegBucketLogSaturation:
			b.LogSaturation = uint8(u.value)
		}
	}
}

func (r *registers) decode(addr uint32) (int, uint32, bool) {
	port := int(addr / RegPortStride)
	field := addr & (RegPortStride - 1)
	if port >= len(r.buckets) || field > RegBucketLogSaturation {
		return 0, 0, false
	}
	return port, field, true
}

// RegRead implements gateway.Handler.
func (a *Arbiter) RegRead(addr uint32) (int32, gateway.Result) {
	r := &a.regs
	switch addr {
	case RegQuota:
		return int32(r.logQuota), gateway.Done
	case RegIdleTimeout:
		return int32(r.idleTimeout), gateway.Done
	}
	port, field, ok := r.decode(addr)
	if !ok {
		return -1, gateway.Fail
	}
	b := &r.buckets[port]
	switch field {
	case RegBucketPeriod:
		return int32(b.LogPeriod), gateway.Done
	case RegBucketTokens:
		return int32(b.TokensPerRound), gateway.Done
	default:
		return int32(b.LogSaturation), gateway.Done
	}
}

// RegWrite implements gateway.Handler.
func (a *Arbiter) RegWrite(addr uint32, value int32) gateway.Result {
	r := &a.regs
	switch addr {
	case RegQuota:
		if value < 0 || value > maxLog {
			return gateway.Fail
		}
		if r.quotaUpdates.Full() {
			return gateway.Busy
		}
		r.logQuota = uint8(value)
		r.quotaUpdates.Write(uint8(value))
		return gateway.Done
	case RegIdleTimeout:
		if value <= 0 || value > maxIdleTimeout {
			return gateway.Fail
		}
		if r.idleUpdates.Full() {
			return gateway.Busy
		}
		r.idleTimeout = int(value)
		r.idleUpdates.Write(int(value))
		return gateway.Done
	}

	port, field, ok := r.decode(addr)
	if !ok {
		return gateway.Fail
	}
	switch field {
	case RegBucketPeriod, RegBucketLogSaturation:
		if value < 0 || value > maxLog {
			return gateway.Fail
		}
	case RegBucketTokens:
		if value < 0 {
			return gateway.Fail
		}
	}
	if r.bucketUpdates.Full() {
		return gateway.Busy
	}
	b := &r.buckets[port]
	switch field {
	case RegBucketPeriod:
		b.LogPeriod = uint8(value)
	case RegBucketTokens:
		b.TokensPerRound = int(value)
	case RegBucketLogSaturation:
		b.LogSaturation = uint8(value)
	}
	r.bucketUpdates.Write(bucketUpdate{port: port, field: field, value: int(value)})
	return gateway.Done
}

// SetQuota sets the log2 of the grant quota in bytes without going through
// the register queues. It is meant for initial configuration.
func (a *Arbiter) SetQuota(logQuota uint8) {
	a.logQuota = logQuota
	a.regs.logQuota = logQuota
}

// SetIdleTimeout sets the idle timeout in ticks without going through the
// register queues.
func (a *Arbiter) SetIdleTimeout(ticks int) {
	a.idleTimeout = ticks
	a.regs.idleTimeout = ticks
}

// SetBucket overwrites the bucket parameters of port without going through
// the register queues. The current balance is kept.
func (a *Arbiter) SetBucket(port int, tokensPerRound int, logPeriod, logSaturation uint8) {
	for _, b := range []*Bucket{&a.buckets[port], &a.regs.buckets[port]} {
		b.TokensPerRound = tokensPerRound
		b.LogPeriod = logPeriod
		b.LogSaturation = logSaturation
	}
}
