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

// Package stream contains the bounded queues that connect the stages of the
// data path. Queues never block: a stage checks Empty or Full before it
// touches a queue and defers its work to the next tick otherwise.
package stream

import "fmt"

// Fifo is a bounded first-in first-out queue backed by a ring buffer that is
// allocated once. It is not safe for concurrent use.
type Fifo[T any] struct {
	entries []T
	head    int
	len     int
}

// New returns a FIFO that holds at most depth entries.
func New[T any](depth int) *Fifo[T] {
	if depth <= 0 {
		panic(fmt.Sprintf("invalid fifo depth %d", depth))
	}
	return &Fifo[T]{entries: make([]T, depth)}
}

// Len returns the number of queued entries.
func (f *Fifo[T]) Len() int { return f.len }

// Cap returns the depth of the FIFO.
func (f *Fifo[T]) Cap() int { return len(f.entries) }

// Empty reports whether a Read would fail.
func (f *Fifo[T]) Empty() bool { return f.len == 0 }

// Full reports whether a Write would fail.
func (f *Fifo[T]) Full() bool { return f.len == len(f.entries) }

// Read removes and returns the oldest entry. Reading an empty FIFO is a
// programming error and panics.
func (f *Fifo[T]) Read() T {
	v, ok := f.TryRead()
	if !ok {
		panic("read from empty fifo")
	}
	return v
}

// TryRead removes and returns the oldest entry if there is one.
func (f *Fifo[T]) TryRead() (T, bool) {
	var zero T
	if f.len == 0 {
		return zero, false
	}
	v := f.entries[f.head]
	f.entries[f.head] = zero
	f.head = (f.head + 1) % len(f.entries)
	f.len--
	return v, true
}

// Peek returns the oldest entry without removing it.
func (f *Fifo[T]) Peek() (T, bool) {
	if f.len == 0 {
		var zero T
		return zero, false
	}
	return f.entries[f.head], true
}

// Write appends v. Writing to a full FIFO is a programming error and panics.
func (f *Fifo[T]) Write(v T) {
	if !f.TryWrite(v) {
		panic("write to full fifo")
	}
}

// TryWrite appends v if there is room.
func (f *Fifo[T]) TryWrite(v T) bool {
	if f.len == len(f.entries) {
		return false
	}
	f.entries[(f.head+f.len)%len(f.entries)] = v
	f.len++
	return true
}

// Reset drops all queued entries.
func (f *Fifo[T]) Reset() {
	clear(f.entries)
	f.head, f.len = 0, 0
}

// Queue is the subset of queue operations shared by Fifo and Programmable.
type Queue[T any] interface {
	Empty() bool
	Full() bool
	Read() T
	Write(T)
}

// Programmable is a FIFO whose full and empty indications are raised early:
// it reports full once fullThreshold entries are queued and, when
// emptyThreshold is non-zero, empty while at most emptyThreshold entries are
// queued. Producers that need several slots for one unit of work use it to
// reserve room ahead of time.
type Programmable[T any] struct {
	Fifo[T]
	fullThreshold  int
	emptyThreshold int
}

// NewProgrammable returns a programmable FIFO. Thresholds outside
// [0, depth] are clamped.
func NewProgrammable[T any](depth, fullThreshold, emptyThreshold int) *Programmable[T] {
	f := New[T](depth)
	return &Programmable[T]{
		Fifo:           *f,
		fullThreshold:  clamp(fullThreshold, 1, depth),
		emptyThreshold: clamp(emptyThreshold, 0, depth),
	}
}

// Full reports whether at least fullThreshold entries are queued.
func (p *Programmable[T]) Full() bool {
	return p.len >= p.fullThreshold
}

// Empty reports whether the queue is below its empty threshold.
func (p *Programmable[T]) Empty() bool {
	if p.emptyThreshold == 0 {
		return p.len == 0
	}
	return p.len <= p.emptyThreshold
}

func clamp(v, lo, hi int) int {
	return min(max(v, lo), hi)
}
