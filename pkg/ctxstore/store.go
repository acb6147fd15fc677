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

// Package ctxstore implements an indexed table of per ring (or per flow)
// contexts. The data path accesses entries directly, while register accesses
// from the host go through a small request queue that is drained by Update
// once per tick, so a host query may take several ticks to complete.
package ctxstore

import (
	"github.com/nicaproject/nica/pkg/stream"
)

type setRequest[T any] struct {
	index   uint32
	context T
}

// Store is a table of 2^logSize contexts.
//
// Only one query may be outstanding; calling GatewayQuery with a different
// index while a query is in flight returns the context of the first index.
type Store[T any] struct {
	// GatewayContext is the staging area for host accesses: GatewaySet
	// copies it into the table, a completed GatewayQuery fills it.
	GatewayContext T

	contexts  []T
	mask      uint32
	querySent bool

	updates   *stream.Fifo[setRequest[T]]
	queries   *stream.Fifo[uint32]
	responses *stream.Fifo[T]
}

// New returns a store with 2^logSize zeroed contexts.
func New[T any](logSize uint8) *Store[T] {
	size := uint32(1) << logSize
	return &Store[T]{
		contexts:  make([]T, size),
		mask:      size - 1,
		updates:   stream.New[setRequest[T]](2),
		queries:   stream.New[uint32](1),
		responses: stream.New[T](1),
	}
}

// Size returns the number of contexts.
func (s *Store[T]) Size() int { return len(s.contexts) }

// At returns the context at index. Only the low logSize bits of the index
// are used.
func (s *Store[T]) At(index uint32) *T {
	return &s.contexts[index&s.mask]
}

// GatewaySet schedules writing GatewayContext to index. It returns false if
// the request queue is full.
func (s *Store[T]) GatewaySet(index uint32) bool {
	return s.updates.TryWrite(setRequest[T]{index: index & s.mask, context: s.GatewayContext})
}

// GatewayQuery reads the context at index into GatewayContext. The first
// call issues the query and returns false; later calls return false until
// the response arrived and then return true.
func (s *Store[T]) GatewayQuery(index uint32) bool {
	if !s.querySent {
		if !s.queries.TryWrite(index & s.mask) {
			return false
		}
		s.querySent = true
		return false
	}
	resp, ok := s.responses.TryRead()
	if !ok {
		return false
	}
	s.GatewayContext = resp
	s.querySent = false
	return true
}

// Update applies one pending set and answers one pending query.
func (s *Store[T]) Update() {
	if req, ok := s.updates.TryRead(); ok {
		s.contexts[req.index] = req.context
	}
	if !s.queries.Empty() && !s.responses.Full() {
		s.responses.Write(s.contexts[s.queries.Read()])
	}
}
