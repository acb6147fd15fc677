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

// Package cache contains fixed capacity associative tables used by ikernels
// for their lookups. The tables never grow and never allocate after
// construction.
//
// Cache resolves collisions with linear probing and repairs probe chains on
// erase by shifting entries backwards. DirectCache keeps a single entry per
// slot and lets a colliding insert evict the previous occupant.
package cache

import "fmt"

type slot[K comparable, V any] struct {
	key   K
	value V
	valid bool
}

// Cache is an open addressing hash table with linear probing.
//
// Insert does not look for an existing entry with the same key: inserting a
// key twice occupies two slots and Find returns the one met first on the
// probe sequence. Callers that need replace semantics erase first.
type Cache[K comparable, V any] struct {
	slots []slot[K, V]
	hash  Hasher[K]
	len   int
}

// New returns a cache with the given number of slots.
func New[K comparable, V any](capacity int, hash Hasher[K]) *Cache[K, V] {
	if capacity <= 0 {
		panic(fmt.Sprintf("invalid cache capacity %d", capacity))
	}
	return &Cache[K, V]{
		slots: make([]slot[K, V], capacity),
		hash:  hash,
	}
}

func (c *Cache[K, V]) home(k K) int {
	return int(c.hash(k) % uint64(len(c.slots)))
}

// Insert stores the pair in the first free slot of the probe sequence of k.
// It returns false if every slot is occupied.
func (c *Cache[K, V]) Insert(k K, v V) bool {
	i := c.home(k)
	for range c.slots {
		if !c.slots[i].valid {
			c.slots[i] = slot[K, V]{key: k, value: v, valid: true}
			c.len++
			return true
		}
		i = c.next(i)
	}
	return false
}

// Find returns the value of the first entry for k on its probe sequence.
func (c *Cache[K, V]) Find(k K) (V, bool) {
	if i, ok := c.lookup(k); ok {
		return c.slots[i].value, true
	}
	var zero V
	return zero, false
}

// Erase removes the first entry for k and moves later entries of the probe
// chain back so that they stay reachable. It returns false if k is absent.
func (c *Cache[K, V]) Erase(k K) bool {
	hole, ok := c.lookup(k)
	if !ok {
		return false
	}
	c.slots[hole] = slot[K, V]{}
	c.len--

	n := len(c.slots)
	for j, steps := c.next(hole), 1; steps < n; j, steps = c.next(j), steps+1 {
		if !c.slots[j].valid {
			break
		}
		// The entry at j may fill the hole if the hole lies on its probe
		// path, i.e. between its home slot and j.
		home := c.home(c.slots[j].key)
		if (j-home+n)%n >= (j-hole+n)%n {
			c.slots[hole] = c.slots[j]
			c.slots[j] = slot[K, V]{}
			hole = j
		}
	}
	return true
}

// Len returns the number of occupied slots.
func (c *Cache[K, V]) Len() int { return c.len }

// Cap returns the number of slots.
func (c *Cache[K, V]) Cap() int { return len(c.slots) }

func (c *Cache[K, V]) lookup(k K) (int, bool) {
	i := c.home(k)
	for range c.slots {
		s := &c.slots[i]
		if !s.valid {
			return 0, false
		}
		if s.key == k {
			return i, true
		}
		i = c.next(i)
	}
	return 0, false
}

func (c *Cache[K, V]) next(i int) int {
	i++
	if i == len(c.slots) {
		return 0
	}
	return i
}

// DirectCache is a direct mapped table: every key has exactly one slot.
type DirectCache[K comparable, V any] struct {
	slots []slot[K, V]
	hash  Hasher[K]
}

// NewDirect returns a direct mapped cache with the given number of slots.
func NewDirect[K comparable, V any](capacity int, hash Hasher[K]) *DirectCache[K, V] {
	if capacity <= 0 {
		panic(fmt.Sprintf("invalid cache capacity %d", capacity))
	}
	return &DirectCache[K, V]{
		slots: make([]slot[K, V], capacity),
		hash:  hash,
	}
}

func (c *DirectCache[K, V]) index(k K) int {
	return int(c.hash(k) % uint64(len(c.slots)))
}

// Insert overwrites the slot of k.
func (c *DirectCache[K, V]) Insert(k K, v V) {
	c.slots[c.index(k)] = slot[K, V]{key: k, value: v, valid: true}
}

// Erase invalidates the slot of k, whichever key occupies it.
func (c *DirectCache[K, V]) Erase(k K) {
	c.slots[c.index(k)].valid = false
}

// Find returns the value stored for k if the slot of k holds k.
func (c *DirectCache[K, V]) Find(k K) (V, bool) {
	s := &c.slots[c.index(k)]
	if !s.valid || s.key != k {
		var zero V
		return zero, false
	}
	return s.value, true
}

// Len returns the number of valid slots.
func (c *DirectCache[K, V]) Len() int {
	n := 0
	for i := range c.slots {
		if c.slots[i].valid {
			n++
		}
	}
	return n
}

// Cap returns the number of slots.
func (c *DirectCache[K, V]) Cap() int { return len(c.slots) }
