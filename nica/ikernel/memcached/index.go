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

package memcached

import (
	"github.com/nicaproject/nica/pkg/cache"
)

// Key and value sizes in bytes. Keys and values of other sizes are not
// recognized.
const (
	KeySize   = 10
	ValueSize = 10
)

// DefaultCacheSize is the number of index entries.
const DefaultCacheSize = 4096

// Key is a memcached key.
type Key [KeySize]byte

// Value is a memcached value.
type Value [ValueSize]byte

// Index stores the values seen in responses.
type Index interface {
	// Insert stores v under k, replacing a previous value of k. It may
	// evict other keys.
	Insert(k Key, v Value)
	Erase(k Key)
	Find(k Key) (Value, bool)
	Len() int
}

// IndexOption configures an index.
type IndexOption func(*indexOptions)

type indexOptions struct {
	hash func([]byte) uint64
}

// WithHash sets the hash applied to the key bytes. The direct index defaults
// to cache.DJB2, the probing index to cache.XXHash.
func WithHash(hash func([]byte) uint64) IndexOption {
	return func(o *indexOptions) { o.hash = hash }
}

func keyHasher(def func([]byte) uint64, opts []IndexOption) cache.Hasher[Key] {
	o := indexOptions{hash: def}
	for _, opt := range opts {
		opt(&o)
	}
	return func(k Key) uint64 { return o.hash(k[:]) }
}

type directIndex struct {
	*cache.DirectCache[Key, Value]
}

// NewDirectIndex returns a direct mapped index. A key evicts whatever key
// shares its slot.
func NewDirectIndex(size int, opts ...IndexOption) Index {
	return directIndex{cache.NewDirect[Key, Value](size, keyHasher(cache.DJB2, opts))}
}

type probingIndex struct {
	c *cache.Cache[Key, Value]
}

// NewProbingIndex returns an index based on open addressing. Inserts into a
// full index are dropped.
func NewProbingIndex(size int, opts ...IndexOption) Index {
	return probingIndex{c: cache.New[Key, Value](size, keyHasher(cache.XXHash, opts))}
}

func (i probingIndex) Insert(k Key, v Value) {
	i.c.Erase(k)
	i.c.Insert(k, v)
}

func (i probingIndex) Erase(k Key) { i.c.Erase(k) }

func (i probingIndex) Find(k Key) (Value, bool) { return i.c.Find(k) }

func (i probingIndex) Len() int { return i.c.Len() }
