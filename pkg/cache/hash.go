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

package cache

import (
	"github.com/cespare/xxhash/v2"
)

// Hasher maps a key to a hash value. A cache instance uses the same Hasher
// for every operation.
type Hasher[K any] func(K) uint64

const (
	fnv1aOffset32 uint32 = 2166136261
	djb2Seed      uint64 = 5381
)

func hashFNV1a(state uint32, c byte) uint32 {
	const prime32 = 16777619
	return (state ^ uint32(c)) * prime32
}

// FNV1a is the 32 bit FNV-1a hash of b.
func FNV1a(b []byte) uint64 {
	s := fnv1aOffset32
	for _, c := range b {
		s = hashFNV1a(s, c)
	}
	return uint64(s)
}

// DJB2 is the Bernstein hash of b. The first and second half of the key
// are folded in two rounds, the second round continuing from the state of
// the first one.
func DJB2(b []byte) uint64 {
	half := len(b) / 2
	return djb2(djb2(djb2Seed, b[:half]), b[half:])
}

func djb2(seed uint64, b []byte) uint64 {
	for _, c := range b {
		seed = (seed << 5) + seed + uint64(int8(c))
	}
	return seed
}

// XXHash is the 64 bit xxHash of b.
func XXHash(b []byte) uint64 {
	return xxhash.Sum64(b)
}
