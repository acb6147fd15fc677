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

package stream

import "math/bits"

// WordSize is the number of bytes carried by one data word.
const WordSize = 32

// Word is one beat of a packet stream. Bit i of Keep marks Data[i] as valid;
// only the last word of a packet may be partially filled.
type Word struct {
	Data [WordSize]byte
	Keep uint32
	Last bool
	// ID and User are opaque tags carried along with the packet and reported
	// by the arbiter statistics.
	ID   uint8
	User uint16
}

// KeepMask returns the keep mask for a word holding n bytes.
func KeepMask(n int) uint32 {
	if n >= WordSize {
		return ^uint32(0)
	}
	return uint32(1)<<n - 1
}

// Len returns the number of valid bytes of the word.
func (w Word) Len() int {
	return bits.OnesCount32(w.Keep)
}

// Bytes returns the valid bytes of the word.
func (w *Word) Bytes() []byte {
	return w.Data[:w.Len()]
}

// Packetize splits b into words. The last word is marked; an empty packet is
// a single word without valid bytes.
func Packetize(b []byte, id uint8, user uint16) []Word {
	n := (len(b) + WordSize - 1) / WordSize
	if n == 0 {
		n = 1
	}
	words := make([]Word, n)
	for i := range words {
		chunk := b[min(i*WordSize, len(b)):min((i+1)*WordSize, len(b))]
		copy(words[i].Data[:], chunk)
		words[i].Keep = KeepMask(len(chunk))
		words[i].ID = id
		words[i].User = user
	}
	words[n-1].Last = true
	return words
}

// AppendBytes appends the valid bytes of words to dst.
func AppendBytes(dst []byte, words ...Word) []byte {
	for i := range words {
		dst = append(dst, words[i].Bytes()...)
	}
	return dst
}
