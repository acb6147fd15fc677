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

// Bucket defaults. With one refill per tick and 128 tokens per round rate
// limiting is effectively off; the saturation allows a 4096 byte burst.
const (
	DefaultTokensPerRound = 128
	DefaultLogPeriod      = 0
	DefaultLogSaturation  = 12
)

// Bucket is the token bucket of one input port. One token is one byte.
type Bucket struct {
	// Tokens is the current balance. It goes negative when a port is
	// charged for more than it had.
	Tokens         int
	TokensPerRound int
	// LogPeriod is the log2 of the number of ticks between refills.
	LogPeriod uint8
	// LogSaturation is the log2 of the balance cap.
	LogSaturation uint8
}

func newBucket() Bucket {
	return Bucket{
		TokensPerRound: DefaultTokensPerRound,
		LogPeriod:      DefaultLogPeriod,
		LogSaturation:  DefaultLogSaturation,
	}
}

func (b *Bucket) refillDue(cycle uint32) bool {
	return cycle&(uint32(1)<<b.LogPeriod-1) == 0
}

func (b *Bucket) addTokens() {
	b.Tokens = min(b.Tokens+b.TokensPerRound, 1<<b.LogSaturation)
}

func (b *Bucket) charge(tokens, floor int) {
	b.Tokens = max(b.Tokens-tokens, floor)
}
