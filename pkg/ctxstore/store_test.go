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

package ctxstore_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nicaproject/nica/pkg/ctxstore"
)

type ringContext struct {
	QPN uint32
	PSN uint32
}

func TestDirectAccess(t *testing.T) {
	s := ctxstore.New[ringContext](2)
	assert.Equal(t, 4, s.Size())
	s.At(1).QPN = 7
	assert.Equal(t, uint32(7), s.At(1).QPN)
	// Indices wrap at the table width.
	assert.Equal(t, uint32(7), s.At(5).QPN)
}

func TestGatewaySet(t *testing.T) {
	s := ctxstore.New[ringContext](3)
	s.GatewayContext = ringContext{QPN: 11, PSN: 3}
	require.True(t, s.GatewaySet(2))
	assert.Equal(t, ringContext{}, *s.At(2), "set applies on update")
	s.Update()
	assert.Equal(t, ringContext{QPN: 11, PSN: 3}, *s.At(2))

	require.True(t, s.GatewaySet(0))
	require.True(t, s.GatewaySet(1))
	assert.False(t, s.GatewaySet(3), "queue full")
	s.Update()
	s.Update()
	assert.Equal(t, ringContext{QPN: 11, PSN: 3}, *s.At(1))
}

func TestGatewayQuery(t *testing.T) {
	s := ctxstore.New[ringContext](3)
	*s.At(4) = ringContext{QPN: 99, PSN: 5}

	assert.False(t, s.GatewayQuery(4), "first call issues the query")
	assert.False(t, s.GatewayQuery(4), "no response before update")
	s.Update()
	require.True(t, s.GatewayQuery(4))
	assert.Equal(t, ringContext{QPN: 99, PSN: 5}, s.GatewayContext)

	// The next query starts over.
	*s.At(4) = ringContext{QPN: 100}
	assert.False(t, s.GatewayQuery(4))
	s.Update()
	require.True(t, s.GatewayQuery(4))
	assert.Equal(t, uint32(100), s.GatewayContext.QPN)
}
