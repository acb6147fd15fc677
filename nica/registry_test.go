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

package nica_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nicaproject/nica/nica"
	"github.com/nicaproject/nica/nica/arbiter"
	"github.com/nicaproject/nica/nica/config"
	"github.com/nicaproject/nica/nica/flowtable"
	"github.com/nicaproject/nica/nica/ikernel/echo"
	"github.com/nicaproject/nica/nica/ikernel/memcached"
	"github.com/nicaproject/nica/nica/ikernel/passthrough"
	"github.com/nicaproject/nica/nica/ikernel/pktgen"
	"github.com/nicaproject/nica/nica/ikernel/threshold"
	"github.com/nicaproject/nica/pkg/log/testlog"
)

func TestNewIkernel(t *testing.T) {
	testCases := map[string]struct {
		Config    config.IkernelConfig
		Check     func(t *testing.T, ik nica.Ikernel)
		Assertion assert.ErrorAssertionFunc
	}{
		"passthrough": {
			Config: config.IkernelConfig{Kind: config.KindPassthrough},
			Check: func(t *testing.T, ik nica.Ikernel) {
				assert.IsType(t, &passthrough.Ikernel{}, ik.Ikernel)
			},
			Assertion: assert.NoError,
		},
		"threshold": {
			Config: config.IkernelConfig{Kind: config.KindThreshold, Threshold: 10},
			Check: func(t *testing.T, ik nica.Ikernel) {
				assert.IsType(t, &threshold.Ikernel{}, ik.Ikernel)
			},
			Assertion: assert.NoError,
		},
		"echo": {
			Config: config.IkernelConfig{Kind: config.KindEcho},
			Check: func(t *testing.T, ik nica.Ikernel) {
				assert.Equal(t, echo.ID, ik.Ikernel.UUID())
			},
			Assertion: assert.NoError,
		},
		"pktgen": {
			Config: config.IkernelConfig{Kind: config.KindPktgen, BurstSize: 4},
			Check: func(t *testing.T, ik nica.Ikernel) {
				assert.IsType(t, &pktgen.Ikernel{}, ik.Ikernel)
			},
			Assertion: assert.NoError,
		},
		"memcached probing": {
			Config: config.IkernelConfig{
				Kind:      config.KindMemcached,
				Index:     config.IndexProbing,
				CacheSize: 64,
			},
			Check: func(t *testing.T, ik nica.Ikernel) {
				assert.IsType(t, &memcached.Ikernel{}, ik.Ikernel)
				assert.Equal(t, config.KindMemcached, ik.Kind)
			},
			Assertion: assert.NoError,
		},
		"memcached unknown index": {
			Config:    config.IkernelConfig{Kind: config.KindMemcached, Index: "btree"},
			Assertion: assert.Error,
		},
		"unknown": {
			Config:    config.IkernelConfig{Kind: "firewall"},
			Assertion: assert.Error,
		},
	}
	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			ik, err := nica.NewIkernel(tc.Config)
			tc.Assertion(t, err)
			if err != nil {
				return
			}
			tc.Check(t, ik)
		})
	}
}

func TestNewFromConfig(t *testing.T) {
	cfg := &config.Config{
		Ikernels: []config.IkernelConfig{
			{Kind: config.KindPassthrough},
			{Kind: config.KindEcho},
		},
		Arbiter: config.ArbiterConfig{
			LogQuota:    10,
			IdleTimeout: 8,
			Ports: []config.ArbiterPortConfig{
				{Port: 4, TokensPerRound: 64, LogPeriod: 2, LogSaturation: 10},
			},
		},
		FlowTable: config.FlowTableConfig{
			Fields: []string{"dst_port"},
			Entries: []config.FlowEntryConfig{
				{Index: 0, DstPort: 7, Action: "ikernel", Ikernel: 1},
				{Direction: "h2n", Index: 2, DstPort: 9, Action: "drop"},
			},
		},
	}
	cfg.General.ID = "nica-test"
	cfg.InitDefaults()
	require.NoError(t, cfg.Validate())

	e, err := nica.NewFromConfig(cfg, testlog.NewLogger(t))
	require.NoError(t, err)

	n2h := e.Pipeline(nica.NetToHost)
	assert.Equal(t, flowtable.FieldDstPort, n2h.FlowTable().Fields())
	entry, err := n2h.FlowTable().Entry(0)
	require.NoError(t, err)
	assert.Equal(t, flowtable.Entry{
		Key:     flowtable.Flow{DstPort: 7},
		Action:  flowtable.ToIkernel,
		Ikernel: 1,
	}, entry)
	assert.Equal(t, 6, n2h.FlowTable().Size())

	h2n := e.Pipeline(nica.HostToNet)
	entry, err = h2n.FlowTable().Entry(2)
	require.NoError(t, err)
	assert.Equal(t, flowtable.Drop, entry.Action)
	entry, err = h2n.FlowTable().Entry(0)
	require.NoError(t, err)
	assert.Equal(t, flowtable.Entry{}, entry)

	for _, p := range []*nica.Pipeline{n2h, h2n} {
		assert.Equal(t, 5, p.Arbiter().NumPorts())
		assert.Equal(t, arbiter.Bucket{TokensPerRound: 64, LogPeriod: 2, LogSaturation: 10},
			p.Arbiter().Bucket(4))
		assert.Equal(t, arbiter.DefaultTokensPerRound, p.Arbiter().Bucket(0).TokensPerRound)
	}
	require.Len(t, e.Ikernels(), 2)
	assert.Equal(t, config.KindEcho, e.Ikernels()[1].Kind)
}

func TestNewFromConfigTooManyIkernels(t *testing.T) {
	cfg := &config.Config{
		Ikernels: make([]config.IkernelConfig, nica.MaxIkernels+1),
	}
	for i := range cfg.Ikernels {
		cfg.Ikernels[i].Kind = config.KindPassthrough
	}
	cfg.InitDefaults()

	var err error
	assert.NotPanics(t, func() {
		_, err = nica.NewFromConfig(cfg, testlog.NewLogger(t))
	})
	assert.ErrorContains(t, err, "too many ikernels")
}
