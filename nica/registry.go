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

package nica

import (
	"github.com/nicaproject/nica/nica/config"
	"github.com/nicaproject/nica/nica/ikernel/echo"
	"github.com/nicaproject/nica/nica/ikernel/memcached"
	"github.com/nicaproject/nica/nica/ikernel/passthrough"
	"github.com/nicaproject/nica/nica/ikernel/pktgen"
	"github.com/nicaproject/nica/nica/ikernel/threshold"
	"github.com/nicaproject/nica/pkg/cache"
	"github.com/nicaproject/nica/pkg/log"
	"github.com/nicaproject/nica/pkg/private/serrors"
)

// NewIkernel constructs the ikernel described by cfg.
func NewIkernel(cfg config.IkernelConfig) (Ikernel, error) {
	ik := Ikernel{Kind: cfg.Kind}
	switch cfg.Kind {
	case config.KindPassthrough:
		ik.Ikernel = passthrough.New()
	case config.KindThreshold:
		ik.Ikernel = threshold.New(cfg.Threshold)
	case config.KindEcho:
		ik.Ikernel = echo.New(cfg.RespondToSockperf)
	case config.KindPktgen:
		ik.Ikernel = pktgen.New(cfg.BurstSize)
	case config.KindMemcached:
		var opts []memcached.IndexOption
		switch cfg.Hash {
		case "":
		case config.HashDJB2:
			opts = append(opts, memcached.WithHash(cache.DJB2))
		case config.HashFNV1a:
			opts = append(opts, memcached.WithHash(cache.FNV1a))
		case config.HashXXHash:
			opts = append(opts, memcached.WithHash(cache.XXHash))
		default:
			return Ikernel{}, serrors.New("unknown memcached hash", "hash", cfg.Hash)
		}
		switch cfg.Index {
		case config.IndexDirect:
			ik.Ikernel = memcached.New(memcached.NewDirectIndex(cfg.CacheSize, opts...))
		case config.IndexProbing:
			ik.Ikernel = memcached.New(memcached.NewProbingIndex(cfg.CacheSize, opts...))
		default:
			return Ikernel{}, serrors.New("unknown memcached index", "index", cfg.Index)
		}
	default:
		return Ikernel{}, serrors.New("unknown ikernel kind", "kind", cfg.Kind)
	}
	return ik, nil
}

// NewFromConfig constructs an engine from a validated configuration, with
// the flow tables and arbiters initialized.
func NewFromConfig(cfg *config.Config, logger log.Logger) (*Engine, error) {
	iks := make([]Ikernel, 0, len(cfg.Ikernels))
	for i, c := range cfg.Ikernels {
		ik, err := NewIkernel(c)
		if err != nil {
			return nil, serrors.Wrap("creating ikernel", err, "index", i)
		}
		iks = append(iks, ik)
	}
	e, err := New(Config{
		Pipeline: PipelineConfig{
			FlowTableSize: cfg.Engine.FlowTableSize,
			PacketDepth:   cfg.Engine.PacketDepth,
			WordDepth:     cfg.Engine.WordDepth,
		},
		IkernelDepth: cfg.Engine.IkernelDepth,
	}, iks, logger)
	if err != nil {
		return nil, err
	}

	fields, err := config.ParseFields(cfg.FlowTable.Fields)
	if err != nil {
		return nil, err
	}
	for _, p := range e.pipelines {
		if len(cfg.FlowTable.Fields) > 0 {
			p.flowTable.SetFields(fields)
		}
		p.arbiter.SetQuota(cfg.Arbiter.LogQuota)
		p.arbiter.SetIdleTimeout(cfg.Arbiter.IdleTimeout)
		for _, b := range cfg.Arbiter.Ports {
			if b.Port >= p.arbiter.NumPorts() {
				return nil, serrors.New("arbiter port out of range", "port", b.Port)
			}
			p.arbiter.SetBucket(b.Port, b.TokensPerRound, b.LogPeriod, b.LogSaturation)
		}
	}
	for i, c := range cfg.FlowTable.Entries {
		dir, err := ParseDirection(c.Direction)
		if err != nil {
			return nil, serrors.Wrap("flow table entry", err, "entry", i)
		}
		entry, err := c.Entry()
		if err != nil {
			return nil, serrors.Wrap("flow table entry", err, "entry", i)
		}
		if err := e.pipelines[dir].flowTable.Set(c.Index, entry); err != nil {
			return nil, serrors.Wrap("flow table entry", err, "entry", i)
		}
	}
	return e, nil
}
