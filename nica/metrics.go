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
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/nicaproject/nica/nica/ikernel"
	metrics "github.com/nicaproject/nica/pkg/metrics/v2"
	"github.com/nicaproject/nica/pkg/private/prom"
)

// Steering reasons as exported in the steering counter.
const (
	reasonDisabled  = "disabled"
	reasonNotIPv4   = "not_ipv4"
	reasonBadLength = "bad_length"
	reasonNotUDP    = "not_udp"
	reasonAction    = "flow_table"
)

// Collector exports the engine statistics. The statistics are snapshotted
// on every scrape.
type Collector struct {
	engine *Engine

	ticks         *prometheus.Desc
	steering      *prometheus.Desc
	ikernel       *prometheus.Desc
	buildErrors   *prometheus.Desc
	portPackets   *prometheus.Desc
	portWords     *prometheus.Desc
	portTokens    *prometheus.Desc
	portNoTokens  *prometheus.Desc
	portNotEmpty  *prometheus.Desc
	evictions     *prometheus.Desc
	outFull       *prometheus.Desc
	ringPackets   *prometheus.Desc
	egressQueued  *prometheus.Desc
	creditsWindow *prometheus.Desc
	cacheEntries  *prometheus.Desc
}

// NewCollector creates the collector of e and registers it.
func NewCollector(e *Engine, opts ...metrics.Option) *Collector {
	desc := func(name, help string, labels ...string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(prom.Namespace, "", name),
			help, labels, nil)
	}
	c := &Collector{
		engine: e,
		ticks:  desc("ticks_total", "Number of engine ticks."),
		steering: desc("steering_packets_total",
			"Packets classified by the steering stage.",
			prom.LabelDirection, prom.LabelReason, prom.LabelAction),
		ikernel: desc("ikernel_actions_total",
			"Actions taken by the ikernels.",
			prom.LabelDirection, prom.LabelIkernel, prom.LabelAction),
		buildErrors: desc("ikernel_build_errors_total",
			"Ikernel output packets that could not be turned into frames.",
			prom.LabelDirection, prom.LabelIkernel),
		portPackets: desc("arbiter_packets_total",
			"Packets transmitted per arbiter port.",
			prom.LabelDirection, prom.LabelPort),
		portWords: desc("arbiter_words_total",
			"Words transmitted per arbiter port.",
			prom.LabelDirection, prom.LabelPort),
		portTokens: desc("arbiter_tokens",
			"Current tokens of the arbiter port buckets.",
			prom.LabelDirection, prom.LabelPort),
		portNoTokens: desc("arbiter_no_tokens_total",
			"Ticks in which a port had data but no tokens.",
			prom.LabelDirection, prom.LabelPort),
		portNotEmpty: desc("arbiter_not_empty_total",
			"Ticks in which a port had data waiting.",
			prom.LabelDirection, prom.LabelPort),
		evictions: desc("arbiter_evictions_total",
			"Ports that lost the output before finishing their burst.",
			prom.LabelDirection, prom.LabelPort, prom.LabelReason),
		outFull: desc("arbiter_output_full_ticks_total",
			"Ticks in which the egress FIFO was full.",
			prom.LabelDirection),
		ringPackets: desc("custom_ring_packets_total",
			"Packets encapsulated for custom rings.",
			prom.LabelDirection),
		egressQueued: desc("egress_queued_words",
			"Words waiting in the egress FIFO.",
			prom.LabelDirection),
		creditsWindow: desc("ikernel_ring_credits",
			"Credits left on the host rings of the ikernels.",
			prom.LabelIkernel, prom.LabelRing),
		cacheEntries: desc("ikernel_cache_entries",
			"Keys held in the cache of an ikernel.",
			prom.LabelIkernel),
	}
	metrics.ApplyOptions(opts...).Auto().MustRegister(c)
	return c
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range []*prometheus.Desc{
		c.ticks, c.steering, c.ikernel, c.buildErrors, c.portPackets, c.portWords,
		c.portTokens, c.portNoTokens, c.portNotEmpty, c.evictions, c.outFull,
		c.ringPackets, c.egressQueued, c.creditsWindow, c.cacheEntries,
	} {
		ch <- d
	}
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	s := c.engine.Stats()
	counter := func(d *prometheus.Desc, v uint64, labels ...string) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.CounterValue, float64(v), labels...)
	}
	gauge := func(d *prometheus.Desc, v float64, labels ...string) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.GaugeValue, v, labels...)
	}

	counter(c.ticks, s.Ticks)
	for dir, ps := range s.Pipelines {
		st := ps.Steering
		counter(c.steering, st.PassthroughDisabled, dir, reasonDisabled, "passthrough")
		counter(c.steering, st.PassthroughNotIPv4, dir, reasonNotIPv4, "passthrough")
		counter(c.steering, st.PassthroughBadLength, dir, reasonBadLength, "passthrough")
		counter(c.steering, st.PassthroughNotUDP, dir, reasonNotUDP, "passthrough")
		// The checks above also count as passthrough actions.
		flowPass := st.ActionPassthrough - st.PassthroughDisabled - st.PassthroughNotIPv4 -
			st.PassthroughBadLength - st.PassthroughNotUDP
		counter(c.steering, flowPass, dir, reasonAction, "passthrough")
		counter(c.steering, st.ActionDrop, dir, reasonAction, "drop")
		counter(c.steering, st.ActionIkernel, dir, reasonAction, "ikernel")

		for i, is := range ps.Ikernels {
			idx := strconv.Itoa(i)
			for a, n := range is.Actions {
				counter(c.ikernel, n, dir, idx, ikernel.Action(a).String())
			}
			counter(c.buildErrors, is.BuildErrors, dir, idx)
		}
		for p, port := range ps.Arbiter.Ports {
			idx := strconv.Itoa(p)
			counter(c.portPackets, port.Packets, dir, idx)
			counter(c.portWords, port.Words, dir, idx)
			gauge(c.portTokens, float64(port.Tokens), dir, idx)
			counter(c.portNoTokens, port.NoTokens, dir, idx)
			counter(c.portNotEmpty, port.NotEmpty, dir, idx)
			counter(c.evictions, port.IdleEvictions, dir, idx, "idle")
			counter(c.evictions, port.QuotaEvictions, dir, idx, "quota")
		}
		counter(c.outFull, ps.Arbiter.OutFull, dir)
		counter(c.ringPackets, ps.RingPackets, dir)
		gauge(c.egressQueued, float64(ps.EgressQueued), dir)
	}
	for ik, windows := range s.Credits {
		for ring, w := range windows {
			gauge(c.creditsWindow, float64(w.MaxMSN-w.MSN), ik, strconv.Itoa(ring))
		}
	}
	for ik, n := range s.CacheEntries {
		gauge(c.cacheEntries, float64(n), ik)
	}
}
