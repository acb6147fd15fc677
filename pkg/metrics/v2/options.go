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

// Package metrics creates prometheus collectors and registers them with a
// configurable registry, so that tests can use a private one.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Option is a functional option for the metrics Factory.
type Option func(*Options)

// Options holds the settings applied by the Factory.
type Options struct {
	registry prometheus.Registerer
}

func (o Options) registerer() prometheus.Registerer {
	if o.registry != nil {
		return o.registry
	}
	return prometheus.DefaultRegisterer
}

// WithRegistry registers the collectors with the given registry instead of the
// prometheus default registry.
func WithRegistry(registry prometheus.Registerer) Option {
	return func(o *Options) {
		o.registry = registry
	}
}

// ApplyOptions applies the given options.
func ApplyOptions(options ...Option) Options {
	opts := Options{}
	for _, option := range options {
		option(&opts)
	}
	return opts
}

// Auto returns a Factory that registers every created collector.
func (o Options) Auto() Factory {
	return Factory{opts: o}
}

// Factory creates collectors and registers them on creation.
type Factory struct {
	opts Options
}

// Register registers an externally built collector and reports a failed
// registration instead of panicking.
func (f Factory) Register(c prometheus.Collector) error {
	return f.opts.registerer().Register(c)
}

// MustRegister registers an externally built collector, e.g. one that
// snapshots component statistics on every scrape.
func (f Factory) MustRegister(c prometheus.Collector) {
	f.opts.registerer().MustRegister(c)
}

func (f Factory) NewCounterVec(
	opts prometheus.CounterOpts,
	labelNames []string,
) *prometheus.CounterVec {
	c := prometheus.NewCounterVec(opts, labelNames)
	f.MustRegister(c)
	return c
}

func (f Factory) NewGaugeVec(opts prometheus.GaugeOpts, labelNames []string) *prometheus.GaugeVec {
	g := prometheus.NewGaugeVec(opts, labelNames)
	f.MustRegister(g)
	return g
}

func (f Factory) NewGaugeFunc(
	opts prometheus.GaugeOpts,
	function func() float64,
) prometheus.GaugeFunc {
	g := prometheus.NewGaugeFunc(opts, function)
	f.MustRegister(g)
	return g
}
