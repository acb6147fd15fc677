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

// Package prom contains some utility functions for dealing with prometheus
// metrics.
package prom

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// Namespace is the namespace of all exported metrics.
const Namespace = "nica"

// Common label names.
const (
	// LabelDirection is the pipeline direction (n2h or h2n).
	LabelDirection = "direction"
	// LabelReason classifies why a packet took a path.
	LabelReason = "reason"
	// LabelAction is the name of a steering or ikernel action.
	LabelAction = "action"
	// LabelIkernel is the index of an ikernel.
	LabelIkernel = "ikernel"
	// LabelPort is the index of an arbiter port.
	LabelPort = "port"
	// LabelRing is the id of a host ring.
	LabelRing = "ring"
	// LabelResult is the label for result classifications.
	LabelResult = "result"
)

// Common result values.
const (
	// Success is no error.
	Success = "ok_success"
	// ErrInvalidReq is an invalid request.
	ErrInvalidReq = "err_invalid_request"
	// ErrNotFound is used for errors where a resource is not found.
	ErrNotFound = "err_not_found"
	// ErrUnavailable is used for errors where a resource is not available.
	ErrUnavailable = "err_unavailable"
)

// ExportElementID exports the instance ID as configured in the config file.
func ExportElementID(reg prometheus.Registerer, id string) {
	g := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "elem_id",
			Help:      "The element ID from the config file",
		},
		[]string{"cfg"},
	)
	g = SafeRegister(reg, g).(*prometheus.GaugeVec)
	g.WithLabelValues(id).Set(1)
}

// SafeRegister registers c and returns the registered collector. If c was
// already registered the already registered collector is returned. In case of
// any other error this method panicks (as MustRegister).
func SafeRegister(reg prometheus.Registerer, c prometheus.Collector) prometheus.Collector {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			return are.ExistingCollector
		}
		panic(err)
	}
	return c
}
