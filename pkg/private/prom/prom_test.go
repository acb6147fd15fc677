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

package prom_test

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nicaproject/nica/pkg/private/prom"
)

func TestExportElementID(t *testing.T) {
	reg := prometheus.NewRegistry()
	prom.ExportElementID(reg, "nica-1")
	// A second export reuses the registered collector.
	prom.ExportElementID(reg, "nica-1")

	want := `
# HELP nica_elem_id The element ID from the config file
# TYPE nica_elem_id gauge
nica_elem_id{cfg="nica-1"} 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(want)))
}

func TestSafeRegister(t *testing.T) {
	reg := prometheus.NewRegistry()
	opts := prometheus.CounterOpts{Name: "test_total", Help: "Test counter."}
	first := prom.SafeRegister(reg, prometheus.NewCounter(opts))
	second := prom.SafeRegister(reg, prometheus.NewCounter(opts))
	assert.Same(t, first, second)

	assert.Panics(t, func() {
		prom.SafeRegister(reg, prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "test_total",
			Help: "Clashing type.",
		}))
	})
}
