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

package env_test

import (
	"bytes"
	"testing"

	"github.com/pelletier/go-toml/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nicaproject/nica/private/config"
	"github.com/nicaproject/nica/private/env"
)

func decode(t *testing.T, raw []byte, cfg any) {
	t.Helper()
	err := toml.NewDecoder(bytes.NewReader(raw)).DisallowUnknownFields().Decode(cfg)
	require.NoError(t, err)
}

func TestGeneralSample(t *testing.T) {
	var sample bytes.Buffer
	var cfg env.General
	cfg.Sample(&sample, nil, map[string]string{config.ID: "nica-1"})
	decode(t, sample.Bytes(), &cfg)
	assert.Equal(t, "nica-1", cfg.ID)
	assert.NoError(t, cfg.Validate())
}

func TestGeneralValidate(t *testing.T) {
	var cfg env.General
	assert.Error(t, cfg.Validate())
}

func TestMetricsSample(t *testing.T) {
	var sample bytes.Buffer
	var cfg env.Metrics
	cfg.Sample(&sample, nil, nil)
	decode(t, sample.Bytes(), &cfg)
	assert.Empty(t, cfg.Prometheus)
}

func TestAPISample(t *testing.T) {
	var sample bytes.Buffer
	var cfg env.API
	cfg.Sample(&sample, nil, nil)
	decode(t, sample.Bytes(), &cfg)
	assert.Equal(t, env.DefaultAPIAddress, cfg.Addr)

	var empty env.API
	empty.InitDefaults()
	assert.Equal(t, env.DefaultAPIAddress, empty.Addr)
}
