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

// Package config holds the contract shared by every TOML block of the NICA
// daemon configuration. A block fills its defaults with InitDefaults, checks
// itself with Validate and renders a commented sample with Sample. The
// sample of each block is decoded again in its tests, so the documented keys
// and the defaults cannot drift apart.
package config

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/pelletier/go-toml/v2"

	"github.com/nicaproject/nica/pkg/private/serrors"
)

// ID is the sample context key that holds the daemon identifier.
const ID = "id"

// Config is implemented by the top level configuration of a binary.
type Config interface {
	Sampler
	Validator
	Defaulter
}

type Validator interface {
	// Validate checks the block and all blocks nested in it.
	Validate() error
}

type Defaulter interface {
	// InitDefaults sets every field that was left at its zero value,
	// including the fields of nested blocks.
	InitDefaults()
}

// Sampler renders a commented TOML sample of a block. Sample panics if dst
// fails.
type Sampler interface {
	Sample(dst io.Writer, path Path, ctx CtxMap)
}

// TableSampler is a Sampler with a [table] header of its own.
type TableSampler interface {
	Sampler
	ConfigName() string
}

// Path locates a block in the file, e.g. ["engine"] for [engine].
type Path []string

func (p Path) Extend(s string) Path {
	return append(append(make(Path, 0, len(p)+1), p...), s)
}

// NoValidator is embedded by blocks that accept any value.
type NoValidator struct{}

func (NoValidator) Validate() error { return nil }

// NoDefaulter is embedded by blocks without defaults.
type NoDefaulter struct{}

func (NoDefaulter) InitDefaults() {}

// ValidateAll stops at the first block that fails.
func ValidateAll(validators ...Validator) error {
	for _, v := range validators {
		if err := v.Validate(); err != nil {
			return serrors.Wrap("invalid config block", err, "block", fmt.Sprintf("%T", v))
		}
	}
	return nil
}

func InitAll(defaulters ...Defaulter) {
	for _, d := range defaulters {
		d.InitDefaults()
	}
}

// Decode parses TOML into cfg. Keys that cfg does not declare are an error.
func Decode(raw []byte, cfg any) error {
	dec := toml.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	return dec.Decode(cfg)
}

// LoadFile reads and decodes a TOML file. Callers add the file to the error.
func LoadFile(file string, cfg any) error {
	raw, err := os.ReadFile(file)
	if err != nil {
		return err
	}
	return Decode(raw, cfg)
}
