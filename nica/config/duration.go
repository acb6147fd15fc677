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

package config

import (
	"encoding"
	"time"

	"github.com/spf13/pflag"
)

var _ (encoding.TextUnmarshaler) = (*Duration)(nil)
var _ (encoding.TextMarshaler) = Duration{}
var _ (pflag.Value) = (*Duration)(nil)

// Duration wraps time.Duration so that it can be written as a string
// ("10us", "1ms") in TOML files and on the command line.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	return d.Set(string(text))
}

func (d *Duration) Set(text string) error {
	var err error
	d.Duration, err = time.ParseDuration(text)
	return err
}

func (d Duration) MarshalText() (text []byte, err error) {
	return []byte(d.Duration.String()), nil
}

func (d Duration) String() string {
	return d.Duration.String()
}

// Type implements pflag.Value.
func (d *Duration) Type() string { return "duration" }
