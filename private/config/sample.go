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
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strings"
)

// CtxMap carries values that samples substitute, keyed by e.g. ID.
type CtxMap map[string]string

// WriteSample renders the samplers one after the other. A TableSampler gets
// a [path.name] header and its keys are indented by four spaces.
func WriteSample(dst io.Writer, path Path, ctx CtxMap, samplers ...Sampler) {
	for _, s := range samplers {
		ts, ok := s.(TableSampler)
		if !ok {
			s.Sample(dst, path, ctx)
			continue
		}
		p := path.Extend(ts.ConfigName())
		var block bytes.Buffer
		ts.Sample(&block, p, ctx)
		var out bytes.Buffer
		fmt.Fprintf(&out, "\n[%s]", strings.Join(p, "."))
		lines := bufio.NewScanner(&block)
		for lines.Scan() {
			if l := lines.Text(); l != "" {
				out.WriteString("    " + l)
			}
			out.WriteByte('\n')
		}
		WriteString(dst, out.String())
	}
}

// WriteString panics if dst fails.
func WriteString(dst io.Writer, s string) {
	if _, err := io.WriteString(dst, s); err != nil {
		panic(fmt.Sprintf("writing config sample: %s", err))
	}
}
