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

// Package passthrough contains an ikernel that passes every packet
// unmodified.
package passthrough

import (
	"github.com/nicaproject/nica/nica/ikernel"
)

// Kind is the configuration name of the ikernel.
const Kind = "passthrough"

// ID is the identity of the passthrough ikernel.
var ID = ikernel.NameUUID(Kind)

// Ikernel passes packets in both directions.
type Ikernel struct {
	ikernel.Base
}

// New returns a passthrough ikernel.
func New() *Ikernel {
	return &Ikernel{Base: ikernel.NewBase(ID)}
}

func (k *Ikernel) Step(p *ikernel.Ports) {
	ikernel.PassPackets(p.Host)
	ikernel.PassPackets(p.Net)
}
