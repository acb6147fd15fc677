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

package underlay

import (
	"net"
	"net/netip"

	"github.com/nicaproject/nica/nica"
	"github.com/nicaproject/nica/nica/config"
	"github.com/nicaproject/nica/pkg/private/serrors"
)

// Link names.
const (
	LinkNet  = "net"
	LinkHost = "host"
)

// Open opens the configured links. Disabled links are skipped.
func Open(cfg config.UnderlayConfig) ([]*Link, error) {
	specs := []struct {
		name    string
		cfg     config.LinkConfig
		ingress nica.Direction
		egress  nica.Direction
	}{
		{LinkNet, cfg.Net, nica.NetToHost, nica.HostToNet},
		{LinkHost, cfg.Host, nica.HostToNet, nica.NetToHost},
	}
	var links []*Link
	for _, s := range specs {
		if !s.cfg.Enabled() {
			continue
		}
		l, err := openLink(s.name, s.cfg)
		if err != nil {
			for _, opened := range links {
				opened.Conn.Close()
			}
			return nil, err
		}
		l.Ingress, l.Egress = s.ingress, s.egress
		links = append(links, l)
	}
	return links, nil
}

func openLink(name string, cfg config.LinkConfig) (*Link, error) {
	if cfg.Tap != "" {
		conn, err := OpenTap(cfg.Tap, cfg.MTU)
		if err != nil {
			return nil, serrors.Wrap("opening link", err, "link", name)
		}
		return &Link{Name: name, Conn: conn}, nil
	}
	local, err := netip.ParseAddrPort(cfg.Local)
	if err != nil {
		return nil, serrors.Wrap("parsing local address", err, "link", name)
	}
	var remote netip.AddrPort
	if cfg.Remote != "" {
		if remote, err = netip.ParseAddrPort(cfg.Remote); err != nil {
			return nil, serrors.Wrap("parsing remote address", err, "link", name)
		}
	}
	conn, err := net.ListenUDP("udp", net.UDPAddrFromAddrPort(local))
	if err != nil {
		return nil, serrors.Wrap("opening link", err, "link", name, "local", local)
	}
	return &Link{Name: name, Conn: &UDPConn{Conn: conn}, Remote: remote}, nil
}
