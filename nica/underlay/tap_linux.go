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

//go:build linux

package underlay

import (
	"github.com/songgao/water"
	"github.com/vishvananda/netlink"

	"github.com/nicaproject/nica/pkg/log"
	"github.com/nicaproject/nica/pkg/private/serrors"
)

// OpenTap creates (or opens) the TAP interface name, sets its MTU if mtu is
// not zero, and then sets its state to up.
func OpenTap(name string, mtu int) (Conn, error) {
	iface, err := water.New(water.Config{
		DeviceType:             water.TAP,
		PlatformSpecificParams: water.PlatformSpecificParams{Name: name},
	})
	if err != nil {
		return nil, serrors.Wrap("creating tap interface", err, "name", name)
	}
	if err := setUp(iface.Name(), mtu); err != nil {
		iface.Close()
		return nil, err
	}
	log.Debug("Opened tap interface", "name", iface.Name(), "mtu", mtu)
	return deviceConn{dev: iface}, nil
}

func setUp(name string, mtu int) error {
	link, err := netlink.LinkByName(name)
	if err != nil {
		return serrors.Wrap("looking up tap interface", err, "name", name)
	}
	if mtu != 0 {
		if err := netlink.LinkSetMTU(link, mtu); err != nil {
			return serrors.Wrap("setting mtu", err, "name", name, "mtu", mtu)
		}
	}
	if err := netlink.LinkSetUp(link); err != nil {
		return serrors.Wrap("setting link up", err, "name", name)
	}
	return nil
}
