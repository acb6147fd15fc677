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
	"io"
	"net"
	"net/netip"
)

// UDPConn carries one frame per datagram.
type UDPConn struct {
	Conn *net.UDPConn
}

func (c *UDPConn) ReadFrame(buf []byte) (int, netip.AddrPort, error) {
	return c.Conn.ReadFromUDPAddrPort(buf)
}

func (c *UDPConn) WriteFrame(frame []byte, dst netip.AddrPort) error {
	_, err := c.Conn.WriteToUDPAddrPort(frame, dst)
	return err
}

func (c *UDPConn) PointToPoint() bool { return false }

func (c *UDPConn) Close() error { return c.Conn.Close() }

// LocalAddr returns the address the socket is bound to.
func (c *UDPConn) LocalAddr() netip.AddrPort {
	return c.Conn.LocalAddr().(*net.UDPAddr).AddrPort()
}

// deviceConn carries frames over a device where every read and write is one
// frame, such as a TAP interface.
type deviceConn struct {
	dev io.ReadWriteCloser
}

func (c deviceConn) ReadFrame(buf []byte) (int, netip.AddrPort, error) {
	n, err := c.dev.Read(buf)
	return n, netip.AddrPort{}, err
}

func (c deviceConn) WriteFrame(frame []byte, _ netip.AddrPort) error {
	_, err := c.dev.Write(frame)
	return err
}

func (c deviceConn) PointToPoint() bool { return true }

func (c deviceConn) Close() error { return c.dev.Close() }
