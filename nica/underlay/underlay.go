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

// Package underlay carries Ethernet frames between the engine and the
// outside world. A link is either a UDP socket, where every frame travels as
// the payload of one datagram, or a TAP interface.
//
// The engine has two sides. Frames received on the network link enter the
// network to host pipeline and frames leaving the host to network pipeline
// are sent to the network link's remote address. The host link is the mirror
// image.
package underlay

import (
	"context"
	"errors"
	"net"
	"net/netip"
	"os"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/nicaproject/nica/nica"
	"github.com/nicaproject/nica/pkg/log"
	metrics "github.com/nicaproject/nica/pkg/metrics/v2"
	"github.com/nicaproject/nica/pkg/private/prom"
	"github.com/nicaproject/nica/pkg/private/serrors"
)

// MaxFrameSize is the largest frame that is received.
const MaxFrameSize = 9216

// DefaultPollInterval is the interval at which the egress of the engine is
// drained.
const DefaultPollInterval = 100 * time.Microsecond

// Results as exported in the frame counter.
const (
	resultOK      = prom.Success
	resultNoRoom  = "err_no_room"
	resultNoPeer  = "err_no_remote"
	resultSendErr = "err_send"
)

// Engine is the part of the engine the underlay feeds.
type Engine interface {
	Inject(dir nica.Direction, frame []byte) error
	Drain(dir nica.Direction) [][]byte
}

// Conn carries the frames of a link.
type Conn interface {
	// ReadFrame reads one frame into buf. src is the sender, it is invalid
	// for point to point connections.
	ReadFrame(buf []byte) (n int, src netip.AddrPort, err error)
	// WriteFrame sends one frame. Point to point connections ignore dst.
	WriteFrame(frame []byte, dst netip.AddrPort) error
	// PointToPoint reports whether frames are sent without a destination.
	PointToPoint() bool
	Close() error
}

// Link is one side of the engine.
type Link struct {
	// Name labels logs and metrics.
	Name string
	// Conn is where frames are received and sent.
	Conn Conn
	// Remote is where egress frames are sent. If invalid, egress frames are
	// sent to the source of the last received frame, and dropped while none
	// was received. Unused for point to point connections.
	Remote netip.AddrPort
	// Ingress is the pipeline received frames enter.
	Ingress nica.Direction
	// Egress is the pipeline whose output is sent.
	Egress nica.Direction
}

// Metrics are the underlay counters.
type Metrics struct {
	Frames *prometheus.CounterVec
	Bytes  *prometheus.CounterVec
}

// NewMetrics creates and registers the underlay counters.
func NewMetrics(opts ...metrics.Option) *Metrics {
	f := metrics.ApplyOptions(opts...).Auto()
	labels := []string{"link", "dir", prom.LabelResult}
	return &Metrics{
		Frames: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: prom.Namespace,
			Subsystem: "underlay",
			Name:      "frames_total",
			Help:      "Frames received and sent on the underlay links.",
		}, labels),
		Bytes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: prom.Namespace,
			Subsystem: "underlay",
			Name:      "bytes_total",
			Help:      "Bytes received and sent on the underlay links.",
		}, labels),
	}
}

// Underlay moves frames between the links and the engine.
type Underlay struct {
	Engine  Engine
	Links   []*Link
	Metrics *Metrics
	// PollInterval is the egress drain interval. If zero,
	// DefaultPollInterval is used.
	PollInterval time.Duration
}

// Run serves all links until ctx is done. It closes the link sockets before
// returning.
func (u *Underlay) Run(ctx context.Context) error {
	g, errCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer log.HandlePanic()
		<-errCtx.Done()
		for _, l := range u.Links {
			l.Conn.Close()
		}
		return nil
	})
	peers := make([]*peer, len(u.Links))
	for i, l := range u.Links {
		peers[i] = &peer{remote: l.Remote}
		p := peers[i]
		g.Go(func() error {
			defer log.HandlePanic()
			return u.receive(errCtx, l, p)
		})
	}
	g.Go(func() error {
		defer log.HandlePanic()
		return u.send(errCtx, peers)
	})
	return g.Wait()
}

func (u *Underlay) receive(ctx context.Context, l *Link, p *peer) error {
	logger := log.FromCtx(ctx).New("link", l.Name)
	buf := make([]byte, MaxFrameSize)
	for {
		n, src, err := l.Conn.ReadFrame(buf)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) ||
				errors.Is(err, os.ErrClosed) {

				return nil
			}
			return serrors.Wrap("receiving frame", err, "link", l.Name)
		}
		if src.IsValid() {
			p.learn(src)
		}
		frame := make([]byte, n)
		copy(frame, buf[:n])
		result := resultOK
		if err := u.Engine.Inject(l.Ingress, frame); err != nil {
			logger.Debug("Dropping received frame", "err", err)
			result = resultNoRoom
		}
		u.count(l.Name, "rx", result, n)
	}
}

func (u *Underlay) send(ctx context.Context, peers []*peer) error {
	interval := u.PollInterval
	if interval == 0 {
		interval = DefaultPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		for i, l := range u.Links {
			for _, frame := range u.Engine.Drain(l.Egress) {
				u.sendFrame(ctx, l, peers[i], frame)
			}
		}
	}
}

func (u *Underlay) sendFrame(ctx context.Context, l *Link, p *peer, frame []byte) {
	var dst netip.AddrPort
	if !l.Conn.PointToPoint() {
		var ok bool
		if dst, ok = p.get(); !ok {
			u.count(l.Name, "tx", resultNoPeer, len(frame))
			return
		}
	}
	if err := l.Conn.WriteFrame(frame, dst); err != nil {
		if ctx.Err() == nil {
			log.FromCtx(ctx).Debug("Sending frame", "link", l.Name, "dst", dst, "err", err)
		}
		u.count(l.Name, "tx", resultSendErr, len(frame))
		return
	}
	u.count(l.Name, "tx", resultOK, len(frame))
}

func (u *Underlay) count(link, dir, result string, n int) {
	if u.Metrics == nil {
		return
	}
	u.Metrics.Frames.WithLabelValues(link, dir, result).Inc()
	u.Metrics.Bytes.WithLabelValues(link, dir, result).Add(float64(n))
}

// peer is the destination of the egress frames of a link.
type peer struct {
	mu     sync.Mutex
	remote netip.AddrPort
	learnt bool
}

func (p *peer) learn(src netip.AddrPort) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.remote.IsValid() && !p.learnt {
		return
	}
	p.remote, p.learnt = src, true
}

func (p *peer) get() (netip.AddrPort, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.remote, p.remote.IsValid()
}
