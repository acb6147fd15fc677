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

// Package memcached contains a memcached (UDP, ASCII protocol) responder.
//
// VALUE responses sent by the host are snooped and their key and value are
// stored in an index. A get request arriving from the network whose key is
// in the index is answered from the index and not delivered to the host;
// all other requests are delivered. A set request invalidates the key.
//
// Only fixed size keys and values are handled. The layout of a request is
// the eight byte memcached UDP frame header followed by "get <key>\r\n"; a
// response is the frame header followed by
// "VALUE <key> 0 <size>\r\n<value>\r\nEND\r\n".
package memcached

import (
	"strconv"

	"github.com/google/uuid"

	"github.com/nicaproject/nica/nica/ikernel"
	"github.com/nicaproject/nica/pkg/gateway"
	"github.com/nicaproject/nica/pkg/stream"
)

// Kind is the configuration name of the ikernel.
const Kind = "memcached"

// ID is the identity of the memcached ikernel.
var ID = uuid.MustParse("d68adb30-4d19-4f3e-8542-fc184db75bf7")

// Statistics registers.
const (
	RegHits          = 0x10
	RegMisses        = 0x11
	RegStores        = 0x12
	RegInvalidations = 0x13
	RegEntries       = 0x14
)

const (
	frameHeaderSize = 8
	valueBytesSize  = 2
	// ReplySize is the length of a generated response.
	ReplySize = frameHeaderSize + len("VALUE ") + KeySize + len(" 0 ") +
		valueBytesSize + len("\r\n") + ValueSize + len("\r\nEND\r\n")

	typeOffset          = frameHeaderSize
	requestKeyOffset    = frameHeaderSize + len("get ")
	responseKeyOffset   = frameHeaderSize + len("VALUE ")
	responseValueOffset = responseKeyOffset + KeySize + len(" 0 ") + valueBytesSize + len("\r\n")

	queueDepth         = 16
	queueFullThreshold = queueDepth - 1
	// bufferWords holds one jumbo frame, so the parser can always reach the
	// end of a packet while its copy waits for a verdict.
	bufferWords = 9216 / stream.WordSize
)

// Stats are the index statistics.
type Stats struct {
	Hits          uint64
	Misses        uint64
	Stores        uint64
	Invalidations uint64
	Entries       int
}

type requestKind uint8

const (
	requestOther requestKind = iota
	requestGet
	requestSet
)

type request struct {
	header [frameHeaderSize]byte
	key    Key
	kind   requestKind
	meta   ikernel.Metadata
}

type pair struct {
	key   Key
	value Value
}

type reply struct {
	meta ikernel.Metadata
	data [ReplySize]byte
}

// prefix collects the first ReplySize bytes of a packet.
type prefix struct {
	buf [ReplySize]byte
	n   int
}

func (p *prefix) add(w *stream.Word) {
	p.n += copy(p.buf[p.n:], w.Bytes())
}

func (p *prefix) reset() {
	*p = prefix{}
}

type portState uint8

const (
	stateMetadata portState = iota
	stateData
)

type source uint8

const (
	sourcePass source = iota
	sourceGenerated
)

// Ikernel is the memcached responder.
type Ikernel struct {
	ikernel.Base

	index Index
	stats Stats

	// Net side: the parser reads the input while a copy waits in the
	// buffer for the verdict of the index lookup.
	parserState portState
	parsing     request
	parsed      prefix
	bufMeta     *stream.Fifo[ikernel.Metadata]
	bufData     *stream.Fifo[stream.Word]
	requests    *stream.Programmable[request]
	actions     *stream.Programmable[ikernel.Action]
	dropState   portState
	dropAction  ikernel.Action

	// Host side.
	pairs      *stream.Programmable[pair]
	replies    *stream.Fifo[reply]
	hostState  portState
	hostSource source
	snooped    prefix
	cur        reply
	replyOff   int
}

// New returns a responder using index.
func New(index Index) *Ikernel {
	return &Ikernel{
		Base:     ikernel.NewBase(ID),
		index:    index,
		bufMeta:  stream.New[ikernel.Metadata](queueDepth),
		bufData:  stream.New[stream.Word](bufferWords),
		requests: stream.NewProgrammable[request](queueDepth, queueFullThreshold, 0),
		actions:  stream.NewProgrammable[ikernel.Action](queueDepth, queueFullThreshold, 0),
		pairs:    stream.NewProgrammable[pair](queueDepth, queueFullThreshold, 0),
		replies:  stream.New[reply](queueDepth),
	}
}

// Step implements ikernel.Ikernel.
func (k *Ikernel) Step(p *ikernel.Ports) {
	k.dropOrPass(p.Net)
	k.handleRequest()
	k.parseRequest(p.Net)
	k.hostEgress(p.Host)
}

// Stats returns the index statistics.
func (k *Ikernel) Stats() Stats {
	s := k.stats
	s.Entries = k.index.Len()
	return s
}

// Entries returns the number of cached keys.
func (k *Ikernel) Entries() int { return k.index.Len() }

func (k *Ikernel) parseRequest(p ikernel.PipelinePorts) {
	switch k.parserState {
	case stateMetadata:
		if p.MetadataIn.Empty() || k.bufMeta.Full() {
			return
		}
		m := p.MetadataIn.Read()
		k.bufMeta.Write(m)
		k.parsing = request{meta: m}
		k.parsed.reset()
		k.parserState = stateData
	case stateData:
		if p.DataIn.Empty() || k.bufData.Full() || k.requests.Full() {
			return
		}
		d := p.DataIn.Read()
		k.bufData.Write(d)
		k.parsed.add(&d)
		if !d.Last {
			return
		}
		b := &k.parsed.buf
		copy(k.parsing.header[:], b[:frameHeaderSize])
		copy(k.parsing.key[:], b[requestKeyOffset:])
		switch b[typeOffset] {
		case 'g':
			k.parsing.kind = requestGet
		case 's':
			k.parsing.kind = requestSet
		default:
			k.parsing.kind = requestOther
		}
		k.requests.Write(k.parsing)
		k.parserState = stateMetadata
	}
}

func (k *Ikernel) handleRequest() {
	if kv, ok := k.pairs.TryRead(); ok {
		k.index.Insert(kv.key, kv.value)
		k.stats.Stores++
	}
	if k.requests.Empty() || k.actions.Full() {
		return
	}
	req := k.requests.Read()
	action := ikernel.Pass
	switch req.kind {
	case requestGet:
		v, found := k.index.Find(req.key)
		// A hit is still delivered to the host if no reply can be queued.
		if found && !k.replies.Full() {
			k.replies.Write(reply{meta: req.meta.Reply(uint16(ReplySize)), data: response(&req, v)})
			action = ikernel.Drop
			k.stats.Hits++
		} else {
			k.stats.Misses++
		}
	case requestSet:
		k.index.Erase(req.key)
		k.stats.Invalidations++
	}
	k.actions.Write(action)
}

func (k *Ikernel) dropOrPass(p ikernel.PipelinePorts) {
	switch k.dropState {
	case stateMetadata:
		if k.actions.Empty() || k.bufMeta.Empty() || p.Action.Full() || p.MetadataOut.Full() {
			return
		}
		m := k.bufMeta.Read()
		k.dropAction = k.actions.Read()
		p.Action.Write(k.dropAction)
		if k.dropAction == ikernel.Pass {
			p.MetadataOut.Write(m)
		}
		k.dropState = stateData
	case stateData:
		pass := k.dropAction == ikernel.Pass
		if k.bufData.Empty() || (pass && p.DataOut.Full()) {
			return
		}
		d := k.bufData.Read()
		if pass {
			p.DataOut.Write(d)
		}
		if d.Last {
			k.dropState = stateMetadata
		}
	}
}

// hostEgress multiplexes host traffic and generated replies onto the host
// pipeline outputs. Host traffic has priority.
func (k *Ikernel) hostEgress(p ikernel.PipelinePorts) {
	if k.hostState == stateMetadata {
		if p.Action.Full() || p.MetadataOut.Full() {
			return
		}
		switch {
		case !p.MetadataIn.Empty():
			p.Action.Write(ikernel.Pass)
			p.MetadataOut.Write(p.MetadataIn.Read())
			k.hostSource = sourcePass
			k.snooped.reset()
		case !k.replies.Empty():
			k.cur = k.replies.Read()
			p.Action.Write(ikernel.Generate)
			p.MetadataOut.Write(k.cur.meta)
			k.hostSource = sourceGenerated
			k.replyOff = 0
		default:
			return
		}
		k.hostState = stateData
	}

	if p.DataOut.Full() {
		return
	}
	if k.hostSource == sourceGenerated {
		n := min(stream.WordSize, ReplySize-k.replyOff)
		var d stream.Word
		copy(d.Data[:], k.cur.data[k.replyOff:k.replyOff+n])
		d.Keep = stream.KeepMask(n)
		k.replyOff += n
		d.Last = k.replyOff == ReplySize
		p.DataOut.Write(d)
		if d.Last {
			k.hostState = stateMetadata
		}
		return
	}

	if p.DataIn.Empty() || k.pairs.Full() {
		return
	}
	d := p.DataIn.Read()
	k.snooped.add(&d)
	p.DataOut.Write(d)
	if !d.Last {
		return
	}
	if b := &k.snooped.buf; b[typeOffset] == 'V' {
		var kv pair
		copy(kv.key[:], b[responseKeyOffset:])
		copy(kv.value[:], b[responseValueOffset:])
		k.pairs.Write(kv)
	}
	k.hostState = stateMetadata
}

func response(req *request, v Value) [ReplySize]byte {
	var r [ReplySize]byte
	b := r[:0]
	b = append(b, req.header[:]...)
	b = append(b, "VALUE "...)
	b = append(b, req.key[:]...)
	b = append(b, " 0 "...)
	b = strconv.AppendInt(b, ValueSize, 10)
	b = append(b, "\r\n"...)
	b = append(b, v[:]...)
	b = append(b, "\r\nEND\r\n"...)
	return r
}

// RegRead implements gateway.Handler.
func (k *Ikernel) RegRead(addr uint32) (int32, gateway.Result) {
	switch addr {
	case RegHits:
		return int32(k.stats.Hits), gateway.Done
	case RegMisses:
		return int32(k.stats.Misses), gateway.Done
	case RegStores:
		return int32(k.stats.Stores), gateway.Done
	case RegInvalidations:
		return int32(k.stats.Invalidations), gateway.Done
	case RegEntries:
		return int32(k.index.Len()), gateway.Done
	}
	return k.Base.RegRead(addr)
}
