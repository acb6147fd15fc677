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

// Package config contains the configuration of the NICA daemon.
package config

import (
	"io"
	"net/netip"
	"strings"

	"github.com/nicaproject/nica/nica/arbiter"
	"github.com/nicaproject/nica/nica/flowtable"
	"github.com/nicaproject/nica/pkg/log"
	"github.com/nicaproject/nica/pkg/private/serrors"
	"github.com/nicaproject/nica/private/config"
	"github.com/nicaproject/nica/private/env"
)

// Defaults.
const (
	DefaultFlowTableSize = 6
	DefaultPacketDepth   = 16
	DefaultWordDepth     = 512
	DefaultIkernelDepth  = 64
	DefaultTicksPerBatch = 64
)

// MaxIkernels is the number of ikernels an engine can host. Every ikernel
// takes two arbiter ports next to the passthrough port.
const MaxIkernels = (arbiter.MaxPorts - 1) / 2

// Ikernel kinds.
const (
	KindPassthrough = "passthrough"
	KindThreshold   = "threshold"
	KindEcho        = "echo"
	KindPktgen      = "pktgen"
	KindMemcached   = "memcached"
)

// Memcached index kinds.
const (
	IndexDirect  = "direct"
	IndexProbing = "probing"
)

// Memcached index hashes.
const (
	HashDJB2   = "djb2"
	HashFNV1a  = "fnv1a"
	HashXXHash = "xxhash"
)

// Directions as written in the configuration.
const (
	DirectionNetToHost = "n2h"
	DirectionHostToNet = "h2n"
)

var _ config.Config = (*Config)(nil)

// Config is the configuration of the NICA daemon.
type Config struct {
	General   env.General     `toml:"general,omitempty"`
	Logging   log.Config      `toml:"log,omitempty"`
	Metrics   env.Metrics     `toml:"metrics,omitempty"`
	API       env.API         `toml:"api,omitempty"`
	Engine    EngineConfig    `toml:"engine,omitempty"`
	Arbiter   ArbiterConfig   `toml:"arbiter,omitempty"`
	FlowTable FlowTableConfig `toml:"flow_table,omitempty"`
	Ikernels  []IkernelConfig `toml:"ikernels,omitempty"`
	Underlay  UnderlayConfig  `toml:"underlay,omitempty"`
}

// InitDefaults initializes the default values for all parts of the config.
func (cfg *Config) InitDefaults() {
	config.InitAll(
		&cfg.General,
		&cfg.Logging,
		&cfg.Metrics,
		&cfg.API,
		&cfg.Engine,
		&cfg.Arbiter,
	)
	for i := range cfg.Ikernels {
		cfg.Ikernels[i].InitDefaults()
	}
	for i := range cfg.FlowTable.Entries {
		cfg.FlowTable.Entries[i].InitDefaults()
	}
}

// Validate validates all parts of the config.
func (cfg *Config) Validate() error {
	if err := config.ValidateAll(
		&cfg.General,
		&cfg.Logging,
		&cfg.Metrics,
		&cfg.API,
		&cfg.Engine,
		&cfg.Arbiter,
		&cfg.Underlay,
	); err != nil {
		return err
	}
	if len(cfg.Ikernels) > MaxIkernels {
		return serrors.New("too many ikernels", "ikernels", len(cfg.Ikernels),
			"max", MaxIkernels)
	}
	for i := range cfg.Ikernels {
		if err := cfg.Ikernels[i].Validate(); err != nil {
			return serrors.Wrap("validating ikernel", err, "index", i)
		}
	}
	for i := range cfg.FlowTable.Entries {
		e := &cfg.FlowTable.Entries[i]
		if err := e.Validate(); err != nil {
			return serrors.Wrap("validating flow table entry", err, "entry", i)
		}
		if e.Index >= cfg.Engine.FlowTableSize {
			return serrors.New("flow table index out of range", "entry", i,
				"index", e.Index, "size", cfg.Engine.FlowTableSize)
		}
		if e.Action == flowtable.ToIkernel.String() && e.Ikernel >= len(cfg.Ikernels) {
			return serrors.New("flow table entry refers to unknown ikernel", "entry", i,
				"ikernel", e.Ikernel)
		}
	}
	if _, err := ParseFields(cfg.FlowTable.Fields); err != nil {
		return err
	}
	for _, p := range cfg.Arbiter.Ports {
		if p.Port > 2*len(cfg.Ikernels) {
			return serrors.New("arbiter port out of range", "port", p.Port)
		}
	}
	return nil
}

// Sample writes a config sample to the writer.
func (cfg *Config) Sample(dst io.Writer, path config.Path, ctx config.CtxMap) {
	config.WriteSample(dst, path, ctx,
		&cfg.General,
		&cfg.Logging,
		&cfg.Metrics,
		&cfg.API,
		&cfg.Engine,
		&cfg.Arbiter,
		&cfg.Underlay,
	)
	config.WriteString(dst, flowTableSample)
	config.WriteString(dst, ikernelsSample)
}

// EngineConfig sizes the engine and sets the tick rate.
type EngineConfig struct {
	// TickInterval is the period of a batch of ticks. Zero runs batches
	// back to back.
	TickInterval Duration `toml:"tick_interval,omitempty"`
	// TicksPerBatch is the number of ticks per batch.
	TicksPerBatch int `toml:"ticks_per_batch,omitempty"`
	// FlowTableSize is the number of flow table entries per direction.
	FlowTableSize int `toml:"flow_table_size,omitempty"`
	PacketDepth   int `toml:"packet_depth,omitempty"`
	WordDepth     int `toml:"word_depth,omitempty"`
	IkernelDepth  int `toml:"ikernel_depth,omitempty"`
}

func (cfg *EngineConfig) InitDefaults() {
	if cfg.TicksPerBatch == 0 {
		cfg.TicksPerBatch = DefaultTicksPerBatch
	}
	if cfg.FlowTableSize == 0 {
		cfg.FlowTableSize = DefaultFlowTableSize
	}
	if cfg.PacketDepth == 0 {
		cfg.PacketDepth = DefaultPacketDepth
	}
	if cfg.WordDepth == 0 {
		cfg.WordDepth = DefaultWordDepth
	}
	if cfg.IkernelDepth == 0 {
		cfg.IkernelDepth = DefaultIkernelDepth
	}
}

func (cfg *EngineConfig) Validate() error {
	if cfg.TicksPerBatch <= 0 {
		return serrors.New("ticks_per_batch must be positive", "value", cfg.TicksPerBatch)
	}
	if cfg.TickInterval.Duration < 0 {
		return serrors.New("tick_interval must not be negative", "value", cfg.TickInterval)
	}
	if cfg.FlowTableSize <= 0 || cfg.FlowTableSize > flowtable.MaxSize {
		return serrors.New("flow_table_size out of range", "value", cfg.FlowTableSize,
			"max", flowtable.MaxSize)
	}
	for _, d := range []struct {
		name  string
		depth int
	}{
		{"packet_depth", cfg.PacketDepth},
		{"word_depth", cfg.WordDepth},
		{"ikernel_depth", cfg.IkernelDepth},
	} {
		if d.depth <= 0 {
			return serrors.New(d.name+" must be positive", "value", d.depth)
		}
	}
	return nil
}

func (cfg *EngineConfig) Sample(dst io.Writer, _ config.Path, _ config.CtxMap) {
	config.WriteString(dst, engineSample)
}

func (cfg *EngineConfig) ConfigName() string {
	return "engine"
}

// ArbiterConfig is the initial configuration of the arbiters of both
// directions.
type ArbiterConfig struct {
	// LogQuota is the log2 of the number of bytes a port may send before it
	// is evicted.
	LogQuota uint8 `toml:"log_quota,omitempty"`
	// IdleTimeout is the number of idle ticks after which a port is evicted.
	IdleTimeout int                 `toml:"idle_timeout,omitempty"`
	Ports       []ArbiterPortConfig `toml:"ports,omitempty"`
}

// ArbiterPortConfig configures the token bucket of one arbiter port.
type ArbiterPortConfig struct {
	Port           int   `toml:"port"`
	TokensPerRound int   `toml:"tokens_per_round"`
	LogPeriod      uint8 `toml:"log_period"`
	LogSaturation  uint8 `toml:"log_saturation"`
}

func (cfg *ArbiterConfig) InitDefaults() {
	if cfg.LogQuota == 0 {
		cfg.LogQuota = arbiter.DefaultLogQuota
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = arbiter.DefaultIdleTimeout
	}
}

func (cfg *ArbiterConfig) Validate() error {
	if cfg.LogQuota > 30 {
		return serrors.New("log_quota out of range", "log_quota", cfg.LogQuota)
	}
	if cfg.IdleTimeout < 1 || cfg.IdleTimeout > 255 {
		return serrors.New("idle_timeout out of range", "idle_timeout", cfg.IdleTimeout)
	}
	for _, p := range cfg.Ports {
		switch {
		case p.Port < 0:
			return serrors.New("negative arbiter port", "port", p.Port)
		case p.TokensPerRound < 0:
			return serrors.New("negative tokens_per_round", "port", p.Port)
		case p.LogPeriod > 30, p.LogSaturation > 30:
			return serrors.New("bucket exponent out of range", "port", p.Port)
		}
	}
	return nil
}

func (cfg *ArbiterConfig) Sample(dst io.Writer, _ config.Path, _ config.CtxMap) {
	config.WriteString(dst, arbiterSample)
}

func (cfg *ArbiterConfig) ConfigName() string {
	return "arbiter"
}

// FlowTableConfig holds the initial flow table contents.
type FlowTableConfig struct {
	// Fields are the significant key fields (src_addr, dst_addr, src_port,
	// dst_port).
	Fields  []string          `toml:"fields,omitempty"`
	Entries []FlowEntryConfig `toml:"entries,omitempty"`
}

// FlowEntryConfig is one flow table entry.
type FlowEntryConfig struct {
	// Direction is the pipeline of the entry (n2h or h2n, default n2h).
	Direction string `toml:"direction,omitempty"`
	Index     int    `toml:"index"`
	SrcAddr   string `toml:"src_addr,omitempty"`
	DstAddr   string `toml:"dst_addr,omitempty"`
	SrcPort   uint16 `toml:"src_port,omitempty"`
	DstPort   uint16 `toml:"dst_port,omitempty"`
	// Action is one of passthrough, drop or ikernel.
	Action    string `toml:"action"`
	Ikernel   int    `toml:"ikernel,omitempty"`
	IkernelID uint32 `toml:"ikernel_id,omitempty"`
}

func (cfg *FlowEntryConfig) InitDefaults() {
	if cfg.Direction == "" {
		cfg.Direction = DirectionNetToHost
	}
}

func (cfg *FlowEntryConfig) Validate() error {
	if cfg.Direction != DirectionNetToHost && cfg.Direction != DirectionHostToNet {
		return serrors.New("unknown direction", "direction", cfg.Direction)
	}
	if cfg.Index < 0 {
		return serrors.New("negative index", "index", cfg.Index)
	}
	_, err := cfg.Entry()
	return err
}

// Entry returns the flow table entry.
func (cfg *FlowEntryConfig) Entry() (flowtable.Entry, error) {
	src, err := parseIPv4(cfg.SrcAddr)
	if err != nil {
		return flowtable.Entry{}, serrors.Wrap("parsing src_addr", err)
	}
	dst, err := parseIPv4(cfg.DstAddr)
	if err != nil {
		return flowtable.Entry{}, serrors.Wrap("parsing dst_addr", err)
	}
	action, err := ParseAction(cfg.Action)
	if err != nil {
		return flowtable.Entry{}, err
	}
	return flowtable.Entry{
		Key: flowtable.Flow{
			SrcAddr: src,
			DstAddr: dst,
			SrcPort: cfg.SrcPort,
			DstPort: cfg.DstPort,
		},
		Action:    action,
		Ikernel:   cfg.Ikernel,
		IkernelID: cfg.IkernelID,
	}, nil
}

func parseIPv4(s string) (uint32, error) {
	if s == "" {
		return 0, nil
	}
	a, err := netip.ParseAddr(s)
	if err != nil {
		return 0, err
	}
	if !a.Is4() {
		return 0, serrors.New("not an IPv4 address", "addr", s)
	}
	b := a.As4()
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3]), nil
}

// ParseAction parses the name of a flow table action.
func ParseAction(s string) (flowtable.Action, error) {
	for _, a := range []flowtable.Action{flowtable.Passthrough, flowtable.Drop,
		flowtable.ToIkernel} {

		if a.String() == s {
			return a, nil
		}
	}
	return 0, serrors.New("unknown flow table action", "action", s)
}

var fieldNames = map[string]flowtable.Fields{
	"src_addr": flowtable.FieldSrcAddr,
	"dst_addr": flowtable.FieldDstAddr,
	"src_port": flowtable.FieldSrcPort,
	"dst_port": flowtable.FieldDstPort,
}

// ParseFields parses a list of key field names.
func ParseFields(names []string) (flowtable.Fields, error) {
	var f flowtable.Fields
	for _, n := range names {
		v, ok := fieldNames[strings.ToLower(n)]
		if !ok {
			return 0, serrors.New("unknown flow key field", "field", n)
		}
		f |= v
	}
	return f, nil
}

// IkernelConfig selects and parameterizes one ikernel. Parameters that do not
// apply to the kind are ignored.
type IkernelConfig struct {
	Kind string `toml:"kind"`
	// Threshold is the drop threshold of the threshold ikernel.
	Threshold uint32 `toml:"threshold,omitempty"`
	// RespondToSockperf limits the echo ikernel to sockperf ping requests.
	RespondToSockperf bool `toml:"respond_to_sockperf,omitempty"`
	// BurstSize is the number of copies the pktgen ikernel sends.
	BurstSize int `toml:"burst_size,omitempty"`
	// Index is the memcached index (direct or probing).
	Index string `toml:"index,omitempty"`
	// CacheSize is the number of memcached index entries.
	CacheSize int `toml:"cache_size,omitempty"`
	// Hash is the hash of the memcached keys (djb2, fnv1a or xxhash). Empty
	// selects djb2 for the direct index and xxhash for the probing index.
	Hash string `toml:"hash,omitempty"`
}

func (cfg *IkernelConfig) InitDefaults() {
	if cfg.Kind != KindMemcached {
		return
	}
	if cfg.Index == "" {
		cfg.Index = IndexDirect
	}
	if cfg.CacheSize == 0 {
		cfg.CacheSize = 4096
	}
}

func (cfg *IkernelConfig) Validate() error {
	switch cfg.Kind {
	case KindPassthrough, KindThreshold, KindEcho:
	case KindPktgen:
		if cfg.BurstSize < 0 {
			return serrors.New("negative burst_size", "burst_size", cfg.BurstSize)
		}
	case KindMemcached:
		if cfg.Index != IndexDirect && cfg.Index != IndexProbing {
			return serrors.New("unknown memcached index", "index", cfg.Index)
		}
		if cfg.CacheSize <= 0 {
			return serrors.New("cache_size must be positive", "cache_size", cfg.CacheSize)
		}
		switch cfg.Hash {
		case "", HashDJB2, HashFNV1a, HashXXHash:
		default:
			return serrors.New("unknown memcached hash", "hash", cfg.Hash)
		}
	default:
		return serrors.New("unknown ikernel kind", "kind", cfg.Kind)
	}
	return nil
}

// UnderlayConfig configures the links that carry Ethernet frames to and from
// the engine.
type UnderlayConfig struct {
	// Net is the network side link. Frames received on it enter the network
	// to host pipeline; frames leaving the host to network pipeline are sent
	// to its remote address.
	Net LinkConfig `toml:"net,omitempty"`
	// Host is the host side link, the mirror image of Net.
	Host LinkConfig `toml:"host,omitempty"`
}

// LinkConfig is one link, either a UDP socket or a TAP interface. A link with
// neither a local address nor a TAP interface is disabled.
type LinkConfig struct {
	Local  string `toml:"local,omitempty"`
	Remote string `toml:"remote,omitempty"`
	// Tap is the name of a TAP interface that is created if missing and
	// brought up. Every frame read from it is one Ethernet frame.
	Tap string `toml:"tap,omitempty"`
	// MTU of the TAP interface. If zero, the MTU is left unchanged.
	MTU int `toml:"mtu,omitempty"`
}

// Enabled reports whether the link is configured.
func (cfg LinkConfig) Enabled() bool {
	return cfg.Local != "" || cfg.Tap != ""
}

func (cfg LinkConfig) validate() error {
	if cfg.Tap != "" {
		if cfg.Local != "" || cfg.Remote != "" {
			return serrors.New("tap and UDP addresses are mutually exclusive")
		}
		if cfg.MTU != 0 && (cfg.MTU < 68 || cfg.MTU > 9000) {
			return serrors.New("mtu out of range", "mtu", cfg.MTU)
		}
		return nil
	}
	if cfg.MTU != 0 {
		return serrors.New("mtu requires a tap interface")
	}
	if cfg.Local == "" {
		return nil
	}
	if _, err := netip.ParseAddrPort(cfg.Local); err != nil {
		return serrors.Wrap("parsing local address", err)
	}
	if cfg.Remote == "" {
		return nil
	}
	if _, err := netip.ParseAddrPort(cfg.Remote); err != nil {
		return serrors.Wrap("parsing remote address", err)
	}
	return nil
}

func (cfg *UnderlayConfig) Validate() error {
	if err := cfg.Net.validate(); err != nil {
		return serrors.Wrap("validating link", err, "link", "net")
	}
	if err := cfg.Host.validate(); err != nil {
		return serrors.Wrap("validating link", err, "link", "host")
	}
	return nil
}

func (cfg *UnderlayConfig) Sample(dst io.Writer, _ config.Path, _ config.CtxMap) {
	config.WriteString(dst, underlaySample)
}

func (cfg *UnderlayConfig) ConfigName() string {
	return "underlay"
}
