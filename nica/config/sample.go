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

const engineSample = `
# The period of a batch of ticks. If zero, batches run back to back.
# (default 0s)
tick_interval = "0s"

# The number of ticks run per batch. (default 64)
ticks_per_batch = 64

# The number of flow table entries of each pipeline. (default 6)
flow_table_size = 6

# The depth of the per packet FIFOs. (default 16)
packet_depth = 16

# The depth of the data FIFOs in words. (default 512)
word_depth = 512

# The depth of the ikernel port FIFOs. (default 64)
ikernel_depth = 64
`

const arbiterSample = `
# The log2 of the number of bytes a port may send before it gives up the
# output. (default 14)
log_quota = 14

# The number of idle ticks after which a port gives up the output.
# (default 32)
idle_timeout = 32

# Token buckets of the arbiter ports. Port 0 carries passthrough traffic,
# port 1+2i the packets passed by ikernel i and port 2+2i the packets it
# generates. Ports without a bucket are not rate limited.
[[arbiter.ports]]
port = 2
tokens_per_round = 256
log_period = 4
log_saturation = 14
`

const flowTableSample = `
[flow_table]
# The significant flow key fields. (src_addr, dst_addr, src_port, dst_port)
fields = ["dst_port"]

[[flow_table.entries]]
# The pipeline of the entry. (n2h or h2n, default n2h)
direction = "n2h"
index = 0
dst_port = 11211
# The action: passthrough, drop or ikernel.
action = "ikernel"
# The ikernel index and the ikernel specific id passed along with the packet.
ikernel = 0
ikernel_id = 1
`

const ikernelsSample = `
# The ikernels, in index order. Kinds are passthrough, threshold, echo,
# pktgen and memcached.
[[ikernels]]
kind = "memcached"
# The memcached index, direct or probing. (default direct)
index = "direct"
# The number of index entries. (default 4096)
cache_size = 4096
# The key hash: djb2, fnv1a or xxhash. (default djb2 for the direct index,
# xxhash for the probing index)
# hash = "djb2"

[[ikernels]]
kind = "echo"
# Only answer sockperf ping requests.
respond_to_sockperf = false
`

const underlaySample = `
[underlay.net]
# The local UDP address of the network link. Frames received here enter the
# network to host pipeline. If not set, the link is disabled.
local = "127.0.0.1:30500"
# Frames leaving the host to network pipeline are sent here.
remote = "127.0.0.1:30501"

[underlay.host]
# The local UDP address of the host link. Frames received here enter the
# host to network pipeline.
local = "127.0.0.1:30502"
# Frames leaving the network to host pipeline are sent here.
remote = "127.0.0.1:30503"
# Instead of a UDP socket, the link can be a TAP interface. It is created if
# missing and brought up. Requires CAP_NET_ADMIN.
# tap = "nica0"
# mtu = 1500
`
