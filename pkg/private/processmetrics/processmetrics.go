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

// Package processmetrics exports the CPU time the scheduler granted to the
// process and the time it was kept runnable without a core. The tick driver
// of the engine spins on one core, so the ratio of both tells whether the
// engine is starved by the host.
//
// Only Linux is supported. Elsewhere Init registers nothing.
//
// Example of a query for ticks per available cpu second:
//
//	rate(nica_ticks_total[1m])
//	  / on (instance, job) group_left ()
//	(go_sched_maxprocs_threads - rate(process_runnable_seconds_total[1m]))
package processmetrics
