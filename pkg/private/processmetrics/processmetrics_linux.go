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

package processmetrics

import (
	"os"
	"path/filepath"
	"runtime"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/procfs"
	"golang.org/x/sys/unix"

	metrics "github.com/nicaproject/nica/pkg/metrics/v2"
	"github.com/nicaproject/nica/pkg/private/serrors"
)

var (
	runningTime = prometheus.NewDesc(
		"process_running_seconds_total",
		"CPU time the process used (running state) since it started (all threads summed).",
		nil, nil,
	)
	runnableTime = prometheus.NewDesc(
		"process_runnable_seconds_total",
		"CPU time the process was denied (runnable state) since it started (all threads summed).",
		nil, nil,
	)
	maxProcs = prometheus.NewDesc(
		"go_sched_maxprocs_threads",
		"The current runtime.GOMAXPROCS setting.",
		nil, nil,
	)
	threadScans = prometheus.NewDesc(
		"process_metrics_thread_scans_total",
		"The number of times the collector rebuilt its list of threads.",
		nil, nil,
	)
)

// schedCollector sums the scheduler statistics of all threads of the process.
type schedCollector struct {
	pid      int
	taskDir  *os.File
	threads  procfs.Procs
	count    uint64
	scans    int64
	running  uint64
	runnable uint64
}

// update reads /proc/<pid>/task/*/schedstat. The thread list is only rebuilt
// when the number of entries in the task directory changed, the Go runtime
// never terminates its threads.
func (c *schedCollector) update() error {
	var st unix.Stat_t
	if err := unix.Fstat(int(c.taskDir.Fd()), &st); err != nil {
		return err
	}
	//nolint:unconvert // required on arm64
	count := uint64(st.Nlink - 2)
	if count != c.count {
		threads, err := procfs.AllThreads(c.pid)
		if err != nil {
			return err
		}
		c.threads, c.count = threads, count
		c.scans++
	}

	var running, runnable uint64
	for _, t := range c.threads {
		s, err := t.Schedstat()
		if err != nil {
			// The thread is gone, the others are still valid.
			continue
		}
		running += s.RunningNanoseconds
		runnable += s.WaitingNanoseconds
	}
	c.running, c.runnable = running, runnable
	return nil
}

func (c *schedCollector) Describe(ch chan<- *prometheus.Desc) {
	prometheus.DescribeByCollect(c, ch)
}

func (c *schedCollector) Collect(ch chan<- prometheus.Metric) {
	_ = c.update()
	ch <- prometheus.MustNewConstMetric(runningTime, prometheus.CounterValue,
		float64(c.running)/1e9)
	ch <- prometheus.MustNewConstMetric(runnableTime, prometheus.CounterValue,
		float64(c.runnable)/1e9)
	ch <- prometheus.MustNewConstMetric(maxProcs, prometheus.GaugeValue,
		float64(runtime.GOMAXPROCS(-1)))
	ch <- prometheus.MustNewConstMetric(threadScans, prometheus.CounterValue,
		float64(c.scans))
}

// Init registers the collector. It fails if /proc is not readable or if a
// collector was already registered with the same registry.
func Init(opts ...metrics.Option) error {
	pid := os.Getpid()
	taskPath := filepath.Join(procfs.DefaultMountPoint, strconv.Itoa(pid), "task")
	taskDir, err := os.Open(taskPath)
	if err != nil {
		return serrors.Wrap("opening task directory", err, "pid", pid)
	}
	c := &schedCollector{pid: pid, taskDir: taskDir}
	if err := c.update(); err != nil {
		taskDir.Close()
		return serrors.Wrap("reading scheduler statistics", err)
	}
	if err := metrics.ApplyOptions(opts...).Auto().Register(c); err != nil {
		taskDir.Close()
		return serrors.Wrap("registering collector", err)
	}
	return nil
}
