//go:build linux

// Package exporter publishes the most recent meter report as Prometheus
// metrics. Scrapes never sample; they read whatever the last Sample left.
package exporter

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ja7ad/selfmeter/pkg/meter"
	"github.com/ja7ad/selfmeter/pkg/types"
)

const DefaultNamespace = "selfmeter"

// Source is the read side of a meter.Meter.
type Source interface {
	Latest() meter.Report
	Stats() meter.Stats
}

// Collector implements prometheus.Collector over a Source. Fields that are
// unavailable in the latest report are left out of the scrape.
type Collector struct {
	src Source

	memory      *prometheus.Desc
	memoryPeak  *prometheus.Desc
	memoryLimit *prometheus.Desc
	cpu         *prometheus.Desc
	cpuSmoothed *prometheus.Desc
	systemCPU   *prometheus.Desc
	threadCPU   *prometheus.Desc
	threads     *prometheus.Desc
	disk        *prometheus.Desc
	io          *prometheus.Desc
	ioOps       *prometheus.Desc
	lastSample  *prometheus.Desc
	samples     *prometheus.Desc
	failures    *prometheus.Desc
}

func NewCollector(src Source, namespace string) *Collector {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	desc := func(name, help string, labels ...string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "", name), help, labels, nil)
	}
	return &Collector{
		src:         src,
		memory:      desc("memory_bytes", "Current memory usage of the process.", "kind"),
		memoryPeak:  desc("memory_peak_bytes", "Peak memory usage of the process.", "kind"),
		memoryLimit: desc("memory_limit_bytes", "Memory limit of the process cgroup."),
		cpu:         desc("cpu_ratio", "CPU usage over the last interval in cores.", "scope"),
		cpuSmoothed: desc("cpu_smoothed_ratio", "Exponential moving average of process CPU usage in cores."),
		systemCPU:   desc("system_cpu_ratio", "Busy fraction of all CPUs over the last interval."),
		threadCPU:   desc("thread_cpu_ratio", "Per-thread CPU usage over the last interval in cores.", "tid", "name"),
		threads:     desc("threads", "Number of threads seen at the last sample."),
		disk:        desc("disk_bytes_per_second", "Block device I/O rate.", "op"),
		io:          desc("io_bytes_per_second", "I/O rate across all file descriptors.", "op"),
		ioOps:       desc("io_ops_per_second", "Read and write syscall rate.", "op"),
		lastSample:  desc("last_sample_timestamp_seconds", "Unix time of the last successful sample."),
		samples:     desc("samples_total", "Successful samples taken."),
		failures:    desc("sample_failures_total", "Samples that failed because the process was unreadable."),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range []*prometheus.Desc{
		c.memory, c.memoryPeak, c.memoryLimit,
		c.cpu, c.cpuSmoothed, c.systemCPU, c.threadCPU, c.threads,
		c.disk, c.io, c.ioOps,
		c.lastSample, c.samples, c.failures,
	} {
		ch <- d
	}
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	st := c.src.Stats()
	ch <- prometheus.MustNewConstMetric(c.samples, prometheus.CounterValue, float64(st.Samples))
	ch <- prometheus.MustNewConstMetric(c.failures, prometheus.CounterValue, float64(st.Failures))

	r := c.src.Latest()
	if r.Seq == 0 {
		return
	}
	ch <- prometheus.MustNewConstMetric(c.lastSample, prometheus.GaugeValue,
		float64(r.Timestamp.UnixNano())/1e9)

	gauge := func(d *prometheus.Desc, v float64, ok bool, labels ...string) {
		if ok {
			ch <- prometheus.MustNewConstMetric(d, prometheus.GaugeValue, v, labels...)
		}
	}
	bytes := func(d *prometheus.Desc, m meter.Metric[types.Bytes], labels ...string) {
		gauge(d, float64(m.Value), m.Available, labels...)
	}
	rate := func(d *prometheus.Desc, m meter.Metric[float64], labels ...string) {
		gauge(d, m.Value, m.Available, labels...)
	}

	bytes(c.memory, r.Resident, "resident")
	bytes(c.memory, r.Virtual, "virtual")
	bytes(c.memory, r.Shared, "shared")
	bytes(c.memory, r.Swap, "swap")
	bytes(c.memoryPeak, r.ResidentPeak, "resident")
	bytes(c.memoryPeak, r.VirtualPeak, "virtual")
	bytes(c.memoryLimit, r.Limit)

	rate(c.cpu, r.CPU, "process")
	rate(c.cpu, r.CPUWithChildren, "process_with_children")
	rate(c.cpu, r.ThreadsCPU, "threads")
	rate(c.cpuSmoothed, r.CPUSmoothed)
	rate(c.systemCPU, r.SystemCPU)

	if r.Threads != nil {
		ch <- prometheus.MustNewConstMetric(c.threads, prometheus.GaugeValue, float64(len(r.Threads)))
	}
	for tid, tu := range r.Threads {
		rate(c.threadCPU, tu.CPU, strconv.Itoa(tid), tu.Name)
	}

	rate(c.disk, r.DiskRead, "read")
	rate(c.disk, r.DiskWrite, "write")
	rate(c.disk, r.DiskCancelled, "cancelled")
	rate(c.io, r.IORead, "read")
	rate(c.io, r.IOWrite, "write")
	rate(c.ioOps, r.IOReadOps, "read")
	rate(c.ioOps, r.IOWriteOps, "write")
}

// NewRegistry returns a registry holding a Collector for src and the Go
// runtime collector.
func NewRegistry(src Source, namespace string) (*prometheus.Registry, error) {
	reg := prometheus.NewRegistry()
	if err := reg.Register(NewCollector(src, namespace)); err != nil {
		return nil, err
	}
	if err := reg.Register(collectors.NewGoCollector()); err != nil {
		return nil, err
	}
	return reg, nil
}

// Handler serves reg in the Prometheus exposition format.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}
