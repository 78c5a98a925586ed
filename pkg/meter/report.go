//go:build linux

package meter

import (
	"cmp"
	"maps"
	"slices"
	"time"

	"github.com/ja7ad/selfmeter/pkg/types"
)

// ThreadUsage is the CPU usage of one thread over the last interval, as a
// fraction of one core. Threads first seen in this interval have no
// baseline and report unavailable (zero) usage.
type ThreadUsage struct {
	TID    int             `json:"tid"`
	Name   string          `json:"name"`
	CPU    Metric[float64] `json:"cpu"`
	User   Metric[float64] `json:"user"`
	System Metric[float64] `json:"system"`
}

// Report is the usage computed from two consecutive snapshots.
//
// Memory figures are absolute values from the newer snapshot. CPU figures
// are fractions of one core (1.0 = one core fully busy), except SystemCPU
// which is the busy fraction of the whole machine. Disk and I/O figures are
// per second. Every field carries its own availability marker.
type Report struct {
	Seq       uint64        `json:"seq"`
	Timestamp time.Time     `json:"timestamp"`
	Interval  time.Duration `json:"interval"`

	Resident     Metric[types.Bytes] `json:"memory_resident"`
	Virtual      Metric[types.Bytes] `json:"memory_virtual"`
	Shared       Metric[types.Bytes] `json:"memory_shared"`
	Swap         Metric[types.Bytes] `json:"memory_swap"`
	ResidentPeak Metric[types.Bytes] `json:"memory_resident_peak"`
	VirtualPeak  Metric[types.Bytes] `json:"memory_virtual_peak"`
	Limit        Metric[types.Bytes] `json:"memory_limit"`

	CPU             Metric[float64] `json:"cpu"`
	CPUWithChildren Metric[float64] `json:"cpu_with_children"`
	CPUSmoothed     Metric[float64] `json:"cpu_smoothed"`
	ThreadsCPU      Metric[float64] `json:"threads_cpu"`
	SystemCPU       Metric[float64] `json:"system_cpu"`

	Threads        map[int]ThreadUsage `json:"threads,omitempty"`
	ThreadsStarted []int               `json:"threads_started,omitempty"`
	ThreadsExited  []int               `json:"threads_exited,omitempty"`

	DiskRead      Metric[float64] `json:"disk_read"`
	DiskWrite     Metric[float64] `json:"disk_write"`
	DiskCancelled Metric[float64] `json:"disk_cancelled"`
	IORead        Metric[float64] `json:"io_read"`
	IOWrite       Metric[float64] `json:"io_write"`
	IOReadOps     Metric[float64] `json:"io_read_ops"`
	IOWriteOps    Metric[float64] `json:"io_write_ops"`

	// Warnings lists the sources that could not be read this cycle.
	Warnings []string `json:"warnings,omitempty"`
}

// Clone returns a deep copy of r.
func (r Report) Clone() Report {
	out := r
	out.Threads = maps.Clone(r.Threads)
	out.ThreadsStarted = slices.Clone(r.ThreadsStarted)
	out.ThreadsExited = slices.Clone(r.ThreadsExited)
	out.Warnings = slices.Clone(r.Warnings)
	return out
}

// SortedThreads returns the per-thread usage ordered by CPU (busiest
// first, unavailable last), then by tid.
func (r Report) SortedThreads() []ThreadUsage {
	out := slices.Collect(maps.Values(r.Threads))
	slices.SortFunc(out, func(a, b ThreadUsage) int {
		if c := cmp.Compare(b.CPU.Or(-1), a.CPU.Or(-1)); c != 0 {
			return c
		}
		return cmp.Compare(a.TID, b.TID)
	})
	return out
}
