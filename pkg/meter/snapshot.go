//go:build linux

package meter

import (
	"slices"
	"time"

	"github.com/ja7ad/selfmeter/pkg/system/proc"
)

// ThreadID identifies one thread over its lifetime. The kernel recycles tids
// once a thread exits; the start time (clock ticks since boot) tells a
// recycled tid apart from the thread that used it before.
type ThreadID struct {
	TID   int
	Start uint64
}

// ThreadSet is an unordered set of threads.
type ThreadSet map[ThreadID]struct{}

// Has reports whether id is in the set.
func (s ThreadSet) Has(id ThreadID) bool {
	_, ok := s[id]
	return ok
}

// TIDs returns the kernel thread ids in ascending order.
func (s ThreadSet) TIDs() []int {
	out := make([]int, 0, len(s))
	for id := range s {
		out = append(out, id.TID)
	}
	slices.Sort(out)
	return out
}

// Snapshot holds the raw counters read in one sampling cycle. A Snapshot is
// never modified after the cycle that created it; its maps are not shared.
//
// The *OK flags record whether the optional sources were readable. Process
// counters are mandatory: a cycle that cannot read them produces no Snapshot.
type Snapshot struct {
	// Timestamp carries the monotonic clock reading used for elapsed time.
	Timestamp time.Time

	Process proc.ProcessStats

	Memory   proc.MemoryStatus
	MemoryOK bool

	Threads   map[ThreadID]proc.ThreadCounters
	ThreadsOK bool

	Disk   proc.DiskCounters
	DiskOK bool

	System   proc.SystemCPU
	SystemOK bool

	MemoryLimit   uint64
	MemoryLimitOK bool
}

// ThreadSet returns the identities of all threads in the snapshot.
func (s *Snapshot) ThreadSet() ThreadSet {
	out := make(ThreadSet, len(s.Threads))
	for id := range s.Threads {
		out[id] = struct{}{}
	}
	return out
}
