//go:build linux

package meter

import (
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/ja7ad/selfmeter/pkg/system/proc"
)

// fakeSource serves canned counters; tests mutate it between samples.
type fakeSource struct {
	mu sync.Mutex

	process    proc.ProcessStats
	processErr error
	memory     proc.MemoryStatus
	memoryErr  error
	threads    map[int]proc.ThreadCounters
	threadsErr error
	threadErr  map[int]error // per-tid ThreadStats failure
	disk       proc.DiskCounters
	diskErr    error
	system     proc.SystemCPU
	systemErr  error
	limit      uint64
	limitErr   error
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		process: proc.ProcessStats{
			UserTicks:     100,
			SystemTicks:   50,
			NumThreads:    2,
			VirtualBytes:  64 << 20,
			ResidentBytes: 8 << 20,
		},
		memory: proc.MemoryStatus{
			SharedBytes:       2 << 20,
			ResidentPeakBytes: 10 << 20,
			VirtualPeakBytes:  70 << 20,
		},
		threads: map[int]proc.ThreadCounters{
			10: {TID: 10, Name: "main", UserTicks: 80, SystemTicks: 40, StartTicks: 1000},
			11: {TID: 11, Name: "worker", UserTicks: 20, SystemTicks: 10, StartTicks: 1005},
		},
		threadErr: map[int]error{},
		disk:      proc.DiskCounters{ReadBytes: 4096, WriteBytes: 8192, ReadChars: 10000, WriteChars: 20000, ReadSyscalls: 10, WriteSyscalls: 20},
		system:    proc.SystemCPU{Busy: 100, Total: 400},
		limit:     256 << 20,
	}
}

func (f *fakeSource) update(fn func(f *fakeSource)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

func (f *fakeSource) ProcessStats() (proc.ProcessStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.process, f.processErr
}

func (f *fakeSource) MemoryStatus() (proc.MemoryStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.memory, f.memoryErr
}

func (f *fakeSource) ThreadIDs() ([]int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.threadsErr != nil {
		return nil, f.threadsErr
	}
	ids := slices.Collect(maps.Keys(f.threads))
	for tid := range f.threadErr {
		if _, ok := f.threads[tid]; !ok {
			ids = append(ids, tid)
		}
	}
	slices.Sort(ids)
	return ids, nil
}

func (f *fakeSource) ThreadStats(tid int) (proc.ThreadCounters, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.threadErr[tid]; err != nil {
		return proc.ThreadCounters{}, err
	}
	tc, ok := f.threads[tid]
	if !ok {
		return proc.ThreadCounters{}, &proc.ReadError{Op: "task/stat", Kind: proc.NotFound}
	}
	return tc, nil
}

func (f *fakeSource) DiskStats() (proc.DiskCounters, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.disk, f.diskErr
}

func (f *fakeSource) SystemCPU() (proc.SystemCPU, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.system, f.systemErr
}

func (f *fakeSource) MemoryLimit() (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.limit, f.limitErr
}

// fakeClock advances by step on every reading.
type fakeClock struct {
	mu   sync.Mutex
	t    time.Time
	step time.Duration
}

func newFakeClock(step time.Duration) *fakeClock {
	return &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), step: step}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.t
	c.t = c.t.Add(c.step)
	return now
}
