//go:build linux

package meter

import (
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"github.com/ja7ad/selfmeter/pkg/system/cgroup"
	"github.com/ja7ad/selfmeter/pkg/system/proc"
	"github.com/ja7ad/selfmeter/pkg/system/util"
)

// Source supplies raw counters for one process. *proc.Reader is the
// production implementation.
type Source interface {
	ProcessStats() (proc.ProcessStats, error)
	MemoryStatus() (proc.MemoryStatus, error)
	ThreadIDs() ([]int, error)
	ThreadStats(tid int) (proc.ThreadCounters, error)
	DiskStats() (proc.DiskCounters, error)
	SystemCPU() (proc.SystemCPU, error)
	MemoryLimit() (uint64, error)
}

var _ Source = (*proc.Reader)(nil)

// Stats describes the meter itself.
type Stats struct {
	Samples      uint64
	Failures     uint64
	KnownThreads int
	HistoryLen   int
	HistoryCap   int
}

// Meter samples a process and keeps the latest report and a bounded history.
//
// Only Sample touches the kernel, and only when called. Meter starts no
// goroutines. It is safe for concurrent use: concurrent Sample calls run one
// after another, and Latest/History never block on I/O other than waiting
// for an in-flight Sample.
type Meter struct {
	src         Source
	tickRate    int
	historySize int
	alpha       float64
	logger      *slog.Logger
	now         func() time.Time

	mu       sync.RWMutex
	registry *Registry
	history  *History
	ema      *util.EMA
	prev     *Snapshot
	latest   Report
	seq      uint64
	stats    Stats
	degraded map[string]bool
}

// New returns a Meter for the calling process unless WithSource is given.
func New(opts ...Option) (*Meter, error) {
	m := &Meter{
		historySize: DefaultHistorySize,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}

	if m.historySize <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrBadHistorySize, m.historySize)
	}
	if m.alpha < 0 || m.alpha > 1 {
		return nil, fmt.Errorf("%w: %g", ErrBadSmoothing, m.alpha)
	}
	if m.tickRate < 0 {
		return nil, fmt.Errorf("%w: %d", ErrBadClockTicks, m.tickRate)
	}
	if m.tickRate == 0 {
		m.tickRate = proc.ClockTicks()
	}
	if m.logger == nil {
		m.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if m.now == nil {
		m.now = time.Now
	}
	if m.src == nil {
		r, err := proc.Self()
		if err != nil {
			return nil, fmt.Errorf("meter: open self: %w", err)
		}
		m.src = r
	}

	m.registry = NewRegistry()
	m.history = NewHistory(m.historySize)
	m.degraded = make(map[string]bool)
	if m.alpha > 0 {
		m.ema = util.NewEMA(m.alpha)
	}
	return m, nil
}

// Sample reads the current counters, computes a Report against the previous
// sample and records it. The very first Sample has no baseline, so all of
// its rates are unavailable.
//
// If the process counters cannot be read, Sample returns a *SampleError and
// leaves Latest and History unchanged. Every other source is optional: a
// failure there marks the affected fields unavailable and is listed in
// Report.Warnings.
func (m *Meter) Sample() (Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap, warnings, err := m.collect()
	if err != nil {
		m.stats.Failures++
		m.logger.Warn("sample failed", "err", err)
		return Report{}, &SampleError{Err: err}
	}

	rep := Compute(m.prev, snap, m.tickRate)
	m.seq++
	rep.Seq = m.seq
	rep.Warnings = warnings

	if snap.ThreadsOK {
		appeared, vanished := m.registry.Reconcile(snap.ThreadSet())
		rep.ThreadsStarted = appeared.TIDs()
		rep.ThreadsExited = vanished.TIDs()
		if len(appeared) > 0 || len(vanished) > 0 {
			m.logger.Debug("thread churn", "started", rep.ThreadsStarted, "exited", rep.ThreadsExited)
		}
	}
	for tid, tu := range rep.Threads {
		tu.Name = m.registry.Name(tid, tu.Name)
		rep.Threads[tid] = tu
	}

	if m.ema != nil {
		switch {
		case rep.CPU.Available:
			rep.CPUSmoothed = Avail(m.ema.Next(rep.CPU.Value))
		case m.prev != nil:
			// counters jumped; don't average across the discontinuity
			m.ema.Reset()
		}
	}

	m.prev = &snap
	m.latest = rep
	m.history.Push(rep)
	m.stats.Samples++

	m.logger.Debug("sample",
		"seq", rep.Seq,
		"interval", rep.Interval,
		"cpu", rep.CPU.Value,
		"rss", rep.Resident.Value,
		"threads", len(rep.Threads),
		"warnings", len(rep.Warnings),
	)
	return rep.Clone(), nil
}

func (m *Meter) collect() (Snapshot, []string, error) {
	snap := Snapshot{Timestamp: m.now()}
	ps, err := m.src.ProcessStats()
	if err != nil {
		return Snapshot{}, nil, err
	}
	snap.Process = ps

	var warnings []string
	fail := func(field string, err error) {
		warnings = append(warnings, fmt.Sprintf("%s: %v", field, err))
		m.markDegraded(field, err)
	}

	if ms, err := m.src.MemoryStatus(); err != nil {
		fail("memory status", err)
	} else {
		snap.Memory, snap.MemoryOK = ms, true
		m.markHealthy("memory status")
	}

	if tids, err := m.src.ThreadIDs(); err != nil {
		fail("threads", err)
	} else {
		snap.Threads = make(map[ThreadID]proc.ThreadCounters, len(tids))
		snap.ThreadsOK = true
		m.markHealthy("threads")
		var threadErr error
		for _, tid := range tids {
			tc, err := m.src.ThreadStats(tid)
			switch {
			case errors.Is(err, proc.ErrNotFound):
				// exited between listing and reading
				continue
			case err != nil:
				warnings = append(warnings, fmt.Sprintf("thread %d: %v", tid, err))
				threadErr = err
				continue
			}
			snap.Threads[ThreadID{TID: tid, Start: tc.StartTicks}] = tc
		}
		// one state for all threads so churning tids don't pile up keys
		if threadErr != nil {
			m.markDegraded("thread stats", threadErr)
		} else {
			m.markHealthy("thread stats")
		}
	}

	if dc, err := m.src.DiskStats(); err != nil {
		fail("disk", err)
	} else {
		snap.Disk, snap.DiskOK = dc, true
		m.markHealthy("disk")
	}

	if sc, err := m.src.SystemCPU(); err != nil {
		fail("system cpu", err)
	} else {
		snap.System, snap.SystemOK = sc, true
		m.markHealthy("system cpu")
	}

	switch limit, err := m.src.MemoryLimit(); {
	case errors.Is(err, cgroup.ErrUnlimited):
		m.markHealthy("memory limit")
	case err != nil:
		fail("memory limit", err)
	default:
		snap.MemoryLimit, snap.MemoryLimitOK = limit, true
		m.markHealthy("memory limit")
	}

	return snap, warnings, nil
}

// markDegraded logs at Warn the first time a source fails and at Debug
// while it keeps failing.
func (m *Meter) markDegraded(field string, err error) {
	if m.degraded[field] {
		m.logger.Debug("source unavailable", "source", field, "err", err)
		return
	}
	m.degraded[field] = true
	m.logger.Warn("source unavailable", "source", field, "err", err)
}

func (m *Meter) markHealthy(field string) {
	if m.degraded[field] {
		delete(m.degraded, field)
		m.logger.Info("source recovered", "source", field)
	}
}

// Latest returns the most recent report, or the zero Report before the
// first successful Sample. It does no I/O.
func (m *Meter) Latest() Report {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.latest.Clone()
}

// History yields the retained reports oldest first. The sequence is fixed
// when History is called and may be ranged over any number of times.
func (m *Meter) History() iter.Seq[Report] {
	m.mu.RLock()
	items := m.history.All()
	m.mu.RUnlock()
	return func(yield func(Report) bool) {
		for _, r := range items {
			if !yield(r.Clone()) {
				return
			}
		}
	}
}

// TrackThread labels tid in subsequent reports. The label is dropped once
// the thread exits.
func (m *Meter) TrackThread(tid int, name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.registry.SetName(tid, name)
}

// TrackCurrentThread labels the OS thread the caller runs on and returns
// its tid. Goroutines migrate between threads, so callers should hold
// runtime.LockOSThread for the label to stay meaningful.
func (m *Meter) TrackCurrentThread(name string) int {
	tid := unix.Gettid()
	m.TrackThread(tid, name)
	return tid
}

func (m *Meter) UntrackThread(tid int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.registry.Forget(tid)
}

// KnownThreads returns the tids seen at the last sample, ascending.
func (m *Meter) KnownThreads() []int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.registry.Known().TIDs()
}

func (m *Meter) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st := m.stats
	st.KnownThreads = m.registry.Len()
	st.HistoryLen = m.history.Len()
	st.HistoryCap = m.history.Cap()
	return st
}
