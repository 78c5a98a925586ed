//go:build linux

package proc

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/prometheus/procfs"

	"github.com/ja7ad/selfmeter/pkg/system/cgroup"
)

// Reader reads point-in-time counters for a single process.
//
// Every method goes to /proc on each call and keeps no state between calls,
// so each result reflects the kernel at call time and methods may fail
// independently of each other.
type Reader struct {
	fs         procfs.FS
	pid        int
	pageSize   uint64
	cgroupRoot string
}

// Option configures a Reader.
type Option func(*Reader)

// WithCgroupRoot overrides the cgroup filesystem mount point used by
// MemoryLimit. Defaults to cgroup.DefaultRoot.
func WithCgroupRoot(root string) Option {
	return func(r *Reader) {
		if root != "" {
			r.cgroupRoot = root
		}
	}
}

// Self returns a Reader for the calling process.
func Self(opts ...Option) (*Reader, error) {
	return NewReader(os.Getpid(), opts...)
}

// NewReader returns a Reader for pid on the default /proc mount.
func NewReader(pid int, opts ...Option) (*Reader, error) {
	return NewReaderFS(procfs.DefaultMountPoint, pid, opts...)
}

// NewReaderFS returns a Reader for pid on the proc filesystem mounted at
// root. The process must exist at construction time.
func NewReaderFS(root string, pid int, opts ...Option) (*Reader, error) {
	pfs, err := procfs.NewFS(root)
	if err != nil {
		return nil, classify(root, err)
	}
	if _, err := pfs.Proc(pid); err != nil {
		return nil, classify(strconv.Itoa(pid), err)
	}
	r := &Reader{
		fs:         pfs,
		pid:        pid,
		pageSize:   uint64(PageSize()),
		cgroupRoot: cgroup.DefaultRoot,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// PID returns the process id this Reader observes.
func (r *Reader) PID() int { return r.pid }

func (r *Reader) proc() (procfs.Proc, error) {
	p, err := r.fs.Proc(r.pid)
	if err != nil {
		return procfs.Proc{}, classify("pid", err)
	}
	return p, nil
}

// ProcessStats parses /proc/<pid>/stat.
//
// The comm field (2nd) is in parens and may contain spaces; procfs locates
// the last ')' before splitting, so odd thread names do not shift fields.
func (r *Reader) ProcessStats() (ProcessStats, error) {
	p, err := r.proc()
	if err != nil {
		return ProcessStats{}, err
	}
	st, err := p.Stat()
	if err != nil {
		return ProcessStats{}, classify("stat", err)
	}
	return ProcessStats{
		UserTicks:        uint64(st.UTime),
		SystemTicks:      uint64(st.STime),
		ChildUserTicks:   nonNegative(int64(st.CUTime)),
		ChildSystemTicks: nonNegative(int64(st.CSTime)),
		StartTicks:       uint64(st.Starttime),
		NumThreads:       st.NumThreads,
		VirtualBytes:     uint64(st.VSize),
		ResidentBytes:    nonNegative(int64(st.RSS)) * r.pageSize,
	}, nil
}

// MemoryStatus parses /proc/<pid>/status for the figures stat does not
// carry. Lines procfs does not know are ignored.
func (r *Reader) MemoryStatus() (MemoryStatus, error) {
	p, err := r.proc()
	if err != nil {
		return MemoryStatus{}, err
	}
	st, err := p.NewStatus()
	if err != nil {
		return MemoryStatus{}, classify("status", err)
	}
	return MemoryStatus{
		SharedBytes:       st.RssFile + st.RssShmem,
		SwapBytes:         st.VmSwap,
		ResidentPeakBytes: st.VmHWM,
		VirtualPeakBytes:  st.VmPeak,
	}, nil
}

// ThreadIDs lists /proc/<pid>/task. The result is a point-in-time listing:
// any of the returned threads may exit before it is read.
func (r *Reader) ThreadIDs() ([]int, error) {
	threads, err := r.fs.AllThreads(r.pid)
	if err != nil {
		return nil, classify("task", err)
	}
	out := make([]int, 0, len(threads))
	for _, t := range threads {
		out = append(out, t.PID)
	}
	return out, nil
}

// ThreadStats parses /proc/<pid>/task/<tid>/stat. A thread that exited
// since ThreadIDs yields an error matching ErrNotFound.
func (r *Reader) ThreadStats(tid int) (ThreadCounters, error) {
	op := fmt.Sprintf("task/%d/stat", tid)
	t, err := r.fs.Thread(r.pid, tid)
	if err != nil {
		return ThreadCounters{}, classify(op, err)
	}
	st, err := t.Stat()
	if err != nil {
		return ThreadCounters{}, classify(op, err)
	}
	return ThreadCounters{
		TID:         tid,
		Name:        st.Comm,
		UserTicks:   uint64(st.UTime),
		SystemTicks: uint64(st.STime),
		StartTicks:  uint64(st.Starttime),
	}, nil
}

// DiskStats parses /proc/<pid>/io.
//
// Note: the file is only readable by the owner (and may be hidden entirely
// in restricted containers); callers should expect ErrPermission.
func (r *Reader) DiskStats() (DiskCounters, error) {
	p, err := r.proc()
	if err != nil {
		return DiskCounters{}, err
	}
	io, err := p.IO()
	if err != nil {
		return DiskCounters{}, classify("io", err)
	}
	return DiskCounters{
		ReadBytes:           io.ReadBytes,
		WriteBytes:          io.WriteBytes,
		CancelledWriteBytes: nonNegative(io.CancelledWriteBytes),
		ReadChars:           io.RChar,
		WriteChars:          io.WChar,
		ReadSyscalls:        io.SyscR,
		WriteSyscalls:       io.SyscW,
	}, nil
}

// SystemCPU parses the aggregate "cpu" line of /proc/stat.
//
//	busy  = user + nice + system + irq + softirq + steal
//	total = busy + idle + iowait
func (r *Reader) SystemCPU() (SystemCPU, error) {
	st, err := r.fs.Stat()
	if err != nil {
		return SystemCPU{}, classify("/proc/stat", err)
	}
	c := st.CPUTotal
	busy := c.User + c.Nice + c.System + c.IRQ + c.SoftIRQ + c.Steal
	return SystemCPU{Busy: busy, Total: busy + c.Idle + c.Iowait}, nil
}

// MemoryLimit returns the memory limit of the cgroup the process lives in.
// It returns an error matching cgroup.ErrUnlimited when no limit is set.
func (r *Reader) MemoryLimit() (uint64, error) {
	p, err := r.proc()
	if err != nil {
		return 0, err
	}
	groups, err := p.Cgroups()
	if err != nil {
		return 0, classify("cgroup", err)
	}
	limit, err := cgroup.MemoryLimit(r.cgroupRoot, groups)
	if err != nil {
		if errors.Is(err, cgroup.ErrUnlimited) {
			return 0, err
		}
		return 0, classify("memory limit", err)
	}
	return limit, nil
}

// CgroupMode reports which cgroup hierarchy is mounted in the process's
// mount namespace.
func (r *Reader) CgroupMode() (cgroup.Version, string, error) {
	p, err := r.proc()
	if err != nil {
		return cgroup.Unsupported, "", err
	}
	mounts, err := p.MountInfo()
	if err != nil {
		return cgroup.Unsupported, "", classify("mountinfo", err)
	}
	ver, detail := cgroup.Detect(mounts)
	return ver, detail, nil
}
