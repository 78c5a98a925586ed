// Package proc reads point-in-time counters for a single Linux process from
// /proc. It is the raw input of the meter package and keeps no state of its
// own: every call re-reads the kernel.
//
// Overview
//
//   - Reader methods (one /proc file each):
//     ProcessStats : /proc/<pid>/stat          (CPU ticks, VSZ, RSS, threads)
//     MemoryStatus : /proc/<pid>/status        (shared, swap, peaks)
//     ThreadIDs    : /proc/<pid>/task          (live thread ids)
//     ThreadStats  : /proc/<pid>/task/<tid>/stat
//     DiskStats    : /proc/<pid>/io            (block and syscall I/O)
//     SystemCPU    : /proc/stat                (machine-wide busy/total)
//     MemoryLimit  : /proc/<pid>/cgroup + cgroup fs (memory.max / limit_in_bytes)
//
//   - Parsing is done by github.com/prometheus/procfs; this package maps its
//     types onto plain uint64 counters and classifies failures.
//
//   - Errors (errs.go): every failure is a *ReadError whose Kind is one of
//     NotFound, PermissionDenied or Malformed. Match with
//     errors.Is(err, ErrNotFound) and friends.
//
// Thread races
//
// Threads are enumerated and then read one by one. A thread can exit in
// between; its stat read then fails with ENOENT or ESRCH, both reported as
// ErrNotFound. Callers are expected to drop that thread for the cycle rather
// than fail.
//
// Units
//
//	CPU    : clock ticks (ClockTicks per second, CLK_TCK env overrides)
//	Memory : bytes (RSS pages multiplied by PageSize, PAGE_SIZE env overrides)
//	I/O    : bytes / syscall counts, cumulative since process start
package proc
