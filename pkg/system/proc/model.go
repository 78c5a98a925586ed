//go:build linux

package proc

// ProcessStats holds the process-wide counters from /proc/<pid>/stat.
// CPU times are in clock ticks (see ClockTicks); memory in bytes.
type ProcessStats struct {
	UserTicks        uint64
	SystemTicks      uint64
	ChildUserTicks   uint64 // waited-for children
	ChildSystemTicks uint64
	StartTicks       uint64 // since boot
	NumThreads       int
	VirtualBytes     uint64
	ResidentBytes    uint64
}

// MemoryStatus holds the memory figures only /proc/<pid>/status exposes.
type MemoryStatus struct {
	SharedBytes       uint64 // RssFile + RssShmem
	SwapBytes         uint64
	ResidentPeakBytes uint64 // VmHWM
	VirtualPeakBytes  uint64 // VmPeak
}

// ThreadCounters holds cumulative CPU ticks of one thread since it was
// created. StartTicks identifies the thread across tid reuse.
type ThreadCounters struct {
	TID         int
	Name        string
	UserTicks   uint64
	SystemTicks uint64
	StartTicks  uint64
}

// DiskCounters holds the cumulative I/O counters from /proc/<pid>/io.
//
//	ReadBytes/WriteBytes      : bytes that hit the block layer
//	CancelledWriteBytes       : dirty page-cache bytes that were never written (truncated files)
//	ReadChars/WriteChars      : bytes passed to read(2)/write(2) and friends, cache hits included
//	ReadSyscalls/WriteSyscalls: number of read/write syscalls
type DiskCounters struct {
	ReadBytes           uint64
	WriteBytes          uint64
	CancelledWriteBytes uint64
	ReadChars           uint64
	WriteChars          uint64
	ReadSyscalls        uint64
	WriteSyscalls       uint64
}

// SystemCPU is the machine-wide CPU time from the aggregate line of
// /proc/stat, in seconds summed over all cores.
type SystemCPU struct {
	Busy  float64
	Total float64
}
