//go:build linux

package meter

import (
	"github.com/ja7ad/selfmeter/pkg/system/util"
	"github.com/ja7ad/selfmeter/pkg/types"
)

// Compute derives a Report from two consecutive snapshots. prev is nil for
// the first sample, in which case only the absolute memory figures of cur
// are available.
//
// CPU rates are clock-tick deltas divided by tickRate and by the elapsed
// wall time, so 1.0 means one core fully busy. A counter that went
// backwards (wraparound or reset) makes its metric unavailable for this
// interval. Compute does no I/O and reads no clock.
func Compute(prev *Snapshot, cur Snapshot, tickRate int) Report {
	r := Report{Timestamp: cur.Timestamp}

	r.Resident = Avail(types.ToBytes(cur.Process.ResidentBytes))
	r.Virtual = Avail(types.ToBytes(cur.Process.VirtualBytes))
	if cur.MemoryOK {
		r.Shared = Avail(types.ToBytes(cur.Memory.SharedBytes))
		r.Swap = Avail(types.ToBytes(cur.Memory.SwapBytes))
		r.ResidentPeak = Avail(types.ToBytes(cur.Memory.ResidentPeakBytes))
		r.VirtualPeak = Avail(types.ToBytes(cur.Memory.VirtualPeakBytes))
	}
	if cur.MemoryLimitOK {
		r.Limit = Avail(types.ToBytes(cur.MemoryLimit))
	}
	if cur.ThreadsOK {
		r.Threads = make(map[int]ThreadUsage, len(cur.Threads))
		for id, tc := range cur.Threads {
			r.Threads[id.TID] = ThreadUsage{TID: id.TID, Name: tc.Name}
		}
	}

	if prev == nil || tickRate <= 0 {
		return r
	}
	elapsed := cur.Timestamp.Sub(prev.Timestamp)
	if elapsed <= 0 {
		return r
	}
	r.Interval = elapsed
	secs := elapsed.Seconds()
	hz := float64(tickRate)

	// ticks sums the per-counter deltas; any counter going backwards
	// poisons the sum.
	ticks := func(pairs ...uint64) (float64, bool) {
		var sum uint64
		for i := 0; i+1 < len(pairs); i += 2 {
			d, ok := util.CounterDelta(pairs[i], pairs[i+1])
			if !ok {
				return 0, false
			}
			sum += d
		}
		return float64(sum) / hz / secs, true
	}
	cpu := func(pairs ...uint64) Metric[float64] {
		if v, ok := ticks(pairs...); ok {
			return Avail(v)
		}
		return Unavailable[float64]()
	}
	perSec := func(now, before uint64) Metric[float64] {
		d, ok := util.CounterDelta(now, before)
		if !ok {
			return Unavailable[float64]()
		}
		return Avail(float64(d) / secs)
	}

	cp, pp := cur.Process, prev.Process
	r.CPU = cpu(cp.UserTicks, pp.UserTicks, cp.SystemTicks, pp.SystemTicks)
	r.CPUWithChildren = cpu(
		cp.UserTicks, pp.UserTicks,
		cp.SystemTicks, pp.SystemTicks,
		cp.ChildUserTicks, pp.ChildUserTicks,
		cp.ChildSystemTicks, pp.ChildSystemTicks,
	)

	if cur.ThreadsOK && prev.ThreadsOK {
		var total float64
		measured := false
		for id, tc := range cur.Threads {
			before, ok := prev.Threads[id]
			if !ok {
				continue
			}
			u := cpu(tc.UserTicks, before.UserTicks)
			s := cpu(tc.SystemTicks, before.SystemTicks)
			tu := r.Threads[id.TID]
			tu.User, tu.System = u, s
			if u.Available && s.Available {
				tu.CPU = Avail(u.Value + s.Value)
				total += tu.CPU.Value
				measured = true
			}
			r.Threads[id.TID] = tu
		}
		if measured {
			r.ThreadsCPU = Avail(total)
		}
	}

	if cur.DiskOK && prev.DiskOK {
		cd, pd := cur.Disk, prev.Disk
		r.DiskRead = perSec(cd.ReadBytes, pd.ReadBytes)
		r.DiskWrite = perSec(cd.WriteBytes, pd.WriteBytes)
		r.DiskCancelled = perSec(cd.CancelledWriteBytes, pd.CancelledWriteBytes)
		r.IORead = perSec(cd.ReadChars, pd.ReadChars)
		r.IOWrite = perSec(cd.WriteChars, pd.WriteChars)
		r.IOReadOps = perSec(cd.ReadSyscalls, pd.ReadSyscalls)
		r.IOWriteOps = perSec(cd.WriteSyscalls, pd.WriteSyscalls)
	}

	if cur.SystemOK && prev.SystemOK {
		busy := cur.System.Busy - prev.System.Busy
		total := cur.System.Total - prev.System.Total
		if busy >= 0 && total > 0 && busy <= total {
			r.SystemCPU = Avail(util.Clamp01(util.SafeDiv(busy, total)))
		}
	}

	return r
}
