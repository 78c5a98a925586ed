//go:build linux

package proc

import (
	"os"
	"strconv"
)

// ClockTicks returns USER_HZ, the unit of every CPU counter in /proc.
// CLK_TCK in the environment overrides it; otherwise 100, which is what
// Linux exports to userspace on every mainstream architecture.
func ClockTicks() int {
	v, _ := strconv.Atoi(os.Getenv("CLK_TCK"))
	if v > 0 {
		return v
	}
	return 100
}

// PageSize returns the system memory page size in bytes.
// Like ClockTicks, it first checks an env override (PAGE_SIZE)
// to ease testing, then falls back to os.Getpagesize().
func PageSize() int {
	if ps := os.Getenv("PAGE_SIZE"); ps != "" {
		if v, _ := strconv.Atoi(ps); v > 0 {
			return v
		}
	}
	return os.Getpagesize()
}

// nonNegative converts a signed kernel counter to uint64, mapping the
// (never expected) negative values to zero.
func nonNegative(v int64) uint64 {
	if v < 0 {
		return 0
	}
	return uint64(v)
}
