//go:build linux

package cgroup

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/prometheus/procfs"
)

// DefaultRoot is where the cgroup filesystem is mounted on most systems.
const DefaultRoot = "/sys/fs/cgroup"

// v1 reports "no limit" as the largest page-aligned int64; anything above
// this threshold is treated as unlimited.
const v1UnlimitedThreshold = 1 << 62

// ErrUnlimited indicates that the cgroup has no memory limit configured.
var ErrUnlimited = errors.New("cgroup: memory unlimited")

type Version int

const (
	Unsupported Version = iota // non-Linux or no cgroup mounts
	V1                         // legacy multi-hierarchy cgroup v1
	V2                         // unified cgroup v2
	Hybrid                     // both v1 and v2 present
)

func (v Version) String() string {
	switch v {
	case V1:
		return "cgroup v1"
	case V2:
		return "cgroup v2"
	case Hybrid:
		return "cgroup hybrid"
	default:
		return "unsupported"
	}
}

// Detect returns the cgroup version and a human-readable detail string for
// the given mount table (see procfs.Proc.MountInfo).
func Detect(mounts []*procfs.MountInfo) (Version, string) {
	var v1Pts, v2Pts []string
	for _, m := range mounts {
		if m == nil {
			continue
		}
		switch m.FSType {
		case "cgroup2":
			v2Pts = append(v2Pts, m.MountPoint)
		case "cgroup":
			v1Pts = append(v1Pts, m.MountPoint)
		}
	}

	switch {
	case len(v1Pts) > 0 && len(v2Pts) > 0:
		return Hybrid, fmt.Sprintf("cgroup2 on %v; cgroup v1 on %v",
			strings.Join(v2Pts, ","), strings.Join(v1Pts, ","))
	case len(v2Pts) > 0:
		return V2, fmt.Sprintf("cgroup2 on %v", strings.Join(v2Pts, ","))
	case len(v1Pts) > 0:
		return V1, fmt.Sprintf("cgroup v1 on %v", strings.Join(v1Pts, ","))
	default:
		return Unsupported, "no cgroup mounts found"
	}
}

// MemoryLimit resolves the memory limit in bytes for a process given its
// /proc/<pid>/cgroup entries and the cgroup mount root.
//
// The v1 memory controller is preferred when present, otherwise the v2
// unified entry ("0::/path") is used. Inside a cgroup namespace the path in
// /proc/<pid>/cgroup may not exist under root, so the root-level file is
// tried as a fallback.
func MemoryLimit(root string, groups []procfs.Cgroup) (uint64, error) {
	var candidates []string
	for _, g := range groups {
		if slices.Contains(g.Controllers, "memory") {
			candidates = append(candidates,
				filepath.Join(root, "memory", g.Path, "memory.limit_in_bytes"),
				filepath.Join(root, "memory", "memory.limit_in_bytes"))
		}
	}
	for _, g := range groups {
		if g.HierarchyID == 0 && len(g.Controllers) == 0 {
			candidates = append(candidates,
				filepath.Join(root, g.Path, "memory.max"),
				filepath.Join(root, "memory.max"))
		}
	}
	if len(candidates) == 0 {
		return 0, fmt.Errorf("cgroup: no memory controller: %w", os.ErrNotExist)
	}

	var firstErr error
	for _, path := range candidates {
		limit, err := readLimit(path)
		if err == nil || errors.Is(err, ErrUnlimited) {
			return limit, err
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return 0, firstErr
}

func readLimit(path string) (uint64, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	s := strings.TrimSpace(string(b))
	if s == "max" {
		return 0, ErrUnlimited
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("cgroup: parse %s: %w", path, err)
	}
	if v >= v1UnlimitedThreshold {
		return 0, ErrUnlimited
	}
	return v, nil
}
