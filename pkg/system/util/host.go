//go:build linux

package util

import (
	"fmt"
	"os"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/ja7ad/selfmeter/pkg/types"
)

// SystemSummary returns host name, kernel, CPU and memory descriptions for
// report headers. Fields that cannot be read are reported as "unknown".
func SystemSummary() (hostname, kernel, cpus, memory string) {
	hostname, kernel, cpus, memory = "unknown", "unknown", "unknown", "unknown"

	if info, err := host.Info(); err == nil {
		hostname = info.Hostname
		kernel = fmt.Sprintf("%s %s (%s)", info.OS, info.KernelVersion, info.KernelArch)
	} else if h, err := os.Hostname(); err == nil {
		hostname = h
	}

	logical, errL := cpu.Counts(true)
	physical, errP := cpu.Counts(false)
	switch {
	case errL == nil && errP == nil && physical > 0:
		cpus = fmt.Sprintf("%d logical / %d physical", logical, physical)
	case errL == nil:
		cpus = fmt.Sprintf("%d logical", logical)
	}

	if vm, err := mem.VirtualMemory(); err == nil {
		memory = fmt.Sprintf("%s total, %s available",
			types.ToBytes(vm.Total).Humanized(), types.ToBytes(vm.Available).Humanized())
	}
	return hostname, kernel, cpus, memory
}
