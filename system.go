package main

import (
	"fmt"
	"runtime"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
)

type SysInfo struct {
	Arch     string
	Hostname string
	Platform string
	CPUCount int
	CPUFreq  float64
	RAM      float64
}

func HostStat() SysInfo {
	hostStat, _ := host.Info()
	cpuStat, _ := cpu.Info()
	vmStat, _ := mem.VirtualMemory()
	totalFreq := 0.0
	for _, c := range cpuStat {
		totalFreq += c.Mhz
	}
	info := SysInfo{
		Arch:     runtime.GOARCH,
		Hostname: hostStat.Hostname,
		Platform: hostStat.Platform,
		CPUCount: len(cpuStat),
		RAM:      float64(vmStat.Total) / 1024 / 1024 / 1024,
	}
	if len(cpuStat) > 0 {
		info.CPUFreq = totalFreq / float64(len(cpuStat)) * 1000
	}
	return info
}

// HardwareLabel is the autodetected fallback for an empty 'hardware' config
// field.
func HardwareLabel() string {
	info := HostStat()
	return fmt.Sprintf("%v/%v, %v cpu, %.1f GB RAM", info.Platform, info.Arch, info.CPUCount, info.RAM)
}

// EnsureHardware fills the hardware label from the host probe only when the
// config left it blank.
func (c *Config) EnsureHardware() {
	if c.Hardware == "" {
		c.Hardware = HardwareLabel()
	}
}
