// Package sysinfo provides point-in-time reads of host state for crash
// reports: physical memory, CPU load, the process list, the computer name
// and GPU inventory.
//
// Every capture is a side-effect-free query and never fails as a whole:
// metrics that cannot be read on the current platform degrade to sentinel
// values the report layer renders as "unknown".
package sysinfo

import (
	"os"
	"sync"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
)

// Usage is a snapshot of memory and CPU consumption. A false Valid flag
// means the corresponding metrics could not be read and their values carry
// no meaning.
type Usage struct {
	TotalPhysicalMemory uint64
	UsedPhysicalMemory  uint64
	ProcessMemory       uint64
	MemoryValid         bool

	CPUPercent float64
	CPUValid   bool
}

// Provider captures host state. It keeps the CPU sampling state between
// calls so repeated captures report utilization since the previous one.
type Provider struct {
	mu sync.Mutex
}

// NewProvider creates a snapshot provider.
func NewProvider() *Provider {
	return &Provider{}
}

// CaptureUsage reads current memory and CPU usage. Individual metric
// failures clear the matching Valid flag instead of failing the capture.
func (p *Provider) CaptureUsage() Usage {
	p.mu.Lock()
	defer p.mu.Unlock()

	var u Usage

	if vm, err := mem.VirtualMemory(); err == nil {
		u.TotalPhysicalMemory = vm.Total
		u.UsedPhysicalMemory = vm.Used
		u.MemoryValid = true
	}

	if proc, err := process.NewProcess(int32(os.Getpid())); err == nil {
		if info, err := proc.MemoryInfo(); err == nil && info != nil {
			u.ProcessMemory = info.RSS
		} else {
			u.MemoryValid = false
		}
	} else {
		u.MemoryValid = false
	}

	// Zero interval reports utilization since the previous call; the first
	// call reports since boot, which is good enough for a one-shot report.
	if percents, err := cpu.Percent(0, false); err == nil && len(percents) > 0 {
		u.CPUPercent = percents[0]
		u.CPUValid = true
	}

	return u
}

// CaptureComputerName returns the host name, or "unknown" when it cannot be
// determined.
func (p *Provider) CaptureComputerName() string {
	if info, err := host.Info(); err == nil && info.Hostname != "" {
		return info.Hostname
	}
	if name, err := os.Hostname(); err == nil && name != "" {
		return name
	}
	return "unknown"
}

// CaptureProcessList returns a mapping from process name to process ID for
// every process visible to this one. Processes whose name cannot be read
// are skipped; a platform where enumeration fails yields an empty map.
func (p *Provider) CaptureProcessList() map[string]int32 {
	result := make(map[string]int32)

	procs, err := process.Processes()
	if err != nil {
		return result
	}
	for _, proc := range procs {
		name, err := proc.Name()
		if err != nil || name == "" {
			continue
		}
		result[name] = proc.Pid
	}
	return result
}
