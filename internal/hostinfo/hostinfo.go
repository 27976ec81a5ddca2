package hostinfo

import (
	"fmt"
	"os"
	"runtime"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// Info describes the node the scheduler allocated. Batch jobs land on
// arbitrary hosts, so the supervisor records what it got.
type Info struct {
	Hostname   string `json:"hostname"`
	OS         string `json:"os"`
	Arch       string `json:"arch"`
	CPUModel   string `json:"cpu_model"`
	CPUThreads int    `json:"cpu_threads"`
	RAMBytes   uint64 `json:"ram_bytes"`
	RAMFree    uint64 `json:"ram_free_bytes"`
}

// Detect probes the current host. Probe failures degrade to partial
// info rather than erroring: host info is advisory, never load-bearing.
func Detect() *Info {
	info := &Info{
		OS:         runtime.GOOS,
		Arch:       runtime.GOARCH,
		CPUThreads: runtime.NumCPU(),
		CPUModel:   "Unknown",
	}

	if hostname, err := os.Hostname(); err == nil {
		info.Hostname = hostname
	}

	if cpus, err := cpu.Info(); err == nil && len(cpus) > 0 {
		info.CPUModel = cpus[0].ModelName
	}

	if vm, err := mem.VirtualMemory(); err == nil {
		info.RAMBytes = vm.Total
		info.RAMFree = vm.Available
	}

	return info
}

// FormatRAM formats bytes in a human-readable way.
func FormatRAM(bytes uint64) string {
	const gb = 1024 * 1024 * 1024
	const mb = 1024 * 1024

	if bytes >= gb {
		return fmt.Sprintf("%.1f GB", float64(bytes)/float64(gb))
	}
	if bytes >= mb {
		return fmt.Sprintf("%.0f MB", float64(bytes)/float64(mb))
	}
	return fmt.Sprintf("%d bytes", bytes)
}
