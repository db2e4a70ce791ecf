package system

import (
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
)

var startTime = time.Now()

// Status is the host/process snapshot served on the system status endpoint.
type Status struct {
	UptimeSeconds      int64   `json:"uptime_seconds"`
	CPUUsagePercent    float64 `json:"cpu_usage_percent"`
	MemoryUsagePercent float64 `json:"memory_usage_percent"`
	MemoryUsedBytes    uint64  `json:"memory_used_bytes"`
	MemoryTotalBytes   uint64  `json:"memory_total_bytes"`
	LoadAvg1m          float64 `json:"load_1m"`
	LoadAvg5m          float64 `json:"load_5m"`
	LoadAvg15m         float64 `json:"load_15m"`
}

// Collect gathers a best-effort snapshot; individual probe failures leave
// their fields zeroed rather than failing the endpoint.
func Collect() *Status {
	s := &Status{
		UptimeSeconds: int64(time.Since(startTime).Seconds()),
	}

	cpuPercent, err := cpu.Percent(0, false)
	if err == nil && len(cpuPercent) > 0 {
		s.CPUUsagePercent = cpuPercent[0]
	}

	memStats, err := mem.VirtualMemory()
	if err == nil {
		s.MemoryUsagePercent = memStats.UsedPercent
		s.MemoryUsedBytes = memStats.Used
		s.MemoryTotalBytes = memStats.Total
	}

	loadStats, err := load.Avg()
	if err == nil {
		s.LoadAvg1m = loadStats.Load1
		s.LoadAvg5m = loadStats.Load5
		s.LoadAvg15m = loadStats.Load15
	}

	return s
}
