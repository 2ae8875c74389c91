package services

import (
	"context"
	"fmt"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/mem"
)

type SystemStatus struct {
	CPUPercent    float64
	MemoryPercent float64
	DiskPercent   float64
}

// HostMetrics samples CPU, memory and root disk usage.
type HostMetrics struct {
	sample   time.Duration
	diskPath string
}

func NewHostMetrics() *HostMetrics {
	return &HostMetrics{sample: time.Second, diskPath: "/"}
}

func (h *HostMetrics) Status(ctx context.Context) (SystemStatus, error) {
	cpus, err := cpu.PercentWithContext(ctx, h.sample, false)
	if err != nil {
		return SystemStatus{}, fmt.Errorf("cpu percent: %w", err)
	}
	if len(cpus) == 0 {
		return SystemStatus{}, fmt.Errorf("cpu percent: no samples")
	}
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return SystemStatus{}, fmt.Errorf("virtual memory: %w", err)
	}
	du, err := disk.UsageWithContext(ctx, h.diskPath)
	if err != nil {
		return SystemStatus{}, fmt.Errorf("disk usage %s: %w", h.diskPath, err)
	}
	return SystemStatus{
		CPUPercent:    cpus[0],
		MemoryPercent: vm.UsedPercent,
		DiskPercent:   du.UsedPercent,
	}, nil
}
