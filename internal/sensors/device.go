package sensors

import (
	"context"
	"fmt"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
)

const bytesPerGB = 1024 * 1024 * 1024

// DeviceReader reports host resource utilization via gopsutil.
type DeviceReader struct {
	stream

	// DiskPath is the mount point to measure (default: "/")
	DiskPath string

	// CPUSample is the CPU measurement window (default: 100ms)
	CPUSample time.Duration
}

// NewDeviceReader creates a device-state reader with default settings.
func NewDeviceReader() *DeviceReader {
	return &DeviceReader{DiskPath: "/", CPUSample: 100 * time.Millisecond}
}

func (r *DeviceReader) Kind() Kind { return KindDeviceState }

// FetchOnce samples memory, CPU, disk and host info. Memory is required; the
// other metrics are best effort.
func (r *DeviceReader) FetchOnce(ctx context.Context) (Reading, error) {
	var state DeviceState

	v, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: memory: %w", ErrUnavailable, err)
	}
	state.MemoryUsedGB = float64(v.Used) / bytesPerGB
	state.MemoryTotalGB = float64(v.Total) / bytesPerGB
	state.MemoryPercent = v.UsedPercent

	sample := r.CPUSample
	if sample <= 0 {
		sample = 100 * time.Millisecond
	}
	if percentages, err := cpu.PercentWithContext(ctx, sample, false); err == nil && len(percentages) > 0 {
		state.CPUPercent = percentages[0]
	}

	path := r.DiskPath
	if path == "" {
		path = "/"
	}
	if d, err := disk.UsageWithContext(ctx, path); err == nil {
		state.DiskUsedGB = float64(d.Used) / bytesPerGB
		state.DiskTotalGB = float64(d.Total) / bytesPerGB
		state.DiskPercent = d.UsedPercent
	}

	if info, err := host.InfoWithContext(ctx); err == nil {
		state.Hostname = info.Hostname
		state.Platform = info.Platform
		state.UptimeSeconds = int64(info.Uptime)
	}

	return &state, nil
}
