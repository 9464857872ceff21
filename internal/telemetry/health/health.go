// Package health collects host resource utilization for the agent's
// heartbeat/status reporting, wiring up the gopsutil collection the
// teacher's own metrics package left as a zero-value stub.
package health

import (
	"context"
	"fmt"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/mem"
)

// Snapshot is a point-in-time view of host resource usage, percentages in
// the range 0-100.
type Snapshot struct {
	CPUPercent  float64
	MemPercent  float64
	DiskPercent float64
}

// Collect samples CPU, memory, and disk utilization for watchPath's
// filesystem. CPU sampling blocks for the given interval to compute a
// delta; callers on a tight budget should pass a short interval (e.g.
// 200ms) rather than 0, which would otherwise return an instantaneous,
// noisy reading.
func Collect(ctx context.Context, watchPath string, interval time.Duration) (Snapshot, error) {
	cpuPercents, err := cpu.PercentWithContext(ctx, interval, false)
	if err != nil {
		return Snapshot{}, fmt.Errorf("sampling cpu: %w", err)
	}
	var cpuPct float64
	if len(cpuPercents) > 0 {
		cpuPct = cpuPercents[0]
	}

	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("sampling memory: %w", err)
	}

	if watchPath == "" {
		watchPath = "/"
	}
	du, err := disk.UsageWithContext(ctx, watchPath)
	if err != nil {
		return Snapshot{}, fmt.Errorf("sampling disk usage for %s: %w", watchPath, err)
	}

	return Snapshot{
		CPUPercent:  cpuPct,
		MemPercent:  vm.UsedPercent,
		DiskPercent: du.UsedPercent,
	}, nil
}
