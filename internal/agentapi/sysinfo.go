package agentapi

import (
	"context"

	"medialib/internal/logging"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/load"
	"github.com/shirou/gopsutil/v4/mem"
)

// systemSnapshot is a point-in-time host load reading.
type systemSnapshot struct {
	CPUPercent    float64 `json:"cpu_percent"`
	MemoryPercent float64 `json:"memory_percent"`
	MemoryUsed    uint64  `json:"memory_used_bytes"`
	MemoryTotal   uint64  `json:"memory_total_bytes"`
	Load1         float64 `json:"load_1"`
	Load5         float64 `json:"load_5"`
	Load15        float64 `json:"load_15"`
}

// collectSystem gathers host metrics. Individual probe failures leave
// zeroes rather than failing the stats request.
func collectSystem(ctx context.Context) systemSnapshot {
	var snap systemSnapshot

	if percents, err := cpu.PercentWithContext(ctx, 0, false); err == nil && len(percents) > 0 {
		snap.CPUPercent = percents[0]
	} else if err != nil {
		logging.Debug("cpu probe failed: %v", err)
	}

	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		snap.MemoryPercent = vm.UsedPercent
		snap.MemoryUsed = vm.Used
		snap.MemoryTotal = vm.Total
	} else {
		logging.Debug("memory probe failed: %v", err)
	}

	if avg, err := load.AvgWithContext(ctx); err == nil {
		snap.Load1 = avg.Load1
		snap.Load5 = avg.Load5
		snap.Load15 = avg.Load15
	} else {
		logging.Debug("load probe failed: %v", err)
	}

	return snap
}
