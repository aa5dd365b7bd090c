package scaling

import (
	"context"
	"fmt"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// Sampler reads host utilization.
type Sampler interface {
	Sample(ctx context.Context) (cpuPercent, memoryPercent float64, err error)
}

// SystemSampler reads CPU and memory usage of the host.
type SystemSampler struct{}

// Sample returns CPU usage since the previous call and current memory usage.
func (SystemSampler) Sample(ctx context.Context) (float64, float64, error) {
	percents, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil {
		return 0, 0, fmt.Errorf("cpu percent: %w", err)
	}
	var cpuPercent float64
	if len(percents) > 0 {
		cpuPercent = percents[0]
	}

	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("virtual memory: %w", err)
	}
	return cpuPercent, vm.UsedPercent, nil
}
