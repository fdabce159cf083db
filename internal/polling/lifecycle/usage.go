package lifecycle

import (
	"context"
	"fmt"
	"os"

	"github.com/shirou/gopsutil/v3/process"
)

// Usage is the agent's own resource consumption.
type Usage struct {
	User   float64 // cumulative CPU seconds in user mode
	System float64 // cumulative CPU seconds in kernel mode
	RSS    uint64  // resident set size in bytes
}

// UsageSampler reports the agent's resource usage.
type UsageSampler interface {
	Sample(ctx context.Context) (Usage, error)
}

// ProcessUsage samples the current process.
type ProcessUsage struct {
	proc *process.Process
}

// NewProcessUsage returns a sampler for this process.
func NewProcessUsage() (*ProcessUsage, error) {
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, fmt.Errorf("failed to open process: %w", err)
	}
	return &ProcessUsage{proc: p}, nil
}

func (u *ProcessUsage) Sample(ctx context.Context) (Usage, error) {
	times, err := u.proc.TimesWithContext(ctx)
	if err != nil {
		return Usage{}, fmt.Errorf("failed to read cpu times: %w", err)
	}
	mem, err := u.proc.MemoryInfoWithContext(ctx)
	if err != nil {
		return Usage{}, fmt.Errorf("failed to read memory info: %w", err)
	}
	return Usage{User: times.User, System: times.System, RSS: mem.RSS}, nil
}
