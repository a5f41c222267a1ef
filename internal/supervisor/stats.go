package supervisor

import (
	"fmt"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v3/process"

	"warden/internal/api"
)

// Stats reads live statistics of pid from the process table.
func Stats(pid int) (*api.ProcessStats, error) {
	p, err := process.NewProcess(int32(pid))
	if err != nil {
		return nil, api.NewNotFoundError("process", fmt.Sprint(pid))
	}

	stats := &api.ProcessStats{PID: pid}
	if name, err := p.Name(); err == nil {
		stats.Name = name
	}
	if cmdline, err := p.Cmdline(); err == nil {
		stats.Cmdline = cmdline
	}
	if status, err := p.Status(); err == nil {
		stats.Status = strings.Join(status, ",")
	}
	if cpu, err := p.CPUPercent(); err == nil {
		stats.CPUPercent = cpu
	}
	if mem, err := p.MemoryInfo(); err == nil && mem != nil {
		stats.RSS = mem.RSS
	}
	if threads, err := p.NumThreads(); err == nil {
		stats.NumThreads = threads
	}
	if created, err := p.CreateTime(); err == nil {
		stats.CreatedAt = time.UnixMilli(created)
	}
	return stats, nil
}
