package dashboard

import (
	"context"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"

	"salesflow/internal/scheduler"
	"salesflow/logger"
)

// resourceSample is one host utilisation reading shown next to the sales.
type resourceSample struct {
	Timestamp   time.Time `json:"timestamp"`
	CPUPercent  float64   `json:"cpu_percent"`
	MemoryUsed  uint64    `json:"memory_used"`
	MemoryTotal uint64    `json:"memory_total"`
	MemoryPct   float64   `json:"memory_percent"`
	DiskPct     float64   `json:"disk_percent"`
	Goroutines  int       `json:"goroutines"`
}

var (
	cpuPercentFn  = cpu.PercentWithContext
	memoryStatsFn = mem.VirtualMemoryWithContext
	diskUsageFn   = disk.UsageWithContext
)

type resourceSampler struct {
	history  *ring[resourceSample]
	diskPath string
	task     *scheduler.Task
	log      *logger.Log
}

func newResourceSampler(limit int, interval time.Duration, diskPath string, log *logger.Log) *resourceSampler {
	if interval <= 0 {
		interval = time.Second
	}
	s := &resourceSampler{
		history:  newRing[resourceSample](limit),
		diskPath: diskPath,
		log:      log,
	}
	s.task = scheduler.New("resource_sampler", interval, true, s.sample)
	return s
}

func (s *resourceSampler) start(ctx context.Context) error {
	return s.task.Start(ctx)
}

func (s *resourceSampler) stop() {
	s.task.Stop()
}

func (s *resourceSampler) snapshot() []resourceSample {
	return s.history.filter(nil)
}

func (s *resourceSampler) sample(ctx context.Context) {
	log := s.log.WithComponent("resource_sampler")

	cpuSamples, err := cpuPercentFn(ctx, 0, false)
	if err != nil {
		log.WithError(err).Debug("failed to sample cpu usage")
		return
	}
	memStats, err := memoryStatsFn(ctx)
	if err != nil {
		log.WithError(err).Debug("failed to sample memory usage")
		return
	}

	sample := resourceSample{
		Timestamp:   time.Now(),
		MemoryUsed:  memStats.Used,
		MemoryTotal: memStats.Total,
		MemoryPct:   memStats.UsedPercent,
		Goroutines:  runtime.NumGoroutine(),
	}
	if len(cpuSamples) > 0 {
		sample.CPUPercent = cpuSamples[0]
	}
	if diskStats, err := diskUsageFn(ctx, s.diskPath); err == nil {
		sample.DiskPct = diskStats.UsedPercent
	}

	s.history.add(sample)
}
