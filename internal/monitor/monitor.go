// Package monitor samples process and host resource usage in the
// background so the stats endpoint can report how the engine behaves
// under load without measuring anything on the request path.
package monitor

import (
	"context"
	"log"
	"os"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
)

// Report is one point-in-time resource sample.
type Report struct {
	CPUPercent     float64   `json:"cpu_percent"`
	MemoryPercent  float64   `json:"memory_percent"`
	ProcessRSSMB   float64   `json:"process_rss_mb"`
	GoroutineHint  int       `json:"num_threads"`
	SampledAt      time.Time `json:"sampled_at"`
	PeakCPUPercent float64   `json:"peak_cpu_percent"`
	PeakRSSMB      float64   `json:"peak_rss_mb"`
}

// Sampler periodically collects CPU and memory usage for the host and
// the current process.  The latest report is kept under a mutex and
// served from memory, so reads are cheap.
type Sampler struct {
	interval time.Duration
	proc     *process.Process

	mu      sync.RWMutex
	latest  Report
	peakCPU float64
	peakRSS float64
}

// NewSampler builds a sampler for the current process.  A non-positive
// interval falls back to two seconds.
func NewSampler(interval time.Duration) (*Sampler, error) {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, err
	}
	return &Sampler{interval: interval, proc: p}, nil
}

// Run samples in a loop until the context is cancelled.  Call it from
// its own goroutine.
func (s *Sampler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	s.sample()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sample()
		}
	}
}

// Latest returns the most recent report.  Before the first sample
// completes the zero Report is returned.
func (s *Sampler) Latest() Report {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest
}

func (s *Sampler) sample() {
	var r Report
	r.SampledAt = time.Now().UTC()

	// Host CPU over a short window; interval 0 would measure since the
	// previous call and return garbage on the first sample.
	if pct, err := cpu.Percent(200*time.Millisecond, false); err == nil && len(pct) > 0 {
		r.CPUPercent = pct[0]
	} else if err != nil {
		log.Printf("monitor: cpu sample failed: %v", err)
	}

	if vm, err := mem.VirtualMemory(); err == nil {
		r.MemoryPercent = vm.UsedPercent
	} else {
		log.Printf("monitor: memory sample failed: %v", err)
	}

	if mi, err := s.proc.MemoryInfo(); err == nil {
		r.ProcessRSSMB = float64(mi.RSS) / (1024 * 1024)
	}
	if nt, err := s.proc.NumThreads(); err == nil {
		r.GoroutineHint = int(nt)
	}

	s.mu.Lock()
	if r.CPUPercent > s.peakCPU {
		s.peakCPU = r.CPUPercent
	}
	if r.ProcessRSSMB > s.peakRSS {
		s.peakRSS = r.ProcessRSSMB
	}
	r.PeakCPUPercent = s.peakCPU
	r.PeakRSSMB = s.peakRSS
	s.latest = r
	s.mu.Unlock()
}
