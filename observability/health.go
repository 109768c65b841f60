package observability

import (
	"log/slog"
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/process"
)

// HealthReport is served by /healthz.
type HealthReport struct {
	Status       string  `json:"status"`
	Sessions     int     `json:"sessions"`
	UptimeSecond int64   `json:"uptime_seconds"`
	RSSBytes     uint64  `json:"rss_bytes"`
	CPUPercent   float64 `json:"cpu_percent"`
	Goroutines   int     `json:"goroutines"`
	AllocMemMb   uint64  `json:"alloc_mem_mb"`
	NumGC        uint32  `json:"num_gc"`
}

// Health reports the state of the running process.
type Health struct {
	log      *slog.Logger
	sessions func() int
	started  time.Time
	pid      int32
}

func NewHealth(log *slog.Logger, sessions func() int) *Health {
	return &Health{log: log, sessions: sessions, started: time.Now(), pid: int32(os.Getpid())}
}

func (h *Health) Report() HealthReport {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	report := HealthReport{
		Status:       "ok",
		UptimeSecond: int64(time.Since(h.started).Seconds()),
		Goroutines:   runtime.NumGoroutine(),
		AllocMemMb:   mem.Alloc / 1024 / 1024,
		NumGC:        mem.NumGC,
	}
	if h.sessions != nil {
		report.Sessions = h.sessions()
	}

	p, err := process.NewProcess(h.pid)
	if err != nil {
		h.log.Debug("Error while retrieving process", "pid", h.pid, "error", err)
		return report
	}
	if info, err := p.MemoryInfo(); err == nil {
		report.RSSBytes = info.RSS
	} else {
		h.log.Debug("Error while reading memory info", "pid", h.pid, "error", err)
	}
	if cpu, err := p.CPUPercent(); err == nil {
		report.CPUPercent = cpu
	}
	return report
}
