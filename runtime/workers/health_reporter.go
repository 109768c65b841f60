package workers

import (
	"context"
	"log/slog"
	"time"

	"wallet-chat/observability"
)

// Queue is a buffered stage whose fill level is worth watching.
type Queue interface {
	Backlog() (length int, capacity int)
}

type NamedQueue struct {
	Name  string
	Queue Queue
}

// HealthReporter periodically logs the process health and the fill level of
// the buffered queues. Reading a channel length never blocks its users.
type HealthReporter struct {
	log      *slog.Logger
	health   *observability.Health
	queues   []NamedQueue
	interval time.Duration
}

func NewHealthReporter(log *slog.Logger, health *observability.Health, interval time.Duration, queues ...NamedQueue) *HealthReporter {
	return &HealthReporter{log: log, health: health, queues: queues, interval: interval}
}

func (w *HealthReporter) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping health reporter")
			return nil
		case <-ticker.C:
			w.report()
		}
	}
}

func (w *HealthReporter) report() {
	r := w.health.Report()
	w.log.Info("Health",
		"sessions", r.Sessions,
		"goroutines", r.Goroutines,
		"alloc_mem_mb", r.AllocMemMb,
		"rss_bytes", r.RSSBytes,
		"cpu_percent", r.CPUPercent)
	for _, q := range w.queues {
		length, capacity := q.Queue.Backlog()
		if capacity > 0 && length*10 >= capacity*8 {
			w.log.Warn("Queue almost full", "queue", q.Name, "length", length, "capacity", capacity)
			continue
		}
		w.log.Debug("Queue capacity", "queue", q.Name, "length", length, "capacity", capacity)
	}
}
