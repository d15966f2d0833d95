package storage

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"filegate/internal/server/database"
)

var (
	activeKeysGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "filegate_active_keys",
		Help: "Number of active access keys at the last stats snapshot.",
	})
	activeFilesGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "filegate_active_files",
		Help: "Number of active file records at the last stats snapshot.",
	})
	activeBytesGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "filegate_active_bytes",
		Help: "Total size of active files at the last stats snapshot.",
	})
)

// StatsSource provides aggregate index statistics.
type StatsSource interface {
	GetStats(ctx context.Context) (*database.Stats, error)
}

// StatsReporter periodically snapshots index statistics into the log and
// the Prometheus gauges.
type StatsReporter struct {
	source   StatsSource
	interval time.Duration
	done     chan struct{}
}

// NewStatsReporter creates a new stats reporter.
func NewStatsReporter(source StatsSource, interval time.Duration) *StatsReporter {
	return &StatsReporter{
		source:   source,
		interval: interval,
		done:     make(chan struct{}),
	}
}

// Start begins the reporting loop in a background goroutine.
func (sr *StatsReporter) Start(ctx context.Context) {
	slog.Info("stats reporter started", "interval", sr.interval)

	go func() {
		defer close(sr.done)

		ticker := time.NewTicker(sr.interval)
		defer ticker.Stop()

		sr.report(ctx)

		for {
			select {
			case <-ticker.C:
				sr.report(ctx)
			case <-ctx.Done():
				slog.Info("stats reporter stopping")
				return
			}
		}
	}()
}

// Wait blocks until the reporter has fully stopped.
func (sr *StatsReporter) Wait() {
	<-sr.done
}

func (sr *StatsReporter) report(ctx context.Context) {
	stats, err := sr.source.GetStats(ctx)
	if err != nil {
		if ctx.Err() == nil {
			slog.Error("failed to collect stats", "error", err)
		}
		return
	}

	activeKeysGauge.Set(float64(stats.ActiveKeys))
	activeFilesGauge.Set(float64(stats.ActiveFiles))
	activeBytesGauge.Set(float64(stats.ActiveBytes))

	slog.Info("index stats",
		"total_keys", stats.TotalKeys,
		"active_keys", stats.ActiveKeys,
		"total_files", stats.TotalFiles,
		"active_files", stats.ActiveFiles,
		"active_bytes", stats.ActiveBytes,
	)
}
