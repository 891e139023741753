package aggregation

import (
	"context"
	"log/slog"
	"time"

	"github.com/boltlab/tripmatch/internal/core/trip"
)

// TargetDate returns the default aggregation target for a run at now:
// "yesterday" in UTC.
func TargetDate(now time.Time) string {
	return now.UTC().AddDate(0, 0, -1).Format(trip.DateLayout)
}

// Scheduler runs the daily metrics job on a periodic interval, targeting
// yesterday's partition each tick. A failed run is logged and retried in
// full on the next tick — the job's idempotence makes the rerun safe.
type Scheduler struct {
	interval time.Duration
	job      *Job
}

// NewScheduler creates a scheduler with the given tick interval
// (normally 24h; shorter in tests).
func NewScheduler(interval time.Duration, job *Job) *Scheduler {
	return &Scheduler{
		interval: interval,
		job:      job,
	}
}

// Start runs until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	slog.Info("[Scheduler] Starting daily aggregation scheduler", "interval", s.interval)

	for {
		select {
		case <-ticker.C:
			date := TargetDate(time.Now())
			if _, err := s.job.ComputeDailyMetrics(ctx, date); err != nil {
				slog.Error("[Scheduler] Daily metrics run failed, will retry next tick",
					"date", date,
					"error", err)
			}
		case <-ctx.Done():
			slog.Info("[Scheduler] Stopping (context cancelled)")
			return nil
		}
	}
}
