// Package aggregation rolls completed trips into per-day KPI records.
//
// The computation is idempotent end to end: the scan is read-only, the
// fold is deterministic, and the sink write overwrites. A failed run is
// simply rerun for the same date — no partial-state recovery exists or
// is needed.
package aggregation

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/boltlab/tripmatch/internal/core/rollup"
	"github.com/boltlab/tripmatch/internal/core/storage"
	"github.com/boltlab/tripmatch/internal/core/trip"
	"github.com/boltlab/tripmatch/internal/sink"
)

const (
	defaultPageSize    = 5000
	defaultWorkerCount = 4
)

// JobParameter controls scan paging and fold parallelism for one run.
type JobParameter struct {
	PageSize    int
	WorkerCount int
}

// DefaultJobOptions returns safe defaults for daily processing.
func DefaultJobOptions() JobParameter {
	return JobParameter{
		PageSize:    defaultPageSize,
		WorkerCount: defaultWorkerCount,
	}
}

func (o JobParameter) normalized() JobParameter {
	n := o
	if n.PageSize <= 0 {
		n.PageSize = defaultPageSize
	}
	if n.WorkerCount <= 0 {
		n.WorkerCount = defaultWorkerCount
	}
	return n
}

// Job computes the daily metrics for one date and writes them to the sink.
type Job struct {
	completed storage.CompletedStore
	output    sink.Sink
	opts      JobParameter
}

// NewJob creates an aggregation job.
func NewJob(completed storage.CompletedStore, output sink.Sink, opts JobParameter) *Job {
	if completed == nil {
		panic("aggregation: completed store must not be nil")
	}
	if output == nil {
		panic("aggregation: sink must not be nil")
	}
	return &Job{
		completed: completed,
		output:    output,
		opts:      opts.normalized(),
	}
}

// ComputeDailyMetrics scans all completed trips with the given pickup
// date, folds count/sum/min/max of the settled fare in a single pass and
// writes one DailyMetrics partition. Scan or write failure is fatal for
// the run; the caller reruns the whole date later.
//
// Pages stream through a bounded channel to parallel workers, each with
// its own local accumulator; the locals are merged once at the end. The
// partition never has to fit in memory at once.
func (j *Job) ComputeDailyMetrics(ctx context.Context, date string) (*trip.DailyMetrics, error) {
	if !trip.ValidDate(date) {
		return nil, fmt.Errorf("invalid target date %q (want %s)", date, trip.DateLayout)
	}

	slog.Info("[Aggregation] Starting daily metrics run",
		"date", date,
		"page_size", j.opts.PageSize,
		"workers", j.opts.WorkerCount)

	pages := make(chan []*trip.CompletedTrip, j.opts.WorkerCount)
	locals := make([]*rollup.FareAccumulator, j.opts.WorkerCount)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(pages)
		return j.scanPartition(gctx, date, pages)
	})

	for i := 0; i < j.opts.WorkerCount; i++ {
		local := rollup.NewFareAccumulator()
		locals[i] = local
		g.Go(func() error {
			for page := range pages {
				for _, ct := range page {
					local.Add(ct.FareAmount)
				}
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("daily metrics for %s: %w", date, err)
	}

	acc := rollup.NewFareAccumulator()
	for _, local := range locals {
		acc.Merge(local)
	}
	metrics := acc.Finalize(date)

	if err := j.output.WritePartition(ctx, date, metrics); err != nil {
		return nil, fmt.Errorf("write metrics partition for %s: %w", date, err)
	}

	slog.Info("[Aggregation] Daily metrics run complete",
		"date", date,
		"trip_count", metrics.TripCount)
	return metrics, nil
}

// scanPartition pages through the date partition in keyset order and
// streams pages to the fold workers.
func (j *Job) scanPartition(ctx context.Context, date string, pages chan<- []*trip.CompletedTrip) error {
	after := ""
	for {
		page, err := j.completed.ScanByDate(ctx, date, after, j.opts.PageSize)
		if err != nil {
			return fmt.Errorf("scan completed trips: %w", err)
		}
		if len(page) == 0 {
			return nil
		}

		select {
		case pages <- page:
		case <-ctx.Done():
			return ctx.Err()
		}

		after = page[len(page)-1].TripID
		if len(page) < j.opts.PageSize {
			return nil
		}
	}
}
