package matcher

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/boltlab/tripmatch/internal/notifier"
)

const (
	defaultWorkerCount      = 8
	defaultInvocationBudget = 10 * time.Second
)

// WorkerPool fans change notifications out to independent matcher
// invocations. Workers share nothing: all coordination happens through
// the stores, so any invocation may be abandoned on timeout and retried
// later by a redelivery.
type WorkerPool struct {
	svc              *Service
	deliveries       <-chan notifier.Notification
	workerCount      int
	invocationBudget time.Duration
}

// NewWorkerPool creates a pool of workerCount consumers over the
// notifier's delivery channel. Non-positive arguments select defaults.
func NewWorkerPool(svc *Service, n notifier.Notifier, workerCount int, invocationBudget time.Duration) *WorkerPool {
	if workerCount <= 0 {
		workerCount = defaultWorkerCount
	}
	if invocationBudget <= 0 {
		invocationBudget = defaultInvocationBudget
	}
	return &WorkerPool{
		svc:              svc,
		deliveries:       n.Subscribe(),
		workerCount:      workerCount,
		invocationBudget: invocationBudget,
	}
}

// Run consumes notifications until ctx is cancelled or the delivery
// channel closes. It never returns an error from a single failed
// invocation — those are logged and left to redelivery.
func (w *WorkerPool) Run(ctx context.Context) error {
	slog.Info("[Matcher] Worker pool starting",
		"workers", w.workerCount,
		"invocation_budget", w.invocationBudget)

	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < w.workerCount; i++ {
		g.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					return nil
				case n, ok := <-w.deliveries:
					if !ok {
						return nil
					}
					w.handle(ctx, n)
				}
			}
		})
	}
	return g.Wait()
}

// handle runs one invocation under its execution budget.
func (w *WorkerPool) handle(ctx context.Context, n notifier.Notification) {
	if n.WriteType != notifier.WriteInsert {
		slog.Debug("[Matcher] Ignoring non-insert notification",
			"delivery_id", n.DeliveryID,
			"write_type", string(n.WriteType))
		return
	}

	invCtx, cancel := context.WithTimeout(ctx, w.invocationBudget)
	defer cancel()

	outcome, err := w.svc.OnPartialWritten(invCtx, n.TripID, n.Kind)
	if err != nil {
		// Not fatal: the operation left no inconsistent state and the
		// next redelivery retries it from scratch.
		slog.Warn("[Matcher] Invocation failed, awaiting redelivery",
			"delivery_id", n.DeliveryID,
			"trip_id", n.TripID,
			"kind", n.Kind.String(),
			"error", err)
		return
	}

	slog.Debug("[Matcher] Invocation finished",
		"delivery_id", n.DeliveryID,
		"trip_id", n.TripID,
		"kind", n.Kind.String(),
		"outcome", outcome.String())
}
