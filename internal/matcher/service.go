// Package matcher joins the two asynchronously arriving halves of a trip
// into exactly one completed record.
//
// Invocations are independent and may run concurrently for the same trip;
// the only serialization point is the completed store's conditional
// create. No invocation ever holds a lock, so abandoning one mid-flight
// (timeout, crash) is always safe — the next redelivery retries from
// scratch.
package matcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/boltlab/tripmatch/internal/core/retry"
	"github.com/boltlab/tripmatch/internal/core/storage"
	"github.com/boltlab/tripmatch/internal/core/trip"
)

// Outcome classifies one invocation of the matching operation.
type Outcome int

const (
	// OutcomeWaiting: the counterpart half is not here yet. The common
	// case, not an error.
	OutcomeWaiting Outcome = iota + 1

	// OutcomeCompleted: this invocation created the terminal record.
	OutcomeCompleted

	// OutcomeAlreadyCompleted: the trip was completed earlier or by a
	// racing invocation; this one only did idempotent cleanup.
	OutcomeAlreadyCompleted

	// OutcomeSkipped: the trigger or a stored record was malformed. The
	// record is skipped and logged so one corrupt row cannot block
	// matching for other trips.
	OutcomeSkipped
)

func (o Outcome) String() string {
	switch o {
	case OutcomeWaiting:
		return "waiting"
	case OutcomeCompleted:
		return "completed"
	case OutcomeAlreadyCompleted:
		return "already_completed"
	case OutcomeSkipped:
		return "skipped"
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

// Service implements the matching engine over the two record stores.
type Service struct {
	partials  storage.PartialStore
	completed storage.CompletedStore

	// storeRetry bounds retries of transient lookup/create failures.
	// deleteRetry bounds the best-effort partial cleanup; exhausting it
	// is a warning, never a correctness problem.
	storeRetry  retry.Policy
	deleteRetry retry.Policy
}

// NewService creates a matching engine.
func NewService(partials storage.PartialStore, completed storage.CompletedStore, storeRetry, deleteRetry retry.Policy) *Service {
	if partials == nil {
		panic("matcher: partial store must not be nil")
	}
	if completed == nil {
		panic("matcher: completed store must not be nil")
	}
	return &Service{
		partials:    partials,
		completed:   completed,
		storeRetry:  storeRetry,
		deleteRetry: deleteRetry,
	}
}

// OnPartialWritten is invoked once per change notification for a
// just-written partial record. It is idempotent under redelivery and
// correct under concurrent invocation for both halves of one trip.
//
// A non-nil error means the attempt hit a persistent store failure and
// the whole operation should be retried by the next redelivery; no
// intermediate state needs recovery.
func (s *Service) OnPartialWritten(ctx context.Context, tripID string, kind trip.Kind) (Outcome, error) {
	if tripID == "" || !kind.Valid() {
		slog.Warn("[Matcher] Skipping invalid notification", "trip_id", tripID, "kind", int(kind))
		return OutcomeSkipped, nil
	}

	// Dedup check up front: a redelivered notification for a trip that
	// already has its terminal record only needs cleanup.
	done, err := s.isCompleted(ctx, tripID)
	if err != nil {
		return 0, fmt.Errorf("check completed record for trip %s: %w", tripID, err)
	}
	if done {
		s.cleanupPartials(ctx, tripID)
		return OutcomeAlreadyCompleted, nil
	}

	self, err := s.getPartial(ctx, tripID, kind)
	if err != nil {
		return 0, fmt.Errorf("lookup %s half of trip %s: %w", kind, tripID, err)
	}
	if self == nil {
		// The triggering half vanished without a completion: either the
		// raw write has not committed from our view yet or cleanup from
		// a racing completion is mid-flight. Redelivery sorts it out.
		slog.Debug("[Matcher] Triggering half absent", "trip_id", tripID, "kind", kind.String())
		return OutcomeWaiting, nil
	}

	other, err := s.getPartial(ctx, tripID, kind.Counterpart())
	if err != nil {
		return 0, fmt.Errorf("lookup %s half of trip %s: %w", kind.Counterpart(), tripID, err)
	}
	if other == nil {
		return OutcomeWaiting, nil
	}

	start, end := self, other
	if kind == trip.KindEnd {
		start, end = other, self
	}

	completedTrip, err := trip.Complete(start, end)
	if err != nil {
		slog.Warn("[Matcher] Skipping malformed record pair", "trip_id", tripID, "error", err)
		return OutcomeSkipped, nil
	}

	created, err := s.createCompleted(ctx, completedTrip)
	if err != nil {
		return 0, fmt.Errorf("create completed record for trip %s: %w", tripID, err)
	}

	// Whether we won or lost the conditional create, both halves are now
	// consumed and may be removed. Losing the race is success: exactly
	// one writer produced the terminal record.
	s.cleanupPartials(ctx, tripID)

	if !created {
		slog.Info("[Matcher] Lost completion race, treated as success", "trip_id", tripID)
		return OutcomeAlreadyCompleted, nil
	}

	slog.Info("[Matcher] Trip completed",
		"trip_id", tripID,
		"pickup_date", completedTrip.PickupDate,
		"fare_amount", completedTrip.FareAmount)
	return OutcomeCompleted, nil
}

// isCompleted reports whether the terminal record exists, retrying
// transient store failures.
func (s *Service) isCompleted(ctx context.Context, tripID string) (bool, error) {
	var exists bool
	err := s.storeRetry.Do(ctx, func(ctx context.Context) error {
		_, err := s.completed.Get(ctx, tripID)
		if errors.Is(err, storage.ErrNotFound) {
			exists = false
			return nil
		}
		if err != nil {
			return err
		}
		exists = true
		return nil
	})
	return exists, err
}

// getPartial looks up one half, retrying transient failures.
// Absence is returned as a nil record, not an error.
func (s *Service) getPartial(ctx context.Context, tripID string, kind trip.Kind) (*trip.PartialRecord, error) {
	var rec *trip.PartialRecord
	err := s.storeRetry.Do(ctx, func(ctx context.Context) error {
		r, err := s.partials.Get(ctx, tripID, kind)
		if errors.Is(err, storage.ErrNotFound) {
			rec = nil
			return nil
		}
		if err != nil {
			return err
		}
		rec = r
		return nil
	})
	return rec, err
}

// createCompleted attempts the conditional create, retrying transient
// failures. Returns false when another invocation already completed the
// trip.
func (s *Service) createCompleted(ctx context.Context, completed *trip.CompletedTrip) (bool, error) {
	var created bool
	err := s.storeRetry.Do(ctx, func(ctx context.Context) error {
		err := s.completed.CreateIfAbsent(ctx, completed)
		if errors.Is(err, storage.ErrAlreadyCompleted) {
			created = false
			return nil
		}
		if err != nil {
			return err
		}
		created = true
		return nil
	})
	return created, err
}

// cleanupPartials deletes both halves with the bounded deletion policy.
// Exhausting the retries leaves a harmless orphaned partial behind; the
// dedup check makes every future invocation ignore it, so this is logged
// and swallowed rather than surfaced as a failure.
func (s *Service) cleanupPartials(ctx context.Context, tripID string) {
	for _, kind := range []trip.Kind{trip.KindStart, trip.KindEnd} {
		err := s.deleteRetry.Do(ctx, func(ctx context.Context) error {
			return s.partials.Delete(ctx, tripID, kind)
		})
		if err != nil {
			slog.Warn("[Matcher] Partial cleanup exhausted, leaving orphan",
				"trip_id", tripID,
				"kind", kind.String(),
				"error", err)
		}
	}
}
