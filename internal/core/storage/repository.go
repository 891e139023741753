package storage

import (
	"context"
	"errors"

	"github.com/boltlab/tripmatch/internal/core/trip"
)

// ErrNotFound is returned when a partial record of the requested
// (trip_id, kind) does not exist.
var ErrNotFound = errors.New("partial record not found")

// ErrDuplicate is returned by Put when a partial record of the same
// (trip_id, kind) already exists. Under at-least-once delivery this is
// the normal redelivery path, not a failure.
var ErrDuplicate = errors.New("partial record already exists")

// ErrAlreadyCompleted is returned by CreateIfAbsent when a completed
// record for the trip already exists. The losing writer of a matching
// race treats this as success.
var ErrAlreadyCompleted = errors.New("trip already completed")

// PartialStore holds the two observed halves of in-flight trips,
// keyed by (trip_id, kind).
type PartialStore interface {
	// Get returns the partial record of the given kind, or ErrNotFound.
	Get(ctx context.Context, tripID string, kind trip.Kind) (*trip.PartialRecord, error)

	// Put persists a partial record. Returns ErrDuplicate if a record of
	// the same (trip_id, kind) already exists; the stored record wins.
	Put(ctx context.Context, record *trip.PartialRecord) error

	// Delete removes a partial record. Deleting an absent record is not
	// an error — deletion is idempotent cleanup.
	Delete(ctx context.Context, tripID string, kind trip.Kind) error
}

// CompletedStore holds exactly one terminal record per completed trip,
// partitioned by pickup date for range scans.
type CompletedStore interface {
	// CreateIfAbsent writes the completed record only if no record for
	// its trip_id exists yet. Returns ErrAlreadyCompleted otherwise.
	// This conditional write is the sole serialization point that makes
	// completion exactly-once under concurrent invocations.
	CreateIfAbsent(ctx context.Context, completed *trip.CompletedTrip) error

	// Get returns the completed record for a trip, or ErrNotFound.
	Get(ctx context.Context, tripID string) (*trip.CompletedTrip, error)

	// ScanByDate returns up to limit completed records with the given
	// pickup_date and trip_id > afterTripID, ordered by trip_id ASC.
	// afterTripID="" starts from the beginning; an empty result means the
	// partition is exhausted. Keyset pagination keeps the scan restartable
	// and bounded in memory regardless of daily volume.
	ScanByDate(ctx context.Context, date string, afterTripID string, limit int) ([]*trip.CompletedTrip, error)
}
