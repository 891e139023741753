// Package projection serves the read-side query surface: stored daily
// metrics partitions and per-trip completion status.
package projection

import (
	"context"
	"errors"
	"fmt"

	"github.com/boltlab/tripmatch/internal/core/storage"
	"github.com/boltlab/tripmatch/internal/core/trip"
	"github.com/boltlab/tripmatch/internal/sink"
)

// TripStatus describes where a trip sits in its lifecycle.
type TripStatus string

const (
	StatusCompleted     TripStatus = "completed"
	StatusAwaitingStart TripStatus = "awaiting_start"
	StatusAwaitingEnd   TripStatus = "awaiting_end"
	StatusUnknown       TripStatus = "unknown"
)

// TripStatusResponse is the per-trip lifecycle report.
type TripStatusResponse struct {
	TripID    string              `json:"trip_id"`
	Status    TripStatus          `json:"status"`
	Completed *trip.CompletedTrip `json:"completed,omitempty"`
}

// Service implements the projection layer over the completed store, the
// partial store and the metrics sink. All inputs are read-only here.
type Service struct {
	partials  storage.PartialStore
	completed storage.CompletedStore
	metrics   sink.Reader
}

// NewService creates the projection service.
func NewService(partials storage.PartialStore, completed storage.CompletedStore, metrics sink.Reader) *Service {
	if partials == nil {
		panic("projection: partial store must not be nil")
	}
	if completed == nil {
		panic("projection: completed store must not be nil")
	}
	if metrics == nil {
		panic("projection: metrics reader must not be nil")
	}
	return &Service{
		partials:  partials,
		completed: completed,
		metrics:   metrics,
	}
}

// DailyMetrics returns the stored rollup for one date, or
// sink.ErrNoPartition when the day has not been aggregated yet.
func (s *Service) DailyMetrics(ctx context.Context, date string) (*trip.DailyMetrics, error) {
	if !trip.ValidDate(date) {
		return nil, fmt.Errorf("%w: invalid date %q", ErrInvalidQuery, date)
	}
	return s.metrics.ReadPartition(ctx, date)
}

// TripStatus reports the lifecycle state of one trip: completed if the
// terminal record exists, otherwise which half is still missing.
func (s *Service) TripStatus(ctx context.Context, tripID string) (*TripStatusResponse, error) {
	if tripID == "" {
		return nil, fmt.Errorf("%w: trip_id is required", ErrInvalidQuery)
	}

	completed, err := s.completed.Get(ctx, tripID)
	if err == nil {
		return &TripStatusResponse{TripID: tripID, Status: StatusCompleted, Completed: completed}, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("lookup completed record: %w", err)
	}

	hasStart, err := s.hasPartial(ctx, tripID, trip.KindStart)
	if err != nil {
		return nil, err
	}
	hasEnd, err := s.hasPartial(ctx, tripID, trip.KindEnd)
	if err != nil {
		return nil, err
	}

	switch {
	case hasStart:
		return &TripStatusResponse{TripID: tripID, Status: StatusAwaitingEnd}, nil
	case hasEnd:
		return &TripStatusResponse{TripID: tripID, Status: StatusAwaitingStart}, nil
	default:
		return &TripStatusResponse{TripID: tripID, Status: StatusUnknown}, nil
	}
}

func (s *Service) hasPartial(ctx context.Context, tripID string, kind trip.Kind) (bool, error) {
	_, err := s.partials.Get(ctx, tripID, kind)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("lookup %s half: %w", kind, err)
	}
	return true, nil
}

// ErrInvalidQuery marks request validation errors that should return HTTP 400.
var ErrInvalidQuery = errors.New("invalid query")
