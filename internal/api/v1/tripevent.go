// Package v1 defines the wire payloads accepted by the raw-write
// ingestion endpoints.
package v1

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/boltlab/tripmatch/internal/core/trip"
)

// TripStartEvent is the "start" half of a trip as published upstream.
// The fare accepts both JSON numbers and numeric strings; anything else
// fails JSON binding and is rejected at the boundary.
type TripStartEvent struct {
	TripID              string           `json:"trip_id"`
	PickupDatetime      string           `json:"pickup_datetime"`
	EstimatedFareAmount *decimal.Decimal `json:"estimated_fare_amount"`
}

// Validate enforces the ingestion-boundary invariants: a record failing
// validation never becomes a PartialRecord.
func (e *TripStartEvent) Validate() error {
	return validateHalf(e.TripID, e.PickupDatetime, "pickup_datetime", e.EstimatedFareAmount, "estimated_fare_amount")
}

// ToPartial converts the wire event into its stored partial record.
func (e *TripStartEvent) ToPartial(ingestedAt time.Time) (*trip.PartialRecord, error) {
	return toPartial(trip.KindStart, e.TripID, e.PickupDatetime, e.EstimatedFareAmount, ingestedAt)
}

// TripEndEvent is the "end" half of a trip as published upstream.
type TripEndEvent struct {
	TripID          string           `json:"trip_id"`
	DropoffDatetime string           `json:"dropoff_datetime"`
	FareAmount      *decimal.Decimal `json:"fare_amount"`
}

func (e *TripEndEvent) Validate() error {
	return validateHalf(e.TripID, e.DropoffDatetime, "dropoff_datetime", e.FareAmount, "fare_amount")
}

func (e *TripEndEvent) ToPartial(ingestedAt time.Time) (*trip.PartialRecord, error) {
	return toPartial(trip.KindEnd, e.TripID, e.DropoffDatetime, e.FareAmount, ingestedAt)
}

func validateHalf(tripID, timestamp, timestampField string, fare *decimal.Decimal, fareField string) error {
	if strings.TrimSpace(tripID) == "" {
		return fmt.Errorf("trip_id is required")
	}
	if timestamp == "" {
		return fmt.Errorf("%s is required", timestampField)
	}
	if _, err := trip.ParseTimestamp(timestamp); err != nil {
		return fmt.Errorf("%s: %w", timestampField, err)
	}
	if fare == nil {
		return fmt.Errorf("%s is required", fareField)
	}
	if fare.IsNegative() {
		return fmt.Errorf("%s must not be negative, got %s", fareField, fare)
	}
	return nil
}

func toPartial(kind trip.Kind, tripID, timestamp string, fare *decimal.Decimal, ingestedAt time.Time) (*trip.PartialRecord, error) {
	ts, err := trip.ParseTimestamp(timestamp)
	if err != nil {
		return nil, err
	}
	if fare == nil {
		return nil, fmt.Errorf("fare is required")
	}
	return &trip.PartialRecord{
		TripID:       tripID,
		Kind:         kind,
		Timestamp:    ts,
		Fare:         *fare,
		DayPartition: trip.DayPartitionOf(ts),
		IngestedAt:   ingestedAt,
	}, nil
}
