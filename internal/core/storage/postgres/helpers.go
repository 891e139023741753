package postgres

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/boltlab/tripmatch/internal/core/trip"
)

type scanner interface {
	Scan(dest ...interface{}) error
}

// scanPartialRow scans a database row into a PartialRecord.
// Compatible with both sql.Row (single) and sql.Rows (multiple).
func scanPartialRow(row scanner) (*trip.PartialRecord, error) {
	var rec trip.PartialRecord
	var kindStr, fareStr string

	err := row.Scan(
		&rec.TripID,
		&kindStr,
		&rec.Timestamp,
		&fareStr,
		&rec.DayPartition,
		&rec.IngestedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan partial row: %w", err)
	}

	kind, err := trip.ParseKind(kindStr)
	if err != nil {
		return nil, fmt.Errorf("failed to scan partial row: %w", err)
	}
	rec.Kind = kind

	fare, err := decimal.NewFromString(fareStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse fare %q: %w", fareStr, err)
	}
	rec.Fare = fare

	return &rec, nil
}

// scanCompletedRow scans a database row into a CompletedTrip.
func scanCompletedRow(row scanner) (*trip.CompletedTrip, error) {
	var ct trip.CompletedTrip
	var estimatedStr, fareStr string

	err := row.Scan(
		&ct.TripID,
		&ct.PickupAt,
		&ct.DropoffAt,
		&estimatedStr,
		&fareStr,
		&ct.PickupDate,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan completed row: %w", err)
	}

	estimated, err := decimal.NewFromString(estimatedStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse estimated_fare %q: %w", estimatedStr, err)
	}
	ct.EstimatedFare = estimated

	fare, err := decimal.NewFromString(fareStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse fare_amount %q: %w", fareStr, err)
	}
	ct.FareAmount = fare

	return &ct, nil
}
