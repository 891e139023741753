package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/boltlab/tripmatch/internal/core/storage"
	"github.com/boltlab/tripmatch/internal/core/trip"
)

// CompletedAdapter implements storage.CompletedStore for PostgreSQL.
// It shares the connection pool opened for the partials adapter.
type CompletedAdapter struct {
	db         *sql.DB
	stmtCreate *sql.Stmt
	stmtGet    *sql.Stmt
	stmtScan   *sql.Stmt
}

// NewCompletedAdapter prepares the completed-store statements on an open pool.
func NewCompletedAdapter(db *sql.DB) (*CompletedAdapter, error) {
	stmtCreate, err := db.Prepare(queryCreateCompleted)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare createCompleted statement: %w", err)
	}

	stmtGet, err := db.Prepare(queryGetCompleted)
	if err != nil {
		stmtCreate.Close()
		return nil, fmt.Errorf("failed to prepare getCompleted statement: %w", err)
	}

	stmtScan, err := db.Prepare(queryScanCompletedByDate)
	if err != nil {
		stmtCreate.Close()
		stmtGet.Close()
		return nil, fmt.Errorf("failed to prepare scanCompletedByDate statement: %w", err)
	}

	return &CompletedAdapter{
		db:         db,
		stmtCreate: stmtCreate,
		stmtGet:    stmtGet,
		stmtScan:   stmtScan,
	}, nil
}

// CreateIfAbsent writes the terminal record only if the trip has no
// completion yet. The primary key plus ON CONFLICT DO NOTHING makes this
// atomic: exactly one of any number of racing writers sees success, the
// rest get storage.ErrAlreadyCompleted.
func (a *CompletedAdapter) CreateIfAbsent(ctx context.Context, completed *trip.CompletedTrip) error {
	var insertedID string
	err := a.stmtCreate.QueryRowContext(ctx,
		completed.TripID,
		completed.PickupAt,
		completed.DropoffAt,
		completed.EstimatedFare.String(),
		completed.FareAmount.String(),
		completed.PickupDate,
	).Scan(&insertedID)

	if err == sql.ErrNoRows {
		return storage.ErrAlreadyCompleted
	}
	if err != nil {
		return fmt.Errorf("failed to create completed trip: %w", err)
	}

	slog.Debug("[Postgres] Created completed trip",
		"trip_id", completed.TripID,
		"pickup_date", completed.PickupDate)
	return nil
}

// Get returns the completed record for a trip, or storage.ErrNotFound.
func (a *CompletedAdapter) Get(ctx context.Context, tripID string) (*trip.CompletedTrip, error) {
	ct, err := scanCompletedRow(a.stmtGet.QueryRowContext(ctx, tripID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}
	return ct, nil
}

// ScanByDate pages through one day partition in strict trip_id order.
func (a *CompletedAdapter) ScanByDate(ctx context.Context, date string, afterTripID string, limit int) ([]*trip.CompletedTrip, error) {
	rows, err := a.stmtScan.QueryContext(ctx, date, afterTripID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to scan completed trips: %w", err)
	}
	defer rows.Close()

	var trips []*trip.CompletedTrip
	for rows.Next() {
		ct, err := scanCompletedRow(rows)
		if err != nil {
			return nil, err
		}
		trips = append(trips, ct)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating completed trips: %w", err)
	}

	return trips, nil
}

// Close closes the prepared statements.
func (a *CompletedAdapter) Close() error {
	var firstErr error

	if err := a.stmtCreate.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("failed to close createCompleted statement: %w", err)
	}
	if err := a.stmtGet.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("failed to close getCompleted statement: %w", err)
	}
	if err := a.stmtScan.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("failed to close scanCompletedByDate statement: %w", err)
	}

	return firstErr
}
