package trip

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// TimeLayout is the fixed wall-clock format of upstream trip timestamps.
// Timestamps carry no zone information; they are stored and compared as-is.
const TimeLayout = "2006-01-02 15:04:05"

// DateLayout is the day-partition format derived from a trip timestamp.
const DateLayout = "2006-01-02"

// Kind tags which half of a trip a PartialRecord represents.
type Kind int

const (
	KindStart Kind = iota + 1
	KindEnd
)

// ParseKind maps a wire string to a Kind.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(s) {
	case "start":
		return KindStart, nil
	case "end":
		return KindEnd, nil
	}
	return 0, fmt.Errorf("unknown record kind %q", s)
}

func (k Kind) String() string {
	switch k {
	case KindStart:
		return "start"
	case KindEnd:
		return "end"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Valid reports whether k is one of the two declared kinds.
func (k Kind) Valid() bool {
	return k == KindStart || k == KindEnd
}

// Counterpart returns the other half's kind.
func (k Kind) Counterpart() Kind {
	if k == KindStart {
		return KindEnd
	}
	return KindStart
}

// PartialRecord is one observed half of a trip, awaiting its pair.
// For KindStart, Timestamp is the pickup time and Fare the estimated fare;
// for KindEnd, Timestamp is the dropoff time and Fare the settled fare.
type PartialRecord struct {
	TripID       string
	Kind         Kind
	Timestamp    time.Time
	Fare         decimal.Decimal
	DayPartition string
	IngestedAt   time.Time
}

// Validate re-checks the invariants the ingestion boundary enforces.
// The matcher calls this defensively before using a record it read back:
// a single corrupt row must be skipped, never completed or crashed on.
func (p *PartialRecord) Validate() error {
	if strings.TrimSpace(p.TripID) == "" {
		return fmt.Errorf("trip_id is required")
	}
	if !p.Kind.Valid() {
		return fmt.Errorf("invalid record kind %d", int(p.Kind))
	}
	if p.Timestamp.IsZero() {
		return fmt.Errorf("timestamp is required")
	}
	if p.Fare.IsNegative() {
		return fmt.Errorf("fare must not be negative, got %s", p.Fare)
	}
	return nil
}

// ParseTimestamp parses an upstream trip timestamp.
func ParseTimestamp(s string) (time.Time, error) {
	t, err := time.Parse(TimeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("timestamp %q does not match %q", s, TimeLayout)
	}
	return t, nil
}

// DayPartitionOf derives the day-partition key from a trip timestamp.
func DayPartitionOf(t time.Time) string {
	return t.Format(DateLayout)
}

// CompletedTrip is the single terminal record for a finished trip.
// Created exactly once by the matcher, never updated, never deleted.
type CompletedTrip struct {
	TripID        string          `json:"trip_id"`
	PickupAt      time.Time       `json:"pickup_timestamp"`
	DropoffAt     time.Time       `json:"dropoff_timestamp"`
	EstimatedFare decimal.Decimal `json:"estimated_fare"`
	FareAmount    decimal.Decimal `json:"fare_amount"`
	PickupDate    string          `json:"pickup_date"`
}

// Complete merges the two halves of a trip into its terminal record.
// The result depends only on the two inputs: either arrival order
// produces an identical CompletedTrip.
func Complete(start, end *PartialRecord) (*CompletedTrip, error) {
	if start.TripID != end.TripID {
		return nil, fmt.Errorf("trip_id mismatch: %q vs %q", start.TripID, end.TripID)
	}
	if start.Kind != KindStart || end.Kind != KindEnd {
		return nil, fmt.Errorf("kind mismatch: got %s + %s", start.Kind, end.Kind)
	}
	if err := start.Validate(); err != nil {
		return nil, fmt.Errorf("start half: %w", err)
	}
	if err := end.Validate(); err != nil {
		return nil, fmt.Errorf("end half: %w", err)
	}
	return &CompletedTrip{
		TripID:        start.TripID,
		PickupAt:      start.Timestamp,
		DropoffAt:     end.Timestamp,
		EstimatedFare: start.Fare,
		FareAmount:    end.Fare,
		PickupDate:    DayPartitionOf(start.Timestamp),
	}, nil
}

// DailyMetrics is the per-date KPI rollup over completed trips.
// The fare fields are nil when TripCount is zero — an empty day is a
// valid output, not an error.
type DailyMetrics struct {
	PickupDate  string           `json:"pickup_date"`
	TripCount   int64            `json:"trip_count"`
	TotalFare   *decimal.Decimal `json:"total_fare,omitempty"`
	AverageFare *decimal.Decimal `json:"average_fare,omitempty"`
	MaxFare     *decimal.Decimal `json:"max_fare,omitempty"`
	MinFare     *decimal.Decimal `json:"min_fare,omitempty"`
}

// ValidDate reports whether s is a well-formed day-partition key.
func ValidDate(s string) bool {
	_, err := time.Parse(DateLayout, s)
	return err == nil
}
