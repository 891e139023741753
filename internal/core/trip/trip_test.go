package trip

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKind(t *testing.T) {
	tests := []struct {
		in      string
		want    Kind
		wantErr bool
	}{
		{"start", KindStart, false},
		{"end", KindEnd, false},
		{"START", KindStart, false},
		{"middle", 0, true},
		{"", 0, true},
	}
	for _, tc := range tests {
		got, err := ParseKind(tc.in)
		if tc.wantErr {
			assert.Error(t, err, tc.in)
			continue
		}
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}
}

func TestKindCounterpart(t *testing.T) {
	assert.Equal(t, KindEnd, KindStart.Counterpart())
	assert.Equal(t, KindStart, KindEnd.Counterpart())
}

func TestParseTimestamp(t *testing.T) {
	ts, err := ParseTimestamp("2024-07-15 08:30:00")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 7, 15, 8, 30, 0, 0, time.UTC), ts)
	assert.Equal(t, "2024-07-15", DayPartitionOf(ts))

	_, err = ParseTimestamp("2024-07-15T08:30:00Z")
	assert.Error(t, err)
	_, err = ParseTimestamp("not a time")
	assert.Error(t, err)
}

func TestPartialRecordValidate(t *testing.T) {
	valid := PartialRecord{
		TripID:    "trip-1",
		Kind:      KindStart,
		Timestamp: time.Date(2024, 7, 15, 8, 30, 0, 0, time.UTC),
		Fare:      decimal.RequireFromString("10.50"),
	}
	require.NoError(t, valid.Validate())

	noID := valid
	noID.TripID = "  "
	assert.Error(t, noID.Validate())

	badKind := valid
	badKind.Kind = 7
	assert.Error(t, badKind.Validate())

	noTime := valid
	noTime.Timestamp = time.Time{}
	assert.Error(t, noTime.Validate())

	negFare := valid
	negFare.Fare = decimal.RequireFromString("-1")
	assert.Error(t, negFare.Validate())
}

func TestComplete(t *testing.T) {
	start := &PartialRecord{
		TripID:    "trip-1",
		Kind:      KindStart,
		Timestamp: mustTime(t, "2024-07-15 08:30:00"),
		Fare:      decimal.RequireFromString("12.00"),
	}
	end := &PartialRecord{
		TripID:    "trip-1",
		Kind:      KindEnd,
		Timestamp: mustTime(t, "2024-07-15 09:00:00"),
		Fare:      decimal.RequireFromString("10.50"),
	}

	ct, err := Complete(start, end)
	require.NoError(t, err)
	assert.Equal(t, "trip-1", ct.TripID)
	assert.Equal(t, "2024-07-15", ct.PickupDate)
	assert.True(t, ct.FareAmount.Equal(end.Fare))
	assert.True(t, ct.EstimatedFare.Equal(start.Fare))
	assert.Equal(t, start.Timestamp, ct.PickupAt)
	assert.Equal(t, end.Timestamp, ct.DropoffAt)
}

func TestComplete_PickupDateFromStartHalf(t *testing.T) {
	// A trip crossing midnight partitions under its pickup day.
	start := &PartialRecord{
		TripID:    "trip-2",
		Kind:      KindStart,
		Timestamp: mustTime(t, "2024-07-15 23:50:00"),
		Fare:      decimal.RequireFromString("8.00"),
	}
	end := &PartialRecord{
		TripID:    "trip-2",
		Kind:      KindEnd,
		Timestamp: mustTime(t, "2024-07-16 00:10:00"),
		Fare:      decimal.RequireFromString("9.00"),
	}

	ct, err := Complete(start, end)
	require.NoError(t, err)
	assert.Equal(t, "2024-07-15", ct.PickupDate)
}

func TestComplete_Rejections(t *testing.T) {
	start := &PartialRecord{
		TripID:    "trip-1",
		Kind:      KindStart,
		Timestamp: mustTime(t, "2024-07-15 08:30:00"),
		Fare:      decimal.RequireFromString("12.00"),
	}
	end := &PartialRecord{
		TripID:    "trip-1",
		Kind:      KindEnd,
		Timestamp: mustTime(t, "2024-07-15 09:00:00"),
		Fare:      decimal.RequireFromString("10.50"),
	}

	otherTrip := *end
	otherTrip.TripID = "trip-9"
	_, err := Complete(start, &otherTrip)
	assert.Error(t, err)

	_, err = Complete(end, start)
	assert.Error(t, err, "halves passed in swapped kind positions")

	corrupt := *end
	corrupt.Fare = decimal.RequireFromString("-3")
	_, err = Complete(start, &corrupt)
	assert.Error(t, err)
}

func TestValidDate(t *testing.T) {
	assert.True(t, ValidDate("2024-07-15"))
	assert.False(t, ValidDate("2024-7-15"))
	assert.False(t, ValidDate("20240715"))
	assert.False(t, ValidDate(""))
}

func mustTime(t *testing.T, s string) time.Time {
	t.Helper()
	ts, err := ParseTimestamp(s)
	require.NoError(t, err)
	return ts
}
