package rollup

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return d
}

func TestAccumulator_SingleFare(t *testing.T) {
	acc := NewFareAccumulator()
	acc.Add(dec(t, "10.50"))

	m := acc.Finalize("2024-07-15")
	assert.Equal(t, int64(1), m.TripCount)
	assert.True(t, m.TotalFare.Equal(dec(t, "10.50")))
	assert.True(t, m.AverageFare.Equal(dec(t, "10.50")))
	assert.True(t, m.MaxFare.Equal(dec(t, "10.50")))
	assert.True(t, m.MinFare.Equal(dec(t, "10.50")))
}

func TestAccumulator_TwoFares(t *testing.T) {
	acc := NewFareAccumulator()
	acc.Add(dec(t, "10.50"))
	acc.Add(dec(t, "20.00"))

	m := acc.Finalize("2024-07-15")
	assert.Equal(t, int64(2), m.TripCount)
	assert.True(t, m.TotalFare.Equal(dec(t, "30.50")))
	assert.True(t, m.AverageFare.Equal(dec(t, "15.25")))
	assert.True(t, m.MaxFare.Equal(dec(t, "20.00")))
	assert.True(t, m.MinFare.Equal(dec(t, "10.50")))
}

func TestAccumulator_EmptyDay(t *testing.T) {
	m := NewFareAccumulator().Finalize("2024-07-15")
	assert.Equal(t, int64(0), m.TripCount)
	assert.Nil(t, m.TotalFare)
	assert.Nil(t, m.AverageFare)
	assert.Nil(t, m.MaxFare)
	assert.Nil(t, m.MinFare)
}

func TestAccumulator_ZeroFareIsCounted(t *testing.T) {
	acc := NewFareAccumulator()
	acc.Add(dec(t, "0"))
	acc.Add(dec(t, "10.00"))

	m := acc.Finalize("2024-07-15")
	assert.Equal(t, int64(2), m.TripCount)
	assert.True(t, m.MinFare.Equal(dec(t, "0")))
	assert.True(t, m.AverageFare.Equal(dec(t, "5.00")))
}

func TestAccumulator_Merge(t *testing.T) {
	left := NewFareAccumulator()
	left.Add(dec(t, "10.50"))
	left.Add(dec(t, "3.00"))

	right := NewFareAccumulator()
	right.Add(dec(t, "20.00"))

	left.Merge(right)
	m := left.Finalize("2024-07-15")

	assert.Equal(t, int64(3), m.TripCount)
	assert.True(t, m.TotalFare.Equal(dec(t, "33.50")))
	assert.True(t, m.MaxFare.Equal(dec(t, "20.00")))
	assert.True(t, m.MinFare.Equal(dec(t, "3.00")))
}

func TestAccumulator_MergeIntoEmpty(t *testing.T) {
	left := NewFareAccumulator()
	right := NewFareAccumulator()
	right.Add(dec(t, "7.25"))

	left.Merge(right)
	m := left.Finalize("2024-07-15")
	assert.Equal(t, int64(1), m.TripCount)
	assert.True(t, m.TotalFare.Equal(dec(t, "7.25")))
}

func TestAccumulator_MergeEmptyAndNil(t *testing.T) {
	acc := NewFareAccumulator()
	acc.Add(dec(t, "5.00"))

	acc.Merge(NewFareAccumulator())
	acc.Merge(nil)

	assert.Equal(t, int64(1), acc.Count())
}

func TestAccumulator_MergeOrderIndependent(t *testing.T) {
	fares := []string{"1.00", "9.99", "4.50", "0.10", "7.77"}

	forward := NewFareAccumulator()
	for _, f := range fares {
		forward.Add(dec(t, f))
	}

	a := NewFareAccumulator()
	b := NewFareAccumulator()
	a.Add(dec(t, fares[0]))
	a.Add(dec(t, fares[1]))
	b.Add(dec(t, fares[2]))
	b.Add(dec(t, fares[3]))
	b.Add(dec(t, fares[4]))
	b.Merge(a)

	want := forward.Finalize("2024-07-15")
	got := b.Finalize("2024-07-15")
	assert.Equal(t, want.TripCount, got.TripCount)
	assert.True(t, want.TotalFare.Equal(*got.TotalFare))
	assert.True(t, want.AverageFare.Equal(*got.AverageFare))
	assert.True(t, want.MaxFare.Equal(*got.MaxFare))
	assert.True(t, want.MinFare.Equal(*got.MinFare))
}
