package rollup

import (
	"github.com/shopspring/decimal"

	"github.com/boltlab/tripmatch/internal/core/trip"
)

// FareAccumulator folds settled fares into the per-operator running state
// for one day partition. It is purely local — parallel workers each keep
// their own and the results are merged once at the end.
type FareAccumulator struct {
	count  int64
	values map[string]decimal.Decimal // operator → running value; empty until first fare
}

// NewFareAccumulator returns an empty accumulator.
func NewFareAccumulator() *FareAccumulator {
	return &FareAccumulator{values: make(map[string]decimal.Decimal)}
}

// Add folds one settled fare through every registered operator.
func (a *FareAccumulator) Add(fare decimal.Decimal) {
	for op, agg := range Operators {
		cur, ok := a.values[op]
		if !ok {
			a.values[op] = agg.Initial(fare)
			continue
		}
		a.values[op] = agg.Apply(cur, fare)
	}
	a.count++
}

// Merge folds another accumulator into this one. Used to combine the
// local accumulators of parallel scan workers.
func (a *FareAccumulator) Merge(other *FareAccumulator) {
	if other == nil || other.count == 0 {
		return
	}
	if a.count == 0 {
		a.count = other.count
		for op, v := range other.values {
			a.values[op] = v
		}
		return
	}
	for op := range Operators {
		a.values[op] = mergeValueByOperator(op, a.values[op], other.values[op])
	}
	a.count += other.count
}

// mergeValueByOperator combines two already-folded aggregate values.
// Unlike Aggregator.Apply, both sides here are aggregates: two counts
// add together rather than incrementing by one.
func mergeValueByOperator(operator string, current, incoming decimal.Decimal) decimal.Decimal {
	switch operator {
	case OpCount, OpSum:
		return current.Add(incoming)
	case OpMin:
		if incoming.LessThan(current) {
			return incoming
		}
		return current
	case OpMax:
		if incoming.GreaterThan(current) {
			return incoming
		}
		return current
	default:
		return incoming
	}
}

// Count returns the number of fares folded so far.
func (a *FareAccumulator) Count() int64 {
	return a.count
}

// Finalize materializes the daily KPI record for date.
// An empty accumulator yields trip_count=0 with the fare fields absent —
// never a division by zero.
func (a *FareAccumulator) Finalize(date string) *trip.DailyMetrics {
	m := &trip.DailyMetrics{
		PickupDate: date,
		TripCount:  a.count,
	}
	if a.count == 0 {
		return m
	}

	total := a.values[OpSum]
	avg := total.Div(decimal.NewFromInt(a.count))
	maxFare := a.values[OpMax]
	minFare := a.values[OpMin]

	m.TotalFare = &total
	m.AverageFare = &avg
	m.MaxFare = &maxFare
	m.MinFare = &minFare
	return m
}
