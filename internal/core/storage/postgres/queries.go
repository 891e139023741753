package postgres

// SQL queries for the partial and completed trip stores.

const (
	// queryPutPartial inserts one observed half of a trip.
	// ON CONFLICT DO NOTHING returns no rows (sql.ErrNoRows) for a
	// redelivered half — the first write wins.
	queryPutPartial = `
		INSERT INTO trip_partials (
			trip_id, kind, event_time, fare, day_partition, ingested_at
		)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (trip_id, kind) DO NOTHING
		RETURNING trip_id
	`

	queryGetPartial = `
		SELECT trip_id, kind, event_time, fare, day_partition, ingested_at
		FROM trip_partials
		WHERE trip_id = $1 AND kind = $2
	`

	// queryDeletePartial removes a consumed half. Zero rows affected is
	// fine — deletion is idempotent cleanup.
	queryDeletePartial = `
		DELETE FROM trip_partials
		WHERE trip_id = $1 AND kind = $2
	`

	// queryCreateCompleted is the write-once serialization point.
	// The primary key on trip_id plus ON CONFLICT DO NOTHING guarantees
	// only one of two racing writers observes a returned row.
	queryCreateCompleted = `
		INSERT INTO trip_completions (
			trip_id, pickup_at, dropoff_at, estimated_fare, fare_amount, pickup_date
		)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (trip_id) DO NOTHING
		RETURNING trip_id
	`

	queryGetCompleted = `
		SELECT trip_id, pickup_at, dropoff_at, estimated_fare, fare_amount, pickup_date
		FROM trip_completions
		WHERE trip_id = $1
	`

	// queryScanCompletedByDate pages through one day partition in strict
	// trip_id order. Keyset pagination ($2 = last trip_id seen) keeps the
	// scan restartable without batch boundary data loss.
	queryScanCompletedByDate = `
		SELECT trip_id, pickup_at, dropoff_at, estimated_fare, fare_amount, pickup_date
		FROM trip_completions
		WHERE pickup_date = $1
		  AND trip_id > $2
		ORDER BY trip_id ASC
		LIMIT $3
	`
)
