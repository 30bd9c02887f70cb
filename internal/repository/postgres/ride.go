package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"dispatch/internal/domain"
	"dispatch/internal/repository"
)

// RideRepository is a PostgreSQL implementation of repository.RideRepository.
// The candidate list and rejected set are stored as JSONB columns on the ride
// row so every conditional update covers the whole aggregate.
type RideRepository struct {
	db *sql.DB
}

// NewRideRepository creates a new PostgreSQL ride repository.
func NewRideRepository(db *sql.DB) *RideRepository {
	return &RideRepository{db: db}
}

const rideColumns = `
	id, rider_id, driver_id,
	pickup_address, pickup_lat, pickup_lng,
	dropoff_address, dropoff_lat, dropoff_lng,
	distance_km, estimated_fare, proposed_fare, final_fare,
	vehicle_class, payment_method, status,
	candidates, rejected_drivers,
	created_at, expires_at, accepted_at, confirmed_at, arrived_at,
	started_at, completed_at, cancelled_at, cancel_reason, cancelled_by`

// Create persists a new ride.
func (r *RideRepository) Create(ctx context.Context, ride *domain.Ride) error {
	candidates, rejected, err := marshalSets(ride)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO rides (` + rideColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
		        $15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28)
	`

	_, err = r.db.ExecContext(ctx, query,
		ride.ID,
		ride.RiderID,
		nullString(ride.DriverID),
		ride.Pickup.Address, ride.Pickup.Lat, ride.Pickup.Lng,
		ride.Dropoff.Address, ride.Dropoff.Lat, ride.Dropoff.Lng,
		ride.DistanceKm, ride.EstimatedFare, nullFloat(ride.ProposedFare), nullFloat(ride.FinalFare),
		ride.VehicleClass, ride.PaymentMethod, ride.Status,
		candidates, rejected,
		ride.CreatedAt, ride.ExpiresAt,
		nullTime(ride.AcceptedAt), nullTime(ride.ConfirmedAt), nullTime(ride.ArrivedAt),
		nullTime(ride.StartedAt), nullTime(ride.CompletedAt), nullTime(ride.CancelledAt),
		nullString(ride.CancelReason), nullString(string(ride.CancelledBy)),
	)

	return err
}

// GetByID retrieves a ride by ID.
func (r *RideRepository) GetByID(ctx context.Context, id string) (*domain.Ride, error) {
	query := `SELECT ` + rideColumns + ` FROM rides WHERE id = $1`
	return scanRide(r.db.QueryRowContext(ctx, query, id))
}

// FindActiveByRider returns the rider's ride in any non-terminal status.
func (r *RideRepository) FindActiveByRider(ctx context.Context, riderID string) (*domain.Ride, error) {
	query := `
		SELECT ` + rideColumns + `
		FROM rides
		WHERE rider_id = $1
		  AND status IN ('pending', 'accepted', 'confirmed', 'arrived', 'started')
		ORDER BY created_at DESC
		LIMIT 1
	`

	ride, err := scanRide(r.db.QueryRowContext(ctx, query, riderID))
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	return ride, err
}

// FindPendingByClass returns pending, unexpired rides of the given vehicle
// class, newest first.
func (r *RideRepository) FindPendingByClass(ctx context.Context, class domain.VehicleClass, now time.Time, limit int) ([]*domain.Ride, error) {
	query := `
		SELECT ` + rideColumns + `
		FROM rides
		WHERE status = 'pending' AND vehicle_class = $1 AND expires_at > $2
		ORDER BY created_at DESC
		LIMIT $3
	`
	return r.queryRides(ctx, query, class, now, limit)
}

// FindExpiredPending returns pending rides whose deadline has passed.
func (r *RideRepository) FindExpiredPending(ctx context.Context, now time.Time, limit int) ([]*domain.Ride, error) {
	query := `
		SELECT ` + rideColumns + `
		FROM rides
		WHERE status = 'pending' AND expires_at < $1
		ORDER BY expires_at ASC
		LIMIT $2
	`
	return r.queryRides(ctx, query, now, limit)
}

// UpdateIfStatus atomically applies mutate to the ride, conditioned on its
// status still matching expected. The row is locked for the duration of the
// transaction and the final UPDATE repeats the status equality check, so a
// concurrent transition always leaves exactly one winner.
func (r *RideRepository) UpdateIfStatus(ctx context.Context, id string, expected domain.RideStatus, mutate func(*domain.Ride) error) (*domain.Ride, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	query := `SELECT ` + rideColumns + ` FROM rides WHERE id = $1 FOR UPDATE`
	ride, err := scanRide(tx.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, err
	}

	if ride.Status != expected {
		return nil, repository.ErrPreconditionFailed
	}

	if err := mutate(ride); err != nil {
		return nil, err
	}

	candidates, rejected, err := marshalSets(ride)
	if err != nil {
		return nil, err
	}

	update := `
		UPDATE rides
		SET driver_id = $1, status = $2, final_fare = $3,
		    candidates = $4, rejected_drivers = $5,
		    accepted_at = $6, confirmed_at = $7, arrived_at = $8,
		    started_at = $9, completed_at = $10, cancelled_at = $11,
		    cancel_reason = $12, cancelled_by = $13
		WHERE id = $14 AND status = $15
	`

	result, err := tx.ExecContext(ctx, update,
		nullString(ride.DriverID), ride.Status, nullFloat(ride.FinalFare),
		candidates, rejected,
		nullTime(ride.AcceptedAt), nullTime(ride.ConfirmedAt), nullTime(ride.ArrivedAt),
		nullTime(ride.StartedAt), nullTime(ride.CompletedAt), nullTime(ride.CancelledAt),
		nullString(ride.CancelReason), nullString(string(ride.CancelledBy)),
		id, expected,
	)
	if err != nil {
		return nil, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, repository.ErrPreconditionFailed
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return ride, nil
}

func (r *RideRepository) queryRides(ctx context.Context, query string, args ...any) ([]*domain.Ride, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rides []*domain.Ride
	for rows.Next() {
		ride, err := scanRide(rows)
		if err != nil {
			return nil, err
		}
		rides = append(rides, ride)
	}
	return rides, rows.Err()
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRide(row rowScanner) (*domain.Ride, error) {
	var ride domain.Ride
	var driverID, cancelReason, cancelledBy sql.NullString
	var proposedFare, finalFare sql.NullFloat64
	var candidates, rejected []byte
	var acceptedAt, confirmedAt, arrivedAt, startedAt, completedAt, cancelledAt sql.NullTime

	err := row.Scan(
		&ride.ID, &ride.RiderID, &driverID,
		&ride.Pickup.Address, &ride.Pickup.Lat, &ride.Pickup.Lng,
		&ride.Dropoff.Address, &ride.Dropoff.Lat, &ride.Dropoff.Lng,
		&ride.DistanceKm, &ride.EstimatedFare, &proposedFare, &finalFare,
		&ride.VehicleClass, &ride.PaymentMethod, &ride.Status,
		&candidates, &rejected,
		&ride.CreatedAt, &ride.ExpiresAt, &acceptedAt, &confirmedAt, &arrivedAt,
		&startedAt, &completedAt, &cancelledAt, &cancelReason, &cancelledBy,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	ride.DriverID = driverID.String
	ride.ProposedFare = proposedFare.Float64
	ride.FinalFare = finalFare.Float64
	ride.CancelReason = cancelReason.String
	ride.CancelledBy = domain.ActorRole(cancelledBy.String)
	ride.AcceptedAt = acceptedAt.Time
	ride.ConfirmedAt = confirmedAt.Time
	ride.ArrivedAt = arrivedAt.Time
	ride.StartedAt = startedAt.Time
	ride.CompletedAt = completedAt.Time
	ride.CancelledAt = cancelledAt.Time

	if len(candidates) > 0 {
		if err := json.Unmarshal(candidates, &ride.Candidates); err != nil {
			return nil, err
		}
	}
	if len(rejected) > 0 {
		if err := json.Unmarshal(rejected, &ride.RejectedDrivers); err != nil {
			return nil, err
		}
	}

	return &ride, nil
}

func marshalSets(ride *domain.Ride) ([]byte, []byte, error) {
	candidates := ride.Candidates
	if candidates == nil {
		candidates = []domain.Candidate{}
	}
	rejected := ride.RejectedDrivers
	if rejected == nil {
		rejected = []string{}
	}

	candidatesJSON, err := json.Marshal(candidates)
	if err != nil {
		return nil, nil, err
	}
	rejectedJSON, err := json.Marshal(rejected)
	if err != nil {
		return nil, nil, err
	}
	return candidatesJSON, rejectedJSON, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullFloat(f float64) sql.NullFloat64 {
	if f == 0 {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: f, Valid: true}
}

func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t, Valid: true}
}
