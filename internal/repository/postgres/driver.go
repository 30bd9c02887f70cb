package postgres

import (
	"context"
	"database/sql"
	"errors"

	"dispatch/internal/domain"
	"dispatch/internal/repository"
)

// DriverRepository is a PostgreSQL implementation of repository.DriverRepository.
type DriverRepository struct {
	db *sql.DB
}

// NewDriverRepository creates a new PostgreSQL driver repository.
func NewDriverRepository(db *sql.DB) *DriverRepository {
	return &DriverRepository{db: db}
}

// Create adds a new driver.
func (r *DriverRepository) Create(ctx context.Context, driver *domain.Driver) error {
	query := `
		INSERT INTO drivers (id, name, phone, status, vehicle_class, vehicle_plate, rating, current_ride_id, total_earnings, completed_rides)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := r.db.ExecContext(ctx, query,
		driver.ID, driver.Name, driver.Phone, driver.Status,
		driver.VehicleClass, driver.VehiclePlate, driver.Rating,
		nullString(driver.CurrentRideID), driver.TotalEarnings, driver.CompletedRides,
	)
	return err
}

// GetByID retrieves a driver by ID.
func (r *DriverRepository) GetByID(ctx context.Context, id string) (*domain.Driver, error) {
	query := `
		SELECT id, name, phone, status, vehicle_class, vehicle_plate, rating, current_ride_id, total_earnings, completed_rides
		FROM drivers WHERE id = $1
	`

	var driver domain.Driver
	var currentRideID sql.NullString

	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&driver.ID, &driver.Name, &driver.Phone, &driver.Status,
		&driver.VehicleClass, &driver.VehiclePlate, &driver.Rating,
		&currentRideID, &driver.TotalEarnings, &driver.CompletedRides,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	driver.CurrentRideID = currentRideID.String
	return &driver, nil
}

// UpdateStatus updates the status of a driver.
func (r *DriverRepository) UpdateStatus(ctx context.Context, id string, status domain.DriverStatus) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE drivers SET status = $1 WHERE id = $2`, status, id)
	if err != nil {
		return err
	}
	return requireRow(result)
}

// Assign marks the driver BUSY on the given ride. The status equality in the
// WHERE clause makes the assignment a compare-and-swap: a driver who is
// offline, busy, or already assigned is left untouched.
func (r *DriverRepository) Assign(ctx context.Context, driverID, rideID string) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE drivers
		SET status = $1, current_ride_id = $2
		WHERE id = $3 AND status = $4 AND current_ride_id IS NULL
	`, domain.DriverStatusBusy, rideID, driverID, domain.DriverStatusOnline)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		if _, err := r.GetByID(ctx, driverID); err != nil {
			return err
		}
		return repository.ErrPreconditionFailed
	}
	return nil
}

// Release returns an assigned driver to ONLINE and clears the current ride.
func (r *DriverRepository) Release(ctx context.Context, driverID string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE drivers
		SET status = $1, current_ride_id = NULL
		WHERE id = $2 AND status = $3
	`, domain.DriverStatusOnline, driverID, domain.DriverStatusBusy)
	return err
}

// CreditCompletedRide releases the driver and credits the fare to their
// earnings accumulators in a single update.
func (r *DriverRepository) CreditCompletedRide(ctx context.Context, driverID string, fare float64) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE drivers
		SET status = $1, current_ride_id = NULL,
		    total_earnings = total_earnings + $2,
		    completed_rides = completed_rides + 1
		WHERE id = $3
	`, domain.DriverStatusOnline, fare, driverID)
	if err != nil {
		return err
	}
	return requireRow(result)
}

func requireRow(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return repository.ErrNotFound
	}
	return nil
}
