package repository

import (
	"context"

	"dispatch/internal/domain"
)

// DriverRepository defines the persistence operations for drivers.
type DriverRepository interface {
	// Create adds a new driver.
	Create(ctx context.Context, driver *domain.Driver) error

	// GetByID retrieves a driver by ID.
	GetByID(ctx context.Context, id string) (*domain.Driver, error)

	// UpdateStatus updates the status of a driver.
	UpdateStatus(ctx context.Context, id string, status domain.DriverStatus) error

	// Assign marks the driver BUSY on the given ride, conditioned on the
	// driver currently being ONLINE and unassigned. Returns
	// ErrPreconditionFailed otherwise.
	Assign(ctx context.Context, driverID, rideID string) error

	// Release returns an assigned driver to ONLINE and clears the current
	// ride. Releasing an unassigned driver is a no-op.
	Release(ctx context.Context, driverID string) error

	// CreditCompletedRide releases the driver and credits the fare to their
	// earnings accumulators in one operation.
	CreditCompletedRide(ctx context.Context, driverID string, fare float64) error
}
