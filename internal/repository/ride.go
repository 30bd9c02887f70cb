package repository

import (
	"context"
	"time"

	"dispatch/internal/domain"
)

// RideRepository defines the persistence operations for rides.
//
// UpdateIfStatus is the only path for status-changing mutations: the mutation
// is applied atomically against the stored record, conditioned on its status
// still matching expected. Concurrent updaters of the same ride are linearized
// through it; the loser observes ErrPreconditionFailed.
type RideRepository interface {
	// Create persists a new ride.
	Create(ctx context.Context, ride *domain.Ride) error

	// GetByID retrieves a ride by ID.
	GetByID(ctx context.Context, id string) (*domain.Ride, error)

	// FindActiveByRider returns the rider's ride in any non-terminal status.
	// Returns nil if the rider has no active ride.
	FindActiveByRider(ctx context.Context, riderID string) (*domain.Ride, error)

	// FindPendingByClass returns pending, unexpired rides of the given
	// vehicle class, newest first.
	FindPendingByClass(ctx context.Context, class domain.VehicleClass, now time.Time, limit int) ([]*domain.Ride, error)

	// FindExpiredPending returns pending rides whose deadline has passed.
	FindExpiredPending(ctx context.Context, now time.Time, limit int) ([]*domain.Ride, error)

	// UpdateIfStatus atomically applies mutate to the ride only if its status
	// equals expected at update time. Returns the updated ride on success,
	// ErrPreconditionFailed when the status check fails, or the error
	// returned by mutate.
	UpdateIfStatus(ctx context.Context, id string, expected domain.RideStatus, mutate func(*domain.Ride) error) (*domain.Ride, error)
}
