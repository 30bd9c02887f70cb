package service

import (
	"context"

	"go.uber.org/zap"

	"dispatch/internal/domain"
	"dispatch/internal/redis"
	"dispatch/internal/repository"
)

// DriverService manages driver presence: location reports and going offline.
type DriverService struct {
	driverRepo    repository.DriverRepository
	locationStore redis.LocationStoreInterface
	log           *zap.Logger
}

// NewDriverService creates a new DriverService.
func NewDriverService(driverRepo repository.DriverRepository, locationStore redis.LocationStoreInterface, log *zap.Logger) *DriverService {
	return &DriverService{
		driverRepo:    driverRepo,
		locationStore: locationStore,
		log:           log,
	}
}

// UpdateLocation records a driver's position in the geo index and marks them
// online if they were offline. A busy driver stays busy; reporting a location
// mid-ride must not free them for matching.
func (s *DriverService) UpdateLocation(ctx context.Context, driverID string, lat, lng float64) error {
	if driverID == "" {
		return ErrInvalidDriverID
	}
	if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return ErrInvalidLocation
	}

	driver, err := s.driverRepo.GetByID(ctx, driverID)
	if err != nil {
		return err
	}

	if err := s.locationStore.UpdateLocation(ctx, driverID, lat, lng); err != nil {
		return err
	}

	if driver.Status == domain.DriverStatusOffline {
		if err := s.driverRepo.UpdateStatus(ctx, driverID, domain.DriverStatusOnline); err != nil {
			return err
		}
	}

	return nil
}

// SetOffline takes a driver out of matching. A driver with an assigned ride
// cannot go offline mid-ride.
func (s *DriverService) SetOffline(ctx context.Context, driverID string) error {
	if driverID == "" {
		return ErrInvalidDriverID
	}

	driver, err := s.driverRepo.GetByID(ctx, driverID)
	if err != nil {
		return err
	}
	if driver.Status == domain.DriverStatusBusy || driver.CurrentRideID != "" {
		return ErrDriverBusy
	}

	if err := s.locationStore.RemoveLocation(ctx, driverID); err != nil {
		s.log.Warn("failed to remove driver from geo index",
			zap.String("driver_id", driverID), zap.Error(err))
	}

	return s.driverRepo.UpdateStatus(ctx, driverID, domain.DriverStatusOffline)
}

// GetDriver retrieves a driver by ID.
func (s *DriverService) GetDriver(ctx context.Context, driverID string) (*domain.Driver, error) {
	if driverID == "" {
		return nil, ErrInvalidDriverID
	}
	return s.driverRepo.GetByID(ctx, driverID)
}
