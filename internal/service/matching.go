package service

import (
	"context"

	"go.uber.org/zap"

	"dispatch/internal/domain"
	"dispatch/internal/redis"
	"dispatch/internal/repository"
)

const (
	defaultSearchRadiusKm = 10.0
	defaultCandidateLimit = 10
)

// MatchCandidate is an online driver eligible for a pickup, with their
// distance to it.
type MatchCandidate struct {
	Driver     *domain.Driver
	DistanceKm float64
}

// MatchingServiceInterface defines the nearby-driver lookup contract.
// This interface allows for testing with mock implementations.
type MatchingServiceInterface interface {
	FindCandidates(ctx context.Context, pickup domain.Location, class domain.VehicleClass, radiusKm float64, limit int) []MatchCandidate
}

// Ensure MatchingService implements MatchingServiceInterface.
var _ MatchingServiceInterface = (*MatchingService)(nil)

// MatchingService finds online drivers near a pickup point, closest first.
type MatchingService struct {
	locationStore redis.LocationStoreInterface
	driverRepo    repository.DriverRepository
	log           *zap.Logger
}

// NewMatchingService creates a new MatchingService.
func NewMatchingService(
	locationStore redis.LocationStoreInterface,
	driverRepo repository.DriverRepository,
	log *zap.Logger,
) *MatchingService {
	return &MatchingService{
		locationStore: locationStore,
		driverRepo:    driverRepo,
		log:           log,
	}
}

// FindCandidates returns up to limit online drivers of the given class within
// radiusKm of the pickup, ascending by distance. Matching is best-effort: any
// query error yields an empty list so ride creation is never blocked on it.
func (s *MatchingService) FindCandidates(ctx context.Context, pickup domain.Location, class domain.VehicleClass, radiusKm float64, limit int) []MatchCandidate {
	if radiusKm <= 0 {
		radiusKm = defaultSearchRadiusKm
	}
	if limit <= 0 {
		limit = defaultCandidateLimit
	}

	nearby, err := s.locationStore.FindNearbyDrivers(ctx, pickup.Lat, pickup.Lng, radiusKm)
	if err != nil {
		s.log.Warn("nearby driver query failed", zap.Error(err))
		return nil
	}

	candidates := make([]MatchCandidate, 0, limit)
	for _, loc := range nearby {
		if len(candidates) >= limit {
			break
		}

		driver, err := s.driverRepo.GetByID(ctx, loc.DriverID)
		if err != nil {
			if err != repository.ErrNotFound {
				s.log.Warn("driver lookup failed during matching",
					zap.String("driver_id", loc.DriverID), zap.Error(err))
			}
			continue
		}

		if driver.Status != domain.DriverStatusOnline {
			continue
		}
		if driver.VehicleClass != class {
			continue
		}

		candidates = append(candidates, MatchCandidate{
			Driver:     driver,
			DistanceKm: loc.DistanceKm,
		})
	}

	return candidates
}
