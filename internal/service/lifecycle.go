package service

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"dispatch/internal/config"
	"dispatch/internal/domain"
	"dispatch/internal/redis"
	"dispatch/internal/repository"
)

// fallbackPickupDistanceKm is used when a driver has no known location.
const fallbackPickupDistanceKm = 5.0

// etaMinutesPerKm converts pickup distance into a rough arrival estimate.
const etaMinutesPerKm = 3.0

// DistanceEstimator converts two locations into a road distance. It never
// fails for valid coordinates; implementations degrade to an offline formula.
type DistanceEstimator interface {
	DistanceKm(ctx context.Context, from, to domain.Location) float64
}

// RideService owns the ride lifecycle: creation, the accept/confirm
// handshake, status advancement, and cancellation. Every status mutation goes
// through the repository's conditional update, so concurrent operations on
// the same ride are linearized by the store, never by in-process locks.
type RideService struct {
	rideRepo      repository.RideRepository
	driverRepo    repository.DriverRepository
	locationStore redis.LocationStoreInterface
	matching      MatchingServiceInterface
	fare          FareEstimator
	distance      DistanceEstimator
	dispatcher    Dispatcher
	cfg           config.RideConfig
	log           *zap.Logger
}

// NewRideService creates a new RideService.
func NewRideService(
	rideRepo repository.RideRepository,
	driverRepo repository.DriverRepository,
	locationStore redis.LocationStoreInterface,
	matching MatchingServiceInterface,
	fare FareEstimator,
	distance DistanceEstimator,
	dispatcher Dispatcher,
	cfg config.RideConfig,
	log *zap.Logger,
) *RideService {
	return &RideService{
		rideRepo:      rideRepo,
		driverRepo:    driverRepo,
		locationStore: locationStore,
		matching:      matching,
		fare:          fare,
		distance:      distance,
		dispatcher:    dispatcher,
		cfg:           cfg,
		log:           log,
	}
}

// RequestRideRequest contains the parameters for requesting a ride.
type RequestRideRequest struct {
	RiderID       string
	Pickup        domain.Location
	Dropoff       domain.Location
	VehicleClass  string
	PaymentMethod string
	ProposedFare  float64 // 0 means the rider accepts the estimate
}

// RequestRide creates a pending ride with an acceptance deadline and
// broadcasts it to nearby drivers. The broadcast is fire-and-forget: a rider
// gets their ride back even when no driver can be reached.
func (s *RideService) RequestRide(ctx context.Context, req RequestRideRequest) (*domain.Ride, error) {
	if req.RiderID == "" {
		return nil, ErrInvalidRiderID
	}
	if !validCoordinates(req.Pickup) {
		return nil, ErrInvalidPickupLocation
	}
	if !validCoordinates(req.Dropoff) {
		return nil, ErrInvalidDropoffLocation
	}

	class, ok := domain.ValidVehicleClass(req.VehicleClass)
	if !ok {
		return nil, ErrInvalidVehicleClass
	}

	payment, ok := domain.ValidPaymentMethod(req.PaymentMethod)
	if !ok {
		return nil, ErrInvalidPaymentMethod
	}

	active, err := s.rideRepo.FindActiveByRider(ctx, req.RiderID)
	if err != nil {
		return nil, err
	}
	if active != nil {
		return nil, ErrAlreadyActiveRide
	}

	distanceKm := s.distance.DistanceKm(ctx, req.Pickup, req.Dropoff)
	estimated := s.fare.Estimate(distanceKm, class)

	if req.ProposedFare > 0 && req.ProposedFare < MinAllowedFare(estimated) {
		return nil, ErrFareTooLow
	}

	now := time.Now()
	ride := &domain.Ride{
		ID:              uuid.New().String(),
		RiderID:         req.RiderID,
		Pickup:          req.Pickup,
		Dropoff:         req.Dropoff,
		DistanceKm:      roundKm(distanceKm),
		EstimatedFare:   estimated,
		ProposedFare:    req.ProposedFare,
		VehicleClass:    class,
		PaymentMethod:   payment,
		Status:          domain.RideStatusPending,
		Candidates:      []domain.Candidate{},
		RejectedDrivers: []string{},
		CreatedAt:       now,
		ExpiresAt:       now.Add(s.cfg.ExpiryWindow),
	}

	if err := s.rideRepo.Create(ctx, ride); err != nil {
		return nil, err
	}

	go s.broadcastRideCreated(ride)

	return ride, nil
}

// broadcastRideCreated offers a fresh ride to nearby matching drivers.
func (s *RideService) broadcastRideCreated(ride *domain.Ride) {
	ctx := context.Background()

	candidates := s.matching.FindCandidates(ctx, ride.Pickup, ride.VehicleClass, s.cfg.SearchRadiusKm, s.cfg.CandidateLimit)
	if len(candidates) == 0 {
		s.log.Info("no drivers nearby for new ride", zap.String("ride_id", ride.ID))
		return
	}

	for _, c := range candidates {
		payload := RidePayload{
			RideID:           ride.ID,
			PickupAddress:    ride.Pickup.Address,
			PickupLat:        ride.Pickup.Lat,
			PickupLng:        ride.Pickup.Lng,
			DropoffAddress:   ride.Dropoff.Address,
			DistanceKm:       ride.DistanceKm,
			EstimatedFare:    ride.EstimatedFare,
			ProposedFare:     ride.ProposedFare,
			VehicleClass:     ride.VehicleClass,
			DistanceToPickup: roundKm(c.DistanceKm),
			CreatedAt:        ride.CreatedAt,
		}
		if err := s.dispatcher.Publish(ctx, DriverChannel(c.Driver.ID), EventRideCreated, payload); err != nil {
			s.log.Warn("failed to notify driver of new ride",
				zap.String("driver_id", c.Driver.ID), zap.Error(err))
		}
	}
}

// DriverAccept registers the driver as a candidate on a pending ride. It does
// not assign the ride; many drivers may accept the same ride and the rider
// picks one of them. Re-accepting is a no-op.
func (s *RideService) DriverAccept(ctx context.Context, driverID, rideID string) (*domain.Ride, error) {
	if driverID == "" {
		return nil, ErrInvalidDriverID
	}
	if rideID == "" {
		return nil, ErrInvalidRideID
	}

	driver, err := s.driverRepo.GetByID(ctx, driverID)
	if err != nil {
		return nil, err
	}
	if driver.Status == domain.DriverStatusBusy || driver.CurrentRideID != "" {
		return nil, ErrDriverBusy
	}
	if driver.Status != domain.DriverStatusOnline {
		return nil, ErrDriverNotOnline
	}

	ride, err := s.rideRepo.GetByID(ctx, rideID)
	if err != nil {
		return nil, err
	}
	if ride.Status == domain.RideStatusExpired {
		return nil, ErrRideExpired
	}
	if ride.Status != domain.RideStatusPending {
		return nil, ErrRideNotPending
	}

	now := time.Now()
	if ride.ExpiredAt(now) {
		s.expirePending(ctx, ride)
		return nil, ErrRideExpired
	}

	distanceKm := s.distanceToPickup(ctx, driverID, ride.Pickup)
	candidate := domain.Candidate{
		DriverID:           driver.ID,
		Name:               driver.Name,
		Phone:              driver.Phone,
		VehiclePlate:       driver.VehiclePlate,
		Rating:             driver.Rating,
		DistanceToPickupKm: roundKm(distanceKm),
		EtaMinutes:         int(math.Round(distanceKm * etaMinutesPerKm)),
		AcceptedAt:         now,
	}

	updated, err := s.rideRepo.UpdateIfStatus(ctx, rideID, domain.RideStatusPending, func(r *domain.Ride) error {
		if r.ExpiredAt(now) {
			return ErrRideExpired
		}
		if r.HasCandidate(driverID) {
			return nil
		}
		r.RemoveRejection(driverID)
		r.Candidates = append(r.Candidates, candidate)
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrRideExpired) {
			s.expirePending(ctx, ride)
			return nil, ErrRideExpired
		}
		if errors.Is(err, repository.ErrPreconditionFailed) {
			return nil, ErrRideNotPending
		}
		return nil, err
	}

	s.publish(ctx, RiderChannel(ride.RiderID), EventDriverAcceptedCandidate, CandidatePayload{
		RideID:    rideID,
		Candidate: candidate,
	})

	return updated, nil
}

// DriverReject records that the driver declined a pending ride. The driver is
// dropped from the candidate list if they had accepted, and the ride stops
// appearing in their available-rides feed. Rejecting twice is a no-op, and a
// rejection does not prevent a later accept.
func (s *RideService) DriverReject(ctx context.Context, driverID, rideID, reason string) error {
	if driverID == "" {
		return ErrInvalidDriverID
	}
	if rideID == "" {
		return ErrInvalidRideID
	}

	ride, err := s.rideRepo.GetByID(ctx, rideID)
	if err != nil {
		return err
	}
	if ride.Status != domain.RideStatusPending {
		return ErrRideNotPending
	}

	_, err = s.rideRepo.UpdateIfStatus(ctx, rideID, domain.RideStatusPending, func(r *domain.Ride) error {
		if !r.HasRejected(driverID) {
			r.RejectedDrivers = append(r.RejectedDrivers, driverID)
		}
		r.RemoveCandidate(driverID)
		return nil
	})
	if err != nil {
		if errors.Is(err, repository.ErrPreconditionFailed) {
			return ErrRideNotPending
		}
		return err
	}

	s.publish(ctx, RiderChannel(ride.RiderID), EventDriverRejectedRide, map[string]string{
		"ride_id":   rideID,
		"driver_id": driverID,
	})

	return nil
}

// ConfirmDriver is the rider's selection of one candidate. The transition
// pending→accepted and the driver assignment are conditioned on the ride
// still being pending at update time, so of any number of concurrent confirms
// exactly one wins; the rest observe ErrRideAlreadyAssigned.
func (s *RideService) ConfirmDriver(ctx context.Context, riderID, rideID, driverID string) (*domain.Ride, error) {
	if riderID == "" {
		return nil, ErrInvalidRiderID
	}
	if rideID == "" {
		return nil, ErrInvalidRideID
	}
	if driverID == "" {
		return nil, ErrInvalidDriverID
	}

	ride, err := s.rideRepo.GetByID(ctx, rideID)
	if err != nil {
		return nil, err
	}
	if ride.RiderID != riderID {
		return nil, ErrNotRideOwner
	}
	switch {
	case ride.Status == domain.RideStatusPending:
	case ride.Status == domain.RideStatusExpired:
		return nil, ErrRideExpired
	case ride.DriverID != "":
		return nil, ErrRideAlreadyAssigned
	default:
		return nil, ErrRideNotPending
	}

	now := time.Now()
	if ride.ExpiredAt(now) {
		s.expirePending(ctx, ride)
		return nil, ErrRideExpired
	}
	if !ride.HasCandidate(driverID) {
		return nil, ErrDriverNotCandidate
	}

	updated, err := s.rideRepo.UpdateIfStatus(ctx, rideID, domain.RideStatusPending, func(r *domain.Ride) error {
		if r.ExpiredAt(now) {
			return ErrRideExpired
		}
		if !r.HasCandidate(driverID) {
			return ErrDriverNotCandidate
		}
		r.DriverID = driverID
		r.Status = domain.RideStatusAccepted
		r.AcceptedAt = now
		return nil
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrRideExpired):
			s.expirePending(ctx, ride)
			return nil, ErrRideExpired
		case errors.Is(err, repository.ErrPreconditionFailed):
			return nil, s.confirmRaceOutcome(ctx, rideID)
		default:
			return nil, err
		}
	}

	// Assign the driver. If the driver can no longer take the ride, roll the
	// ride back to pending rather than leave it accepted-but-unassigned.
	if err := s.driverRepo.Assign(ctx, driverID, rideID); err != nil {
		if _, rbErr := s.rideRepo.UpdateIfStatus(ctx, rideID, domain.RideStatusAccepted, func(r *domain.Ride) error {
			r.DriverID = ""
			r.Status = domain.RideStatusPending
			r.AcceptedAt = time.Time{}
			return nil
		}); rbErr != nil {
			s.log.Error("failed to roll back confirm after driver assignment failure",
				zap.String("ride_id", rideID), zap.Error(rbErr))
		}
		if errors.Is(err, repository.ErrPreconditionFailed) {
			return nil, ErrDriverBusy
		}
		return nil, err
	}

	s.publish(ctx, DriverChannel(driverID), EventRideAssigned, AssignmentPayload{
		RideID:         rideID,
		RiderID:        riderID,
		PickupAddress:  updated.Pickup.Address,
		PickupLat:      updated.Pickup.Lat,
		PickupLng:      updated.Pickup.Lng,
		DropoffAddress: updated.Dropoff.Address,
		DropoffLat:     updated.Dropoff.Lat,
		DropoffLng:     updated.Dropoff.Lng,
		EstimatedFare:  updated.EstimatedFare,
	})

	for _, c := range updated.Candidates {
		if c.DriverID == driverID {
			continue
		}
		s.publish(ctx, DriverChannel(c.DriverID), EventRideNoLongerAvailable, map[string]string{
			"ride_id": rideID,
			"message": "rider selected another driver",
		})
	}

	return updated, nil
}

// confirmRaceOutcome maps a lost confirm race to the right caller-facing
// error by looking at where the ride ended up.
func (s *RideService) confirmRaceOutcome(ctx context.Context, rideID string) error {
	fresh, err := s.rideRepo.GetByID(ctx, rideID)
	if err != nil {
		return ErrRideAlreadyAssigned
	}
	if fresh.Status == domain.RideStatusExpired {
		return ErrRideExpired
	}
	return ErrRideAlreadyAssigned
}

// AdvanceStatus moves an assigned ride forward through
// confirmed→arrived→started→completed. Only the assigned driver may advance,
// and only along the transition table. Completion sets the final fare,
// releases the driver, and credits their earnings.
func (s *RideService) AdvanceStatus(ctx context.Context, driverID, rideID string, target domain.RideStatus) (*domain.Ride, error) {
	if driverID == "" {
		return nil, ErrInvalidDriverID
	}
	if rideID == "" {
		return nil, ErrInvalidRideID
	}

	switch target {
	case domain.RideStatusConfirmed, domain.RideStatusArrived, domain.RideStatusStarted, domain.RideStatusCompleted:
	default:
		return nil, ErrInvalidTransition
	}

	ride, err := s.rideRepo.GetByID(ctx, rideID)
	if err != nil {
		return nil, err
	}
	if ride.DriverID != driverID {
		return nil, ErrNotAssignedDriver
	}
	if !domain.CanTransition(ride.Status, target) {
		return nil, ErrInvalidTransition
	}

	now := time.Now()
	updated, err := s.rideRepo.UpdateIfStatus(ctx, rideID, ride.Status, func(r *domain.Ride) error {
		if !domain.CanTransition(r.Status, target) {
			return ErrInvalidTransition
		}
		r.Status = target
		switch target {
		case domain.RideStatusConfirmed:
			r.ConfirmedAt = now
		case domain.RideStatusArrived:
			r.ArrivedAt = now
		case domain.RideStatusStarted:
			r.StartedAt = now
		case domain.RideStatusCompleted:
			r.CompletedAt = now
			r.FinalFare = r.EstimatedFare
			if r.ProposedFare > 0 {
				r.FinalFare = r.ProposedFare
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, repository.ErrPreconditionFailed) {
			return nil, ErrInvalidTransition
		}
		return nil, err
	}

	if target == domain.RideStatusCompleted {
		if err := s.driverRepo.CreditCompletedRide(ctx, driverID, updated.FinalFare); err != nil {
			s.log.Error("failed to credit driver after completion",
				zap.String("driver_id", driverID), zap.String("ride_id", rideID), zap.Error(err))
		}
	}

	status := StatusPayload{RideID: rideID, Status: target, Timestamp: now}
	s.publish(ctx, RiderChannel(updated.RiderID), EventRideStatusUpdated, status)
	s.publish(ctx, DriverChannel(driverID), EventRideStatusUpdated, status)

	return updated, nil
}

// Cancel ends a ride before completion. Legal while the ride is pending,
// accepted, confirmed, or arrived; a started ride can only be completed. The
// actor must be the rider, the assigned driver, or the system.
func (s *RideService) Cancel(ctx context.Context, actor domain.Actor, rideID, reason string) (*domain.Ride, error) {
	if rideID == "" {
		return nil, ErrInvalidRideID
	}

	ride, err := s.rideRepo.GetByID(ctx, rideID)
	if err != nil {
		return nil, err
	}

	switch actor.Role {
	case domain.ActorRider:
		if actor.ID != ride.RiderID {
			return nil, ErrNotRideParticipant
		}
	case domain.ActorDriver:
		if ride.DriverID == "" || actor.ID != ride.DriverID {
			return nil, ErrNotRideParticipant
		}
	case domain.ActorSystem:
	default:
		return nil, ErrNotRideParticipant
	}

	if !cancellable(ride.Status) {
		return nil, ErrRideNotCancellable
	}

	if reason == "" {
		reason = "cancelled by " + string(actor.Role)
	}

	now := time.Now()
	updated, err := s.rideRepo.UpdateIfStatus(ctx, rideID, ride.Status, func(r *domain.Ride) error {
		if !cancellable(r.Status) {
			return ErrRideNotCancellable
		}
		r.Status = domain.RideStatusCancelled
		r.CancelledAt = now
		r.CancelledBy = actor.Role
		r.CancelReason = reason
		return nil
	})
	if err != nil {
		if errors.Is(err, repository.ErrPreconditionFailed) {
			return nil, ErrRideNotCancellable
		}
		return nil, err
	}

	if updated.DriverID != "" {
		if err := s.driverRepo.Release(ctx, updated.DriverID); err != nil {
			s.log.Error("failed to release driver after cancellation",
				zap.String("driver_id", updated.DriverID), zap.Error(err))
		}
	}

	payload := CancellationPayload{RideID: rideID, CancelledBy: actor.Role, Reason: reason}
	if actor.Role != domain.ActorRider {
		s.publish(ctx, RiderChannel(updated.RiderID), EventRideCancelled, payload)
	}
	if updated.DriverID != "" && actor.Role != domain.ActorDriver {
		s.publish(ctx, DriverChannel(updated.DriverID), EventRideCancelled, payload)
	}

	// Candidates who were still waiting on a pending ride learn it is gone.
	for _, c := range updated.Candidates {
		if c.DriverID == updated.DriverID {
			continue
		}
		s.publish(ctx, DriverChannel(c.DriverID), EventRideNoLongerAvailable, map[string]string{
			"ride_id": rideID,
			"message": "ride cancelled",
		})
	}

	return updated, nil
}

// GetRide retrieves a ride by ID.
func (s *RideService) GetRide(ctx context.Context, rideID string) (*domain.Ride, error) {
	if rideID == "" {
		return nil, ErrInvalidRideID
	}
	return s.rideRepo.GetByID(ctx, rideID)
}

// AvailableRide is a pending ride offered to a driver, with their distance to
// the pickup.
type AvailableRide struct {
	Ride               *domain.Ride
	DistanceToPickupKm float64
	EtaMinutes         int
	AlreadyAccepted    bool
}

// AvailableRides lists pending, unexpired rides of the driver's vehicle class
// within pickup range, excluding rides the driver has rejected. An offline
// driver gets an empty list.
func (s *RideService) AvailableRides(ctx context.Context, driverID string) ([]AvailableRide, error) {
	if driverID == "" {
		return nil, ErrInvalidDriverID
	}

	driver, err := s.driverRepo.GetByID(ctx, driverID)
	if err != nil {
		return nil, err
	}
	if driver.Status != domain.DriverStatusOnline {
		return nil, nil
	}

	now := time.Now()
	rides, err := s.rideRepo.FindPendingByClass(ctx, driver.VehicleClass, now, s.cfg.CandidateLimit)
	if err != nil {
		return nil, err
	}

	var available []AvailableRide
	for _, ride := range rides {
		if ride.HasRejected(driverID) {
			continue
		}

		distanceKm := s.distanceToPickup(ctx, driverID, ride.Pickup)
		if distanceKm > s.cfg.MaxPickupDistanceKm {
			continue
		}

		available = append(available, AvailableRide{
			Ride:               ride,
			DistanceToPickupKm: roundKm(distanceKm),
			EtaMinutes:         int(math.Round(distanceKm * etaMinutesPerKm)),
			AlreadyAccepted:    ride.HasCandidate(driverID),
		})
	}

	return available, nil
}

// expirePending marks a pending ride expired and tells the rider. Shared by
// the lazy path (accept/confirm discovering a stale deadline) and the sweeper.
// Losing the race to another transition is fine: someone else already settled
// the ride.
func (s *RideService) expirePending(ctx context.Context, ride *domain.Ride) {
	_, err := s.rideRepo.UpdateIfStatus(ctx, ride.ID, domain.RideStatusPending, func(r *domain.Ride) error {
		r.Status = domain.RideStatusExpired
		return nil
	})
	if err != nil {
		if !errors.Is(err, repository.ErrPreconditionFailed) {
			s.log.Error("failed to expire ride", zap.String("ride_id", ride.ID), zap.Error(err))
		}
		return
	}

	s.publish(ctx, RiderChannel(ride.RiderID), EventRideExpired, ExpiryPayload{
		RideID:  ride.ID,
		Message: "no driver was confirmed within the acceptance window",
	})
}

// distanceToPickup computes how far a driver is from a pickup point based on
// their last reported location.
func (s *RideService) distanceToPickup(ctx context.Context, driverID string, pickup domain.Location) float64 {
	loc, err := s.locationStore.GetLocation(ctx, driverID)
	if err != nil || loc == nil {
		return fallbackPickupDistanceKm
	}
	return s.distance.DistanceKm(ctx, domain.Location{Lat: loc.Lat, Lng: loc.Lng}, pickup)
}

// publish delivers an event without letting a dispatcher failure affect the
// operation that produced it.
func (s *RideService) publish(ctx context.Context, channel, event string, payload any) {
	if err := s.dispatcher.Publish(ctx, channel, event, payload); err != nil {
		s.log.Warn("event publish failed",
			zap.String("channel", channel), zap.String("event", event), zap.Error(err))
	}
}

func cancellable(status domain.RideStatus) bool {
	switch status {
	case domain.RideStatusPending, domain.RideStatusAccepted, domain.RideStatusConfirmed, domain.RideStatusArrived:
		return true
	}
	return false
}

func validCoordinates(loc domain.Location) bool {
	if loc.Lat == 0 && loc.Lng == 0 {
		return false
	}
	return loc.Lat >= -90 && loc.Lat <= 90 && loc.Lng >= -180 && loc.Lng <= 180
}

func roundKm(km float64) float64 {
	return math.Round(km*100) / 100
}
