package tests

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"dispatch/internal/config"
	"dispatch/internal/domain"
	"dispatch/internal/service"
)

// ──────────────────────────────────────────────
// TEST ENVIRONMENT
// ──────────────────────────────────────────────

type testEnv struct {
	rideRepo      *MockRideRepository
	driverRepo    *MockDriverRepository
	locations     *MockLocationStore
	dispatcher    *MockDispatcher
	rideService   *service.RideService
	driverService *service.DriverService
	sweeper       *service.ExpirySweeper
	cfg           config.RideConfig
}

func newTestEnv() *testEnv {
	log := zap.NewNop()

	rideRepo := NewMockRideRepository()
	driverRepo := NewMockDriverRepository()
	locations := NewMockLocationStore()
	dispatcher := NewMockDispatcher()

	cfg := config.RideConfig{
		ExpiryWindow:        10 * time.Minute,
		SweepInterval:       time.Minute,
		SearchRadiusKm:      10,
		CandidateLimit:      10,
		MaxPickupDistanceKm: 15,
	}

	matching := service.NewMatchingService(locations, driverRepo, log)
	fare := service.NewStandardFareEstimator()
	distance := &MockDistanceEstimator{FixedKm: 10}

	rideService := service.NewRideService(
		rideRepo, driverRepo, locations, matching, fare, distance, dispatcher, cfg, log,
	)
	driverService := service.NewDriverService(driverRepo, locations, log)
	sweeper := service.NewExpirySweeper(rideRepo, dispatcher, cfg.SweepInterval, log)

	return &testEnv{
		rideRepo:      rideRepo,
		driverRepo:    driverRepo,
		locations:     locations,
		dispatcher:    dispatcher,
		rideService:   rideService,
		driverService: driverService,
		sweeper:       sweeper,
		cfg:           cfg,
	}
}

// addOnlineDriver seeds an online compact driver at the given position.
func (e *testEnv) addOnlineDriver(t *testing.T, id string, lat, lng float64) {
	t.Helper()
	e.driverRepo.AddDriver(&domain.Driver{
		ID:           id,
		Name:         "Driver " + id,
		Status:       domain.DriverStatusOnline,
		VehicleClass: domain.VehicleClassCompact,
		VehiclePlate: "KA-01-" + id,
		Rating:       4.8,
	})
	if err := e.locations.UpdateLocation(context.Background(), id, lat, lng); err != nil {
		t.Fatalf("failed to seed driver location: %v", err)
	}
}

func (e *testEnv) requestRide(t *testing.T, riderID string) *domain.Ride {
	t.Helper()
	ride, err := e.rideService.RequestRide(context.Background(), service.RequestRideRequest{
		RiderID: riderID,
		Pickup:  domain.Location{Address: "MG Road", Lat: 12.9716, Lng: 77.5946},
		Dropoff: domain.Location{Address: "Mysore Palace", Lat: 12.3052, Lng: 76.6552},
	})
	if err != nil {
		t.Fatalf("failed to request ride: %v", err)
	}
	return ride
}

// waitForEvent polls the dispatcher until the event shows up on the channel.
// Needed for notifications published from the ride broadcast goroutine.
func waitForEvent(t *testing.T, d *MockDispatcher, channel, event string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if d.CountEvents(channel, event) > 0 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for event %s on channel %s", event, channel)
}

// ──────────────────────────────────────────────
// RIDE CREATION
// ──────────────────────────────────────────────

func TestRequestRide_ValidInput_CreatesPendingRide(t *testing.T) {
	t.Parallel()
	env := newTestEnv()

	ride := env.requestRide(t, "rider-1")

	if ride.ID == "" {
		t.Error("expected ride ID to be set")
	}
	if ride.Status != domain.RideStatusPending {
		t.Errorf("expected status pending, got %s", ride.Status)
	}
	if ride.EstimatedFare <= 0 {
		t.Error("expected estimated fare to be computed")
	}
	if !ride.ExpiresAt.After(ride.CreatedAt) {
		t.Error("expected acceptance deadline after creation time")
	}
	if ride.VehicleClass != domain.VehicleClassCompact {
		t.Errorf("expected default vehicle class compact, got %s", ride.VehicleClass)
	}
	if ride.PaymentMethod != domain.PaymentMethodCash {
		t.Errorf("expected default payment method CASH, got %s", ride.PaymentMethod)
	}
}

func TestRequestRide_BroadcastsToNearbyDrivers(t *testing.T) {
	t.Parallel()
	env := newTestEnv()
	env.addOnlineDriver(t, "d1", 12.9720, 77.5950)
	env.addOnlineDriver(t, "d2", 12.9730, 77.5960)

	env.requestRide(t, "rider-1")

	waitForEvent(t, env.dispatcher, service.DriverChannel("d1"), service.EventRideCreated)
	waitForEvent(t, env.dispatcher, service.DriverChannel("d2"), service.EventRideCreated)
}

func TestRequestRide_SecondActiveRide_Fails(t *testing.T) {
	t.Parallel()
	env := newTestEnv()

	env.requestRide(t, "rider-1")

	_, err := env.rideService.RequestRide(context.Background(), service.RequestRideRequest{
		RiderID: "rider-1",
		Pickup:  domain.Location{Lat: 12.9716, Lng: 77.5946},
		Dropoff: domain.Location{Lat: 12.3052, Lng: 76.6552},
	})
	if !errors.Is(err, service.ErrAlreadyActiveRide) {
		t.Fatalf("expected ErrAlreadyActiveRide, got %v", err)
	}
}

func TestRequestRide_InvalidInput_Fails(t *testing.T) {
	t.Parallel()
	env := newTestEnv()

	cases := []struct {
		name    string
		req     service.RequestRideRequest
		wantErr error
	}{
		{
			name:    "missing rider",
			req:     service.RequestRideRequest{Pickup: domain.Location{Lat: 1, Lng: 1}, Dropoff: domain.Location{Lat: 2, Lng: 2}},
			wantErr: service.ErrInvalidRiderID,
		},
		{
			name:    "missing pickup",
			req:     service.RequestRideRequest{RiderID: "r", Dropoff: domain.Location{Lat: 2, Lng: 2}},
			wantErr: service.ErrInvalidPickupLocation,
		},
		{
			name:    "latitude out of range",
			req:     service.RequestRideRequest{RiderID: "r", Pickup: domain.Location{Lat: 91, Lng: 1}, Dropoff: domain.Location{Lat: 2, Lng: 2}},
			wantErr: service.ErrInvalidPickupLocation,
		},
		{
			name:    "unknown vehicle class",
			req:     service.RequestRideRequest{RiderID: "r", Pickup: domain.Location{Lat: 1, Lng: 1}, Dropoff: domain.Location{Lat: 2, Lng: 2}, VehicleClass: "hovercraft"},
			wantErr: service.ErrInvalidVehicleClass,
		},
		{
			name:    "unknown payment method",
			req:     service.RequestRideRequest{RiderID: "r", Pickup: domain.Location{Lat: 1, Lng: 1}, Dropoff: domain.Location{Lat: 2, Lng: 2}, PaymentMethod: "IOU"},
			wantErr: service.ErrInvalidPaymentMethod,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := env.rideService.RequestRide(context.Background(), tc.req)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected %v, got %v", tc.wantErr, err)
			}
		})
	}
}

// ──────────────────────────────────────────────
// FARE FLOOR
// ──────────────────────────────────────────────

func TestRequestRide_ProposedFareFloor(t *testing.T) {
	t.Parallel()
	env := newTestEnv()

	// Fixed 10km compact ride: estimate = ceil(30 + 10*18) = 210.
	// The floor is exactly 75% of that.
	const estimate = 210.0
	floor := service.MinAllowedFare(estimate)

	_, err := env.rideService.RequestRide(context.Background(), service.RequestRideRequest{
		RiderID:      "rider-floor",
		Pickup:       domain.Location{Lat: 12.9716, Lng: 77.5946},
		Dropoff:      domain.Location{Lat: 12.3052, Lng: 76.6552},
		ProposedFare: floor,
	})
	if err != nil {
		t.Fatalf("proposal at exactly 75%% of estimate should succeed, got %v", err)
	}

	_, err = env.rideService.RequestRide(context.Background(), service.RequestRideRequest{
		RiderID:      "rider-lowball",
		Pickup:       domain.Location{Lat: 12.9716, Lng: 77.5946},
		Dropoff:      domain.Location{Lat: 12.3052, Lng: 76.6552},
		ProposedFare: floor - 0.01,
	})
	if !errors.Is(err, service.ErrFareTooLow) {
		t.Fatalf("proposal below 75%% of estimate should fail, got %v", err)
	}
}

// ──────────────────────────────────────────────
// ACCEPT / REJECT
// ──────────────────────────────────────────────

func TestDriverAccept_AddsCandidate(t *testing.T) {
	t.Parallel()
	env := newTestEnv()
	env.addOnlineDriver(t, "d1", 12.9720, 77.5950)
	ride := env.requestRide(t, "rider-1")

	updated, err := env.rideService.DriverAccept(context.Background(), "d1", ride.ID)
	if err != nil {
		t.Fatalf("accept failed: %v", err)
	}

	if len(updated.Candidates) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(updated.Candidates))
	}
	cand := updated.Candidates[0]
	if cand.DriverID != "d1" {
		t.Errorf("expected candidate d1, got %s", cand.DriverID)
	}
	if cand.EtaMinutes <= 0 {
		t.Error("expected a positive ETA")
	}
	if updated.Status != domain.RideStatusPending {
		t.Errorf("accept must not change status, got %s", updated.Status)
	}

	if env.dispatcher.CountEvents(service.RiderChannel("rider-1"), service.EventDriverAcceptedCandidate) != 1 {
		t.Error("expected rider to be notified of the new candidate")
	}
}

func TestDriverAccept_Idempotent(t *testing.T) {
	t.Parallel()
	env := newTestEnv()
	env.addOnlineDriver(t, "d1", 12.9720, 77.5950)
	ride := env.requestRide(t, "rider-1")

	if _, err := env.rideService.DriverAccept(context.Background(), "d1", ride.ID); err != nil {
		t.Fatalf("first accept failed: %v", err)
	}
	updated, err := env.rideService.DriverAccept(context.Background(), "d1", ride.ID)
	if err != nil {
		t.Fatalf("repeat accept failed: %v", err)
	}
	if len(updated.Candidates) != 1 {
		t.Fatalf("repeat accept must not duplicate the candidate, got %d", len(updated.Candidates))
	}
}

func TestDriverAccept_OfflineOrBusyDriver_Fails(t *testing.T) {
	t.Parallel()
	env := newTestEnv()
	ride := env.requestRide(t, "rider-1")

	env.driverRepo.AddDriver(&domain.Driver{ID: "off", Status: domain.DriverStatusOffline, VehicleClass: domain.VehicleClassCompact})
	if _, err := env.rideService.DriverAccept(context.Background(), "off", ride.ID); !errors.Is(err, service.ErrDriverNotOnline) {
		t.Fatalf("expected ErrDriverNotOnline, got %v", err)
	}

	env.driverRepo.AddDriver(&domain.Driver{ID: "busy", Status: domain.DriverStatusBusy, CurrentRideID: "other", VehicleClass: domain.VehicleClassCompact})
	if _, err := env.rideService.DriverAccept(context.Background(), "busy", ride.ID); !errors.Is(err, service.ErrDriverBusy) {
		t.Fatalf("expected ErrDriverBusy, got %v", err)
	}
}

func TestDriverReject_RemovesCandidateAndHidesRide(t *testing.T) {
	t.Parallel()
	env := newTestEnv()
	env.addOnlineDriver(t, "d1", 12.9720, 77.5950)
	ride := env.requestRide(t, "rider-1")

	if _, err := env.rideService.DriverAccept(context.Background(), "d1", ride.ID); err != nil {
		t.Fatalf("accept failed: %v", err)
	}
	if err := env.rideService.DriverReject(context.Background(), "d1", ride.ID, "too far"); err != nil {
		t.Fatalf("reject failed: %v", err)
	}

	stored := env.rideRepo.GetRide(ride.ID)
	if stored.HasCandidate("d1") {
		t.Error("reject should remove the driver from the candidate list")
	}
	if !stored.HasRejected("d1") {
		t.Error("reject should add the driver to the rejected set")
	}

	// Rejecting again is a no-op.
	if err := env.rideService.DriverReject(context.Background(), "d1", ride.ID, ""); err != nil {
		t.Fatalf("repeat reject failed: %v", err)
	}
	if got := len(env.rideRepo.GetRide(ride.ID).RejectedDrivers); got != 1 {
		t.Fatalf("expected 1 rejected entry, got %d", got)
	}

	available, err := env.rideService.AvailableRides(context.Background(), "d1")
	if err != nil {
		t.Fatalf("available rides failed: %v", err)
	}
	for _, a := range available {
		if a.Ride.ID == ride.ID {
			t.Error("rejected ride should not appear in the driver's feed")
		}
	}
}

func TestDriverReject_ThenReaccept(t *testing.T) {
	t.Parallel()
	env := newTestEnv()
	env.addOnlineDriver(t, "d1", 12.9720, 77.5950)
	ride := env.requestRide(t, "rider-1")

	if err := env.rideService.DriverReject(context.Background(), "d1", ride.ID, ""); err != nil {
		t.Fatalf("reject failed: %v", err)
	}
	updated, err := env.rideService.DriverAccept(context.Background(), "d1", ride.ID)
	if err != nil {
		t.Fatalf("accept after reject failed: %v", err)
	}

	if !updated.HasCandidate("d1") {
		t.Error("driver should be a candidate after re-accepting")
	}
	if updated.HasRejected("d1") {
		t.Error("accept must remove the driver from the rejected set")
	}
}

// ──────────────────────────────────────────────
// CONFIRM
// ──────────────────────────────────────────────

func TestConfirmDriver_AssignsWinnerAndNotifiesLosers(t *testing.T) {
	t.Parallel()
	env := newTestEnv()
	env.addOnlineDriver(t, "d1", 12.9720, 77.5950)
	env.addOnlineDriver(t, "d2", 12.9730, 77.5960)
	ride := env.requestRide(t, "rider-1")

	for _, id := range []string{"d1", "d2"} {
		if _, err := env.rideService.DriverAccept(context.Background(), id, ride.ID); err != nil {
			t.Fatalf("accept by %s failed: %v", id, err)
		}
	}

	updated, err := env.rideService.ConfirmDriver(context.Background(), "rider-1", ride.ID, "d1")
	if err != nil {
		t.Fatalf("confirm failed: %v", err)
	}

	if updated.Status != domain.RideStatusAccepted {
		t.Errorf("expected status accepted, got %s", updated.Status)
	}
	if updated.DriverID != "d1" {
		t.Errorf("expected driver d1 assigned, got %q", updated.DriverID)
	}
	if updated.AcceptedAt.IsZero() {
		t.Error("expected acceptance timestamp to be set")
	}

	winner := env.driverRepo.GetDriver("d1")
	if winner.Status != domain.DriverStatusBusy || winner.CurrentRideID != ride.ID {
		t.Errorf("winner should be busy on the ride, got %s / %q", winner.Status, winner.CurrentRideID)
	}

	if env.dispatcher.CountEvents(service.DriverChannel("d1"), service.EventRideAssigned) != 1 {
		t.Error("winner should be told about the assignment")
	}
	if env.dispatcher.CountEvents(service.DriverChannel("d2"), service.EventRideNoLongerAvailable) != 1 {
		t.Error("losing candidate should be told the ride is gone")
	}
}

func TestConfirmDriver_NotOwner_Fails(t *testing.T) {
	t.Parallel()
	env := newTestEnv()
	env.addOnlineDriver(t, "d1", 12.9720, 77.5950)
	ride := env.requestRide(t, "rider-1")

	if _, err := env.rideService.DriverAccept(context.Background(), "d1", ride.ID); err != nil {
		t.Fatalf("accept failed: %v", err)
	}
	if _, err := env.rideService.ConfirmDriver(context.Background(), "impostor", ride.ID, "d1"); !errors.Is(err, service.ErrNotRideOwner) {
		t.Fatalf("expected ErrNotRideOwner, got %v", err)
	}
}

func TestConfirmDriver_NonCandidate_Fails(t *testing.T) {
	t.Parallel()
	env := newTestEnv()
	env.addOnlineDriver(t, "d1", 12.9720, 77.5950)
	ride := env.requestRide(t, "rider-1")

	if _, err := env.rideService.ConfirmDriver(context.Background(), "rider-1", ride.ID, "d1"); !errors.Is(err, service.ErrDriverNotCandidate) {
		t.Fatalf("expected ErrDriverNotCandidate, got %v", err)
	}
}

func TestConfirmDriver_SecondConfirm_Fails(t *testing.T) {
	t.Parallel()
	env := newTestEnv()
	env.addOnlineDriver(t, "d1", 12.9720, 77.5950)
	env.addOnlineDriver(t, "d2", 12.9730, 77.5960)
	ride := env.requestRide(t, "rider-1")

	for _, id := range []string{"d1", "d2"} {
		if _, err := env.rideService.DriverAccept(context.Background(), id, ride.ID); err != nil {
			t.Fatalf("accept by %s failed: %v", id, err)
		}
	}

	if _, err := env.rideService.ConfirmDriver(context.Background(), "rider-1", ride.ID, "d1"); err != nil {
		t.Fatalf("first confirm failed: %v", err)
	}
	if _, err := env.rideService.ConfirmDriver(context.Background(), "rider-1", ride.ID, "d2"); !errors.Is(err, service.ErrRideAlreadyAssigned) {
		t.Fatalf("expected ErrRideAlreadyAssigned, got %v", err)
	}
}

func TestConfirmDriver_DriverWentBusy_RollsBack(t *testing.T) {
	t.Parallel()
	env := newTestEnv()
	env.addOnlineDriver(t, "d1", 12.9720, 77.5950)
	ride := env.requestRide(t, "rider-1")

	if _, err := env.rideService.DriverAccept(context.Background(), "d1", ride.ID); err != nil {
		t.Fatalf("accept failed: %v", err)
	}

	// The driver picks up another ride between accept and confirm.
	if err := env.driverRepo.Assign(context.Background(), "d1", "other-ride"); err != nil {
		t.Fatalf("failed to seed busy driver: %v", err)
	}

	_, err := env.rideService.ConfirmDriver(context.Background(), "rider-1", ride.ID, "d1")
	if !errors.Is(err, service.ErrDriverBusy) {
		t.Fatalf("expected ErrDriverBusy, got %v", err)
	}

	stored := env.rideRepo.GetRide(ride.ID)
	if stored.Status != domain.RideStatusPending {
		t.Errorf("ride must be rolled back to pending, got %s", stored.Status)
	}
	if stored.DriverID != "" {
		t.Errorf("ride must not stay assigned, got %q", stored.DriverID)
	}
}

// ──────────────────────────────────────────────
// STATUS ADVANCEMENT
// ──────────────────────────────────────────────

// confirmRide runs the full accept+confirm handshake for one driver.
func (e *testEnv) confirmRide(t *testing.T, riderID, driverID string) *domain.Ride {
	t.Helper()
	ride := e.requestRide(t, riderID)
	if _, err := e.rideService.DriverAccept(context.Background(), driverID, ride.ID); err != nil {
		t.Fatalf("accept failed: %v", err)
	}
	updated, err := e.rideService.ConfirmDriver(context.Background(), riderID, ride.ID, driverID)
	if err != nil {
		t.Fatalf("confirm failed: %v", err)
	}
	return updated
}

func TestAdvanceStatus_FullLifecycle(t *testing.T) {
	t.Parallel()
	env := newTestEnv()
	env.addOnlineDriver(t, "d1", 12.9720, 77.5950)
	ride := env.confirmRide(t, "rider-1", "d1")

	steps := []domain.RideStatus{
		domain.RideStatusConfirmed,
		domain.RideStatusArrived,
		domain.RideStatusStarted,
		domain.RideStatusCompleted,
	}
	var final *domain.Ride
	for _, target := range steps {
		var err error
		final, err = env.rideService.AdvanceStatus(context.Background(), "d1", ride.ID, target)
		if err != nil {
			t.Fatalf("advance to %s failed: %v", target, err)
		}
	}

	if final.Status != domain.RideStatusCompleted {
		t.Errorf("expected completed, got %s", final.Status)
	}
	if final.FinalFare != final.EstimatedFare {
		t.Errorf("final fare should equal estimate when nothing was proposed, got %v", final.FinalFare)
	}
	if final.ConfirmedAt.IsZero() || final.ArrivedAt.IsZero() || final.StartedAt.IsZero() || final.CompletedAt.IsZero() {
		t.Error("every advancement should stamp its timestamp")
	}

	driver := env.driverRepo.GetDriver("d1")
	if driver.Status != domain.DriverStatusOnline || driver.CurrentRideID != "" {
		t.Errorf("driver should be released after completion, got %s / %q", driver.Status, driver.CurrentRideID)
	}
	if driver.TotalEarnings != final.FinalFare {
		t.Errorf("expected earnings %v, got %v", final.FinalFare, driver.TotalEarnings)
	}
	if driver.CompletedRides != 1 {
		t.Errorf("expected 1 completed ride, got %d", driver.CompletedRides)
	}

	if env.dispatcher.CountEvents(service.RiderChannel("rider-1"), service.EventRideStatusUpdated) != len(steps) {
		t.Error("rider should hear about every status change")
	}
}

func TestAdvanceStatus_SkippingSteps_Fails(t *testing.T) {
	t.Parallel()
	env := newTestEnv()
	env.addOnlineDriver(t, "d1", 12.9720, 77.5950)
	ride := env.confirmRide(t, "rider-1", "d1")

	// accepted -> started skips confirmed.
	if _, err := env.rideService.AdvanceStatus(context.Background(), "d1", ride.ID, domain.RideStatusStarted); !errors.Is(err, service.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}

	if _, err := env.rideService.AdvanceStatus(context.Background(), "d1", ride.ID, domain.RideStatusConfirmed); err != nil {
		t.Fatalf("advance to confirmed failed: %v", err)
	}

	// confirmed -> completed skips started.
	if _, err := env.rideService.AdvanceStatus(context.Background(), "d1", ride.ID, domain.RideStatusCompleted); !errors.Is(err, service.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestAdvanceStatus_WrongDriver_Fails(t *testing.T) {
	t.Parallel()
	env := newTestEnv()
	env.addOnlineDriver(t, "d1", 12.9720, 77.5950)
	env.addOnlineDriver(t, "d2", 12.9730, 77.5960)
	ride := env.confirmRide(t, "rider-1", "d1")

	if _, err := env.rideService.AdvanceStatus(context.Background(), "d2", ride.ID, domain.RideStatusConfirmed); !errors.Is(err, service.ErrNotAssignedDriver) {
		t.Fatalf("expected ErrNotAssignedDriver, got %v", err)
	}
}

func TestAdvanceStatus_ProposedFareBecomesFinal(t *testing.T) {
	t.Parallel()
	env := newTestEnv()
	env.addOnlineDriver(t, "d1", 12.9720, 77.5950)

	ride, err := env.rideService.RequestRide(context.Background(), service.RequestRideRequest{
		RiderID:      "rider-1",
		Pickup:       domain.Location{Lat: 12.9716, Lng: 77.5946},
		Dropoff:      domain.Location{Lat: 12.3052, Lng: 76.6552},
		ProposedFare: 180,
	})
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if _, err := env.rideService.DriverAccept(context.Background(), "d1", ride.ID); err != nil {
		t.Fatalf("accept failed: %v", err)
	}
	if _, err := env.rideService.ConfirmDriver(context.Background(), "rider-1", ride.ID, "d1"); err != nil {
		t.Fatalf("confirm failed: %v", err)
	}

	var final *domain.Ride
	for _, target := range []domain.RideStatus{domain.RideStatusConfirmed, domain.RideStatusStarted, domain.RideStatusCompleted} {
		final, err = env.rideService.AdvanceStatus(context.Background(), "d1", ride.ID, target)
		if err != nil {
			t.Fatalf("advance to %s failed: %v", target, err)
		}
	}

	if final.FinalFare != 180 {
		t.Errorf("expected proposed fare 180 as final, got %v", final.FinalFare)
	}
}

// ──────────────────────────────────────────────
// CANCELLATION
// ──────────────────────────────────────────────

func TestCancel_RiderCancelsAfterArrival(t *testing.T) {
	t.Parallel()
	env := newTestEnv()
	env.addOnlineDriver(t, "d1", 12.9720, 77.5950)
	ride := env.confirmRide(t, "rider-1", "d1")

	for _, target := range []domain.RideStatus{domain.RideStatusConfirmed, domain.RideStatusArrived} {
		if _, err := env.rideService.AdvanceStatus(context.Background(), "d1", ride.ID, target); err != nil {
			t.Fatalf("advance to %s failed: %v", target, err)
		}
	}

	cancelled, err := env.rideService.Cancel(context.Background(), domain.Actor{Role: domain.ActorRider, ID: "rider-1"}, ride.ID, "changed my mind")
	if err != nil {
		t.Fatalf("cancel failed: %v", err)
	}

	if cancelled.Status != domain.RideStatusCancelled {
		t.Errorf("expected cancelled, got %s", cancelled.Status)
	}
	if cancelled.CancelledBy != domain.ActorRider {
		t.Errorf("expected cancelled_by rider, got %s", cancelled.CancelledBy)
	}
	if cancelled.CancelReason != "changed my mind" {
		t.Errorf("unexpected cancel reason %q", cancelled.CancelReason)
	}

	driver := env.driverRepo.GetDriver("d1")
	if driver.Status != domain.DriverStatusOnline || driver.CurrentRideID != "" {
		t.Errorf("driver should be released, got %s / %q", driver.Status, driver.CurrentRideID)
	}
	if env.dispatcher.CountEvents(service.DriverChannel("d1"), service.EventRideCancelled) != 1 {
		t.Error("assigned driver should be told about the cancellation")
	}
}

func TestCancel_StartedRide_Fails(t *testing.T) {
	t.Parallel()
	env := newTestEnv()
	env.addOnlineDriver(t, "d1", 12.9720, 77.5950)
	ride := env.confirmRide(t, "rider-1", "d1")

	for _, target := range []domain.RideStatus{domain.RideStatusConfirmed, domain.RideStatusStarted} {
		if _, err := env.rideService.AdvanceStatus(context.Background(), "d1", ride.ID, target); err != nil {
			t.Fatalf("advance to %s failed: %v", target, err)
		}
	}

	_, err := env.rideService.Cancel(context.Background(), domain.Actor{Role: domain.ActorRider, ID: "rider-1"}, ride.ID, "")
	if !errors.Is(err, service.ErrRideNotCancellable) {
		t.Fatalf("expected ErrRideNotCancellable, got %v", err)
	}
}

func TestCancel_Stranger_Fails(t *testing.T) {
	t.Parallel()
	env := newTestEnv()
	ride := env.requestRide(t, "rider-1")

	_, err := env.rideService.Cancel(context.Background(), domain.Actor{Role: domain.ActorDriver, ID: "random"}, ride.ID, "")
	if !errors.Is(err, service.ErrNotRideParticipant) {
		t.Fatalf("expected ErrNotRideParticipant, got %v", err)
	}

	_, err = env.rideService.Cancel(context.Background(), domain.Actor{Role: domain.ActorRider, ID: "other-rider"}, ride.ID, "")
	if !errors.Is(err, service.ErrNotRideParticipant) {
		t.Fatalf("expected ErrNotRideParticipant, got %v", err)
	}
}

func TestCancel_PendingRide_NotifiesCandidates(t *testing.T) {
	t.Parallel()
	env := newTestEnv()
	env.addOnlineDriver(t, "d1", 12.9720, 77.5950)
	ride := env.requestRide(t, "rider-1")

	if _, err := env.rideService.DriverAccept(context.Background(), "d1", ride.ID); err != nil {
		t.Fatalf("accept failed: %v", err)
	}

	if _, err := env.rideService.Cancel(context.Background(), domain.Actor{Role: domain.ActorRider, ID: "rider-1"}, ride.ID, ""); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}

	if env.dispatcher.CountEvents(service.DriverChannel("d1"), service.EventRideNoLongerAvailable) != 1 {
		t.Error("waiting candidate should learn the ride is gone")
	}
}

// ──────────────────────────────────────────────
// AVAILABLE RIDES
// ──────────────────────────────────────────────

func TestAvailableRides_FiltersClassAndDistance(t *testing.T) {
	t.Parallel()
	env := newTestEnv()
	env.addOnlineDriver(t, "d1", 12.9720, 77.5950)
	ride := env.requestRide(t, "rider-1")

	// A premium ride should not show up for a compact driver.
	premium, err := env.rideService.RequestRide(context.Background(), service.RequestRideRequest{
		RiderID:      "rider-2",
		Pickup:       domain.Location{Lat: 12.9716, Lng: 77.5946},
		Dropoff:      domain.Location{Lat: 12.3052, Lng: 76.6552},
		VehicleClass: "premium",
	})
	if err != nil {
		t.Fatalf("premium request failed: %v", err)
	}

	available, err := env.rideService.AvailableRides(context.Background(), "d1")
	if err != nil {
		t.Fatalf("available rides failed: %v", err)
	}

	if len(available) != 1 {
		t.Fatalf("expected exactly 1 available ride, got %d", len(available))
	}
	if available[0].Ride.ID != ride.ID {
		t.Errorf("expected ride %s, got %s", ride.ID, available[0].Ride.ID)
	}
	for _, a := range available {
		if a.Ride.ID == premium.ID {
			t.Error("premium ride should be hidden from a compact driver")
		}
	}
}

func TestAvailableRides_OfflineDriver_GetsNothing(t *testing.T) {
	t.Parallel()
	env := newTestEnv()
	env.requestRide(t, "rider-1")
	env.driverRepo.AddDriver(&domain.Driver{ID: "off", Status: domain.DriverStatusOffline, VehicleClass: domain.VehicleClassCompact})

	available, err := env.rideService.AvailableRides(context.Background(), "off")
	if err != nil {
		t.Fatalf("available rides failed: %v", err)
	}
	if len(available) != 0 {
		t.Fatalf("offline driver should see no rides, got %d", len(available))
	}
}
