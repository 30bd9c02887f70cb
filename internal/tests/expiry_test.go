package tests

import (
	"context"
	"errors"
	"testing"
	"time"

	"dispatch/internal/domain"
	"dispatch/internal/service"
)

func overdueRide(id, riderID string, now time.Time) *domain.Ride {
	return &domain.Ride{
		ID:        id,
		RiderID:   riderID,
		Status:    domain.RideStatusPending,
		Pickup:    domain.Location{Lat: 12.9716, Lng: 77.5946},
		Dropoff:   domain.Location{Lat: 12.3052, Lng: 76.6552},
		CreatedAt: now.Add(-20 * time.Minute),
		ExpiresAt: now.Add(-5 * time.Minute),
	}
}

func TestSweep_ExpiresOverdueRidesOnly(t *testing.T) {
	t.Parallel()
	env := newTestEnv()
	now := time.Now()

	env.rideRepo.AddRide(overdueRide("stale-1", "rider-1", now))
	env.rideRepo.AddRide(overdueRide("stale-2", "rider-2", now))
	fresh := env.requestRide(t, "rider-3")

	env.sweeper.Sweep(context.Background())

	for _, id := range []string{"stale-1", "stale-2"} {
		if got := env.rideRepo.GetRide(id).Status; got != domain.RideStatusExpired {
			t.Errorf("ride %s: expected expired, got %s", id, got)
		}
	}
	if got := env.rideRepo.GetRide(fresh.ID).Status; got != domain.RideStatusPending {
		t.Errorf("fresh ride must stay pending, got %s", got)
	}

	for _, rider := range []string{"rider-1", "rider-2"} {
		if env.dispatcher.CountEvents(service.RiderChannel(rider), service.EventRideExpired) != 1 {
			t.Errorf("rider %s should be notified of the expiry once", rider)
		}
	}
	if env.dispatcher.CountEvents(service.RiderChannel("rider-3"), service.EventRideExpired) != 0 {
		t.Error("rider of a fresh ride must not hear about expiry")
	}
}

func TestSweep_RepeatPass_IsIdempotent(t *testing.T) {
	t.Parallel()
	env := newTestEnv()
	env.rideRepo.AddRide(overdueRide("stale", "rider-1", time.Now()))

	env.sweeper.Sweep(context.Background())
	env.sweeper.Sweep(context.Background())

	if got := env.dispatcher.CountEvents(service.RiderChannel("rider-1"), service.EventRideExpired); got != 1 {
		t.Fatalf("expected exactly 1 expiry notification, got %d", got)
	}
}

func TestDriverAccept_PastDeadline_ExpiresLazily(t *testing.T) {
	t.Parallel()
	env := newTestEnv()
	env.addOnlineDriver(t, "d1", 12.9720, 77.5950)
	env.rideRepo.AddRide(overdueRide("stale", "rider-1", time.Now()))

	_, err := env.rideService.DriverAccept(context.Background(), "d1", "stale")
	if !errors.Is(err, service.ErrRideExpired) {
		t.Fatalf("expected ErrRideExpired, got %v", err)
	}

	if got := env.rideRepo.GetRide("stale").Status; got != domain.RideStatusExpired {
		t.Errorf("accept past the deadline should expire the ride, got %s", got)
	}
	if env.dispatcher.CountEvents(service.RiderChannel("rider-1"), service.EventRideExpired) != 1 {
		t.Error("rider should be notified of the lazy expiry")
	}
}

func TestConfirmDriver_PastDeadline_ExpiresLazily(t *testing.T) {
	t.Parallel()
	env := newTestEnv()
	env.addOnlineDriver(t, "d1", 12.9720, 77.5950)

	ride := overdueRide("stale", "rider-1", time.Now())
	ride.Candidates = []domain.Candidate{{DriverID: "d1"}}
	env.rideRepo.AddRide(ride)

	_, err := env.rideService.ConfirmDriver(context.Background(), "rider-1", "stale", "d1")
	if !errors.Is(err, service.ErrRideExpired) {
		t.Fatalf("expected ErrRideExpired, got %v", err)
	}

	if got := env.rideRepo.GetRide("stale").Status; got != domain.RideStatusExpired {
		t.Errorf("confirm past the deadline should expire the ride, got %s", got)
	}
}

func TestSweeper_StartStop(t *testing.T) {
	t.Parallel()
	env := newTestEnv()

	env.sweeper.Start()
	env.sweeper.Stop()
}
