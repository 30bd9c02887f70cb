package tests

import (
	"context"
	"fmt"
	"testing"

	"go.uber.org/zap"

	"dispatch/internal/domain"
	"dispatch/internal/service"
)

func TestFindCandidates_FiltersStatusClassAndRadius(t *testing.T) {
	t.Parallel()

	driverRepo := NewMockDriverRepository()
	locations := NewMockLocationStore()
	matching := service.NewMatchingService(locations, driverRepo, zap.NewNop())

	ctx := context.Background()
	pickup := domain.Location{Lat: 12.9716, Lng: 77.5946}

	seed := func(id string, status domain.DriverStatus, class domain.VehicleClass, lat, lng float64) {
		driverRepo.AddDriver(&domain.Driver{ID: id, Status: status, VehicleClass: class})
		if err := locations.UpdateLocation(ctx, id, lat, lng); err != nil {
			t.Fatalf("failed to seed location: %v", err)
		}
	}

	seed("near-online", domain.DriverStatusOnline, domain.VehicleClassCompact, 12.9720, 77.5950)
	seed("near-offline", domain.DriverStatusOffline, domain.VehicleClassCompact, 12.9721, 77.5951)
	seed("near-busy", domain.DriverStatusBusy, domain.VehicleClassCompact, 12.9722, 77.5952)
	seed("near-premium", domain.DriverStatusOnline, domain.VehicleClassPremium, 12.9723, 77.5953)
	seed("far-online", domain.DriverStatusOnline, domain.VehicleClassCompact, 13.5000, 78.5000)

	candidates := matching.FindCandidates(ctx, pickup, domain.VehicleClassCompact, 10, 10)

	if len(candidates) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(candidates))
	}
	if candidates[0].Driver.ID != "near-online" {
		t.Errorf("expected near-online, got %s", candidates[0].Driver.ID)
	}
	if candidates[0].DistanceKm <= 0 {
		t.Error("expected a positive distance to pickup")
	}
}

func TestFindCandidates_HonorsLimit(t *testing.T) {
	t.Parallel()

	driverRepo := NewMockDriverRepository()
	locations := NewMockLocationStore()
	matching := service.NewMatchingService(locations, driverRepo, zap.NewNop())

	ctx := context.Background()
	for i := 0; i < 20; i++ {
		id := fmt.Sprintf("d%d", i)
		driverRepo.AddDriver(&domain.Driver{ID: id, Status: domain.DriverStatusOnline, VehicleClass: domain.VehicleClassCompact})
		if err := locations.UpdateLocation(ctx, id, 12.9720, 77.5950); err != nil {
			t.Fatalf("failed to seed location: %v", err)
		}
	}

	candidates := matching.FindCandidates(ctx, domain.Location{Lat: 12.9716, Lng: 77.5946}, domain.VehicleClassCompact, 10, 5)
	if len(candidates) != 5 {
		t.Fatalf("expected limit of 5 candidates, got %d", len(candidates))
	}
}

func TestFindCandidates_SkipsDriversWithoutRecord(t *testing.T) {
	t.Parallel()

	driverRepo := NewMockDriverRepository()
	locations := NewMockLocationStore()
	matching := service.NewMatchingService(locations, driverRepo, zap.NewNop())

	ctx := context.Background()
	// Location exists but no driver row behind it.
	if err := locations.UpdateLocation(ctx, "ghost", 12.9720, 77.5950); err != nil {
		t.Fatalf("failed to seed location: %v", err)
	}

	candidates := matching.FindCandidates(ctx, domain.Location{Lat: 12.9716, Lng: 77.5946}, domain.VehicleClassCompact, 10, 10)
	if len(candidates) != 0 {
		t.Fatalf("expected no candidates, got %d", len(candidates))
	}
}
