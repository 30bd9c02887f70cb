package maps

import (
	"context"
	"math"
	"testing"

	"go.uber.org/zap"

	"dispatch/internal/domain"
)

func TestHaversineKm_KnownDistance(t *testing.T) {
	// Bengaluru city center to the airport, roughly 29 km great-circle.
	got := HaversineKm(12.9716, 77.5946, 13.1986, 77.7066)

	if got < 27 || got > 31 {
		t.Errorf("unexpected distance: got %.2f km", got)
	}
}

func TestHaversineKm_ZeroForSamePoint(t *testing.T) {
	got := HaversineKm(12.97, 77.59, 12.97, 77.59)

	if math.Abs(got) > 1e-9 {
		t.Errorf("expected 0, got %f", got)
	}
}

func TestHaversineKm_Symmetric(t *testing.T) {
	a := HaversineKm(12.97, 77.59, 13.19, 77.70)
	b := HaversineKm(13.19, 77.70, 12.97, 77.59)

	if math.Abs(a-b) > 1e-9 {
		t.Errorf("distance not symmetric: %f vs %f", a, b)
	}
}

func TestDistanceKm_FallsBackWithoutAPIKey(t *testing.T) {
	svc, err := NewDistanceService("", zap.NewNop())
	if err != nil {
		t.Fatalf("failed to create service: %v", err)
	}

	from := domain.Location{Lat: 12.9716, Lng: 77.5946}
	to := domain.Location{Lat: 13.1986, Lng: 77.7066}

	got := svc.DistanceKm(context.Background(), from, to)
	want := HaversineKm(from.Lat, from.Lng, to.Lat, to.Lng)

	if math.Abs(got-want) > 1e-9 {
		t.Errorf("expected haversine fallback %f, got %f", want, got)
	}
}

func TestGeocode_FailsWithoutAPIKey(t *testing.T) {
	svc, err := NewDistanceService("", zap.NewNop())
	if err != nil {
		t.Fatalf("failed to create service: %v", err)
	}

	if _, _, err := svc.Geocode(context.Background(), "MG Road, Bengaluru"); err == nil {
		t.Error("expected error when geocoding without an API key")
	}
}
