package maps

import (
	"context"
	"fmt"
	"math"

	"go.uber.org/zap"
	gmaps "googlemaps.github.io/maps"

	"dispatch/internal/domain"
)

const earthRadiusKm = 6371.0

// DistanceService resolves road distances between two points via the Google
// Distance Matrix API. When the API is unconfigured or unreachable it falls
// back to the great-circle distance, so callers always get a usable number.
type DistanceService struct {
	client *gmaps.Client
	log    *zap.Logger
}

// NewDistanceService creates a DistanceService. An empty API key disables the
// external API and every lookup uses the offline fallback.
func NewDistanceService(apiKey string, log *zap.Logger) (*DistanceService, error) {
	if apiKey == "" {
		return &DistanceService{log: log}, nil
	}

	client, err := gmaps.NewClient(gmaps.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create maps client: %w", err)
	}
	return &DistanceService{client: client, log: log}, nil
}

// DistanceKm returns the distance in kilometers between two locations.
func (s *DistanceService) DistanceKm(ctx context.Context, from, to domain.Location) float64 {
	if s.client == nil {
		return HaversineKm(from.Lat, from.Lng, to.Lat, to.Lng)
	}

	resp, err := s.client.DistanceMatrix(ctx, &gmaps.DistanceMatrixRequest{
		Origins:      []string{fmt.Sprintf("%f,%f", from.Lat, from.Lng)},
		Destinations: []string{fmt.Sprintf("%f,%f", to.Lat, to.Lng)},
		Units:        gmaps.UnitsMetric,
	})
	if err != nil {
		s.log.Warn("distance matrix unavailable, using great-circle fallback", zap.Error(err))
		return HaversineKm(from.Lat, from.Lng, to.Lat, to.Lng)
	}

	if len(resp.Rows) == 0 || len(resp.Rows[0].Elements) == 0 || resp.Rows[0].Elements[0].Status != "OK" {
		s.log.Warn("distance matrix returned no route, using great-circle fallback")
		return HaversineKm(from.Lat, from.Lng, to.Lat, to.Lng)
	}

	return float64(resp.Rows[0].Elements[0].Distance.Meters) / 1000.0
}

// Geocode resolves an address to coordinates.
func (s *DistanceService) Geocode(ctx context.Context, address string) (lat, lng float64, err error) {
	if s.client == nil {
		return 0, 0, fmt.Errorf("geocoding unavailable: no maps API key configured")
	}

	results, err := s.client.Geocode(ctx, &gmaps.GeocodingRequest{Address: address})
	if err != nil {
		return 0, 0, fmt.Errorf("geocoding %q: %w", address, err)
	}
	if len(results) == 0 {
		return 0, 0, fmt.Errorf("address not found: %s", address)
	}

	loc := results[0].Geometry.Location
	return loc.Lat, loc.Lng, nil
}

// HaversineKm returns the great-circle distance in kilometers between two
// points specified in decimal degrees.
func HaversineKm(lat1, lng1, lat2, lng2 float64) float64 {
	dLat := degToRad(lat2 - lat1)
	dLng := degToRad(lng2 - lng1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(degToRad(lat1))*math.Cos(degToRad(lat2))*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusKm * c
}

func degToRad(deg float64) float64 {
	return deg * math.Pi / 180.0
}
