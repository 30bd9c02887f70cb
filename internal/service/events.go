package service

import (
	"context"
	"time"

	"dispatch/internal/domain"
)

// Lifecycle event names published to rider and driver channels.
const (
	EventRideCreated             = "rideCreated"
	EventDriverAcceptedCandidate = "driverAcceptedCandidate"
	EventDriverRejectedRide      = "driverRejectedRide"
	EventRideAssigned            = "rideAssigned"
	EventRideNoLongerAvailable   = "rideNoLongerAvailable"
	EventRideStatusUpdated       = "rideStatusUpdated"
	EventRideCancelled           = "rideCancelled"
	EventRideExpired             = "rideExpired"
)

// Dispatcher delivers lifecycle events to rider and driver channels.
// Delivery is fire-and-forget with at-most-once semantics: a failed publish
// is never retried and never fails the operation that triggered it.
type Dispatcher interface {
	Publish(ctx context.Context, channel, event string, payload any) error
}

// RiderChannel is the notification channel for a rider.
func RiderChannel(riderID string) string {
	return "rider:" + riderID
}

// DriverChannel is the notification channel for a driver.
func DriverChannel(driverID string) string {
	return "driver:" + driverID
}

// CandidatePayload describes a driver offering to take a pending ride.
type CandidatePayload struct {
	RideID    string           `json:"ride_id"`
	Candidate domain.Candidate `json:"candidate"`
}

// StatusPayload describes a status change on a ride.
type StatusPayload struct {
	RideID    string            `json:"ride_id"`
	Status    domain.RideStatus `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
}

// RidePayload describes a ride offered to nearby drivers.
type RidePayload struct {
	RideID           string               `json:"ride_id"`
	PickupAddress    string               `json:"pickup_address"`
	PickupLat        float64              `json:"pickup_lat"`
	PickupLng        float64              `json:"pickup_lng"`
	DropoffAddress   string               `json:"dropoff_address"`
	DistanceKm       float64              `json:"distance_km"`
	EstimatedFare    float64              `json:"estimated_fare"`
	ProposedFare     float64              `json:"proposed_fare,omitempty"`
	VehicleClass     domain.VehicleClass  `json:"vehicle_class"`
	DistanceToPickup float64              `json:"distance_to_pickup_km"`
	CreatedAt        time.Time            `json:"created_at"`
}

// AssignmentPayload describes a confirmed assignment to the winning driver.
type AssignmentPayload struct {
	RideID         string  `json:"ride_id"`
	RiderID        string  `json:"rider_id"`
	PickupAddress  string  `json:"pickup_address"`
	PickupLat      float64 `json:"pickup_lat"`
	PickupLng      float64 `json:"pickup_lng"`
	DropoffAddress string  `json:"dropoff_address"`
	DropoffLat     float64 `json:"dropoff_lat"`
	DropoffLng     float64 `json:"dropoff_lng"`
	EstimatedFare  float64 `json:"estimated_fare"`
}

// CancellationPayload describes a cancelled ride.
type CancellationPayload struct {
	RideID      string           `json:"ride_id"`
	CancelledBy domain.ActorRole `json:"cancelled_by"`
	Reason      string           `json:"reason"`
}

// ExpiryPayload describes an expired ride.
type ExpiryPayload struct {
	RideID  string `json:"ride_id"`
	Message string `json:"message"`
}
