package domain

import "time"

// RideStatus represents the current status of a ride.
type RideStatus string

const (
	RideStatusPending   RideStatus = "pending"
	RideStatusAccepted  RideStatus = "accepted"
	RideStatusConfirmed RideStatus = "confirmed"
	RideStatusArrived   RideStatus = "arrived"
	RideStatusStarted   RideStatus = "started"
	RideStatusCompleted RideStatus = "completed"
	RideStatusCancelled RideStatus = "cancelled"
	RideStatusExpired   RideStatus = "expired"
)

// RideTransitions is the legal status flow. Any status not present as a key
// is terminal.
var RideTransitions = map[RideStatus][]RideStatus{
	RideStatusPending:   {RideStatusAccepted, RideStatusCancelled, RideStatusExpired},
	RideStatusAccepted:  {RideStatusConfirmed, RideStatusCancelled},
	RideStatusConfirmed: {RideStatusArrived, RideStatusStarted, RideStatusCancelled},
	RideStatusArrived:   {RideStatusStarted, RideStatusCancelled},
	RideStatusStarted:   {RideStatusCompleted, RideStatusCancelled},
}

// CanTransition reports whether moving a ride from one status to another is
// allowed by the transition table.
func CanTransition(from, to RideStatus) bool {
	for _, next := range RideTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether a ride in this status can never change again.
func (s RideStatus) IsTerminal() bool {
	switch s {
	case RideStatusCompleted, RideStatusCancelled, RideStatusExpired:
		return true
	}
	return false
}

// VehicleClass represents the class of vehicle requested for a ride.
type VehicleClass string

const (
	VehicleClassCompact     VehicleClass = "compact"
	VehicleClassPremium     VehicleClass = "premium"
	VehicleClassAuto        VehicleClass = "auto"
	VehicleClassPremiumPlus VehicleClass = "premium_plus"
)

// PaymentMethod represents the payment method for a ride.
type PaymentMethod string

const (
	PaymentMethodCash   PaymentMethod = "CASH"
	PaymentMethodCard   PaymentMethod = "CARD"
	PaymentMethodWallet PaymentMethod = "WALLET"
	PaymentMethodUPI    PaymentMethod = "UPI"
)

// Location is an address with resolved coordinates.
type Location struct {
	Address string  `json:"address"`
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
}

// Candidate is a driver who accepted a pending ride and is waiting for the
// rider to pick one of them.
type Candidate struct {
	DriverID           string    `json:"driver_id"`
	Name               string    `json:"name"`
	Phone              string    `json:"phone"`
	VehiclePlate       string    `json:"vehicle_plate"`
	Rating             float64   `json:"rating"`
	DistanceToPickupKm float64   `json:"distance_to_pickup_km"`
	EtaMinutes         int       `json:"eta_minutes"`
	AcceptedAt         time.Time `json:"accepted_at"`
}

// Ride is the central aggregate: one transportation request from creation to
// a terminal status. Candidates and RejectedDrivers are only populated while
// the ride is pending; the two sets stay disjoint per driver.
type Ride struct {
	ID              string
	RiderID         string
	DriverID        string // empty until the rider confirms a candidate
	Pickup          Location
	Dropoff         Location
	DistanceKm      float64
	EstimatedFare   float64
	ProposedFare    float64 // rider-proposed, 0 when not given
	FinalFare       float64 // set on completion only
	VehicleClass    VehicleClass
	PaymentMethod   PaymentMethod
	Status          RideStatus
	Candidates      []Candidate
	RejectedDrivers []string
	CreatedAt       time.Time
	ExpiresAt       time.Time
	AcceptedAt      time.Time
	ConfirmedAt     time.Time
	ArrivedAt       time.Time
	StartedAt       time.Time
	CompletedAt     time.Time
	CancelledAt     time.Time
	CancelReason    string
	CancelledBy     ActorRole
}

// HasCandidate reports whether the driver is already on the candidate list.
func (r *Ride) HasCandidate(driverID string) bool {
	for _, c := range r.Candidates {
		if c.DriverID == driverID {
			return true
		}
	}
	return false
}

// HasRejected reports whether the driver previously declined this ride.
func (r *Ride) HasRejected(driverID string) bool {
	for _, id := range r.RejectedDrivers {
		if id == driverID {
			return true
		}
	}
	return false
}

// RemoveCandidate drops the driver from the candidate list if present.
func (r *Ride) RemoveCandidate(driverID string) {
	kept := r.Candidates[:0]
	for _, c := range r.Candidates {
		if c.DriverID != driverID {
			kept = append(kept, c)
		}
	}
	r.Candidates = kept
}

// RemoveRejection drops the driver from the rejected set if present.
func (r *Ride) RemoveRejection(driverID string) {
	kept := r.RejectedDrivers[:0]
	for _, id := range r.RejectedDrivers {
		if id != driverID {
			kept = append(kept, id)
		}
	}
	r.RejectedDrivers = kept
}

// ExpiredAt reports whether the ride's acceptance window has passed at the
// given instant. Only meaningful for pending rides; ExpiresAt is fixed at
// creation and never extended.
func (r *Ride) ExpiredAt(now time.Time) bool {
	return !r.ExpiresAt.IsZero() && now.After(r.ExpiresAt)
}

// ValidVehicleClass validates a vehicle class string. Empty defaults to
// compact.
func ValidVehicleClass(class string) (VehicleClass, bool) {
	switch VehicleClass(class) {
	case VehicleClassCompact, VehicleClassPremium, VehicleClassAuto, VehicleClassPremiumPlus:
		return VehicleClass(class), true
	case "":
		return VehicleClassCompact, true
	}
	return "", false
}

// ValidPaymentMethod validates a payment method string. Empty defaults to cash.
func ValidPaymentMethod(method string) (PaymentMethod, bool) {
	switch PaymentMethod(method) {
	case PaymentMethodCash, PaymentMethodCard, PaymentMethodWallet, PaymentMethodUPI:
		return PaymentMethod(method), true
	case "":
		return PaymentMethodCash, true
	}
	return "", false
}
