package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"dispatch/internal/domain"
	"dispatch/internal/service"
)

// RideHandler handles HTTP requests for rides.
type RideHandler struct {
	rideService *service.RideService
	fare        service.FareEstimator
	distance    service.DistanceEstimator
}

// NewRideHandler creates a new RideHandler.
func NewRideHandler(rideService *service.RideService, fare service.FareEstimator, distance service.DistanceEstimator) *RideHandler {
	return &RideHandler{
		rideService: rideService,
		fare:        fare,
		distance:    distance,
	}
}

// LocationPayload is a location in request and response bodies.
type LocationPayload struct {
	Address string  `json:"address,omitempty"`
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
}

// CreateRideRequest is the HTTP request body for requesting a ride.
type CreateRideRequest struct {
	RiderID       string          `json:"rider_id"`
	Pickup        LocationPayload `json:"pickup"`
	Dropoff       LocationPayload `json:"dropoff"`
	VehicleClass  string          `json:"vehicle_class,omitempty"`
	PaymentMethod string          `json:"payment_method,omitempty"` // CASH, CARD, WALLET, UPI
	ProposedFare  float64         `json:"proposed_fare,omitempty"`
}

// ConfirmDriverRequest is the HTTP request body for confirming a candidate.
type ConfirmDriverRequest struct {
	RiderID  string `json:"rider_id"`
	DriverID string `json:"driver_id"`
}

// UpdateStatusRequest is the HTTP request body for advancing ride status.
type UpdateStatusRequest struct {
	DriverID string `json:"driver_id"`
	Status   string `json:"status"`
}

// CancelRideRequest is the HTTP request body for cancelling a ride.
type CancelRideRequest struct {
	CancelledBy string `json:"cancelled_by"` // rider, driver or system
	ActorID     string `json:"actor_id,omitempty"`
	Reason      string `json:"reason,omitempty"`
}

// EstimateFareRequest is the HTTP request body for a fare estimate.
type EstimateFareRequest struct {
	Pickup       LocationPayload `json:"pickup"`
	Dropoff      LocationPayload `json:"dropoff"`
	VehicleClass string          `json:"vehicle_class,omitempty"`
}

// CandidateResponse is a driver offer on a pending ride.
type CandidateResponse struct {
	DriverID           string  `json:"driver_id"`
	Name               string  `json:"name"`
	VehiclePlate       string  `json:"vehicle_plate"`
	Rating             float64 `json:"rating"`
	DistanceToPickupKm float64 `json:"distance_to_pickup_km"`
	EtaMinutes         int     `json:"eta_minutes"`
	AcceptedAt         string  `json:"accepted_at"`
}

// RideResponse is the HTTP representation of a ride.
type RideResponse struct {
	ID            string              `json:"id"`
	RiderID       string              `json:"rider_id"`
	DriverID      string              `json:"driver_id,omitempty"`
	Pickup        LocationPayload     `json:"pickup"`
	Dropoff       LocationPayload     `json:"dropoff"`
	DistanceKm    float64             `json:"distance_km"`
	EstimatedFare float64             `json:"estimated_fare"`
	ProposedFare  float64             `json:"proposed_fare,omitempty"`
	FinalFare     float64             `json:"final_fare,omitempty"`
	VehicleClass  string              `json:"vehicle_class"`
	PaymentMethod string              `json:"payment_method"`
	Status        string              `json:"status"`
	Candidates    []CandidateResponse `json:"candidates,omitempty"`
	CreatedAt     string              `json:"created_at"`
	ExpiresAt     string              `json:"expires_at"`
	AcceptedAt    string              `json:"accepted_at,omitempty"`
	ConfirmedAt   string              `json:"confirmed_at,omitempty"`
	ArrivedAt     string              `json:"arrived_at,omitempty"`
	StartedAt     string              `json:"started_at,omitempty"`
	CompletedAt   string              `json:"completed_at,omitempty"`
	CancelledAt   string              `json:"cancelled_at,omitempty"`
	CancelledBy   string              `json:"cancelled_by,omitempty"`
	CancelReason  string              `json:"cancel_reason,omitempty"`
}

// CreateRide handles POST /v1/rides
func (h *RideHandler) CreateRide(c *gin.Context) {
	var req CreateRideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	ride, err := h.rideService.RequestRide(c.Request.Context(), service.RequestRideRequest{
		RiderID:       req.RiderID,
		Pickup:        toLocation(req.Pickup),
		Dropoff:       toLocation(req.Dropoff),
		VehicleClass:  req.VehicleClass,
		PaymentMethod: req.PaymentMethod,
		ProposedFare:  req.ProposedFare,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, toRideResponse(ride))
}

// GetRide handles GET /v1/rides/:id
func (h *RideHandler) GetRide(c *gin.Context) {
	ride, err := h.rideService.GetRide(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toRideResponse(ride))
}

// ConfirmDriver handles POST /v1/rides/:id/confirm
func (h *RideHandler) ConfirmDriver(c *gin.Context) {
	var req ConfirmDriverRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	ride, err := h.rideService.ConfirmDriver(c.Request.Context(), req.RiderID, c.Param("id"), req.DriverID)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toRideResponse(ride))
}

// UpdateStatus handles POST /v1/rides/:id/status
func (h *RideHandler) UpdateStatus(c *gin.Context) {
	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	ride, err := h.rideService.AdvanceStatus(c.Request.Context(), req.DriverID, c.Param("id"), domain.RideStatus(req.Status))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toRideResponse(ride))
}

// CancelRide handles POST /v1/rides/:id/cancel
func (h *RideHandler) CancelRide(c *gin.Context) {
	var req CancelRideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	role, ok := domain.ValidActorRole(req.CancelledBy)
	if !ok {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "cancelled_by must be rider, driver or system"})
		return
	}

	actor := domain.Actor{Role: role, ID: req.ActorID}
	ride, err := h.rideService.Cancel(c.Request.Context(), actor, c.Param("id"), req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toRideResponse(ride))
}

// EstimateFare handles POST /v1/rides/estimate
func (h *RideHandler) EstimateFare(c *gin.Context) {
	var req EstimateFareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	class, ok := domain.ValidVehicleClass(req.VehicleClass)
	if !ok {
		respondError(c, service.ErrInvalidVehicleClass)
		return
	}

	distanceKm := h.distance.DistanceKm(c.Request.Context(), toLocation(req.Pickup), toLocation(req.Dropoff))
	estimate := h.fare.Estimate(distanceKm, class)

	respondJSON(c, http.StatusOK, gin.H{
		"distance_km":      distanceKm,
		"vehicle_class":    string(class),
		"estimated_fare":   estimate,
		"min_allowed_fare": service.MinAllowedFare(estimate),
	})
}

func toLocation(p LocationPayload) domain.Location {
	return domain.Location{Address: p.Address, Lat: p.Lat, Lng: p.Lng}
}

func toLocationPayload(l domain.Location) LocationPayload {
	return LocationPayload{Address: l.Address, Lat: l.Lat, Lng: l.Lng}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}

func toRideResponse(ride *domain.Ride) RideResponse {
	resp := RideResponse{
		ID:            ride.ID,
		RiderID:       ride.RiderID,
		DriverID:      ride.DriverID,
		Pickup:        toLocationPayload(ride.Pickup),
		Dropoff:       toLocationPayload(ride.Dropoff),
		DistanceKm:    ride.DistanceKm,
		EstimatedFare: ride.EstimatedFare,
		ProposedFare:  ride.ProposedFare,
		FinalFare:     ride.FinalFare,
		VehicleClass:  string(ride.VehicleClass),
		PaymentMethod: string(ride.PaymentMethod),
		Status:        string(ride.Status),
		CreatedAt:     formatTime(ride.CreatedAt),
		ExpiresAt:     formatTime(ride.ExpiresAt),
		AcceptedAt:    formatTime(ride.AcceptedAt),
		ConfirmedAt:   formatTime(ride.ConfirmedAt),
		ArrivedAt:     formatTime(ride.ArrivedAt),
		StartedAt:     formatTime(ride.StartedAt),
		CompletedAt:   formatTime(ride.CompletedAt),
		CancelledAt:   formatTime(ride.CancelledAt),
		CancelledBy:   string(ride.CancelledBy),
		CancelReason:  ride.CancelReason,
	}

	for _, cand := range ride.Candidates {
		resp.Candidates = append(resp.Candidates, CandidateResponse{
			DriverID:           cand.DriverID,
			Name:               cand.Name,
			VehiclePlate:       cand.VehiclePlate,
			Rating:             cand.Rating,
			DistanceToPickupKm: cand.DistanceToPickupKm,
			EtaMinutes:         cand.EtaMinutes,
			AcceptedAt:         formatTime(cand.AcceptedAt),
		})
	}

	return resp
}
