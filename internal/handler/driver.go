package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"dispatch/internal/service"
)

// DriverHandler handles HTTP requests for drivers.
type DriverHandler struct {
	driverService *service.DriverService
	rideService   *service.RideService
}

// NewDriverHandler creates a new DriverHandler.
func NewDriverHandler(driverService *service.DriverService, rideService *service.RideService) *DriverHandler {
	return &DriverHandler{
		driverService: driverService,
		rideService:   rideService,
	}
}

// UpdateLocationRequest is the HTTP request body for a location report.
type UpdateLocationRequest struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// AcceptRideRequest is the HTTP request body for accepting a ride.
type AcceptRideRequest struct {
	RideID string `json:"ride_id"`
}

// RejectRideRequest is the HTTP request body for rejecting a ride.
type RejectRideRequest struct {
	RideID string `json:"ride_id"`
	Reason string `json:"reason,omitempty"`
}

// AvailableRideResponse is a pending ride offered to a driver.
type AvailableRideResponse struct {
	RideID             string  `json:"ride_id"`
	PickupAddress      string  `json:"pickup_address,omitempty"`
	PickupLat          float64 `json:"pickup_lat"`
	PickupLng          float64 `json:"pickup_lng"`
	DropoffAddress     string  `json:"dropoff_address,omitempty"`
	DistanceKm         float64 `json:"distance_km"`
	EstimatedFare      float64 `json:"estimated_fare"`
	ProposedFare       float64 `json:"proposed_fare,omitempty"`
	DistanceToPickupKm float64 `json:"distance_to_pickup_km"`
	EtaMinutes         int     `json:"eta_minutes"`
	AlreadyAccepted    bool    `json:"already_accepted"`
}

// DriverResponse is the HTTP representation of a driver.
type DriverResponse struct {
	ID             string  `json:"id"`
	Name           string  `json:"name"`
	Status         string  `json:"status"`
	VehicleClass   string  `json:"vehicle_class"`
	VehiclePlate   string  `json:"vehicle_plate"`
	Rating         float64 `json:"rating"`
	CurrentRideID  string  `json:"current_ride_id,omitempty"`
	TotalEarnings  float64 `json:"total_earnings"`
	CompletedRides int     `json:"completed_rides"`
}

// GetDriver handles GET /v1/drivers/:id
func (h *DriverHandler) GetDriver(c *gin.Context) {
	driver, err := h.driverService.GetDriver(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, DriverResponse{
		ID:             driver.ID,
		Name:           driver.Name,
		Status:         string(driver.Status),
		VehicleClass:   string(driver.VehicleClass),
		VehiclePlate:   driver.VehiclePlate,
		Rating:         driver.Rating,
		CurrentRideID:  driver.CurrentRideID,
		TotalEarnings:  driver.TotalEarnings,
		CompletedRides: driver.CompletedRides,
	})
}

// UpdateLocation handles POST /v1/drivers/:id/location
func (h *DriverHandler) UpdateLocation(c *gin.Context) {
	var req UpdateLocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	if err := h.driverService.UpdateLocation(c.Request.Context(), c.Param("id"), req.Lat, req.Lng); err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, gin.H{"status": "ok"})
}

// GoOffline handles POST /v1/drivers/:id/offline
func (h *DriverHandler) GoOffline(c *gin.Context) {
	if err := h.driverService.SetOffline(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, gin.H{"status": "offline"})
}

// AcceptRide handles POST /v1/drivers/:id/accept
func (h *DriverHandler) AcceptRide(c *gin.Context) {
	var req AcceptRideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	ride, err := h.rideService.DriverAccept(c.Request.Context(), c.Param("id"), req.RideID)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toRideResponse(ride))
}

// RejectRide handles POST /v1/drivers/:id/reject
func (h *DriverHandler) RejectRide(c *gin.Context) {
	var req RejectRideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	if err := h.rideService.DriverReject(c.Request.Context(), c.Param("id"), req.RideID, req.Reason); err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, gin.H{"status": "rejected"})
}

// AvailableRides handles GET /v1/drivers/:id/rides
func (h *DriverHandler) AvailableRides(c *gin.Context) {
	available, err := h.rideService.AvailableRides(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	resp := make([]AvailableRideResponse, 0, len(available))
	for _, a := range available {
		resp = append(resp, AvailableRideResponse{
			RideID:             a.Ride.ID,
			PickupAddress:      a.Ride.Pickup.Address,
			PickupLat:          a.Ride.Pickup.Lat,
			PickupLng:          a.Ride.Pickup.Lng,
			DropoffAddress:     a.Ride.Dropoff.Address,
			DistanceKm:         a.Ride.DistanceKm,
			EstimatedFare:      a.Ride.EstimatedFare,
			ProposedFare:       a.Ride.ProposedFare,
			DistanceToPickupKm: a.DistanceToPickupKm,
			EtaMinutes:         a.EtaMinutes,
			AlreadyAccepted:    a.AlreadyAccepted,
		})
	}

	respondJSON(c, http.StatusOK, gin.H{"rides": resp})
}
