package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"dispatch/internal/repository"
	"dispatch/internal/service"
)

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// respondError sends an error response with the appropriate HTTP status code.
func respondError(c *gin.Context, err error) {
	code := mapErrorToHTTPStatus(err)
	c.JSON(code, ErrorResponse{Error: err.Error()})
}

// respondJSON sends a JSON response with the given status code.
func respondJSON(c *gin.Context, code int, data any) {
	c.JSON(code, data)
}

// mapErrorToHTTPStatus maps service/repository errors to HTTP status codes.
func mapErrorToHTTPStatus(err error) int {
	switch {
	// Not found errors
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound

	// Validation errors - Bad Request
	case errors.Is(err, service.ErrInvalidRiderID),
		errors.Is(err, service.ErrInvalidRideID),
		errors.Is(err, service.ErrInvalidDriverID),
		errors.Is(err, service.ErrInvalidPickupLocation),
		errors.Is(err, service.ErrInvalidDropoffLocation),
		errors.Is(err, service.ErrInvalidVehicleClass),
		errors.Is(err, service.ErrInvalidPaymentMethod),
		errors.Is(err, service.ErrInvalidLocation),
		errors.Is(err, service.ErrFareTooLow):
		return http.StatusBadRequest

	// Conflict errors - state preconditions and lost races
	case errors.Is(err, service.ErrAlreadyActiveRide),
		errors.Is(err, service.ErrRideNotPending),
		errors.Is(err, service.ErrRideExpired),
		errors.Is(err, service.ErrRideAlreadyAssigned),
		errors.Is(err, service.ErrDriverNotCandidate),
		errors.Is(err, service.ErrDriverNotOnline),
		errors.Is(err, service.ErrDriverBusy),
		errors.Is(err, service.ErrInvalidTransition),
		errors.Is(err, service.ErrRideNotCancellable):
		return http.StatusConflict

	// Forbidden - actor is not allowed to act on this ride
	case errors.Is(err, service.ErrNotRideOwner),
		errors.Is(err, service.ErrNotAssignedDriver),
		errors.Is(err, service.ErrNotRideParticipant):
		return http.StatusForbidden

	// Default to internal server error
	default:
		return http.StatusInternalServerError
	}
}
