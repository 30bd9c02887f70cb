package service

import "errors"

// Validation errors.
var (
	// ErrInvalidRiderID is returned when rider ID is empty.
	ErrInvalidRiderID = errors.New("invalid rider id")

	// ErrInvalidRideID is returned when ride ID is empty.
	ErrInvalidRideID = errors.New("invalid ride id")

	// ErrInvalidDriverID is returned when driver ID is empty.
	ErrInvalidDriverID = errors.New("invalid driver id")

	// ErrInvalidPickupLocation is returned when pickup coordinates are invalid.
	ErrInvalidPickupLocation = errors.New("invalid pickup location")

	// ErrInvalidDropoffLocation is returned when dropoff coordinates are invalid.
	ErrInvalidDropoffLocation = errors.New("invalid dropoff location")

	// ErrInvalidVehicleClass is returned when the vehicle class is unknown.
	ErrInvalidVehicleClass = errors.New("invalid vehicle class")

	// ErrInvalidPaymentMethod is returned when the payment method is unknown.
	ErrInvalidPaymentMethod = errors.New("invalid payment method")

	// ErrInvalidLocation is returned when location coordinates are invalid.
	ErrInvalidLocation = errors.New("invalid location")

	// ErrFareTooLow is returned when the rider proposes a fare below 75% of
	// the estimate.
	ErrFareTooLow = errors.New("proposed fare below minimum allowed")
)

// Precondition errors: expected, recoverable outcomes of the acceptance race
// and the lifecycle state machine.
var (
	// ErrAlreadyActiveRide is returned when the rider already has a ride in a
	// non-terminal status.
	ErrAlreadyActiveRide = errors.New("rider already has an active ride")

	// ErrRideNotPending is returned when an operation requires a pending ride.
	ErrRideNotPending = errors.New("ride is not pending")

	// ErrRideExpired is returned when the acceptance window has passed.
	ErrRideExpired = errors.New("ride has expired")

	// ErrRideAlreadyAssigned is returned when a confirm loses the race to an
	// earlier confirm.
	ErrRideAlreadyAssigned = errors.New("ride already assigned to a driver")

	// ErrDriverNotCandidate is returned when confirming a driver who never
	// accepted the ride.
	ErrDriverNotCandidate = errors.New("driver has not accepted this ride")

	// ErrDriverNotOnline is returned when an offline driver tries to accept.
	ErrDriverNotOnline = errors.New("driver is not online")

	// ErrDriverBusy is returned when the driver already has an assigned ride.
	ErrDriverBusy = errors.New("driver already has an assigned ride")

	// ErrInvalidTransition is returned for any move not in the transition table.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrRideNotCancellable is returned when cancelling a started or terminal ride.
	ErrRideNotCancellable = errors.New("ride cannot be cancelled in current status")
)

// Authorization errors.
var (
	// ErrNotRideOwner is returned when someone other than the rider confirms.
	ErrNotRideOwner = errors.New("ride does not belong to this rider")

	// ErrNotAssignedDriver is returned when a driver other than the assigned
	// one advances the ride.
	ErrNotAssignedDriver = errors.New("driver is not assigned to this ride")

	// ErrNotRideParticipant is returned when the cancelling actor is neither
	// the rider, the assigned driver, nor the system.
	ErrNotRideParticipant = errors.New("actor is not a participant of this ride")
)
