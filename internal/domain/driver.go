package domain

// DriverStatus represents the current status of a driver.
type DriverStatus string

const (
	DriverStatusOnline  DriverStatus = "ONLINE"
	DriverStatusOffline DriverStatus = "OFFLINE"
	DriverStatusBusy    DriverStatus = "BUSY"
)

// Driver represents a driver in the system. Status and CurrentRideID are kept
// consistent with the assigned ride: both change together when a ride is
// confirmed and when it reaches a terminal status.
type Driver struct {
	ID             string
	Name           string
	Phone          string
	Status         DriverStatus
	VehicleClass   VehicleClass
	VehiclePlate   string
	Rating         float64
	CurrentRideID  string // empty unless BUSY
	TotalEarnings  float64
	CompletedRides int
}
