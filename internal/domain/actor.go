package domain

// ActorRole identifies who is acting on a ride.
type ActorRole string

const (
	ActorRider  ActorRole = "rider"
	ActorDriver ActorRole = "driver"
	ActorSystem ActorRole = "system"
)

// Actor is a tagged reference to the party performing a lifecycle operation.
// It is resolved once at the transport boundary and passed explicitly into
// the service layer.
type Actor struct {
	Role ActorRole
	ID   string
}

// ValidActorRole validates an actor role string.
func ValidActorRole(role string) (ActorRole, bool) {
	switch ActorRole(role) {
	case ActorRider, ActorDriver, ActorSystem:
		return ActorRole(role), true
	}
	return "", false
}
