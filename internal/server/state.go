package server

// State describes the lifecycle of a backend server inside its pool.
type State int

const (
	StateHealthy State = iota // Eligible for new selections
	StateUnhealthy
	StateDraining // Graceful removal in progress
	StateWarming
	StateDisabled // Administratively removed from rotation
)

func (s State) String() string {
	switch s {
	case StateHealthy:
		return "HEALTHY"
	case StateUnhealthy:
		return "UNHEALTHY"
	case StateDraining:
		return "DRAINING"
	case StateWarming:
		return "WARMING"
	case StateDisabled:
		return "DISABLED"
	default:
		return "UNKNOWN"
	}
}

// ParseState maps a state name to its State value. Unknown names map to
// StateUnhealthy so that a garbled health report never promotes a server.
func ParseState(name string) State {
	switch name {
	case "HEALTHY":
		return StateHealthy
	case "UNHEALTHY":
		return StateUnhealthy
	case "DRAINING":
		return StateDraining
	case "WARMING":
		return StateWarming
	case "DISABLED":
		return StateDisabled
	default:
		return StateUnhealthy
	}
}
