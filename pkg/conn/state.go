// Package conn defines the connection lifecycle state shared by all
// robot channels. Each channel owns exactly one State value.
package conn

// State is the lifecycle state of a single robot channel.
type State int

const (
	Disconnected State = iota
	Connecting
	Connected
	Simulated
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "CONNECTING"
	case Connected:
		return "CONNECTED"
	case Simulated:
		return "SIMULATED"
	default:
		return "DISCONNECTED"
	}
}
