package network

// State is the connection state of the network worker.
type State int32

const (
	// StateIdle means no destination is configured.
	StateIdle State = iota
	// StateResolving means a reconfigure is looking up its destination.
	StateResolving
	// StateConnected means frames are written to a resolved destination.
	StateConnected
	// StateDisconnected is passed through while the socket is released.
	StateDisconnected
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateResolving:
		return "resolving"
	case StateConnected:
		return "connected"
	case StateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}
