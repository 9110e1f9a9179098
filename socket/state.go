package socket

// State is the lifecycle of a Socket.
//
//	Idle -> Connecting -> Open -> Reconnecting -> Connecting -> ...
//
// Any state may move to Closed, which is terminal.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateOpen
	StateReconnecting
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateReconnecting:
		return "reconnecting"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}
