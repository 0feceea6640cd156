package daemon

// State is a session lifecycle phase. Transitions only move forward.
type State int32

const (
	StateInit State = iota
	StateConnecting
	StateOnline
	StateShuttingDown
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateConnecting:
		return "connecting"
	case StateOnline:
		return "online"
	case StateShuttingDown:
		return "shutting_down"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}
