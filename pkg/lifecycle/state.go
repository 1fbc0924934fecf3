package lifecycle

// State is a step of the service lifecycle.
type State int32

const (
	Initializing State = iota
	ConnectingStorage
	Listening
	ShuttingDown
	Terminated
)

func (s State) String() string {
	switch s {
	case Initializing:
		return "Initializing"
	case ConnectingStorage:
		return "ConnectingStorage"
	case Listening:
		return "Listening"
	case ShuttingDown:
		return "ShuttingDown"
	case Terminated:
		return "Terminated"
	default:
		return "Unknown"
	}
}

// Process exit codes.
const (
	ExitOK      = 0
	ExitFailure = 1
)
