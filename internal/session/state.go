package session

// State is a phase of the session lifecycle.  States only move forward;
// StateClosed is terminal and reachable from any other state.
type State int

const (
	StateDisconnected State = iota
	StateAuthenticating
	StateCapabilityRequest
	StateJoining
	StateReceiving
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateAuthenticating:
		return "authenticating"
	case StateCapabilityRequest:
		return "capability-request"
	case StateJoining:
		return "joining"
	case StateReceiving:
		return "receiving"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Reason says why a session ended.
type Reason int

const (
	// ReasonConnectFailed means the gateway could not be reached.
	ReasonConnectFailed Reason = iota + 1
	// ReasonTimeout means the server was silent for the idle timeout.
	ReasonTimeout
	// ReasonConnectionClosed means the stream was closed by the peer
	// or broke while sending.
	ReasonConnectionClosed
	// ReasonCancelled means the caller's context was cancelled.
	ReasonCancelled
	// ReasonError is any other receive failure.
	ReasonError
)

func (r Reason) String() string {
	switch r {
	case ReasonConnectFailed:
		return "connect failed"
	case ReasonTimeout:
		return "idle timeout"
	case ReasonConnectionClosed:
		return "connection closed"
	case ReasonCancelled:
		return "cancelled"
	case ReasonError:
		return "error"
	default:
		return "unknown"
	}
}

// Outcome is the terminal status returned by Controller.Run.
type Outcome struct {
	SessionID string
	Reason    Reason
	Err       error // set for ReasonConnectFailed and ReasonError only
}

// Clean reports whether the session ended without a fault.  Timeouts,
// peer closes and cancellation are ordinary ways for a session to end.
func (o Outcome) Clean() bool {
	return o.Err == nil
}
