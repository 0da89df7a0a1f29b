package client

// State represents the connection state of the client.
type State uint8

const (
	// StateDisconnected indicates no active connection.
	StateDisconnected State = iota

	// StateConnecting indicates a socket is being opened.
	StateConnecting

	// StateAwaitingChallenge indicates the socket is open and the client
	// is waiting for the gateway's connect.challenge event.
	StateAwaitingChallenge

	// StateHandshaking indicates the signed connect request was sent and
	// its response is awaited.
	StateHandshaking

	// StateAuthenticated indicates an authenticated connection is up.
	StateAuthenticated

	// StateShuttingDown indicates Shutdown is in progress.
	StateShuttingDown

	// StateClosed is terminal: the client was shut down.
	StateClosed
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "DISCONNECTED"
	case StateConnecting:
		return "CONNECTING"
	case StateAwaitingChallenge:
		return "AWAITING_CHALLENGE"
	case StateHandshaking:
		return "HANDSHAKING"
	case StateAuthenticated:
		return "AUTHENTICATED"
	case StateShuttingDown:
		return "SHUTTING_DOWN"
	case StateClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}
