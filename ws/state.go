package ws

// ConnState represents the lifecycle state of the server connection.
type ConnState int

const (
	// Disconnected means no transport is open. A reconnect timer may be
	// pending unless the disconnect was explicit.
	Disconnected ConnState = iota

	// Connecting means a dial started by Connect is in flight.
	Connecting

	// Connected means the transport is open and events flow.
	Connected

	// Reconnecting means a dial started by the reconnect timer is in flight.
	Reconnecting
)

func (s ConnState) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Reconnecting:
		return "reconnecting"
	default:
		return "unknown"
	}
}

// inProgress reports whether a dial is underway or already succeeded, in
// which case Connect is a no-op.
func (s ConnState) inProgress() bool {
	return s == Connecting || s == Connected || s == Reconnecting
}
