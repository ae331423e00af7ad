package stream

// Event names emitted over the stream transport.
const (
	EventTick      = "tick"
	EventHeartbeat = "heartbeat"
)

// Event is the wire envelope for every stream emission.
type Event struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// Heartbeat is the payload of a heartbeat event.
type Heartbeat struct {
	TS int64 `json:"ts"`
}

// connState tracks the per-connection lifecycle. Closed is terminal.
type connState int32

const (
	stateConnecting connState = iota
	stateOpen
	stateClosed
)

func (s connState) String() string {
	switch s {
	case stateConnecting:
		return "connecting"
	case stateOpen:
		return "open"
	case stateClosed:
		return "closed"
	}
	return "unknown"
}
