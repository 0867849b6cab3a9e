package session

// State is the conversational state of the client.
type State int32

const (
	// Idle: no session, channel closed, capture released.
	Idle State = iota
	// Listening: capture frames are transmitted.
	Listening
	// Analysing: the service is working on the turn; capture is gated off.
	Analysing
	// Playing: a response is being decoded or rendered.
	Playing
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Listening:
		return "listening"
	case Analysing:
		return "analysing"
	case Playing:
		return "playing"
	default:
		return "unknown"
	}
}

// Active reports whether a session exists in this state.
func (s State) Active() bool {
	return s != Idle
}
