package mqtt

// connState is the protocol engine's connection state (§4.3). A single field mutated only
// inside the engine's serialized dispatch — not a set of per-state strategy objects swapped
// in and out, which is how the teacher's own Session modelled its (simpler) 4-state machine.
type connState int32

const (
	stateIdle connState = iota
	stateConnecting
	stateConnected
)

func (s connState) String() string {
	switch s {
	case stateIdle:
		return "IDLE"
	case stateConnecting:
		return "CONNECTING"
	case stateConnected:
		return "CONNECTED"
	default:
		return "UNKNOWN"
	}
}
