package orchestration

// AssistantState is whether the assistant currently has speech output in
// flight.
type AssistantState int

const (
	StateIdle AssistantState = iota
	StateSpeaking
)

func (s AssistantState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSpeaking:
		return "speaking"
	default:
		return "unknown"
	}
}
