package events

const (
	KindSpeechStarted   Kind = "speech.started"
	KindSpeechStopped   Kind = "speech.stopped"
	KindSpeechCompleted Kind = "speech.completed"
	KindSpeechFailed    Kind = "speech.failed"
)

// Reasons carried by SpeechStopped.
const (
	StopReasonCommand  = "command"
	StopReasonReplaced = "replaced"
	StopReasonShutdown = "shutdown"
)

type SpeechStarted struct {
	Base
	TaskID string
	Text   string
}

func NewSpeechStarted(taskID, text string) SpeechStarted {
	return SpeechStarted{Base: NewBase(KindSpeechStarted), TaskID: taskID, Text: text}
}

type SpeechStopped struct {
	Base
	TaskID string
	Reason string
}

func NewSpeechStopped(taskID, reason string) SpeechStopped {
	return SpeechStopped{Base: NewBase(KindSpeechStopped), TaskID: taskID, Reason: reason}
}

type SpeechCompleted struct {
	Base
	TaskID string
}

func NewSpeechCompleted(taskID string) SpeechCompleted {
	return SpeechCompleted{Base: NewBase(KindSpeechCompleted), TaskID: taskID}
}

type SpeechFailed struct {
	Base
	TaskID string
	Err    error
}

func NewSpeechFailed(taskID string, err error) SpeechFailed {
	return SpeechFailed{Base: NewBase(KindSpeechFailed), TaskID: taskID, Err: err}
}
