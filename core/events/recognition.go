package events

const (
	KindRecognitionCanceled  Kind = "recognition.canceled"
	KindRecognitionNoMatch   Kind = "recognition.no_match"
	KindRecognitionRestarted Kind = "recognition.restarted"
)

// RecognitionCanceled reports that the recognizer ended its session. Detail is
// only set when Reason is "Error".
type RecognitionCanceled struct {
	Base
	Reason string
	Detail string
}

func NewRecognitionCanceled(reason, detail string) RecognitionCanceled {
	return RecognitionCanceled{Base: NewBase(KindRecognitionCanceled), Reason: reason, Detail: detail}
}

// RecognitionNoMatch reports audio the recognizer could not turn into text.
type RecognitionNoMatch struct{ Base }

func NewRecognitionNoMatch() RecognitionNoMatch {
	return RecognitionNoMatch{Base: NewBase(KindRecognitionNoMatch)}
}

// RecognitionRestarted reports a recognizer session brought back up after a
// cancellation. Attempt counts from one.
type RecognitionRestarted struct {
	Base
	Attempt int
}

func NewRecognitionRestarted(attempt int) RecognitionRestarted {
	return RecognitionRestarted{Base: NewBase(KindRecognitionRestarted), Attempt: attempt}
}
