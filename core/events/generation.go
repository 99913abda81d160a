package events

import "time"

const (
	KindGenerationCompleted Kind = "generation.completed"
	KindGenerationFailed    Kind = "generation.failed"
	KindGenerationCanceled  Kind = "generation.canceled"
)

type GenerationCompleted struct {
	Base
	UtteranceID string
	Response    string
	Latency     time.Duration
}

func NewGenerationCompleted(id, response string, latency time.Duration) GenerationCompleted {
	return GenerationCompleted{Base: NewBase(KindGenerationCompleted), UtteranceID: id, Response: response, Latency: latency}
}

type GenerationFailed struct {
	Base
	UtteranceID string
	Err         error
}

func NewGenerationFailed(id string, err error) GenerationFailed {
	return GenerationFailed{Base: NewBase(KindGenerationFailed), UtteranceID: id, Err: err}
}

// GenerationCanceled reports a pending generation abandoned before its
// response was spoken.
type GenerationCanceled struct {
	Base
	UtteranceID string
}

func NewGenerationCanceled(id string) GenerationCanceled {
	return GenerationCanceled{Base: NewBase(KindGenerationCanceled), UtteranceID: id}
}
