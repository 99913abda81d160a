package orchestration

import (
	"time"

	"github.com/google/uuid"
)

// Utterance is one finalized piece of recognized user speech.
type Utterance struct {
	ID        string
	Text      string
	Timestamp time.Time
}

func NewUtterance(text string) Utterance {
	return Utterance{ID: uuid.NewString(), Text: text, Timestamp: time.Now()}
}
