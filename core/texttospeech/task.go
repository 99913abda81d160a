package texttospeech

import (
	"sync"

	"github.com/google/uuid"
)

// SpeechTask is a handle to one in-flight synthesis. Done is closed once the
// speech finished playing, failed or was stopped; Err is only meaningful after
// Done is closed.
type SpeechTask interface {
	Done() <-chan struct{}
	Err() error
}

// Task is a SpeechTask that synthesizers complete with Finish.
type Task struct {
	ID string

	done chan struct{}
	once sync.Once
	err  error
}

func NewTask() *Task {
	return &Task{ID: uuid.NewString(), done: make(chan struct{})}
}

func (t *Task) Done() <-chan struct{} { return t.done }

func (t *Task) Err() error {
	select {
	case <-t.done:
		return t.err
	default:
		return nil
	}
}

// Finish completes the task. Only the first call has an effect, so racing
// completion paths (playback end, cancellation, socket errors) are safe.
func (t *Task) Finish(err error) {
	t.once.Do(func() {
		t.err = err
		close(t.done)
	})
}
