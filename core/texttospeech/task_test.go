package texttospeech

import (
	"errors"
	"testing"
	"time"
)

func TestTaskFinishIsIdempotent(t *testing.T) {
	task := NewTask()
	first := errors.New("first")

	task.Finish(first)
	task.Finish(errors.New("second"))

	select {
	case <-task.Done():
	case <-time.After(time.Second):
		t.Fatalf("expected task to be done")
	}
	if !errors.Is(task.Err(), first) {
		t.Fatalf("expected first error to win, got %v", task.Err())
	}
}

func TestTaskErrIsNilBeforeDone(t *testing.T) {
	task := NewTask()

	if task.Err() != nil {
		t.Fatalf("expected no error before completion, got %v", task.Err())
	}
	if task.ID == "" {
		t.Fatalf("expected task id to be set")
	}
}
