package orchestration

import (
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/koscakluka/ema-voice/core/safety"
)

type ControllerOption func(*TurnController)

// WithSafetyGate replaces the gate built from the default phrase sets.
func WithSafetyGate(gate *safety.Gate) ControllerOption {
	return func(c *TurnController) {
		if gate != nil {
			c.gate = gate
		}
	}
}

// WithStopCommands replaces the phrases that interrupt speech.
func WithStopCommands(phrases ...string) ControllerOption {
	return func(c *TurnController) { c.stopCommands = NewCommandSet(phrases...) }
}

func WithRefusalMessage(message string) ControllerOption {
	return func(c *TurnController) {
		if message != "" {
			c.refusalMessage = message
		}
	}
}

// WithFallbackMessage makes the controller speak message when generation
// fails. Without it a failure leaves the assistant silent.
func WithFallbackMessage(message string) ControllerOption {
	return func(c *TurnController) { c.fallbackMessage = message }
}

// WithGenerationTimeout bounds each generation call. Zero means no bound.
func WithGenerationTimeout(timeout time.Duration) ControllerOption {
	return func(c *TurnController) { c.generationTimeout = max(timeout, 0) }
}

// WithInstructions sets the system prompt sent ahead of the history.
func WithInstructions(instructions string) ControllerOption {
	return func(c *TurnController) { c.instructions = instructions }
}

// WithHistoryLimit sets how many completed turns are kept as context. Zero
// disables history.
func WithHistoryLimit(turns int) ControllerOption {
	return func(c *TurnController) { c.historyLimit = max(turns, 0) }
}

func WithEventHandler(handler EventHandler) ControllerOption {
	return func(c *TurnController) {
		if handler != nil {
			c.emit = handler
		}
	}
}

type SpeakerOption func(*ResponseSpeaker)

func WithSpeakerEventHandler(handler EventHandler) SpeakerOption {
	return func(s *ResponseSpeaker) {
		if handler != nil {
			s.emit = handler
		}
	}
}

func withSpeakingChangedCallback(callback func(speaking bool)) SpeakerOption {
	return func(s *ResponseSpeaker) { s.onSpeakingChanged = callback }
}

type RecognitionLoopOption func(*RecognitionLoop)

func WithLoopEventHandler(handler EventHandler) RecognitionLoopOption {
	return func(l *RecognitionLoop) {
		if handler != nil {
			l.emit = handler
		}
	}
}

// WithRestartAttempts bounds how many times a canceled session is restarted
// in a row. Zero disables restarting.
func WithRestartAttempts(attempts uint) RecognitionLoopOption {
	return func(l *RecognitionLoop) { l.restartAttempts = attempts }
}

// WithRestartBackOff sets the policy between restart attempts. newBackOff is
// called once per restart.
func WithRestartBackOff(newBackOff func() backoff.BackOff) RecognitionLoopOption {
	return func(l *RecognitionLoop) {
		if newBackOff != nil {
			l.newBackOff = newBackOff
		}
	}
}

// WithQueueSize bounds the number of recognizer results waiting for dispatch.
func WithQueueSize(size int) RecognitionLoopOption {
	return func(l *RecognitionLoop) {
		if size > 0 {
			l.queueSize = size
		}
	}
}
