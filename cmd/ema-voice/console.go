package main

import (
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/koscakluka/ema-voice/core/events"
)

var (
	userStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	assistantStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42"))
	warningStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	mutedStyle     = lipgloss.NewStyle().Faint(true)
)

// console renders assistant events as a transcript.
type console struct {
	mu  sync.Mutex
	out io.Writer
}

func newConsole(out io.Writer) *console {
	return &console{out: out}
}

func (c *console) Info(message string) {
	c.println(mutedStyle.Render(message))
}

func (c *console) Handle(event events.Event) {
	switch e := event.(type) {
	case events.UtteranceReceived:
		c.println(userStyle.Render("You said:") + " " + e.Text)
	case events.SafetyBlocked:
		c.println(warningStyle.Render("Blocked by content moderation."))
	case events.SpeechStarted:
		c.println(assistantStyle.Render("AI:") + " " + e.Text)
	case events.SpeechStopped:
		if e.Reason == events.StopReasonCommand {
			c.println(mutedStyle.Render("(stopped)"))
		}
	case events.GenerationFailed:
		c.println(errorStyle.Render(fmt.Sprintf("Failed to generate a reply: %v", e.Err)))
	case events.SpeechFailed:
		c.println(errorStyle.Render(fmt.Sprintf("Failed to speak: %v", e.Err)))
	case events.RecognitionCanceled:
		c.println(warningStyle.Render("Speech canceled"))
		c.println(mutedStyle.Render("Cancellation reason: " + e.Reason))
		if e.Detail != "" {
			c.println(mutedStyle.Render("Error details: " + e.Detail))
		}
	case events.RecognitionNoMatch:
		c.println(mutedStyle.Render("Speech not recognized"))
	case events.RecognitionRestarted:
		c.println(mutedStyle.Render(fmt.Sprintf("Recognition restarted after %d attempt(s)", e.Attempt)))
	}
}

func (c *console) println(line string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.out, line)
}
