package llms

import (
	"strings"
	"time"
)

// Message is a single entry of the conversation sent to a generator.
type Message struct {
	Role    MessageRole
	Content string
}

// MessageRole describes who the message is from
type MessageRole string

const (
	MessageRoleSystem    MessageRole = "system"
	MessageRoleUser      MessageRole = "user"
	MessageRoleAssistant MessageRole = "assistant"
)

// Turn is a completed exchange: the user's prompt and the reply that was
// dispatched for speaking.
type Turn struct {
	ID       string
	Prompt   string
	Response string
	At       time.Time
}

// ToMessages builds the conversation for a new prompt: optional system
// instructions, then each previous turn as a user/assistant pair, then the
// prompt itself.
func ToMessages(instructions string, turns []Turn, prompt string) []Message {
	messages := make([]Message, 0, len(turns)*2+2)
	if strings.TrimSpace(instructions) != "" {
		messages = append(messages, Message{Role: MessageRoleSystem, Content: instructions})
	}
	for _, turn := range turns {
		messages = append(messages,
			Message{Role: MessageRoleUser, Content: turn.Prompt},
			Message{Role: MessageRoleAssistant, Content: turn.Response},
		)
	}
	return append(messages, Message{Role: MessageRoleUser, Content: prompt})
}
