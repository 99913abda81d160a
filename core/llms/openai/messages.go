package openai

import (
	"fmt"

	"github.com/koscakluka/ema-voice/core/llms"
)

type openAIMessage struct {
	Type    messageType `json:"type"`
	Role    messageRole `json:"role"`
	Content string      `json:"content"`
}

type messageRole string

const (
	messageRoleDeveloper messageRole = "developer"
	messageRoleUser      messageRole = "user"
	messageRoleAssistant messageRole = "assistant"
)

type messageType string

const messageTypeMessage messageType = "message"

// toOpenAIMessages maps the conversation to Responses API input items. System
// instructions are sent with the developer role.
func toOpenAIMessages(conversation []llms.Message) ([]openAIMessage, error) {
	messages := make([]openAIMessage, 0, len(conversation))
	for i, msg := range conversation {
		var role messageRole
		switch msg.Role {
		case llms.MessageRoleSystem:
			role = messageRoleDeveloper
		case llms.MessageRoleUser:
			role = messageRoleUser
		case llms.MessageRoleAssistant:
			role = messageRoleAssistant
		default:
			return nil, fmt.Errorf("unsupported message role %q at %d", msg.Role, i)
		}
		messages = append(messages, openAIMessage{Type: messageTypeMessage, Role: role, Content: msg.Content})
	}
	return messages, nil
}
