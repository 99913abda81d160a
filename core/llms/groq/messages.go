package groq

import (
	"fmt"

	"github.com/jinzhu/copier"
	"github.com/koscakluka/ema-voice/core/llms"
)

type message struct {
	Role    messageRole `json:"role"`
	Content string      `json:"content"`
}

type messageRole string

const (
	messageRoleSystem    messageRole = "system"
	messageRoleUser      messageRole = "user"
	messageRoleAssistant messageRole = "assistant"
)

func toMessages(conversation []llms.Message) ([]message, error) {
	messages := []message{}
	if err := copier.Copy(&messages, conversation); err != nil {
		return nil, fmt.Errorf("failed to map messages: %w", err)
	}
	for i, msg := range messages {
		switch msg.Role {
		case messageRoleSystem, messageRoleUser, messageRoleAssistant:
		default:
			return nil, fmt.Errorf("unsupported message role %q at %d", msg.Role, i)
		}
	}
	return messages, nil
}
