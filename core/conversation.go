package orchestration

import (
	"slices"

	"github.com/koscakluka/ema-voice/core/llms"
)

const defaultHistoryTurns = 10

// conversation is the in-memory history supplied as generation context. It is
// guarded by the owning controller's lock.
type conversation struct {
	turns    []llms.Turn
	maxTurns int
}

func newConversation(maxTurns int) *conversation {
	return &conversation{maxTurns: max(maxTurns, 0)}
}

func (c *conversation) Messages(instructions, prompt string) []llms.Message {
	return llms.ToMessages(instructions, c.turns, prompt)
}

// Record appends a completed turn, dropping the oldest ones past the limit.
func (c *conversation) Record(turn llms.Turn) {
	if c.maxTurns == 0 {
		return
	}
	c.turns = append(c.turns, turn)
	if overflow := len(c.turns) - c.maxTurns; overflow > 0 {
		c.turns = slices.Delete(c.turns, 0, overflow)
	}
}

func (c *conversation) Snapshot() []llms.Turn {
	return slices.Clone(c.turns)
}
