// Package generation produces the agent's next utterance.
package generation

import "context"

// MessageRole is the role of a chat message sent to a text generator.
type MessageRole string

const (
	RoleSystem    MessageRole = "system"
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

type Message struct {
	Role    MessageRole `json:"role"`
	Content string      `json:"content"`
}

// Request is one text generation call.
type Request struct {
	Messages         []Message
	Temperature      float64
	MaxTokens        int
	PresencePenalty  float64
	FrequencyPenalty float64
}

// TextGenerator is the text generation port. Deadlines arrive through ctx.
type TextGenerator interface {
	Generate(ctx context.Context, req Request) (string, error)
}
