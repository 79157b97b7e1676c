package generation

import (
	"fmt"
	"strings"
	"time"

	"github.com/antoniostano/voicecaller/internal/session"
)

// Variant selects the prompt shape for a turn.
type Variant string

const (
	// VariantOpening is the agent-initiated first utterance on an empty
	// conversation.
	VariantOpening Variant = "opening"
	// VariantReply answers the latest caller turn.
	VariantReply Variant = "reply"
)

// PromptConfig is the effective prompt configuration of one call.
type PromptConfig struct {
	BaseTemplate      string
	Instruction       string
	OpeningDirective  string
	MaxSpokenWords    int
	Temperature       float64
	MaxTokens         int
	PresencePenalty   float64
	FrequencyPenalty  float64
	GenerationTimeout time.Duration

	OpeningFallback string
	RepeatFallback  string
}

// SystemPrompt combines the base template, the optional role instruction
// and the spoken word limit.
func (c PromptConfig) SystemPrompt() string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(c.BaseTemplate))
	if instr := strings.TrimSpace(c.Instruction); instr != "" {
		b.WriteString("\n\nROL:\n")
		b.WriteString(instr)
	}
	if c.MaxSpokenWords > 0 {
		fmt.Fprintf(&b, "\n\nRECUERDA: máximo %d palabras por respuesta.", c.MaxSpokenWords)
	}
	return strings.TrimSpace(b.String())
}

// Fallback returns the configured utterance used when generation fails for
// the variant.
func (c PromptConfig) Fallback(v Variant) string {
	if v == VariantOpening {
		return c.OpeningFallback
	}
	return c.RepeatFallback
}

// BuildMessages assembles the chat messages for a turn. Caller turns map
// to user messages and agent turns to assistant messages.
func BuildMessages(cfg PromptConfig, v Variant, turns []session.Turn) []Message {
	msgs := make([]Message, 0, len(turns)+2)
	msgs = append(msgs, Message{Role: RoleSystem, Content: cfg.SystemPrompt()})
	if v == VariantOpening {
		return append(msgs, Message{Role: RoleUser, Content: strings.TrimSpace(cfg.OpeningDirective)})
	}
	for _, t := range turns {
		role := RoleUser
		if t.Role == session.RoleAgent {
			role = RoleAssistant
		}
		msgs = append(msgs, Message{Role: role, Content: t.Text})
	}
	return msgs
}
