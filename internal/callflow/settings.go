package callflow

import (
	"time"

	"github.com/antoniostano/voicecaller/internal/generation"
	"github.com/antoniostano/voicecaller/internal/session"
	"github.com/antoniostano/voicecaller/internal/voice"
)

// Settings are the process-wide defaults of every call. Per-call
// overrides are applied on top of them.
type Settings struct {
	Prompt generation.PromptConfig
	Voice  voice.Config

	RenderAudio   bool
	RenderTimeout time.Duration

	ListenHints   []string
	ListenTimeout int

	GenericGreeting  string
	FollowUp         string
	SilenceGoodbye   string
	Decline          string
	MaxSilentPrompts int
}

// promptFor returns the prompt configuration of s: the call instruction
// replaces the default one, and overrides replace their fields.
func (st Settings) promptFor(s *session.CallSession) generation.PromptConfig {
	cfg := st.Prompt
	if s.InstructionSet && s.Instruction != "" {
		cfg.Instruction = s.Instruction
	}
	if t := s.Overrides.Temperature; t != nil {
		cfg.Temperature = *t
	}
	if n := s.Overrides.MaxSpokenWords; n != nil && *n > 0 {
		cfg.MaxSpokenWords = *n
	}
	return cfg
}

func (st Settings) voiceFor(s *session.CallSession) voice.Config {
	cfg := st.Voice
	if id := s.Overrides.VoiceID; id != nil && *id != "" {
		cfg.VoiceID = *id
	}
	return cfg
}

func (st Settings) renderFor(s *session.CallSession) bool {
	if r := s.Overrides.RenderAudio; r != nil {
		return *r
	}
	return st.RenderAudio
}
