package session

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Phase is the lifecycle state of a call.
type Phase string

const (
	PhaseNew        Phase = "new"
	PhaseGreeting   Phase = "greeting"
	PhaseListening  Phase = "listening"
	PhaseResponding Phase = "responding"
	PhaseEnded      Phase = "ended"
	PhaseError      Phase = "error"
)

var (
	ErrNotFound          = errors.New("call not found")
	ErrInvalidCallID     = errors.New("invalid call id")
	ErrInstructionLocked = errors.New("call instruction already fixed")
	ErrInvalidTransition = errors.New("invalid phase transition")
)

var callIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// ValidateCallID checks that id can key a call. Ids end up in artifact
// references, so only a conservative character set is accepted.
func ValidateCallID(id string) error {
	if !callIDPattern.MatchString(id) {
		return fmt.Errorf("%w: %q", ErrInvalidCallID, id)
	}
	return nil
}

// Overrides are per-call adjustments of the process defaults. Nil fields
// keep the default.
type Overrides struct {
	Temperature    *float64 `json:"temperature,omitempty"`
	MaxSpokenWords *int     `json:"max_spoken_words,omitempty"`
	RenderAudio    *bool    `json:"render_audio,omitempty"`
	VoiceID        *string  `json:"voice_id,omitempty"`
}

// CallSession is the live state of one call. It is only read or written
// through a Lease.
type CallSession struct {
	ID             string
	Phase          Phase
	Instruction    string
	InstructionSet bool
	Overrides      Overrides
	CreatedAt      time.Time
	LastActivityAt time.Time
	LastStatus     string
	Opening        string
	SilentPrompts  int
	// AudioNonce scopes artifact references to this session, so a call id
	// re-created after expiry never collides with its earlier artifacts.
	AudioNonce string

	maxHistory   int
	audioSeq     int
	conversation *ConversationContext
}

var transitions = map[Phase][]Phase{
	PhaseNew:        {PhaseGreeting},
	PhaseGreeting:   {PhaseListening},
	PhaseListening:  {PhaseResponding},
	PhaseResponding: {PhaseListening},
}

// Transition moves the call to next. ENDED and ERROR are reachable from any
// live phase; nothing leaves them.
func (s *CallSession) Transition(next Phase) error {
	if s.Phase == PhaseEnded || s.Phase == PhaseError {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s.Phase, next)
	}
	if next == PhaseEnded || next == PhaseError {
		s.Phase = next
		return nil
	}
	for _, allowed := range transitions[s.Phase] {
		if allowed == next {
			s.Phase = next
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s.Phase, next)
}

// SetInstruction fixes the role instruction and overrides of the call. It
// succeeds once, before the greeting.
func (s *CallSession) SetInstruction(instruction string, overrides Overrides) error {
	if s.InstructionSet || s.Phase != PhaseNew {
		return ErrInstructionLocked
	}
	s.Instruction = strings.TrimSpace(instruction)
	s.InstructionSet = true
	s.Overrides = overrides
	return nil
}

// Conversation returns the turn log, creating it on first use.
func (s *CallSession) Conversation() *ConversationContext {
	if s.conversation == nil {
		s.conversation = NewConversationContext(s.maxHistory)
	}
	return s.conversation
}

// NextAudioSeq returns the next per-call artifact sequence number.
func (s *CallSession) NextAudioSeq() int {
	s.audioSeq++
	return s.audioSeq
}

// LastAgentText returns the most recent agent utterance, or the opening
// when no agent turn has been logged.
func (s *CallSession) LastAgentText() string {
	if s.conversation != nil {
		turns := s.conversation.turns
		for i := len(turns) - 1; i >= 0; i-- {
			if turns[i].Role == RoleAgent {
				return turns[i].Text
			}
		}
	}
	return s.Opening
}

// Snapshot is a read-only copy of a call for reporting.
type Snapshot struct {
	ID             string    `json:"call_id"`
	Phase          Phase     `json:"phase"`
	Instruction    string    `json:"instruction,omitempty"`
	InstructionSet bool      `json:"instruction_set"`
	Overrides      Overrides `json:"overrides"`
	CreatedAt      time.Time `json:"created_at"`
	LastActivityAt time.Time `json:"last_activity_at"`
	LastStatus     string    `json:"last_status,omitempty"`
	Opening        string    `json:"opening,omitempty"`
	Turns          []Turn    `json:"turns"`
}

func (s *CallSession) snapshot() Snapshot {
	out := Snapshot{
		ID:             s.ID,
		Phase:          s.Phase,
		Instruction:    s.Instruction,
		InstructionSet: s.InstructionSet,
		Overrides:      s.Overrides,
		CreatedAt:      s.CreatedAt,
		LastActivityAt: s.LastActivityAt,
		LastStatus:     s.LastStatus,
		Opening:        s.Opening,
		Turns:          []Turn{},
	}
	if s.conversation != nil {
		out.Turns = s.conversation.Turns()
	}
	return out
}
