package session

import (
	"errors"
	"testing"
)

func TestTransitionTable(t *testing.T) {
	cases := []struct {
		from, to Phase
		ok       bool
	}{
		{PhaseNew, PhaseGreeting, true},
		{PhaseGreeting, PhaseListening, true},
		{PhaseListening, PhaseResponding, true},
		{PhaseResponding, PhaseListening, true},
		{PhaseListening, PhaseEnded, true},
		{PhaseResponding, PhaseError, true},
		{PhaseNew, PhaseListening, false},
		{PhaseListening, PhaseGreeting, false},
		{PhaseEnded, PhaseListening, false},
		{PhaseError, PhaseEnded, false},
	}
	for _, tc := range cases {
		s := &CallSession{Phase: tc.from}
		err := s.Transition(tc.to)
		if tc.ok && err != nil {
			t.Fatalf("%s -> %s error = %v", tc.from, tc.to, err)
		}
		if !tc.ok && !errors.Is(err, ErrInvalidTransition) {
			t.Fatalf("%s -> %s error = %v, want ErrInvalidTransition", tc.from, tc.to, err)
		}
	}
}

func TestSetInstructionOnce(t *testing.T) {
	s := &CallSession{Phase: PhaseNew}
	if err := s.SetInstruction("  vende seguros  ", Overrides{}); err != nil {
		t.Fatalf("SetInstruction() error = %v", err)
	}
	if s.Instruction != "vende seguros" {
		t.Fatalf("Instruction = %q", s.Instruction)
	}
	if err := s.SetInstruction("otra", Overrides{}); !errors.Is(err, ErrInstructionLocked) {
		t.Fatalf("second SetInstruction() error = %v, want ErrInstructionLocked", err)
	}

	greeted := &CallSession{Phase: PhaseListening}
	if err := greeted.SetInstruction("tarde", Overrides{}); !errors.Is(err, ErrInstructionLocked) {
		t.Fatalf("SetInstruction after greeting error = %v, want ErrInstructionLocked", err)
	}
}

func TestValidateCallID(t *testing.T) {
	valid := []string{"CA1", "CAa1b2c3d4e5f60718293a4b5c6d7e8f90", "call_1-x"}
	for _, id := range valid {
		if err := ValidateCallID(id); err != nil {
			t.Fatalf("ValidateCallID(%q) error = %v", id, err)
		}
	}
	invalid := []string{"", " ", "../etc", "a b", string(make([]byte, 65))}
	for _, id := range invalid {
		if err := ValidateCallID(id); !errors.Is(err, ErrInvalidCallID) {
			t.Fatalf("ValidateCallID(%q) error = %v, want ErrInvalidCallID", id, err)
		}
	}
}

func TestLastAgentTextFallsBackToOpening(t *testing.T) {
	s := &CallSession{Opening: "hola", maxHistory: 4}
	if got := s.LastAgentText(); got != "hola" {
		t.Fatalf("LastAgentText() = %q, want opening", got)
	}
	s.Conversation().Append(RoleCaller, "sí")
	s.Conversation().Append(RoleAgent, "perfecto")
	if got := s.LastAgentText(); got != "perfecto" {
		t.Fatalf("LastAgentText() = %q, want perfecto", got)
	}
}
