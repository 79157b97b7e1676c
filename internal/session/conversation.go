package session

import (
	"time"

	"github.com/google/uuid"
)

// Role identifies who produced a turn.
type Role string

const (
	RoleCaller Role = "caller"
	RoleAgent  Role = "agent"
)

// Turn is one immutable utterance in a call.
type Turn struct {
	ID   string    `json:"id"`
	Role Role      `json:"role"`
	Text string    `json:"text"`
	At   time.Time `json:"at"`
}

// ConversationContext is the bounded, ordered turn log of one call.
//
// The log holds at most max turns. When an append exceeds the bound, the
// oldest caller/agent pair is evicted so the log keeps starting with a
// caller turn. It is not safe for concurrent use; callers hold the call's
// Lease while touching it.
type ConversationContext struct {
	max   int
	turns []Turn
	now   func() time.Time
}

// NewConversationContext creates an empty log bounded at maxTurns, rounded
// up to an even number of at least 2.
func NewConversationContext(maxTurns int) *ConversationContext {
	return newConversationContext(maxTurns, func() time.Time { return time.Now().UTC() })
}

func newConversationContext(maxTurns int, now func() time.Time) *ConversationContext {
	if maxTurns < 2 {
		maxTurns = 2
	}
	if maxTurns%2 != 0 {
		maxTurns++
	}
	return &ConversationContext{
		max:   maxTurns,
		turns: make([]Turn, 0, maxTurns+1),
		now:   now,
	}
}

// Append adds a turn and evicts the oldest pair while the log is over its
// bound. Timestamps never go backwards.
func (c *ConversationContext) Append(role Role, text string) Turn {
	at := c.now()
	if n := len(c.turns); n > 0 && at.Before(c.turns[n-1].At) {
		at = c.turns[n-1].At
	}
	t := Turn{
		ID:   uuid.NewString(),
		Role: role,
		Text: text,
		At:   at,
	}
	c.turns = append(c.turns, t)
	c.evict()
	return t
}

func (c *ConversationContext) evict() {
	for len(c.turns) > c.max {
		drop := 2
		if c.turns[0].Role != RoleCaller || len(c.turns) < 2 || c.turns[1].Role != RoleAgent {
			drop = 1
		}
		c.turns = append(c.turns[:0], c.turns[drop:]...)
	}
}

// Turns returns a copy of the log, oldest first.
func (c *ConversationContext) Turns() []Turn {
	out := make([]Turn, len(c.turns))
	copy(out, c.turns)
	return out
}

// Len reports the number of turns held.
func (c *ConversationContext) Len() int {
	return len(c.turns)
}

// Max reports the turn bound.
func (c *ConversationContext) Max() int {
	return c.max
}
