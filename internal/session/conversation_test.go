package session

import (
	"fmt"
	"testing"
	"time"
)

func TestConversationEvictsOldestPair(t *testing.T) {
	c := NewConversationContext(4)
	for i := 0; i < 3; i++ {
		c.Append(RoleCaller, fmt.Sprintf("caller-%d", i))
		c.Append(RoleAgent, fmt.Sprintf("agent-%d", i))
	}

	turns := c.Turns()
	if len(turns) != 4 {
		t.Fatalf("len(turns) = %d, want 4", len(turns))
	}
	want := []string{"caller-1", "agent-1", "caller-2", "agent-2"}
	for i, w := range want {
		if turns[i].Text != w {
			t.Fatalf("turns[%d].Text = %q, want %q", i, turns[i].Text, w)
		}
	}
}

func TestConversationBoundHoldsAfterEveryAppend(t *testing.T) {
	const max = 6
	c := NewConversationContext(max)
	for i := 0; i < 50; i++ {
		role := RoleCaller
		if i%2 == 1 {
			role = RoleAgent
		}
		c.Append(role, fmt.Sprintf("turn-%d", i))
		if c.Len() > max {
			t.Fatalf("after append %d Len() = %d, want <= %d", i, c.Len(), max)
		}
		if head := c.Turns()[0]; head.Role != RoleCaller {
			t.Fatalf("after append %d head role = %q, want caller", i, head.Role)
		}
	}
}

func TestConversationTwelveExchangesAtDefaultBound(t *testing.T) {
	c := NewConversationContext(24)
	for i := 0; i < 13; i++ {
		c.Append(RoleCaller, fmt.Sprintf("c%d", i))
		c.Append(RoleAgent, fmt.Sprintf("a%d", i))
	}
	turns := c.Turns()
	if len(turns) != 24 {
		t.Fatalf("len(turns) = %d, want 24", len(turns))
	}
	if turns[0].Text != "c1" {
		t.Fatalf("oldest turn = %q, want c1", turns[0].Text)
	}
}

func TestConversationRoundsBoundToEven(t *testing.T) {
	if got := NewConversationContext(5).Max(); got != 6 {
		t.Fatalf("Max() = %d, want 6", got)
	}
	if got := NewConversationContext(0).Max(); got != 2 {
		t.Fatalf("Max() = %d, want 2", got)
	}
}

func TestConversationClampsBackwardClock(t *testing.T) {
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	times := []time.Time{base, base.Add(-time.Minute), base.Add(time.Second)}
	i := 0
	c := newConversationContext(4, func() time.Time {
		ts := times[i]
		i++
		return ts
	})

	c.Append(RoleCaller, "a")
	c.Append(RoleAgent, "b")
	c.Append(RoleCaller, "c")

	turns := c.Turns()
	for j := 1; j < len(turns); j++ {
		if turns[j].At.Before(turns[j-1].At) {
			t.Fatalf("turn %d at %s before turn %d at %s", j, turns[j].At, j-1, turns[j-1].At)
		}
	}
	if !turns[1].At.Equal(base) {
		t.Fatalf("clamped timestamp = %s, want %s", turns[1].At, base)
	}
}

func TestConversationTurnsIsCopy(t *testing.T) {
	c := NewConversationContext(4)
	c.Append(RoleCaller, "hola")
	turns := c.Turns()
	turns[0].Text = "changed"
	if c.Turns()[0].Text != "hola" {
		t.Fatalf("Turns() must return a copy")
	}
}
