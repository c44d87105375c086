package session

import (
	"strconv"
	"testing"

	"github.com/mixctl/mixctl-core/internal/interpret"
)

func faderCmd(channel, centi int) interpret.Command {
	return interpret.Command{
		ID:       "cmd-" + strconv.Itoa(channel),
		WireText: "set MIXER:Current/Channel/Fader/Level " + strconv.Itoa(channel) + " 0 " + strconv.Itoa(centi),
		Category: interpret.CategoryChannelFader,
	}
}

func TestContextTracksLastChannelAndLevel(t *testing.T) {
	m := NewManager()
	c := m.Get("s1")

	c.Observe([]interpret.Command{faderCmd(4, -600)})

	ref, ok := c.LastChannel()
	if !ok || ref.Kind != interpret.RefChannel || ref.Index != 4 {
		t.Fatalf("ref = %+v ok=%v", ref, ok)
	}
	lv, ok := c.LastLevel(4)
	if !ok || lv != -600 {
		t.Fatalf("level = %d ok=%v", lv, ok)
	}
	if _, ok := c.LastLevel(5); ok {
		t.Fatal("channel 5 has no level")
	}
}

func TestContextDCATarget(t *testing.T) {
	c := NewManager().Get("s1")
	c.Observe([]interpret.Command{{
		WireText: "set MIXER:Current/DCA/Fader/On 2 0 0",
		Category: interpret.CategoryDCA,
	}})
	ref, ok := c.LastChannel()
	if !ok || ref.Kind != interpret.RefDCA || ref.Index != 2 {
		t.Fatalf("ref = %+v ok=%v", ref, ok)
	}
}

func TestContextHistoryCapped(t *testing.T) {
	c := NewManager().Get("s1")
	for i := 0; i < maxHistory+5; i++ {
		c.Observe([]interpret.Command{faderCmd(i%8, i*10)})
	}
	h := c.History()
	if len(h) != maxHistory {
		t.Fatalf("history = %d entries, want %d", len(h), maxHistory)
	}
	// Oldest surviving entry is number 5; ordering is append order.
	if h[0].WireText != faderCmd(5%8, 50).WireText {
		t.Fatalf("oldest = %q", h[0].WireText)
	}
}

func TestContextAttemptsNewestFirst(t *testing.T) {
	c := NewManager().Get("s1")
	c.AddAttempt("send track 4 to the verse 7", interpret.RejectNoMatch)
	c.AddAttempt("crank the thing", interpret.RejectLowConfidence)

	got := c.Attempts()
	if len(got) != 2 || got[0].Text != "crank the thing" {
		t.Fatalf("attempts = %+v, want the newest first", got)
	}

	taken := c.TakeAttempts()
	if len(taken) != 2 || taken[0].Text != "crank the thing" {
		t.Fatalf("taken = %+v, want the newest first", taken)
	}
	if len(c.Attempts()) != 0 {
		t.Fatal("attempts must be cleared after take")
	}
}

func TestContextAttemptsCapped(t *testing.T) {
	c := NewManager().Get("s1")
	for i := 0; i < maxAttempts+5; i++ {
		c.AddAttempt("attempt "+strconv.Itoa(i), interpret.RejectNoMatch)
	}
	got := c.Attempts()
	if len(got) != maxAttempts {
		t.Fatalf("attempts = %d, want %d", len(got), maxAttempts)
	}
	// Newest first; the oldest survivor is number 5.
	if got[0].Text != "attempt "+strconv.Itoa(maxAttempts+4) {
		t.Fatalf("newest = %q", got[0].Text)
	}
	if got[len(got)-1].Text != "attempt 5" {
		t.Fatalf("oldest survivor = %q", got[len(got)-1].Text)
	}
}

func TestManagerLifecycle(t *testing.T) {
	m := NewManager()
	a := m.Get("a")
	if m.Get("a") != a {
		t.Fatal("Get must return the same context for the same id")
	}
	if m.Len() != 1 {
		t.Fatalf("len = %d, want 1", m.Len())
	}
	if got := m.End("a"); got != a {
		t.Fatal("End must return the live context")
	}
	if m.End("a") != nil {
		t.Fatal("End on a missing session returns nil")
	}
	if m.Len() != 0 {
		t.Fatalf("len = %d, want 0", m.Len())
	}
}
