package learning

import (
	"strconv"
	"testing"
	"time"

	"github.com/mixctl/mixctl-core/internal/dictionary"
	"github.com/mixctl/mixctl-core/internal/session"
)

func newTestCoordinator() (*Coordinator, *time.Time) {
	c := NewCoordinator(Config{Window: 3 * time.Second, Settle: 500 * time.Millisecond, MaxQueue: 8})
	now := time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)
	c.clock = func() time.Time { return now }
	n := 0
	c.newID = func() string { n++; return "prompt-" + strconv.Itoa(n) }
	return c, &now
}

func TestSweepQueuesOnePromptAtATime(t *testing.T) {
	c, _ := newTestCoordinator()

	attempts := []session.Attempt{
		{Text: "send track 4 to the verse 7"},
		{Text: "send track 4 into bus seven please"},
	}
	shows := c.Sweep("s1", "send track 4 to bus 7", 0.9, attempts)
	if len(shows) != 1 {
		t.Fatalf("got %d shows, want 1 (second prompt waits its turn)", len(shows))
	}
	if shows[0].Prompt.OriginalText != "send track 4 to the verse 7" {
		t.Fatalf("prompt = %+v", shows[0].Prompt)
	}
	if shows[0].Prompt.CorrectedText != "send track 4 to bus 7" {
		t.Fatalf("corrected = %q", shows[0].Prompt.CorrectedText)
	}

	_, waiting, ok := c.Pending("s1")
	if !ok || waiting != 1 {
		t.Fatalf("pending: ok=%v waiting=%d", ok, waiting)
	}
}

func TestSweepSkipsDissimilarAndShortAttempts(t *testing.T) {
	c, _ := newTestCoordinator()

	attempts := []session.Attempt{
		{Text: "recall scene fifteen"},            // dissimilar
		{Text: "bus 7"},                           // too short to compare
		{Text: "hello there how are you doing 7"}, // word count gap plus distance
	}
	if shows := c.Sweep("s1", "send track 4 to bus 7", 0.9, attempts); len(shows) != 0 {
		t.Fatalf("got %d shows, want 0", len(shows))
	}
}

func TestSweepIneligibleAcceptedText(t *testing.T) {
	c, _ := newTestCoordinator()
	attempts := []session.Attempt{{Text: "mute channel two please"}}
	if shows := c.Sweep("s1", "mute it", 0.9, attempts); shows != nil {
		t.Fatalf("accepted text under the word minimum must not sweep, got %v", shows)
	}
}

func TestRespondRecordsAndAdvances(t *testing.T) {
	c, now := newTestCoordinator()

	shows := c.Sweep("s1", "send track 4 to bus 7", 0.9, []session.Attempt{
		{Text: "send track 4 to the verse 7"},
		{Text: "send track 4 into bus seven please"},
	})
	if len(shows) != 1 {
		t.Fatalf("shows = %d", len(shows))
	}

	res := c.Respond("s1", shows[0].Prompt.ID, dictionary.ResponseAccepted)
	if res.Entry == nil || res.Entry.UserResponse != dictionary.ResponseAccepted {
		t.Fatalf("entry = %+v", res.Entry)
	}
	if res.Entry.OriginalText != "send track 4 to the verse 7" {
		t.Fatalf("original = %q", res.Entry.OriginalText)
	}
	if res.Next == nil {
		t.Fatal("second prompt must surface next")
	}
	wantShow := now.Add(500 * time.Millisecond)
	if !res.Next.ShowAt.Equal(wantShow) {
		t.Fatalf("show at %v, want settle delay %v", res.Next.ShowAt, wantShow)
	}
	if !res.Next.Deadline.Equal(wantShow.Add(3 * time.Second)) {
		t.Fatalf("deadline = %v", res.Next.Deadline)
	}
}

func TestRespondStalePromptIsNoop(t *testing.T) {
	c, _ := newTestCoordinator()
	shows := c.Sweep("s1", "send track 4 to bus 7", 0.9, []session.Attempt{{Text: "send track 4 to the verse 7"}})
	if len(shows) != 1 {
		t.Fatalf("shows = %d", len(shows))
	}
	if res := c.Respond("s1", "prompt-999", dictionary.ResponseAccepted); res.Entry != nil {
		t.Fatal("stale prompt id must not resolve anything")
	}
}

func TestExpireHonorsDeadline(t *testing.T) {
	c, now := newTestCoordinator()
	shows := c.Sweep("s1", "send track 4 to bus 7", 0.9, []session.Attempt{{Text: "send track 4 to the verse 7"}})
	id := shows[0].Prompt.ID

	if res := c.Expire("s1", id); res.Entry != nil {
		t.Fatal("expire before the deadline must be a no-op")
	}

	*now = now.Add(3 * time.Second)
	res := c.Expire("s1", id)
	if res.Entry == nil || res.Entry.UserResponse != dictionary.ResponseIgnored {
		t.Fatalf("entry = %+v, want ignored", res.Entry)
	}
	if res.Next != nil {
		t.Fatal("queue was empty, nothing should surface")
	}
	if _, _, ok := c.Pending("s1"); ok {
		t.Fatal("no prompt should remain visible")
	}
}

func TestFlushResolvesEverythingIgnored(t *testing.T) {
	c, _ := newTestCoordinator()
	c.Sweep("s1", "send track 4 to bus 7", 0.9, []session.Attempt{
		{Text: "send track 4 to the verse 7"},
		{Text: "send track 4 into bus seven please"},
	})

	entries := c.Flush("s1")
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	for _, e := range entries {
		if e.UserResponse != dictionary.ResponseIgnored {
			t.Fatalf("entry %q response = %q", e.OriginalText, e.UserResponse)
		}
	}
	if c.Flush("s1") != nil {
		t.Fatal("second flush must be empty")
	}
}
