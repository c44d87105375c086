package engine

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/mixctl/mixctl-core/internal/config"
	"github.com/mixctl/mixctl-core/internal/dictionary"
	"github.com/mixctl/mixctl-core/internal/protocol"
)

type fakePublisher struct {
	mu        sync.Mutex
	published map[string][][]byte
	verified  bool
}

func newFakePublisher() *fakePublisher {
	return &fakePublisher{published: make(map[string][][]byte), verified: true}
}

func (f *fakePublisher) PublishJSON(subject string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published[subject] = append(f.published[subject], data)
	return nil
}

func (f *fakePublisher) RequestJSON(_ context.Context, _ string, _, resp any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if link, ok := resp.(*protocol.ConsoleLink); ok {
		link.Verified = f.verified
	}
	return nil
}

func (f *fakePublisher) count(subject string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.published[subject])
}

func (f *fakePublisher) last(t *testing.T, subject string, v any) {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	msgs := f.published[subject]
	if len(msgs) == 0 {
		t.Fatalf("no messages on %s", subject)
	}
	if err := json.Unmarshal(msgs[len(msgs)-1], v); err != nil {
		t.Fatalf("unmarshal %s: %v", subject, err)
	}
}

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestService(t *testing.T) (*Service, *fakePublisher) {
	t.Helper()
	cfg := config.Default()
	cfg.Learning.SettleDelayMS = 0
	return newTestServiceCfg(t, cfg)
}

func newTestServiceCfg(t *testing.T, cfg config.Config) (*Service, *fakePublisher) {
	t.Helper()
	dict, err := dictionary.Open(context.Background(),
		dictionary.Config{Path: filepath.Join(t.TempDir(), "dict.db"), CacheSize: 16}, newLogger())
	if err != nil {
		t.Fatalf("open dictionary: %v", err)
	}
	t.Cleanup(func() { _ = dict.Close() })

	s := NewService(context.Background(), cfg, nil, dict, nil, newLogger())
	pub := newFakePublisher()
	s.pub = pub
	t.Cleanup(s.Close)
	return s, pub
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestProcessFragmentPublishesCommand(t *testing.T) {
	s, pub := newTestService(t)

	s.processFragment(protocol.Fragment{SessionID: "s1", Text: "set channel 1 to -6 dB"})

	if pub.count(protocol.SubjectConsoleCommand) != 1 {
		t.Fatalf("got %d commands", pub.count(protocol.SubjectConsoleCommand))
	}
	var cmd protocol.ConsoleCommand
	pub.last(t, protocol.SubjectConsoleCommand, &cmd)
	if cmd.WireText != "set MIXER:Current/Channel/Fader/Level 0 0 -600" {
		t.Fatalf("wire = %q", cmd.WireText)
	}
	if cmd.SessionID != "s1" || cmd.Confidence < 0.8 {
		t.Fatalf("command = %+v", cmd)
	}
}

func TestRejectedFragmentPublishesNothing(t *testing.T) {
	s, pub := newTestService(t)

	s.processFragment(protocol.Fragment{SessionID: "s1", Text: "what a lovely show tonight"})

	if pub.count(protocol.SubjectConsoleCommand) != 0 {
		t.Fatal("rejected fragment must not publish commands")
	}
}

func TestRephraseLearningLoop(t *testing.T) {
	s, pub := newTestService(t)

	// Fails, recorded as a pending attempt.
	s.processFragment(protocol.Fragment{SessionID: "s1", Text: "send track 4 to the verse 7"})
	// Succeeds and is similar enough to trigger a prompt.
	s.processFragment(protocol.Fragment{SessionID: "s1", Text: "send track 4 to bus 7"})

	waitFor(t, "prompt publication", func() bool {
		return pub.count(protocol.SubjectPromptShow) >= 1
	})
	var prompt protocol.LearningPrompt
	pub.last(t, protocol.SubjectPromptShow, &prompt)
	if prompt.OriginalText != "send track 4 to the verse 7" || prompt.CorrectedText != "send track 4 to bus 7" {
		t.Fatalf("prompt = %+v", prompt)
	}
	if prompt.Deadline.IsZero() {
		t.Fatal("prompt must carry its auto-dismiss deadline")
	}
	if prompt.Confidence <= 0 {
		t.Fatalf("prompt confidence = %v, want the accepted command's score", prompt.Confidence)
	}

	// Operator accepts: the mapping lands in the dictionary, stamped with
	// the console-link state at creation.
	s.processPromptResult(protocol.PromptResult{
		PromptID: prompt.PromptID, SessionID: "s1", Response: dictionary.ResponseAccepted,
	})
	entry, ok, err := s.dict.Accepted(context.Background(), "send track 4 to the verse 7")
	if err != nil || !ok {
		t.Fatalf("accepted entry: ok=%v err=%v", ok, err)
	}
	if entry.CorrectedText != "send track 4 to bus 7" {
		t.Fatalf("corrected = %q", entry.CorrectedText)
	}
	if !entry.ConsoleVerified {
		t.Fatal("entry learned over a verified link must carry the flag")
	}

	// The same failed phrase now interprets via substitution and counts a use.
	before := pub.count(protocol.SubjectConsoleCommand)
	s.processFragment(protocol.Fragment{SessionID: "s1", Text: "send track 4 to the verse 7"})
	if pub.count(protocol.SubjectConsoleCommand) != before+1 {
		t.Fatal("substituted fragment must produce a command")
	}
	e, ok, err := s.dict.Lookup(context.Background(), "send track 4 to the verse 7")
	if err != nil || !ok || e.UsageCount < 1 {
		t.Fatalf("entry after substitution: ok=%v err=%v usage=%d", ok, err, e.UsageCount)
	}
}

func TestUnverifiedLinkEntryNotPromotable(t *testing.T) {
	s, pub := newTestService(t)
	pub.verified = false

	s.processFragment(protocol.Fragment{SessionID: "s1", Text: "send track 4 to the verse 7"})
	s.processFragment(protocol.Fragment{SessionID: "s1", Text: "send track 4 to bus 7"})
	waitFor(t, "prompt publication", func() bool {
		return pub.count(protocol.SubjectPromptShow) >= 1
	})
	var prompt protocol.LearningPrompt
	pub.last(t, protocol.SubjectPromptShow, &prompt)
	s.processPromptResult(protocol.PromptResult{
		PromptID: prompt.PromptID, SessionID: "s1", Response: dictionary.ResponseAccepted,
	})

	entry, ok, err := s.dict.Lookup(context.Background(), "send track 4 to the verse 7")
	if err != nil || !ok {
		t.Fatalf("entry: ok=%v err=%v", ok, err)
	}
	if entry.ConsoleVerified {
		t.Fatal("entry learned without a console link must not carry the flag")
	}

	// Heavy later use never makes it promotion-eligible.
	s.processFragment(protocol.Fragment{SessionID: "s1", Text: "send track 4 to the verse 7"})
	eligible, err := s.dict.PromotionEligible(context.Background(), 1)
	if err != nil {
		t.Fatalf("promotion eligible: %v", err)
	}
	if len(eligible) != 0 {
		t.Fatalf("eligible = %+v, want none", eligible)
	}
}

func TestRewordedRepeatSubstitutes(t *testing.T) {
	s, pub := newTestService(t)
	if _, err := s.dict.Put(context.Background(), dictionary.Entry{
		OriginalText:  "send track 4 to the verse 7",
		CorrectedText: "send track 4 to bus 7",
		UserResponse:  dictionary.ResponseAccepted,
	}); err != nil {
		t.Fatalf("put: %v", err)
	}

	// Same words, different order: no exact key hit, but within the
	// similarity threshold of the stored original.
	s.processFragment(protocol.Fragment{SessionID: "s1", Text: "send the track 4 to verse 7"})

	if pub.count(protocol.SubjectConsoleCommand) != 1 {
		t.Fatalf("got %d commands", pub.count(protocol.SubjectConsoleCommand))
	}
	var cmd protocol.ConsoleCommand
	pub.last(t, protocol.SubjectConsoleCommand, &cmd)
	if cmd.WireText != "set MIXER:Current/Channel/ToMix/On 3 6 1" {
		t.Fatalf("wire = %q", cmd.WireText)
	}

	e, ok, err := s.dict.Lookup(context.Background(), "send track 4 to the verse 7")
	if err != nil || !ok || e.UsageCount != 1 {
		t.Fatalf("entry usage: ok=%v err=%v usage=%d", ok, err, e.UsageCount)
	}
}

func TestNewestAttemptPromptsFirst(t *testing.T) {
	s, pub := newTestService(t)

	s.processFragment(protocol.Fragment{SessionID: "s1", Text: "send track 4 to the verse 7"})
	s.processFragment(protocol.Fragment{SessionID: "s1", Text: "send track 4 into bus seven please"})
	s.processFragment(protocol.Fragment{SessionID: "s1", Text: "send track 4 to bus 7"})

	waitFor(t, "prompt publication", func() bool {
		return pub.count(protocol.SubjectPromptShow) >= 1
	})
	var prompt protocol.LearningPrompt
	pub.last(t, protocol.SubjectPromptShow, &prompt)
	if prompt.OriginalText != "send track 4 into bus seven please" {
		t.Fatalf("first prompt = %q, want the most recent attempt", prompt.OriginalText)
	}
}

func TestPromptTimeoutStoresIgnored(t *testing.T) {
	cfg := config.Default()
	cfg.Learning.SettleDelayMS = 0
	cfg.Learning.PromptWindowMS = 60
	s, pub := newTestServiceCfg(t, cfg)

	s.processFragment(protocol.Fragment{SessionID: "s1", Text: "send track 4 to the verse 7"})
	s.processFragment(protocol.Fragment{SessionID: "s1", Text: "send track 4 to bus 7"})

	waitFor(t, "prompt publication", func() bool {
		return pub.count(protocol.SubjectPromptShow) >= 1
	})
	waitFor(t, "ignored entry", func() bool {
		e, ok, err := s.dict.Lookup(context.Background(), "send track 4 to the verse 7")
		return err == nil && ok && e.UserResponse == dictionary.ResponseIgnored
	})
}

func TestSessionEndFlushesPromptsAsIgnored(t *testing.T) {
	s, pub := newTestService(t)

	s.processFragment(protocol.Fragment{SessionID: "s1", Text: "send track 4 to the verse 7"})
	s.processFragment(protocol.Fragment{SessionID: "s1", Text: "send track 4 to bus 7"})
	waitFor(t, "prompt publication", func() bool {
		return pub.count(protocol.SubjectPromptShow) >= 1
	})

	s.endSession("s1")

	e, ok, err := s.dict.Lookup(context.Background(), "send track 4 to the verse 7")
	if err != nil || !ok {
		t.Fatalf("entry: ok=%v err=%v", ok, err)
	}
	if e.UserResponse != dictionary.ResponseIgnored {
		t.Fatalf("response = %q, want ignored on flush", e.UserResponse)
	}
	if s.sessions.Len() != 0 {
		t.Fatalf("sessions = %d, want 0", s.sessions.Len())
	}
}
