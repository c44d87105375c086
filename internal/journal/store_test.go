package journal

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/mixctl/mixctl-core/internal/interpret"
)

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestOpenEphemeralIsNoop(t *testing.T) {
	s, err := Open(context.Background(), Config{RetentionMode: "ephemeral"}, newLogger())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	err = s.Append(context.Background(), "s1", []interpret.Command{{WireText: "ssrecall_ex scene_01"}})
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	recs, err := s.ListSession(context.Background(), "s1", 10)
	if err != nil || recs != nil {
		t.Fatalf("ephemeral journal must store nothing: %v %v", recs, err)
	}
}

func TestAppendAndList(t *testing.T) {
	cfg := Config{Path: filepath.Join(t.TempDir(), "journal.db"), RetentionMode: "persistent"}
	s, err := Open(context.Background(), cfg, newLogger())
	if err != nil {
		t.Fatalf("open journal: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	cmds := []interpret.Command{
		{ID: "c1", SourceText: "mute channel 2", WireText: "set MIXER:Current/Channel/Mute 1 0 1", Category: interpret.CategoryChannelMute, Confidence: 1.0},
		{ID: "c2", SourceText: "crank channel 5", WireText: "set MIXER:Current/Channel/Fader/Level 4 0 300", Category: interpret.CategoryChannelFader, Confidence: 0.945},
	}
	if err := s.Append(context.Background(), "session-1", cmds); err != nil {
		t.Fatalf("append: %v", err)
	}

	recs, err := s.ListSession(context.Background(), "session-1", 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recs))
	}
	if recs[0].CommandID != "c1" || recs[1].CommandID != "c2" {
		t.Fatalf("order: %q then %q", recs[0].CommandID, recs[1].CommandID)
	}
	if recs[1].Confidence != 0.945 {
		t.Fatalf("confidence = %v", recs[1].Confidence)
	}
}

func TestSessionRetentionDropsOnEnd(t *testing.T) {
	cfg := Config{Path: filepath.Join(t.TempDir(), "journal.db"), RetentionMode: "session"}
	s, err := Open(context.Background(), cfg, newLogger())
	if err != nil {
		t.Fatalf("open journal: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	if err := s.Append(context.Background(), "s1", []interpret.Command{{ID: "c1", WireText: "ssrecall_ex scene_01"}}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := s.EndSession(context.Background(), "s1"); err != nil {
		t.Fatalf("end session: %v", err)
	}
	recs, err := s.ListSession(context.Background(), "s1", 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(recs) != 0 {
		t.Fatalf("session rows must cascade on end, got %d", len(recs))
	}
}

func TestPruneByAgeAndCount(t *testing.T) {
	cfg := Config{Path: filepath.Join(t.TempDir(), "journal.db"), RetentionMode: "persistent", RetentionDays: 1, MaxSessions: 1}
	s, err := Open(context.Background(), cfg, newLogger())
	if err != nil {
		t.Fatalf("open journal: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	s.clock = func() time.Time { return time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC) }
	if err := s.Append(context.Background(), "old", []interpret.Command{{ID: "c1", WireText: "ssrecall_ex scene_01", CreatedAt: s.clock()}}); err != nil {
		t.Fatalf("append old: %v", err)
	}

	s.clock = func() time.Time { return time.Date(2026, 2, 3, 0, 0, 0, 0, time.UTC) }
	if err := s.Append(context.Background(), "new", []interpret.Command{{ID: "c2", WireText: "ssrecall_ex scene_02", CreatedAt: s.clock()}}); err != nil {
		t.Fatalf("append new: %v", err)
	}
	if err := s.Prune(context.Background()); err != nil {
		t.Fatalf("prune: %v", err)
	}

	recs, err := s.ListSession(context.Background(), "old", 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(recs) != 0 {
		t.Fatal("expected old session pruned")
	}
	recs, err = s.ListSession(context.Background(), "new", 10)
	if err != nil || len(recs) != 1 {
		t.Fatalf("new session must survive: %d %v", len(recs), err)
	}
}
