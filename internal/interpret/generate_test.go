package interpret

import (
	"errors"
	"testing"
	"time"
)

func newTestGenerator() *Generator {
	g := NewGenerator(DefaultLimits())
	g.clock = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	n := 0
	g.newID = func() string { n++; return "cmd-1" }
	return g
}

func fader(num, level string) MatchCandidate {
	c := newCandidate(CategoryChannelFader, 1.0, 1.0, 1.0)
	c.Slots[slotNum] = num
	c.Slots[slotLevel] = level
	c.Slots[slotTarget] = "channel " + num
	return c
}

func TestGenerateChannelFader(t *testing.T) {
	g := newTestGenerator()
	cmds, err := g.Generate(fader("1", "-600"))
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(cmds) != 1 {
		t.Fatalf("got %d commands, want 1", len(cmds))
	}
	if cmds[0].WireText != "set MIXER:Current/Channel/Fader/Level 0 0 -600" {
		t.Fatalf("wire = %q", cmds[0].WireText)
	}
	if cmds[0].Description != "Set channel 1 fader to -6.0 dB" {
		t.Fatalf("description = %q", cmds[0].Description)
	}
}

func TestGenerateClampsLevels(t *testing.T) {
	g := newTestGenerator()

	cmds, err := g.Generate(fader("2", "2000"))
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if cmds[0].WireText != "set MIXER:Current/Channel/Fader/Level 1 0 1000" {
		t.Fatalf("high clamp: wire = %q", cmds[0].WireText)
	}

	cmds, err = g.Generate(fader("2", "-9000"))
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if cmds[0].WireText != "set MIXER:Current/Channel/Fader/Level 1 0 -6000" {
		t.Fatalf("low clamp: wire = %q", cmds[0].WireText)
	}
}

func TestGenerateMinusInfinityBypassesClamp(t *testing.T) {
	g := newTestGenerator()
	cmds, err := g.Generate(fader("2", "-32768"))
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if cmds[0].WireText != "set MIXER:Current/Channel/Fader/Level 1 0 -32768" {
		t.Fatalf("wire = %q", cmds[0].WireText)
	}
}

func TestGenerateChannelOutOfRange(t *testing.T) {
	g := newTestGenerator()
	_, err := g.Generate(fader("41", "0"))
	var ge *GenerationError
	if !errors.As(err, &ge) || ge.Reason != RejectOutOfRange {
		t.Fatalf("err = %v, want out_of_range", err)
	}
}

func TestGenerateRoutingEmitsOnAndLevel(t *testing.T) {
	g := newTestGenerator()
	c := newCandidate(CategoryRouting, 1.0, 1.0, 1.0)
	c.Slots[slotNum] = "4"
	c.Slots[slotMix] = "7"
	c.Slots[slotState] = "1"
	c.Slots[slotSendLevel] = "-1000"
	c.Slots[slotTarget] = "channel 4"

	cmds, err := g.Generate(c)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(cmds) != 2 {
		t.Fatalf("got %d commands, want 2", len(cmds))
	}
	if cmds[0].WireText != "set MIXER:Current/Channel/ToMix/On 3 6 1" {
		t.Fatalf("on: wire = %q", cmds[0].WireText)
	}
	if cmds[1].WireText != "set MIXER:Current/Channel/ToMix/Level 3 6 -1000" {
		t.Fatalf("level: wire = %q", cmds[1].WireText)
	}
}

func TestGenerateStereoWidthPair(t *testing.T) {
	g := newTestGenerator()
	c := newCandidate(CategoryStereoWidth, 0.8, 1.0, 0.85)
	c.Slots[slotNum] = "10"
	c.Slots[slotWidth] = "100"
	c.Slots[slotTarget] = "overheads"

	cmds, err := g.Generate(c)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(cmds) != 2 {
		t.Fatalf("got %d commands, want 2", len(cmds))
	}
	if cmds[0].WireText != "set MIXER:Current/Channel/Pan 9 0 -100" {
		t.Fatalf("left: wire = %q", cmds[0].WireText)
	}
	if cmds[1].WireText != "set MIXER:Current/Channel/Pan 10 0 100" {
		t.Fatalf("right: wire = %q", cmds[1].WireText)
	}
}

func TestGenerateSceneFormats(t *testing.T) {
	g := newTestGenerator()
	c := newCandidate(CategoryScene, 1.0, 1.0, 1.0)
	c.Slots[slotScene] = "7"
	c.Slots[slotSceneOp] = "recall"

	cmds, err := g.Generate(c)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if cmds[0].WireText != "ssrecall_ex scene_07" {
		t.Fatalf("recall: wire = %q", cmds[0].WireText)
	}

	c.Slots[slotSceneOp] = "store"
	c.Slots[slotScene] = "15"
	cmds, err = g.Generate(c)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if cmds[0].WireText != "ssstore scene_15" {
		t.Fatalf("store: wire = %q", cmds[0].WireText)
	}
}

func TestGenerateDCAMutePolarity(t *testing.T) {
	g := newTestGenerator()
	c := newCandidate(CategoryDCA, 1.0, 1.0, 1.0)
	c.Slots[slotNum] = "3"
	c.Slots[slotState] = "0"
	c.Slots[slotTarget] = "dca 3"

	cmds, err := g.Generate(c)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if cmds[0].WireText != "set MIXER:Current/DCA/Fader/On 2 0 0" {
		t.Fatalf("wire = %q", cmds[0].WireText)
	}
	if cmds[0].Description != "Mute DCA 3" {
		t.Fatalf("description = %q", cmds[0].Description)
	}
}

func TestGenerateContextWithoutTarget(t *testing.T) {
	g := newTestGenerator()
	c := newCandidate(CategoryContext, 0.6, 0.5, 1.0)
	c.Slots[slotCtxOp] = "mute"
	c.Slots[slotState] = "1"

	_, err := g.Generate(c)
	var ge *GenerationError
	if !errors.As(err, &ge) || ge.Reason != RejectAmbiguousReference {
		t.Fatalf("err = %v, want ambiguous_reference", err)
	}
}

func TestEncodeDecodeDB(t *testing.T) {
	cases := []struct {
		db   float64
		wire int
	}{
		{0, 0},
		{-6, -600},
		{3.5, 350},
		{-60, -6000},
		{10, 1000},
		{-0.5, -50},
	}
	for _, tc := range cases {
		if got := EncodeDB(tc.db); got != tc.wire {
			t.Fatalf("EncodeDB(%v) = %d, want %d", tc.db, got, tc.wire)
		}
		if got := DecodeDB(tc.wire); got != tc.db {
			t.Fatalf("DecodeDB(%d) = %v, want %v", tc.wire, got, tc.db)
		}
	}
}
