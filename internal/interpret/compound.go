package interpret

import (
	"regexp"
	"strconv"
	"strings"
)

// Conjunction boundaries for compound utterances. Commas count as "and";
// "as well as" must be replaced before the word-level split so its inner
// "as" doesn't false-trigger.
var (
	reAsWellAs    = regexp.MustCompile(`\bas well as\b`)
	reConjunction = regexp.MustCompile(`\s*(?:,|\band\b|\bthen\b|\balso\b|\bplus\b)\s*`)
)

const maxCompoundParts = 4

// splitCompound breaks an utterance into sequential sub-commands. Returns nil
// when the text holds a single command.
func splitCompound(text string) []string {
	replaced := reAsWellAs.ReplaceAllString(text, " and ")
	parts := reConjunction.Split(replaced, -1)
	out := parts[:0]
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	if len(out) < 2 || len(out) > maxCompoundParts {
		return nil
	}
	return out
}

// chainSession overlays the previous sub-command's target on a session so a
// trailing pronoun part ("...and bring it down a bit") resolves against the
// part before it, not the prior utterance.
type chainSession struct {
	base Session
	ref  ChannelRef
	have bool

	lastLevel    int
	haveLevel    bool
	levelChannel int
}

func (c *chainSession) LastChannel() (ChannelRef, bool) {
	if c.have {
		return c.ref, true
	}
	if c.base == nil {
		return ChannelRef{}, false
	}
	return c.base.LastChannel()
}

func (c *chainSession) LastLevel(channel int) (int, bool) {
	if c.haveLevel && channel == c.levelChannel {
		return c.lastLevel, true
	}
	if c.base == nil {
		return 0, false
	}
	return c.base.LastLevel(channel)
}

// observe records the resolved target of a generated candidate so the next
// part of the compound inherits it.
func (c *chainSession) observe(cand MatchCandidate) {
	numText, ok := cand.Slots[slotNum]
	if !ok {
		return
	}
	n, err := strconv.Atoi(numText)
	if err != nil || n < 1 {
		return
	}
	kind := RefChannel
	if cand.Category == CategoryDCA {
		kind = RefDCA
	}
	if cand.Category == CategoryContext {
		if k, ok := cand.Slots[slotCtxKind]; ok {
			kind = RefKind(k)
		}
	}
	c.ref = ChannelRef{Kind: kind, Index: n - 1}
	c.have = true

	if lvText, ok := cand.Slots[slotLevel]; ok && kind == RefChannel {
		if lv, err := strconv.Atoi(lvText); err == nil {
			c.lastLevel = lv
			c.haveLevel = true
			c.levelChannel = n - 1
		}
	}
}
