package interpret

import (
	"strings"

	"github.com/mixctl/mixctl-core/internal/terms"
)

// Thresholds hold the acceptance cutoffs. Mute and solo act instantly and
// audibly, so they demand a stricter score than the rest.
type Thresholds struct {
	Accept float64
	Mute   float64
}

func DefaultThresholds() Thresholds {
	return Thresholds{Accept: 0.5, Mute: 0.6}
}

// Outcome is the result of interpreting one transcript fragment. Exactly one
// of Commands or Reject is meaningful.
type Outcome struct {
	Commands   []Command
	Reject     RejectReason
	Confidence float64
}

// Interpreter is the full match-generate-score pipeline. Stateless and safe
// for concurrent use; per-session context arrives through the Session
// argument.
type Interpreter struct {
	matchers   *Matchers
	gen        *Generator
	thresholds Thresholds
}

func NewInterpreter(table *terms.Table, limits Limits, priority []Category, th Thresholds) *Interpreter {
	if th.Accept == 0 {
		th = DefaultThresholds()
	}
	return &Interpreter{
		matchers:   NewMatchers(table, priority),
		gen:        NewGenerator(limits),
		thresholds: th,
	}
}

// Interpret converts a fragment into zero or more validated commands. A
// rejection is a normal outcome, not an error.
func (in *Interpreter) Interpret(text string, sess Session) Outcome {
	norm := normalizeText(text)
	if norm == "" || len(norm) > MaxInputLength {
		return Outcome{Reject: RejectNoMatch}
	}

	// Split before normalization strips the commas that mark boundaries.
	if parts := splitCompound(strings.ToLower(text)); parts != nil {
		if out, ok := in.interpretCompound(parts, sess); ok {
			return out
		}
	}
	return in.interpretOne(norm, sess)
}

// interpretCompound runs each sub-command in order, threading the resolved
// target forward so later pronoun parts inherit it. Partial success stands:
// the operator hears what executed and repeats the rest.
func (in *Interpreter) interpretCompound(parts []string, sess Session) (Outcome, bool) {
	chain := &chainSession{base: sess}
	var cmds []Command
	lowest := 1.0

	for _, part := range parts {
		cand, ok := in.matchers.Match(part, chain)
		if !ok {
			continue
		}
		conf := Score(cand)
		if conf < in.threshold(cand.Category) {
			continue
		}
		generated, err := in.gen.Generate(cand)
		if err != nil {
			continue
		}
		chain.observe(cand)
		for i := range generated {
			generated[i].Confidence = conf
			generated[i].SourceText = part
		}
		cmds = append(cmds, generated...)
		if conf < lowest {
			lowest = conf
		}
	}

	if len(cmds) == 0 {
		// Nothing executed as a compound; the caller retries the text whole,
		// since conjunctions also appear inside single commands.
		return Outcome{}, false
	}
	return Outcome{Commands: cmds, Confidence: lowest}, true
}

func (in *Interpreter) interpretOne(norm string, sess Session) Outcome {
	cand, ok := in.matchers.Match(norm, sess)
	if !ok {
		return Outcome{Reject: RejectNoMatch}
	}
	conf := Score(cand)
	if conf < in.threshold(cand.Category) {
		return Outcome{Reject: RejectLowConfidence, Confidence: conf}
	}
	cmds, err := in.gen.Generate(cand)
	if err != nil {
		return Outcome{Reject: rejectFor(err), Confidence: conf}
	}
	for i := range cmds {
		cmds[i].Confidence = conf
		cmds[i].SourceText = norm
	}
	return Outcome{Commands: cmds, Confidence: conf}
}

func (in *Interpreter) threshold(cat Category) float64 {
	switch cat {
	case CategoryChannelMute, CategoryChannelSolo:
		return in.thresholds.Mute
	default:
		return in.thresholds.Accept
	}
}

func rejectFor(err error) RejectReason {
	if ge, ok := err.(*GenerationError); ok {
		return ge.Reason
	}
	return RejectOutOfRange
}
