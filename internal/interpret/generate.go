package interpret

import (
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Limits are the console's protocol bounds. Aux/mix count varies by console
// model, so it arrives from configuration rather than a constant.
type Limits struct {
	MaxChannels int
	MaxMixes    int
	MaxScenes   int
	MaxDCAs     int
	MinDB       float64
	MaxDB       float64
}

// DefaultLimits matches a 40-channel console with 8 DCAs.
func DefaultLimits() Limits {
	return Limits{
		MaxChannels: 40,
		MaxMixes:    20,
		MaxScenes:   100,
		MaxDCAs:     8,
		MinDB:       -60,
		MaxDB:       10,
	}
}

// minusInfinity is the protocol's -inf level sentinel; it bypasses the
// numeric clamp.
const minusInfinity = -32768

// Generator turns match candidates into validated wire commands.
type Generator struct {
	limits Limits
	clock  func() time.Time
	newID  func() string
}

func NewGenerator(limits Limits) *Generator {
	return &Generator{
		limits: limits,
		clock:  time.Now,
		newID:  uuid.NewString,
	}
}

// Generate synthesizes the wire command(s) for a candidate. Most categories
// yield exactly one command; routing with a send level and stereo spreads
// yield two. Errors are advisory: the caller reports and discards.
func (g *Generator) Generate(cand MatchCandidate) ([]Command, error) {
	switch cand.Category {
	case CategoryChannelFader:
		return g.channelFader(cand)
	case CategoryChannelMute:
		return g.channelSwitch(cand, "Mute", "Mute", "Unmute")
	case CategoryChannelSolo:
		return g.channelSwitch(cand, "Solo", "Solo", "Unsolo")
	case CategoryChannelLabel:
		return g.channelLabel(cand)
	case CategoryRouting:
		return g.routing(cand)
	case CategoryPan:
		return g.pan(cand)
	case CategoryStereoWidth:
		return g.stereoWidth(cand)
	case CategoryScene:
		return g.scene(cand)
	case CategoryDCA:
		return g.dca(cand)
	case CategoryEffects:
		return g.effects(cand)
	case CategoryDynamics:
		return g.dynamics(cand)
	case CategoryContext:
		return g.contextual(cand)
	default:
		return nil, outOfRange("category")
	}
}

func (g *Generator) channelIndex(cand MatchCandidate) (int, error) {
	n, err := strconv.Atoi(cand.Slots[slotNum])
	if err != nil || n < 1 || n > g.limits.MaxChannels {
		return 0, outOfRange("channel")
	}
	return n - 1, nil
}

// clampLevel bounds an explicit level to the console's usable dB window.
func (g *Generator) clampLevel(centi int) int {
	if centi == minusInfinity {
		return centi
	}
	lo := int(g.limits.MinDB * 100)
	hi := int(g.limits.MaxDB * 100)
	if centi < lo {
		return lo
	}
	if centi > hi {
		return hi
	}
	return centi
}

func (g *Generator) channelFader(cand MatchCandidate) ([]Command, error) {
	idx, err := g.channelIndex(cand)
	if err != nil {
		return nil, err
	}
	centi, err := strconv.Atoi(cand.Slots[slotLevel])
	if err != nil {
		return nil, outOfRange("level")
	}
	centi = g.clampLevel(centi)
	return g.one(cand,
		fmt.Sprintf("set MIXER:Current/Channel/Fader/Level %d 0 %d", idx, centi),
		fmt.Sprintf("Set %s fader to %s dB", cand.Slots[slotTarget], formatDB(centi)),
	), nil
}

func (g *Generator) channelSwitch(cand MatchCandidate, path, onWord, offWord string) ([]Command, error) {
	idx, err := g.channelIndex(cand)
	if err != nil {
		return nil, err
	}
	state := cand.Slots[slotState]
	word := onWord
	if state == "0" {
		word = offWord
	}
	return g.one(cand,
		fmt.Sprintf("set MIXER:Current/Channel/%s %d 0 %s", path, idx, state),
		fmt.Sprintf("%s %s", word, cand.Slots[slotTarget]),
	), nil
}

func (g *Generator) channelLabel(cand MatchCandidate) ([]Command, error) {
	idx, err := g.channelIndex(cand)
	if err != nil {
		return nil, err
	}
	label := cand.Slots[slotLabel]
	return g.one(cand,
		fmt.Sprintf("set MIXER:Current/Channel/Label/Name %d 0 %q", idx, label),
		fmt.Sprintf("Label %s as %q", cand.Slots[slotTarget], label),
	), nil
}

func (g *Generator) routing(cand MatchCandidate) ([]Command, error) {
	idx, err := g.channelIndex(cand)
	if err != nil {
		return nil, err
	}
	mix, err := strconv.Atoi(cand.Slots[slotMix])
	if err != nil || mix < 1 || mix > g.limits.MaxMixes {
		return nil, outOfRange("mix")
	}
	mixIdx := mix - 1
	state := cand.Slots[slotState]
	verb := "Send"
	if state == "0" {
		verb = "Remove"
	}
	cmds := g.one(cand,
		fmt.Sprintf("set MIXER:Current/Channel/ToMix/On %d %d %s", idx, mixIdx, state),
		fmt.Sprintf("%s %s to mix %d", verb, cand.Slots[slotTarget], mix),
	)
	if lvText, ok := cand.Slots[slotSendLevel]; ok && state == "1" {
		centi, err := strconv.Atoi(lvText)
		if err == nil {
			centi = g.clampLevel(centi)
			cmds = append(cmds, g.command(cand,
				fmt.Sprintf("set MIXER:Current/Channel/ToMix/Level %d %d %d", idx, mixIdx, centi),
				fmt.Sprintf("Set %s send to mix %d at %s dB", cand.Slots[slotTarget], mix, formatDB(centi)),
			))
		}
	}
	return cmds, nil
}

func (g *Generator) pan(cand MatchCandidate) ([]Command, error) {
	idx, err := g.channelIndex(cand)
	if err != nil {
		return nil, err
	}
	pan, err := strconv.Atoi(cand.Slots[slotPan])
	if err != nil || pan < -100 || pan > 100 {
		return nil, outOfRange("pan")
	}
	return g.one(cand,
		fmt.Sprintf("set MIXER:Current/Channel/Pan %d 0 %d", idx, pan),
		fmt.Sprintf("Pan %s to %d", cand.Slots[slotTarget], pan),
	), nil
}

// stereoWidth spreads a stereo pair across adjacent channels.
func (g *Generator) stereoWidth(cand MatchCandidate) ([]Command, error) {
	idx, err := g.channelIndex(cand)
	if err != nil {
		return nil, err
	}
	if idx+1 >= g.limits.MaxChannels {
		return nil, outOfRange("channel")
	}
	width, err := strconv.Atoi(cand.Slots[slotWidth])
	if err != nil || width < 0 || width > 100 {
		return nil, outOfRange("width")
	}
	target := cand.Slots[slotTarget]
	cmds := g.one(cand,
		fmt.Sprintf("set MIXER:Current/Channel/Pan %d 0 %d", idx, -width),
		fmt.Sprintf("Spread %s left", target),
	)
	cmds = append(cmds, g.command(cand,
		fmt.Sprintf("set MIXER:Current/Channel/Pan %d 0 %d", idx+1, width),
		fmt.Sprintf("Spread %s right", target),
	))
	return cmds, nil
}

func (g *Generator) scene(cand MatchCandidate) ([]Command, error) {
	n, err := strconv.Atoi(cand.Slots[slotScene])
	if err != nil || n < 1 || n > g.limits.MaxScenes {
		return nil, outOfRange("scene")
	}
	if cand.Slots[slotSceneOp] == "store" {
		return g.one(cand,
			fmt.Sprintf("ssstore scene_%02d", n),
			fmt.Sprintf("Store current settings to scene %d", n),
		), nil
	}
	return g.one(cand,
		fmt.Sprintf("ssrecall_ex scene_%02d", n),
		fmt.Sprintf("Recall scene %d", n),
	), nil
}

func (g *Generator) dca(cand MatchCandidate) ([]Command, error) {
	n, err := strconv.Atoi(cand.Slots[slotNum])
	if err != nil || n < 1 || n > g.limits.MaxDCAs {
		return nil, outOfRange("dca")
	}
	idx := n - 1

	if label, ok := cand.Slots[slotLabel]; ok {
		return g.one(cand,
			fmt.Sprintf("set MIXER:Current/DCA/Label/Name %d 0 %q", idx, label),
			fmt.Sprintf("Label DCA %d as %q", n, label),
		), nil
	}
	if state, ok := cand.Slots[slotState]; ok {
		word := "Mute"
		if state == "1" {
			word = "Unmute"
		}
		return g.one(cand,
			fmt.Sprintf("set MIXER:Current/DCA/Fader/On %d 0 %s", idx, state),
			fmt.Sprintf("%s DCA %d", word, n),
		), nil
	}
	centi, err := strconv.Atoi(cand.Slots[slotLevel])
	if err != nil {
		return nil, outOfRange("level")
	}
	centi = g.clampLevel(centi)
	return g.one(cand,
		fmt.Sprintf("set MIXER:Current/DCA/Fader/Level %d 0 %d", idx, centi),
		fmt.Sprintf("Set DCA %d to %s dB", n, formatDB(centi)),
	), nil
}

func (g *Generator) effects(cand MatchCandidate) ([]Command, error) {
	idx, err := g.channelIndex(cand)
	if err != nil {
		return nil, err
	}
	insert := cand.Slots[slotInsertType]
	return g.one(cand,
		fmt.Sprintf("set MIXER:Current/Channel/Insert/Type %d 0 %s", idx, insert),
		fmt.Sprintf("Add %s to %s", insert, cand.Slots[slotTarget]),
	), nil
}

func (g *Generator) dynamics(cand MatchCandidate) ([]Command, error) {
	idx, err := g.channelIndex(cand)
	if err != nil {
		return nil, err
	}
	proc := cand.Slots[slotDynProc]
	param := cand.Slots[slotDynParam]
	value, err := strconv.Atoi(cand.Slots[slotDynValue])
	if err != nil {
		return nil, outOfRange("value")
	}
	desc := fmt.Sprintf("Engage %s on %s", proc, cand.Slots[slotTarget])
	switch param {
	case "Threshold":
		value = g.clampLevel(value)
		desc = fmt.Sprintf("Set %s threshold on %s to %s dB", proc, cand.Slots[slotTarget], formatDB(value))
	case "Ratio":
		desc = fmt.Sprintf("Set %s ratio on %s to %d:1", proc, cand.Slots[slotTarget], value/100)
	}
	return g.one(cand,
		fmt.Sprintf("set MIXER:Current/Channel/Dynamics/%s/%s %d 0 %d", proc, param, idx, value),
		desc,
	), nil
}

// contextual resolves pronoun commands against the session's last target.
func (g *Generator) contextual(cand MatchCandidate) ([]Command, error) {
	if _, ok := cand.Slots[slotNum]; !ok {
		return nil, ambiguousReference("target")
	}
	op := cand.Slots[slotCtxOp]
	kind := cand.Slots[slotCtxKind]

	if kind == string(RefDCA) {
		switch op {
		case "fader":
			return g.dca(cand)
		case "mute":
			// DCA mute runs through Fader/On with inverted polarity.
			inverted := cand
			inverted.Slots = cloneSlots(cand.Slots)
			if cand.Slots[slotState] == "1" {
				inverted.Slots[slotState] = "0"
			} else {
				inverted.Slots[slotState] = "1"
			}
			return g.dca(inverted)
		default:
			return nil, ambiguousReference("dca_op")
		}
	}

	switch op {
	case "fader":
		return g.channelFader(cand)
	case "mute":
		return g.channelSwitch(cand, "Mute", "Mute", "Unmute")
	case "solo":
		return g.channelSwitch(cand, "Solo", "Solo", "Unsolo")
	case "pan":
		return g.pan(cand)
	default:
		return nil, ambiguousReference("op")
	}
}

func (g *Generator) one(cand MatchCandidate, wire, desc string) []Command {
	return []Command{g.command(cand, wire, desc)}
}

func (g *Generator) command(cand MatchCandidate, wire, desc string) Command {
	return Command{
		ID:          g.newID(),
		WireText:    wire,
		Description: desc,
		Category:    cand.Category,
		CreatedAt:   g.clock().UTC(),
	}
}

func cloneSlots(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func formatDB(centi int) string {
	if centi == minusInfinity {
		return "-inf"
	}
	return strconv.FormatFloat(float64(centi)/100.0, 'f', 1, 64)
}
