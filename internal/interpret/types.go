// Package interpret converts transcript fragments into validated,
// confidence-scored Yamaha RCP console commands. The pipeline is pure and
// synchronous: category matchers extract a structured candidate, the
// generator synthesizes the wire command with bounds validation, and the
// scorer decides acceptance.
package interpret

import (
	"fmt"
	"time"
)

// Category identifies which matcher produced a command and which validation
// rules the generator applies. The set is closed.
type Category string

const (
	CategoryChannelFader Category = "channel_fader"
	CategoryChannelMute  Category = "channel_mute"
	CategoryChannelSolo  Category = "channel_solo"
	CategoryChannelLabel Category = "channel_label"
	CategoryRouting      Category = "routing"
	CategoryPan          Category = "pan"
	CategoryStereoWidth  Category = "stereo_width"
	CategoryScene        Category = "scene"
	CategoryDCA          Category = "dca"
	CategoryEffects      Category = "effects"
	CategoryDynamics     Category = "dynamics"
	CategoryCompound     Category = "compound"
	CategoryContext      Category = "context"
)

// DefaultPriority is the tie-breaking order when two matchers produce
// candidates of equal specificity: explicit channel-number categories first,
// instrument-alias categories next, relative/ambiguous last. The order is a
// product decision and therefore configurable.
var DefaultPriority = []Category{
	CategoryChannelFader,
	CategoryChannelMute,
	CategoryChannelSolo,
	CategoryChannelLabel,
	CategoryRouting,
	CategoryPan,
	CategoryStereoWidth,
	CategoryDCA,
	CategoryScene,
	CategoryDynamics,
	CategoryEffects,
	CategoryContext,
}

// Command is an immutable, validated console command.
type Command struct {
	ID          string
	WireText    string
	Description string
	Confidence  float64
	Category    Category
	SourceText  string
	CreatedAt   time.Time
}

// ChannelRef identifies the most recently addressed target for
// pronoun/ellipsis resolution. Index is zero-based.
type ChannelRef struct {
	Kind  RefKind
	Index int
}

type RefKind string

const (
	RefChannel RefKind = "channel"
	RefDCA     RefKind = "dca"
)

// Session is the read-only view of per-session state the matchers need.
type Session interface {
	// LastChannel returns the most recently addressed channel/DCA, if any.
	LastChannel() (ChannelRef, bool)
	// LastLevel returns the last fader level set on a zero-based channel
	// within this session, in centi-dB.
	LastLevel(channel int) (int, bool)
}

// MatchCandidate is the matcher's intermediate result. It never leaves the
// package: the generator consumes it and it is discarded.
type MatchCandidate struct {
	Category         Category
	Slots            map[string]string
	Specificity      float64
	TermStrength     float64
	NumericCertainty float64
}

// Slot keys shared between matchers and the generator.
const (
	slotNum        = "num"         // one-based spoken channel/dca number
	slotLevel      = "level"       // centi-dB integer
	slotState      = "state"       // 0|1 for mute/solo style switches
	slotMix        = "mix"         // one-based mix/aux number
	slotSendLevel  = "send_level"  // centi-dB integer for send level
	slotPan        = "pan"         // -100..100
	slotWidth      = "width"       // pan magnitude for stereo spreads
	slotScene      = "scene"       // one-based scene number
	slotSceneOp    = "scene_op"    // recall|store
	slotLabel      = "label"       // label text
	slotInsertType = "insert_type" // effects insert type identifier
	slotDynProc    = "dyn_proc"    // Compressor|Gate|Limiter
	slotDynParam   = "dyn_param"   // On|Threshold|Ratio
	slotDynValue   = "dyn_value"   // parameter value
	slotTarget     = "target"      // human-readable target for descriptions
)

// RejectReason classifies why a fragment produced no command. None of these
// are errors; they are normal, frequent outcomes.
type RejectReason string

const (
	RejectNone               RejectReason = ""
	RejectNoMatch            RejectReason = "no_match"
	RejectLowConfidence      RejectReason = "low_confidence"
	RejectOutOfRange         RejectReason = "out_of_range"
	RejectAmbiguousReference RejectReason = "ambiguous_reference"
)

// GenerationError reports a candidate the generator refused to turn into a
// wire command. Always recovered locally; never propagated as fatal.
type GenerationError struct {
	Reason RejectReason
	Field  string
}

func (e *GenerationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Reason, e.Field)
	}
	return string(e.Reason)
}

func outOfRange(field string) *GenerationError {
	return &GenerationError{Reason: RejectOutOfRange, Field: field}
}

func ambiguousReference(field string) *GenerationError {
	return &GenerationError{Reason: RejectAmbiguousReference, Field: field}
}

// EncodeDB converts a dB float to the protocol's fixed-point representation.
func EncodeDB(v float64) int {
	if v >= 0 {
		return int(v*100 + 0.5)
	}
	return -int(-v*100 + 0.5)
}

// DecodeDB converts a fixed-point wire value back to dB.
func DecodeDB(v int) float64 {
	return float64(v) / 100.0
}
