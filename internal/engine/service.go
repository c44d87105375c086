// Package engine wires the interpretation pipeline to the message bus. It
// consumes transcript fragments, publishes validated console commands,
// journals them, and runs the rephrase-learning loop: similarity sweeps,
// prompt scheduling with deadlines, and dictionary writes.
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/mixctl/mixctl-core/internal/bus"
	"github.com/mixctl/mixctl-core/internal/config"
	"github.com/mixctl/mixctl-core/internal/dictionary"
	"github.com/mixctl/mixctl-core/internal/interpret"
	"github.com/mixctl/mixctl-core/internal/journal"
	"github.com/mixctl/mixctl-core/internal/learning"
	"github.com/mixctl/mixctl-core/internal/protocol"
	"github.com/mixctl/mixctl-core/internal/session"
	"github.com/mixctl/mixctl-core/internal/similarity"
	"github.com/mixctl/mixctl-core/internal/terms"
)

// Publisher is the outbound bus surface the engine needs. *bus.Client
// satisfies it; tests substitute a recorder.
type Publisher interface {
	PublishJSON(subject string, v any) error
	RequestJSON(ctx context.Context, subject string, req, resp any) error
}

const verifyTimeout = 2 * time.Second

type Service struct {
	cfg      config.Config
	bus      *bus.Client
	pub      Publisher
	log      *slog.Logger
	interp   *interpret.Interpreter
	sessions *session.Manager
	dict     *dictionary.Store
	journal  *journal.Store
	coord    *learning.Coordinator

	ctx    context.Context
	cancel context.CancelFunc
	subs   []*nats.Subscription

	mu     sync.Mutex
	timers map[string]*time.Timer
	ready  bool

	tracer        trace.Tracer
	fragments     metric.Int64Counter
	commands      metric.Int64Counter
	rejections    metric.Int64Counter
	promptsShown  metric.Int64Counter
	entriesStored metric.Int64Counter
}

func NewService(parent context.Context, cfg config.Config, busClient *bus.Client, dict *dictionary.Store, jour *journal.Store, log *slog.Logger) *Service {
	ctx, cancel := context.WithCancel(parent)

	limits := interpret.Limits{
		MaxChannels: cfg.Console.MaxChannels,
		MaxMixes:    cfg.Console.MaxMixes,
		MaxScenes:   cfg.Console.MaxScenes,
		MaxDCAs:     cfg.Console.MaxDCAs,
		MinDB:       cfg.Console.MinDB,
		MaxDB:       cfg.Console.MaxDB,
	}
	priority := make([]interpret.Category, 0, len(cfg.Interpreter.CategoryPriority))
	for _, c := range cfg.Interpreter.CategoryPriority {
		priority = append(priority, interpret.Category(c))
	}
	thresholds := interpret.Thresholds{
		Accept: cfg.Interpreter.AcceptThreshold,
		Mute:   cfg.Interpreter.MuteThreshold,
	}

	coord := learning.NewCoordinator(learning.Config{
		Window:   time.Duration(cfg.Learning.PromptWindowMS) * time.Millisecond,
		Settle:   time.Duration(cfg.Learning.SettleDelayMS) * time.Millisecond,
		MaxQueue: cfg.Learning.MaxQueue,
	})

	s := &Service{
		cfg:      cfg,
		bus:      busClient,
		log:      log,
		interp:   interpret.NewInterpreter(terms.NewTable(), limits, priority, thresholds),
		sessions: session.NewManager(),
		dict:     dict,
		journal:  jour,
		coord:    coord,
		ctx:      ctx,
		cancel:   cancel,
		timers:   make(map[string]*time.Timer),
		tracer:   otel.Tracer("mixctl/engine"),
	}
	if busClient != nil {
		s.pub = busClient
	}
	s.initMetrics()
	return s
}

func (s *Service) initMetrics() {
	meter := otel.Meter("mixctl/engine")
	s.fragments, _ = meter.Int64Counter("mixctl_fragments_total")
	s.commands, _ = meter.Int64Counter("mixctl_commands_total")
	s.rejections, _ = meter.Int64Counter("mixctl_rejections_total")
	s.promptsShown, _ = meter.Int64Counter("mixctl_prompts_shown_total")
	s.entriesStored, _ = meter.Int64Counter("mixctl_dictionary_writes_total")
}

func (s *Service) Start() error {
	subs := []struct {
		subject string
		handler nats.MsgHandler
	}{
		{protocol.SubjectFragment, s.handleFragment},
		{protocol.SubjectPromptResult, s.handlePromptResult},
		{protocol.SubjectSessionEnd, s.handleSessionEnd},
	}
	for _, sub := range subs {
		ns, err := s.bus.Conn().Subscribe(sub.subject, sub.handler)
		if err != nil {
			return fmt.Errorf("subscribe %s: %w", sub.subject, err)
		}
		s.subs = append(s.subs, ns)
	}
	s.mu.Lock()
	s.ready = true
	s.mu.Unlock()
	return nil
}

func (s *Service) Close() {
	s.cancel()
	for _, sub := range s.subs {
		_ = sub.Drain()
	}
	s.mu.Lock()
	for _, t := range s.timers {
		t.Stop()
	}
	s.timers = make(map[string]*time.Timer)
	s.mu.Unlock()
}

func (s *Service) Healthy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ready
}

func (s *Service) handleFragment(msg *nats.Msg) {
	var frag protocol.Fragment
	if err := json.Unmarshal(msg.Data, &frag); err != nil {
		s.log.Warn("failed to decode fragment", slogError(err))
		return
	}
	s.processFragment(frag)
}

// processFragment runs the full pipeline for one transcript fragment.
func (s *Service) processFragment(frag protocol.Fragment) {
	ctx, span := s.tracer.Start(s.ctx, "engine.fragment")
	defer span.End()
	s.fragments.Add(ctx, 1)

	sess := s.sessions.Get(frag.SessionID)
	text := frag.Text

	// Learned-rephrase path: an accepted dictionary entry rewrites the
	// fragment before matching. Exact key hit first, then the similarity
	// scan for reworded repeats.
	if s.dict != nil {
		entry, ok, err := s.dict.Accepted(ctx, text)
		if err != nil {
			s.log.Warn("dictionary lookup failed", slogError(err))
		}
		if err == nil && !ok {
			cands, cerr := s.dict.FindCandidates(ctx, text)
			if cerr != nil {
				s.log.Warn("dictionary candidate scan failed", slogError(cerr))
			} else if len(cands) > 0 {
				entry, ok = cands[0], true
			}
		}
		if ok {
			s.log.Debug("substituting learned correction",
				slog.String("original", text), slog.String("corrected", entry.CorrectedText))
			text = entry.CorrectedText
			if err := s.dict.IncrementUsage(ctx, entry.OriginalText); err != nil {
				s.log.Warn("failed to bump entry usage", slogError(err))
			}
		}
	}

	outcome := s.interp.Interpret(text, sess)
	span.SetAttributes(attribute.String("outcome", string(outcome.Reject)))

	if outcome.Reject != interpret.RejectNone {
		s.rejections.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", string(outcome.Reject))))
		if similarity.Eligible(frag.Text) {
			sess.AddAttempt(frag.Text, outcome.Reject)
		}
		s.log.Debug("fragment rejected",
			slog.String("session", frag.SessionID),
			slog.String("reason", string(outcome.Reject)),
			slog.Float64("confidence", outcome.Confidence))
		return
	}

	sess.Observe(outcome.Commands)
	for _, cmd := range outcome.Commands {
		s.commands.Add(ctx, 1, metric.WithAttributes(attribute.String("category", string(cmd.Category))))
		out := protocol.ConsoleCommand{
			ID:          cmd.ID,
			SessionID:   frag.SessionID,
			WireText:    cmd.WireText,
			Description: cmd.Description,
			Confidence:  cmd.Confidence,
			Category:    string(cmd.Category),
			CreatedAt:   cmd.CreatedAt,
		}
		if err := s.pub.PublishJSON(protocol.SubjectConsoleCommand, out); err != nil {
			s.log.Warn("failed to publish command", slogError(err))
		}
	}
	if s.journal != nil {
		if err := s.journal.Append(ctx, frag.SessionID, outcome.Commands); err != nil {
			s.log.Warn("failed to journal commands", slogError(err))
		}
	}

	// A success may be the rephrase of earlier failures in this session.
	attempts := sess.TakeAttempts()
	if len(attempts) > 0 {
		for _, show := range s.coord.Sweep(frag.SessionID, frag.Text, outcome.Confidence, attempts) {
			s.schedulePrompt(show)
		}
	}
}

// consoleLinkVerified asks the delivery collaborator whether a verified
// console link is up right now. The answer is captured once, when an entry
// is created; later link state never changes an entry's provenance.
func (s *Service) consoleLinkVerified(ctx context.Context) bool {
	if s.pub == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, verifyTimeout)
	defer cancel()

	var link protocol.ConsoleLink
	if err := s.pub.RequestJSON(ctx, protocol.SubjectConsoleVerified, protocol.ConsoleLink{}, &link); err != nil {
		s.log.Debug("console link check unavailable", slogError(err))
		return false
	}
	return link.Verified
}

// schedulePrompt arms the show and expiry timers for one prompt.
func (s *Service) schedulePrompt(show learning.Show) {
	s.promptsShown.Add(s.ctx, 1)
	showDelay := time.Until(show.ShowAt)
	if showDelay < 0 {
		showDelay = 0
	}

	s.mu.Lock()
	s.timers["show:"+show.Prompt.ID] = time.AfterFunc(showDelay, func() {
		s.publishPrompt(show)
	})
	s.timers["expire:"+show.Prompt.ID] = time.AfterFunc(time.Until(show.Deadline), func() {
		res := s.coord.Expire(show.Prompt.SessionID, show.Prompt.ID)
		s.applyResult(show.Prompt.SessionID, res)
	})
	s.mu.Unlock()
}

func (s *Service) publishPrompt(show learning.Show) {
	out := protocol.LearningPrompt{
		PromptID:      show.Prompt.ID,
		SessionID:     show.Prompt.SessionID,
		OriginalText:  show.Prompt.OriginalText,
		CorrectedText: show.Prompt.CorrectedText,
		Confidence:    show.Prompt.Confidence,
		Deadline:      show.Deadline,
	}
	if err := s.pub.PublishJSON(protocol.SubjectPromptShow, out); err != nil {
		s.log.Warn("failed to publish prompt", slogError(err))
	}
}

func (s *Service) handlePromptResult(msg *nats.Msg) {
	var result protocol.PromptResult
	if err := json.Unmarshal(msg.Data, &result); err != nil {
		s.log.Warn("failed to decode prompt result", slogError(err))
		return
	}
	s.processPromptResult(result)
}

func (s *Service) processPromptResult(result protocol.PromptResult) {
	response := result.Response
	switch response {
	case dictionary.ResponseAccepted, dictionary.ResponseRejected:
	default:
		s.log.Warn("unknown prompt response", slog.String("response", response))
		return
	}
	res := s.coord.Respond(result.SessionID, result.PromptID, response)
	s.stopTimers(result.PromptID)
	s.applyResult(result.SessionID, res)
}

// applyResult persists a resolved prompt and schedules the next one.
func (s *Service) applyResult(sessionID string, res learning.Result) {
	if res.Entry != nil {
		s.storeEntry(*res.Entry)
	}
	if res.Next != nil {
		s.schedulePrompt(*res.Next)
	}
}

// storeEntry persists a resolved prompt, stamping the console-link state
// at creation.
func (s *Service) storeEntry(entry dictionary.Entry) {
	if s.dict == nil {
		return
	}
	ctx, cancel := context.WithTimeout(s.ctx, 5*time.Second)
	defer cancel()
	entry.ConsoleVerified = s.consoleLinkVerified(ctx)
	if _, err := s.dict.Put(ctx, entry); err != nil {
		s.log.Warn("failed to store dictionary entry", slogError(err))
		return
	}
	s.entriesStored.Add(ctx, 1, metric.WithAttributes(attribute.String("response", entry.UserResponse)))
}

func (s *Service) handleSessionEnd(msg *nats.Msg) {
	var end protocol.SessionEnd
	if err := json.Unmarshal(msg.Data, &end); err != nil {
		s.log.Warn("failed to decode session end", slogError(err))
		return
	}
	s.endSession(end.SessionID)
}

// endSession flushes outstanding prompts as ignored and drops state.
func (s *Service) endSession(sessionID string) {
	for _, entry := range s.coord.Flush(sessionID) {
		s.storeEntry(entry)
	}
	s.sessions.End(sessionID)
	if s.journal != nil {
		ctx, cancel := context.WithTimeout(s.ctx, 5*time.Second)
		defer cancel()
		if err := s.journal.EndSession(ctx, sessionID); err != nil {
			s.log.Warn("failed to end journal session", slogError(err))
		}
	}
}

func (s *Service) stopTimers(promptID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range []string{"show:" + promptID, "expire:" + promptID} {
		if t, ok := s.timers[key]; ok {
			t.Stop()
			delete(s.timers, key)
		}
	}
}

func slogError(err error) slog.Attr {
	return slog.String("error", err.Error())
}
