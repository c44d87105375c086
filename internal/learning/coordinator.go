// Package learning decides when to ask the operator whether a successful
// command was a rephrase of an earlier failed attempt, and what to write to
// the personal dictionary once they answer or the prompt times out.
//
// The coordinator is a pure state machine: it never arms timers and never
// touches the bus or the database. It returns show instructions carrying
// absolute deadlines; the engine schedules them and calls back on expiry.
package learning

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mixctl/mixctl-core/internal/dictionary"
	"github.com/mixctl/mixctl-core/internal/session"
	"github.com/mixctl/mixctl-core/internal/similarity"
)

// Prompt is one pending "did you mean" question.
type Prompt struct {
	ID            string
	SessionID     string
	OriginalText  string
	CorrectedText string
	Confidence    float64
	Distance      int
	QueuedAt      time.Time
}

// Show instructs the engine to surface a prompt. ShowAt trails the previous
// prompt's resolution by the settle delay; Deadline is when an unanswered
// prompt counts as ignored.
type Show struct {
	Prompt   Prompt
	ShowAt   time.Time
	Deadline time.Time
}

// Result is what a state transition asks the engine to do: persist an entry,
// surface the next prompt, or both. Either field may be nil.
type Result struct {
	Entry *dictionary.Entry
	Next  *Show
}

// Config tunes prompt pacing.
type Config struct {
	Window   time.Duration // how long a visible prompt waits for an answer
	Settle   time.Duration // gap between consecutive prompts
	MaxQueue int           // per-session cap on waiting prompts
}

func DefaultConfig() Config {
	return Config{Window: 3 * time.Second, Settle: 500 * time.Millisecond, MaxQueue: 8}
}

type sessionQueue struct {
	visible  *Prompt
	deadline time.Time
	waiting  []Prompt
}

// Coordinator runs one prompt at a time per session, FIFO. Safe for
// concurrent use.
type Coordinator struct {
	mu     sync.Mutex
	cfg    Config
	queues map[string]*sessionQueue

	clock func() time.Time
	newID func() string
}

func NewCoordinator(cfg Config) *Coordinator {
	if cfg.Window <= 0 {
		cfg.Window = DefaultConfig().Window
	}
	if cfg.MaxQueue <= 0 {
		cfg.MaxQueue = DefaultConfig().MaxQueue
	}
	return &Coordinator{
		cfg:    cfg,
		queues: make(map[string]*sessionQueue),
		clock:  time.Now,
		newID:  uuid.NewString,
	}
}

// Sweep compares an accepted utterance against the session's pending failed
// attempts and queues a prompt for every one within the similarity
// threshold. Attempts arrive most recent first, so the newest rephrase is
// the one that surfaces first. Returns the show instructions that became
// due, at most one unless a prompt was already visible.
func (c *Coordinator) Sweep(sessionID, acceptedText string, confidence float64, attempts []session.Attempt) []Show {
	if !similarity.Eligible(acceptedText) {
		return nil
	}
	var shows []Show
	for _, a := range attempts {
		if !similarity.Eligible(a.Text) {
			continue
		}
		res := similarity.Compare(acceptedText, a.Text)
		if !res.Match {
			continue
		}
		if show, ok := c.enqueue(sessionID, a.Text, acceptedText, confidence, res.Distance); ok {
			shows = append(shows, show)
		}
	}
	return shows
}

// enqueue adds a prompt; when the session has no visible prompt the new one
// becomes visible immediately and a show instruction is returned.
func (c *Coordinator) enqueue(sessionID, original, corrected string, confidence float64, distance int) (Show, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	q := c.queues[sessionID]
	if q == nil {
		q = &sessionQueue{}
		c.queues[sessionID] = q
	}

	now := c.clock()
	p := Prompt{
		ID:            c.newID(),
		SessionID:     sessionID,
		OriginalText:  original,
		CorrectedText: corrected,
		Confidence:    confidence,
		Distance:      distance,
		QueuedAt:      now,
	}

	if q.visible != nil {
		if len(q.waiting) >= c.cfg.MaxQueue {
			return Show{}, false
		}
		q.waiting = append(q.waiting, p)
		return Show{}, false
	}

	q.visible = &p
	q.deadline = now.Add(c.cfg.Window)
	return Show{Prompt: p, ShowAt: now, Deadline: q.deadline}, true
}

// Respond resolves the visible prompt with the operator's answer. Unknown or
// stale prompt ids are ignored.
func (c *Coordinator) Respond(sessionID, promptID, response string) Result {
	c.mu.Lock()
	defer c.mu.Unlock()

	q := c.queues[sessionID]
	if q == nil || q.visible == nil || q.visible.ID != promptID {
		return Result{}
	}
	entry := entryFor(*q.visible, response)
	next := c.advance(q)
	return Result{Entry: &entry, Next: next}
}

// Expire marks the visible prompt ignored once its deadline passes. The
// engine calls this from its timer; a prompt answered in the meantime is a
// no-op because the id no longer matches.
func (c *Coordinator) Expire(sessionID, promptID string) Result {
	c.mu.Lock()
	defer c.mu.Unlock()

	q := c.queues[sessionID]
	if q == nil || q.visible == nil || q.visible.ID != promptID {
		return Result{}
	}
	if c.clock().Before(q.deadline) {
		return Result{}
	}
	entry := entryFor(*q.visible, dictionary.ResponseIgnored)
	next := c.advance(q)
	return Result{Entry: &entry, Next: next}
}

// Flush resolves every outstanding prompt for a session as ignored and
// drops its queue. Called when the session ends.
func (c *Coordinator) Flush(sessionID string) []dictionary.Entry {
	c.mu.Lock()
	defer c.mu.Unlock()

	q := c.queues[sessionID]
	if q == nil {
		return nil
	}
	delete(c.queues, sessionID)

	var entries []dictionary.Entry
	if q.visible != nil {
		entries = append(entries, entryFor(*q.visible, dictionary.ResponseIgnored))
	}
	for _, p := range q.waiting {
		entries = append(entries, entryFor(p, dictionary.ResponseIgnored))
	}
	return entries
}

// Pending reports the visible prompt plus queue depth for a session.
func (c *Coordinator) Pending(sessionID string) (Prompt, int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	q := c.queues[sessionID]
	if q == nil || q.visible == nil {
		return Prompt{}, 0, false
	}
	return *q.visible, len(q.waiting), true
}

// advance pops the next waiting prompt into the visible slot. Caller holds
// the lock.
func (c *Coordinator) advance(q *sessionQueue) *Show {
	q.visible = nil
	if len(q.waiting) == 0 {
		return nil
	}
	p := q.waiting[0]
	q.waiting = q.waiting[1:]
	q.visible = &p

	showAt := c.clock().Add(c.cfg.Settle)
	q.deadline = showAt.Add(c.cfg.Window)
	return &Show{Prompt: p, ShowAt: showAt, Deadline: q.deadline}
}

func entryFor(p Prompt, response string) dictionary.Entry {
	return dictionary.Entry{
		OriginalText:  p.OriginalText,
		CorrectedText: p.CorrectedText,
		UserResponse:  response,
		SessionID:     p.SessionID,
		Distance:      p.Distance,
	}
}
