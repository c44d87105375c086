// Package session tracks per-conversation mixing state: the command history
// ring, the most recently addressed target for pronoun resolution, last-set
// fader levels, and the rejected attempts awaiting similarity comparison.
package session

import (
	"sync"
	"time"

	"github.com/mixctl/mixctl-core/internal/interpret"
)

// maxHistory bounds the per-session command ring.
const maxHistory = 20

// maxAttempts bounds the rejected-attempt window; older attempts fall off
// the front.
const maxAttempts = 10

// Attempt is a fragment that produced no command, held until a later
// accepted command either claims it as a rephrase or the session ends.
type Attempt struct {
	Text   string
	Reason interpret.RejectReason
	At     time.Time
}

// Context is one session's mutable state. Safe for concurrent use.
type Context struct {
	mu sync.Mutex

	id      string
	history []interpret.Command
	levels  map[int]int
	ref     interpret.ChannelRef
	haveRef bool
	pending []Attempt
	started time.Time

	clock func() time.Time
}

func newContext(id string, clock func() time.Time) *Context {
	return &Context{
		id:      id,
		levels:  make(map[int]int),
		started: clock(),
		clock:   clock,
	}
}

func (c *Context) ID() string { return c.id }

// LastChannel implements interpret.Session.
func (c *Context) LastChannel() (interpret.ChannelRef, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ref, c.haveRef
}

// LastLevel implements interpret.Session.
func (c *Context) LastLevel(channel int) (int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.levels[channel]
	return v, ok
}

// Observe records executed commands: history, the pronoun target, and any
// fader level they set. History is append-only and capped; older entries
// fall off the front.
func (c *Context) Observe(cmds []interpret.Command) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, cmd := range cmds {
		c.history = append(c.history, cmd)
		if n := len(c.history); n > maxHistory {
			c.history = c.history[n-maxHistory:]
		}
		if ref, ok := interpret.TargetOf(cmd); ok {
			c.ref, c.haveRef = ref, true
		}
		if ch, centi, ok := interpret.FaderLevelOf(cmd); ok {
			c.levels[ch] = centi
		}
	}
}

// History returns a copy of the command ring, oldest first.
func (c *Context) History() []interpret.Command {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]interpret.Command, len(c.history))
	copy(out, c.history)
	return out
}

// AddAttempt records a rejected fragment for later similarity comparison.
func (c *Context) AddAttempt(text string, reason interpret.RejectReason) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending = append(c.pending, Attempt{Text: text, Reason: reason, At: c.clock()})
	if n := len(c.pending); n > maxAttempts {
		c.pending = c.pending[n-maxAttempts:]
	}
}

// TakeAttempts returns the pending attempts, most recent first, and clears
// them. Consumers see the likeliest rephrase (the newest) before older ones.
func (c *Context) TakeAttempts() []Attempt {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := reversed(c.pending)
	c.pending = nil
	return out
}

// Attempts returns the pending attempts, most recent first, without
// clearing.
func (c *Context) Attempts() []Attempt {
	c.mu.Lock()
	defer c.mu.Unlock()
	return reversed(c.pending)
}

func reversed(attempts []Attempt) []Attempt {
	out := make([]Attempt, 0, len(attempts))
	for i := len(attempts) - 1; i >= 0; i-- {
		out = append(out, attempts[i])
	}
	return out
}

// Manager hands out session contexts keyed by session id.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Context
	clock    func() time.Time
}

func NewManager() *Manager {
	return &Manager{
		sessions: make(map[string]*Context),
		clock:    time.Now,
	}
}

// Get returns the context for a session id, creating it on first use.
func (m *Manager) Get(id string) *Context {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.sessions[id]; ok {
		return c
	}
	c := newContext(id, m.clock)
	m.sessions[id] = c
	return c
}

// End removes and returns a session's context. Returns nil when the session
// was never seen.
func (m *Manager) End(id string) *Context {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.sessions[id]
	delete(m.sessions, id)
	return c
}

// Len reports the number of live sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
