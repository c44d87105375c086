package protocol

import "time"

// Fragment is a single transcript fragment delivered by the speech-streaming
// collaborator. Fragments arrive in order per session; the engine performs no
// deduplication of its own.
type Fragment struct {
	SessionID string    `json:"session_id"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// ConsoleCommand is an accepted RCP command published for the network-delivery
// collaborator. WireText is a literal line of the console protocol.
type ConsoleCommand struct {
	ID          string    `json:"id"`
	SessionID   string    `json:"session_id"`
	WireText    string    `json:"wire_text"`
	Description string    `json:"description"`
	Confidence  float64   `json:"confidence"`
	Category    string    `json:"category"`
	CreatedAt   time.Time `json:"created_at"`
}

// LearningPrompt announces that a prompt became visible. Deadline is the
// instant at which the prompt auto-dismisses as ignored; the engine owns the
// timer, the UI only renders the countdown.
type LearningPrompt struct {
	PromptID      string    `json:"prompt_id"`
	SessionID     string    `json:"session_id"`
	OriginalText  string    `json:"original_text"`
	CorrectedText string    `json:"corrected_text"`
	Confidence    float64   `json:"confidence"`
	Deadline      time.Time `json:"deadline"`
}

// PromptResult carries the user's answer to a visible prompt.
type PromptResult struct {
	PromptID  string `json:"prompt_id"`
	SessionID string `json:"session_id"`
	Response  string `json:"response"` // accepted | rejected
}

// SessionEnd signals that a recording session stopped and its state can be
// discarded once queued prompts are flushed.
type SessionEnd struct {
	SessionID string `json:"session_id"`
}

// ConsoleLink is the reply to a console-verified query.
type ConsoleLink struct {
	Verified bool `json:"verified"`
}

const (
	SubjectFragment        = "stt.text.final"
	SubjectConsoleCommand  = "console.rcp.command"
	SubjectPromptShow      = "learn.prompt.show"
	SubjectPromptResult    = "learn.prompt.result"
	SubjectConsoleVerified = "console.link.verified"
	SubjectSessionEnd      = "session.ended"
)
