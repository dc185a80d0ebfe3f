package agent

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/hrygo/calchat/plugin/ai"
)

// Session is the per-conversation context: user identity, timezone, and the
// ordered message history. It lives for the process lifetime at most and is
// mutated only by the orchestrator. Sessions never share state with each
// other; the mutex only guards against a host routing concurrent requests
// for the same session id.
type Session struct {
	ID       string
	Email    string
	Timezone string
	Location *time.Location

	// turnMu serializes whole conversation turns: a new user message is not
	// processed until the previous one is fully resolved, so the model never
	// sees a tool invocation without its result.
	turnMu sync.Mutex

	mu       sync.Mutex
	history  []ai.Message
	results  []ToolResult
	pending  int
	created  time.Time
	updated  time.Time
}

// NewSession creates a session for the given user identity and timezone.
// An invalid timezone falls back to UTC with a warning.
func NewSession(email, timezone string) (*Session, error) {
	if email == "" {
		return nil, errors.New("user email is required")
	}
	if timezone == "" {
		timezone = "UTC"
	}

	loc, err := time.LoadLocation(timezone)
	if err != nil {
		slog.Warn("invalid timezone, using UTC",
			"timezone", timezone,
			"email", email,
			"error", err)
		timezone = "UTC"
		loc = time.UTC
	}

	now := time.Now()
	return &Session{
		ID:       uuid.New().String(),
		Email:    email,
		Timezone: timezone,
		Location: loc,
		created:  now,
		updated:  now,
	}, nil
}

// AppendUser appends a user utterance to the history.
func (s *Session) AppendUser(content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, ai.UserMessage(content))
	s.updated = time.Now()
}

// AppendAssistant appends the model's reply, including any tool invocation it
// requested. A requested invocation becomes pending until its result lands.
func (s *Session) AppendAssistant(msg ai.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, msg)
	s.pending += len(msg.ToolCalls)
	s.updated = time.Now()
}

// AppendToolResult appends a tool result and settles its pending invocation.
func (s *Session) AppendToolResult(result ToolResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = append(s.results, result)
	s.history = append(s.history, ai.ToolResultMessage(result.InvocationID, result.ModelContent()))
	if s.pending > 0 {
		s.pending--
	}
	s.updated = time.Now()
}

// History returns a copy of the message history.
func (s *Session) History() []ai.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ai.Message, len(s.history))
	copy(out, s.history)
	return out
}

// Results returns a copy of all tool results recorded so far.
func (s *Session) Results() []ToolResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ToolResult, len(s.results))
	copy(out, s.results)
	return out
}

// CreatedAt reports when the session was created.
func (s *Session) CreatedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.created
}

// UpdatedAt reports when the session last changed.
func (s *Session) UpdatedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updated
}

// PendingInvocations reports how many tool invocations still await a result.
// It must be zero before the orchestrator requests another model turn.
func (s *Session) PendingInvocations() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending
}
