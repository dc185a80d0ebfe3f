package agent

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/hrygo/calchat/plugin/ai"
	"github.com/hrygo/calchat/plugin/ai/metrics"
	"github.com/hrygo/calchat/plugin/ai/timeout"
)

// Callback is invoked during orchestration for host UIs that want progress
// events.
type Callback func(event string, data string)

// Event constants for callbacks.
const (
	EventToolUse    = "tool_use"
	EventToolResult = "tool_result"
	EventAnswer     = "answer"
)

// User-facing fallback messages. Failures inside the loop are fed back to
// the model as data; these cover the cases where the model itself cannot be
// consulted anymore.
const (
	replyModelUnavailable = "Sorry, I'm having trouble reaching the assistant service right now. Please try again in a moment."
	replyMaxSteps         = "Sorry, I couldn't complete that request: it required more steps than I'm allowed to take. Could you simplify or split it up?"
)

// Config holds orchestrator configuration.
type Config struct {
	// MaxToolSteps caps consecutive tool-invocation turns per user message.
	MaxToolSteps int
}

// Orchestrator drives the conversation loop: it sends the session history
// plus the tool schema to the model, executes any invocation the model
// requests, feeds the result back, and repeats until the model answers with
// plain text.
type Orchestrator struct {
	llm      ai.LLMService
	executor *Executor
	schema   *Schema
	config   Config
	metrics  metrics.Service

	// Cached system prompt per session; invalidated once a minute so the
	// embedded current time stays fresh.
	promptMu    sync.Mutex
	promptCache map[string]promptEntry
}

type promptEntry struct {
	text string
	at   time.Time
}

// NewOrchestrator creates a conversation orchestrator.
func NewOrchestrator(llm ai.LLMService, executor *Executor, schema *Schema, config Config, ms metrics.Service) (*Orchestrator, error) {
	if llm == nil {
		return nil, errors.New("LLM service is required")
	}
	if executor == nil {
		return nil, errors.New("executor is required")
	}
	if schema == nil {
		return nil, errors.New("schema is required")
	}
	if config.MaxToolSteps <= 0 {
		config.MaxToolSteps = timeout.MaxToolSteps
	}

	return &Orchestrator{
		llm:         llm,
		executor:    executor,
		schema:      schema,
		config:      config,
		metrics:     ms,
		promptCache: make(map[string]promptEntry),
	}, nil
}

// HandleUserMessage resolves one user utterance to a final text reply,
// driving as many tool invocation round-trips as the model needs, bounded by
// the step cap. The returned reply is always usable; a non-nil error marks
// the turn as fatally interrupted (the session stays intact for retry).
func (o *Orchestrator) HandleUserMessage(ctx context.Context, session *Session, utterance string) (string, error) {
	return o.HandleUserMessageWithCallback(ctx, session, utterance, nil)
}

// HandleUserMessageWithCallback is HandleUserMessage with progress events.
func (o *Orchestrator) HandleUserMessageWithCallback(ctx context.Context, session *Session, utterance string, callback Callback) (string, error) {
	if utterance == "" {
		return "", errors.New("utterance is empty")
	}

	// One turn at a time per session. Concurrent requests for the same
	// session id queue here until the running turn is fully resolved.
	session.turnMu.Lock()
	defer session.turnMu.Unlock()

	start := time.Now()
	reply, err := o.runTurn(ctx, session, utterance, callback)
	if o.metrics != nil {
		o.metrics.RecordRequest(ctx, time.Since(start), err == nil)
	}
	return reply, err
}

func (o *Orchestrator) runTurn(ctx context.Context, session *Session, utterance string, callback Callback) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout.AgentTimeout)
	defer cancel()

	session.AppendUser(utterance)

	// Consecutive identical invocations signal a model stuck in a loop.
	type callKey struct {
		name string
		args string
	}
	var lastCall callKey
	repeats := 0

	for step := 0; step < o.config.MaxToolSteps; step++ {
		messages := append([]ai.Message{ai.SystemPrompt(o.systemPrompt(session))}, session.History()...)

		resp, err := o.llm.ChatWithTools(ctx, messages, o.schema.Descriptors())
		if err != nil {
			slog.Warn("model call failed",
				"session", session.ID,
				"step", step+1,
				"error", err)
			return replyModelUnavailable, errors.Wrapf(err, "model call failed (step %d)", step+1)
		}

		if len(resp.ToolCalls) == 0 {
			if resp.Content == "" {
				return replyModelUnavailable, errors.New("model produced neither text nor a tool invocation")
			}
			session.AppendAssistant(ai.AssistantMessage(resp.Content))
			if callback != nil {
				callback(EventAnswer, resp.Content)
			}
			return resp.Content, nil
		}

		session.AppendAssistant(ai.Message{
			Role:      ai.RoleAssistant,
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})

		for i, tc := range resp.ToolCalls {
			inv := ToolInvocation{
				ID:        tc.ID,
				Name:      tc.Function.Name,
				Arguments: tc.Function.Arguments,
			}

			key := callKey{name: inv.Name, args: inv.Arguments}
			if key == lastCall {
				repeats++
			} else {
				lastCall = key
				repeats = 0
			}
			if repeats >= timeout.MaxRepeatedCalls {
				slog.Warn("aborting turn: model repeats identical tool call",
					"session", session.ID,
					"tool", inv.Name,
					"args", truncateForLog(inv.Arguments, timeout.MaxTruncateLength))
				session.AppendToolResult(FailureResult(inv, FailMaxStepsExceeded,
					"aborted: the same invocation was repeated without progress"))
				// Every invocation appended with the assistant message must
				// get a result, including the ones this abort skips.
				for _, rem := range resp.ToolCalls[i+1:] {
					remInv := ToolInvocation{
						ID:        rem.ID,
						Name:      rem.Function.Name,
						Arguments: rem.Function.Arguments,
					}
					session.AppendToolResult(FailureResult(remInv, FailMaxStepsExceeded,
						"aborted: the turn ended before this invocation ran"))
				}
				session.AppendAssistant(ai.AssistantMessage(replyMaxSteps))
				return replyMaxSteps, nil
			}

			if callback != nil {
				callback(EventToolUse, inv.Name+":"+inv.Arguments)
			}

			toolStart := time.Now()
			result := o.executor.Execute(ctx, inv, session)
			if o.metrics != nil {
				o.metrics.RecordToolCall(ctx, inv.Name, time.Since(toolStart), result.Success)
			}

			// The result lands in history before the next model request, so
			// a multi-step intent (cancel then rebook) sees each outcome
			// before choosing its next move.
			session.AppendToolResult(result)

			if callback != nil {
				callback(EventToolResult, result.ModelContent())
			}
		}
	}

	slog.Warn("tool step cap exceeded",
		"session", session.ID,
		"max_steps", o.config.MaxToolSteps)
	session.AppendAssistant(ai.AssistantMessage(replyMaxSteps))
	return replyMaxSteps, nil
}

// systemPrompt returns the session's system prompt, rebuilt at most once a
// minute so the embedded clock does not go stale.
func (o *Orchestrator) systemPrompt(session *Session) string {
	o.promptMu.Lock()
	defer o.promptMu.Unlock()

	now := time.Now()
	if entry, ok := o.promptCache[session.ID]; ok && now.Sub(entry.at) < time.Minute {
		return entry.text
	}

	// Expired entries of other sessions are dropped here, so the cache only
	// ever holds sessions active within the last minute.
	for id, entry := range o.promptCache {
		if now.Sub(entry.at) >= time.Minute {
			delete(o.promptCache, id)
		}
	}

	text := buildSystemPrompt(session.Email, session.Location, now)
	o.promptCache[session.ID] = promptEntry{text: text, at: now}
	return text
}
