// Package agent implements the tool-dispatch orchestration core: it turns a
// free-form user utterance into validated calls against the booking service
// and feeds the results back to the language model until it produces a final
// reply.
package agent

import (
	"encoding/json"
	"fmt"
	"log/slog"
)

// ToolInvocation is a structured tool request produced by the model.
// It is immutable once created and consumed exactly once by the executor.
type ToolInvocation struct {
	// ID is the model-assigned call id, used to pair the result message.
	ID string
	// Name is one of the tool names declared by the schema.
	Name string
	// Arguments is the raw JSON argument object as produced by the model.
	Arguments string
}

// FailureKind classifies a failed tool invocation.
type FailureKind string

const (
	// FailInvalidArguments is a local, pre-dispatch validation failure.
	// The model can recover by re-asking the user or self-correcting.
	FailInvalidArguments FailureKind = "invalid_arguments"

	// FailNotFound means the referenced booking does not exist.
	FailNotFound FailureKind = "not_found"

	// FailRemoteRejected means the booking API rejected the request for
	// business reasons.
	FailRemoteRejected FailureKind = "remote_rejected"

	// FailRemoteUnavailable means the remote call failed even after retry.
	FailRemoteUnavailable FailureKind = "remote_unavailable"

	// FailMaxStepsExceeded means the orchestrator hit its tool-step cap.
	FailMaxStepsExceeded FailureKind = "max_steps_exceeded"
)

// ToolResult is the normalized outcome of one tool invocation. It is created
// by the executor, appended to session history, and never mutated afterward.
type ToolResult struct {
	InvocationID string
	Tool         string
	Success      bool

	// Payload holds the success payload: *booking.Record for book_event,
	// []*booking.Record for list_events, nil for cancel_event.
	Payload any

	Failure FailureKind
	Message string
}

// SuccessResult wraps a payload as a successful result.
func SuccessResult(inv ToolInvocation, payload any, message string) ToolResult {
	return ToolResult{
		InvocationID: inv.ID,
		Tool:         inv.Name,
		Success:      true,
		Payload:      payload,
		Message:      message,
	}
}

// FailureResult wraps a typed failure.
func FailureResult(inv ToolInvocation, kind FailureKind, message string) ToolResult {
	return ToolResult{
		InvocationID: inv.ID,
		Tool:         inv.Name,
		Failure:      kind,
		Message:      message,
	}
}

// ModelContent renders the result as text fed back into the model's context.
// Failures are data for the model, not errors for the caller; the model
// decides how to phrase the user-facing explanation.
func (r ToolResult) ModelContent() string {
	if !r.Success {
		return fmt.Sprintf("Error (%s): %s", r.Failure, r.Message)
	}
	if r.Payload == nil {
		return r.Message
	}
	data, err := json.Marshal(r.Payload)
	if err != nil {
		slog.Warn("failed to encode tool payload for model",
			"tool", r.Tool,
			"error", err)
		return r.Message
	}
	if r.Message != "" {
		return fmt.Sprintf("%s\n%s", r.Message, string(data))
	}
	return string(data)
}

// truncateForLog shortens a string for structured log output.
func truncateForLog(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
