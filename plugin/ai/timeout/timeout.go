// Package timeout defines centralized timeout constants for AI operations.
package timeout

import "time"

// AI operation timeout constants.
const (
	// ModelTimeout is the timeout for a single language-model round-trip.
	ModelTimeout = 60 * time.Second

	// AgentTimeout is the timeout for a full conversation turn, including
	// all nested tool invocations.
	AgentTimeout = 2 * time.Minute

	// ToolExecutionTimeout is the timeout for a single booking API call.
	ToolExecutionTimeout = 30 * time.Second

	// RetryDelay is the fixed delay before retrying a transient remote failure.
	RetryDelay = 500 * time.Millisecond

	// MaxToolSteps is the maximum number of tool-invocation turns per user
	// message before the orchestrator gives up.
	MaxToolSteps = 5

	// MaxRecentToolCalls is the number of recent tool calls tracked for
	// loop detection.
	MaxRecentToolCalls = 10

	// MaxRepeatedCalls is the number of consecutive identical tool calls
	// tolerated before the turn is aborted.
	MaxRepeatedCalls = 2

	// MaxTruncateLength is the maximum length for truncating strings in logs.
	MaxTruncateLength = 200
)
