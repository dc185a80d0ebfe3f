// Package ai provides the language-model service consumed by the agent.
package ai

import (
	"context"

	"github.com/pkg/errors"
)

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message represents a chat message.
type Message struct {
	Role    string
	Content string

	// ToolCalls carries the tool invocations an assistant message requested.
	ToolCalls []ToolCall

	// ToolCallID links a tool-result message back to its invocation.
	ToolCallID string
}

// ToolCall is a structured tool invocation produced by the model.
type ToolCall struct {
	ID       string
	Type     string
	Function FunctionCall
}

// FunctionCall names the requested tool and its JSON-encoded arguments.
type FunctionCall struct {
	Name      string
	Arguments string
}

// ToolDescriptor describes one tool offered to the model.
type ToolDescriptor struct {
	Name        string
	Description string
	// Parameters is a JSON Schema document for the tool's arguments.
	Parameters string
}

// ChatResponse is the model's reply: either plain text, or one or more
// tool calls. The agent treats an empty ToolCalls slice as a final answer.
type ChatResponse struct {
	Content   string
	ToolCalls []ToolCall
}

// ErrModelUnavailable indicates the model service could not be reached or
// timed out. It is handled like any other transient remote failure.
var ErrModelUnavailable = errors.New("model service unavailable")

// LLMService is the language-model service interface.
type LLMService interface {
	// Chat performs a plain chat completion.
	Chat(ctx context.Context, messages []Message) (string, error)

	// ChatWithTools performs a chat completion with tool definitions, so the
	// model may answer with text or request a tool invocation.
	ChatWithTools(ctx context.Context, messages []Message, tools []ToolDescriptor) (*ChatResponse, error)
}

// SystemPrompt creates a system message.
func SystemPrompt(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// UserMessage creates a user message.
func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// AssistantMessage creates an assistant message.
func AssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}

// ToolResultMessage creates a tool-result message linked to a tool call.
func ToolResultMessage(toolCallID, content string) Message {
	return Message{Role: RoleTool, Content: content, ToolCallID: toolCallID}
}
