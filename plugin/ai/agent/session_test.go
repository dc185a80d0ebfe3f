package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/calchat/plugin/ai"
)

func TestNewSession(t *testing.T) {
	session, err := NewSession("user@example.com", "Europe/London")
	require.NoError(t, err)
	assert.NotEmpty(t, session.ID)
	assert.Equal(t, "Europe/London", session.Timezone)
	assert.Empty(t, session.History())
}

func TestNewSessionInvalidTimezoneFallsBackToUTC(t *testing.T) {
	session, err := NewSession("user@example.com", "Not/AZone")
	require.NoError(t, err)
	assert.Equal(t, "UTC", session.Timezone)
}

func TestNewSessionRequiresEmail(t *testing.T) {
	_, err := NewSession("", "UTC")
	require.Error(t, err)
}

func TestSessionHistoryIsAppendOnly(t *testing.T) {
	session, err := NewSession("user@example.com", "UTC")
	require.NoError(t, err)

	session.AppendUser("book something")
	session.AppendAssistant(ai.Message{
		Role: ai.RoleAssistant,
		ToolCalls: []ai.ToolCall{
			{ID: "call_1", Type: "function", Function: ai.FunctionCall{Name: ToolListEvents, Arguments: "{}"}},
		},
	})
	assert.Equal(t, 1, session.PendingInvocations())

	session.AppendToolResult(SuccessResult(
		ToolInvocation{ID: "call_1", Name: ToolListEvents}, nil, "No events."))
	assert.Zero(t, session.PendingInvocations())

	history := session.History()
	require.Len(t, history, 3)
	assert.Equal(t, ai.RoleUser, history[0].Role)
	assert.Equal(t, ai.RoleAssistant, history[1].Role)
	assert.Equal(t, ai.RoleTool, history[2].Role)

	// Mutating the returned copy must not affect the session.
	history[0].Content = "mutated"
	assert.Equal(t, "book something", session.History()[0].Content)
}
