package apiv1

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/calchat/internal/profile"
	"github.com/hrygo/calchat/plugin/ai"
	"github.com/hrygo/calchat/plugin/ai/agent"
	"github.com/hrygo/calchat/plugin/ai/metrics"
	"github.com/hrygo/calchat/server/service/booking"
)

// scriptedLLM returns canned responses in order.
type scriptedLLM struct {
	responses []*ai.ChatResponse
	calls     int
}

func (s *scriptedLLM) Chat(context.Context, []ai.Message) (string, error) {
	return "", nil
}

func (s *scriptedLLM) ChatWithTools(context.Context, []ai.Message, []ai.ToolDescriptor) (*ai.ChatResponse, error) {
	resp := s.responses[s.calls%len(s.responses)]
	s.calls++
	return resp, nil
}

// noopBookingService satisfies booking.Service for handler tests.
type noopBookingService struct{}

func (noopBookingService) CreateBooking(context.Context, *booking.CreateRequest) (*booking.Record, error) {
	return &booking.Record{ID: 1}, nil
}

func (noopBookingService) ListBookings(context.Context, string) ([]*booking.Record, error) {
	return nil, nil
}

func (noopBookingService) CancelBooking(context.Context, int64) error {
	return nil
}

func newTestService(t *testing.T, llm ai.LLMService) *APIV1Service {
	t.Helper()
	schema := agent.NewSchema()
	executor := agent.NewExecutor(noopBookingService{}, schema, agent.WithRetryDelay(time.Millisecond))
	orchestrator, err := agent.NewOrchestrator(llm, executor, schema, agent.Config{MaxToolSteps: 5}, nil)
	require.NoError(t, err)

	return NewAPIV1Service(orchestrator, metrics.NewInMemory(), &profile.Profile{
		UserEmail: "user@example.com",
		Timezone:  "UTC",
	})
}

func doChat(t *testing.T, s *APIV1Service, body string) (*httptest.ResponseRecorder, ChatResponse) {
	t.Helper()
	e := echo.New()
	s.RegisterRoutes(e)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	var resp ChatResponse
	if rec.Code == http.StatusOK {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	}
	return rec, resp
}

func TestChatReturnsReplyAndSession(t *testing.T) {
	llm := &scriptedLLM{responses: []*ai.ChatResponse{{Content: "You have no events."}}}
	s := newTestService(t, llm)

	rec, resp := doChat(t, s, `{"message": "what's on my calendar?"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "You have no events.", resp.Reply)
	assert.NotEmpty(t, resp.SessionID)

	// The same session id continues the conversation.
	rec2, resp2 := doChat(t, s, `{"session_id": "`+resp.SessionID+`", "message": "thanks"}`)
	assert.Equal(t, http.StatusOK, rec2.Code)
	assert.Equal(t, resp.SessionID, resp2.SessionID)
}

func TestChatUnknownSessionNotFound(t *testing.T) {
	s := newTestService(t, &scriptedLLM{responses: []*ai.ChatResponse{{Content: "x"}}})

	rec, _ := doChat(t, s, `{"session_id": "no-such-session", "message": "hello?"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestChatEvictsIdleSessions(t *testing.T) {
	s := newTestService(t, &scriptedLLM{responses: []*ai.ChatResponse{{Content: "ok"}}})
	s.sessionTTL = 10 * time.Millisecond

	_, resp := doChat(t, s, `{"message": "hi"}`)
	require.NotEmpty(t, resp.SessionID)

	time.Sleep(20 * time.Millisecond)
	rec, _ := doChat(t, s, `{"session_id": "`+resp.SessionID+`", "message": "still there?"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestChatRequiresMessage(t *testing.T) {
	s := newTestService(t, &scriptedLLM{responses: []*ai.ChatResponse{{Content: "x"}}})

	rec, _ := doChat(t, s, `{"message": ""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMetricsOverviewEndpoint(t *testing.T) {
	s := newTestService(t, &scriptedLLM{responses: []*ai.ChatResponse{{Content: "ok"}}})
	e := echo.New()
	s.RegisterRoutes(e)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/metrics/overview", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var overview metrics.Overview
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &overview))
}
