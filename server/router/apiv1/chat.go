// Package apiv1 exposes the chat assistant over HTTP.
package apiv1

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/hrygo/calchat/internal/profile"
	"github.com/hrygo/calchat/plugin/ai/agent"
	"github.com/hrygo/calchat/plugin/ai/metrics"
)

// defaultSessionTTL bounds the in-memory session registry: sessions idle
// longer than this are evicted and their id becomes unknown.
const defaultSessionTTL = time.Hour

var errSessionNotFound = errors.New("session not found")

// APIV1Service handles the v1 HTTP API.
type APIV1Service struct {
	orchestrator *agent.Orchestrator
	metrics      metrics.Service
	profile      *profile.Profile
	sessionTTL   time.Duration

	mu       sync.Mutex
	sessions map[string]*agent.Session
}

// NewAPIV1Service creates the v1 API service.
func NewAPIV1Service(orchestrator *agent.Orchestrator, ms metrics.Service, p *profile.Profile) *APIV1Service {
	return &APIV1Service{
		orchestrator: orchestrator,
		metrics:      ms,
		profile:      p,
		sessionTTL:   defaultSessionTTL,
		sessions:     make(map[string]*agent.Session),
	}
}

// RegisterRoutes registers the v1 routes on the echo instance.
func (s *APIV1Service) RegisterRoutes(e *echo.Echo) {
	e.POST("/api/v1/chat", s.Chat)
	e.GET("/api/v1/metrics/overview", s.GetMetricsOverview)
}

// ChatRequest is one user utterance. An empty session_id starts a new
// conversation with the profile's default identity and timezone.
type ChatRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

// ChatResponse carries the assistant's final reply for the turn.
type ChatResponse struct {
	SessionID string `json:"session_id"`
	Reply     string `json:"reply"`
}

// Chat resolves one user message to a reply.
// POST /api/v1/chat
func (s *APIV1Service) Chat(c echo.Context) error {
	var req ChatRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if req.Message == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "message is required"})
	}

	session, err := s.getOrCreateSession(req.SessionID)
	if errors.Is(err, errSessionNotFound) {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "session not found"})
	}
	if err != nil {
		slog.Warn("failed to create session", "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to create session"})
	}

	reply, err := s.orchestrator.HandleUserMessage(c.Request().Context(), session, req.Message)
	if err != nil {
		// The turn failed, but the orchestrator still produced an apology
		// and the session is intact for retry.
		slog.Warn("conversation turn failed",
			"session", session.ID,
			"error", err)
	}

	return c.JSON(http.StatusOK, ChatResponse{
		SessionID: session.ID,
		Reply:     reply,
	})
}

// GetMetricsOverview returns aggregated agent metrics.
// GET /api/v1/metrics/overview
func (s *APIV1Service) GetMetricsOverview(c echo.Context) error {
	return c.JSON(http.StatusOK, s.metrics.Overview(c.Request().Context()))
}

// getOrCreateSession resolves a session id to its session, evicting idle
// sessions first. An empty id starts a new conversation; an unknown id is an
// error so clients notice a lost conversation instead of silently getting a
// fresh one.
func (s *APIV1Service) getOrCreateSession(id string) (*agent.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for sid, session := range s.sessions {
		if now.Sub(session.UpdatedAt()) > s.sessionTTL {
			delete(s.sessions, sid)
		}
	}

	if id != "" {
		session, ok := s.sessions[id]
		if !ok {
			return nil, errors.Wrapf(errSessionNotFound, "id %s", id)
		}
		return session, nil
	}

	session, err := agent.NewSession(s.profile.UserEmail, s.profile.Timezone)
	if err != nil {
		return nil, err
	}
	s.sessions[session.ID] = session
	return session, nil
}
