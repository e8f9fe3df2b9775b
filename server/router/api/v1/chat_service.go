package v1

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/lithammer/shortuuid/v4"

	"github.com/hrygo/shopsense/ai/rag"
)

// ChatRequest is the POST /api/v1/chat payload. SessionID is minted when
// absent so a first message needs no prior setup call.
type ChatRequest struct {
	SessionID string `json:"sessionId"`
	Message   string `json:"message"`
}

// ChatResponse wraps the turn result with the session id the client should
// keep using.
type ChatResponse struct {
	SessionID string          `json:"sessionId"`
	Turn      *rag.TurnResult `json:"turn"`
}

// Chat runs one conversational turn.
func (s *APIV1Service) Chat(c echo.Context) error {
	var req ChatRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body").SetInternal(err)
	}
	req.Message = strings.TrimSpace(req.Message)
	if req.Message == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "message is required")
	}
	if req.SessionID == "" {
		req.SessionID = shortuuid.New()
	}

	turn, err := s.RAG.Chat(c.Request().Context(), req.SessionID, req.Message)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to process turn").SetInternal(err)
	}
	return c.JSON(http.StatusOK, ChatResponse{SessionID: req.SessionID, Turn: turn})
}

// GetHistory returns a session's stored conversation.
func (s *APIV1Service) GetHistory(c echo.Context) error {
	sessionID := c.Param("sessionId")
	if sessionID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "sessionId is required")
	}
	history, err := s.RAG.History(c.Request().Context(), sessionID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to load history").SetInternal(err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"sessionId": sessionID,
		"messages":  history,
	})
}

// DeleteSession clears a session's conversation state.
func (s *APIV1Service) DeleteSession(c echo.Context) error {
	sessionID := c.Param("sessionId")
	if sessionID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "sessionId is required")
	}
	if err := s.RAG.ClearSession(c.Request().Context(), sessionID); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to clear session").SetInternal(err)
	}
	return c.NoContent(http.StatusNoContent)
}
