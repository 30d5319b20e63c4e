package v1

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/Nasti98RS/swarm-db-api/internal/dispatch"
	"github.com/Nasti98RS/swarm-db-api/internal/domain"
)

// Chat runs one turn for the user named in context.user_id.
// POST /chat
func (h *Handler) Chat(c echo.Context) error {
	var req domain.ChatRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if strings.TrimSpace(req.Message) == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "message is required"})
	}
	userID := req.UserID()
	if userID == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "context.user_id is required"})
	}

	results, err := h.dispatcher.Dispatch(c.Request().Context(), dispatch.Turn{
		UserID:  userID,
		Message: req.Message,
		Context: req.Context,
		Stream:  req.Stream,
	})
	if err != nil {
		return h.fail(c, err)
	}
	if results == nil {
		results = []domain.TurnResult{}
	}
	return c.JSON(http.StatusOK, results)
}

// ResetAgent clears the user's history and assigns the default agent.
// POST /reset-agent/:user_id
func (h *Handler) ResetAgent(c echo.Context) error {
	userID := c.Param("user_id")
	if userID == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "user_id is required"})
	}

	a, err := h.dispatcher.Reset(c.Request().Context(), userID)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{
		"message":    "Agent reset to triage agent",
		"agent_name": a.Name,
	})
}
