package v1

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
)

// GetSessionMessages returns the user's current agent and history.
// GET /v1/sessions/:user_id/messages
func (h *Handler) GetSessionMessages(c echo.Context) error {
	userID := c.Param("user_id")
	sess, err := h.dispatcher.Session(c.Request().Context(), userID)
	if err != nil {
		return h.fail(c, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"user_id":  sess.UserID,
		"agent_id": sess.AgentID,
		"messages": sess.History,
	})
}

// GetSessionEvents returns the user's turn events, oldest first.
// GET /v1/sessions/:user_id/events
func (h *Handler) GetSessionEvents(c echo.Context) error {
	if h.events == nil {
		return c.JSON(http.StatusNotImplemented, map[string]string{"error": "events are not persisted by this session backend"})
	}
	limit := 100
	if l := c.QueryParam("limit"); l != "" {
		if val, err := strconv.Atoi(l); err == nil && val > 0 {
			limit = val
		}
	}

	events, err := h.events.GetEvents(c.Request().Context(), c.Param("user_id"), limit)
	if err != nil {
		return h.fail(c, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"events": events,
	})
}
