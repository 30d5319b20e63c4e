package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// ListAgents lists the agent table.
// GET /v1/agents
func (h *Handler) ListAgents(c echo.Context) error {
	reg := h.dispatcher.Registry()
	agents := reg.List()

	agentList := make([]map[string]interface{}, len(agents))
	for i, a := range agents {
		agentList[i] = map[string]interface{}{
			"agent_id":     a.ID,
			"name":         a.Name,
			"tools":        a.Tools,
			"transfers":    a.Transfers,
			"handoff_tool": a.Handoff.Tool,
		}
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"default": reg.Default().ID,
		"agents":  agentList,
	})
}
