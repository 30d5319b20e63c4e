package dispatch

import "github.com/Nasti98RS/swarm-db-api/internal/domain"

// Format turns a message into a reply, or nil when it has no text.
func Format(msg domain.Message, agentSwitch string) *domain.TurnResult {
	if !msg.HasContent() {
		return nil
	}
	sender := msg.Sender
	if sender == "" {
		sender = string(msg.Role)
	}
	if sender == "" {
		sender = string(domain.RoleAssistant)
	}
	return &domain.TurnResult{
		Sender:      sender,
		Content:     msg.Content,
		AgentSwitch: agentSwitch,
	}
}
