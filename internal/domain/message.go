package domain

import (
	"encoding/json"
	"time"
)

// Message is one entry of a user's conversation history.
type Message struct {
	Role       Role       `json:"role"`
	Content    string     `json:"content,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	ToolName   string     `json:"tool_name,omitempty"`
	// Sender is the display name of the agent that produced the message.
	Sender string `json:"sender,omitempty"`
}

// ToolCall is a function invocation requested by the model.
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// HasContent reports whether the message carries user-facing text.
func (m Message) HasContent() bool {
	return m.Content != ""
}

// TurnResult is one externally visible reply unit of a turn.
type TurnResult struct {
	Sender      string `json:"sender"`
	Content     string `json:"content"`
	AgentSwitch string `json:"agent_switch,omitempty"`
}

// ChatRequest is an inbound chat turn.
type ChatRequest struct {
	Message string         `json:"message"`
	Context map[string]any `json:"context"`
	Stream  bool           `json:"stream"`
}

// UserID extracts the user identifier from the context bag.
func (r *ChatRequest) UserID() string {
	if r.Context == nil {
		return ""
	}
	switch v := r.Context["user_id"].(type) {
	case string:
		return v
	case float64:
		return formatFloat(v)
	case json.Number:
		return v.String()
	}
	return ""
}

// Event represents a trace event for a turn.
type Event struct {
	EventID string          `json:"event_id"`
	UserID  string          `json:"user_id"`
	Ts      int64           `json:"ts"` // Unix milliseconds
	Type    EventType       `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewEvent builds an event stamped with the current time.
func NewEvent(id, userID string, typ EventType, payload any) Event {
	raw, _ := json.Marshal(payload)
	return Event{
		EventID: id,
		UserID:  userID,
		Ts:      time.Now().UnixMilli(),
		Type:    typ,
		Payload: raw,
	}
}
