// Package domain defines the core domain models for the swarm.
package domain

// Role is the author role of a conversation message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
	RoleSystem    Role = "system"
)

// EventType represents the type of a turn trace event.
type EventType string

const (
	EventTypeTurnStarted EventType = "turn_started"
	EventTypeHandoff     EventType = "handoff"
	EventTypeTurnDone    EventType = "turn_done"
	EventTypeTurnFailed  EventType = "turn_failed"
)
