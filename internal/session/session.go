// Package session keeps per-user conversation history and agent assignment.
package session

import (
	"context"
	"time"

	"github.com/Nasti98RS/swarm-db-api/internal/domain"
)

// Session is a snapshot of one user's conversation state.
type Session struct {
	UserID    string           `json:"user_id"`
	AgentID   string           `json:"agent_id"`
	History   []domain.Message `json:"history"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// Store owns every session. Returned sessions are copies; mutate through the store.
type Store interface {
	// GetOrCreate returns the user's session, creating an empty one assigned
	// to the default agent if none exists.
	GetOrCreate(ctx context.Context, userID string) (*Session, error)
	// Get returns the user's session without creating one, or
	// domain.ErrSessionNotFound.
	Get(ctx context.Context, userID string) (*Session, error)
	// Append adds a message to the end of the user's history.
	Append(ctx context.Context, userID string, msg domain.Message) error
	// SetCurrentAgent reassigns the user's session.
	SetCurrentAgent(ctx context.Context, userID, agentID string) error
	// Reset drops history and restores the default agent. Resetting a
	// missing session is not an error.
	Reset(ctx context.Context, userID string) error
}

func (s *Session) clone() *Session {
	cp := *s
	cp.History = append([]domain.Message(nil), s.History...)
	return &cp
}
