package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Nasti98RS/swarm-db-api/internal/domain"
)

// MemoryStore is a process-local Store.
type MemoryStore struct {
	mu           sync.RWMutex
	sessions     map[string]*Session
	defaultAgent string
}

// NewMemoryStore creates an empty store whose new sessions start on defaultAgent.
func NewMemoryStore(defaultAgent string) *MemoryStore {
	return &MemoryStore{
		sessions:     make(map[string]*Session),
		defaultAgent: defaultAgent,
	}
}

var _ Store = (*MemoryStore)(nil)

func (m *MemoryStore) GetOrCreate(ctx context.Context, userID string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[userID]
	if ok {
		cp := s.clone()
		m.mu.RUnlock()
		return cp, nil
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()
	// Another goroutine may have created it between the two locks.
	if s, ok := m.sessions[userID]; ok {
		return s.clone(), nil
	}
	now := time.Now()
	s = &Session{
		UserID:    userID,
		AgentID:   m.defaultAgent,
		CreatedAt: now,
		UpdatedAt: now,
	}
	m.sessions[userID] = s
	return s.clone(), nil
}

func (m *MemoryStore) Get(ctx context.Context, userID string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[userID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrSessionNotFound, userID)
	}
	return s.clone(), nil
}

func (m *MemoryStore) Append(ctx context.Context, userID string, msg domain.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[userID]
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrSessionNotFound, userID)
	}
	s.History = append(s.History, msg)
	s.UpdatedAt = time.Now()
	return nil
}

func (m *MemoryStore) SetCurrentAgent(ctx context.Context, userID, agentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[userID]
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrSessionNotFound, userID)
	}
	s.AgentID = agentID
	s.UpdatedAt = time.Now()
	return nil
}

func (m *MemoryStore) Reset(ctx context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, userID)
	return nil
}
