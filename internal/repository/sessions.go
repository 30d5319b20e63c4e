package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Nasti98RS/swarm-db-api/internal/domain"
	"github.com/Nasti98RS/swarm-db-api/internal/session"
)

// SessionStore persists sessions in SQLite.
type SessionStore struct {
	db           *sql.DB
	defaultAgent string
}

// Sessions returns a session.Store backed by this database.
func (s *SQLiteStore) Sessions(defaultAgent string) *SessionStore {
	return &SessionStore{db: s.db, defaultAgent: defaultAgent}
}

var _ session.Store = (*SessionStore)(nil)

func (s *SessionStore) GetOrCreate(ctx context.Context, userID string) (*session.Session, error) {
	now := millis(time.Now())
	if _, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO sessions (user_id, agent_id, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		userID, s.defaultAgent, now, now); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return s.Get(ctx, userID)
}

func (s *SessionStore) Get(ctx context.Context, userID string) (*session.Session, error) {
	var sess session.Session
	var createdAt, updatedAt int64
	err := s.db.QueryRowContext(ctx,
		`SELECT user_id, agent_id, created_at, updated_at FROM sessions WHERE user_id = ?`,
		userID).Scan(&sess.UserID, &sess.AgentID, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", domain.ErrSessionNotFound, userID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	sess.CreatedAt = fromMillis(createdAt)
	sess.UpdatedAt = fromMillis(updatedAt)

	history, err := s.messages(ctx, userID)
	if err != nil {
		return nil, err
	}
	sess.History = history
	return &sess, nil
}

func (s *SessionStore) messages(ctx context.Context, userID string) ([]domain.Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT role, content, tool_calls, tool_call_id, tool_name, sender FROM messages WHERE user_id = ? ORDER BY seq ASC`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load messages: %w", err)
	}
	defer rows.Close()

	var messages []domain.Message
	for rows.Next() {
		var msg domain.Message
		var toolCalls, toolCallID, toolName, sender sql.NullString
		if err := rows.Scan(&msg.Role, &msg.Content, &toolCalls, &toolCallID, &toolName, &sender); err != nil {
			return nil, err
		}
		if toolCalls.Valid {
			if err := json.Unmarshal([]byte(toolCalls.String), &msg.ToolCalls); err != nil {
				return nil, fmt.Errorf("failed to decode tool calls: %w", err)
			}
		}
		msg.ToolCallID = toolCallID.String
		msg.ToolName = toolName.String
		msg.Sender = sender.String
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

func (s *SessionStore) Append(ctx context.Context, userID string, msg domain.Message) error {
	var toolCalls sql.NullString
	if len(msg.ToolCalls) > 0 {
		raw, err := json.Marshal(msg.ToolCalls)
		if err != nil {
			return fmt.Errorf("failed to encode tool calls: %w", err)
		}
		toolCalls = nullString(string(raw))
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := millis(time.Now())
	res, err := tx.ExecContext(ctx, `UPDATE sessions SET updated_at = ? WHERE user_id = ?`, now, userID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", domain.ErrSessionNotFound, userID)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO messages (message_id, user_id, seq, role, content, tool_calls, tool_call_id, tool_name, sender, created_at)
		 SELECT ?, ?, COALESCE(MAX(seq), 0) + 1, ?, ?, ?, ?, ?, ?, ? FROM messages WHERE user_id = ?`,
		"msg_"+uuid.New().String()[:8], userID, msg.Role, msg.Content, toolCalls,
		nullString(msg.ToolCallID), nullString(msg.ToolName), nullString(msg.Sender), now, userID)
	if err != nil {
		return fmt.Errorf("failed to insert message: %w", err)
	}
	return tx.Commit()
}

func (s *SessionStore) SetCurrentAgent(ctx context.Context, userID, agentID string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET agent_id = ?, updated_at = ? WHERE user_id = ?`,
		agentID, millis(time.Now()), userID)
	if err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", domain.ErrSessionNotFound, userID)
	}
	return nil
}

func (s *SessionStore) Reset(ctx context.Context, userID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("failed to clear messages: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return tx.Commit()
}
