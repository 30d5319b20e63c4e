package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/Nasti98RS/swarm-db-api/internal/domain"
)

// RecordEvent stores a turn trace event.
func (s *SQLiteStore) RecordEvent(ctx context.Context, event *domain.Event) error {
	payload := ""
	if event.Payload != nil {
		payload = string(event.Payload)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO events (event_id, user_id, ts, type, payload) VALUES (?, ?, ?, ?, ?)`,
		event.EventID, event.UserID, event.Ts, event.Type, payload)
	return err
}

// GetEvents retrieves a user's events, oldest first.
func (s *SQLiteStore) GetEvents(ctx context.Context, userID string, limit int) ([]domain.Event, error) {
	query := `SELECT event_id, user_id, ts, type, payload FROM events WHERE user_id = ? ORDER BY ts ASC, rowid ASC`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []domain.Event
	for rows.Next() {
		var event domain.Event
		var payload sql.NullString
		if err := rows.Scan(&event.EventID, &event.UserID, &event.Ts, &event.Type, &payload); err != nil {
			return nil, err
		}
		if payload.Valid && payload.String != "" {
			event.Payload = json.RawMessage(payload.String)
		}
		events = append(events, event)
	}
	return events, rows.Err()
}
