// Package logging builds the service logger.
package logging

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/Nasti98RS/swarm-db-api/internal/domain"
)

// New builds a production JSON logger at the given level. Verbose forces debug.
func New(level string, verbose bool) (*zap.Logger, error) {
	config := zap.NewProductionConfig()
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("failed to parse log level: %w", err)
	}
	if verbose {
		lvl = zapcore.DebugLevel
	}
	config.Level = zap.NewAtomicLevelAt(lvl)
	logger, err := config.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return logger, nil
}

// EventLogger records turn events as log entries. It backs the in-memory
// session backend, which has no events table.
type EventLogger struct {
	logger *zap.Logger
}

// NewEventLogger wraps logger.
func NewEventLogger(logger *zap.Logger) *EventLogger {
	return &EventLogger{logger: logger.With(zap.String("component", "events"))}
}

// RecordEvent logs the event at info level.
func (l *EventLogger) RecordEvent(_ context.Context, event *domain.Event) error {
	l.logger.Info("turn event",
		zap.String("event_id", event.EventID),
		zap.String("user_id", event.UserID),
		zap.String("type", string(event.Type)),
		zap.Int64("ts", event.Ts),
		zap.ByteString("payload", event.Payload),
	)
	return nil
}
