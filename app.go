package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/Nasti98RS/swarm-db-api/internal/adapter/llm"
	"github.com/Nasti98RS/swarm-db-api/internal/agent"
	"github.com/Nasti98RS/swarm-db-api/internal/config"
	"github.com/Nasti98RS/swarm-db-api/internal/dispatch"
	"github.com/Nasti98RS/swarm-db-api/internal/logging"
	"github.com/Nasti98RS/swarm-db-api/internal/policy"
	store "github.com/Nasti98RS/swarm-db-api/internal/repository"
	"github.com/Nasti98RS/swarm-db-api/internal/session"
	"github.com/Nasti98RS/swarm-db-api/internal/swarm"
	"github.com/Nasti98RS/swarm-db-api/internal/tools"
)

// app holds the wired components shared by the subcommands.
type app struct {
	cfg        *config.Config
	logger     *zap.Logger
	db         *store.SQLiteStore
	registry   *agent.Registry
	tools      *tools.Registry
	policy     *policy.Engine
	dispatcher *dispatch.Dispatcher
	// events is nil for the memory backend.
	events *store.SQLiteStore
}

func newApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*app, error) {
	db, err := store.NewSQLiteStore(cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize store: %w", err)
	}

	registry, err := agent.Load(cfg.AgentsFile)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to load agents: %w", err)
	}

	engine, err := policy.Load(ctx, cfg.PolicyFile)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize policy engine: %w", err)
	}

	toolRegistry := tools.NewRecordRegistry(db)
	client := llm.NewLLMClient(cfg.LLM.Mode, cfg.LLM.BaseURL, cfg.LLM.APIKey, cfg.LLMTimeout(), logger)
	runner := swarm.NewRunner(client, registry, toolRegistry, swarm.Options{
		MaxTurns:     cfg.LLM.MaxTurns,
		DefaultModel: cfg.LLM.Model,
		Policy:       engine,
		Logger:       logger,
	})

	a := &app{
		cfg:      cfg,
		logger:   logger,
		db:       db,
		registry: registry,
		tools:    toolRegistry,
		policy:   engine,
	}

	var sessions session.Store
	var recorder dispatch.EventRecorder
	switch cfg.SessionBackend {
	case config.BackendSQLite:
		sessions = db.Sessions(registry.Default().ID)
		recorder = db
		a.events = db
	default:
		sessions = session.NewMemoryStore(registry.Default().ID)
		recorder = logging.NewEventLogger(logger)
	}

	a.dispatcher = dispatch.New(registry, sessions, runner, dispatch.Options{
		Timeout: cfg.AgentTimeout(),
		Events:  recorder,
		Logger:  logger,
	})

	logger.Info("components initialized",
		zap.String("database_driver", cfg.DatabaseDriver),
		zap.String("session_backend", cfg.SessionBackend),
		zap.Int("agents", len(registry.List())),
		zap.Bool("mock_llm", cfg.LLM.Mode == config.ModeMock),
	)
	return a, nil
}

func (a *app) Close() error {
	return a.db.Close()
}
