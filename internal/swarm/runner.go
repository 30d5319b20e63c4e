// Package swarm runs an agent against the model, executing its record tools
// until it answers or requests a transition.
package swarm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/Nasti98RS/swarm-db-api/internal/adapter/llm"
	"github.com/Nasti98RS/swarm-db-api/internal/agent"
	"github.com/Nasti98RS/swarm-db-api/internal/dispatch"
	"github.com/Nasti98RS/swarm-db-api/internal/domain"
	"github.com/Nasti98RS/swarm-db-api/internal/policy"
	"github.com/Nasti98RS/swarm-db-api/internal/tools"
)

const defaultMaxTurns = 10

var (
	// ErrNoChoices is returned when the model answers without a message.
	ErrNoChoices = errors.New("model returned no choices")
	// ErrToolCallIndex is returned when a streamed tool call fragment points
	// outside the calls seen so far.
	ErrToolCallIndex = errors.New("invalid tool call index")
)

// Options configures a Runner.
type Options struct {
	// MaxTurns caps model calls per run.
	MaxTurns int
	// DefaultModel is used for agents that do not name one.
	DefaultModel string
	// Policy gates record tools. Nil allows everything.
	Policy *policy.Engine
	Logger *zap.Logger
}

// Runner implements dispatch.Invoker.
type Runner struct {
	client   llm.LLMClient
	registry *agent.Registry
	tools    *tools.Registry
	policy   *policy.Engine
	maxTurns int
	model    string
	logger   *zap.Logger
}

var _ dispatch.Invoker = (*Runner)(nil)

// NewRunner creates a Runner.
func NewRunner(client llm.LLMClient, registry *agent.Registry, toolRegistry *tools.Registry, opts Options) *Runner {
	if opts.MaxTurns <= 0 {
		opts.MaxTurns = defaultMaxTurns
	}
	if opts.DefaultModel == "" {
		opts.DefaultModel = "gpt-4o"
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Runner{
		client:   client,
		registry: registry,
		tools:    toolRegistry,
		policy:   opts.Policy,
		maxTurns: opts.MaxTurns,
		model:    opts.DefaultModel,
		logger:   opts.Logger.With(zap.String("component", "swarm")),
	}
}

// Run calls the model until the agent replies without tool calls, requests a
// transition, or MaxTurns is reached. Only new messages are returned.
func (r *Runner) Run(ctx context.Context, a *agent.Identity, history []domain.Message, vars map[string]any) (*dispatch.Response, error) {
	conv := append([]domain.Message(nil), history...)
	var produced []domain.Message

	for turn := 0; turn < r.maxTurns; turn++ {
		resp, err := r.client.CreateChatCompletion(ctx, r.request(a, conv))
		if err != nil {
			return nil, fmt.Errorf("failed to call model: %w", err)
		}
		if len(resp.Choices) == 0 || resp.Choices[0].Message == nil {
			return nil, ErrNoChoices
		}

		msg := fromChat(*resp.Choices[0].Message, a.Name)
		produced = append(produced, msg)
		conv = append(conv, msg)
		if len(msg.ToolCalls) == 0 {
			break
		}

		results, transferred := r.handleToolCalls(ctx, a, msg.ToolCalls, vars)
		produced = append(produced, results...)
		conv = append(conv, results...)
		if transferred {
			break
		}
	}
	return &dispatch.Response{Messages: produced}, nil
}

// Stream is Run with incremental text. Assistant messages are emitted once
// complete; tool results stay internal to the run.
func (r *Runner) Stream(ctx context.Context, a *agent.Identity, history []domain.Message, vars map[string]any) (<-chan dispatch.Chunk, error) {
	out := make(chan dispatch.Chunk)
	go func() {
		defer close(out)
		send := func(c dispatch.Chunk) bool {
			select {
			case out <- c:
				return true
			case <-ctx.Done():
				return false
			}
		}

		conv := append([]domain.Message(nil), history...)
		for turn := 0; turn < r.maxTurns; turn++ {
			var acc llm.ChatMessage
			_, err := r.client.CreateChatCompletionStream(ctx, r.request(a, conv), func(chunk *llm.StreamChunk) error {
				if len(chunk.Choices) == 0 || chunk.Choices[0].Delta == nil {
					return nil
				}
				delta := chunk.Choices[0].Delta
				if delta.Role != "" {
					acc.Role = delta.Role
				}
				calls, err := mergeToolCalls(acc.ToolCalls, delta.ToolCalls)
				if err != nil {
					return err
				}
				acc.ToolCalls = calls
				if delta.Content != "" {
					acc.Content += delta.Content
					if !send(dispatch.Chunk{Delta: delta.Content}) {
						return ctx.Err()
					}
				}
				return nil
			})
			if err != nil {
				if ctx.Err() == nil {
					send(dispatch.Chunk{Err: fmt.Errorf("failed to call model: %w", err)})
				} else {
					send(dispatch.Chunk{Err: ctx.Err()})
				}
				return
			}

			msg := fromChat(acc, a.Name)
			if !send(dispatch.Chunk{Message: &msg}) {
				return
			}
			conv = append(conv, msg)
			if len(msg.ToolCalls) == 0 {
				return
			}
			results, transferred := r.handleToolCalls(ctx, a, msg.ToolCalls, vars)
			conv = append(conv, results...)
			if transferred {
				return
			}
		}
	}()
	return out, nil
}

// handleToolCalls answers every call in order. A transition call produces its
// transfer message and ends the run after this batch.
func (r *Runner) handleToolCalls(ctx context.Context, a *agent.Identity, calls []domain.ToolCall, vars map[string]any) ([]domain.Message, bool) {
	results := make([]domain.Message, 0, len(calls))
	transferred := false
	for _, call := range calls {
		content := r.execute(ctx, a, call, vars, &transferred)
		results = append(results, domain.Message{
			Role:       domain.RoleTool,
			Content:    content,
			ToolCallID: call.ID,
			ToolName:   call.Name,
		})
	}
	return results, transferred
}

func (r *Runner) execute(ctx context.Context, a *agent.Identity, call domain.ToolCall, vars map[string]any, transferred *bool) string {
	if targetID, ok := r.registry.Transition(call.Name); ok {
		*transferred = true
		target, err := r.registry.Resolve(targetID)
		if err != nil {
			return "Error: " + err.Error()
		}
		if target.Handoff.Message != "" {
			return target.Handoff.Message
		}
		return fmt.Sprintf("Transferred to %s.", target.Name)
	}

	if !a.HasTool(call.Name) {
		r.logger.Warn("agent called undeclared tool", zap.String("agent_id", a.ID), zap.String("tool", call.Name))
		return fmt.Sprintf("Error: Tool %s not found.", call.Name)
	}

	args := map[string]any{}
	if len(call.Arguments) > 0 {
		if err := json.Unmarshal(call.Arguments, &args); err != nil {
			r.logger.Warn("invalid tool arguments", zap.String("tool", call.Name), zap.Error(err))
			return "Error: invalid arguments: " + err.Error()
		}
	}

	if r.policy != nil {
		decision, reason, err := r.policy.Evaluate(ctx, policy.Input{
			ToolName: call.Name,
			AgentID:  a.ID,
			Args:     args,
			Context:  vars,
		})
		if err != nil {
			r.logger.Error("policy evaluation failed", zap.String("tool", call.Name), zap.Error(err))
			return "Error: policy evaluation failed"
		}
		if decision == policy.DecisionBlock {
			r.logger.Info("tool call blocked", zap.String("agent_id", a.ID), zap.String("tool", call.Name), zap.String("reason", reason))
			return "Error: blocked by policy: " + reason
		}
	}

	out, err := r.tools.Execute(ctx, call.Name, tools.Call{Args: call.Arguments, Vars: vars})
	if err != nil {
		r.logger.Warn("tool failed", zap.String("tool", call.Name), zap.Error(err))
		return "Error: " + err.Error()
	}
	return out
}
