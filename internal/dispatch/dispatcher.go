package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Nasti98RS/swarm-db-api/internal/agent"
	"github.com/Nasti98RS/swarm-db-api/internal/domain"
	"github.com/Nasti98RS/swarm-db-api/internal/session"
)

// ErrMissingUserID is returned for turns without a user identifier.
var ErrMissingUserID = errors.New("user_id is required")

// State is a step of the per-turn state machine.
type State string

const (
	StateAwaitingAgentResponse State = "AWAITING_AGENT_RESPONSE"
	StateCheckingHandoff       State = "CHECKING_HANDOFF"
	StateHandoffRequested      State = "HANDOFF_REQUESTED"
	StateReinvoking            State = "REINVOKING"
	StateDone                  State = "DONE"
)

// EventRecorder receives turn trace events.
type EventRecorder interface {
	RecordEvent(ctx context.Context, event *domain.Event) error
}

// Turn is one inbound user message.
type Turn struct {
	UserID  string
	Message string
	// Context is handed to the agent untouched.
	Context map[string]any
	Stream  bool
	// OnDelta receives streamed text as it arrives. Only used when Stream is set.
	OnDelta func(delta string)
}

// Options configures a Dispatcher.
type Options struct {
	// Timeout bounds each agent invocation. Zero means no bound.
	Timeout time.Duration
	Events  EventRecorder
	Logger  *zap.Logger
}

// Dispatcher drives turns for every user.
type Dispatcher struct {
	registry *agent.Registry
	store    session.Store
	locks    *session.Locker
	invoker  Invoker
	resolver *Resolver
	events   EventRecorder
	logger   *zap.Logger
	timeout  time.Duration
}

// New creates a Dispatcher.
func New(registry *agent.Registry, store session.Store, invoker Invoker, opts Options) *Dispatcher {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		registry: registry,
		store:    store,
		locks:    session.NewLocker(),
		invoker:  invoker,
		resolver: NewResolver(registry),
		events:   opts.Events,
		logger:   logger.With(zap.String("component", "dispatcher")),
		timeout:  opts.Timeout,
	}
}

// Registry returns the agent table the dispatcher routes over.
func (d *Dispatcher) Registry() *agent.Registry {
	return d.registry
}

// Dispatch runs one turn and returns the replies produced for it. Only the
// last reply is written back to the user's history.
func (d *Dispatcher) Dispatch(ctx context.Context, t Turn) ([]domain.TurnResult, error) {
	if t.UserID == "" {
		return nil, ErrMissingUserID
	}

	unlock, err := d.locks.Lock(ctx, t.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire session %s: %w", t.UserID, err)
	}
	defer unlock()

	sess, err := d.store.GetOrCreate(ctx, t.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	current, err := d.registry.Resolve(sess.AgentID)
	if err != nil {
		return nil, err
	}

	userMsg := domain.Message{Role: domain.RoleUser, Content: t.Message}
	if err := d.store.Append(ctx, t.UserID, userMsg); err != nil {
		return nil, fmt.Errorf("failed to record user message: %w", err)
	}
	history := append(sess.History, userMsg)

	d.recordEvent(ctx, t.UserID, domain.EventTypeTurnStarted, map[string]any{
		"agent_id": current.ID,
		"stream":   t.Stream,
	})

	var results []domain.TurnResult
	if t.Stream {
		results, err = d.runStream(ctx, t, current, history)
	} else {
		results, err = d.runOnce(ctx, t, current, history)
	}
	if err != nil {
		d.logger.Warn("turn failed", zap.String("user_id", t.UserID), zap.String("agent_id", current.ID), zap.Error(err))
		d.recordEvent(ctx, t.UserID, domain.EventTypeTurnFailed, map[string]string{"error": err.Error()})
		return nil, err
	}

	if len(results) > 0 {
		last := results[len(results)-1]
		reply := domain.Message{Role: domain.RoleAssistant, Content: last.Content, Sender: last.Sender}
		if err := d.store.Append(ctx, t.UserID, reply); err != nil {
			return nil, fmt.Errorf("failed to record reply: %w", err)
		}
	}

	d.setState(t.UserID, StateDone)
	d.recordEvent(ctx, t.UserID, domain.EventTypeTurnDone, map[string]any{"results": len(results)})
	return results, nil
}

func (d *Dispatcher) runOnce(ctx context.Context, t Turn, current *agent.Identity, history []domain.Message) ([]domain.TurnResult, error) {
	d.setState(t.UserID, StateAwaitingAgentResponse)
	resp, err := d.invoke(ctx, current, history, t.Context)
	if err != nil {
		return nil, err
	}

	d.setState(t.UserID, StateCheckingHandoff)
	var results []domain.TurnResult
	for _, msg := range resp.Messages {
		if sig := d.resolver.Detect(msg); sig != nil {
			return d.handoff(ctx, t, current, sig, history)
		}
		if r := Format(msg, ""); r != nil {
			results = append(results, *r)
		}
	}
	return results, nil
}

// runStream stops at the first complete message that carries either text or
// a transition. The producer is cancelled on return.
func (d *Dispatcher) runStream(ctx context.Context, t Turn, current *agent.Identity, history []domain.Message) ([]domain.TurnResult, error) {
	d.setState(t.UserID, StateAwaitingAgentResponse)
	sctx, cancel := d.withTimeout(ctx)
	defer cancel()

	chunks, err := d.invoker.Stream(sctx, current, history, t.Context)
	if err != nil {
		return nil, invocationError(sctx, current, err)
	}

	for {
		select {
		case c, ok := <-chunks:
			if !ok {
				return nil, nil
			}
			if c.Err != nil {
				return nil, invocationError(sctx, current, c.Err)
			}
			if c.Delta != "" && t.OnDelta != nil {
				t.OnDelta(c.Delta)
			}
			if c.Message == nil {
				continue
			}
			d.setState(t.UserID, StateCheckingHandoff)
			if sig := d.resolver.Detect(*c.Message); sig != nil {
				cancel()
				return d.handoff(ctx, t, current, sig, history)
			}
			if r := Format(*c.Message, ""); r != nil {
				return []domain.TurnResult{*r}, nil
			}
		case <-sctx.Done():
			return nil, invocationError(sctx, current, sctx.Err())
		}
	}
}

// handoff reassigns the session and lets the new agent answer on the same
// history. Only the new agent's last message is returned.
func (d *Dispatcher) handoff(ctx context.Context, t Turn, current *agent.Identity, sig *HandoffSignal, history []domain.Message) ([]domain.TurnResult, error) {
	d.setState(t.UserID, StateHandoffRequested)
	target, err := d.resolver.Resolve(sig, current)
	if err != nil {
		return nil, err
	}
	if err := d.store.SetCurrentAgent(ctx, t.UserID, target.ID); err != nil {
		return nil, fmt.Errorf("failed to reassign session: %w", err)
	}
	d.logger.Info("handoff",
		zap.String("user_id", t.UserID),
		zap.String("from", current.ID),
		zap.String("to", target.ID),
		zap.String("tool", sig.Tool),
	)
	d.recordEvent(ctx, t.UserID, domain.EventTypeHandoff, map[string]string{
		"from": current.ID,
		"to":   target.ID,
		"tool": sig.Tool,
	})

	d.setState(t.UserID, StateReinvoking)
	resp, err := d.invoke(ctx, target, history, t.Context)
	if err != nil {
		return nil, err
	}
	if len(resp.Messages) == 0 {
		return nil, nil
	}
	if r := Format(resp.Messages[len(resp.Messages)-1], target.Name); r != nil {
		return []domain.TurnResult{*r}, nil
	}
	return nil, nil
}

func (d *Dispatcher) invoke(ctx context.Context, a *agent.Identity, history []domain.Message, vars map[string]any) (*Response, error) {
	ctx, cancel := d.withTimeout(ctx)
	defer cancel()
	resp, err := d.invoker.Run(ctx, a, history, vars)
	if err != nil {
		return nil, invocationError(ctx, a, err)
	}
	if resp == nil {
		resp = &Response{}
	}
	return resp, nil
}

func (d *Dispatcher) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if d.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d.timeout)
}

func invocationError(ctx context.Context, a *agent.Identity, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: agent %s: %w", domain.ErrAgentInvocationTimeout, a.ID, err)
	}
	return fmt.Errorf("%w: agent %s: %w", domain.ErrAgentInvocationFailed, a.ID, err)
}

// Reset clears the user's session and returns the agent it now belongs to.
func (d *Dispatcher) Reset(ctx context.Context, userID string) (*agent.Identity, error) {
	unlock, err := d.locks.Lock(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire session %s: %w", userID, err)
	}
	defer unlock()

	if err := d.store.Reset(ctx, userID); err != nil {
		return nil, fmt.Errorf("failed to reset session: %w", err)
	}
	return d.registry.Default(), nil
}

// Session returns a snapshot of the user's session. A user without one gets
// an empty snapshot on the default agent; nothing is stored.
func (d *Dispatcher) Session(ctx context.Context, userID string) (*session.Session, error) {
	unlock, err := d.locks.Lock(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire session %s: %w", userID, err)
	}
	defer unlock()

	sess, err := d.store.Get(ctx, userID)
	if errors.Is(err, domain.ErrSessionNotFound) {
		return &session.Session{UserID: userID, AgentID: d.registry.Default().ID}, nil
	}
	return sess, err
}

func (d *Dispatcher) setState(userID string, s State) {
	d.logger.Debug("turn state", zap.String("user_id", userID), zap.String("state", string(s)))
}

func (d *Dispatcher) recordEvent(ctx context.Context, userID string, typ domain.EventType, payload any) {
	if d.events == nil {
		return
	}
	event := domain.NewEvent("evt_"+uuid.New().String()[:8], userID, typ, payload)
	if err := d.events.RecordEvent(ctx, &event); err != nil {
		d.logger.Warn("failed to record event", zap.String("type", string(typ)), zap.Error(err))
	}
}
