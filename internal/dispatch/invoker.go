// Package dispatch runs conversational turns and routes handoffs between agents.
package dispatch

import (
	"context"

	"github.com/Nasti98RS/swarm-db-api/internal/agent"
	"github.com/Nasti98RS/swarm-db-api/internal/domain"
)

// Response is the ordered list of messages produced by one agent run.
type Response struct {
	Messages []domain.Message
}

// Chunk is one element of a streamed run. Delta carries incremental text;
// Message is set once a message is complete; Err ends the stream.
type Chunk struct {
	Delta   string
	Message *domain.Message
	Err     error
}

// Invoker runs an agent over a conversation.
type Invoker interface {
	// Run returns every message the agent produced, in order.
	Run(ctx context.Context, a *agent.Identity, history []domain.Message, vars map[string]any) (*Response, error)
	// Stream emits chunks until the run finishes or ctx is cancelled. The
	// channel is closed when the producer exits.
	Stream(ctx context.Context, a *agent.Identity, history []domain.Message, vars map[string]any) (<-chan Chunk, error)
}
