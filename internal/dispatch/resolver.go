package dispatch

import (
	"encoding/json"
	"fmt"

	"github.com/Nasti98RS/swarm-db-api/internal/agent"
	"github.com/Nasti98RS/swarm-db-api/internal/domain"
)

// HandoffSignal is a transition request found in an agent message.
type HandoffSignal struct {
	Tool      string
	Target    string
	Arguments json.RawMessage
}

// Resolver turns transition tool calls into target agents.
type Resolver struct {
	registry *agent.Registry
}

// NewResolver creates a resolver over the registry's transition table.
func NewResolver(registry *agent.Registry) *Resolver {
	return &Resolver{registry: registry}
}

// Detect returns the first tool call in msg that names a transition, or nil.
// Tool calls for domain functions are ignored.
func (r *Resolver) Detect(msg domain.Message) *HandoffSignal {
	for _, call := range msg.ToolCalls {
		if target, ok := r.registry.Transition(call.Name); ok {
			return &HandoffSignal{
				Tool:      call.Name,
				Target:    target,
				Arguments: call.Arguments,
			}
		}
	}
	return nil
}

// Resolve checks the signal against the current agent's allowed transitions.
func (r *Resolver) Resolve(sig *HandoffSignal, current *agent.Identity) (*agent.Identity, error) {
	target, err := r.registry.Resolve(sig.Target)
	if err != nil {
		return nil, err
	}
	if !current.CanTransferTo(target.ID) {
		return nil, fmt.Errorf("%w: %s may not hand off to %s", domain.ErrIllegalTransition, current.ID, target.ID)
	}
	return target, nil
}
