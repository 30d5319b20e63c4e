package swarm

import (
	"encoding/json"
	"fmt"

	"github.com/Nasti98RS/swarm-db-api/internal/adapter/llm"
	"github.com/Nasti98RS/swarm-db-api/internal/agent"
	"github.com/Nasti98RS/swarm-db-api/internal/domain"
)

// request builds the model request: instructions, conversation, and the
// schemas of the agent's record tools and outbound transitions.
func (r *Runner) request(a *agent.Identity, conv []domain.Message) *llm.ChatCompletionRequest {
	model := a.Model
	if model == "" {
		model = r.model
	}

	messages := make([]llm.ChatMessage, 0, len(conv)+1)
	messages = append(messages, llm.ChatMessage{Role: string(domain.RoleSystem), Content: a.Instructions})
	for _, m := range conv {
		messages = append(messages, toChat(m))
	}

	var defs []llm.Tool
	for _, name := range a.Tools {
		def, ok := r.tools.Definition(name)
		if !ok {
			continue
		}
		defs = append(defs, llm.Tool{
			Type: "function",
			Function: llm.ToolFunction{
				Name:        def.Name,
				Description: def.Description,
				Parameters:  def.Parameters,
			},
		})
	}
	for _, id := range a.Transfers {
		target, err := r.registry.Resolve(id)
		if err != nil {
			continue
		}
		defs = append(defs, llm.Tool{
			Type: "function",
			Function: llm.ToolFunction{
				Name:        target.Handoff.Tool,
				Description: target.Handoff.Description,
				Parameters: map[string]any{
					"type":       "object",
					"properties": map[string]any{},
					"required":   []string{},
				},
			},
		})
	}

	return &llm.ChatCompletionRequest{
		Model:    model,
		Messages: messages,
		Tools:    defs,
	}
}

func toChat(m domain.Message) llm.ChatMessage {
	out := llm.ChatMessage{
		Role:       string(m.Role),
		Content:    m.Content,
		ToolCallID: m.ToolCallID,
	}
	for _, c := range m.ToolCalls {
		args := string(c.Arguments)
		if args == "" {
			args = "{}"
		}
		out.ToolCalls = append(out.ToolCalls, llm.ToolCall{
			ID:       c.ID,
			Type:     "function",
			Function: llm.ToolCallFunction{Name: c.Name, Arguments: args},
		})
	}
	return out
}

func fromChat(m llm.ChatMessage, sender string) domain.Message {
	out := domain.Message{
		Role:    domain.RoleAssistant,
		Content: m.Content,
		Sender:  sender,
	}
	for _, c := range m.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, domain.ToolCall{
			ID:        c.ID,
			Name:      c.Function.Name,
			Arguments: rawArguments(c.Function.Arguments),
		})
	}
	return out
}

// rawArguments keeps model-supplied arguments as JSON, quoting anything that
// does not parse.
func rawArguments(s string) json.RawMessage {
	if s == "" {
		return json.RawMessage(`{}`)
	}
	if json.Valid([]byte(s)) {
		return json.RawMessage(s)
	}
	quoted, _ := json.Marshal(s)
	return quoted
}

// mergeToolCalls folds streamed tool call fragments into complete calls. A
// fragment may continue an earlier call or open the next one; any other index
// is rejected.
func mergeToolCalls(acc, deltas []llm.ToolCall) ([]llm.ToolCall, error) {
	for _, d := range deltas {
		idx := len(acc)
		if d.Index != nil {
			idx = *d.Index
		}
		if idx < 0 || idx > len(acc) {
			return acc, fmt.Errorf("%w: %d with %d calls open", ErrToolCallIndex, idx, len(acc))
		}
		if idx == len(acc) {
			acc = append(acc, llm.ToolCall{Type: "function"})
		}
		c := &acc[idx]
		if d.ID != "" {
			c.ID = d.ID
		}
		if d.Type != "" {
			c.Type = d.Type
		}
		c.Function.Name += d.Function.Name
		c.Function.Arguments += d.Function.Arguments
	}
	return acc, nil
}
