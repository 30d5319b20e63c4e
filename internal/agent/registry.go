// Package agent holds the static table of agents and the transitions between them.
package agent

import (
	_ "embed"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/Nasti98RS/swarm-db-api/internal/domain"
)

//go:embed agents.yaml
var defaultAgents []byte

// Handoff describes the transition tool other agents call to reach this agent.
type Handoff struct {
	Tool        string `yaml:"tool" json:"tool"`
	Description string `yaml:"description" json:"description"`
	// Message is returned as the tool result when the transition fires.
	Message string `yaml:"message,omitempty" json:"message,omitempty"`
}

// Identity is the immutable description of one agent.
type Identity struct {
	ID           string   `yaml:"id" json:"id"`
	Name         string   `yaml:"name" json:"name"`
	Model        string   `yaml:"model,omitempty" json:"model,omitempty"`
	Instructions string   `yaml:"instructions" json:"instructions"`
	Tools        []string `yaml:"tools,omitempty" json:"tools,omitempty"`
	Transfers    []string `yaml:"transfers,omitempty" json:"transfers,omitempty"`
	Handoff      Handoff  `yaml:"handoff" json:"handoff"`
}

// CanTransferTo reports whether id is in the agent's allowed-transition set.
func (a *Identity) CanTransferTo(id string) bool {
	for _, t := range a.Transfers {
		if t == id {
			return true
		}
	}
	return false
}

// HasTool reports whether the agent declares the record tool.
func (a *Identity) HasTool(name string) bool {
	for _, t := range a.Tools {
		if t == name {
			return true
		}
	}
	return false
}

type file struct {
	Default string     `yaml:"default"`
	Agents  []Identity `yaml:"agents"`
}

// Registry maps agent ids to identities. It is read-only after construction.
type Registry struct {
	agents      map[string]*Identity
	order       []string
	transitions map[string]string
	defaultID   string
}

// NewRegistry validates the agents and builds the transition table.
func NewRegistry(defaultID string, agents []Identity) (*Registry, error) {
	r := &Registry{
		agents:      make(map[string]*Identity, len(agents)),
		transitions: make(map[string]string, len(agents)),
		defaultID:   defaultID,
	}
	for i := range agents {
		a := agents[i]
		if a.ID == "" {
			return nil, fmt.Errorf("agent %d: id is required", i)
		}
		if a.Name == "" {
			a.Name = a.ID
		}
		if _, dup := r.agents[a.ID]; dup {
			return nil, fmt.Errorf("duplicate agent id %q", a.ID)
		}
		if a.Handoff.Tool != "" {
			if other, dup := r.transitions[a.Handoff.Tool]; dup {
				return nil, fmt.Errorf("transition tool %q used by both %q and %q", a.Handoff.Tool, other, a.ID)
			}
			r.transitions[a.Handoff.Tool] = a.ID
		}
		a.Tools = append([]string(nil), a.Tools...)
		a.Transfers = append([]string(nil), a.Transfers...)
		r.agents[a.ID] = &a
		r.order = append(r.order, a.ID)
	}

	if _, ok := r.agents[defaultID]; !ok {
		return nil, fmt.Errorf("%w: default agent %q", domain.ErrUnknownAgent, defaultID)
	}
	for _, id := range r.order {
		a := r.agents[id]
		for _, target := range a.Transfers {
			t, ok := r.agents[target]
			if !ok {
				return nil, fmt.Errorf("%w: agent %q transfers to %q", domain.ErrUnknownAgent, id, target)
			}
			if t.Handoff.Tool == "" {
				return nil, fmt.Errorf("agent %q transfers to %q which has no handoff tool", id, target)
			}
		}
	}
	return r, nil
}

// Parse builds a registry from YAML.
func Parse(data []byte) (*Registry, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse agents: %w", err)
	}
	return NewRegistry(f.Default, f.Agents)
}

// Load reads agents from path, or the built-in table when path is empty.
func Load(path string) (*Registry, error) {
	if path == "" {
		return Parse(defaultAgents)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read agents file: %w", err)
	}
	return Parse(data)
}

// Builtin returns the built-in agent table.
func Builtin() *Registry {
	r, err := Parse(defaultAgents)
	if err != nil {
		panic(err)
	}
	return r
}

// Resolve returns the agent with the given id.
func (r *Registry) Resolve(id string) (*Identity, error) {
	a, ok := r.agents[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownAgent, id)
	}
	return a, nil
}

// Default returns the triage entry point.
func (r *Registry) Default() *Identity {
	return r.agents[r.defaultID]
}

// Transition maps a transition tool name to its target agent id.
func (r *Registry) Transition(tool string) (string, bool) {
	id, ok := r.transitions[tool]
	return id, ok
}

// TransitionNames returns every transition tool name, sorted.
func (r *Registry) TransitionNames() []string {
	names := make([]string, 0, len(r.transitions))
	for name := range r.transitions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// List returns the agents in declaration order.
func (r *Registry) List() []*Identity {
	out := make([]*Identity, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.agents[id])
	}
	return out
}
