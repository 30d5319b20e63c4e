// Package tools exposes the record store to agents as named functions.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
)

// Call is one invocation of a tool.
type Call struct {
	Args json.RawMessage
	// Vars is the context bag of the turn.
	Vars map[string]any
}

// ExecutorFunc runs a tool and returns the text handed back to the model.
type ExecutorFunc func(ctx context.Context, call Call) (string, error)

// Definition describes a tool to the model.
type Definition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

type entry struct {
	def  Definition
	exec ExecutorFunc
}

// Registry stores tool executors keyed by tool name.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]entry
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[string]entry),
	}
}

// Register adds a tool.
func (r *Registry) Register(def Definition, exec ExecutorFunc) error {
	if def.Name == "" {
		return fmt.Errorf("tool name is required")
	}
	if exec == nil {
		return fmt.Errorf("executor is required")
	}
	if def.Parameters == nil {
		def.Parameters = objectSchema(nil)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[def.Name]; exists {
		return fmt.Errorf("executor already registered for %s", def.Name)
	}
	r.entries[def.Name] = entry{def: def, exec: exec}
	return nil
}

// MustRegister adds a tool or panics.
func (r *Registry) MustRegister(def Definition, exec ExecutorFunc) {
	if err := r.Register(def, exec); err != nil {
		panic(err)
	}
}

// Execute runs the executor for the tool name.
func (r *Registry) Execute(ctx context.Context, name string, call Call) (string, error) {
	if name == "" {
		return "", fmt.Errorf("tool name is required")
	}
	r.mu.RLock()
	e, ok := r.entries[name]
	r.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("no executor registered for %s", name)
	}
	return e.exec(ctx, call)
}

// Definition returns the definition of a registered tool.
func (r *Registry) Definition(name string) (Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	return e.def, ok
}

// Definitions returns every registered tool, sorted by name.
func (r *Registry) Definitions() []Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	defs := make([]Definition, 0, len(r.entries))
	for _, e := range r.entries {
		defs = append(defs, e.def)
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}

type property struct {
	name, typ, desc string
	required        bool
}

func objectSchema(props []property) map[string]any {
	properties := map[string]any{}
	required := []string{}
	for _, p := range props {
		properties[p.name] = map[string]any{"type": p.typ, "description": p.desc}
		if p.required {
			required = append(required, p.name)
		}
	}
	return map[string]any{
		"type":       "object",
		"properties": properties,
		"required":   required,
	}
}
