// Package policy decides whether an agent may run a record tool.
package policy

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/open-policy-agent/opa/rego"
)

const (
	DecisionAllow = "allow"
	DecisionBlock = "block"
)

// Input is the document the policy is evaluated against.
type Input struct {
	ToolName string         `json:"tool_name"`
	AgentID  string         `json:"agent_id"`
	Args     map[string]any `json:"args"`
	Context  map[string]any `json:"context"`
}

// Engine is the OPA policy engine.
type Engine struct {
	query rego.PreparedEvalQuery
}

// NewEngine compiles a tool_policy module. The module reports violations
// through the deny set.
func NewEngine(ctx context.Context, policyContent string) (*Engine, error) {
	r := rego.New(
		rego.Query("data.tool_policy.deny"),
		rego.Module("tool_policy.rego", policyContent),
	)

	query, err := r.PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare rego: %w", err)
	}

	return &Engine{query: query}, nil
}

// Load compiles the policy at path, or DefaultPolicy when path is empty.
func Load(ctx context.Context, path string) (*Engine, error) {
	if path == "" {
		return NewEngine(ctx, DefaultPolicy)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy: %w", err)
	}
	return NewEngine(ctx, string(content))
}

// Evaluate checks the tool policy.
// Returns: decision (allow or block), reason (empty when allowed), error
func (e *Engine) Evaluate(ctx context.Context, input Input) (string, string, error) {
	results, err := e.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return "", "", fmt.Errorf("failed to evaluate policy: %w", err)
	}

	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return DecisionAllow, "", nil
	}

	denials, ok := results[0].Expressions[0].Value.([]interface{})
	if !ok {
		return "", "", fmt.Errorf("policy deny must be a set, got %T", results[0].Expressions[0].Value)
	}
	if len(denials) == 0 {
		return DecisionAllow, "", nil
	}

	reasons := make([]string, 0, len(denials))
	for _, d := range denials {
		reasons = append(reasons, fmt.Sprint(d))
	}
	sort.Strings(reasons)
	return DecisionBlock, strings.Join(reasons, "; "), nil
}

// DefaultPolicy is the default policy content.
const DefaultPolicy = `
package tool_policy

import rego.v1

deny contains msg if {
	input.tool_name == "delete_a_product"
	input.context.read_only == true
	msg := "deleting products is disabled for read-only users"
}

deny contains msg if {
	input.tool_name == "insert_a_product"
	input.args.price < 0
	msg := "price must not be negative"
}

deny contains msg if {
	input.tool_name == "insert_a_product"
	input.args.stock < 0
	msg := "stock must not be negative"
}

deny contains msg if {
	input.tool_name == "update_a_product"
	input.args.new_price < 0
	msg := "price must not be negative"
}

deny contains msg if {
	input.tool_name == "update_a_product"
	input.args.new_stock < 0
	msg := "stock must not be negative"
}
`
