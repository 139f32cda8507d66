package policy

import (
	"context"
	"fmt"

	"github.com/open-policy-agent/opa/rego"
)

type DecisionStatus string

const (
	Allow   DecisionStatus = "ALLOW"
	Blocked DecisionStatus = "BLOCKED"
)

// Query is the rego entrypoint every policy module must define.
const Query = "data.policy.decide"

// DefaultModule approves USD payments of a positive amount up to facts.limit
// into the configured merchant account.
const DefaultModule = `package policy

import rego.v1

default decide := {"status": "ALLOW", "reasons": []}

decide := {"status": "BLOCKED", "reasons": sort(reasons)} if count(reasons) > 0

reasons contains "amount_not_positive" if input.inputs.amount <= 0

reasons contains "amount_over_limit" if input.inputs.amount > input.facts.limit

reasons contains "unsupported_currency" if input.inputs.currency != "USD"

reasons contains "merchant_mismatch" if input.inputs.destination != input.facts.merchant_id
`

type Decision struct {
	Status  DecisionStatus `json:"status"`
	Reasons []string       `json:"reasons,omitempty"`
}

func (d Decision) Allowed() bool { return d.Status == Allow }

// Engine evaluates one compiled policy module.
type Engine struct {
	query rego.PreparedEvalQuery
}

// NewEngine compiles module, or DefaultModule when module is empty.
func NewEngine(ctx context.Context, module string) (*Engine, error) {
	if module == "" {
		module = DefaultModule
	}
	q, err := rego.New(
		rego.Query(Query),
		rego.Module("policy.rego", module),
	).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("compile policy: %w", err)
	}
	return &Engine{query: q}, nil
}

// Evaluate runs the policy against inputs and facts. Evaluation failures and
// undefined results block rather than allow.
func (e *Engine) Evaluate(ctx context.Context, inputs, facts map[string]any) Decision {
	rs, err := e.query.Eval(ctx, rego.EvalInput(map[string]any{"inputs": inputs, "facts": facts}))
	if err != nil || len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return Decision{Status: Blocked, Reasons: []string{"policy_error"}}
	}
	dec := Decision{Status: Blocked}
	m, ok := rs[0].Expressions[0].Value.(map[string]any)
	if !ok {
		dec.Reasons = []string{"policy_error"}
		return dec
	}
	if s, _ := m["status"].(string); s == string(Allow) {
		dec.Status = Allow
	}
	if rr, ok := m["reasons"].([]any); ok {
		for _, r := range rr {
			if s, ok := r.(string); ok {
				dec.Reasons = append(dec.Reasons, s)
			}
		}
	}
	return dec
}
