package policy

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/open-policy-agent/opa/rego"

	"github.com/vesoft-chaos/orchestrator/internal/config"
)

// Gate evaluates a set of Rego policies against a PlanDocument before it is
// lowered into a ChaosPlan. Disabled by default: callers opt in by
// constructing a Gate and calling Evaluate ahead of config.Lower.
type Gate struct {
	policies []Policy
}

// NewGate builds a Gate from the given policies, skipping any not Enabled.
func NewGate(policies []Policy) *Gate {
	g := &Gate{}
	for _, p := range policies {
		if p.Enabled {
			g.policies = append(g.policies, p)
		}
	}
	return g
}

// NewBuiltinGate builds a Gate from BuiltinPolicies.
func NewBuiltinGate() *Gate {
	return NewGate(BuiltinPolicies())
}

// Evaluate runs every enabled policy's deny rule against doc and collects
// the resulting violations. The plan is Allowed unless at least one
// violation is SeverityError or above.
func (g *Gate) Evaluate(ctx context.Context, doc *config.PlanDocument) (Verdict, error) {
	input, err := buildInput(doc)
	if err != nil {
		return Verdict{}, fmt.Errorf("build policy input: %w", err)
	}

	var violations []Violation
	for _, p := range g.policies {
		pkgName, err := packageName(p.Rego)
		if err != nil {
			return Verdict{}, fmt.Errorf("policy %s: %w", p.Name, err)
		}
		r := rego.New(
			rego.Module(p.Name, p.Rego),
			rego.Query(fmt.Sprintf("data.%s.deny", pkgName)),
			rego.Input(input),
		)

		results, err := r.Eval(ctx)
		if err != nil {
			return Verdict{}, fmt.Errorf("policy %s: eval: %w", p.Name, err)
		}
		for _, res := range results {
			for _, e := range res.Expressions {
				msgs, ok := e.Value.([]interface{})
				if !ok {
					continue
				}
				for _, m := range msgs {
					msg, _ := m.(string)
					violations = append(violations, Violation{
						Policy:   p.Name,
						Message:  msg,
						Severity: p.Severity,
					})
				}
			}
		}
	}

	return Verdict{
		Allowed:    !blocking(violations),
		Violations: violations,
	}, nil
}

// packageName extracts the "package a.b.c" declaration a Rego module opens
// with, since rego.Query needs the fully-qualified rule path.
func packageName(src string) (string, error) {
	for _, line := range strings.Split(src, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "package ") {
			name := strings.TrimSpace(strings.TrimPrefix(trimmed, "package "))
			if name != "" {
				return name, nil
			}
		}
	}
	return "", fmt.Errorf("module has no package declaration")
}

func buildInput(doc *config.PlanDocument) (map[string]interface{}, error) {
	storageCount := 0
	for _, inst := range doc.Instances {
		if inst.Type == "storaged" {
			storageCount++
		}
	}

	spaceCount := 0
	actions := make([]map[string]interface{}, len(doc.Actions))
	for i, ac := range doc.Actions {
		if ac.Type == "create_space" {
			spaceCount++
		}
		var payload map[string]interface{}
		if len(ac.Payload) > 0 {
			if err := json.Unmarshal(ac.Payload, &payload); err != nil {
				return nil, fmt.Errorf("action %d payload: %w", i, err)
			}
		}
		actions[i] = map[string]interface{}{
			"type":    ac.Type,
			"payload": payload,
		}
	}

	return map[string]interface{}{
		"storage_count": storageCount,
		"space_count":   spaceCount,
		"actions":       actions,
	}, nil
}
