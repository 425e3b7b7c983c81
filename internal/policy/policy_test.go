package policy

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vesoft-chaos/orchestrator/internal/config"
)

func storageInstances(n int) []config.InstanceConfig {
	out := make([]config.InstanceConfig, n)
	for i := range out {
		out[i] = config.InstanceConfig{Type: "storaged", InstallDir: "/opt/nebula", ConfDir: "/opt/nebula/etc", Host: "10.0.0.1", User: "nebula"}
	}
	return out
}

func TestBlockingRequiresErrorOrCritical(t *testing.T) {
	assert.False(t, blocking([]Violation{{Severity: SeverityWarning}}))
	assert.True(t, blocking([]Violation{{Severity: SeverityError}}))
	assert.True(t, blocking([]Violation{{Severity: SeverityCritical}}))
}

func TestGateAllowsPlanWithNoViolations(t *testing.T) {
	doc := &config.PlanDocument{
		Instances: storageInstances(3),
		Actions: []config.ActionConfig{
			{Type: "random_partition", Payload: json.RawMessage(`{"Storages":[0,1]}`)},
		},
	}
	gate := NewBuiltinGate()
	verdict, err := gate.Evaluate(context.Background(), doc)
	require.NoError(t, err)
	assert.True(t, verdict.Allowed)
	assert.Empty(t, verdict.Violations)
}

func TestGateRejectsFullPartition(t *testing.T) {
	doc := &config.PlanDocument{
		Instances: storageInstances(2),
		Actions: []config.ActionConfig{
			{Type: "random_partition", Payload: json.RawMessage(`{"Storages":[0,1]}`)},
		},
	}
	gate := NewBuiltinGate()
	verdict, err := gate.Evaluate(context.Background(), doc)
	require.NoError(t, err)
	assert.False(t, verdict.Allowed)
	require.Len(t, verdict.Violations, 1)
	assert.Equal(t, "no-full-partition", verdict.Violations[0].Policy)
}

func TestGateRejectsCleanDataWithoutSpaceWhenMultipleSpaces(t *testing.T) {
	doc := &config.PlanDocument{
		Instances: storageInstances(1),
		Actions: []config.ActionConfig{
			{Type: "create_space", Payload: json.RawMessage(`{"SpaceName":"a"}`)},
			{Type: "create_space", Payload: json.RawMessage(`{"SpaceName":"b"}`), Depends: []int{0}},
			{Type: "clean_data", Payload: json.RawMessage(`{"SpaceID":-1}`), Depends: []int{1}},
		},
	}
	gate := NewBuiltinGate()
	verdict, err := gate.Evaluate(context.Background(), doc)
	require.NoError(t, err)
	assert.False(t, verdict.Allowed)
	require.Len(t, verdict.Violations, 1)
	assert.Equal(t, "clean-data-requires-space", verdict.Violations[0].Policy)
}

func TestGateAllowsCleanDataWithSpaceIDSet(t *testing.T) {
	doc := &config.PlanDocument{
		Instances: storageInstances(1),
		Actions: []config.ActionConfig{
			{Type: "create_space", Payload: json.RawMessage(`{"SpaceName":"a"}`)},
			{Type: "create_space", Payload: json.RawMessage(`{"SpaceName":"b"}`), Depends: []int{0}},
			{Type: "clean_data", Payload: json.RawMessage(`{"SpaceID":1}`), Depends: []int{1}},
		},
	}
	gate := NewBuiltinGate()
	verdict, err := gate.Evaluate(context.Background(), doc)
	require.NoError(t, err)
	assert.True(t, verdict.Allowed)
}

func TestNewGateSkipsDisabledPolicies(t *testing.T) {
	policies := BuiltinPolicies()
	for i := range policies {
		policies[i].Enabled = false
	}
	gate := NewGate(policies)
	assert.Empty(t, gate.policies)
}
