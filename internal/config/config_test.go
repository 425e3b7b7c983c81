package config

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vesoft-chaos/orchestrator/internal/dbclient"
)

type noopRunner struct{}

func (noopRunner) Run(ctx context.Context, command, host string, onStdout, onStderr func(string), owner string) (int, time.Duration, error) {
	return 0, 0, nil
}

func writeTemp(t *testing.T, name string, v interface{}) string {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, raw, 0o644))
	return path
}

func sampleDoc() *PlanDocument {
	return &PlanDocument{
		Name:        "smoke",
		Concurrency: 4,
		Instances: []InstanceConfig{
			{Type: "storaged", InstallDir: "/opt/nebula", ConfDir: "/opt/nebula/etc", Host: "10.0.0.1", User: "nebula"},
		},
		Actions: []ActionConfig{
			{Type: "empty"},
			{Type: "wait", Payload: json.RawMessage(`{"Seconds":0}`), Depends: []int{0}},
		},
	}
}

func TestLoadMergesInstancesAndActions(t *testing.T) {
	doc := sampleDoc()
	instPath := writeTemp(t, "instances.json", &PlanDocument{Name: doc.Name, Concurrency: doc.Concurrency, Instances: doc.Instances, Actions: []ActionConfig{}})
	actPath := writeTemp(t, "actions.json", &PlanDocument{Instances: []InstanceConfig{}, Actions: doc.Actions})

	merged, err := Load(instPath, actPath)
	require.NoError(t, err)
	assert.Equal(t, "smoke", merged.Name)
	assert.Len(t, merged.Instances, 1)
	assert.Len(t, merged.Actions, 2)
}

func TestValidateRejectsForwardReferencingDepends(t *testing.T) {
	doc := sampleDoc()
	doc.Actions = []ActionConfig{
		{Type: "empty", Depends: []int{1}},
		{Type: "empty"},
	}
	err := Validate(doc)
	assert.Error(t, err)
}

func TestValidateRejectsSelfReferencingDepends(t *testing.T) {
	doc := sampleDoc()
	doc.Actions = []ActionConfig{
		{Type: "empty", Depends: []int{0}},
	}
	err := Validate(doc)
	assert.Error(t, err)
}

func TestValidateRejectsUnknownInstanceType(t *testing.T) {
	doc := sampleDoc()
	doc.Instances[0].Type = "bogus"
	err := Validate(doc)
	assert.Error(t, err)
}

func TestValidateAcceptsWellFormedDocument(t *testing.T) {
	doc := sampleDoc()
	assert.NoError(t, Validate(doc))
}

func TestLowerWiresActionsAndInstances(t *testing.T) {
	doc := sampleDoc()
	require.NoError(t, Validate(doc))

	env := Env{Client: dbclient.NewFake(), Runner: noopRunner{}}
	p, instances, err := Lower(doc, env)
	require.NoError(t, err)
	assert.Len(t, instances, 1)
	assert.Len(t, p.Actions(), 2)
}

func TestLowerRejectsUnknownActionType(t *testing.T) {
	doc := sampleDoc()
	doc.Actions = []ActionConfig{{Type: "not-a-real-action"}}
	env := Env{Client: dbclient.NewFake(), Runner: noopRunner{}}
	_, _, err := Lower(doc, env)
	assert.Error(t, err)
}

func TestLowerBuildsLoopAction(t *testing.T) {
	doc := sampleDoc()
	loopPayload, err := json.Marshal(map[string]interface{}{
		"Condition":   "$i < 2",
		"Concurrency": 2,
		"Actions": []ActionConfig{
			{Type: "assign", Payload: json.RawMessage(`{"Var":"i","Expr":"$i + 1"}`)},
		},
	})
	require.NoError(t, err)
	doc.Actions = []ActionConfig{{Type: "loop", Payload: loopPayload}}

	env := Env{Client: dbclient.NewFake(), Runner: noopRunner{}}
	p, _, err := Lower(doc, env)
	require.NoError(t, err)
	assert.Len(t, p.Actions(), 1)
}
