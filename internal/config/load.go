package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
)

// Load reads and validates a plan document split across an instance
// config file and an action config file, the way the CLI's two
// --instance_conf_file/--action_conf_file flags are merged. Instances are
// always taken from the instance file. Actions are taken from the action
// file, or from the instance file when the action file declares none.
// Name, concurrency and email come from the instance file, falling back to
// the action file's values where the instance file leaves them unset.
func Load(instanceConfFile, actionConfFile string) (*PlanDocument, error) {
	instDoc, err := loadFile(instanceConfFile)
	if err != nil {
		return nil, fmt.Errorf("load instance config: %w", err)
	}
	actDoc, err := loadFile(actionConfFile)
	if err != nil {
		return nil, fmt.Errorf("load action config: %w", err)
	}

	merged := *instDoc
	if len(actDoc.Actions) > 0 {
		merged.Actions = actDoc.Actions
	}
	if merged.Name == "" {
		merged.Name = actDoc.Name
	}
	if merged.Concurrency == 0 {
		merged.Concurrency = actDoc.Concurrency
	}
	if merged.Email == "" {
		merged.Email = actDoc.Email
	}

	if err := Validate(&merged); err != nil {
		return nil, err
	}
	return &merged, nil
}

func loadFile(path string) (*PlanDocument, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc PlanDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &doc, nil
}

var structValidator = validator.New()

// Validate runs the CUE shape check followed by struct-tag validation,
// then a forward-reference check on every action's depends list.
func Validate(doc *PlanDocument) error {
	registry, err := NewSchemaRegistry()
	if err != nil {
		return err
	}
	if err := registry.CheckShape(doc); err != nil {
		return err
	}
	if err := structValidator.Struct(doc); err != nil {
		return fmt.Errorf("plan document validation failed: %w", err)
	}
	return checkDependsIndices(doc.Actions)
}

// checkDependsIndices rejects any action whose depends list names an index
// at or after its own position: indices must reference strictly-earlier
// declarations.
func checkDependsIndices(actions []ActionConfig) error {
	for i, a := range actions {
		for _, dep := range a.Depends {
			if dep < 0 || dep >= i {
				return fmt.Errorf("action %d (%s) depends on index %d, which is not a strictly-earlier declaration", i, a.Type, dep)
			}
		}
	}
	return nil
}
