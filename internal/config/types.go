// Package config loads a plan document from JSON,
// validates its shape, and lowers it into a wired plan.Plan ready to
// schedule. Grounded on pkg/config/{types.go,schemas.go,cue_parser.go}'s
// CUE-schema-then-struct-tag validation pipeline.
package config

import "encoding/json"

// PlanDocument is the on-disk shape of one chaos run.
type PlanDocument struct {
	Name          string           `json:"name" validate:"required"`
	Concurrency   int              `json:"concurrency" validate:"gte=0"`
	Email         string           `json:"email,omitempty" validate:"omitempty,email"`
	RollingTable  bool             `json:"rolling_table,omitempty"`
	Instances     []InstanceConfig `json:"instances" validate:"required,dive"`
	Actions       []ActionConfig   `json:"actions" validate:"required,dive"`
}

// InstanceConfig describes one cluster target.
type InstanceConfig struct {
	Type       string `json:"type" validate:"required,oneof=storaged metad graphd"`
	InstallDir string `json:"install_dir" validate:"required"`
	ConfDir    string `json:"conf_dir" validate:"required"`
	Host       string `json:"host" validate:"required"`
	User       string `json:"user" validate:"required"`
}

// ActionConfig describes one DAG node: a type tag, a type-specific JSON
// payload, and the indices of actions it depends on.
type ActionConfig struct {
	Type    string          `json:"type" validate:"required"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Depends []int           `json:"depends,omitempty"`
}
