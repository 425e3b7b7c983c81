package config

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

// planSchema is the CUE shape checked before struct-tag validation runs,
// catching structurally wrong documents (wrong field types, unknown
// instance roles) with a clearer error than validator's per-field
// messages. Grounded on pkg/config/schemas.go's builtin CUE schema
// pattern.
const planSchema = `
#Plan: {
	name:          string
	concurrency?:  int & >=0
	email?:        string
	rolling_table?: bool
	instances: [...#Instance]
	actions:   [...#Action]
}

#Instance: {
	type:        "storaged" | "metad" | "graphd"
	install_dir: string
	conf_dir:    string
	host:        string
	user:        string
}

#Action: {
	type:     string
	payload?: {...}
	depends?: [...int]
}
`

// SchemaRegistry wraps a single compiled CUE schema used to pre-check a
// PlanDocument's shape.
type SchemaRegistry struct {
	ctx    *cue.Context
	schema cue.Value
}

// NewSchemaRegistry compiles the builtin plan schema.
func NewSchemaRegistry() (*SchemaRegistry, error) {
	ctx := cuecontext.New()
	val := ctx.CompileString(planSchema)
	if err := val.Err(); err != nil {
		return nil, fmt.Errorf("compile plan schema: %w", err)
	}
	return &SchemaRegistry{ctx: ctx, schema: val}, nil
}

// CheckShape unifies raw (the decoded PlanDocument) with #Plan and reports
// any structural mismatch.
func (sr *SchemaRegistry) CheckShape(doc *PlanDocument) error {
	planVal := sr.schema.LookupPath(cue.ParsePath("#Plan"))
	dataVal := sr.ctx.Encode(doc)
	if err := dataVal.Err(); err != nil {
		return fmt.Errorf("encode plan document: %w", err)
	}
	unified := planVal.Unify(dataVal)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("plan document does not match schema: %w", err)
	}
	return nil
}
