package policy

// builtinPartitionPolicy rejects a plan that runs random_partition against
// every storage instance declared in the plan: such a plan can isolate
// every storage node simultaneously, which is indistinguishable from a
// full cluster outage rather than a partition exercise.
const builtinPartitionPolicy = `
package chaosorch.partition

deny[msg] {
	some i
	input.actions[i].type == "random_partition"
	count(input.actions[i].payload.Storages) >= input.storage_count
	input.storage_count > 0
	msg := "random_partition targets every storage instance declared in the plan"
}
`

// builtinCleanDataPolicy requires an explicit, non-default space id on
// clean_data whenever the plan declares more than one space, since the
// default (whole data directory) would silently wipe every space's data.
const builtinCleanDataPolicy = `
package chaosorch.cleandata

deny[msg] {
	input.space_count > 1
	some i
	input.actions[i].type == "clean_data"
	space_id := object.get(input.actions[i].payload, "SpaceID", -1)
	space_id < 0
	msg := "clean_data has no space id set, but the plan declares more than one space"
}
`

// BuiltinPolicies returns the gate's two default rules, both enabled.
func BuiltinPolicies() []Policy {
	return []Policy{
		{
			Name:        "no-full-partition",
			Description: "random_partition must not target every storage instance",
			Rego:        builtinPartitionPolicy,
			Severity:    SeverityError,
			Enabled:     true,
		},
		{
			Name:        "clean-data-requires-space",
			Description: "clean_data must name a space id when more than one space exists",
			Rego:        builtinCleanDataPolicy,
			Severity:    SeverityError,
			Enabled:     true,
		},
	}
}
