package commands

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/vesoft-chaos/orchestrator/internal/config"
	"github.com/vesoft-chaos/orchestrator/internal/policy"
)

func newValidateCommand() *cobra.Command {
	var (
		instanceConfFile string
		actionConfFile   string
		checkPolicy      bool
	)

	cmd := &cobra.Command{
		Use:   "validate-plan",
		Short: "Validate a plan document's shape, dependency graph, and policies",
		Long: `Validate a plan document without executing it.

This command checks:
  - JSON shape against the CUE schema
  - Struct-tag field constraints
  - That every action's depends list references a strictly-earlier action
  - Built-in policy compliance (when --check-policy is set)`,
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := config.Load(instanceConfFile, actionConfFile)
			if err != nil {
				return fmt.Errorf("load plan: %w", err)
			}
			log.Info().Str("plan", doc.Name).Int("actions", len(doc.Actions)).Msg("plan document is well-formed")

			if !checkPolicy {
				return nil
			}
			verdict, err := policy.NewBuiltinGate().Evaluate(cmd.Context(), doc)
			if err != nil {
				return fmt.Errorf("evaluate policies: %w", err)
			}
			for _, v := range verdict.Violations {
				log.Warn().Str("policy", v.Policy).Str("severity", string(v.Severity)).Msg(v.Message)
			}
			if !verdict.Allowed {
				return fmt.Errorf("plan rejected by policy gate")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&instanceConfFile, "instance_conf_file", "instances.json", "instance configuration file")
	cmd.Flags().StringVar(&actionConfFile, "action_conf_file", "actions.json", "action configuration file")
	cmd.Flags().BoolVar(&checkPolicy, "check-policy", false, "also run the built-in policy gate")

	return cmd
}
