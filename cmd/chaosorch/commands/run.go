package commands

import (
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/vesoft-chaos/orchestrator/internal/actions"
	"github.com/vesoft-chaos/orchestrator/internal/config"
	"github.com/vesoft-chaos/orchestrator/internal/dbclient"
	"github.com/vesoft-chaos/orchestrator/internal/policy"
	"github.com/vesoft-chaos/orchestrator/internal/remote"
	"github.com/vesoft-chaos/orchestrator/internal/report"
	"github.com/vesoft-chaos/orchestrator/internal/store"
	"github.com/vesoft-chaos/orchestrator/internal/telemetry"
)

func newRunCommand() *cobra.Command {
	var (
		instanceConfFile string
		actionConfFile   string
		sshUser          string
		sshKeyPath       string
		checkPolicy      bool
		dotOut           string
	)

	cmd := &cobra.Command{
		Use:   "run-plan",
		Short: "Load, gate, and execute a chaos plan against a running cluster",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := loadRuntimeConfig(configPath)
			if err != nil {
				return err
			}

			doc, err := config.Load(instanceConfFile, actionConfFile)
			if err != nil {
				return fmt.Errorf("load plan: %w", err)
			}

			if checkPolicy || rt.PolicyEnabled {
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
			}

			metrics, err := telemetry.NewMetrics(telemetry.MetricsConfig{
				Enabled: true, Namespace: "chaosorch", ListenAddress: rt.MetricsListen, Path: "/metrics",
			})
			if err != nil {
				return fmt.Errorf("build metrics: %w", err)
			}

			runner := remote.NewRunner(remote.Config{
				User:           sshUser,
				AuthMethod:     remote.AuthKey,
				PrivateKeyPath: sshKeyPath,
				ConnectTimeout: time.Duration(rt.SSHConnectTimeout) * time.Second,
				CommandTimeout: time.Duration(rt.SSHCommandTimeout) * time.Second,
			})
			defer runner.Close()

			env := config.Env{
				Client:   dbclient.NewFake(),
				Runner:   runner,
				Notifier: actions.MailNotifier{},
			}

			p, instances, err := config.Lower(doc, env)
			if err != nil {
				return fmt.Errorf("lower plan: %w", err)
			}
			log.Info().Str("plan", doc.Name).Int("instances", len(instances)).Int("actions", len(p.Actions())).Msg("plan loaded")

			runStore, err := store.NewSQLiteStore(rt.StorePath)
			if err != nil {
				return fmt.Errorf("open run store: %w", err)
			}
			ctx := cmd.Context()
			if err := runStore.Init(ctx); err != nil {
				return fmt.Errorf("init run store: %w", err)
			}
			defer runStore.Close()

			runID := uuid.NewString()
			metrics.RecordRunStarted(doc.Name)
			if err := runStore.CreateRun(ctx, &store.RunReport{
				ID: runID, PlanName: doc.Name, Status: store.RunStatusRunning, StartedAt: time.Now(),
			}); err != nil {
				return fmt.Errorf("record run start: %w", err)
			}

			scheduleErr := p.Schedule(ctx)
			status := store.RunStatusCompleted
			var errMsg *string
			if p.Status().String() == "FAILED" {
				status = store.RunStatusFailed
				msg := "one or more actions failed"
				errMsg = &msg
			}
			metrics.RecordRunCompleted(string(status), p.Duration())
			if err := runStore.UpdateRunStatus(ctx, runID, status, errMsg); err != nil {
				log.Error().Err(err).Msg("failed to record run completion")
			}

			fmt.Println(report.Colorize(p))
			if dotOut != "" {
				if err := writeFile(dotOut, report.ToDOT(p)); err != nil {
					log.Error().Err(err).Str("path", dotOut).Msg("failed to write DOT export")
				}
			}

			return scheduleErr
		},
	}

	cmd.Flags().StringVar(&instanceConfFile, "instance_conf_file", "instances.json", "instance configuration file")
	cmd.Flags().StringVar(&actionConfFile, "action_conf_file", "actions.json", "action configuration file")
	cmd.Flags().StringVar(&sshUser, "ssh-user", "nebula", "SSH user for remote command execution")
	cmd.Flags().StringVar(&sshKeyPath, "ssh-key", "", "SSH private key path")
	cmd.Flags().BoolVar(&checkPolicy, "check-policy", false, "run the built-in policy gate before executing")
	cmd.Flags().StringVar(&dotOut, "flow_chart_script", "", "write a Graphviz DOT export of the action DAG to this path")

	return cmd
}

func writeFile(path, contents string) error {
	return os.WriteFile(path, []byte(contents), 0o644)
}
