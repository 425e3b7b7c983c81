// Package commands wires the chaosorch CLI: cobra
// subcommands over the plan-loading, policy-gating, lowering, and
// scheduling packages. Grounded on cmd/froyo/commands/{root.go,apply.go,
// validate.go}'s cobra wiring idiom.
package commands

import (
	"context"
	"fmt"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// runtimeConfig holds process-level knobs distinct from a declarative plan
// document: defaults a plan may not override, sourced from a config file
// viper reloads on change.
type runtimeConfig struct {
	DefaultConcurrency int    `mapstructure:"default_concurrency"`
	SSHConnectTimeout  int    `mapstructure:"ssh_connect_timeout_seconds"`
	SSHCommandTimeout  int    `mapstructure:"ssh_command_timeout_seconds"`
	BreakerThreshold   uint32 `mapstructure:"breaker_consecutive_failures"`
	StorePath          string `mapstructure:"store_path"`
	MetricsListen      string `mapstructure:"metrics_listen_address"`
	PolicyEnabled      bool   `mapstructure:"policy_enabled"`
}

func defaultRuntimeConfig() runtimeConfig {
	return runtimeConfig{
		DefaultConcurrency: 10,
		SSHConnectTimeout:  10,
		SSHCommandTimeout:  60,
		BreakerThreshold:   3,
		StorePath:          "chaosorch.db",
		MetricsListen:      ":9090",
		PolicyEnabled:      false,
	}
}

// loadRuntimeConfig reads process configuration from configPath if given,
// falling back to defaultRuntimeConfig. Once loaded, the file is watched and
// each change is logged; the returned configuration is not updated, so an
// edit takes effect on the next invocation.
func loadRuntimeConfig(configPath string) (*runtimeConfig, error) {
	cfg := defaultRuntimeConfig()
	if configPath == "" {
		return &cfg, nil
	}

	v := viper.New()
	v.SetConfigFile(configPath)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read runtime config: %w", err)
	}
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse runtime config: %w", err)
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		log.Info().Str("file", e.Name).Msg("runtime config file changed, reload on next run")
	})
	v.WatchConfig()

	return &cfg, nil
}

var configPath string

// Execute runs the root command.
func Execute(ctx context.Context, version, commit, buildDate string) error {
	return newRootCommand(version, commit, buildDate).ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "chaosorch",
		Short:   "Chaos orchestrator for a distributed graph database cluster",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "runtime config file path")

	rootCmd.AddCommand(newValidateCommand())
	rootCmd.AddCommand(newRunCommand())

	return rootCmd
}
