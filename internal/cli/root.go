// Package cli implements docnestctl, the operator command line.
package cli

import (
	"fmt"
	"slices"

	"docnest/internal/config"
	"docnest/pkg/logger"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// RootOptions holds global flags and the state every command shares.
type RootOptions struct {
	ConfigEnv string
	ConfigDir string
	Format    string // "json" | "text"

	Config *config.Config
	Logger *zap.Logger
}

var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the docnestctl command tree.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "docnestctl",
		Short: "DocNest operator tool",
		Long:  "Operator commands for the DocNest document catalog and expiry-reminder engine.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}

			cfg, err := config.LoadFrom(opts.ConfigEnv, opts.ConfigDir)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to load config", err)
			}
			if err := cfg.Validate(); err != nil {
				return WrapExitError(ExitCommandError, "invalid config", err)
			}
			opts.Config = cfg
			if opts.Logger == nil {
				opts.Logger = logger.NewLoggerForEnv(cfg.App.Env)
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.ConfigEnv, "env", envDefault("CONFIG_ENV", "local"), "configuration environment (CONFIG_ENV)")
	cmd.PersistentFlags().StringVar(&opts.ConfigDir, "config-dir", envDefault("CONFIG_DIR", "config"), "directory holding base.yaml (CONFIG_DIR)")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewMigrateCommand(opts))
	cmd.AddCommand(NewRunOnceCommand(opts))
	cmd.AddCommand(NewSeedDemoCommand(opts))
	cmd.AddCommand(NewRemindersCommand(opts))
	cmd.AddCommand(NewTokenCommand(opts))
	cmd.AddCommand(NewEventsCommand(opts))

	return cmd
}

func (o *RootOptions) output(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{Format: o.Format, Writer: cmd.OutOrStdout()}
}
