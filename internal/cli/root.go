package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/taxsync/internal/config"
)

// RootOptions holds global flags for all commands, and the configuration and
// logger resolved from them before any command runs.
type RootOptions struct {
	ConfigPath  string
	Definitions string
	DataDir     string
	Tenant      string
	Verbose     bool
	Format      string // "json" | "text"

	Config *config.Config
	Logger *slog.Logger

	// LogOutput receives log records. Defaults to stderr.
	LogOutput io.Writer
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the taxsync CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "taxsync",
		Short: "taxsync - managed taxonomy synchronization",
		Long: `Keep per-tenant term hierarchies in line with a versioned, declarative
definition. Missing terms are created level by level, explicit rename and
delete directives are applied first, and nothing else is ever removed.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Validate format flag
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return opts.resolve(cmd)
		},
	}

	// Global flags
	flags := cmd.PersistentFlags()
	flags.StringVarP(&opts.ConfigPath, "config", "c", "", "config file (default ./"+config.ProjectConfigFile+" if present)")
	flags.StringVar(&opts.Definitions, "definitions", "", "definitions directory (overrides config)")
	flags.StringVar(&opts.DataDir, "data-dir", "", "tenant database directory (overrides config)")
	flags.StringVarP(&opts.Tenant, "tenant", "t", "", "tenant id (default from config)")
	flags.BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	flags.StringVar(&opts.Format, "format", "text", "output format (json|text)")

	// Add subcommands
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewSyncCommand(opts))
	cmd.AddCommand(NewCheckCommand(opts))
	cmd.AddCommand(NewStatusCommand(opts))
	cmd.AddCommand(NewProvisionCommand(opts))
	cmd.AddCommand(NewTreeCommand(opts))
	cmd.AddCommand(NewExportCommand(opts))
	cmd.AddCommand(NewServeCommand(opts))

	return cmd
}

// resolve loads configuration, applies flag overrides and installs the
// logger.
func (o *RootOptions) resolve(cmd *cobra.Command) error {
	out := o.LogOutput
	if out == nil {
		out = os.Stderr
	}
	// Bootstrap logger for config loading; replaced once the level is known.
	o.Logger = newLogger(out, "text", levelFor(o.Verbose, slog.LevelInfo))

	cfg, err := config.NewLoader(o.Logger).Load(o.ConfigPath)
	if err != nil {
		return o.configError(cmd, err)
	}
	if o.Definitions != "" {
		cfg.Definitions = o.Definitions
	}
	if o.DataDir != "" {
		cfg.DataDir = o.DataDir
	}
	if o.Tenant != "" {
		cfg.DefaultTenant = o.Tenant
	}
	if err := cfg.Validate(); err != nil {
		return o.configError(cmd, err)
	}

	o.Config = cfg
	o.Logger = newLogger(out, cfg.Log.Format, levelFor(o.Verbose, cfg.Log.SlogLevel()))
	slog.SetDefault(o.Logger)
	return nil
}

func (o *RootOptions) configError(cmd *cobra.Command, err error) error {
	return o.formatter(cmd).Fail(ExitCommandError, ErrCodeConfig, err.Error())
}

// formatter builds the output formatter for cmd.
func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   o.Verbose,
	}
}

func levelFor(verbose bool, configured slog.Level) slog.Level {
	if verbose {
		return slog.LevelDebug
	}
	return configured
}

func newLogger(w io.Writer, format string, level slog.Level) *slog.Logger {
	hopts := &slog.HandlerOptions{Level: level}
	if format == "json" {
		return slog.New(slog.NewJSONHandler(w, hopts))
	}
	return slog.New(slog.NewTextHandler(w, hopts))
}
