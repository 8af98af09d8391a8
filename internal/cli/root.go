package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/ledgermsg/internal/config"
	"github.com/roach88/ledgermsg/internal/logger"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose  bool
	Format   string // "json" | "text"
	Config   string // YAML config path; empty for defaults
	Database string // overrides ledger.db from the config
	EnvFile  string // dotenv file consulted for LEDGERMSG_* overrides
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the ledgermsg CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "ledgermsg",
		Short: "ledgermsg - messaging records on a simulated ledger",
		Long: `Pairwise message threads and owner-broadcast channels kept as
program-derived records on a hash-chained, deposit-accounted ledger.

Every state change is a signed transaction. Only authorized principals
may act, message indices advance strictly, record addresses derive from
public inputs and closing a record refunds its storage deposit.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Validate format flag
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			level := "warn"
			if opts.Verbose {
				level = "debug"
			}
			return logger.Initialize(cmd.ErrOrStderr(), level, "text")
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVarP(&opts.Config, "config", "c", "", "path to YAML config file")
	cmd.PersistentFlags().StringVar(&opts.Database, "db", "", "path to SQLite ledger (overrides config)")
	cmd.PersistentFlags().StringVar(&opts.EnvFile, "env-file", ".env", "dotenv file with LEDGERMSG_* overrides")

	// Add subcommands
	cmd.AddCommand(NewKeygenCommand(opts))
	cmd.AddCommand(NewAddressCommand(opts))
	cmd.AddCommand(NewDeriveCommand(opts))
	cmd.AddCommand(NewFundCommand(opts))
	for _, c := range newTransactionCommands(opts) {
		cmd.AddCommand(c)
	}
	cmd.AddCommand(NewShowCommand(opts))
	cmd.AddCommand(NewLogCommand(opts))
	cmd.AddCommand(NewVerifyCommand(opts))
	cmd.AddCommand(NewReplayCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))
	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewSnapshotCommand(opts))

	return cmd
}

// Execute runs the root command with os.Args and returns the process
// exit code.
func Execute() int {
	cmd := NewRootCommand()
	err := cmd.Execute()
	if err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), "Error:", err)
	}
	return GetExitCode(err)
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

// loadConfig resolves the configuration, applying --db last.
func (o *RootOptions) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(o.Config, o.EnvFile)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid configuration", err)
	}
	if o.Database != "" {
		cfg.Ledger.DB = o.Database
	}
	return cfg, nil
}

// formatter builds the output formatter for cmd.
func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}
