package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"ledgersync/internal/config"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "ledgersync",
	Short: "Ledgersync copies Canvas completions into the faculty_program ledger",
	Long: `ledgersync reconciles completion records from the Canvas LMS against the
faculty_program ledger, inserts the records that are missing and emails staff a report.

Two completion signals are checked:

  - Assignment grades: canvas_grader maps a Canvas assignment and a minimum score to a program
  - Course completions: canvas_grader_courses maps a Canvas course whose final grade is
    "Complete" to a program

Common workflows:

  Reconcile assignment grades once:
    ledgersync assignments

  Preview course completions without writing to the ledger:
    ledgersync courses --dry-run

  Run both reconciliations every day and serve probes and metrics:
    ledgersync watch

  Create the schema in a rehearsal database:
    ledgersync migrate

Configuration:
  Settings are read from ledgersync.yaml in the working directory (or --config),
  then from environment variables prefixed with LEDGERSYNC_, e.g.
    LEDGERSYNC_CANVAS_TOKEN         Canvas API token
    LEDGERSYNC_DATABASE_NAME        ledger database name
    LEDGERSYNC_EMAIL_TO             comma-separated report recipients`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// ExecuteContext runs the root command with a context that is cancelled on shutdown.
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./ledgersync.yaml)")
	rootCmd.PersistentFlags().Bool("dry-run", false, "report would-be inserts without writing to the ledger")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
}

// loadConfig reads configuration with the persistent flags layered on top.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	flags := cmd.Flags()
	return config.Load(cfgFile,
		config.WithFlag("dry_run", flags.Lookup("dry-run")),
		config.WithFlag("log.level", flags.Lookup("log-level")),
	)
}
