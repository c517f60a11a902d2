package cmd

import (
	"github.com/spf13/cobra"

	"ledgersync/internal/store/sqlstore"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the embedded schema migrations to the configured database",
	Long: `Creates the ledger tables (users, programs, canvas_grader, canvas_grader_courses,
faculty_program) in a local or rehearsal database. Already applied migrations are skipped.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		st, err := sqlstore.Open(cmd.Context(), sqlstore.Dialect(cfg.Database.Driver), cfg.Database.DSN())
		if err != nil {
			return err
		}
		defer st.Close()

		cmd.Println("Running database migrations...")
		if err := sqlstore.Migrate(st.DB(), st.Dialect()); err != nil {
			return err
		}
		cmd.Println("Migrations completed successfully")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
