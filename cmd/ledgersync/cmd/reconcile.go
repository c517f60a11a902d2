package cmd

import (
	"github.com/spf13/cobra"

	"ledgersync/internal/reconcile"
)

var assignmentsCmd = &cobra.Command{
	Use:   "assignments",
	Short: "Reconcile assignment grades (canvas_grader) once",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOnce(cmd, reconcile.VariantAssignments)
	},
}

var coursesCmd = &cobra.Command{
	Use:   "courses",
	Short: "Reconcile course completions (canvas_grader_courses) once",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOnce(cmd, reconcile.VariantCourses)
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Reconcile assignment grades and course completions once",
	Long:  "Runs both reconciliations in turn. Each produces its own report and email.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		return a.reconcileAll(cmd.Context(), nil)
	},
}

func runOnce(cmd *cobra.Command, variant reconcile.Variant) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	return a.reconcile(cmd.Context(), variant, nil)
}

func init() {
	rootCmd.AddCommand(assignmentsCmd)
	rootCmd.AddCommand(coursesCmd)
	rootCmd.AddCommand(runCmd)
}
