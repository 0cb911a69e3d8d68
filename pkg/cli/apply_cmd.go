package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"idsync/internal/declarative"
)

func newApplyCmd(e *env) *cobra.Command {
	var configDir string

	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Apply declarative YAML configuration to the database",
		Long:  "Reads ConnectedSystem, SyncRule and MetaverseTypePolicy documents from a directory and applies them idempotently.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			state, err := declarative.LoadDirectory(configDir)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if err := e.open(cmd.Context()); err != nil {
				return err
			}
			defer e.close()

			report, err := e.app.Applier.Apply(cmd.Context(), state)
			if err != nil {
				return err
			}
			if e.output == "json" {
				return printJSON(cmd.OutOrStdout(), report)
			}
			fmt.Fprintf(cmd.OutOrStdout(),
				"Applied: %d system(s) created, %d object type(s) created, %d policy(ies) applied, %d rule(s) created, %d rule(s) updated\n",
				report.SystemsCreated, report.ObjectTypesCreated, report.PoliciesApplied,
				report.RulesCreated, report.RulesUpdated)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configDir, "config-dir", "f", "", "Directory with YAML documents (required)")
	_ = cmd.MarkFlagRequired("config-dir")
	return cmd
}
