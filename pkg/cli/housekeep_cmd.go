package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newHousekeepCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "housekeep",
		Short: "Run the deferred-deletion sweep once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := e.open(cmd.Context()); err != nil {
				return err
			}
			defer e.close()

			report, err := e.app.Housekeeping.Sweep(cmd.Context())
			if err != nil {
				return err
			}
			if e.output == "json" {
				return printJSON(cmd.OutOrStdout(), report)
			}
			fmt.Fprintf(cmd.OutOrStdout(),
				"Sweep: %d metaverse object(s) deleted, %d kept, %d connector object(s) deleted\n",
				report.MetaverseObjectsDeleted, report.MetaverseObjectsKept, report.ConnectorObjectsDeleted)
			return nil
		},
	}
}
