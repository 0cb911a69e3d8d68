package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"idsync/internal/domain"
)

func newRunCmd(e *env) *cobra.Command {
	var (
		system   string
		runType  string
		pageSize int
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute a run profile against a connected system",
		Long: "Executes one run profile (full_import, delta_import, full_sync or delta_sync) " +
			"and prints the finished run. Import runs need a connector registered for the system.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt := domain.RunType(runType)
			if !rt.Valid() {
				return fmt.Errorf("unknown run type %q (use full_import, delta_import, full_sync or delta_sync)", runType)
			}
			if err := e.open(cmd.Context()); err != nil {
				return err
			}
			defer e.close()
			ctx := cmd.Context()

			sys, err := e.app.Systems.GetByName(ctx, system)
			if err != nil {
				return err
			}
			profile := domain.RunProfile{ConnectedSystemID: sys.ID, RunType: rt, PageSize: pageSize}

			var run *domain.SyncRun
			switch rt {
			case domain.RunFullImport:
				run, err = e.app.Engine.PerformFullImport(ctx, profile)
			case domain.RunDeltaImport:
				run, err = e.app.Engine.PerformDeltaImport(ctx, profile)
			case domain.RunFullSync:
				run, err = e.app.Engine.PerformFullSync(ctx, profile)
			case domain.RunDeltaSync:
				run, err = e.app.Engine.PerformDeltaSync(ctx, profile)
			}
			if err != nil {
				return err
			}

			if e.output == "json" {
				return printJSON(cmd.OutOrStdout(), run)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Run %s (%s) %s: %d object(s) processed, %d error(s)\n",
				run.ID, run.RunType, run.Status, run.ObjectsProcessed, run.ErrorCount)
			return nil
		},
	}

	cmd.Flags().StringVar(&system, "system", "", "Connected system name (required)")
	cmd.Flags().StringVar(&runType, "type", string(domain.RunFullSync), "Run type")
	cmd.Flags().IntVar(&pageSize, "page-size", 0, "Page size for delta retrieval (0 uses the default)")
	_ = cmd.MarkFlagRequired("system")
	return cmd
}
