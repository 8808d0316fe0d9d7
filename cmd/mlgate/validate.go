package main

import (
	"mlgate/app"

	"github.com/spf13/cobra"
)

func (c *cli) validateCmd() *cobra.Command {
	var runID string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Reload a tracked model, recompute held-out RMSE and apply the quality gate",
		Long: `Reload the model logged by a training run and recompute its RMSE on the
same held-out partition. Exits 0 when RMSE is at or below the threshold and 1
otherwise. Without --run-id the id is read from the run pointer file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			// resolve before opening anything
			id, err := app.ResolveRunID(runID, c.cfg.Tracking.PointerFile)
			if err != nil {
				return err
			}

			backend, err := c.openTracking(ctx)
			if err != nil {
				return err
			}
			defer c.closeTracking(backend)

			svc := app.NewValidationService(c.cfg, c.dataRepository(), backend.Store, backend.Artifacts, c.logger, c.stdout)
			_, err = svc.Validate(ctx, id.String())
			return err
		},
	}
	cmd.Flags().StringVar(&runID, "run-id", "", "run to validate (default: contents of the run pointer file)")
	return cmd
}
