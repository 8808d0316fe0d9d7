package main

import (
	"mlgate/app"

	"github.com/spf13/cobra"
)

func (c *cli) trainCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "train",
		Short: "Fit the pipeline, log it as a tracked run and update the run pointer",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			backend, err := c.openTracking(ctx)
			if err != nil {
				return err
			}
			defer c.closeTracking(backend)

			svc := app.NewTrainingService(c.cfg, c.dataRepository(), backend.Store, backend.Artifacts, c.logger, c.stdout)
			svc.Source = "mlgate train"
			_, err = svc.Train(ctx)
			return err
		},
	}
}
