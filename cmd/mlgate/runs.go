package main

import (
	"fmt"
	"text/tabwriter"

	"mlgate/domain/run"
	"mlgate/internal/api"

	"github.com/spf13/cobra"
)

func (c *cli) runsCmd() *cobra.Command {
	var experiment string

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List the runs of an experiment",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if experiment == "" {
				experiment = c.cfg.Tracking.ExperimentName
			}

			backend, err := c.openTracking(ctx)
			if err != nil {
				return err
			}
			defer c.closeTracking(backend)

			exp, err := backend.Store.GetExperimentByName(ctx, experiment)
			if err != nil {
				return err
			}
			runs, err := api.NewBrowser(backend.Store, backend.Artifacts, c.logger).Runs(ctx, exp.ID)
			if err != nil {
				return err
			}

			fmt.Fprintf(c.stdout, "Experiment %s (%s): %d runs\n", exp.Name, exp.ID, len(runs))
			w := tabwriter.NewWriter(c.stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "RUN ID\tNAME\tSTATUS\tSTARTED\tRMSE")
			for _, r := range runs {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					r.Info.RunID, r.Info.RunName, r.Info.Status, r.Info.StartTime, metric(r, run.MetricRMSE))
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&experiment, "experiment", "", "experiment name (default from config)")
	return cmd
}

func metric(r run.Run, key string) string {
	v, ok := r.Data.Metrics[key]
	if !ok {
		return "-"
	}
	return fmt.Sprintf("%.4f", v)
}
