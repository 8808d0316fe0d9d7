package main

import (
	"fmt"

	"mlgate/adapters/tracking/sqlstore"

	"github.com/spf13/cobra"
)

func (c *cli) storeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "store",
		Short: "Inspect the tracking store",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show the tracking backend and, for SQL stores, the schema migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			backend, err := c.openTracking(ctx)
			if err != nil {
				return err
			}
			defer c.closeTracking(backend)

			exps, err := backend.Store.ListExperiments(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(c.stdout, "Tracking URI: %s\n", c.cfg.Tracking.URI)
			fmt.Fprintf(c.stdout, "Experiments:  %d\n", len(exps))

			sql, ok := backend.Store.(*sqlstore.Store)
			if !ok {
				return nil
			}
			statuses, err := sql.SchemaStatus(ctx)
			if err != nil {
				return err
			}
			for _, st := range statuses {
				state := "pending"
				if st.Applied {
					state = "applied"
				}
				fmt.Fprintf(c.stdout, "Migration %s %-24s %s\n", st.Version, st.Name, state)
			}
			return nil
		},
	})
	return cmd
}
