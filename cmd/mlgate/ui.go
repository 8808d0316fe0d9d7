package main

import (
	"os/signal"
	"syscall"

	"mlgate/ui"

	"github.com/spf13/cobra"
)

func (c *cli) uiCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "ui",
		Short: "Serve the read-only tracking browser",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			backend, err := c.openTracking(ctx)
			if err != nil {
				return err
			}
			defer c.closeTracking(backend)

			serverCfg := c.cfg.Server
			if addr != "" {
				serverCfg.Addr = addr
			}
			srv, err := ui.NewServer(backend.Store, backend.Artifacts, serverCfg, c.logger)
			if err != nil {
				return err
			}
			return srv.ListenAndServe(ctx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config, :5000)")
	return cmd
}
