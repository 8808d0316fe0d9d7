// mlgate trains a ridge regression on the wine quality dataset, tracks it,
// and gates CI on the held-out RMSE of the tracked model.
//
// Usage:
//
//	mlgate train
//	mlgate validate [--run-id ID]
//	mlgate runs [--experiment NAME]
//	mlgate ui [--addr :5000]
//	mlgate store status
package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"os"

	"mlgate/app"
	"mlgate/internal"
	"mlgate/internal/config"

	"github.com/spf13/cobra"
)

func main() {
	os.Exit(execute(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

// cli carries what every sub-command needs after configuration is loaded
type cli struct {
	configFile string
	logLevel   string

	cfg    *config.Config
	logger *internal.Logger
	stdout io.Writer
	stderr io.Writer
}

// execute runs the command line and returns the process status
func execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	c := &cli{stdout: stdout, stderr: stderr}
	root := c.rootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	if c.logger != nil {
		_ = c.logger.Sync()
	}
	switch {
	case err == nil:
	case stderrors.Is(err, app.ErrGateFailed):
		fmt.Fprintf(stderr, "[GATE] %v\n", err)
	default:
		fmt.Fprintf(stderr, "[ERROR] %v\n", err)
	}
	return app.ExitCode(err)
}

func (c *cli) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "mlgate",
		Short:         "Train, track and gate a regression model in CI",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.load()
		},
	}
	root.PersistentFlags().StringVar(&c.configFile, "config", "", "config file (default ./mlgate.yaml if present)")
	root.PersistentFlags().StringVar(&c.logLevel, "log-level", "", "ERROR, WARN, INFO, DEBUG or TRACE")

	root.AddCommand(
		c.trainCmd(),
		c.validateCmd(),
		c.runsCmd(),
		c.uiCmd(),
		c.storeCmd(),
	)
	return root
}

func (c *cli) load() error {
	var (
		cfg *config.Config
		err error
	)
	if c.configFile != "" {
		cfg, err = config.LoadFile(c.configFile)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return err
	}
	if c.logLevel != "" {
		cfg.LogLevel = c.logLevel
	}
	c.cfg = cfg
	c.logger = internal.NewLogger(internal.ParseLogLevel(cfg.LogLevel))
	return nil
}
