// pipectl inspects and drives item pipe networks: node store listing,
// snapshot export/import, and a sandbox network with a live observer.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"voxelpipes.ai/internal/sim/tuning"
)

var (
	logLevel   string
	configPath string

	// cfg is loaded once by the root command before any subcommand runs.
	cfg tuning.Tuning
)

var rootCmd = &cobra.Command{
	Use:           "pipectl",
	Short:         "Inspect and run item pipe networks",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			return err
		}
		logrus.SetLevel(level)

		t, err := tuning.Load(configPath)
		if err != nil {
			return err
		}
		cfg = t
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (trace, debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Tuning file (.yaml, .yml or .toml); defaults apply when empty")

	rootCmd.AddCommand(nodesCmd)
	rootCmd.AddCommand(snapshotCmd)
	rootCmd.AddCommand(sandboxCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		logrus.Fatal(err)
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}
