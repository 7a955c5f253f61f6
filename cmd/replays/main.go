package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/alvmarrod/showdown-replays/internal/version"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var debug bool

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "replays",
		Short: "Scrape battle replays and extract match info",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			configureLogging(debug)
		},
		SilenceUsage: true,
	}

	root.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "replays version %s\n", version.Version)
		},
	})
	root.AddCommand(newScrapeCommand())
	root.AddCommand(newExtractCommand())

	return root
}

// configureLogging sets up logrus; logs go to stderr so extract output on
// stdout stays machine readable.
func configureLogging(debug bool) {
	logrus.SetOutput(os.Stderr)
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
	if debug {
		logrus.SetLevel(logrus.DebugLevel)
	} else {
		logrus.SetLevel(logrus.InfoLevel)
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		logrus.Errorf("%v", err)
		os.Exit(1)
	}
}
