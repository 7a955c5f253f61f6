package main

import (
	"context"
	"fmt"

	"github.com/alvmarrod/showdown-replays/internal/extract"
	"github.com/alvmarrod/showdown-replays/internal/metrics"
	"github.com/alvmarrod/showdown-replays/internal/replay"
	"github.com/alvmarrod/showdown-replays/internal/storage"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func newExtractCommand() *cobra.Command {
	var (
		maxReplays int
		dbPath     string
	)

	cmd := &cobra.Command{
		Use:   "extract <replay_path>",
		Short: "Extract match info from raw replay files",
		Long:  "Reads a JSONL replay file, or a directory of them, and prints one match per line.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requirePositive(cmd, "max-replays", maxReplays); err != nil {
				return err
			}
			out := storage.NewFeedWriter(cmd.OutOrStdout())
			defer out.Close()

			sinks := []extract.MatchSink{
				extract.MatchSinkFunc(func(_ context.Context, m replay.ParsedMatch) error {
					return out.WriteLine(m)
				}),
			}

			if dbPath != "" {
				store, err := storage.NewStorage(dbPath)
				if err != nil {
					return err
				}
				defer store.Close()
				sinks = append(sinks, store)
			}

			tracker := metrics.NewTracker()
			res, err := extract.Run(cmd.Context(), args[0], maxReplays, tracker, sinks...)
			if err != nil {
				return fmt.Errorf("extract failed: %w", err)
			}

			logrus.Infof("Processed %d records: %d matches, %d errors", res.Records, res.Matches, len(res.Errors))
			logrus.Debug(tracker.LogProgress())
			return nil
		},
	}

	cmd.Flags().IntVarP(&maxReplays, "max-replays", "m", 10, "max number of raw replays to process for match info")
	cmd.Flags().StringVar(&dbPath, "db", "", "also store matches in this SQLite database")

	return cmd
}
